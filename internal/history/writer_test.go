package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWriter_LogEntry(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		setupStore  func(t *testing.T, path string)
		wantEntries int
	}{
		"log entry to empty history": {
			setupStore:  func(t *testing.T, path string) {},
			wantEntries: 1,
		},
		"log entry to existing history": {
			setupStore: func(t *testing.T, path string) {
				h := &HistoryFile{Entries: []HistoryEntry{
					{Timestamp: time.Now(), Command: "build", Package: "existing", Duration: "1s"},
				}}
				require.NoError(t, SaveHistory(path, h))
			},
			wantEntries: 2,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "state", "history.yaml")
			tc.setupStore(t, path)

			NewWriter(path, 500).LogEntry(HistoryEntry{
				Timestamp:   time.Now(),
				Command:     "build",
				Package:     "core",
				Mode:        "incremental",
				NewVersions: []string{"1.1.0"},
				Duration:    "30ms",
			})

			h, err := LoadHistory(path)
			require.NoError(t, err)
			require.Len(t, h.Entries, tc.wantEntries)
			last := h.Entries[len(h.Entries)-1]
			assert.Equal(t, "core", last.Package)
			assert.Equal(t, []string{"1.1.0"}, last.NewVersions)
		})
	}
}

func TestHistoryWriter_Pruning(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		existingEntries int
		maxEntries      int
		wantEntries     int
		wantOldest      string
	}{
		"no pruning needed": {
			existingEntries: 5,
			maxEntries:      10,
			wantEntries:     6,
			wantOldest:      "pkg-0",
		},
		"prune oldest when max exceeded": {
			existingEntries: 10,
			maxEntries:      10,
			wantEntries:     10,
			wantOldest:      "pkg-1",
		},
		"prune multiple when well over max": {
			existingEntries: 12,
			maxEntries:      10,
			wantEntries:     10,
			wantOldest:      "pkg-3",
		},
		"zero keeps everything": {
			existingEntries: 12,
			maxEntries:      0,
			wantEntries:     13,
			wantOldest:      "pkg-0",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "history.yaml")
			entries := make([]HistoryEntry, tc.existingEntries)
			for i := range entries {
				entries[i] = HistoryEntry{
					Timestamp: time.Now().Add(time.Duration(i) * time.Minute),
					Command:   "build",
					Package:   fmt.Sprintf("pkg-%d", i),
					Duration:  "1s",
				}
			}
			require.NoError(t, SaveHistory(path, &HistoryFile{Entries: entries}))

			NewWriter(path, tc.maxEntries).LogEntry(HistoryEntry{
				Timestamp: time.Now().Add(time.Hour),
				Command:   "build",
				Package:   "newest",
				Duration:  "30ms",
			})

			loaded, err := LoadHistory(path)
			require.NoError(t, err)
			require.Len(t, loaded.Entries, tc.wantEntries)
			assert.Equal(t, tc.wantOldest, loaded.Entries[0].Package)
			assert.Equal(t, "newest", loaded.Entries[len(loaded.Entries)-1].Package)
		})
	}
}

func TestHistoryWriter_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.yaml")
	w := NewWriter(path, 100)

	const writers, perWriter = 10, 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				w.LogEntry(HistoryEntry{
					Timestamp: time.Now(),
					Command:   "watch",
					Package:   fmt.Sprintf("pkg-%d", id),
					Duration:  "1ms",
				})
			}
		}(i)
	}
	wg.Wait()

	h, err := LoadHistory(path)
	require.NoError(t, err)
	assert.Len(t, h.Entries, writers*perWriter)
}

func TestHistoryWriter_NonFatalErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// A regular file where the directory should be makes saving fail.
	w := NewWriter(filepath.Join(blocker, "history.yaml"), 10)
	assert.NotPanics(t, func() {
		w.LogEntry(HistoryEntry{Timestamp: time.Now(), Command: "build", Package: "core"})
	})
}

func TestNewWriter_DisabledIsNil(t *testing.T) {
	t.Parallel()

	w := NewWriter("", 10)
	assert.Nil(t, w)
	assert.NotPanics(t, func() {
		w.LogEntry(HistoryEntry{Package: "core"})
	})
}

func TestLoadHistory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	h, err := LoadHistory(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, h.Entries)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("entries: [unclosed"), 0o644))
	_, err = LoadHistory(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing")
}

func TestClearHistory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.yaml")
	require.NoError(t, ClearHistory(path))

	NewWriter(path, 0).LogEntry(HistoryEntry{Package: "core"})
	require.FileExists(t, path)

	require.NoError(t, ClearHistory(path))
	assert.NoFileExists(t, path)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	entries := []HistoryEntry{
		{Package: "a", Latest: "1"},
		{Package: "b", Latest: "1"},
		{Package: "a", Latest: "2"},
		{Package: "a", Latest: "3"},
	}

	tests := map[string]struct {
		pkg        string
		limit      int
		wantLatest []string
	}{
		"all":            {wantLatest: []string{"1", "1", "2", "3"}},
		"by package":     {pkg: "a", wantLatest: []string{"1", "2", "3"}},
		"limited":        {pkg: "a", limit: 2, wantLatest: []string{"2", "3"}},
		"limit over len": {pkg: "b", limit: 5, wantLatest: []string{"1"}},
		"no match":       {pkg: "c"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var got []string
			for _, e := range Filter(entries, tc.pkg, tc.limit) {
				got = append(got, e.Latest)
			}
			assert.Equal(t, tc.wantLatest, got)
		})
	}
}
