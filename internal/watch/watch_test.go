package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, gitDir string, debounce time.Duration) <-chan []string {
	t.Helper()
	w, err := New(gitDir, WithDebounce(debounce))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	changes := make(chan []string, 8)
	go func() {
		_ = w.Run(ctx, func(ctx context.Context, paths []string) {
			changes <- paths
		})
	}()
	return changes
}

func waitFor(t *testing.T, changes <-chan []string) []string {
	t.Helper()
	select {
	case paths := <-changes:
		return paths
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return nil
	}
}

func TestTagWatcher_NewTag(t *testing.T) {
	gitDir := t.TempDir()
	changes := startWatcher(t, gitDir, 50*time.Millisecond)

	ref := filepath.Join(gitDir, "refs", "tags", "v1.0.0")
	require.NoError(t, os.WriteFile(ref, []byte("abc\n"), 0o644))

	assert.Contains(t, waitFor(t, changes), ref)
}

func TestTagWatcher_PackedRefs(t *testing.T) {
	gitDir := t.TempDir()
	changes := startWatcher(t, gitDir, 50*time.Millisecond)

	packed := filepath.Join(gitDir, "packed-refs")
	require.NoError(t, os.WriteFile(packed, []byte("# pack-refs\n"), 0o644))

	assert.Equal(t, []string{packed}, waitFor(t, changes))
}

func TestTagWatcher_IgnoresOtherRefs(t *testing.T) {
	gitDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0o755))
	changes := startWatcher(t, gitDir, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "packed-refs.lock"), nil, 0o644))

	select {
	case paths := <-changes:
		t.Fatalf("unexpected change: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTagWatcher_Debounces(t *testing.T) {
	gitDir := t.TempDir()
	changes := startWatcher(t, gitDir, 300*time.Millisecond)

	for _, tag := range []string{"v1.0.0", "v1.1.0", "v1.2.0"} {
		require.NoError(t, os.WriteFile(filepath.Join(gitDir, "refs", "tags", tag), []byte("abc\n"), 0o644))
	}

	paths := waitFor(t, changes)
	assert.Len(t, paths, 3)
}

func TestRelevant(t *testing.T) {
	w := &TagWatcher{gitDir: "/repo/.git", tagsDir: filepath.Join("/repo/.git", "refs", "tags")}

	tests := map[string]struct {
		path string
		want bool
	}{
		"tag":         {path: "/repo/.git/refs/tags/v1.0.0", want: true},
		"nested tag":  {path: "/repo/.git/refs/tags/@acme/sdk@1.0.0", want: true},
		"packed refs": {path: "/repo/.git/packed-refs", want: true},
		"lock file":   {path: "/repo/.git/refs/tags/v1.0.0.lock", want: false},
		"branch":      {path: "/repo/.git/refs/heads/main", want: false},
		"tags dir":    {path: "/repo/.git/refs/tags", want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.path))
		})
	}
}
