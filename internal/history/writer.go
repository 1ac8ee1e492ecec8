package history

import (
	"fmt"
	"sync"

	"github.com/ariel-frischer/symlog/internal/logger"
)

// Writer appends entries to a history file and prunes the oldest ones.
type Writer struct {
	// Path is the history file.
	Path string
	// MaxEntries is the maximum number of entries to retain; 0 keeps all.
	MaxEntries int

	mu sync.Mutex
}

// NewWriter creates a history writer. A nil writer records nothing, so
// callers can pass NewWriter's result around when history is disabled.
func NewWriter(path string, maxEntries int) *Writer {
	if path == "" {
		return nil
	}
	return &Writer{Path: path, MaxEntries: maxEntries}
}

// LogEntry adds entry to the history file. Failures are logged as warnings
// and never fail the build that produced the entry.
func (w *Writer) LogEntry(entry HistoryEntry) {
	if w == nil {
		return
	}
	if err := w.append(entry); err != nil {
		logger.Logger.Warn("failed to record build history", "path", w.Path, "err", err)
	}
}

func (w *Writer) append(entry HistoryEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	h, err := LoadHistory(w.Path)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	h.Entries = append(h.Entries, entry)
	if w.MaxEntries > 0 && len(h.Entries) > w.MaxEntries {
		h.Entries = h.Entries[len(h.Entries)-w.MaxEntries:]
	}

	if err := SaveHistory(w.Path, h); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}
