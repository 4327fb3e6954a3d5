package logging

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const backupStamp = "20060102T150405.000"

// RotatingWriter is a file writer with size-based rotation. A full file
// is renamed to a timestamped backup and a fresh one is opened; only the
// newest maxBackups backups are kept.
type RotatingWriter struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	keep     int
	file     *os.File
	size     int64
}

// NewRotatingWriter opens (or creates) the log file at path. A maxBytes
// of 0 disables rotation.
func NewRotatingWriter(path string, maxBytes int64, keep int) (*RotatingWriter, error) {
	w := &RotatingWriter{path: path, maxBytes: maxBytes, keep: keep}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write implements io.Writer.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if err := os.Rename(w.path, w.backupName(time.Now())); err != nil {
		// The file may have been removed externally; keep writing either way.
		if !os.IsNotExist(err) {
			return err
		}
	}
	w.prune()

	if err := w.open(); err != nil {
		return err
	}
	w.size = 0
	return nil
}

// backupName builds "<name>-<stamp><ext>" next to the live log file.
// The fixed-width stamp keeps lexicographic and chronological order
// identical, which prune relies on.
func (w *RotatingWriter) backupName(now time.Time) string {
	dir := filepath.Dir(w.path)
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, name+"-"+now.Format(backupStamp)+ext)
}

// prune removes the oldest backups beyond the keep limit. Errors are
// ignored: rotation must not take the logger down.
func (w *RotatingWriter) prune() {
	if w.keep <= 0 {
		return
	}
	base := filepath.Base(w.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "-"

	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == base {
			continue
		}
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) {
			backups = append(backups, name)
		}
	}
	if len(backups) <= w.keep {
		return
	}
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-w.keep] {
		_ = os.Remove(filepath.Join(filepath.Dir(w.path), name))
	}
}

var _ io.WriteCloser = (*RotatingWriter)(nil)
