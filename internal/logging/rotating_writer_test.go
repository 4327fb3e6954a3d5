package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func countBackups(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "harvest-") && strings.HasSuffix(e.Name(), ".log") {
			n++
		}
	}
	return n
}

func TestRotatingWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvest.log")

	w, err := NewRotatingWriter(path, 1024, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	data := []byte("one line of log output\n")
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write returned %d, want %d", n, len(data))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Expected file content %q, got %q", data, content)
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvest.log")

	w, err := NewRotatingWriter(path, 32, 5)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	line := []byte("0123456789012345678901234\n") // 26 bytes
	if _, err := w.Write(line); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	// The second write exceeds 32 bytes, forcing a rotation.
	if _, err := w.Write(line); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	if got := countBackups(t, dir); got != 1 {
		t.Errorf("Expected 1 backup after rotation, got %d", got)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != string(line) {
		t.Errorf("Expected fresh file to hold only the last line, got %q", content)
	}
}

func TestRotatingWriterPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvest.log")

	w, err := NewRotatingWriter(path, 8, 1)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	// Each write rotates the previous file out; keep=1 leaves one backup.
	for range 4 {
		if _, err := w.Write([]byte("0123456789\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if got := countBackups(t, dir); got > 1 {
		t.Errorf("Expected at most 1 backup kept, got %d", got)
	}
}

func TestRotatingWriterNoRotationWhenUnlimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvest.log")

	w, err := NewRotatingWriter(path, 0, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	for range 10 {
		if _, err := w.Write([]byte("some output that keeps accumulating\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if got := countBackups(t, dir); got != 0 {
		t.Errorf("Expected no backups with rotation disabled, got %d", got)
	}
}
