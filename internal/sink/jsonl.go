package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apiharvest/apiharvest/internal/extract"
)

// JSONLSink appends one JSON object per row, one file per destination.
// Every object carries the full column set so consumers see a stable
// shape even when a field never resolved.
type JSONLSink struct {
	mu    sync.Mutex
	dir   string
	files map[string]*os.File
}

func NewJSONL(dir string) *JSONLSink {
	return &JSONLSink{dir: dir, files: make(map[string]*os.File)}
}

func (s *JSONLSink) Save(rows []extract.Row, destination string, columns []string) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.open(destination)
	if err != nil {
		return err
	}

	for _, row := range rows {
		line, err := json.Marshal(normalizeRow(row, columns))
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		line = append(line, '\n')
		if _, err := file.Write(line); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return nil
}

func (s *JSONLSink) open(destination string) (*os.File, error) {
	if file, ok := s.files[destination]; ok {
		return file, nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := s.path(destination)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.files[destination] = file
	return file, nil
}

func (s *JSONLSink) Reset(destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file, ok := s.files[destination]; ok {
		_ = file.Close()
		delete(s.files, destination)
	}
	if err := os.Remove(s.path(destination)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.path(destination), err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for destination, file := range s.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, destination)
	}
	return firstErr
}

func (s *JSONLSink) path(destination string) string {
	return filepath.Join(s.dir, destination+".jsonl")
}
