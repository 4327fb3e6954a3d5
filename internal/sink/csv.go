package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apiharvest/apiharvest/internal/extract"
)

// CSVSink appends one CSV file per destination under a base directory.
// The header row is written when the file is created and matches the
// column order of the first Save.
type CSVSink struct {
	mu    sync.Mutex
	dir   string
	files map[string]*csvFile
}

type csvFile struct {
	handle *os.File
	writer *csv.Writer
}

func NewCSV(dir string) *CSVSink {
	return &CSVSink{dir: dir, files: make(map[string]*csvFile)}
}

func (s *CSVSink) Save(rows []extract.Row, destination string, columns []string) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.open(destination, columns)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := file.writer.Write(rowValues(row, columns)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	file.writer.Flush()
	if err := file.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// open returns the cached writer for a destination, creating the file
// and its header on first use.
func (s *CSVSink) open(destination string, columns []string) (*csvFile, error) {
	if file, ok := s.files[destination]; ok {
		return file, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	path := s.path(destination)
	handle, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := handle.Stat()
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	file := &csvFile{handle: handle, writer: csv.NewWriter(handle)}
	if info.Size() == 0 {
		if err := file.writer.Write(columns); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		file.writer.Flush()
		if err := file.writer.Error(); err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	s.files[destination] = file
	return file, nil
}

func (s *CSVSink) Reset(destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if file, ok := s.files[destination]; ok {
		_ = file.handle.Close()
		delete(s.files, destination)
	}
	if err := os.Remove(s.path(destination)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", s.path(destination), err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for destination, file := range s.files {
		file.writer.Flush()
		if err := file.writer.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := file.handle.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.files, destination)
	}
	return firstErr
}

func (s *CSVSink) path(destination string) string {
	return filepath.Join(s.dir, destination+".csv")
}
