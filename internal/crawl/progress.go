package crawl

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Progress receives coarse per-page counters while a session runs.
// Updates are advisory; implementations swallow their own failures.
type Progress interface {
	Update(target string, page, records int, state string)
}

// NopProgress discards all updates.
type NopProgress struct{}

func (NopProgress) Update(string, int, int, string) {}

// FileProgress writes a JSON snapshot of the latest update to a fixed
// path. The file is replaced atomically via a temp file and rename so
// external watchers never read a partial document. Write failures are
// swallowed.
type FileProgress struct {
	mu   sync.Mutex
	path string
}

func NewFileProgress(path string) *FileProgress {
	return &FileProgress{path: path}
}

type progressSnapshot struct {
	Target    string    `json:"target"`
	Page      int       `json:"page"`
	Records   int       `json:"records"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *FileProgress) Update(target string, page, records int, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := json.Marshal(progressSnapshot{
		Target:    target,
		Page:      page,
		Records:   records,
		State:     state,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, p.path)
}
