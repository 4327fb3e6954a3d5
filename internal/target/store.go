package target

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Store resolves target ids to their configuration. Absence of an id is
// not an error.
type Store interface {
	Get(id string) (*Target, bool)
	IDs() []string
}

// FileStore is a Store backed by a YAML targets file, loaded once.
type FileStore struct {
	targets map[string]*Target
	order   []string
}

// targetsFile is the on-disk layout of a targets file.
type targetsFile struct {
	Targets []map[string]any `yaml:"targets"`
}

// LoadFile reads and validates a targets file. Entries that fail to
// decode or validate are skipped with a warning so one bad target does
// not block the rest.
func LoadFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}
	if len(file.Targets) == 0 {
		return nil, ErrNoTargets
	}

	store := &FileStore{targets: make(map[string]*Target, len(file.Targets))}
	for i, raw := range file.Targets {
		t, err := decodeTarget(raw)
		if err != nil {
			slog.Warn("Skipping undecodable target", "index", i, "error", err)
			continue
		}
		t.normalize()
		if err := t.Validate(); err != nil {
			slog.Warn("Skipping invalid target", "id", t.ID, "error", err)
			continue
		}
		if _, dup := store.targets[t.ID]; dup {
			slog.Warn("Skipping duplicate target id", "id", t.ID)
			continue
		}
		store.targets[t.ID] = t
		store.order = append(store.order, t.ID)
	}

	if len(store.targets) == 0 {
		return nil, ErrNoTargets
	}
	return store, nil
}

// Get returns the target for an id.
func (s *FileStore) Get(id string) (*Target, bool) {
	t, ok := s.targets[id]
	return t, ok
}

// IDs returns all target ids in file order.
func (s *FileStore) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// decodeTarget converts one raw YAML mapping into a Target.
func decodeTarget(raw map[string]any) (*Target, error) {
	var t Target
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &t,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			modeDecodeHook(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode target: %w", err)
	}
	return &t, nil
}

// modeDecodeHook maps the accepted mode spellings, including bare YAML
// numbers like 2, onto the Mode type.
func modeDecodeHook() mapstructure.DecodeHookFuncType {
	modeType := reflect.TypeOf(Mode(""))
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != modeType {
			return data, nil
		}
		return ParseMode(fmt.Sprint(data))
	}
}
