// Package target defines declarative crawl targets and the store that
// loads them from a YAML file. A target describes one paginated API:
// how to build its requests, where the items live in the response and
// how raw items map to output columns.
package target

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/apiharvest/apiharvest/internal/extract"
)

// Field aliases the extract mapping type so target files and the mapper
// share one definition.
type Field = extract.Field

// Mode selects between plain list crawling and list+detail crawling.
type Mode string

const (
	// ModeSingle fetches list pages only.
	ModeSingle Mode = "single"
	// ModeDetail issues one detail request per list record.
	ModeDetail Mode = "detail"
)

// ParseMode normalizes the mode spellings accepted in target files.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single", "one", "1":
		return ModeSingle, nil
	case "detail", "double", "two", "2":
		return ModeDetail, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// RequestSpec is a declarative request template. Query and Body may hold
// nested structures whose string values carry pagination or record tokens.
type RequestSpec struct {
	URL       string            `mapstructure:"url" yaml:"url"`
	Method    string            `mapstructure:"method" yaml:"method"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Query     map[string]any    `mapstructure:"query" yaml:"query,omitempty"`
	Body      any               `mapstructure:"body" yaml:"body,omitempty"`
	ItemsPath string            `mapstructure:"items_path" yaml:"items_path"`
	Fields    []extract.Field   `mapstructure:"fields" yaml:"fields"`
}

// Target is one crawlable API, immutable once loaded.
type Target struct {
	ID        string       `mapstructure:"id" yaml:"id"`
	Name      string       `mapstructure:"name" yaml:"name,omitempty"`
	Mode      Mode         `mapstructure:"mode" yaml:"mode"`
	PageSize  int          `mapstructure:"page_size" yaml:"page_size,omitempty"`
	NameField string       `mapstructure:"name_field" yaml:"name_field,omitempty"`
	// DetailKey is an optional raw-record path. Records that resolve it
	// to an empty value skip their detail request and produce a
	// placeholder row.
	DetailKey string       `mapstructure:"detail_key" yaml:"detail_key,omitempty"`
	List      RequestSpec  `mapstructure:"list" yaml:"list"`
	Detail    *RequestSpec `mapstructure:"detail" yaml:"detail,omitempty"`
}

// normalize fills derivable defaults before validation.
func (t *Target) normalize() {
	t.List.Method = normalizeMethod(t.List.Method)
	if t.Detail != nil {
		t.Detail.Method = normalizeMethod(t.Detail.Method)
	}
	if t.NameField == "" && len(t.List.Fields) > 0 {
		t.NameField = t.List.Fields[0].Name
	}
}

func normalizeMethod(m string) string {
	if m == "" {
		return "GET"
	}
	return strings.ToUpper(strings.TrimSpace(m))
}

// Validate checks the target for the invariants the engine relies on.
func (t *Target) Validate() error {
	if t.ID == "" {
		return ErrMissingID
	}
	if err := validateSpec(&t.List); err != nil {
		return fmt.Errorf("target %s: list: %w", t.ID, err)
	}
	if t.Mode == ModeDetail {
		if t.Detail == nil {
			return fmt.Errorf("target %s: %w", t.ID, ErrMissingDetail)
		}
		if err := validateSpec(t.Detail); err != nil {
			return fmt.Errorf("target %s: detail: %w", t.ID, err)
		}
	}
	if t.PageSize < 0 {
		return fmt.Errorf("target %s: %w", t.ID, ErrInvalidPageSize)
	}
	return nil
}

func validateSpec(spec *RequestSpec) error {
	if spec.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(spec.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, spec.URL)
	}
	if len(spec.Fields) == 0 {
		return ErrNoFields
	}
	for _, f := range spec.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field with empty name", ErrNoFields)
		}
	}
	return nil
}

// Columns returns the output column order: list mapping names followed
// by detail mapping names, first occurrence winning on collisions.
func (t *Target) Columns() []string {
	seen := make(map[string]struct{})
	columns := make([]string, 0, len(t.List.Fields))
	appendFields := func(fields []extract.Field) {
		for _, f := range fields {
			if _, dup := seen[f.Name]; dup {
				continue
			}
			seen[f.Name] = struct{}{}
			columns = append(columns, f.Name)
		}
	}
	appendFields(t.List.Fields)
	if t.Detail != nil {
		appendFields(t.Detail.Fields)
	}
	return columns
}

// DetailFieldNames returns the detail mapping output names, used for
// placeholder rows when a detail response has no items.
func (t *Target) DetailFieldNames() []string {
	if t.Detail == nil {
		return nil
	}
	names := make([]string, 0, len(t.Detail.Fields))
	for _, f := range t.Detail.Fields {
		names = append(names, f.Name)
	}
	return names
}
