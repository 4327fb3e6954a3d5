// Package extract resolves dot-separated paths against decoded API payloads
// and maps raw response items to flat output rows.
package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Row is a flat output record keyed by mapped column name.
type Row map[string]string

// Field pairs an output column name with the dot path that feeds it.
type Field struct {
	Name string `yaml:"name" mapstructure:"name"`
	Path string `yaml:"path" mapstructure:"path"`
}

// Resolve walks a dot-separated path over nested maps and slices.
// Path segments that parse as integers index into slices. It returns
// ok=false at the first segment that cannot be resolved; an empty path
// resolves to the value itself.
func Resolve(value any, path string) (any, bool) {
	if path == "" {
		return value, true
	}
	current := value
	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Items resolves the items path against a decoded response body and
// returns the slice found there. Anything other than a slice, including
// an unresolvable path, yields no items.
func Items(body any, path string) []any {
	value, ok := Resolve(body, path)
	if !ok {
		return nil
	}
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	return items
}

// MapRecord applies the field mapping to one raw item. Fields whose path
// does not resolve land in the row as empty strings. The second return
// value counts the fields that did resolve.
func MapRecord(item any, fields []Field) (Row, int) {
	row := make(Row, len(fields))
	resolved := 0
	for _, f := range fields {
		value, ok := Resolve(item, f.Path)
		if !ok {
			row[f.Name] = ""
			continue
		}
		row[f.Name] = Stringify(value)
		resolved++
	}
	return row, resolved
}

// MapRecords maps a page of raw items. The failed flag reports a mapping
// failure: a non-empty page on which every item resolved not-found for
// every mapped field, which indicates the configured paths no longer
// match the response schema.
func MapRecords(items []any, fields []Field) ([]Row, bool) {
	if len(items) == 0 {
		return nil, false
	}
	rows := make([]Row, 0, len(items))
	resolved := 0
	for _, item := range items {
		row, n := MapRecord(item, fields)
		rows = append(rows, row)
		resolved += n
	}
	return rows, len(fields) > 0 && resolved == 0
}

// Stringify renders a resolved value for row output. Nil becomes the
// empty string; composite values fall back to their Go representation.
func Stringify(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprint(value)
}

// Dedupe removes duplicate rows, keeping the first occurrence. Two rows
// are duplicates when they hold the same value for every key; key order
// plays no part.
func Dedupe(rows []Row) []Row {
	if len(rows) < 2 {
		return rows
	}
	seen := make(map[string]struct{}, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		key := canonical(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// IsValid reports whether a row carries any data beyond the designated
// name field.
func IsValid(row Row, nameField string) bool {
	for key, value := range row {
		if key == nameField {
			continue
		}
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

func canonical(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(0x1f)
		b.WriteString(row[k])
		b.WriteByte(0x1e)
	}
	return b.String()
}
