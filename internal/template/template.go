// Package template instantiates declarative request templates. Templates
// are plain strings or arbitrarily nested maps and slices; substitution
// walks the structure, never fails, and leaves unknown tokens untouched.
package template

import (
	"sort"
	"strconv"
	"strings"

	"github.com/apiharvest/apiharvest/internal/extract"
)

// Pagination tokens understood by list request templates.
const (
	TokenPage      = "{page}"
	TokenSkipCount = "{skipCount}"
	TokenPageSize  = "{pageSize}"
)

// recordTokenPrefix marks dynamic field tokens in detail templates.
const recordTokenPrefix = "#"

// ForPage substitutes pagination tokens into a template. Page numbers are
// 1-based; {skipCount} expands to the zero-based offset (page-1)*pageSize.
// A string value that consists of exactly one token takes the token's
// native type, so numeric API parameters stay numeric.
func ForPage(tpl any, page, pageSize int) any {
	skip := (page - 1) * pageSize
	native := map[string]any{
		TokenPage:      page,
		TokenSkipCount: skip,
		TokenPageSize:  pageSize,
	}
	replacer := strings.NewReplacer(
		TokenPage, strconv.Itoa(page),
		TokenSkipCount, strconv.Itoa(skip),
		TokenPageSize, strconv.Itoa(pageSize),
	)
	return substitute(tpl, native, replacer.Replace)
}

// ExpandPage substitutes pagination tokens into a bare string, typically
// a request URL.
func ExpandPage(s string, page, pageSize int) string {
	switch v := ForPage(s, page, pageSize).(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return s
	}
}

// ForRecord substitutes #field tokens into a detail template using the
// raw fields of the list record that triggered the detail request. Tokens
// naming fields the record does not carry stay as written.
func ForRecord(tpl any, record map[string]any) any {
	if len(record) == 0 {
		return tpl
	}
	native := make(map[string]any, len(record))
	keys := make([]string, 0, len(record))
	for k, v := range record {
		native[recordTokenPrefix+k] = v
		keys = append(keys, k)
	}
	// Longer names first so #id never clobbers #idx.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	expand := func(s string) string {
		for _, k := range keys {
			token := recordTokenPrefix + k
			if strings.Contains(s, token) {
				s = strings.ReplaceAll(s, token, extract.Stringify(record[k]))
			}
		}
		return s
	}
	return substitute(tpl, native, expand)
}

// ExpandRecord substitutes #field tokens into a bare string.
func ExpandRecord(s string, record map[string]any) string {
	expanded := ForRecord(s, record)
	if v, ok := expanded.(string); ok {
		return v
	}
	return extract.Stringify(expanded)
}

// substitute walks a template value. Strings that are exactly one token
// are swapped for the token's native value; other strings go through the
// expand function. Maps and slices are rebuilt so the input template is
// never mutated.
func substitute(tpl any, native map[string]any, expand func(string) string) any {
	switch v := tpl.(type) {
	case string:
		if nv, ok := native[v]; ok {
			return nv
		}
		return expand(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = substitute(value, native, expand)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = substitute(value, native, expand)
		}
		return out
	default:
		return tpl
	}
}
