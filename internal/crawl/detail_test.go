package crawl

import (
	"reflect"
	"testing"

	"github.com/apiharvest/apiharvest/internal/extract"
)

func TestDetailItems(t *testing.T) {
	tests := []struct {
		name string
		body any
		path string
		want int
	}{
		{
			name: "list of items",
			body: map[string]any{"data": []any{map[string]any{"a": 1}, map[string]any{"b": 2}}},
			path: "data",
			want: 2,
		},
		{
			name: "single object counts as one item",
			body: map[string]any{"data": map[string]any{"person": "Ada"}},
			path: "data",
			want: 1,
		},
		{
			name: "json encoded string",
			body: map[string]any{"data": `[{"person": "Ada"}, {"person": "Bob"}]`},
			path: "data",
			want: 2,
		},
		{
			name: "json encoded object string",
			body: map[string]any{"data": `{"person": "Ada"}`},
			path: "data",
			want: 1,
		},
		{
			name: "empty path uses whole body",
			body: []any{map[string]any{"a": 1}},
			path: "",
			want: 1,
		},
		{
			name: "missing path",
			body: map[string]any{"other": []any{}},
			path: "data",
			want: 0,
		},
		{
			name: "scalar at path",
			body: map[string]any{"data": float64(42)},
			path: "data",
			want: 0,
		},
		{
			name: "undecodable string at path",
			body: map[string]any{"data": "no contacts here"},
			path: "data",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detailItems(tt.body, tt.path)
			if len(got) != tt.want {
				t.Errorf("Expected %d items, got %d: %v", tt.want, len(got), got)
			}
		})
	}
}

func TestPlaceholderRow(t *testing.T) {
	row := placeholderRow([]string{"contact", "phone"})
	if len(row) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(row))
	}
	for _, name := range []string{"contact", "phone"} {
		if v, ok := row[name]; !ok || v != "" {
			t.Errorf("Expected empty %q field, got %q (present=%v)", name, v, ok)
		}
	}
}

func TestMergeRows(t *testing.T) {
	basic := extract.Row{"company": "Acme", "phone": "555-1"}
	detail := extract.Row{"contact": "Ada", "phone": "111"}

	merged := mergeRows(basic, detail)

	want := extract.Row{"company": "Acme", "contact": "Ada", "phone": "111"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("Expected %v, got %v", want, merged)
	}

	// Inputs stay untouched.
	if basic["phone"] != "555-1" {
		t.Errorf("Expected basic row unchanged, got %v", basic)
	}
}

func TestFinishPage(t *testing.T) {
	tests := []struct {
		name      string
		rows      []extract.Row
		nameField string
		want      []extract.Row
	}{
		{
			name: "dedupe keeps first occurrence",
			rows: []extract.Row{
				{"company": "Acme", "phone": "1"},
				{"company": "Borg", "phone": "2"},
				{"company": "Acme", "phone": "1"},
			},
			nameField: "company",
			want: []extract.Row{
				{"company": "Acme", "phone": "1"},
				{"company": "Borg", "phone": "2"},
			},
		},
		{
			name: "invalid rows dropped",
			rows: []extract.Row{
				{"company": "Acme", "phone": "1"},
				{"company": "Empty", "phone": ""},
			},
			nameField: "company",
			want: []extract.Row{
				{"company": "Acme", "phone": "1"},
			},
		},
		{
			name: "page kept when filter would empty it",
			rows: []extract.Row{
				{"company": "Acme", "phone": ""},
				{"company": "Borg", "phone": ""},
			},
			nameField: "company",
			want: []extract.Row{
				{"company": "Acme", "phone": ""},
				{"company": "Borg", "phone": ""},
			},
		},
		{
			name:      "empty page stays empty",
			rows:      nil,
			nameField: "company",
			want:      []extract.Row{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := finishPage(tt.rows, tt.nameField)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
