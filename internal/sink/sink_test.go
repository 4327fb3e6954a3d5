package sink

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/apiharvest/apiharvest/internal/extract"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")

	tests := []struct {
		format string
		want   string
	}{
		{"", "*sink.CSVSink"},
		{"csv", "*sink.CSVSink"},
		{"CSV", "*sink.CSVSink"},
		{"jsonl", "*sink.JSONLSink"},
		{"ndjson", "*sink.JSONLSink"},
		{"sqlite", "*sink.SQLiteSink"},
		{"db", "*sink.SQLiteSink"},
	}

	for _, tt := range tests {
		s, err := New(tt.format, dir, dbPath)
		if err != nil {
			t.Errorf("New(%q) failed: %v", tt.format, err)
			continue
		}
		if got := reflect.TypeOf(s).String(); got != tt.want {
			t.Errorf("New(%q): expected %s, got %s", tt.format, tt.want, got)
		}
		_ = s.Close()
	}

	if _, err := New("parquet", dir, dbPath); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Expected ErrUnknownFormat, got %v", err)
	}
}

func TestRowValues(t *testing.T) {
	row := extract.Row{"company": "Acme", "phone": "555"}
	columns := []string{"company", "contact", "phone"}

	want := []string{"Acme", "", "555"}
	if got := rowValues(row, columns); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestNormalizeRow(t *testing.T) {
	row := extract.Row{"company": "Acme", "stray": "x"}
	columns := []string{"company", "contact"}

	want := map[string]string{"company": "Acme", "contact": ""}
	if got := normalizeRow(row, columns); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}
