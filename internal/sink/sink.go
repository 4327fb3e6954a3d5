// Package sink persists crawl records. A sink appends page rows under
// a destination id: one CSV or JSONL file per destination, or one
// partition of the records table for SQLite. Sinks are safe for
// concurrent Save calls.
package sink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apiharvest/apiharvest/internal/extract"
)

// ErrUnknownFormat marks an unrecognized sink format name.
var ErrUnknownFormat = errors.New("unknown sink format")

// Sink persists the rows of delivered pages.
type Sink interface {
	// Save appends rows under destination using the given column order.
	Save(rows []extract.Row, destination string, columns []string) error
	// Reset discards everything stored under destination. Called when a
	// crawl starts over from the first page.
	Reset(destination string) error
	Close() error
}

// New builds the sink for a format name.
func New(format, outDir, dbPath string) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSV(outDir), nil
	case "jsonl", "ndjson":
		return NewJSONL(outDir), nil
	case "sqlite", "db":
		return NewSQLite(dbPath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// rowValues flattens a row into column order. Columns the row does not
// carry come out as empty strings.
func rowValues(row extract.Row, columns []string) []string {
	values := make([]string, len(columns))
	for i, column := range columns {
		values[i] = row[column]
	}
	return values
}

// normalizeRow copies a row restricted and padded to the given columns.
func normalizeRow(row extract.Row, columns []string) map[string]string {
	out := make(map[string]string, len(columns))
	for _, column := range columns {
		out[column] = row[column]
	}
	return out
}
