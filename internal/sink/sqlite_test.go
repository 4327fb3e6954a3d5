package sink

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/apiharvest/apiharvest/internal/extract"
)

func TestSQLiteSinkSave(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")
	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = s.Close() }()

	columns := []string{"company", "contact"}
	err = s.Save([]extract.Row{
		{"company": "Acme", "contact": "Ada"},
		{"company": "Borg"},
	}, "expo", columns)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rows, err := s.db.Query(`SELECT destination, row FROM records ORDER BY id`)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	var got []map[string]string
	for rows.Next() {
		var destination, payload string
		if err := rows.Scan(&destination, &payload); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		if destination != "expo" {
			t.Errorf("Expected destination expo, got %q", destination)
		}
		var row map[string]string
		if err := json.Unmarshal([]byte(payload), &row); err != nil {
			t.Fatalf("Failed to decode payload %q: %v", payload, err)
		}
		got = append(got, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Rows iteration failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 stored rows, got %d", len(got))
	}
	if got[0]["company"] != "Acme" || got[0]["contact"] != "Ada" {
		t.Errorf("Expected Acme/Ada, got %v", got[0])
	}
	if got[1]["company"] != "Borg" || got[1]["contact"] != "" {
		t.Errorf("Expected Borg with empty contact, got %v", got[1])
	}
}

func TestSQLiteSinkReset(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")
	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = s.Close() }()

	columns := []string{"company"}
	if err := s.Save([]extract.Row{{"company": "Acme"}}, "east", columns); err != nil {
		t.Fatalf("Save east failed: %v", err)
	}
	if err := s.Save([]extract.Row{{"company": "Borg"}}, "west", columns); err != nil {
		t.Fatalf("Save west failed: %v", err)
	}

	if err := s.Reset("east"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE destination = 'east'`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected east rows deleted, got %d", count)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records WHERE destination = 'west'`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected west rows untouched, got %d", count)
	}
}

func TestSQLiteSinkReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "records.db")

	s, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	if err := s.Save([]extract.Row{{"company": "Acme"}}, "expo", []string{"company"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Rows survive reopening the database.
	s, err = NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen sink: %v", err)
	}
	defer func() { _ = s.Close() }()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row after reopen, got %d", count)
	}
}
