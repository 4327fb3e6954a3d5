package sink

const schemaSQL = `
CREATE TABLE IF NOT EXISTS records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    destination TEXT NOT NULL,
    saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    -- JSON object; keys follow the target's column list
    row TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_destination ON records(destination);
`
