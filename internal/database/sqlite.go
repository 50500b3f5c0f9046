package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// OpenSQLite opens the single-file diagram store and applies its schema.
// The open connection limit of one serializes writers, which SQLite needs.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	for i, migration := range sqliteMigrations {
		if _, err := db.Exec(migration); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migration %d failed: %w", i+1, err)
		}
	}

	log.Printf("SQLite diagram store ready at %s", path)
	return db, nil
}

var sqliteMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS diagrams (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  database_type TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`,
	`
CREATE TABLE IF NOT EXISTS diagram_tables (
  id TEXT PRIMARY KEY,
  diagram_id TEXT NOT NULL REFERENCES diagrams(id) ON DELETE CASCADE,
  schema_name TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL,
  x REAL NOT NULL DEFAULT 0,
  y REAL NOT NULL DEFAULT 0,
  color TEXT NOT NULL DEFAULT '',
  position INTEGER NOT NULL DEFAULT 0,
  fields TEXT NOT NULL DEFAULT '[]',
  indexes TEXT NOT NULL DEFAULT '[]'
);
`,
	`CREATE INDEX IF NOT EXISTS idx_diagram_tables_diagram_id ON diagram_tables(diagram_id);`,
	`
CREATE TABLE IF NOT EXISTS diagram_relationships (
  id TEXT PRIMARY KEY,
  diagram_id TEXT NOT NULL REFERENCES diagrams(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  source_schema TEXT NOT NULL DEFAULT '',
  source_table_id TEXT NOT NULL,
  source_field_id TEXT NOT NULL,
  target_schema TEXT NOT NULL DEFAULT '',
  target_table_id TEXT NOT NULL,
  target_field_id TEXT NOT NULL,
  source_cardinality TEXT NOT NULL,
  target_cardinality TEXT NOT NULL,
  created_at TEXT NOT NULL
);
`,
	`CREATE INDEX IF NOT EXISTS idx_diagram_relationships_diagram_id ON diagram_relationships(diagram_id);`,
}
