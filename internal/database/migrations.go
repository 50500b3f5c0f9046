package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func RunMigrations(pool *pgxpool.Pool) error {
	ctx := context.Background()

	migrations := []string{
		createDiagramsTable,
		createDiagramTablesTable,
		createDiagramRelationshipsTable,
	}

	for i, migration := range migrations {
		log.Printf("Running migration %d/%d", i+1, len(migrations))
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Println("All migrations completed successfully")
	return nil
}

const createDiagramsTable = `
CREATE TABLE IF NOT EXISTS diagrams (
  id UUID PRIMARY KEY,
  name TEXT NOT NULL,
  database_type TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_diagrams_updated_at ON diagrams(updated_at);
`

const createDiagramTablesTable = `
CREATE TABLE IF NOT EXISTS diagram_tables (
  id UUID PRIMARY KEY,
  diagram_id UUID NOT NULL REFERENCES diagrams(id) ON DELETE CASCADE,
  schema_name TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL,
  x DOUBLE PRECISION NOT NULL DEFAULT 0,
  y DOUBLE PRECISION NOT NULL DEFAULT 0,
  color TEXT NOT NULL DEFAULT '',
  position INT NOT NULL DEFAULT 0,
  fields JSONB NOT NULL DEFAULT '[]',
  indexes JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_diagram_tables_diagram_id ON diagram_tables(diagram_id);
`

const createDiagramRelationshipsTable = `
CREATE TABLE IF NOT EXISTS diagram_relationships (
  id UUID PRIMARY KEY,
  diagram_id UUID NOT NULL REFERENCES diagrams(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  source_schema TEXT NOT NULL DEFAULT '',
  source_table_id UUID NOT NULL,
  source_field_id UUID NOT NULL,
  target_schema TEXT NOT NULL DEFAULT '',
  target_table_id UUID NOT NULL,
  target_field_id UUID NOT NULL,
  source_cardinality TEXT NOT NULL,
  target_cardinality TEXT NOT NULL,
  created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_diagram_relationships_diagram_id ON diagram_relationships(diagram_id);
`
