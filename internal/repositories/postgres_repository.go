package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// PostgresDiagramRepository persists diagrams across three tables:
// diagrams, diagram_tables and diagram_relationships. Table fields and
// indexes are jsonb documents inside their table row; a position column
// keeps table order stable so generated scripts stay deterministic.
type PostgresDiagramRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDiagramRepository(pool *pgxpool.Pool) *PostgresDiagramRepository {
	return &PostgresDiagramRepository{pool: pool}
}

func (r *PostgresDiagramRepository) CreateDiagram(ctx context.Context, d *models.Diagram) error {
	d.Prepare()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO diagrams (id, name, database_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, d.ID, d.Name, d.DatabaseType, d.CreatedAt, d.UpdatedAt); err != nil {
		return err
	}
	if err := insertTables(ctx, tx, d.ID, d.Tables, 0); err != nil {
		return err
	}
	if err := insertRelationships(ctx, tx, d.ID, d.Relationships); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDiagramRepository) GetDiagram(ctx context.Context, id uuid.UUID) (*models.Diagram, error) {
	query := `
		SELECT id, name, database_type, created_at, updated_at
		FROM diagrams WHERE id = $1
	`
	var d models.Diagram
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.Name,
		&d.DatabaseType,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	tables, err := r.loadTables(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Tables = tables

	rels, err := r.loadRelationships(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Relationships = rels

	return &d, nil
}

func (r *PostgresDiagramRepository) ListDiagrams(ctx context.Context) ([]models.Diagram, error) {
	query := `
		SELECT id, name, database_type, created_at, updated_at
		FROM diagrams ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diagrams []models.Diagram
	for rows.Next() {
		var d models.Diagram
		if err := rows.Scan(&d.ID, &d.Name, &d.DatabaseType, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		diagrams = append(diagrams, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return diagrams, nil
}

func (r *PostgresDiagramRepository) DeleteDiagram(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM diagrams WHERE id = $1`, id)
	return err
}

func (r *PostgresDiagramRepository) AddTables(ctx context.Context, diagramID uuid.UUID, tables []models.Table) error {
	if len(tables) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM diagram_tables WHERE diagram_id = $1`,
		diagramID).Scan(&next)
	if err != nil {
		return err
	}
	if err := insertTables(ctx, tx, diagramID, tables, next); err != nil {
		return err
	}
	if err := touchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDiagramRepository) UpdateTablesState(ctx context.Context, diagramID uuid.UUID, mutate func(current []models.Table) []models.Table) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	current, err := loadTablesTx(ctx, tx, diagramID, true)
	if err != nil {
		return err
	}
	next := mutate(current)

	if _, err := tx.Exec(ctx, `DELETE FROM diagram_tables WHERE diagram_id = $1`, diagramID); err != nil {
		return err
	}
	if err := insertTables(ctx, tx, diagramID, next, 0); err != nil {
		return err
	}
	if err := touchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDiagramRepository) RemoveTables(ctx context.Context, diagramID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `DELETE FROM diagram_tables WHERE diagram_id = $1 AND id = ANY($2)`
	if _, err := tx.Exec(ctx, query, diagramID, ids); err != nil {
		return err
	}
	if err := touchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDiagramRepository) AddRelationships(ctx context.Context, diagramID uuid.UUID, rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertRelationships(ctx, tx, diagramID, rels); err != nil {
		return err
	}
	if err := touchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDiagramRepository) RemoveRelationships(ctx context.Context, diagramID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `DELETE FROM diagram_relationships WHERE diagram_id = $1 AND id = ANY($2)`
	if _, err := tx.Exec(ctx, query, diagramID, ids); err != nil {
		return err
	}
	if err := touchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresDiagramRepository) loadTables(ctx context.Context, diagramID uuid.UUID) ([]models.Table, error) {
	query := `
		SELECT id, schema_name, name, x, y, color, fields, indexes
		FROM diagram_tables WHERE diagram_id = $1 ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, diagramID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTables(rows)
}

func loadTablesTx(ctx context.Context, tx pgx.Tx, diagramID uuid.UUID, forUpdate bool) ([]models.Table, error) {
	query := `
		SELECT id, schema_name, name, x, y, color, fields, indexes
		FROM diagram_tables WHERE diagram_id = $1 ORDER BY position
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := tx.Query(ctx, query, diagramID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTables(rows)
}

func scanTables(rows pgx.Rows) ([]models.Table, error) {
	var tables []models.Table
	for rows.Next() {
		var t models.Table
		var fields, indexes []byte
		if err := rows.Scan(&t.ID, &t.Schema, &t.Name, &t.X, &t.Y, &t.Color, &fields, &indexes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(fields, &t.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for table %s: %w", t.ID, err)
		}
		if len(indexes) > 0 {
			if err := json.Unmarshal(indexes, &t.Indexes); err != nil {
				return nil, fmt.Errorf("decode indexes for table %s: %w", t.ID, err)
			}
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

func (r *PostgresDiagramRepository) loadRelationships(ctx context.Context, diagramID uuid.UUID) ([]models.Relationship, error) {
	query := `
		SELECT id, name, source_schema, source_table_id, source_field_id,
		       target_schema, target_table_id, target_field_id,
		       source_cardinality, target_cardinality, created_at
		FROM diagram_relationships WHERE diagram_id = $1 ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, diagramID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(
			&rel.ID, &rel.Name,
			&rel.SourceSchema, &rel.SourceTableID, &rel.SourceFieldID,
			&rel.TargetSchema, &rel.TargetTableID, &rel.TargetFieldID,
			&rel.SourceCardinality, &rel.TargetCardinality, &rel.CreatedAt,
		); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rels, nil
}

func insertTables(ctx context.Context, tx pgx.Tx, diagramID uuid.UUID, tables []models.Table, startPos int) error {
	query := `
		INSERT INTO diagram_tables (id, diagram_id, schema_name, name, x, y, color, position, fields, indexes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for i, t := range tables {
		fields, err := json.Marshal(t.Fields)
		if err != nil {
			return err
		}
		indexes, err := json.Marshal(t.Indexes)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query,
			t.ID, diagramID, t.Schema, t.Name, t.X, t.Y, t.Color, startPos+i, fields, indexes,
		); err != nil {
			return err
		}
	}
	return nil
}

func insertRelationships(ctx context.Context, tx pgx.Tx, diagramID uuid.UUID, rels []models.Relationship) error {
	query := `
		INSERT INTO diagram_relationships (
			id, diagram_id, name,
			source_schema, source_table_id, source_field_id,
			target_schema, target_table_id, target_field_id,
			source_cardinality, target_cardinality, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, rel := range rels {
		if _, err := tx.Exec(ctx, query,
			rel.ID, diagramID, rel.Name,
			rel.SourceSchema, rel.SourceTableID, rel.SourceFieldID,
			rel.TargetSchema, rel.TargetTableID, rel.TargetFieldID,
			rel.SourceCardinality, rel.TargetCardinality, rel.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func touchDiagram(ctx context.Context, tx pgx.Tx, diagramID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE diagrams SET updated_at = now() WHERE id = $1`, diagramID)
	return err
}
