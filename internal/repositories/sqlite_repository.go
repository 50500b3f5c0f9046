package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// SQLiteDiagramRepository is the single-file store used by local
// deployments. UUIDs are stored as text, fields and indexes as JSON
// documents, timestamps as RFC 3339 strings.
type SQLiteDiagramRepository struct {
	db *sql.DB
}

func NewSQLiteDiagramRepository(db *sql.DB) *SQLiteDiagramRepository {
	return &SQLiteDiagramRepository{db: db}
}

func (r *SQLiteDiagramRepository) CreateDiagram(ctx context.Context, d *models.Diagram) error {
	d.Prepare()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO diagrams (id, name, database_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID.String(), d.Name, string(d.DatabaseType), sqliteTime(d.CreatedAt), sqliteTime(d.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if err := sqliteInsertTables(ctx, tx, d.ID, d.Tables, 0); err != nil {
		return err
	}
	if err := sqliteInsertRelationships(ctx, tx, d.ID, d.Relationships); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDiagramRepository) GetDiagram(ctx context.Context, id uuid.UUID) (*models.Diagram, error) {
	var d models.Diagram
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, database_type, created_at, updated_at FROM diagrams WHERE id = ?`,
		id.String(),
	).Scan(&d.ID, &d.Name, &d.DatabaseType, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if d.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}

	if d.Tables, err = r.loadTables(ctx, id); err != nil {
		return nil, err
	}
	if d.Relationships, err = r.loadRelationships(ctx, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteDiagramRepository) ListDiagrams(ctx context.Context) ([]models.Diagram, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, database_type, created_at, updated_at FROM diagrams ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diagrams []models.Diagram
	for rows.Next() {
		var d models.Diagram
		var createdAt, updatedAt string
		if err := rows.Scan(&d.ID, &d.Name, &d.DatabaseType, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if d.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		if d.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
			return nil, err
		}
		diagrams = append(diagrams, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return diagrams, nil
}

func (r *SQLiteDiagramRepository) DeleteDiagram(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM diagrams WHERE id = ?`, id.String())
	return err
}

func (r *SQLiteDiagramRepository) AddTables(ctx context.Context, diagramID uuid.UUID, tables []models.Table) error {
	if len(tables) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM diagram_tables WHERE diagram_id = ?`,
		diagramID.String(),
	).Scan(&next)
	if err != nil {
		return err
	}
	if err := sqliteInsertTables(ctx, tx, diagramID, tables, next); err != nil {
		return err
	}
	if err := sqliteTouchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDiagramRepository) UpdateTablesState(ctx context.Context, diagramID uuid.UUID, mutate func(current []models.Table) []models.Table) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	current, err := sqliteLoadTablesTx(ctx, tx, diagramID)
	if err != nil {
		return err
	}
	next := mutate(current)

	if _, err := tx.ExecContext(ctx, `DELETE FROM diagram_tables WHERE diagram_id = ?`, diagramID.String()); err != nil {
		return err
	}
	if err := sqliteInsertTables(ctx, tx, diagramID, next, 0); err != nil {
		return err
	}
	if err := sqliteTouchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDiagramRepository) RemoveTables(ctx context.Context, diagramID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		`DELETE FROM diagram_tables WHERE diagram_id = ? AND id IN (%s)`,
		sqlitePlaceholders(len(ids)),
	)
	if _, err := tx.ExecContext(ctx, query, sqliteIDArgs(diagramID, ids)...); err != nil {
		return err
	}
	if err := sqliteTouchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDiagramRepository) AddRelationships(ctx context.Context, diagramID uuid.UUID, rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := sqliteInsertRelationships(ctx, tx, diagramID, rels); err != nil {
		return err
	}
	if err := sqliteTouchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteDiagramRepository) RemoveRelationships(ctx context.Context, diagramID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		`DELETE FROM diagram_relationships WHERE diagram_id = ? AND id IN (%s)`,
		sqlitePlaceholders(len(ids)),
	)
	if _, err := tx.ExecContext(ctx, query, sqliteIDArgs(diagramID, ids)...); err != nil {
		return err
	}
	if err := sqliteTouchDiagram(ctx, tx, diagramID); err != nil {
		return err
	}
	return tx.Commit()
}

const sqliteSelectTables = `
	SELECT id, schema_name, name, x, y, color, fields, indexes
	FROM diagram_tables WHERE diagram_id = ? ORDER BY position
`

func (r *SQLiteDiagramRepository) loadTables(ctx context.Context, diagramID uuid.UUID) ([]models.Table, error) {
	rows, err := r.db.QueryContext(ctx, sqliteSelectTables, diagramID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqliteScanTables(rows)
}

func sqliteLoadTablesTx(ctx context.Context, tx *sql.Tx, diagramID uuid.UUID) ([]models.Table, error) {
	rows, err := tx.QueryContext(ctx, sqliteSelectTables, diagramID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqliteScanTables(rows)
}

func sqliteScanTables(rows *sql.Rows) ([]models.Table, error) {
	var tables []models.Table
	for rows.Next() {
		var t models.Table
		var fields, indexes string
		if err := rows.Scan(&t.ID, &t.Schema, &t.Name, &t.X, &t.Y, &t.Color, &fields, &indexes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for table %s: %w", t.ID, err)
		}
		if indexes != "" {
			if err := json.Unmarshal([]byte(indexes), &t.Indexes); err != nil {
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

func (r *SQLiteDiagramRepository) loadRelationships(ctx context.Context, diagramID uuid.UUID) ([]models.Relationship, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, source_schema, source_table_id, source_field_id,
		       target_schema, target_table_id, target_field_id,
		       source_cardinality, target_cardinality, created_at
		FROM diagram_relationships WHERE diagram_id = ? ORDER BY created_at, id
	`, diagramID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []models.Relationship
	for rows.Next() {
		var rel models.Relationship
		var createdAt string
		if err := rows.Scan(
			&rel.ID, &rel.Name,
			&rel.SourceSchema, &rel.SourceTableID, &rel.SourceFieldID,
			&rel.TargetSchema, &rel.TargetTableID, &rel.TargetFieldID,
			&rel.SourceCardinality, &rel.TargetCardinality, &createdAt,
		); err != nil {
			return nil, err
		}
		var err error
		if rel.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rels, nil
}

func sqliteInsertTables(ctx context.Context, tx *sql.Tx, diagramID uuid.UUID, tables []models.Table, startPos int) error {
	query := `
		INSERT INTO diagram_tables (id, diagram_id, schema_name, name, x, y, color, position, fields, indexes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		if _, err := tx.ExecContext(ctx, query,
			t.ID.String(), diagramID.String(), t.Schema, t.Name, t.X, t.Y, t.Color, startPos+i,
			string(fields), string(indexes),
		); err != nil {
			return err
		}
	}
	return nil
}

func sqliteInsertRelationships(ctx context.Context, tx *sql.Tx, diagramID uuid.UUID, rels []models.Relationship) error {
	query := `
		INSERT INTO diagram_relationships (
			id, diagram_id, name,
			source_schema, source_table_id, source_field_id,
			target_schema, target_table_id, target_field_id,
			source_cardinality, target_cardinality, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, rel := range rels {
		if _, err := tx.ExecContext(ctx, query,
			rel.ID.String(), diagramID.String(), rel.Name,
			rel.SourceSchema, rel.SourceTableID.String(), rel.SourceFieldID.String(),
			rel.TargetSchema, rel.TargetTableID.String(), rel.TargetFieldID.String(),
			string(rel.SourceCardinality), string(rel.TargetCardinality), sqliteTime(rel.CreatedAt),
		); err != nil {
			return err
		}
	}
	return nil
}

func sqliteTouchDiagram(ctx context.Context, tx *sql.Tx, diagramID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE diagrams SET updated_at = ? WHERE id = ?`,
		sqliteTime(time.Now()), diagramID.String(),
	)
	return err
}

func sqlitePlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sqliteIDArgs(diagramID uuid.UUID, ids []uuid.UUID) []any {
	args := make([]any, 0, len(ids)+1)
	args = append(args, diagramID.String())
	for _, id := range ids {
		args = append(args, id.String())
	}
	return args
}

func sqliteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSQLiteTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
