package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/dbml"
	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
	"github.com/skyiron/chartdbDiagramsSQL/internal/reconcile"
	"github.com/skyiron/chartdbDiagramsSQL/internal/repositories"
)

// ApplyPipeline turns edited DBML text into diagram mutations. One apply
// imports the text, reconciles it against the stored diagram, issues the
// five mutation steps in their fixed order and regenerates the canonical
// text for the editor baseline.
type ApplyPipeline struct {
	store    repositories.DiagramStore
	notifier Notifier
	logger   *zap.Logger
}

func NewApplyPipeline(store repositories.DiagramStore, notifier Notifier, logger *zap.Logger) *ApplyPipeline {
	return &ApplyPipeline{store: store, notifier: notifier, logger: logger}
}

type ApplySummary struct {
	TablesAdded          int `json:"tables_added"`
	TablesUpdated        int `json:"tables_updated"`
	TablesRemoved        int `json:"tables_removed"`
	RelationshipsAdded   int `json:"relationships_added"`
	RelationshipsRemoved int `json:"relationships_removed"`
}

func (s ApplySummary) Empty() bool {
	return s.TablesAdded == 0 && s.TablesUpdated == 0 && s.TablesRemoved == 0 &&
		s.RelationshipsAdded == 0 && s.RelationshipsRemoved == 0
}

type ApplyResult struct {
	Content string       `json:"content"`
	Summary ApplySummary `json:"summary"`
}

// Apply runs the full pipeline for one diagram. A malformed script returns
// the *dbml.ParseError before any store call. Mutation errors abort the
// remaining steps; already-issued mutations are not rolled back.
func (p *ApplyPipeline) Apply(ctx context.Context, diagramID uuid.UUID, text string) (*ApplyResult, error) {
	diagram, err := p.store.GetDiagram(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("load diagram: %w", err)
	}
	if diagram == nil {
		return nil, ErrDiagramNotFound
	}

	schema, err := dbml.Import(text, dbml.DialectFor(diagram.DatabaseType))
	if err != nil {
		return nil, err
	}

	tableChanges := reconcile.Tables(diagram.Tables, schema.Tables)
	relChanges := reconcile.Relationships(reconcile.RelationshipInput{
		Current:       diagram.Relationships,
		CurrentTables: diagram.Tables,
		Tables:        tableChanges,
		Imported:      schema,
		Logger:        p.logger,
	})

	if err := p.mutate(ctx, diagramID, tableChanges, relChanges); err != nil {
		return nil, err
	}

	merged := *diagram
	merged.Tables = reconcile.MergeTables(diagram.Tables, tableChanges)
	merged.Relationships = reconcile.MergeRelationships(diagram.Relationships, relChanges)

	return &ApplyResult{
		Content: p.regenerate(&merged),
		Summary: ApplySummary{
			TablesAdded:          len(tableChanges.Add),
			TablesUpdated:        len(tableChanges.Update),
			TablesRemoved:        len(tableChanges.Remove),
			RelationshipsAdded:   len(relChanges.Add),
			RelationshipsRemoved: len(relChanges.Remove),
		},
	}, nil
}

// mutate issues the ordered store calls. Relationships leave before their
// tables do, and table state settles before new relationships resolve
// against it; empty sets are skipped.
func (p *ApplyPipeline) mutate(ctx context.Context, diagramID uuid.UUID, tables reconcile.TableChanges, rels reconcile.RelationshipChanges) error {
	if len(tables.Remove) > 0 {
		if err := p.store.RemoveTables(ctx, diagramID, tableIDs(tables.Remove)); err != nil {
			return fmt.Errorf("remove tables: %w", err)
		}
	}
	if len(rels.Remove) > 0 {
		if err := p.store.RemoveRelationships(ctx, diagramID, relationshipIDs(rels.Remove)); err != nil {
			return fmt.Errorf("remove relationships: %w", err)
		}
	}
	if len(tables.Update) > 0 {
		updates := reconcile.TableChanges{Update: tables.Update}
		err := p.store.UpdateTablesState(ctx, diagramID, func(current []models.Table) []models.Table {
			return reconcile.MergeTables(current, updates)
		})
		if err != nil {
			return fmt.Errorf("update tables: %w", err)
		}
	}
	if len(tables.Add) > 0 {
		if err := p.store.AddTables(ctx, diagramID, tables.Add); err != nil {
			return fmt.Errorf("add tables: %w", err)
		}
	}
	if len(rels.Add) > 0 {
		if err := p.store.AddRelationships(ctx, diagramID, rels.Add); err != nil {
			return fmt.Errorf("add relationships: %w", err)
		}
	}
	return nil
}

// CanonicalText regenerates the baseline text for a stored diagram.
func (p *ApplyPipeline) CanonicalText(ctx context.Context, diagramID uuid.UUID) (string, error) {
	diagram, err := p.store.GetDiagram(ctx, diagramID)
	if err != nil {
		return "", fmt.Errorf("load diagram: %w", err)
	}
	if diagram == nil {
		return "", ErrDiagramNotFound
	}
	return p.regenerate(diagram), nil
}

// regenerate produces the canonical editor text for a diagram snapshot.
// The text must survive its own re-import; when generation fails or emits
// something unparseable the baseline falls back to empty text and the
// failure surfaces as a notification, never as an error.
func (p *ApplyPipeline) regenerate(d *models.Diagram) string {
	text, err := dbml.Generate(d, dbml.GenerateOptions{})
	if err == nil {
		if perr := dbml.Validate(text); perr != nil {
			err = fmt.Errorf("generated text does not parse: %w", perr)
		}
	}
	if err != nil {
		p.logger.Warn("DBML generation failed",
			zap.String("diagram_id", d.ID.String()),
			zap.Error(err))
		p.notifier.Notify(Notification{
			Severity:    SeverityError,
			Title:       "Could not generate DBML",
			Description: "The current diagram could not be serialized to DBML.",
		})
		return ""
	}
	return text
}

func tableIDs(tables []models.Table) []uuid.UUID {
	ids := make([]uuid.UUID, len(tables))
	for i := range tables {
		ids[i] = tables[i].ID
	}
	return ids
}

func relationshipIDs(rels []models.Relationship) []uuid.UUID {
	ids := make([]uuid.UUID, len(rels))
	for i := range rels {
		ids[i] = rels[i].ID
	}
	return ids
}
