package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// DiagramStore is the persistence surface the services work against.
// Implementations exist for postgres, sqlite and memory.
//
// The five mutation methods are the building blocks of an apply run and
// are invoked in a fixed order: RemoveTables, RemoveRelationships,
// UpdateTablesState, AddTables, AddRelationships. Each mutation also
// bumps the diagram's updated_at.
type DiagramStore interface {
	CreateDiagram(ctx context.Context, d *models.Diagram) error
	// GetDiagram returns (nil, nil) when the diagram does not exist.
	GetDiagram(ctx context.Context, id uuid.UUID) (*models.Diagram, error)
	// ListDiagrams returns diagram metadata without tables or
	// relationships.
	ListDiagrams(ctx context.Context) ([]models.Diagram, error)
	DeleteDiagram(ctx context.Context, id uuid.UUID) error

	AddTables(ctx context.Context, diagramID uuid.UUID, tables []models.Table) error
	// UpdateTablesState feeds the diagram's current tables through mutate
	// and persists whatever comes back, keeping slice order.
	UpdateTablesState(ctx context.Context, diagramID uuid.UUID, mutate func(current []models.Table) []models.Table) error
	RemoveTables(ctx context.Context, diagramID uuid.UUID, ids []uuid.UUID) error
	AddRelationships(ctx context.Context, diagramID uuid.UUID, rels []models.Relationship) error
	RemoveRelationships(ctx context.Context, diagramID uuid.UUID, ids []uuid.UUID) error
}

// DraftStore keeps unapplied editor drafts keyed by diagram, so a closed
// tab can come back to its text.
type DraftStore interface {
	SaveDraft(ctx context.Context, diagramID uuid.UUID, content string) error
	// LoadDraft returns ("", false, nil) when no draft is stored.
	LoadDraft(ctx context.Context, diagramID uuid.UUID) (string, bool, error)
	ClearDraft(ctx context.Context, diagramID uuid.UUID) error
}
