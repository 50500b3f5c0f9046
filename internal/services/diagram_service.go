package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/dbml"
	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
	"github.com/skyiron/chartdbDiagramsSQL/internal/reconcile"
	"github.com/skyiron/chartdbDiagramsSQL/internal/repositories"
)

var ErrDiagramNotFound = errors.New("diagram not found")

// Grid spacing for tables seeded from a DBML script, so a fresh diagram
// does not stack every table at the origin.
const (
	gridSpacingX = 320.0
	gridSpacingY = 220.0
)

type DiagramService struct {
	store  repositories.DiagramStore
	logger *zap.Logger
}

func NewDiagramService(store repositories.DiagramStore, logger *zap.Logger) *DiagramService {
	return &DiagramService{store: store, logger: logger}
}

type CreateDiagramRequest struct {
	Name         string              `json:"name" binding:"required"`
	DatabaseType models.DatabaseType `json:"database_type"`
	DBML         string              `json:"dbml"`
}

// Create persists a new diagram, optionally seeded from a DBML script.
// Seeding runs the same reconciliation as an apply, against an empty
// diagram, so field and table ids are minted exactly once.
func (s *DiagramService) Create(ctx context.Context, req *CreateDiagramRequest) (*models.Diagram, error) {
	if req.DatabaseType != "" && !req.DatabaseType.Valid() {
		return nil, fmt.Errorf("unknown database type %q", req.DatabaseType)
	}

	d := &models.Diagram{Name: req.Name, DatabaseType: req.DatabaseType}
	d.Prepare()

	if strings.TrimSpace(req.DBML) != "" {
		schema, err := dbml.Import(req.DBML, dbml.DialectFor(d.DatabaseType))
		if err != nil {
			return nil, err
		}
		tableChanges := reconcile.Tables(nil, schema.Tables)
		spreadTables(tableChanges.Add)
		relChanges := reconcile.Relationships(reconcile.RelationshipInput{
			Tables:   tableChanges,
			Imported: schema,
			Logger:   s.logger,
		})
		d.Tables = reconcile.MergeTables(nil, tableChanges)
		d.Relationships = reconcile.MergeRelationships(nil, relChanges)
	}

	if err := s.store.CreateDiagram(ctx, d); err != nil {
		return nil, fmt.Errorf("create diagram: %w", err)
	}
	return d, nil
}

func (s *DiagramService) Get(ctx context.Context, id uuid.UUID) (*models.Diagram, error) {
	d, err := s.store.GetDiagram(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load diagram: %w", err)
	}
	if d == nil {
		return nil, ErrDiagramNotFound
	}
	return d, nil
}

func (s *DiagramService) List(ctx context.Context) ([]models.Diagram, error) {
	return s.store.ListDiagrams(ctx)
}

func (s *DiagramService) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.store.GetDiagram(ctx, id)
	if err != nil {
		return fmt.Errorf("load diagram: %w", err)
	}
	if d == nil {
		return ErrDiagramNotFound
	}
	return s.store.DeleteDiagram(ctx, id)
}

// GenerateDBML serializes a stored diagram to DBML text.
func (s *DiagramService) GenerateDBML(ctx context.Context, id uuid.UUID, normalizeNames bool) (string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	text, err := dbml.Generate(d, dbml.GenerateOptions{NormalizeNames: normalizeNames})
	if err != nil {
		return "", fmt.Errorf("generate DBML: %w", err)
	}
	return text, nil
}

// ExportDDL renders the diagram as a SQL baseline script in its dialect.
func (s *DiagramService) ExportDDL(ctx context.Context, id uuid.UUID) (string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	script, err := dbml.ExportDDL(d, dbml.DialectFor(d.DatabaseType))
	if err != nil {
		return "", fmt.Errorf("export DDL: %w", err)
	}
	return script, nil
}

func spreadTables(tables []models.Table) {
	if len(tables) == 0 {
		return
	}
	cols := int(math.Ceil(math.Sqrt(float64(len(tables)))))
	for i := range tables {
		tables[i].X = float64(i%cols) * gridSpacingX
		tables[i].Y = float64(i/cols) * gridSpacingY
	}
}
