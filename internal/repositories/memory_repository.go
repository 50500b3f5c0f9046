package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// MemoryDiagramRepository keeps diagrams in process memory. It backs the
// default zero-config deployment and the test suites. All reads and writes
// deep-copy so callers never share slices with the store.
type MemoryDiagramRepository struct {
	mu       sync.RWMutex
	diagrams map[uuid.UUID]*models.Diagram
}

func NewMemoryDiagramRepository() *MemoryDiagramRepository {
	return &MemoryDiagramRepository{diagrams: make(map[uuid.UUID]*models.Diagram)}
}

func (r *MemoryDiagramRepository) CreateDiagram(_ context.Context, d *models.Diagram) error {
	d.Prepare()

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := copyDiagram(d)
	r.diagrams[d.ID] = &stored
	return nil
}

func (r *MemoryDiagramRepository) GetDiagram(_ context.Context, id uuid.UUID) (*models.Diagram, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.diagrams[id]
	if !ok {
		return nil, nil
	}
	out := copyDiagram(d)
	return &out, nil
}

func (r *MemoryDiagramRepository) ListDiagrams(_ context.Context) ([]models.Diagram, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	diagrams := make([]models.Diagram, 0, len(r.diagrams))
	for _, d := range r.diagrams {
		diagrams = append(diagrams, models.Diagram{
			ID:           d.ID,
			Name:         d.Name,
			DatabaseType: d.DatabaseType,
			CreatedAt:    d.CreatedAt,
			UpdatedAt:    d.UpdatedAt,
		})
	}
	sort.Slice(diagrams, func(i, j int) bool {
		return diagrams[i].UpdatedAt.After(diagrams[j].UpdatedAt)
	})
	return diagrams, nil
}

func (r *MemoryDiagramRepository) DeleteDiagram(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.diagrams, id)
	return nil
}

func (r *MemoryDiagramRepository) AddTables(_ context.Context, diagramID uuid.UUID, tables []models.Table) error {
	if len(tables) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagrams[diagramID]
	if !ok {
		return nil
	}
	d.Tables = append(d.Tables, copyTables(tables)...)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDiagramRepository) UpdateTablesState(_ context.Context, diagramID uuid.UUID, mutate func(current []models.Table) []models.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagrams[diagramID]
	if !ok {
		return nil
	}
	d.Tables = copyTables(mutate(copyTables(d.Tables)))
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDiagramRepository) RemoveTables(_ context.Context, diagramID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagrams[diagramID]
	if !ok {
		return nil
	}
	remove := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := d.Tables[:0]
	for _, t := range d.Tables {
		if !remove[t.ID] {
			kept = append(kept, t)
		}
	}
	d.Tables = kept
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDiagramRepository) AddRelationships(_ context.Context, diagramID uuid.UUID, rels []models.Relationship) error {
	if len(rels) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagrams[diagramID]
	if !ok {
		return nil
	}
	d.Relationships = append(d.Relationships, rels...)
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDiagramRepository) RemoveRelationships(_ context.Context, diagramID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.diagrams[diagramID]
	if !ok {
		return nil
	}
	remove := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := d.Relationships[:0]
	for _, rel := range d.Relationships {
		if !remove[rel.ID] {
			kept = append(kept, rel)
		}
	}
	d.Relationships = kept
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func copyDiagram(d *models.Diagram) models.Diagram {
	out := *d
	out.Tables = copyTables(d.Tables)
	out.Relationships = append([]models.Relationship(nil), d.Relationships...)
	return out
}

func copyTables(tables []models.Table) []models.Table {
	if tables == nil {
		return nil
	}
	out := make([]models.Table, len(tables))
	for i, t := range tables {
		out[i] = t
		out[i].Fields = append([]models.Field(nil), t.Fields...)
		out[i].Indexes = copyIndexes(t.Indexes)
	}
	return out
}

func copyIndexes(indexes []models.Index) []models.Index {
	if indexes == nil {
		return nil
	}
	out := make([]models.Index, len(indexes))
	for i, idx := range indexes {
		out[i] = idx
		out[i].FieldNames = append([]string(nil), idx.FieldNames...)
	}
	return out
}
