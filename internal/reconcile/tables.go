// Package reconcile diffs a freshly imported schema against live diagram
// state. Matching is by name, never by imported id, so everything that
// survives keeps its stable identity: table and field ids, canvas
// positions and colors.
package reconcile

import (
	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// TableChanges is the outcome of the table pass. Updates carry the
// imported content under the existing identity.
type TableChanges struct {
	Add    []models.Table
	Update []models.Table
	Remove []models.Table
}

// Empty reports whether the pass found nothing to do.
func (c TableChanges) Empty() bool {
	return len(c.Add) == 0 && len(c.Update) == 0 && len(c.Remove) == 0
}

// Tables matches imported tables against current ones by schema-qualified
// name. A matched table becomes an update that keeps the existing id,
// position and color, with field ids carried over by field name. An
// unmatched imported table is an addition under its fresh id. Current
// tables left unmatched are removals.
//
// Renames are not inferred: a renamed table or field comes back as a
// removal plus an addition.
func Tables(current, imported []models.Table) TableChanges {
	var changes TableChanges

	lookup := make(map[string]models.Table, len(current))
	for _, t := range current {
		// Duplicate keys should not happen under store invariants; the
		// last one wins.
		lookup[t.Key()] = t
	}

	for _, imp := range imported {
		existing, ok := lookup[imp.Key()]
		if !ok {
			changes.Add = append(changes.Add, imp)
			continue
		}
		merged := imp
		merged.Fields = make([]models.Field, len(imp.Fields))
		copy(merged.Fields, imp.Fields)
		merged.ID = existing.ID
		merged.X = existing.X
		merged.Y = existing.Y
		merged.Color = existing.Color
		for i := range merged.Fields {
			if prev := existing.FieldByName(merged.Fields[i].Name); prev != nil {
				merged.Fields[i].ID = prev.ID
			}
		}
		changes.Update = append(changes.Update, merged)
		delete(lookup, imp.Key())
	}

	for _, t := range current {
		if leftover, ok := lookup[t.Key()]; ok && leftover.ID == t.ID {
			changes.Remove = append(changes.Remove, t)
		}
	}
	return changes
}

// MergeTables applies table changes onto the current slice, preserving
// the order of surviving tables and appending additions.
func MergeTables(current []models.Table, changes TableChanges) []models.Table {
	removed := make(map[uuid.UUID]bool, len(changes.Remove))
	for i := range changes.Remove {
		removed[changes.Remove[i].ID] = true
	}
	updated := make(map[uuid.UUID]models.Table, len(changes.Update))
	for i := range changes.Update {
		updated[changes.Update[i].ID] = changes.Update[i]
	}

	merged := make([]models.Table, 0, len(current)+len(changes.Add))
	for _, t := range current {
		if removed[t.ID] {
			continue
		}
		if u, ok := updated[t.ID]; ok {
			merged = append(merged, u)
			continue
		}
		merged = append(merged, t)
	}
	merged = append(merged, changes.Add...)
	return merged
}
