package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/dbml"
	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// RelationshipChanges is the outcome of the relationship pass.
type RelationshipChanges struct {
	Add    []models.Relationship
	Remove []models.Relationship
}

// Empty reports whether the pass found nothing to do.
func (c RelationshipChanges) Empty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0
}

// RelationshipInput bundles the state the relationship pass works on.
// Tables must be the result of reconciling CurrentTables against
// Imported.Tables.
type RelationshipInput struct {
	Current       []models.Relationship
	CurrentTables []models.Table
	Tables        TableChanges
	Imported      *dbml.Schema
	Logger        *zap.Logger
}

// Relationships decides which edges survive a re-import. An existing
// relationship is removed when an endpoint table was removed, when its
// field can no longer be resolved by name in the updated table, or when
// no imported ref matches its endpoints in either direction. Imported
// refs that match no survivor become additions with fresh ids; refs
// whose endpoints cannot be resolved are skipped without failing the
// run.
func Relationships(in RelationshipInput) RelationshipChanges {
	logger := in.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	removedTables := make(map[uuid.UUID]bool, len(in.Tables.Remove))
	for i := range in.Tables.Remove {
		removedTables[in.Tables.Remove[i].ID] = true
	}
	updatedTables := make(map[uuid.UUID]*models.Table, len(in.Tables.Update))
	for i := range in.Tables.Update {
		updatedTables[in.Tables.Update[i].ID] = &in.Tables.Update[i]
	}
	currentTables := make(map[uuid.UUID]*models.Table, len(in.CurrentTables))
	for i := range in.CurrentTables {
		currentTables[in.CurrentTables[i].ID] = &in.CurrentTables[i]
	}

	// Structural identity of every imported ref, in both directions.
	importedSet := make(map[string]bool, 2*len(in.Imported.Refs))
	for _, ref := range in.Imported.Refs {
		importedSet[endpointPair(ref.Source, ref.Target)] = true
		importedSet[endpointPair(ref.Target, ref.Source)] = true
	}

	var changes RelationshipChanges
	removed := make(map[uuid.UUID]bool)
	for _, rel := range in.Current {
		reason := removalReason(&rel, currentTables, removedTables, updatedTables, importedSet)
		if reason == "" {
			continue
		}
		logger.Debug("removing relationship",
			zap.String("relationship", rel.Name),
			zap.String("reason", reason))
		changes.Remove = append(changes.Remove, rel)
		removed[rel.ID] = true
	}

	// Post-reconciliation tables carry the stable ids additions must
	// point at.
	postTables := make(map[string]*models.Table, len(in.Tables.Update)+len(in.Tables.Add))
	for i := range in.Tables.Update {
		postTables[in.Tables.Update[i].Key()] = &in.Tables.Update[i]
	}
	for i := range in.Tables.Add {
		postTables[in.Tables.Add[i].Key()] = &in.Tables.Add[i]
	}

	// Dedupe against survivors in either direction.
	surviving := make(map[string]bool)
	for _, rel := range in.Current {
		if removed[rel.ID] {
			continue
		}
		surviving[idPair(rel.SourceTableID, rel.SourceFieldID, rel.TargetTableID, rel.TargetFieldID)] = true
		surviving[idPair(rel.TargetTableID, rel.TargetFieldID, rel.SourceTableID, rel.SourceFieldID)] = true
	}

	now := time.Now().UTC()
	for _, ref := range in.Imported.Refs {
		srcTable, srcField, ok := resolveEndpoint(postTables, ref.Source)
		if !ok {
			logger.Warn("skipping imported relationship, source not found",
				zap.String("table", ref.Source.Table),
				zap.String("field", ref.Source.Field))
			continue
		}
		tgtTable, tgtField, ok := resolveEndpoint(postTables, ref.Target)
		if !ok {
			logger.Warn("skipping imported relationship, target not found",
				zap.String("table", ref.Target.Table),
				zap.String("field", ref.Target.Field))
			continue
		}
		key := idPair(srcTable.ID, srcField.ID, tgtTable.ID, tgtField.ID)
		if surviving[key] {
			continue
		}
		surviving[key] = true
		surviving[idPair(tgtTable.ID, tgtField.ID, srcTable.ID, srcField.ID)] = true

		changes.Add = append(changes.Add, models.Relationship{
			ID:                uuid.New(),
			Name:              fmt.Sprintf("%s_%s_%s_%s", srcTable.Name, srcField.Name, tgtTable.Name, tgtField.Name),
			SourceSchema:      srcTable.Schema,
			SourceTableID:     srcTable.ID,
			SourceFieldID:     srcField.ID,
			TargetSchema:      tgtTable.Schema,
			TargetTableID:     tgtTable.ID,
			TargetFieldID:     tgtField.ID,
			SourceCardinality: ref.SourceCardinality,
			TargetCardinality: ref.TargetCardinality,
			CreatedAt:         now,
		})
	}
	return changes
}

func removalReason(rel *models.Relationship, currentTables map[uuid.UUID]*models.Table,
	removedTables map[uuid.UUID]bool, updatedTables map[uuid.UUID]*models.Table,
	importedSet map[string]bool) string {

	if removedTables[rel.SourceTableID] || removedTables[rel.TargetTableID] {
		return "endpoint table removed"
	}
	srcTable := currentTables[rel.SourceTableID]
	tgtTable := currentTables[rel.TargetTableID]
	if srcTable == nil || tgtTable == nil {
		return "endpoint table missing"
	}
	srcField := srcTable.FieldByID(rel.SourceFieldID)
	tgtField := tgtTable.FieldByID(rel.TargetFieldID)
	if srcField == nil || tgtField == nil {
		return "endpoint field missing"
	}
	if upd, ok := updatedTables[rel.SourceTableID]; ok && upd.FieldByName(srcField.Name) == nil {
		return "source field dropped"
	}
	if upd, ok := updatedTables[rel.TargetTableID]; ok && upd.FieldByName(tgtField.Name) == nil {
		return "target field dropped"
	}
	src := dbml.RefEndpoint{Schema: srcTable.Schema, Table: srcTable.Name, Field: srcField.Name}
	tgt := dbml.RefEndpoint{Schema: tgtTable.Schema, Table: tgtTable.Name, Field: tgtField.Name}
	if !importedSet[endpointPair(src, tgt)] {
		return "absent from imported schema"
	}
	return ""
}

func resolveEndpoint(byKey map[string]*models.Table, e dbml.RefEndpoint) (*models.Table, *models.Field, bool) {
	t := byKey[e.Schema+"."+e.Table]
	if t == nil {
		return nil, nil, false
	}
	f := t.FieldByName(e.Field)
	if f == nil {
		return nil, nil, false
	}
	return t, f, true
}

func endpointPair(a, b dbml.RefEndpoint) string {
	return a.Schema + "." + a.Table + "." + a.Field + "->" + b.Schema + "." + b.Table + "." + b.Field
}

func idPair(aTable, aField, bTable, bField uuid.UUID) string {
	return aTable.String() + "/" + aField.String() + "->" + bTable.String() + "/" + bField.String()
}

// MergeRelationships applies relationship changes onto the current
// slice, preserving the order of survivors and appending additions.
func MergeRelationships(current []models.Relationship, changes RelationshipChanges) []models.Relationship {
	removed := make(map[uuid.UUID]bool, len(changes.Remove))
	for i := range changes.Remove {
		removed[changes.Remove[i].ID] = true
	}
	merged := make([]models.Relationship, 0, len(current)+len(changes.Add))
	for _, rel := range current {
		if removed[rel.ID] {
			continue
		}
		merged = append(merged, rel)
	}
	merged = append(merged, changes.Add...)
	return merged
}
