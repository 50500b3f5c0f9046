package models

import (
	"time"

	"github.com/google/uuid"
)

// Cardinality of one end of a relationship.
type Cardinality string

const (
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Relationship is a foreign-key edge between two table fields. Endpoints
// are stored by stable table/field ids so edges keep pointing at the same
// nodes while names change underneath them.
type Relationship struct {
	ID                uuid.UUID   `json:"id"`
	Name              string      `json:"name"`
	SourceSchema      string      `json:"source_schema,omitempty"`
	SourceTableID     uuid.UUID   `json:"source_table_id"`
	SourceFieldID     uuid.UUID   `json:"source_field_id"`
	TargetSchema      string      `json:"target_schema,omitempty"`
	TargetTableID     uuid.UUID   `json:"target_table_id"`
	TargetFieldID     uuid.UUID   `json:"target_field_id"`
	SourceCardinality Cardinality `json:"source_cardinality"`
	TargetCardinality Cardinality `json:"target_cardinality"`
	CreatedAt         time.Time   `json:"created_at"`
}
