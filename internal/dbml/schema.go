// Package dbml parses and generates DBML (database markup language)
// scripts and converts them to and from diagram tables.
package dbml

import (
	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// Schema is the result of importing a DBML script. Tables carry freshly
// generated ids that are unrelated to any diagram; references are kept by
// name because resolution against a live diagram happens later, during
// reconciliation.
type Schema struct {
	Tables []models.Table
	Refs   []Ref
}

// TableByKey returns the imported table with the given schema-qualified
// key, or nil.
func (s *Schema) TableByKey(key string) *models.Table {
	for i := range s.Tables {
		if s.Tables[i].Key() == key {
			return &s.Tables[i]
		}
	}
	return nil
}

// RefEndpoint names one end of a reference. Field-level resolution is by
// name only.
type RefEndpoint struct {
	Schema string
	Table  string
	Field  string
}

// Ref is a parsed relationship line. Cardinalities follow the DBML
// operators: "<" is one source to many targets, ">" many to one, "-"
// one to one and "<>" many to many.
type Ref struct {
	Name              string
	Source            RefEndpoint
	Target            RefEndpoint
	SourceCardinality models.Cardinality
	TargetCardinality models.Cardinality
}

// Dialect selects SQL-flavor specific behavior: default schema names on
// import and identifier quoting on DDL export.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectMSSQL    Dialect = "mssql"
)

// DialectFor maps a diagram's database type onto an import/export
// dialect. Anything without a dedicated dialect falls back to postgres.
func DialectFor(dt models.DatabaseType) Dialect {
	switch dt {
	case models.DatabaseTypeMySQL, models.DatabaseTypeMariaDB:
		return DialectMySQL
	case models.DatabaseTypeSQLServer:
		return DialectMSSQL
	default:
		return DialectPostgres
	}
}

// DefaultSchema returns the schema assigned to unqualified table names in
// the given dialect.
func DefaultSchema(d Dialect) string {
	switch d {
	case DialectMySQL:
		return ""
	case DialectMSSQL:
		return "dbo"
	default:
		return "public"
	}
}
