package models

import (
	"time"

	"github.com/google/uuid"
)

// DatabaseType identifies the SQL flavor a diagram targets. It drives
// dialect selection for DBML import/export and DDL generation.
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "postgresql"
	DatabaseTypeMySQL      DatabaseType = "mysql"
	DatabaseTypeMariaDB    DatabaseType = "mariadb"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
	DatabaseTypeSQLServer  DatabaseType = "sql_server"
	DatabaseTypeGeneric    DatabaseType = "generic"
)

func (t DatabaseType) Valid() bool {
	switch t {
	case DatabaseTypePostgreSQL, DatabaseTypeMySQL, DatabaseTypeMariaDB,
		DatabaseTypeSQLite, DatabaseTypeSQLServer, DatabaseTypeGeneric:
		return true
	}
	return false
}

type Diagram struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	DatabaseType  DatabaseType   `json:"database_type"`
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (d *Diagram) Prepare() {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.DatabaseType == "" {
		d.DatabaseType = DatabaseTypeGeneric
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

// TableByID returns the table with the given id, or nil.
func (d *Diagram) TableByID(id uuid.UUID) *Table {
	for i := range d.Tables {
		if d.Tables[i].ID == id {
			return &d.Tables[i]
		}
	}
	return nil
}
