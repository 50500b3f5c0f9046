package models

import "github.com/google/uuid"

// Table is a single table node on the diagram canvas. Layout attributes
// (X, Y, Color) belong to the diagram, not the database schema, and must
// survive schema re-imports.
type Table struct {
	ID      uuid.UUID `json:"id"`
	Schema  string    `json:"schema,omitempty"`
	Name    string    `json:"name"`
	Fields  []Field   `json:"fields"`
	Indexes []Index   `json:"indexes,omitempty"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Color   string    `json:"color,omitempty"`
}

// Key returns the identity key a table is matched by across schema
// re-imports: the schema-qualified name.
func (t *Table) Key() string {
	return t.Schema + "." + t.Name
}

// FieldByName returns the first field with the given name, or nil.
func (t *Table) FieldByName(name string) *Field {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// FieldByID returns the field with the given id, or nil.
func (t *Table) FieldByID(id uuid.UUID) *Field {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return &t.Fields[i]
		}
	}
	return nil
}

type Field struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Nullable   bool      `json:"nullable"`
	PrimaryKey bool      `json:"primary_key"`
	Unique     bool      `json:"unique"`
	Increment  bool      `json:"increment,omitempty"`
	Default    *string   `json:"default,omitempty"`
}

type Index struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name,omitempty"`
	FieldNames []string  `json:"field_names"`
	Unique     bool      `json:"unique"`
}
