package dbml

import (
	"github.com/google/uuid"
)

// Import parses a DBML script into a Schema. Imported tables, fields and
// indexes receive freshly generated ids; matching them back onto a live
// diagram is the reconciler's job. Unqualified table names get the
// dialect's default schema so keys compare consistently.
//
// A failed parse returns a *ParseError.
func Import(text string, dialect Dialect) (*Schema, error) {
	schema, err := parse(text)
	if err != nil {
		return nil, ExtractParseError(err)
	}
	def := DefaultSchema(dialect)
	for i := range schema.Tables {
		t := &schema.Tables[i]
		if t.Schema == "" {
			t.Schema = def
		}
		t.ID = uuid.New()
		for j := range t.Fields {
			t.Fields[j].ID = uuid.New()
		}
		for j := range t.Indexes {
			t.Indexes[j].ID = uuid.New()
		}
	}
	for i := range schema.Refs {
		if schema.Refs[i].Source.Schema == "" {
			schema.Refs[i].Source.Schema = def
		}
		if schema.Refs[i].Target.Schema == "" {
			schema.Refs[i].Target.Schema = def
		}
	}
	return schema, nil
}

// Validate parses the script without building anything and returns the
// first error, or nil when the script is well formed.
func Validate(text string) *ParseError {
	if _, err := parse(text); err != nil {
		return ExtractParseError(err)
	}
	return nil
}
