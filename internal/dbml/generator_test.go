package dbml

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

func sampleDiagram() *models.Diagram {
	usersID := uuid.New()
	usersIDField := uuid.New()
	postsID := uuid.New()
	postsAuthorField := uuid.New()
	return &models.Diagram{
		ID:           uuid.New(),
		Name:         "sample",
		DatabaseType: models.DatabaseTypePostgreSQL,
		Tables: []models.Table{
			{
				ID:     usersID,
				Schema: "public",
				Name:   "users",
				Fields: []models.Field{
					{ID: usersIDField, Name: "id", Type: "integer", PrimaryKey: true, Increment: true},
					{ID: uuid.New(), Name: "email", Type: "varchar(255)", Unique: true},
				},
			},
			{
				ID:     postsID,
				Schema: "public",
				Name:   "posts",
				Fields: []models.Field{
					{ID: uuid.New(), Name: "id", Type: "int", PrimaryKey: true},
					{ID: postsAuthorField, Name: "author_id", Type: "int"},
				},
				Indexes: []models.Index{
					{ID: uuid.New(), Name: "idx_posts_author", FieldNames: []string{"author_id"}},
				},
			},
		},
		Relationships: []models.Relationship{
			{
				ID:                uuid.New(),
				Name:              "posts_author_id_users_id",
				SourceSchema:      "public",
				SourceTableID:     postsID,
				SourceFieldID:     postsAuthorField,
				TargetSchema:      "public",
				TargetTableID:     usersID,
				TargetFieldID:     usersIDField,
				SourceCardinality: models.CardinalityMany,
				TargetCardinality: models.CardinalityOne,
			},
		},
	}
}

func TestGenerateCanonicalScript(t *testing.T) {
	got, err := Generate(sampleDiagram(), GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	want := `Table users {
  id integer [pk, increment]
  email varchar(255) [unique, not null]
}

Table posts {
  id int [pk]
  author_id int [not null]

  Indexes {
    author_id [name: 'idx_posts_author']
  }
}

Ref posts_author_id_users_id: posts.author_id > users.id
`
	if got != want {
		t.Errorf("Generate() =\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	d := sampleDiagram()
	first, err := Generate(d, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	second, err := Generate(d, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if first != second {
		t.Error("two generations of the same diagram differ")
	}
}

func TestGenerateRoundTrip(t *testing.T) {
	d := sampleDiagram()
	text, err := Generate(d, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	schema, err := Import(text, DialectFor(d.DatabaseType))
	if err != nil {
		t.Fatalf("Import(Generate()) error: %v", err)
	}
	if len(schema.Tables) != len(d.Tables) {
		t.Fatalf("round trip got %d tables, want %d", len(schema.Tables), len(d.Tables))
	}
	for i := range d.Tables {
		if schema.Tables[i].Key() != d.Tables[i].Key() {
			t.Errorf("round trip table %d key = %s, want %s", i, schema.Tables[i].Key(), d.Tables[i].Key())
		}
		if len(schema.Tables[i].Fields) != len(d.Tables[i].Fields) {
			t.Errorf("round trip table %s got %d fields, want %d",
				d.Tables[i].Name, len(schema.Tables[i].Fields), len(d.Tables[i].Fields))
			continue
		}
		for j := range d.Tables[i].Fields {
			if schema.Tables[i].Fields[j].Name != d.Tables[i].Fields[j].Name {
				t.Errorf("round trip field = %q, want %q",
					schema.Tables[i].Fields[j].Name, d.Tables[i].Fields[j].Name)
			}
		}
	}
	if len(schema.Refs) != 1 {
		t.Fatalf("round trip got %d refs, want 1", len(schema.Refs))
	}
	ref := schema.Refs[0]
	if ref.Source.Table != "posts" || ref.Source.Field != "author_id" ||
		ref.Target.Table != "users" || ref.Target.Field != "id" {
		t.Errorf("round trip ref = %+v, want posts.author_id > users.id", ref)
	}
	if ref.SourceCardinality != models.CardinalityMany || ref.TargetCardinality != models.CardinalityOne {
		t.Errorf("round trip cardinalities = %s/%s, want many/one", ref.SourceCardinality, ref.TargetCardinality)
	}
}

func TestGenerateQuotesAwkwardNames(t *testing.T) {
	d := &models.Diagram{
		DatabaseType: models.DatabaseTypePostgreSQL,
		Tables: []models.Table{
			{ID: uuid.New(), Schema: "public", Name: "table", Fields: []models.Field{
				{ID: uuid.New(), Name: "order line", Type: "int"},
				{ID: uuid.New(), Name: "select", Type: "double precision"},
			}},
		},
	}
	got, err := Generate(d, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(got, `Table "table" {`) {
		t.Errorf("keyword table name should be quoted, got:\n%s", got)
	}
	if !strings.Contains(got, `"order line" int`) {
		t.Errorf("name with a space should be quoted, got:\n%s", got)
	}
	if !strings.Contains(got, `select "double precision"`) {
		t.Errorf("multi-word type should be quoted, got:\n%s", got)
	}
	if _, err := Import(got, DialectPostgres); err != nil {
		t.Errorf("quoted output should reimport cleanly, got: %v", err)
	}
}

func TestGenerateNormalizeNames(t *testing.T) {
	d := &models.Diagram{
		DatabaseType: models.DatabaseTypePostgreSQL,
		Tables: []models.Table{
			{ID: uuid.New(), Schema: "public", Name: "order  items", Fields: []models.Field{
				{ID: uuid.New(), Name: "unit price", Type: "numeric(10,2)"},
			}},
		},
	}
	got, err := Generate(d, GenerateOptions{NormalizeNames: true})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(got, "Table order_items {") {
		t.Errorf("whitespace in table name should collapse to underscores, got:\n%s", got)
	}
	if !strings.Contains(got, "unit_price numeric(10,2)") {
		t.Errorf("whitespace in field name should collapse to underscores, got:\n%s", got)
	}
}

func TestGenerateOmitsDefaultSchemaOnly(t *testing.T) {
	d := &models.Diagram{
		DatabaseType: models.DatabaseTypePostgreSQL,
		Tables: []models.Table{
			{ID: uuid.New(), Schema: "public", Name: "users", Fields: []models.Field{{ID: uuid.New(), Name: "id", Type: "int"}}},
			{ID: uuid.New(), Schema: "blog", Name: "posts", Fields: []models.Field{{ID: uuid.New(), Name: "id", Type: "int"}}},
		},
	}
	got, err := Generate(d, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if !strings.Contains(got, "Table users {") {
		t.Errorf("default schema should be omitted, got:\n%s", got)
	}
	if !strings.Contains(got, "Table blog.posts {") {
		t.Errorf("non-default schema should be qualified, got:\n%s", got)
	}
}

func TestGenerateDuplicateTableFails(t *testing.T) {
	d := &models.Diagram{
		DatabaseType: models.DatabaseTypePostgreSQL,
		Tables: []models.Table{
			{ID: uuid.New(), Schema: "public", Name: "users"},
			{ID: uuid.New(), Schema: "public", Name: "users"},
		},
	}
	if _, err := Generate(d, GenerateOptions{}); err == nil {
		t.Error("Generate() with duplicate table keys succeeded, want error")
	}
}

func TestGenerateSkipsDanglingRelationships(t *testing.T) {
	d := sampleDiagram()
	d.Relationships = append(d.Relationships, models.Relationship{
		ID:            uuid.New(),
		Name:          "ghost",
		SourceTableID: uuid.New(),
		TargetTableID: uuid.New(),
	})
	got, err := Generate(d, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if strings.Contains(got, "ghost") {
		t.Errorf("dangling relationship should be dropped, got:\n%s", got)
	}
	if !strings.Contains(got, "Ref posts_author_id_users_id:") {
		t.Errorf("valid relationship should survive, got:\n%s", got)
	}
}

func TestGenerateEmptyDiagram(t *testing.T) {
	got, err := Generate(&models.Diagram{DatabaseType: models.DatabaseTypePostgreSQL}, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "" {
		t.Errorf("Generate(empty diagram) = %q, want empty text", got)
	}
}
