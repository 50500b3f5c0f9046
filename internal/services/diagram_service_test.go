package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skyiron/chartdbDiagramsSQL/internal/dbml"
	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
	"github.com/skyiron/chartdbDiagramsSQL/internal/repositories"
)

func newDiagramService() (*DiagramService, repositories.DiagramStore) {
	store := repositories.NewMemoryDiagramRepository()
	return NewDiagramService(store, zap.NewNop()), store
}

const shopDBML = `Table customers {
  id integer [pk]
}

Table orders {
  id integer [pk]
  customer_id integer [not null, ref: > customers.id]
}

Table products {
  id integer [pk]
}

Table order_items {
  id integer [pk]
  order_id integer [not null, ref: > orders.id]
  product_id integer [not null, ref: > products.id]
}

Table reviews {
  id integer [pk]
}
`

func TestCreateDiagramSeedsFromDBML(t *testing.T) {
	svc, store := newDiagramService()

	created, err := svc.Create(context.Background(), &CreateDiagramRequest{
		Name: "shop",
		DBML: shopDBML,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.DatabaseType != models.DatabaseTypeGeneric {
		t.Errorf("DatabaseType = %s, want generic default", created.DatabaseType)
	}

	stored, err := store.GetDiagram(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetDiagram() error: %v", err)
	}
	if stored == nil || len(stored.Tables) != 5 {
		t.Fatalf("stored %v tables, want 5", stored)
	}

	// Five tables land on a 3-column grid in declaration order.
	wantPos := map[string][2]float64{
		"customers":   {0, 0},
		"orders":      {320, 0},
		"products":    {640, 0},
		"order_items": {0, 220},
		"reviews":     {320, 220},
	}
	for _, table := range stored.Tables {
		want, ok := wantPos[table.Name]
		if !ok {
			t.Errorf("unexpected table %s", table.Name)
			continue
		}
		if table.X != want[0] || table.Y != want[1] {
			t.Errorf("%s at (%v, %v), want (%v, %v)", table.Name, table.X, table.Y, want[0], want[1])
		}
		if table.ID == uuid.Nil {
			t.Errorf("%s has no id", table.Name)
		}
	}

	if len(stored.Relationships) != 3 {
		t.Fatalf("stored %d relationships, want 3", len(stored.Relationships))
	}
	for _, rel := range stored.Relationships {
		src := stored.TableByID(rel.SourceTableID)
		tgt := stored.TableByID(rel.TargetTableID)
		if src == nil || tgt == nil {
			t.Fatalf("relationship %s has unresolved endpoints", rel.Name)
		}
		if src.FieldByID(rel.SourceFieldID) == nil || tgt.FieldByID(rel.TargetFieldID) == nil {
			t.Errorf("relationship %s points at missing fields", rel.Name)
		}
	}
}

func TestCreateDiagramInvalidDBML(t *testing.T) {
	svc, store := newDiagramService()

	_, err := svc.Create(context.Background(), &CreateDiagramRequest{
		Name: "broken",
		DBML: "Table users {\n  id integer\n",
	})
	var perr *dbml.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Create() error = %v, want *dbml.ParseError", err)
	}

	list, err := store.ListDiagrams(context.Background())
	if err != nil {
		t.Fatalf("ListDiagrams() error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("invalid DBML still created %d diagrams", len(list))
	}
}

func TestCreateDiagramUnknownDatabaseType(t *testing.T) {
	svc, _ := newDiagramService()

	_, err := svc.Create(context.Background(), &CreateDiagramRequest{
		Name:         "bad",
		DatabaseType: models.DatabaseType("oracle"),
	})
	if err == nil {
		t.Fatal("Create() accepted an unknown database type")
	}
}

func TestGenerateDBMLNormalizeNames(t *testing.T) {
	svc, _ := newDiagramService()

	created, err := svc.Create(context.Background(), &CreateDiagramRequest{
		Name: "legacy",
		DBML: "Table \"user accounts\" {\n  id integer [pk]\n}\n",
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	raw, err := svc.GenerateDBML(context.Background(), created.ID, false)
	if err != nil {
		t.Fatalf("GenerateDBML() error: %v", err)
	}
	if !strings.Contains(raw, `"user accounts"`) {
		t.Errorf("raw output lost the quoted name:\n%s", raw)
	}

	normalized, err := svc.GenerateDBML(context.Background(), created.ID, true)
	if err != nil {
		t.Fatalf("GenerateDBML(normalize) error: %v", err)
	}
	if !strings.Contains(normalized, "user_accounts") || strings.Contains(normalized, `"user accounts"`) {
		t.Errorf("normalized output:\n%s", normalized)
	}
}

func TestDeleteDiagramMissing(t *testing.T) {
	svc, _ := newDiagramService()

	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrDiagramNotFound) {
		t.Errorf("Delete() error = %v, want ErrDiagramNotFound", err)
	}
}

func TestExportDDLFromSeededDiagram(t *testing.T) {
	svc, _ := newDiagramService()

	created, err := svc.Create(context.Background(), &CreateDiagramRequest{
		Name:         "shop",
		DatabaseType: models.DatabaseTypePostgreSQL,
		DBML:         shopDBML,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	script, err := svc.ExportDDL(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("ExportDDL() error: %v", err)
	}
	if !strings.Contains(script, "CREATE TABLE") || !strings.Contains(script, "orders") {
		t.Errorf("DDL output:\n%s", script)
	}
	if !strings.Contains(script, "FOREIGN KEY") {
		t.Errorf("DDL lacks foreign keys:\n%s", script)
	}
}
