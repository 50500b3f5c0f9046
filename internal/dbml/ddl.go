package dbml

import (
	"fmt"
	"strings"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// ExportDDL renders a diagram as SQL DDL for the given dialect: tables
// first, then indexes, then foreign keys, so the script can run top to
// bottom. Field types are emitted as stored on the diagram.
func ExportDDL(d *models.Diagram, dialect Dialect) (string, error) {
	raw := func(s string) string { return s }
	if err := validateForExport(d, raw); err != nil {
		return "", err
	}

	var b strings.Builder
	if dialect == DialectPostgres {
		writeCreateSchemas(&b, d)
	}
	for i := range d.Tables {
		writeCreateTable(&b, &d.Tables[i], dialect)
	}
	for i := range d.Tables {
		writeCreateIndexes(&b, &d.Tables[i], dialect)
	}
	for i := range d.Relationships {
		writeForeignKey(&b, d, &d.Relationships[i], dialect)
	}
	return b.String(), nil
}

func writeCreateSchemas(b *strings.Builder, d *models.Diagram) {
	seen := make(map[string]bool)
	for i := range d.Tables {
		schema := d.Tables[i].Schema
		if schema == "" || schema == "public" || seen[schema] {
			continue
		}
		seen[schema] = true
		fmt.Fprintf(b, "CREATE SCHEMA IF NOT EXISTS %s;\n", sqlIdent(schema, DialectPostgres))
	}
	if len(seen) > 0 {
		b.WriteByte('\n')
	}
}

func writeCreateTable(b *strings.Builder, t *models.Table, dialect Dialect) {
	fmt.Fprintf(b, "CREATE TABLE %s (\n", sqlTableRef(t, dialect))

	var pkCols []string
	for i := range t.Fields {
		if t.Fields[i].PrimaryKey {
			pkCols = append(pkCols, t.Fields[i].Name)
		}
	}

	var lines []string
	for i := range t.Fields {
		f := &t.Fields[i]
		var line strings.Builder
		line.WriteString("  ")
		line.WriteString(sqlIdent(f.Name, dialect))
		line.WriteByte(' ')
		line.WriteString(f.Type)
		if f.Increment {
			line.WriteString(incrementClause(dialect))
		}
		if f.PrimaryKey && len(pkCols) == 1 {
			line.WriteString(" PRIMARY KEY")
		} else if !f.Nullable {
			line.WriteString(" NOT NULL")
		}
		if f.Unique && !f.PrimaryKey {
			line.WriteString(" UNIQUE")
		}
		if f.Default != nil {
			line.WriteString(" DEFAULT ")
			line.WriteString(sqlDefault(*f.Default))
		}
		lines = append(lines, line.String())
	}
	if len(pkCols) > 1 {
		quoted := make([]string, len(pkCols))
		for i, col := range pkCols {
			quoted[i] = sqlIdent(col, dialect)
		}
		lines = append(lines, "  PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);\n\n")
}

func writeCreateIndexes(b *strings.Builder, t *models.Table, dialect Dialect) {
	for i := range t.Indexes {
		idx := &t.Indexes[i]
		name := idx.Name
		if name == "" {
			name = "idx_" + t.Name + "_" + strings.Join(idx.FieldNames, "_")
		}
		cols := make([]string, len(idx.FieldNames))
		for j, col := range idx.FieldNames {
			cols[j] = sqlIdent(col, dialect)
		}
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		fmt.Fprintf(b, "CREATE %sINDEX %s ON %s (%s);\n\n",
			unique, sqlIdent(name, dialect), sqlTableRef(t, dialect), strings.Join(cols, ", "))
	}
}

// writeForeignKey emits the constraint on the many side of the edge.
// Many-to-many edges have no direct DDL form and are left as a comment.
func writeForeignKey(b *strings.Builder, d *models.Diagram, rel *models.Relationship, dialect Dialect) {
	src := d.TableByID(rel.SourceTableID)
	tgt := d.TableByID(rel.TargetTableID)
	if src == nil || tgt == nil {
		return
	}
	srcField := src.FieldByID(rel.SourceFieldID)
	tgtField := tgt.FieldByID(rel.TargetFieldID)
	if srcField == nil || tgtField == nil {
		return
	}

	if rel.SourceCardinality == models.CardinalityMany && rel.TargetCardinality == models.CardinalityMany {
		fmt.Fprintf(b, "-- %s is many-to-many and needs a junction table\n\n", rel.Name)
		return
	}

	fkTable, fkField := src, srcField
	refTable, refField := tgt, tgtField
	if rel.SourceCardinality == models.CardinalityOne && rel.TargetCardinality == models.CardinalityMany {
		fkTable, fkField = tgt, tgtField
		refTable, refField = src, srcField
	}

	name := rel.Name
	if name == "" {
		name = fmt.Sprintf("fk_%s_%s", fkTable.Name, fkField.Name)
	}
	fmt.Fprintf(b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);\n\n",
		sqlTableRef(fkTable, dialect), sqlIdent(name, dialect),
		sqlIdent(fkField.Name, dialect), sqlTableRef(refTable, dialect), sqlIdent(refField.Name, dialect))
}

func incrementClause(dialect Dialect) string {
	switch dialect {
	case DialectMySQL:
		return " AUTO_INCREMENT"
	case DialectMSSQL:
		return " IDENTITY(1,1)"
	default:
		return " GENERATED BY DEFAULT AS IDENTITY"
	}
}

// sqlTableRef renders a schema-qualified table reference. MySQL has no
// schema notion separate from the database, so tables stay unqualified.
func sqlTableRef(t *models.Table, dialect Dialect) string {
	if dialect == DialectMySQL || t.Schema == "" {
		return sqlIdent(t.Name, dialect)
	}
	return sqlIdent(t.Schema, dialect) + "." + sqlIdent(t.Name, dialect)
}

var sqlReservedWords = map[string]bool{
	"all": true, "and": true, "any": true, "as": true, "asc": true,
	"between": true, "by": true, "case": true, "check": true,
	"column": true, "constraint": true, "create": true, "default": true,
	"desc": true, "distinct": true, "drop": true, "else": true,
	"end": true, "exists": true, "foreign": true, "from": true,
	"grant": true, "group": true, "having": true, "in": true,
	"index": true, "insert": true, "into": true, "is": true,
	"join": true, "key": true, "like": true, "not": true, "null": true,
	"on": true, "or": true, "order": true, "primary": true,
	"references": true, "select": true, "set": true, "table": true,
	"then": true, "to": true, "union": true, "unique": true,
	"update": true, "user": true, "values": true, "when": true,
	"where": true,
}

// sqlIdent quotes an identifier when it is reserved or cannot stand
// bare, using the dialect's quoting style.
func sqlIdent(name string, dialect Dialect) string {
	if bareIdentPattern.MatchString(name) && !sqlReservedWords[strings.ToLower(name)] {
		return name
	}
	switch dialect {
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

func sqlDefault(raw string) string {
	if numberPattern.MatchString(raw) {
		return raw
	}
	switch strings.ToLower(raw) {
	case "true", "false", "null":
		return raw
	}
	if strings.ContainsRune(raw, '(') {
		return raw
	}
	return "'" + strings.ReplaceAll(raw, "'", "''") + "'"
}
