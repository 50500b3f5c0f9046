package dbml

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// GenerateOptions tune DBML generation.
type GenerateOptions struct {
	// NormalizeNames replaces whitespace runs in table, field, index and
	// relationship names with underscores, for consumers that cannot
	// handle quoted identifiers.
	NormalizeNames bool
	// Dialect overrides the dialect derived from the diagram's database
	// type.
	Dialect Dialect
}

// Generate renders a diagram as canonical DBML. The output is
// deterministic for a given diagram and reimports to the same set of
// table keys, field names and references.
func Generate(d *models.Diagram, opts GenerateOptions) (string, error) {
	dialect := opts.Dialect
	if dialect == "" {
		dialect = DialectFor(d.DatabaseType)
	}
	def := DefaultSchema(dialect)
	norm := func(s string) string { return s }
	if opts.NormalizeNames {
		norm = normalizeName
	}

	if err := validateForExport(d, norm); err != nil {
		return "", err
	}

	var b strings.Builder
	for ti := range d.Tables {
		t := &d.Tables[ti]
		if ti > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("Table ")
		schema := norm(t.Schema)
		if schema != "" && schema != def {
			b.WriteString(dbmlIdent(schema))
			b.WriteByte('.')
		}
		b.WriteString(dbmlIdent(norm(t.Name)))
		b.WriteString(" {\n")
		for fi := range t.Fields {
			f := &t.Fields[fi]
			b.WriteString("  ")
			b.WriteString(dbmlIdent(norm(f.Name)))
			b.WriteByte(' ')
			b.WriteString(typeIdent(f.Type))
			if settings := fieldSettings(f); len(settings) > 0 {
				b.WriteString(" [")
				b.WriteString(strings.Join(settings, ", "))
				b.WriteByte(']')
			}
			b.WriteByte('\n')
		}
		if len(t.Indexes) > 0 {
			b.WriteString("\n  Indexes {\n")
			for ii := range t.Indexes {
				writeIndexEntry(&b, &t.Indexes[ii], norm)
			}
			b.WriteString("  }\n")
		}
		b.WriteString("}\n")
	}

	wroteRef := false
	for ri := range d.Relationships {
		rel := &d.Relationships[ri]
		line, ok := refLine(d, rel, def, norm)
		if !ok {
			// Dangling edges are dropped rather than breaking the whole
			// script.
			continue
		}
		if !wroteRef {
			if len(d.Tables) > 0 {
				b.WriteByte('\n')
			}
			wroteRef = true
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func validateForExport(d *models.Diagram, norm func(string) string) error {
	seen := make(map[string]bool, len(d.Tables))
	for i := range d.Tables {
		t := &d.Tables[i]
		if norm(t.Name) == "" {
			return fmt.Errorf("dbml: generate: table %s has an empty name", t.ID)
		}
		key := norm(t.Schema) + "." + norm(t.Name)
		if seen[key] {
			return fmt.Errorf("dbml: generate: duplicate table %s", displayName(norm(t.Schema), norm(t.Name)))
		}
		seen[key] = true
		fields := make(map[string]bool, len(t.Fields))
		for j := range t.Fields {
			name := norm(t.Fields[j].Name)
			if name == "" {
				return fmt.Errorf("dbml: generate: table %s has a field with an empty name", norm(t.Name))
			}
			if fields[name] {
				return fmt.Errorf("dbml: generate: duplicate field %s in table %s", name, norm(t.Name))
			}
			fields[name] = true
		}
	}
	return nil
}

func fieldSettings(f *models.Field) []string {
	var settings []string
	if f.PrimaryKey {
		settings = append(settings, "pk")
	}
	if f.Increment {
		settings = append(settings, "increment")
	}
	if f.Unique {
		settings = append(settings, "unique")
	}
	if !f.Nullable && !f.PrimaryKey {
		settings = append(settings, "not null")
	}
	if f.Default != nil {
		settings = append(settings, "default: "+renderDefault(*f.Default))
	}
	return settings
}

func writeIndexEntry(b *strings.Builder, idx *models.Index, norm func(string) string) {
	b.WriteString("    ")
	if len(idx.FieldNames) == 1 {
		b.WriteString(dbmlIdent(norm(idx.FieldNames[0])))
	} else {
		b.WriteByte('(')
		for i, col := range idx.FieldNames {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(dbmlIdent(norm(col)))
		}
		b.WriteByte(')')
	}
	var settings []string
	if idx.Name != "" {
		settings = append(settings, "name: "+renderString(norm(idx.Name)))
	}
	if idx.Unique {
		settings = append(settings, "unique")
	}
	if len(settings) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(settings, ", "))
		b.WriteByte(']')
	}
	b.WriteByte('\n')
}

func refLine(d *models.Diagram, rel *models.Relationship, def string, norm func(string) string) (string, bool) {
	src := d.TableByID(rel.SourceTableID)
	tgt := d.TableByID(rel.TargetTableID)
	if src == nil || tgt == nil {
		return "", false
	}
	srcField := src.FieldByID(rel.SourceFieldID)
	tgtField := tgt.FieldByID(rel.TargetFieldID)
	if srcField == nil || tgtField == nil {
		return "", false
	}

	var b strings.Builder
	b.WriteString("Ref")
	if rel.Name != "" {
		b.WriteByte(' ')
		b.WriteString(dbmlIdent(norm(rel.Name)))
	}
	b.WriteString(": ")
	writeRefEndpoint(&b, src, srcField.Name, def, norm)
	b.WriteByte(' ')
	b.WriteString(refOperator(rel.SourceCardinality, rel.TargetCardinality))
	b.WriteByte(' ')
	writeRefEndpoint(&b, tgt, tgtField.Name, def, norm)
	return b.String(), true
}

func writeRefEndpoint(b *strings.Builder, t *models.Table, field, def string, norm func(string) string) {
	schema := norm(t.Schema)
	if schema != "" && schema != def {
		b.WriteString(dbmlIdent(schema))
		b.WriteByte('.')
	}
	b.WriteString(dbmlIdent(norm(t.Name)))
	b.WriteByte('.')
	b.WriteString(dbmlIdent(norm(field)))
}

func refOperator(src, tgt models.Cardinality) string {
	switch {
	case src == models.CardinalityOne && tgt == models.CardinalityMany:
		return "<"
	case src == models.CardinalityMany && tgt == models.CardinalityOne:
		return ">"
	case src == models.CardinalityMany && tgt == models.CardinalityMany:
		return "<>"
	default:
		return "-"
	}
}

var bareIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var dbmlKeywords = map[string]bool{
	"table": true, "ref": true, "enum": true, "project": true,
	"tablegroup": true, "indexes": true, "note": true, "as": true,
}

// dbmlIdent quotes a name when it cannot stand as a bare identifier.
func dbmlIdent(name string) string {
	if bareIdentPattern.MatchString(name) && !dbmlKeywords[strings.ToLower(name)] {
		return name
	}
	return `"` + name + `"`
}

// typeIdent renders a field type, quoting name parts that need it while
// leaving any argument list untouched.
func typeIdent(typ string) string {
	base, args := typ, ""
	if i := strings.IndexByte(typ, '('); i >= 0 {
		base, args = typ[:i], typ[i:]
	}
	parts := strings.SplitN(base, ".", 2)
	for i, part := range parts {
		if !bareIdentPattern.MatchString(part) {
			parts[i] = `"` + part + `"`
		}
	}
	return strings.Join(parts, ".") + args
}

var numberPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// renderDefault picks the DBML value form for a stored default: bare for
// numbers and keywords, backticks for expressions, single quotes for
// everything else.
func renderDefault(raw string) string {
	if numberPattern.MatchString(raw) {
		return raw
	}
	switch strings.ToLower(raw) {
	case "true", "false", "null":
		return raw
	}
	if strings.ContainsRune(raw, '(') {
		return "`" + raw + "`"
	}
	return renderString(raw)
}

func renderString(raw string) string {
	escaped := strings.ReplaceAll(raw, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizeName replaces whitespace runs with underscores.
func normalizeName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "_")
}
