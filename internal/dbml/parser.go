package dbml

import (
	"strings"

	"github.com/skyiron/chartdbDiagramsSQL/internal/models"
)

// parser is a single-pass recursive descent parser over the token
// stream. The first error sticks and aborts the parse.
type parser struct {
	lex     *lexer
	tok     token
	peeked  *token
	err     error
	schema  *Schema
	aliases map[string][2]string // table alias -> schema, table
}

func parse(text string) (*Schema, error) {
	p := &parser{
		lex:     newLexer(text),
		schema:  &Schema{},
		aliases: make(map[string][2]string),
	}
	p.next()
	for p.err == nil && p.tok.kind != tokenEOF {
		switch {
		case p.tok.kind == tokenNewline:
			p.next()
		case p.keyword("Table"):
			p.parseTable()
		case p.keyword("Ref"):
			p.parseRef()
		case p.keyword("Enum"):
			p.parseEnum()
		case p.keyword("Project"), p.keyword("TableGroup"):
			p.parseSkippedBlock()
		default:
			p.failf(p.tok, "expected a Table, Ref, Enum, Project or TableGroup declaration, found %s", p.tok.describe())
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	p.resolveAliases()
	return p.schema, nil
}

func (p *parser) next() {
	if p.err != nil {
		p.tok = token{kind: tokenEOF, line: p.tok.line, col: p.tok.col}
		return
	}
	if p.peeked != nil {
		p.tok = *p.peeked
		p.peeked = nil
		return
	}
	t, err := p.lex.next()
	if err != nil {
		p.err = err
		t = token{kind: tokenEOF, line: p.lex.line, col: p.lex.col}
	}
	p.tok = t
}

func (p *parser) peek() token {
	if p.peeked == nil {
		t, err := p.lex.next()
		if err != nil {
			if p.err == nil {
				p.err = err
			}
			t = token{kind: tokenEOF, line: p.lex.line, col: p.lex.col}
		}
		p.peeked = &t
	}
	return *p.peeked
}

func (p *parser) failf(at token, format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	p.err = p.lex.errorf(at.line, at.col, format, args...)
}

func (p *parser) keyword(word string) bool {
	return p.tok.kind == tokenIdent && strings.EqualFold(p.tok.text, word)
}

// expect checks the current token kind without consuming it.
func (p *parser) expect(kind tokenKind, what string) bool {
	if p.tok.kind != kind {
		p.failf(p.tok, "expected %s, found %s", what, p.tok.describe())
		return false
	}
	return true
}

func (p *parser) skipNewlines() {
	for p.tok.kind == tokenNewline {
		p.next()
	}
}

// namePart consumes a bare or double-quoted identifier.
func (p *parser) namePart(what string) (string, bool) {
	if p.tok.kind != tokenIdent && p.tok.kind != tokenQuoted {
		p.failf(p.tok, "expected %s, found %s", what, p.tok.describe())
		return "", false
	}
	name := p.tok.text
	p.next()
	return name, true
}

func displayName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

type indexEntry struct {
	index models.Index
	at    token
}

func (p *parser) parseTable() {
	p.next()
	nameTok := p.tok
	first, ok := p.namePart("a table name")
	if !ok {
		return
	}
	schemaName, tableName := "", first
	if p.tok.kind == tokenDot {
		p.next()
		second, ok := p.namePart("a table name")
		if !ok {
			return
		}
		schemaName, tableName = first, second
	}
	table := models.Table{Schema: schemaName, Name: tableName}
	if p.keyword("as") {
		p.next()
		alias, ok := p.namePart("a table alias")
		if !ok {
			return
		}
		p.aliases[alias] = [2]string{schemaName, tableName}
	}
	// Header settings written by other tools are tolerated and ignored.
	if p.tok.kind == tokenLBracket {
		p.skipSettings()
	}
	if !p.expect(tokenLBrace, "'{' after table name") {
		return
	}
	p.next()

	var indexes []indexEntry
	for p.err == nil {
		switch {
		case p.tok.kind == tokenNewline:
			p.next()
		case p.tok.kind == tokenRBrace:
			p.next()
			p.closeTable(nameTok, table, indexes)
			return
		case p.tok.kind == tokenEOF:
			p.failf(p.tok, "unexpected end of input in table %s", displayName(schemaName, tableName))
			return
		case p.keyword("Note") && (p.peek().kind == tokenColon || p.peek().kind == tokenLBrace):
			p.skipNote()
		case p.keyword("Indexes") && p.peek().kind == tokenLBrace:
			p.parseIndexes(&indexes)
		case p.tok.kind == tokenIdent || p.tok.kind == tokenQuoted:
			p.parseColumn(&table)
		default:
			p.failf(p.tok, "expected a column definition, found %s", p.tok.describe())
			return
		}
	}
}

// closeTable runs the end-of-table validations: index columns must exist
// and table keys must be unique across the script.
func (p *parser) closeTable(nameTok token, table models.Table, indexes []indexEntry) {
	for _, e := range indexes {
		for _, col := range e.index.FieldNames {
			if table.FieldByName(col) == nil {
				p.failf(e.at, "index references unknown column %q in table %s", col, displayName(table.Schema, table.Name))
				return
			}
		}
		table.Indexes = append(table.Indexes, e.index)
	}
	key := table.Key()
	for i := range p.schema.Tables {
		if p.schema.Tables[i].Key() == key {
			p.failf(nameTok, "duplicate table %s", displayName(table.Schema, table.Name))
			return
		}
	}
	p.schema.Tables = append(p.schema.Tables, table)
}

func (p *parser) parseColumn(table *models.Table) {
	nameTok := p.tok
	name, ok := p.namePart("a column name")
	if !ok {
		return
	}
	field := models.Field{Name: name, Nullable: true}

	if p.tok.kind != tokenIdent && p.tok.kind != tokenQuoted {
		p.failf(p.tok, "expected a type for column %q, found %s", name, p.tok.describe())
		return
	}
	typ := p.tok.text
	p.next()
	if p.tok.kind == tokenDot {
		p.next()
		part, ok := p.namePart("a type name")
		if !ok {
			return
		}
		typ += "." + part
	}
	if p.tok.kind == tokenLParen {
		args, ok := p.typeArgs()
		if !ok {
			return
		}
		typ += args
	}
	field.Type = typ

	if p.tok.kind == tokenLBracket {
		p.parseColumnSettings(table, &field)
		if p.err != nil {
			return
		}
	}
	if p.tok.kind != tokenNewline && p.tok.kind != tokenRBrace && p.tok.kind != tokenEOF {
		p.failf(p.tok, "unexpected %s after column %q", p.tok.describe(), name)
		return
	}
	if table.FieldByName(name) != nil {
		p.failf(nameTok, "duplicate column %q in table %s", name, displayName(table.Schema, table.Name))
		return
	}
	table.Fields = append(table.Fields, field)
}

// typeArgs consumes a parenthesized type argument list like (255) or
// (10,2) and returns it in canonical comma-separated form.
func (p *parser) typeArgs() (string, bool) {
	p.next()
	var args []string
	for {
		if p.tok.kind != tokenNumber && p.tok.kind != tokenIdent && p.tok.kind != tokenString {
			p.failf(p.tok, "expected a type argument, found %s", p.tok.describe())
			return "", false
		}
		args = append(args, p.tok.text)
		p.next()
		if p.tok.kind == tokenComma {
			p.next()
			continue
		}
		break
	}
	if !p.expect(tokenRParen, "')' after type arguments") {
		return "", false
	}
	p.next()
	return "(" + strings.Join(args, ",") + ")", true
}

func (p *parser) parseColumnSettings(table *models.Table, field *models.Field) {
	open := p.tok
	p.next()
	for p.err == nil {
		switch p.tok.kind {
		case tokenRBracket:
			p.next()
			return
		case tokenComma:
			p.next()
		case tokenNewline, tokenEOF:
			p.failf(open, "unterminated column settings")
			return
		case tokenIdent, tokenQuoted:
			word := p.tok.text
			wordTok := p.tok
			p.next()
			if p.tok.kind == tokenColon {
				p.next()
				switch strings.ToLower(word) {
				case "default":
					v, ok := p.settingValue()
					if !ok {
						return
					}
					field.Default = &v
				case "ref":
					p.parseInlineRef(table, field)
				case "note":
					// Notes are accepted but not kept on the diagram.
					if _, ok := p.settingValue(); !ok {
						return
					}
				default:
					if _, ok := p.settingValue(); !ok {
						return
					}
				}
			} else {
				switch strings.ToLower(word) {
				case "pk":
					field.PrimaryKey = true
					field.Nullable = false
				case "primary":
					if !p.keyword("key") {
						p.failf(p.tok, "expected 'key' after 'primary'")
						return
					}
					p.next()
					field.PrimaryKey = true
					field.Nullable = false
				case "not":
					if !p.keyword("null") {
						p.failf(p.tok, "expected 'null' after 'not'")
						return
					}
					p.next()
					field.Nullable = false
				case "null":
					field.Nullable = true
				case "unique":
					field.Unique = true
				case "increment":
					field.Increment = true
				default:
					p.failf(wordTok, "unknown column setting %q", word)
					return
				}
			}
		default:
			p.failf(p.tok, "expected a column setting, found %s", p.tok.describe())
			return
		}
	}
}

// settingValue consumes a single setting value and returns its raw text.
func (p *parser) settingValue() (string, bool) {
	switch p.tok.kind {
	case tokenString, tokenNumber, tokenIdent, tokenExpr:
		v := p.tok.text
		p.next()
		return v, true
	default:
		p.failf(p.tok, "expected a setting value, found %s", p.tok.describe())
		return "", false
	}
}

// parseInlineRef handles a "ref: < table.field" column setting. The
// column being defined is the source endpoint.
func (p *parser) parseInlineRef(table *models.Table, field *models.Field) {
	srcCard, tgtCard, ok := p.relationOperator()
	if !ok {
		return
	}
	target, ok := p.refEndpoint()
	if !ok {
		return
	}
	p.schema.Refs = append(p.schema.Refs, Ref{
		Source:            RefEndpoint{Schema: table.Schema, Table: table.Name, Field: field.Name},
		Target:            target,
		SourceCardinality: srcCard,
		TargetCardinality: tgtCard,
	})
}

func (p *parser) relationOperator() (models.Cardinality, models.Cardinality, bool) {
	var src, tgt models.Cardinality
	switch p.tok.kind {
	case tokenLT:
		src, tgt = models.CardinalityOne, models.CardinalityMany
	case tokenGT:
		src, tgt = models.CardinalityMany, models.CardinalityOne
	case tokenDash:
		src, tgt = models.CardinalityOne, models.CardinalityOne
	case tokenBoth:
		src, tgt = models.CardinalityMany, models.CardinalityMany
	default:
		p.failf(p.tok, "expected a relationship operator (<, >, - or <>), found %s", p.tok.describe())
		return "", "", false
	}
	p.next()
	return src, tgt, true
}

// refEndpoint consumes table.field or schema.table.field.
func (p *parser) refEndpoint() (RefEndpoint, bool) {
	start := p.tok
	first, ok := p.namePart("a table reference")
	if !ok {
		return RefEndpoint{}, false
	}
	if p.tok.kind == tokenLParen {
		p.failf(p.tok, "composite foreign keys are not supported")
		return RefEndpoint{}, false
	}
	if !p.expect(tokenDot, "'.' in table.field reference") {
		return RefEndpoint{}, false
	}
	p.next()
	if p.tok.kind == tokenLParen {
		p.failf(p.tok, "composite foreign keys are not supported")
		return RefEndpoint{}, false
	}
	second, ok := p.namePart("a field reference")
	if !ok {
		return RefEndpoint{}, false
	}
	if p.tok.kind != tokenDot {
		return RefEndpoint{Table: first, Field: second}, true
	}
	p.next()
	if p.tok.kind == tokenLParen {
		p.failf(p.tok, "composite foreign keys are not supported")
		return RefEndpoint{}, false
	}
	third, ok := p.namePart("a field reference")
	if !ok {
		return RefEndpoint{}, false
	}
	if p.tok.kind == tokenDot {
		p.failf(start, "too many parts in reference, expected schema.table.field")
		return RefEndpoint{}, false
	}
	return RefEndpoint{Schema: first, Table: second, Field: third}, true
}

func (p *parser) parseIndexes(entries *[]indexEntry) {
	p.next()
	if !p.expect(tokenLBrace, "'{' after Indexes") {
		return
	}
	p.next()
	for p.err == nil {
		switch p.tok.kind {
		case tokenNewline:
			p.next()
		case tokenRBrace:
			p.next()
			return
		case tokenEOF:
			p.failf(p.tok, "unexpected end of input in Indexes block")
			return
		case tokenLParen:
			at := p.tok
			p.next()
			var cols []string
			for {
				col, ok := p.namePart("an index column")
				if !ok {
					return
				}
				cols = append(cols, col)
				if p.tok.kind == tokenComma {
					p.next()
					continue
				}
				break
			}
			if !p.expect(tokenRParen, "')' after index columns") {
				return
			}
			p.next()
			p.finishIndexEntry(entries, at, cols)
		case tokenIdent, tokenQuoted:
			at := p.tok
			col, _ := p.namePart("an index column")
			p.finishIndexEntry(entries, at, []string{col})
		default:
			p.failf(p.tok, "expected an index entry, found %s", p.tok.describe())
			return
		}
	}
}

func (p *parser) finishIndexEntry(entries *[]indexEntry, at token, cols []string) {
	idx := models.Index{FieldNames: cols}
	if p.tok.kind == tokenLBracket {
		p.parseIndexSettings(&idx)
		if p.err != nil {
			return
		}
	}
	if p.tok.kind != tokenNewline && p.tok.kind != tokenRBrace && p.tok.kind != tokenEOF {
		p.failf(p.tok, "unexpected %s after index entry", p.tok.describe())
		return
	}
	*entries = append(*entries, indexEntry{index: idx, at: at})
}

func (p *parser) parseIndexSettings(idx *models.Index) {
	open := p.tok
	p.next()
	for p.err == nil {
		switch p.tok.kind {
		case tokenRBracket:
			p.next()
			return
		case tokenComma:
			p.next()
		case tokenNewline, tokenEOF:
			p.failf(open, "unterminated index settings")
			return
		case tokenIdent, tokenQuoted:
			word := p.tok.text
			wordTok := p.tok
			p.next()
			if p.tok.kind == tokenColon {
				p.next()
				switch strings.ToLower(word) {
				case "name":
					v, ok := p.settingValue()
					if !ok {
						return
					}
					idx.Name = v
				default:
					if _, ok := p.settingValue(); !ok {
						return
					}
				}
			} else {
				switch strings.ToLower(word) {
				case "unique":
					idx.Unique = true
				case "pk":
					// Composite primary keys surface as unique indexes.
					idx.Unique = true
				default:
					p.failf(wordTok, "unknown index setting %q", word)
					return
				}
			}
		default:
			p.failf(p.tok, "expected an index setting, found %s", p.tok.describe())
			return
		}
	}
}

func (p *parser) parseRef() {
	p.next()
	name := ""
	if p.tok.kind == tokenIdent || p.tok.kind == tokenQuoted {
		name = p.tok.text
		p.next()
	}
	braced := false
	switch p.tok.kind {
	case tokenColon:
		p.next()
	case tokenLBrace:
		braced = true
		p.next()
		p.skipNewlines()
	default:
		p.failf(p.tok, "expected ':' or '{' after Ref, found %s", p.tok.describe())
		return
	}
	source, ok := p.refEndpoint()
	if !ok {
		return
	}
	srcCard, tgtCard, ok := p.relationOperator()
	if !ok {
		return
	}
	target, ok := p.refEndpoint()
	if !ok {
		return
	}
	// Relationship actions such as delete/update rules are accepted and
	// ignored.
	if p.tok.kind == tokenLBracket {
		p.skipSettings()
	}
	if braced {
		p.skipNewlines()
		if !p.expect(tokenRBrace, "'}' after Ref body") {
			return
		}
		p.next()
	}
	p.schema.Refs = append(p.schema.Refs, Ref{
		Name:              name,
		Source:            source,
		Target:            target,
		SourceCardinality: srcCard,
		TargetCardinality: tgtCard,
	})
}

func (p *parser) parseEnum() {
	p.next()
	if _, ok := p.namePart("an enum name"); !ok {
		return
	}
	if p.tok.kind == tokenDot {
		p.next()
		if _, ok := p.namePart("an enum name"); !ok {
			return
		}
	}
	if !p.expect(tokenLBrace, "'{' after enum name") {
		return
	}
	p.skipBlock()
}

// parseSkippedBlock consumes a Project or TableGroup declaration whose
// contents do not affect the diagram.
func (p *parser) parseSkippedBlock() {
	p.next()
	for p.tok.kind == tokenIdent || p.tok.kind == tokenQuoted || p.tok.kind == tokenDot {
		p.next()
	}
	if !p.expect(tokenLBrace, "'{'") {
		return
	}
	p.skipBlock()
}

// skipBlock consumes a balanced brace block starting at the current '{'.
func (p *parser) skipBlock() {
	depth := 0
	for p.err == nil {
		switch p.tok.kind {
		case tokenLBrace:
			depth++
		case tokenRBrace:
			depth--
			if depth == 0 {
				p.next()
				return
			}
		case tokenEOF:
			p.failf(p.tok, "unexpected end of input, unclosed '{'")
			return
		}
		p.next()
	}
}

// skipSettings consumes a bracketed settings list without interpreting it.
func (p *parser) skipSettings() {
	open := p.tok
	p.next()
	for p.err == nil {
		switch p.tok.kind {
		case tokenRBracket:
			p.next()
			return
		case tokenEOF:
			p.failf(open, "unterminated settings")
			return
		default:
			p.next()
		}
	}
}

func (p *parser) skipNote() {
	p.next()
	switch p.tok.kind {
	case tokenColon:
		p.next()
		p.settingValue()
	case tokenLBrace:
		p.skipBlock()
	}
}

// resolveAliases rewrites ref endpoints that name a table alias. A real
// table with the same name shadows the alias.
func (p *parser) resolveAliases() {
	if len(p.aliases) == 0 {
		return
	}
	shadowed := make(map[string]bool, len(p.schema.Tables))
	for i := range p.schema.Tables {
		if p.schema.Tables[i].Schema == "" {
			shadowed[p.schema.Tables[i].Name] = true
		}
	}
	for i := range p.schema.Refs {
		p.resolveEndpoint(&p.schema.Refs[i].Source, shadowed)
		p.resolveEndpoint(&p.schema.Refs[i].Target, shadowed)
	}
}

func (p *parser) resolveEndpoint(e *RefEndpoint, shadowed map[string]bool) {
	if e.Schema != "" || shadowed[e.Table] {
		return
	}
	if target, ok := p.aliases[e.Table]; ok {
		e.Schema, e.Table = target[0], target[1]
	}
}
