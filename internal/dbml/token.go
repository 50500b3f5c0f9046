package dbml

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNewline
	tokenIdent  // bare word, keywords included
	tokenQuoted // "double quoted" identifier
	tokenString // 'single quoted' or '''triple quoted''' literal
	tokenExpr   // `backtick expression`
	tokenNumber
	tokenLBrace
	tokenRBrace
	tokenLBracket
	tokenRBracket
	tokenLParen
	tokenRParen
	tokenComma
	tokenColon
	tokenDot
	tokenLT   // <
	tokenGT   // >
	tokenDash // -
	tokenBoth // <>
)

// token carries its 1-based source position so parse errors can point at
// the offending spot.
type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) describe() string {
	switch t.kind {
	case tokenEOF:
		return "end of input"
	case tokenNewline:
		return "end of line"
	case tokenString:
		return "string literal"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type lexer struct {
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekRuneAt(off int) rune {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) errorf(line, col int, format string, args ...interface{}) error {
	return &SyntaxError{Diagnostics: []Diagnostic{{
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Column:  col,
	}}}
}

// next returns the next token, folding comments and horizontal
// whitespace. Newlines are significant in DBML bodies and come through
// as their own tokens.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r := l.peekRune()
		switch {
		case r == ' ' || r == '\t' || r == '\r':
			l.advance()
		case r == '/' && l.peekRuneAt(1) == '/':
			for l.pos < len(l.src) && l.peekRune() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekRuneAt(1) == '*':
			line, col := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.src) {
				if l.peekRune() == '*' && l.peekRuneAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return token{}, l.errorf(line, col, "unterminated block comment")
			}
		default:
			return l.scanToken()
		}
	}
	return token{kind: tokenEOF, line: l.line, col: l.col}, nil
}

func (l *lexer) scanToken() (token, error) {
	line, col := l.line, l.col
	r := l.peekRune()

	switch {
	case r == '\n':
		l.advance()
		return token{kind: tokenNewline, line: line, col: col}, nil
	case isIdentStart(r):
		var b strings.Builder
		b.WriteRune(l.advance())
		for l.pos < len(l.src) && isIdentPart(l.peekRune()) {
			b.WriteRune(l.advance())
		}
		return token{kind: tokenIdent, text: b.String(), line: line, col: col}, nil
	case isDigit(r) || (r == '-' && isDigit(l.peekRuneAt(1))):
		var b strings.Builder
		if r == '-' {
			b.WriteRune(l.advance())
		}
		dot := false
		for l.pos < len(l.src) {
			c := l.peekRune()
			if isDigit(c) {
				b.WriteRune(l.advance())
			} else if c == '.' && !dot && isDigit(l.peekRuneAt(1)) {
				dot = true
				b.WriteRune(l.advance())
			} else {
				break
			}
		}
		return token{kind: tokenNumber, text: b.String(), line: line, col: col}, nil
	case r == '"':
		l.advance()
		var b strings.Builder
		for {
			if l.pos >= len(l.src) || l.peekRune() == '\n' {
				return token{}, l.errorf(line, col, "unterminated quoted identifier")
			}
			c := l.advance()
			if c == '"' {
				return token{kind: tokenQuoted, text: b.String(), line: line, col: col}, nil
			}
			b.WriteRune(c)
		}
	case r == '\'':
		if l.peekRuneAt(1) == '\'' && l.peekRuneAt(2) == '\'' {
			return l.scanTripleString(line, col)
		}
		l.advance()
		var b strings.Builder
		for {
			if l.pos >= len(l.src) || l.peekRune() == '\n' {
				return token{}, l.errorf(line, col, "unterminated string literal")
			}
			c := l.advance()
			if c == '\\' && l.pos < len(l.src) {
				esc := l.advance()
				switch esc {
				case '\'', '\\':
					b.WriteRune(esc)
				case 'n':
					b.WriteRune('\n')
				default:
					b.WriteRune('\\')
					b.WriteRune(esc)
				}
				continue
			}
			if c == '\'' {
				return token{kind: tokenString, text: b.String(), line: line, col: col}, nil
			}
			b.WriteRune(c)
		}
	case r == '`':
		l.advance()
		var b strings.Builder
		for {
			if l.pos >= len(l.src) || l.peekRune() == '\n' {
				return token{}, l.errorf(line, col, "unterminated expression literal")
			}
			c := l.advance()
			if c == '`' {
				return token{kind: tokenExpr, text: b.String(), line: line, col: col}, nil
			}
			b.WriteRune(c)
		}
	default:
		l.advance()
		kind, ok := symbolKind(r)
		if !ok {
			return token{}, l.errorf(line, col, "unexpected character %q", string(r))
		}
		if kind == tokenLT && l.peekRune() == '>' {
			l.advance()
			return token{kind: tokenBoth, text: "<>", line: line, col: col}, nil
		}
		return token{kind: kind, text: string(r), line: line, col: col}, nil
	}
}

// scanTripleString consumes a '''...''' literal, which may span lines.
func (l *lexer) scanTripleString(line, col int) (token, error) {
	l.advance()
	l.advance()
	l.advance()
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return token{}, l.errorf(line, col, "unterminated string literal")
		}
		if l.peekRune() == '\'' && l.peekRuneAt(1) == '\'' && l.peekRuneAt(2) == '\'' {
			l.advance()
			l.advance()
			l.advance()
			return token{kind: tokenString, text: b.String(), line: line, col: col}, nil
		}
		b.WriteRune(l.advance())
	}
}

func symbolKind(r rune) (tokenKind, bool) {
	switch r {
	case '{':
		return tokenLBrace, true
	case '}':
		return tokenRBrace, true
	case '[':
		return tokenLBracket, true
	case ']':
		return tokenRBracket, true
	case '(':
		return tokenLParen, true
	case ')':
		return tokenRParen, true
	case ',':
		return tokenComma, true
	case ':':
		return tokenColon, true
	case '.':
		return tokenDot, true
	case '<':
		return tokenLT, true
	case '>':
		return tokenGT, true
	case '-':
		return tokenDash, true
	}
	return 0, false
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '#' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return r == '_' || isDigit(r) ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
