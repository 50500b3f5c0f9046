package dbml

import (
	"errors"
	"fmt"
)

// Diagnostic is a single parser finding. Line and Column are 1-based.
type Diagnostic struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// SyntaxError is the raw failure payload produced by the parser. It may
// carry several diagnostics; callers that need a single displayable error
// should go through ExtractParseError.
type SyntaxError struct {
	Diagnostics []Diagnostic
}

func (e *SyntaxError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "dbml: syntax error"
	}
	d := e.Diagnostics[0]
	return fmt.Sprintf("dbml: line %d:%d: %s", d.Line, d.Column, d.Message)
}

// ParseError is the one error surfaced to editors: the first diagnostic
// of a failed parse with its 1-based position. Line 0 means the failure
// could not be localized.
type ParseError struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return "dbml: " + e.Message
	}
	return fmt.Sprintf("dbml: line %d:%d: %s", e.Line, e.Column, e.Message)
}

// Localized reports whether the error carries a usable source position.
func (e *ParseError) Localized() bool {
	return e.Line >= 1 && e.Column >= 1
}

// ExtractParseError reduces any parser failure to a single ParseError.
// The first diagnostic wins; anything unrecognized becomes an
// unlocalized error.
func ExtractParseError(err error) *ParseError {
	if err == nil {
		return nil
	}
	var syn *SyntaxError
	if errors.As(err, &syn) && len(syn.Diagnostics) > 0 {
		d := syn.Diagnostics[0]
		if d.Line >= 1 && d.Column >= 1 {
			return &ParseError{Message: d.Message, Line: d.Line, Column: d.Column}
		}
		return &ParseError{Message: d.Message}
	}
	return &ParseError{Message: err.Error()}
}
