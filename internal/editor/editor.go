// Package editor defines the capability surface the edit session uses to
// drive a text editor widget, plus an in-process Buffer implementation.
// The widget itself (highlighting, markers, viewport mechanics) lives
// outside this repository; sessions only see this interface.
package editor

// Position is a 1-based line/column cursor location. Columns count runes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a selection span. A collapsed selection has Start == End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Scroll is the viewport offset of the widget.
type Scroll struct {
	Top  int `json:"top"`
	Left int `json:"left"`
}

// Handle is the injected editor capability. Implementations are not safe
// for concurrent use; the owning session serializes access.
type Handle interface {
	GetModel() string
	PushEdit(text string)
	GetPosition() Position
	SetPosition(pos Position)
	SetSelection(sel Range)
	GetScroll() Scroll
	SetScroll(s Scroll)
}
