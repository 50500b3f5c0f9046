package editor

// Buffer is the reference Handle backed by plain strings. Sessions created
// over HTTP use it as their editor model; tests use it to observe what a
// widget would display.
type Buffer struct {
	content   string
	position  Position
	selection Range
	scroll    Scroll
}

func NewBuffer(content string) *Buffer {
	return &Buffer{
		content:   content,
		position:  Position{Line: 1, Column: 1},
		selection: Range{Start: Position{1, 1}, End: Position{1, 1}},
	}
}

func (b *Buffer) GetModel() string { return b.content }

func (b *Buffer) PushEdit(text string) { b.content = text }

func (b *Buffer) GetPosition() Position { return b.position }

func (b *Buffer) SetPosition(pos Position) { b.position = pos }

func (b *Buffer) SetSelection(sel Range) { b.selection = sel }

func (b *Buffer) Selection() Range { return b.selection }

func (b *Buffer) GetScroll() Scroll { return b.scroll }

func (b *Buffer) SetScroll(s Scroll) { b.scroll = s }
