package editor

import "strings"

// lineSearchWindow bounds how far ReplaceContent looks for the cursor's
// line in the replacement text, in lines either side of its old index.
const lineSearchWindow = 4

// ReplaceContent swaps the editor model for next while keeping the cursor
// where the user would expect it. The line under the cursor is located in
// the new text by prefix similarity within a small window around its old
// index, the column is clamped to the new line's length, and the viewport
// offset is restored. The selection collapses onto the new cursor.
func ReplaceContent(h Handle, next string) {
	pos := h.GetPosition()
	scroll := h.GetScroll()

	oldLines := strings.Split(h.GetModel(), "\n")
	newLines := strings.Split(next, "\n")

	var oldLine string
	if idx := pos.Line - 1; idx >= 0 && idx < len(oldLines) {
		oldLine = oldLines[idx]
	}

	newPos := relocate(pos, oldLine, newLines)

	h.PushEdit(next)
	h.SetPosition(newPos)
	h.SetSelection(Range{Start: newPos, End: newPos})
	h.SetScroll(scroll)
}

// relocate finds the best new home for a cursor that sat on oldLine.
func relocate(pos Position, oldLine string, newLines []string) Position {
	if len(newLines) == 0 {
		return Position{Line: 1, Column: 1}
	}

	oldIdx := pos.Line - 1
	if oldIdx < 0 {
		oldIdx = 0
	}
	if oldIdx >= len(newLines) {
		oldIdx = len(newLines) - 1
	}

	bestIdx := oldIdx
	bestScore := -1
	bestDist := 0
	lo := oldIdx - lineSearchWindow
	if lo < 0 {
		lo = 0
	}
	hi := oldIdx + lineSearchWindow
	if hi > len(newLines)-1 {
		hi = len(newLines) - 1
	}
	for i := lo; i <= hi; i++ {
		score := commonPrefixLen(oldLine, newLines[i])
		dist := i - oldIdx
		if dist < 0 {
			dist = -dist
		}
		if score > bestScore || (score == bestScore && dist < bestDist) {
			bestIdx = i
			bestScore = score
			bestDist = dist
		}
	}

	col := pos.Column
	if max := len([]rune(newLines[bestIdx])) + 1; col > max {
		col = max
	}
	if col < 1 {
		col = 1
	}
	return Position{Line: bestIdx + 1, Column: col}
}

func commonPrefixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	for i := 0; i < n; i++ {
		if ra[i] != rb[i] {
			return i
		}
	}
	return n
}
