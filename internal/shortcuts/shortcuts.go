// Package shortcuts describes the keyboard bindings of the DBML editing
// surface. Bindings differ per platform only in the modifier key:
// Command on macOS, Control everywhere else.
package shortcuts

const (
	ActionToggleView     = "toggle_dbml_view"
	ActionToggleEditMode = "toggle_edit_mode"
	ActionFocusFilter    = "focus_filter"
)

// Shortcut is one binding. Keys is the machine form clients register
// handlers for, Label the human form shown in menus.
type Shortcut struct {
	Action      string `json:"action"`
	Keys        string `json:"keys"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// For returns the bindings for a client platform ("darwin", "linux",
// "windows"). Unknown platforms get the Control bindings.
func For(platform string) []Shortcut {
	mod, label := "ctrl", "Ctrl"
	if platform == "darwin" {
		mod, label = "meta", "⌘"
	}
	return []Shortcut{
		{
			Action:      ActionToggleView,
			Keys:        mod + "+b",
			Label:       label + " + B",
			Description: "Show or hide the DBML view",
		},
		{
			Action:      ActionToggleEditMode,
			Keys:        mod + "+e",
			Label:       label + " + E",
			Description: "Switch the DBML view between read-only and edit mode",
		},
		{
			Action:      ActionFocusFilter,
			Keys:        mod + "+f",
			Label:       label + " + F",
			Description: "Focus the table filter",
		},
	}
}
