package shortcuts

import (
	"strings"
	"testing"
)

func TestForPlatformModifier(t *testing.T) {
	tests := []struct {
		platform  string
		wantKeys  string
		wantLabel string
	}{
		{"darwin", "meta+", "⌘ + "},
		{"linux", "ctrl+", "Ctrl + "},
		{"windows", "ctrl+", "Ctrl + "},
		{"", "ctrl+", "Ctrl + "},
	}
	for _, tt := range tests {
		for _, sc := range For(tt.platform) {
			if !strings.HasPrefix(sc.Keys, tt.wantKeys) {
				t.Errorf("For(%q) %s keys = %q, want %q prefix", tt.platform, sc.Action, sc.Keys, tt.wantKeys)
			}
			if !strings.HasPrefix(sc.Label, tt.wantLabel) {
				t.Errorf("For(%q) %s label = %q, want %q prefix", tt.platform, sc.Action, sc.Label, tt.wantLabel)
			}
		}
	}
}

func TestForCoversActions(t *testing.T) {
	seen := make(map[string]bool)
	for _, sc := range For("linux") {
		if sc.Description == "" {
			t.Errorf("%s has no description", sc.Action)
		}
		if seen[sc.Action] {
			t.Errorf("duplicate action %s", sc.Action)
		}
		seen[sc.Action] = true
	}
	for _, action := range []string{ActionToggleView, ActionToggleEditMode, ActionFocusFilter} {
		if !seen[action] {
			t.Errorf("missing action %s", action)
		}
	}
}
