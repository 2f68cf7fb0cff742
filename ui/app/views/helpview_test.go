package views

import (
	"strings"
	"testing"

	"github.com/ps2ble/bondmgr/ui/keybindings"
)

func TestStatusHelp(t *testing.T) {
	h := &helpView{Views: &Views{kb: keybindings.NewKeybindings()}}

	text := h.statusHelp(devicePage.String())

	order := []string{"Bonds Remove/Refresh", ": d/r", "Help", "Navigation", ": k/j", "Pair", "Show Info/Last", ": i/l"}

	last := -1
	for _, part := range order {
		i := strings.Index(text, part)
		if i < 0 {
			t.Fatalf("expected %q in %q", part, text)
		}
		if i < last {
			t.Fatalf("expected %q after the previous groups in %q", part, text)
		}
		last = i
	}

	for _, hidden := range []string{"Quit", "Suspend", "Cancel"} {
		if strings.Contains(text, hidden) {
			t.Fatalf("expected %q to be left out of the status help, got %q", hidden, text)
		}
	}

	if text := h.statusHelp("help"); text != "" {
		t.Fatalf("expected no status help for a page without a topic, got %q", text)
	}
}
