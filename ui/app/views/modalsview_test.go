package views

import (
	"testing"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"
)

func newModalTestViews(t *testing.T) *Views {
	t.Helper()

	v, _ := newPairingTestViews(t)
	v.pages = newViewPages()
	v.layout = tview.NewFlex()
	v.status.Pages = tview.NewPages()
	v.modals.SetRootView(v)

	return v
}

func openNames(m *modalViews) []string {
	names := make([]string, 0, len(m.open))
	for _, modal := range m.open {
		names = append(names, modal.name)
	}

	return names
}

func TestModals_stackOrder(t *testing.T) {
	v := newModalTestViews(t)

	var modals []*modalView
	for _, name := range []string{"a", "b", "c"} {
		modal := v.modals.newModal(name, name, tview.NewBox(), 5, 20)
		modal.show()
		modals = append(modals, modal)
	}

	modals[1].remove()

	if got := openNames(v.modals); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c] after removing b, got %v", got)
	}

	select {
	case <-modals[1].removed:
	default:
		t.Fatalf("expected the removed channel of b to be closed")
	}

	replacement := v.modals.newModal("a", "a", tview.NewBox(), 5, 20)
	replacement.show()

	if got := openNames(v.modals); len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Fatalf("expected [c a] after replacing a, got %v", got)
	}
	if modals[0].isOpen {
		t.Fatalf("expected the replaced modal to be closed")
	}
}

func TestModals_clickOutsideKeepsPersistent(t *testing.T) {
	v := newModalTestViews(t)

	plain := v.modals.newModal("plain", "Plain", tview.NewBox(), 5, 20)
	sticky := v.modals.newModal("sticky", "Sticky", tview.NewBox(), 5, 20)
	sticky.persistent = true
	other := v.modals.newModal("other", "Other", tview.NewBox(), 5, 20)

	plain.show()
	sticky.show()
	other.show()

	click := tcell.NewEventMouse(500, 500, tcell.Button1, tcell.ModNone)
	v.modals.mouse(click, tview.MouseLeftClick)

	if got := openNames(v.modals); len(got) != 1 || got[0] != "sticky" {
		t.Fatalf("expected only the persistent modal to stay open, got %v", got)
	}

	v.modals.mouse(click, tview.MouseMove)
	if len(v.modals.open) != 1 {
		t.Fatalf("expected non-click events to keep modals open")
	}
}
