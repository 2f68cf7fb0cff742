package views

import (
	"github.com/darkhz/tview"
	"go.uber.org/atomic"

	"github.com/ps2ble/bondmgr/ui/keybindings"
)

// pageContexts maps a page to the keybinding context used while it is in front.
// Pages which are not listed use the application context.
var pageContexts = map[viewName]keybindings.Context{
	devicePage:  keybindings.ContextDevice,
	pairingPage: keybindings.ContextPairing,
}

// viewPages tracks the keybinding context of the page in front.
type viewPages struct {
	keyContext atomic.String

	*tview.Pages
}

// newViewPages returns a new viewPages, with the devices page in front.
func newViewPages() *viewPages {
	p := &viewPages{
		Pages: tview.NewPages(),
	}
	p.keyContext.Store(string(keybindings.ContextDevice))

	return p
}

// track updates the keybinding context for the page now in front.
func (v *viewPages) track(page string) {
	c, ok := pageContexts[viewName(page)]
	if !ok {
		c = keybindings.ContextApp
	}

	v.keyContext.Store(string(c))
}

// context returns the keybinding context of the page in front.
func (v *viewPages) context() keybindings.Context {
	return keybindings.Context(v.keyContext.Load())
}
