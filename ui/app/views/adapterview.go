package views

import (
	"fmt"
	"strconv"

	"github.com/darkhz/tview"
	"go.uber.org/atomic"

	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/theme"
)

// adapterView holds the header of the companion adapter, which contains the displays of:
// - The companion server address on the left-most side.
// - The adapter statuses on the right-most side.
type adapterView struct {
	topServer *tview.TextView
	topStatus *tview.TextView

	bonded atomic.Int32

	*Views
}

// Initialize initializes the adapter view.
func (a *adapterView) Initialize() error {
	a.topServer = tview.NewTextView()
	a.topServer.SetDynamicColors(true)
	a.topServer.SetTextAlign(tview.AlignLeft)
	a.topServer.SetBackgroundColor(theme.Color(theme.ThemeBackground))
	a.topServer.SetText(theme.Emphasize(theme.ThemeHeader, tview.Escape(a.app.Server())))

	a.topStatus = tview.NewTextView()
	a.topStatus.SetDynamicColors(true)
	a.topStatus.SetTextAlign(tview.AlignRight)
	a.topStatus.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	a.updateTopStatus(pairing.Idle)

	return nil
}

// SetRootView sets the root view for the adapter view.
func (a *adapterView) SetRootView(v *Views) {
	a.Views = v
}

// setBondCount stores the number of bonds shown in the header.
func (a *adapterView) setBondCount(count int) {
	a.bonded.Store(int32(count))
	a.updateTopStatus(a.app.Pairing().Snapshot().State)
}

// updateTopStatus updates the adapter status display.
// It must be called from the drawing goroutine.
func (a *adapterView) updateTopStatus(state pairing.State) {
	a.topStatus.Clear()

	scanning := state == pairing.Scanning

	for _, status := range []struct {
		Title   string
		Enabled bool
		Color   theme.Context
	}{
		{
			Title:   "Scanning",
			Enabled: scanning,
			Color:   theme.ThemeHeaderScanning,
		},
		{
			Title:   strconv.Itoa(int(a.bonded.Load())) + " Bonded",
			Enabled: true,
			Color:   theme.ThemeHeader,
		},
	} {
		if !status.Enabled {
			continue
		}

		fmt.Fprint(a.topStatus, theme.Badge(status.Color, status.Title))
	}
}
