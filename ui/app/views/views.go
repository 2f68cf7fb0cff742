package views

import (
	"context"
	"strings"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/config"
	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

// AppData is what the application needs to run the views, as returned by [Views.Initialize].
type AppData struct {
	Layout       *tview.Flex
	InitialFocus *tview.Flex

	MouseFunc      func(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction)
	BeforeDrawFunc func(t tcell.Screen) bool
	InputCapture   func(event *tcell.EventKey) *tcell.EventKey
}

// Inventory lists and removes the bonds stored on the companion device.
type Inventory interface {
	BondedDevices(ctx context.Context) ([]companion.Device, error)
	DeleteBond(ctx context.Context, address string, addressType companion.AddressType) (companion.DeleteResult, error)
	LastConnectedDevice(ctx context.Context) (companion.Device, bool, error)
}

// Pairing runs pairing sessions on the companion device.
type Pairing interface {
	Begin(onOutcome pairing.OutcomeFunc) (pairing.SessionID, error)
	Cancel() bool
	CancelSession(id pairing.SessionID) bool
	Snapshot() pairing.Snapshot
	Close(ctx context.Context) error
}

// AppBinder is the application as seen by the views.
type AppBinder interface {
	// Services.
	Inventory() Inventory
	Pairing() Pairing
	Server() string
	Logger() zerolog.Logger

	// Drawing.
	QueueDraw(drawFunc func())
	InstantDraw(drawFunc func())
	Refresh()

	// Focus.
	FocusPrimitive(primitive tview.Primitive)
	GetFocused() tview.Primitive

	// Lifecycle. Suspend runs in the draw handler after StartSuspend was called.
	StartSuspend()
	Suspend(t tcell.Screen)
	Close()
}

// viewInitializer is implemented by every view. SetRootView is called
// before Initialize.
type viewInitializer interface {
	Initialize() error
	SetRootView(v *Views)
}

// Views holds all the views as well as different managers for
// the view layouts, operations and actions.
type Views struct {
	// pages holds and renders the device view and any
	// modals that are displayed on top of it.
	pages  *viewPages
	layout *tview.Flex

	help    *helpView
	status  *statusBarView
	modals  *modalViews
	device  *deviceView
	adapter *adapterView
	pairing *pairingView

	actions *viewActions
	op      *viewOperation
	kb      *keybindings.Keybindings
	cfg     *config.Config

	app AppBinder
}

// NewViews returns a new Views instance.
func NewViews() *Views {
	return &Views{
		pages:   &viewPages{},
		help:    &helpView{},
		status:  &statusBarView{},
		modals:  &modalViews{},
		device:  &deviceView{},
		adapter: &adapterView{},
		pairing: &pairingView{},
		actions: &viewActions{},
		op:      &viewOperation{},
		kb:      &keybindings.Keybindings{},
	}
}

// Initialize initializes all the views.
func (v *Views) Initialize(binder AppBinder, cfg *config.Config) (*AppData, error) {
	v.app = binder
	v.cfg = cfg
	v.kb = v.cfg.Values.Kb

	v.actions = newViewActions(v)
	v.op = newViewOperation(v)

	v.pages = newViewPages()
	v.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.pages, 0, 10, true)

	for _, i := range []viewInitializer{
		v.status,
		v.help,
		v.modals,
		v.adapter,
		v.device,
		v.pairing,
	} {
		i.SetRootView(v)

		if err := i.Initialize(); err != nil {
			return nil, err
		}
	}

	return &AppData{
		Layout:         v.layout,
		InitialFocus:   v.arrangeViews(),
		MouseFunc:      v.modals.mouse,
		BeforeDrawFunc: v.beforeDraw,
		InputCapture:   v.handleKey,
	}, nil
}

// beforeDraw refits the modals to the screen and runs a pending suspend.
func (v *Views) beforeDraw(t tcell.Screen) bool {
	v.modals.fitAll()
	v.app.Suspend(t)

	return false
}

// handleKey handles the keys which act on the whole application, and
// translates navigation keys into arrow keys for the focused primitive.
func (v *Views) handleKey(event *tcell.EventKey) *tcell.EventKey {
	key := v.kb.Key(event, v.pages.context())

	if arrow, ok := v.kb.IsNavigation(key, event); ok {
		if focused := v.app.GetFocused(); focused != nil {
			if handler := focused.InputHandler(); handler != nil {
				handler(arrow, nil)
				return nil
			}
		}
	}

	switch key {
	case keybindings.KeySuspend:
		v.app.StartSuspend()

	case keybindings.KeyCancel:
		v.op.stop()
	}

	return event
}

// PairingProgress forwards the progress of the current pairing session
// to the pairing view.
func (v *Views) PairingProgress(snapshot pairing.Snapshot) {
	v.pairing.progress(snapshot)
}

// arrangeViews arranges all the views and their layouts.
func (v *Views) arrangeViews() *tview.Flex {
	header := tview.NewFlex().
		AddItem(v.adapter.topServer, 0, 1, false).
		AddItem(v.adapter.topStatus, 0, 1, false)
	header.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(v.device.table, 0, 10, true)
	flex.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	v.pages.SetBackgroundColor(theme.Color(theme.ThemeBackground))
	v.pages.SetChangedFunc(func() {
		page, _ := v.pages.GetFrontPage()

		v.pages.track(page)
		v.help.showStatusHelp(page)
	})

	v.layout.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	v.pages.AddAndSwitchToPage(devicePage.String(), flex, true)
	v.status.InfoMessage("bondmgr is ready.", false)

	return flex
}

// viewName is the page name of a view.
type viewName string

func (v viewName) String() string {
	return string(v)
}

// ignoreDefaultEvent drops the keys tables and text views would otherwise
// use for their own vim-style scrolling.
func ignoreDefaultEvent(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyCtrlF || event.Key() == tcell.KeyCtrlB {
		return nil
	}

	if event.Key() == tcell.KeyRune && strings.ContainsRune("gGjkhl", event.Rune()) {
		return nil
	}

	return event
}

// horizontalLine returns a separator drawn across the middle row of its area.
func horizontalLine() *tview.Box {
	line := tview.NewBox()
	line.SetBackgroundColor(tcell.ColorDefault)
	line.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		row := y + height/2
		style := tcell.StyleDefault.Foreground(theme.Color(theme.ThemeBorder))

		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, tview.BoxDrawingsLightHorizontal, nil, style)
		}

		return x + 1, row + 1, width - 2, height - (row + 1 - y)
	})

	return line
}
