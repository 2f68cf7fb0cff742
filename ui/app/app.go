package app

import (
	"time"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/app/views"
	"github.com/ps2ble/bondmgr/ui/config"
)

// drawDelay is how long queued draws are collected before the screen is redrawn.
const drawDelay = 50 * time.Millisecond

// Services holds the companion device services that the application displays.
type Services struct {
	Server    string
	Inventory views.Inventory
	Pairing   views.Pairing
	Logger    zerolog.Logger
}

// Application is the terminal interface of the bond manager.
type Application struct {
	view *views.Views
}

// NewApplication returns a new application.
func NewApplication() *Application {
	return &Application{
		view: views.NewViews(),
	}
}

// Start runs the application until it is closed.
func (a *Application) Start(services Services, cfg *config.Config) error {
	binder := &appBinder{
		services:    services,
		draws:       make(chan struct{}, 1),
		done:        make(chan struct{}),
		Application: tview.NewApplication(),
	}
	defer close(binder.done)

	layout, err := a.view.Initialize(binder, cfg)
	if err != nil {
		return err
	}

	binder.SetInputCapture(layout.InputCapture)
	binder.SetMouseCapture(layout.MouseFunc)
	binder.SetBeforeDrawFunc(layout.BeforeDrawFunc)
	binder.SetRoot(layout.Layout, true)
	binder.SetFocus(layout.InitialFocus)
	binder.EnableMouse(true)

	go binder.redrawQueued()

	return binder.Run()
}

// PairingProgress is the progress callback of the pairing coordinator.
func (a *Application) PairingProgress(snapshot pairing.Snapshot) {
	a.view.PairingProgress(snapshot)
}

// appBinder implements [views.AppBinder] on a tview application.
type appBinder struct {
	services Services

	// draws is signalled by QueueDraw.
	draws chan struct{}
	done  chan struct{}

	suspend atomic.Bool

	*tview.Application
}

func (a *appBinder) Inventory() views.Inventory { return a.services.Inventory }
func (a *appBinder) Pairing() views.Pairing { return a.services.Pairing }
func (a *appBinder) Server() string { return a.services.Server }
func (a *appBinder) Logger() zerolog.Logger { return a.services.Logger }

// InstantDraw runs drawFunc in the event loop and redraws the screen.
func (a *appBinder) InstantDraw(drawFunc func()) {
	a.QueueUpdateDraw(drawFunc)
}

// QueueDraw runs drawFunc in the event loop. The screen is redrawn
// shortly after, once for all the draws queued in the meantime.
func (a *appBinder) QueueDraw(drawFunc func()) {
	a.QueueUpdate(drawFunc)

	select {
	case a.draws <- struct{}{}:
	default:
	}
}

func (a *appBinder) Refresh() { a.Draw() }
func (a *appBinder) GetFocused() tview.Primitive { return a.GetFocus() }
func (a *appBinder) FocusPrimitive(primitive tview.Primitive) { a.SetFocus(primitive) }
func (a *appBinder) Close() { a.Stop() }

// StartSuspend requests a suspend, which runs on the next draw.
func (a *appBinder) StartSuspend() {
	a.suspend.Store(true)
}

// Suspend stops the process if a suspend was requested.
func (a *appBinder) Suspend(t tcell.Screen) {
	if !a.suspend.CompareAndSwap(true, false) {
		return
	}

	if err := stopProcess(t); err != nil {
		a.services.Logger.Warn().Err(err).Msg("cannot suspend")
	}
}

// redrawQueued redraws the screen drawDelay after the first of a burst of
// queued draws.
func (a *appBinder) redrawQueued() {
	timer := time.NewTimer(drawDelay)
	timer.Stop()

	var pending bool

	for {
		select {
		case <-a.done:
			timer.Stop()
			return

		case <-a.draws:
			if !pending {
				pending = true
				timer.Reset(drawDelay)
			}

		case <-timer.C:
			pending = false
			go a.Refresh()
		}
	}
}
