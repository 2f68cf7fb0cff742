package views

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"
	"github.com/schollz/progressbar/v3"

	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

const pairingPage viewName = "pairing"

// pairingView displays the progress of a pairing session within a modal.
type pairingView struct {
	mu      sync.Mutex
	session pairing.SessionID
	current *pairingIndicator

	*Views
}

// pairingIndicator describes the modal of a single pairing session,
// which displays a description and a progress bar.
type pairingIndicator struct {
	modal    *modalView
	desc     *tview.TextView
	progress *tview.TextView
	hint     *tview.TextView

	progressBar *progressbar.ProgressBar

	appDrawFunc func(func())
}

// Initialize initializes the pairing view.
func (p *pairingView) Initialize() error {
	return nil
}

// SetRootView sets the root view of the pairing view.
func (p *pairingView) SetRootView(v *Views) {
	p.Views = v
}

// start begins a new pairing session and displays its progress.
func (p *pairingView) start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.status.InfoMessage("A pairing session is already running", false)
		return
	}

	indicator := p.newIndicator()

	id, err := p.app.Pairing().Begin(p.outcome)
	if err != nil {
		p.status.ErrorMessage(fmt.Errorf("cannot start pairing: %w", err))
		return
	}

	p.session = id
	p.current = indicator

	p.app.QueueDraw(func() {
		indicator.modal.show()
		p.adapter.updateTopStatus(pairing.Scanning)
	})

	go p.watch(id, indicator)

	log := p.app.Logger()
	log.Info().Str("session", string(id)).Msg("pairing started")
}

// newIndicator builds the modal for a pairing session.
func (p *pairingView) newIndicator() *pairingIndicator {
	indicator := &pairingIndicator{
		appDrawFunc: p.app.QueueDraw,
	}

	newText := func(text string) *tview.TextView {
		textview := tview.NewTextView()
		textview.SetText(text)
		textview.SetDynamicColors(true)
		textview.SetTextAlign(tview.AlignCenter)
		textview.SetTextColor(theme.Color(theme.ThemeProgressText))
		textview.SetBackgroundColor(theme.Color(theme.ThemeBackground))

		return textview
	}

	indicator.desc = newText("Put the device into pairing mode.")
	indicator.progress = newText("")
	indicator.progress.SetTextColor(theme.Color(theme.ThemeProgressBar))
	indicator.hint = newText(fmt.Sprintf("Press %s to stop scanning, %s to close.",
		p.kb.Name(p.kb.Data(keybindings.KeyPairingCancel).Kb),
		p.kb.Name(p.kb.Data(keybindings.KeyClose).Kb),
	))

	content := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(indicator.desc, 2, 0, false).
		AddItem(indicator.progress, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(indicator.hint, 1, 0, false)
	content.SetBackgroundColor(theme.Color(theme.ThemeBackground))
	content.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch p.kb.Key(event, keybindings.ContextPairing) {
		case keybindings.KeyPairingCancel:
			go p.app.Pairing().Cancel()

		case keybindings.KeyClose, keybindings.KeySelect:
			indicator.modal.remove()

		case keybindings.KeyQuit:
			go p.actions.quit()
		}

		return event
	})

	indicator.modal = p.modals.newModal(pairingPage.String(), "Scanning...", content, 9, 60)
	indicator.modal.persistent = true

	indicator.progressBar = progressbar.NewOptions(
		100,
		progressbar.OptionSetWriter(indicator),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)

	return indicator
}

// watch cancels the session if its modal is closed while scanning.
func (p *pairingView) watch(id pairing.SessionID, indicator *pairingIndicator) {
	<-indicator.modal.removed

	p.mu.Lock()
	if p.current == indicator {
		p.current = nil
	}
	p.mu.Unlock()

	p.app.Pairing().CancelSession(id)
}

// progress updates the progress bar of the current session.
func (p *pairingView) progress(snapshot pairing.Snapshot) {
	indicator, ok := p.indicatorFor(snapshot.ID)
	if !ok {
		return
	}

	indicator.progressBar.Set(snapshot.Percent())
	indicator.appDrawFunc(func() {
		indicator.desc.SetText(fmt.Sprintf("Put the device into pairing mode.\nScanning for %s...",
			snapshot.Elapsed.Round(time.Second),
		))
	})
}

// outcome displays the result of a session.
func (p *pairingView) outcome(o pairing.Outcome) {
	log := p.app.Logger()
	log.Info().
		Str("session", string(o.Session)).
		Str("state", o.State.String()).
		Str("address", o.Device.Address).
		Msg("pairing finished")

	if !p.isLatest(o.Session) {
		return
	}

	p.app.QueueDraw(func() {
		p.adapter.updateTopStatus(o.State)
	})

	indicator, ok := p.indicatorFor(o.Session)

	switch o.State {
	case pairing.Found:
		name := o.Device.DisplayName()

		p.status.InfoMessage("Paired with "+name, false)
		p.device.refresh()

		if !ok {
			return
		}

		indicator.progressBar.Finish()
		indicator.appDrawFunc(func() {
			indicator.modal.setTitle(theme.Emphasize(theme.ThemePairingFound, "Pairing Completed"))
			indicator.desc.SetText(fmt.Sprintf("Bonded with %s\n%s (%s)",
				theme.Colorize(theme.ThemePairingFound, tview.Escape(name)),
				o.Device.Address, o.Device.AddressType,
			))
			indicator.hint.SetText("Press " + p.kb.Name(p.kb.Data(keybindings.KeyClose).Kb) + " to close.")
		})

	case pairing.TimedOut:
		p.status.ErrorMessage(errors.New("no device was found"))

		if !ok {
			return
		}

		indicator.appDrawFunc(func() {
			indicator.modal.setTitle(theme.Emphasize(theme.ThemePairingTimedOut, "No Device Found"))
			indicator.desc.SetText("No new device was bonded.\nCheck that the device is in pairing mode and try again.")
			indicator.hint.SetText("Press " + p.kb.Name(p.kb.Data(keybindings.KeyClose).Kb) + " to close.")
		})

	case pairing.Cancelled:
		p.status.InfoMessage("Pairing cancelled", false)

		if ok {
			indicator.appDrawFunc(func() {
				indicator.modal.close()
			})
		}
	}
}

// isLatest reports whether id is the most recently started session.
func (p *pairingView) isLatest(id pairing.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.session == id
}

// indicatorFor returns the indicator of the session, if it is still displayed.
func (p *pairingView) indicatorFor(id pairing.SessionID) (*pairingIndicator, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || p.session != id {
		return nil, false
	}

	return p.current, true
}

// Write is used by the progressbar to display the progress on the screen.
func (p *pairingIndicator) Write(b []byte) (int, error) {
	text := strings.TrimSpace(strings.ReplaceAll(string(b), "\r", ""))
	if text == "" {
		return len(b), nil
	}

	p.appDrawFunc(func() {
		p.progress.SetText(tview.Escape(text))
	})

	return len(b), nil
}
