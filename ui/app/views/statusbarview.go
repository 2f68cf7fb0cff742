package views

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

const (
	statusInputPage    viewName = "input"
	statusMessagesPage viewName = "messages"

	messageTimeout = 2 * time.Second
)

// statusBarView holds the status bar, which displays messages
// and reads single-line input from the user.
type statusBarView struct {
	// MessageBox is an area to display messages.
	MessageBox *tview.TextView

	// Help is an area to display help keybindings.
	Help *tview.TextView

	// InputField is an area to interact with messages.
	InputField *tview.InputField

	sctx    context.Context
	scancel context.CancelFunc
	msgchan chan message

	*Views

	*tview.Pages
}

// message is a status bar message. A persistent message stays until the next one.
type message struct {
	text    string
	persist bool
}

// Initialize builds the status bar, and adds it to the layout.
func (s *statusBarView) Initialize() error {
	s.Pages = tview.NewPages()
	s.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	s.InputField = tview.NewInputField()
	s.InputField.SetLabelColor(theme.Color(theme.ThemeText))
	s.InputField.SetFieldTextColor(theme.Color(theme.ThemeText))
	s.InputField.SetBackgroundColor(theme.Color(theme.ThemeBackground))
	s.InputField.SetFieldBackgroundColor(theme.Color(theme.ThemeBackground))

	s.MessageBox = tview.NewTextView()
	s.MessageBox.SetDynamicColors(true)
	s.MessageBox.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	s.Help = tview.NewTextView()
	s.Help.SetDynamicColors(true)
	s.Help.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	s.AddPage(statusInputPage.String(), s.InputField, true, true)
	s.AddPage(statusMessagesPage.String(), s.MessageBox, true, true)
	s.SwitchToPage(statusMessagesPage.String())

	s.msgchan = make(chan message, 10)
	s.sctx, s.scancel = context.WithCancel(context.Background())

	go s.showMessages(s.sctx)

	s.layout.AddItem(s.Pages, 1, 0, false)

	return nil
}

// SetRootView sets the root view of the status bar.
func (s *statusBarView) SetRootView(root *Views) {
	s.Views = root
}

// Release stops showing messages.
func (s *statusBarView) Release() {
	s.scancel()
}

// ask shows label in the input field and returns the key pressed by the
// user. It returns an empty string if the user pressed the Close key or
// ctx was done first.
func (s *statusBarView) ask(ctx context.Context, label string) string {
	answer := make(chan string, 1)
	var once sync.Once

	restore := func() {
		once.Do(func() {
			s.InputField.SetInputCapture(nil)
			s.SwitchToPage(statusMessagesPage.String())
			s.modals.focusTop()
		})
	}

	s.app.InstantDraw(func() {
		s.InputField.SetText("")
		s.InputField.SetLabel("[::b]" + label + " ")
		s.InputField.SetAcceptanceFunc(tview.InputFieldMaxLength(1))
		s.InputField.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
			if s.kb.Key(event) == keybindings.KeyClose {
				answer <- ""
			} else {
				answer <- string(event.Rune())
			}

			restore()

			return nil
		})

		s.SwitchToPage(statusInputPage.String())
		s.app.FocusPrimitive(s.InputField)
	})

	select {
	case <-ctx.Done():
		go s.app.QueueDraw(restore)

		return ""

	case a := <-answer:
		return a
	}
}

// InfoMessage sends an info message to the status bar.
func (s *statusBarView) InfoMessage(text string, persist bool) {
	if s.msgchan == nil {
		return
	}

	select {
	case s.msgchan <- message{theme.Colorize(theme.ThemeStatusInfo, text), persist}:
		return

	default:
	}
}

// ErrorMessage sends an error message to the status bar.
func (s *statusBarView) ErrorMessage(err error) {
	if s.msgchan == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	text := err.Error()

	var statusErr *companion.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		text = "the companion device did not respond in time"

	case errors.As(err, &statusErr):
		text = "the companion device replied with status " + strconv.Itoa(statusErr.Code)

	case errors.Is(err, companion.ErrMalformedResponse):
		text = "the companion device sent an invalid reply"
	}

	select {
	case s.msgchan <- message{theme.Colorize(theme.ThemeStatusError, "Error: "+tview.Escape(text)), false}:
		return

	default:
	}
}

// showMessages shows each message sent to the status bar. A message is
// replaced after messageTimeout by the last persistent message, or cleared
// if the last message was not persistent.
func (s *statusBarView) showMessages(ctx context.Context) {
	var resting string

	expiry := time.NewTimer(messageTimeout)
	defer expiry.Stop()

	show := func(text string) {
		s.app.InstantDraw(func() {
			s.MessageBox.SetText(text)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-s.msgchan:
			resting = ""
			if msg.persist {
				resting = msg.text
			}

			show(msg.text)
			expiry.Reset(messageTimeout)

		case <-expiry.C:
			show(resting)
		}
	}
}
