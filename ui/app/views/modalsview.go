package views

import (
	"context"
	"slices"
	"sync"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

// modalViews stacks the modals displayed above the pages.
// The last modal in the stack has the focus.
type modalViews struct {
	open []*modalView

	rv *Views
}

// Initialize initializes the modals view.
func (m *modalViews) Initialize() error {
	m.open = nil

	return nil
}

// SetRootView sets the root view of the modals view.
func (m *modalViews) SetRootView(v *Views) {
	m.rv = v
}

// newModal frames content with a border, a title bar and a close button.
func (m *modalViews) newModal(name, title string, content tview.Primitive, height, width int) *modalView {
	modal := &modalView{
		name:    name,
		height:  height,
		width:   width,
		title:   newTextView("", tview.AlignCenter),
		removed: make(chan struct{}),
		mgr:     m,
	}
	modal.setTitle(title)

	closer := newTextView(`["close"][::b][X[]`, tview.AlignRight)
	closer.SetRegions(true)
	closer.SetHighlightedFunc(func(added, _, _ []string) {
		if len(added) > 0 {
			modal.remove()
		}
	})

	bar := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(modal.title, 0, 10, false).
		AddItem(closer, 0, 1, false)
	bar.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	modal.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(bar, 1, 0, false).
		AddItem(horizontalLine(), 1, 0, false).
		AddItem(content, 0, 1, true)
	modal.flex.SetBorder(true)
	modal.flex.SetBorderColor(theme.Color(theme.ThemeBorder))
	modal.flex.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	return modal
}

// newTableModal returns a modal showing a selectable table.
func (m *modalViews) newTableModal(name, title string, height, width int) *tableModalView {
	table := tview.NewTable()
	table.SetSelectorWrap(true)
	table.SetSelectable(true, false)
	table.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	modal := &tableModalView{
		table:     table,
		modalView: m.newModal(name, title, table, height, width),
	}

	table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if m.rv.kb.Key(event) == keybindings.KeyClose {
			modal.remove()
		}

		return ignoreDefaultEvent(event)
	})

	return modal
}

// newMessageModal returns a modal showing message until a key is pressed.
func (m *modalViews) newMessageModal(name, title, message string) *messageModalView {
	message += "\n\nPress any key or click the 'X' button to close this dialog."

	text := newTextView(message, tview.AlignCenter)
	width, height := m.fitText(message, "")

	return &messageModalView{
		text:      text,
		modalView: m.newModal(name, title, text, height, width),
	}
}

// newConfirmModal returns a modal asking the user to confirm message.
func (m *modalViews) newConfirmModal(name, title, message string) *confirmModalView {
	const choices = `["confirm"][::b][Confirm[] ["cancel"][::b][Cancel[]`

	message += "\n\nPress y/n to Confirm/Cancel, click the required button or click the 'X' button to close this dialog."

	text := newTextView(message, tview.AlignCenter)
	buttons := newTextView(choices, tview.AlignCenter)
	buttons.SetRegions(true)

	width, height := m.fitText(message, choices)

	content := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(text, 0, 1, false).
		AddItem(buttons, 1, 0, true)

	return &confirmModalView{
		buttons:   buttons,
		modalView: m.newModal(name, title, content, height, width),
	}
}

// fitText returns the dimensions of a modal showing text above an optional
// row of buttons. The text wraps at a third of the screen width, or at the
// width of the buttons if they are wider.
func (m *modalViews) fitText(text, buttons string) (width, height int) {
	_, _, screenWidth, _ := m.rv.pages.GetRect()

	// Border, title bar and separator.
	rows := 4

	wrap := screenWidth / 3
	if buttons != "" {
		wrap = max(wrap, tview.TaggedStringWidth(buttons)-2)
		rows += 2
	}

	return wrap + 4, len(tview.WordWrap(text, wrap)) + rows
}

// find returns the open modal called name.
func (m *modalViews) find(name string) (*modalView, bool) {
	for _, modal := range m.open {
		if modal.name == name {
			return modal, true
		}
	}

	return nil, false
}

// push adds modal to the top of the stack and focuses it.
func (m *modalViews) push(modal *modalView) {
	m.rv.pages.AddAndSwitchToPage(modal.name, modal.x, true)
	m.rv.pages.ShowPage(devicePage.String())
	for _, open := range m.open {
		m.rv.pages.ShowPage(open.name)
	}

	m.open = append(m.open, modal)
	m.rv.app.FocusPrimitive(modal.flex)

	m.fitAll()
}

// pop removes modal from the stack and focuses the one below it.
func (m *modalViews) pop(modal *modalView) {
	m.rv.pages.RemovePage(modal.name)

	if i := slices.Index(m.open, modal); i >= 0 {
		m.open = slices.Delete(m.open, i, i+1)
	}

	m.focusTop()
}

// focusTop focuses the status input if it is active, otherwise the
// topmost modal, otherwise the pages.
func (m *modalViews) focusTop() {
	switch page, _ := m.rv.status.GetFrontPage(); {
	case page == statusInputPage.String():
		m.rv.app.FocusPrimitive(m.rv.status.InputField)

	case len(m.open) > 0:
		m.rv.app.FocusPrimitive(m.open[len(m.open)-1].flex)

	default:
		m.rv.app.FocusPrimitive(m.rv.pages)
	}
}

// fitAll resizes the open modals to the current screen, and redraws
// if any of them changed.
func (m *modalViews) fitAll() {
	_, _, width, height := m.rv.layout.GetInnerRect()

	var changed bool
	for _, modal := range m.open {
		if modal.fit(width, height) {
			changed = true
		}
	}

	if changed {
		go m.rv.app.Refresh()
	}
}

// mouse focuses the modal under a left click, and closes the
// other modals unless they are persistent.
func (m *modalViews) mouse(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
	if action != tview.MouseLeftClick {
		return event, action
	}

	x, y := event.Position()

	for _, modal := range slices.Clone(m.open) {
		switch {
		case modal.flex.InRect(x, y):
			m.rv.app.FocusPrimitive(modal.flex)

		case !modal.persistent:
			modal.remove()
		}
	}

	return event, action
}

// modalView is a floating frame, centered on the screen.
type modalView struct {
	name       string
	persistent bool
	isOpen     bool

	height, width int
	// The page size the modal was last fitted to.
	pageWidth, pageHeight int

	y, x  *tview.Flex
	flex  *tview.Flex
	title *tview.TextView

	removed chan struct{}
	once    sync.Once

	mgr *modalViews
}

// show displays the modal, replacing an open modal with the same name.
func (m *modalView) show() {
	if open, ok := m.mgr.find(m.name); ok {
		if open == m {
			return
		}

		open.remove()
	}

	m.isOpen = true

	m.y = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(nil, 0, 0, false).
		AddItem(m.flex, m.height, 0, true).
		AddItem(nil, 1, 0, false)

	m.x = tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(m.y, m.width, 0, true).
		AddItem(nil, 0, 1, false)

	m.mgr.push(m)
}

// fit centers the modal on a page of the given size, shrinking it to fit.
// It reports whether the layout changed.
func (m *modalView) fit(pageWidth, pageHeight int) bool {
	if !m.isOpen || (m.pageWidth == pageWidth && m.pageHeight == pageHeight) {
		return false
	}

	m.pageWidth, m.pageHeight = pageWidth, pageHeight

	width, height := min(m.width, pageWidth), min(m.height, pageHeight)

	m.y.ResizeItem(m.flex, height, 0)
	m.y.ResizeItem(nil, (pageHeight-height)/2, 0)

	m.x.ResizeItem(m.y, width, 0)
	m.x.ResizeItem(nil, (pageWidth-width)/2, 0)

	return true
}

// remove takes the modal off the screen, and signals the removed channel.
func (m *modalView) remove() {
	m.once.Do(func() {
		close(m.removed)
	})

	m.isOpen = false
	m.pageWidth, m.pageHeight = 0, 0

	m.mgr.pop(m)
}

// close removes the modal if it is still open.
func (m *modalView) close() {
	if m == nil || !m.isOpen {
		return
	}

	m.remove()
}

// setTitle changes the title of the modal.
func (m *modalView) setTitle(title string) {
	m.title.SetText("[::bu]" + title)
}

// await shows the modal and blocks until ctx is done, the modal is
// removed or a reply arrives. The modal is closed before returning.
func (m *modalView) await(ctx context.Context, reply <-chan string) string {
	go m.mgr.rv.app.QueueDraw(m.show)

	var r string

	select {
	case <-ctx.Done():
	case <-m.removed:
	case r = <-reply:
	}

	m.mgr.rv.app.QueueDraw(m.close)

	return r
}

// tableModalView is a modal showing a table.
type tableModalView struct {
	table *tview.Table

	*modalView
}

// messageModalView is a modal showing a message.
type messageModalView struct {
	text *tview.TextView

	*modalView
}

// display shows the message until ctx is done or a key is pressed.
func (d *messageModalView) display(ctx context.Context) {
	reply := make(chan string, 1)

	d.text.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		sendReply(reply, "")

		return event
	})

	d.await(ctx, reply)
}

// confirmModalView is a modal asking for a confirmation.
type confirmModalView struct {
	buttons *tview.TextView

	*modalView
}

// getReply shows the modal and waits for an answer. The reply is "y"
// only if the user confirmed.
func (c *confirmModalView) getReply(ctx context.Context) string {
	reply := make(chan string, 1)

	c.buttons.SetHighlightedFunc(func(added, _, _ []string) {
		if len(added) == 0 {
			return
		}

		if added[0] == "confirm" {
			sendReply(reply, "y")
			return
		}

		sendReply(reply, "n")
	})
	c.buttons.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Rune() == 'y', event.Rune() == 'n':
			sendReply(reply, string(event.Rune()))

		case c.mgr.rv.kb.Key(event) == keybindings.KeyClose:
			sendReply(reply, "n")
		}

		return event
	})

	return c.await(ctx, reply)
}

// sendReply sends r unless a reply is already pending.
func sendReply(reply chan<- string, r string) {
	select {
	case reply <- r:
	default:
	}
}

// newTextView returns a text view in the theme's text colors.
func newTextView(text string, align int) *tview.TextView {
	textview := tview.NewTextView()
	textview.SetText(text)
	textview.SetDynamicColors(true)
	textview.SetTextAlign(align)
	textview.SetTextColor(theme.Color(theme.ThemeText))
	textview.SetBackgroundColor(theme.Color(theme.ThemeBackground))

	return textview
}
