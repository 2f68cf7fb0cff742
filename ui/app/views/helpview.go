package views

import (
	"slices"
	"strings"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

// helpItem describes one action in the help.
type helpItem struct {
	title, description string
	keys               []keybindings.Key

	// group is the heading the item is listed under in the status help.
	// Items without one are not listed there.
	group string
}

// helpTopic lists the actions available on a page.
type helpTopic struct {
	page  viewName
	title string
	items []helpItem
}

// helpTopics is the help, in display order.
var helpTopics = []helpTopic{
	{devicePage, "Device Screen", []helpItem{
		{"Navigation", "Navigate between bonded devices", []keybindings.Key{keybindings.KeyNavigateUp, keybindings.KeyNavigateDown}, "Navigation"},
		{"Pair", "Scan for and bond with a new device", []keybindings.Key{keybindings.KeyDevicePair}, "Pair"},
		{"Remove", "Remove the bond of the selected device", []keybindings.Key{keybindings.KeyDeviceRemove}, "Bonds"},
		{"Refresh", "Refresh the bonded devices", []keybindings.Key{keybindings.KeyDeviceRefresh}, "Bonds"},
		{"Info", "Show device information", []keybindings.Key{keybindings.KeyDeviceInfo}, "Show"},
		{"Last", "Show the last connected device", []keybindings.Key{keybindings.KeyDeviceLast}, "Show"},
		{"Cancel", "Cancel operation", []keybindings.Key{keybindings.KeyCancel}, ""},
		{"Suspend", "Suspend the application", []keybindings.Key{keybindings.KeySuspend}, ""},
		{"Help", "Show help", []keybindings.Key{keybindings.KeyHelp}, "Help"},
		{"Quit", "Quit", []keybindings.Key{keybindings.KeyQuit}, ""},
	}},
	{pairingPage, "Pairing", []helpItem{
		{"Stop", "Stop scanning for devices", []keybindings.Key{keybindings.KeyPairingCancel}, "Stop"},
		{"Close", "Close the pairing dialog", []keybindings.Key{keybindings.KeyClose}, "Close"},
	}},
}

// helpView shows the keybindings, in the status bar and in a help modal.
type helpView struct {
	page string

	*Views
}

// Initialize adds the status help area below the status bar, unless disabled.
func (h *helpView) Initialize() error {
	if h.cfg.Values.NoHelpDisplay {
		return nil
	}

	area := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(horizontalLine(), 1, 0, false).
		AddItem(h.status.Help, 1, 0, false)

	h.layout.AddItem(area, 2, 0, false)

	return nil
}

// SetRootView sets the root view for the help view.
func (h *helpView) SetRootView(v *Views) {
	h.Views = v
}

// keyNames returns the names of the bindings of keys, joined by slashes.
func (h *helpView) keyNames(keys []keybindings.Key) string {
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, h.kb.Name(h.kb.Data(key).Kb))
	}

	return strings.Join(names, "/")
}

// statusHelp returns the condensed help for page, such as
// "Bonds Remove/Refresh: d/r, Help: ?". Groups are sorted by name.
func (h *helpView) statusHelp(page string) string {
	i := slices.IndexFunc(helpTopics, func(t helpTopic) bool { return t.page.String() == page })
	if i < 0 {
		return ""
	}

	var groups []string
	members := make(map[string][]helpItem)

	for _, item := range helpTopics[i].items {
		if item.group == "" {
			continue
		}

		if _, ok := members[item.group]; !ok {
			groups = append(groups, item.group)
		}
		members[item.group] = append(members[item.group], item)
	}
	slices.Sort(groups)

	entries := make([]string, 0, len(groups))
	for _, group := range groups {
		var titles []string
		var keys []keybindings.Key

		for _, item := range members[group] {
			if item.title != group {
				titles = append(titles, item.title)
			}
			keys = append(keys, item.keys...)
		}

		heading := group
		if titles != nil {
			heading += " " + strings.Join(titles, "/")
		}

		entries = append(entries, theme.Emphasize(theme.ThemeText, heading)+
			theme.Colorize(theme.ThemeText, ": "+h.keyNames(keys)))
	}

	return strings.Join(entries, theme.Colorize(theme.ThemeText, ", "))
}

// showStatusHelp shows the condensed help of page below the status bar.
func (h *helpView) showStatusHelp(page string) {
	if h.cfg.Values.NoHelpDisplay || h.page == page {
		return
	}

	h.page = page
	h.status.Help.SetText(h.statusHelp(page))
}

// showHelp displays a modal with the help of every page.
func (h *helpView) showHelp() {
	modal := h.modals.newTableModal("help", "Help", 40, 60)
	table := modal.table

	table.SetSelectionChangedFunc(func(row, _ int) {
		if row == 1 {
			table.ScrollToBeginning()
		}
	})
	table.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action == tview.MouseScrollUp {
			table.InputHandler()(tcell.NewEventKey(tcell.KeyUp, ' ', tcell.ModNone), nil)
		}

		return action, event
	})

	cell := func(text string, expansion int) *tview.TableCell {
		return tview.NewTableCell(theme.Colorize(theme.ThemeText, text)).
			SetExpansion(expansion).
			SetTextColor(theme.Color(theme.ThemeText)).
			SetSelectedStyle(theme.Selected(theme.ThemeText))
	}

	var row int
	for _, topic := range helpTopics {
		table.SetCell(row, 0, tview.NewTableCell("[::bu]"+topic.title).
			SetSelectable(false).
			SetAlign(tview.AlignCenter).
			SetTextColor(theme.Color(theme.ThemeText)),
		)
		row++

		for _, item := range topic.items {
			table.SetCell(row, 0, cell(item.description, 1))
			table.SetCell(row, 1, cell(h.keyNames(item.keys), 0))
			row++
		}

		row++
	}

	modal.show()
}
