package views

import (
	"context"
	"strings"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

const devicePage viewName = "devices"

// deviceView holds the bonded devices view.
type deviceView struct {
	table *tview.Table

	*Views
}

// Initialize initializes the devices view.
func (d *deviceView) Initialize() error {
	d.table = tview.NewTable()
	d.table.SetSelectorWrap(true)
	d.table.SetSelectable(true, false)
	d.table.SetBackgroundColor(theme.Color(theme.ThemeBackground))
	d.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		key := d.kb.Key(event, keybindings.ContextDevice)

		switch key {
		case keybindings.KeyHelp:
			d.help.showHelp()
			return event

		case keybindings.KeySelect:
			key = keybindings.KeyDeviceInfo
		}

		if d.actions.has(key) {
			d.actions.handler(key)()
		}

		return ignoreDefaultEvent(event)
	})

	d.refresh()

	return nil
}

// SetRootView sets the root view of the devices view.
func (d *deviceView) SetRootView(v *Views) {
	d.Views = v
}

// refresh fetches the bonded devices in the background and lists them.
func (d *deviceView) refresh() {
	d.op.start(func(ctx context.Context) error {
		d.status.InfoMessage("Fetching bonded devices...", true)

		if err := d.fetch(ctx); err != nil {
			return err
		}

		d.status.InfoMessage("Listed bonded devices", false)

		return nil
	})
}

// fetch retrieves the bonded devices and lists them.
func (d *deviceView) fetch(ctx context.Context) error {
	devices, err := d.app.Inventory().BondedDevices(ctx)
	if err != nil {
		return err
	}

	d.app.QueueDraw(func() {
		d.list(devices)
	})

	return nil
}

// list replaces the listed devices, keeping the selected device selected
// if it is still bonded.
func (d *deviceView) list(devices []companion.Device) {
	selected, _ := d.selected()

	d.table.Clear()
	for row, device := range devices {
		d.setRow(row, device)
	}

	d.table.Select(max(d.rowOf(selected.Address), 0), 0)
	d.adapter.setBondCount(len(devices))
}

// showDetailedInfo shows the properties of the selected device in a modal.
func (d *deviceView) showDetailedInfo() {
	device, ok := d.selected()
	if !ok {
		return
	}

	appearance := string(device.Appearance.Category())
	if device.Appearance != device.Appearance.Category() {
		appearance += " (" + string(device.Appearance) + ")"
	}

	connected := "no"
	if device.IsConnected {
		connected = "yes"
	}

	props := []struct{ name, value string }{
		{"Name", device.DisplayName()},
		{"Address", device.Address},
		{"Address Type", string(device.AddressType)},
		{"Appearance", appearance},
		{"Connected", connected},
	}

	modal := d.modals.newTableModal("info", "Device Information", len(props)+4, 60)
	for row, prop := range props {
		modal.table.SetCell(row, 0, tview.NewTableCell("[::b]"+prop.name+":").
			SetExpansion(1).
			SetTextColor(theme.Color(theme.ThemeText)).
			SetSelectedStyle(tcell.StyleDefault.Bold(true).Underline(true)),
		)
		modal.table.SetCell(row, 1, tview.NewTableCell(tview.Escape(prop.value)).
			SetExpansion(1).
			SetTextColor(theme.Color(theme.ThemeText)),
		)
	}

	modal.show()
}

// deviceAt returns the device listed in row.
func (d *deviceView) deviceAt(row int) (companion.Device, bool) {
	cell := d.table.GetCell(row, 0)
	if cell == nil {
		return companion.Device{}, false
	}

	device, ok := cell.GetReference().(companion.Device)

	return device, ok
}

// selected returns the selected device. It must be called from the event loop.
func (d *deviceView) selected() (companion.Device, bool) {
	row, _ := d.table.GetSelection()

	return d.deviceAt(row)
}

// rowOf returns the row listing the device with address, or -1.
func (d *deviceView) rowOf(address string) int {
	if address == "" {
		return -1
	}

	for row := range d.table.GetRowCount() {
		if device, ok := d.deviceAt(row); ok && device.Address == address {
			return row
		}
	}

	return -1
}

// setRow lists device in row: its name and category on the left, and
// its address, address type and connection state on the right.
func (d *deviceView) setRow(row int, device companion.Device) {
	name := theme.Colorize(theme.ThemeDeviceName, tview.Escape(device.DisplayName())) +
		" (" + theme.Colorize(theme.ThemeDeviceAppearance, string(device.Appearance.Category())) + ")"

	nameColor, propColor := theme.ThemeDevice, theme.ThemeDeviceProperty

	props := []string{device.Address, string(device.AddressType)}
	if device.IsConnected {
		props = append(props, "Connected")
		nameColor, propColor = theme.ThemeDeviceConnected, theme.ThemeDevicePropertyConnected
	}

	d.table.SetCell(row, 0, tview.NewTableCell(name).
		SetExpansion(1).
		SetReference(device).
		SetAttributes(tcell.AttrBold).
		SetTextColor(theme.Color(nameColor)).
		SetSelectedStyle(theme.Selected(nameColor)),
	)
	d.table.SetCell(row, 1, tview.NewTableCell("("+strings.Join(props, ", ")+")").
		SetExpansion(1).
		SetAlign(tview.AlignRight).
		SetTextColor(theme.Color(propColor)).
		SetSelectedStyle(tcell.StyleDefault.Bold(true)),
	)
}
