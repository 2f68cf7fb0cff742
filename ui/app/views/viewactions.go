package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/darkhz/tview"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/ui/keybindings"
)

// closeTimeout bounds how long quitting waits for the adapter to
// leave scanning mode.
const closeTimeout = 5 * time.Second

// viewActions holds an instance of a view actions manager,
// which maps the keybindings to their respective actions.
type viewActions struct {
	rv *Views

	fnmap map[keybindings.Key]func(set ...string) bool
}

// newViewActions returns a new view actions manager.
func newViewActions(rv *Views) *viewActions {
	v := &viewActions{rv: rv}

	return v.initViewActions()
}

// initViewActions initializes and stores the different view actions.
func (v *viewActions) initViewActions() *viewActions {
	v.fnmap = map[keybindings.Key]func(set ...string) bool{
		keybindings.KeyDevicePair:    v.pair,
		keybindings.KeyDeviceRemove:  v.remove,
		keybindings.KeyDeviceInfo:    v.info,
		keybindings.KeyDeviceRefresh: v.refresh,
		keybindings.KeyDeviceLast:    v.lastConnected,
		keybindings.KeyQuit:          v.quit,
	}

	return v
}

// has reports whether an action is assigned to the key.
func (v *viewActions) has(key keybindings.Key) bool {
	_, ok := v.fnmap[key]

	return ok
}

// handler returns a function that runs the action assigned to the key
// in the background.
func (v *viewActions) handler(key keybindings.Key) func() bool {
	handler := v.fnmap[key]

	return func() bool {
		go handler()
		return false
	}
}

// pair starts a pairing session.
func (v *viewActions) pair(_ ...string) bool {
	v.rv.pairing.start()

	return true
}

// remove retrieves the selected device, and removes its bond from the adapter.
func (v *viewActions) remove(_ ...string) bool {
	device, ok := v.selectedDevice()
	if !ok {
		return false
	}

	confirm := v.rv.modals.newConfirmModal("remove", "Remove Bond",
		fmt.Sprintf("Remove the bond of %s (%s)?", tview.Escape(device.DisplayName()), device.Address),
	)
	if confirm.getReply(context.Background()) != "y" {
		return false
	}

	return v.rv.op.start(func(ctx context.Context) error {
		v.rv.status.InfoMessage("Removing "+device.DisplayName(), true)

		result, err := v.rv.app.Inventory().DeleteBond(ctx, device.Address, device.AddressType)
		if err != nil {
			return err
		}
		if !result.Deleted {
			return errors.New(result.Message)
		}

		log := v.rv.app.Logger()
		log.Info().
			Str("address", device.Address).
			Str("address_type", string(device.AddressType)).
			Msg("bond removed")
		v.rv.status.InfoMessage("Removed "+device.DisplayName(), false)

		return v.rv.device.fetch(ctx)
	})
}

// info shows the information of the selected device.
func (v *viewActions) info(_ ...string) bool {
	v.rv.app.QueueDraw(func() {
		v.rv.device.showDetailedInfo()
	})

	return true
}

// refresh refreshes the bonded devices.
func (v *viewActions) refresh(_ ...string) bool {
	v.rv.device.refresh()

	return true
}

// lastConnected shows the device that most recently bonded with the adapter.
func (v *viewActions) lastConnected(_ ...string) bool {
	return v.rv.op.start(func(ctx context.Context) error {
		device, exists, err := v.rv.app.Inventory().LastConnectedDevice(ctx)
		if err != nil {
			return err
		}

		message := "No device has connected since the adapter started."
		if exists {
			message = fmt.Sprintf("%s\n%s (%s), %s",
				tview.Escape(device.DisplayName()),
				device.Address, device.AddressType,
				device.Appearance.Category(),
			)

			v.rv.app.QueueDraw(func() {
				if row := v.rv.device.rowOf(device.Address); row >= 0 {
					v.rv.device.table.Select(row, 0)
				}
			})
		}

		go v.rv.modals.newMessageModal("last", "Last Connected Device", message).display(context.Background())

		return nil
	})
}

// quit stops any pairing session, returns the adapter to its idle scan mode
// and exits the application.
func (v *viewActions) quit(_ ...string) bool {
	if v.rv.cfg.Values.ConfirmOnQuit && v.rv.status.ask(context.Background(), "Quit (y/n)?") != "y" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := v.rv.app.Pairing().Close(ctx); err != nil {
		log := v.rv.app.Logger()
		log.Warn().Err(err).Msg("cannot restore scan mode")
	}

	v.rv.status.Release()
	v.rv.app.Close()

	return true
}

// selectedDevice returns the selected device from the devices view.
func (v *viewActions) selectedDevice() (companion.Device, bool) {
	type selection struct {
		device companion.Device
		ok     bool
	}

	selected := make(chan selection, 1)

	v.rv.app.QueueDraw(func() {
		device, ok := v.rv.device.selected()
		selected <- selection{device, ok}
	})

	s := <-selected

	return s.device, s.ok
}
