package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/logging"
	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/config"
)

// closeTimeout bounds how long exiting waits for the adapter to
// leave scanning mode.
const closeTimeout = 5 * time.Second

// notifyContext returns a context that is cancelled on an interrupt.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// newClient returns a client for the configured companion device.
func newClient(cfg *config.Config, log zerolog.Logger) (*companion.Client, error) {
	return companion.New(cfg.Values.Server, companion.Options{
		Prefix:  cfg.Values.APIPrefix,
		Timeout: cfg.Values.ReqTimeout,
		Logger:  log,
	})
}

// headlessLogger returns the logger of the commands that run without the interface.
func headlessLogger(cfg *config.Config) zerolog.Logger {
	level := cfg.Values.LogLevel
	if level == "info" {
		level = "warn"
	}

	return logging.NewConsole(level, os.Stderr)
}

// listBonded prints the devices bonded to the adapter.
func listBonded(ctx context.Context, cfg *config.Config) error {
	client, err := newClient(cfg, headlessLogger(cfg))
	if err != nil {
		return err
	}

	devices, err := client.BondedDevices(ctx)
	if err != nil {
		return fmt.Errorf("cannot list bonded devices: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No devices are bonded.")
		return nil
	}

	fmt.Println("List of bonded devices:")
	for _, device := range devices {
		fmt.Println("-", formatDevice(device))
	}

	return nil
}

// deleteBond removes the bond of the device with the given address.
// If addressType is empty, it is looked up from the bonded devices.
func deleteBond(ctx context.Context, cfg *config.Config, address, addressType string) error {
	address, err := companion.ParseAddress(address)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, headlessLogger(cfg))
	if err != nil {
		return err
	}

	kind := companion.AddressType(addressType)
	if kind == "" {
		kind, err = lookupAddressType(ctx, client, address)
		if err != nil {
			return err
		}
	}
	if !kind.Valid() {
		return fmt.Errorf("%s: invalid address type, must be public or random", addressType)
	}

	result, err := client.DeleteBond(ctx, address, kind)
	if err != nil {
		return fmt.Errorf("cannot remove bond: %w", err)
	}
	if !result.Deleted {
		return fmt.Errorf("%s: %s", address, result.Message)
	}

	fmt.Println("Removed the bond of", address)

	return nil
}

// lookupAddressType returns the address type of a bonded device,
// or the public address type if the device is not bonded.
func lookupAddressType(ctx context.Context, client *companion.Client, address string) (companion.AddressType, error) {
	devices, err := client.BondedDevices(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot list bonded devices: %w", err)
	}

	for _, device := range devices {
		if device.Address == address {
			return device.AddressType, nil
		}
	}

	return companion.AddressPublic, nil
}

// pairDevice runs a pairing session and displays its progress.
// An interrupt cancels the session.
func pairDevice(ctx context.Context, cfg *config.Config) error {
	log := headlessLogger(cfg)

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetDescription("Scanning..."),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	coordinator := pairing.New(client, pairing.NewBondPoller(client, log), pairing.Options{
		Interval:       cfg.Values.Interval,
		Timeout:        cfg.Values.Timeout,
		RequestTimeout: cfg.Values.ReqTimeout,
		OnProgress: func(snapshot pairing.Snapshot) {
			bar.Set(snapshot.Percent())
		},
		Logger: log,
	})

	outcomes := make(chan pairing.Outcome, 1)
	if _, err := coordinator.Begin(func(o pairing.Outcome) {
		outcomes <- o
	}); err != nil {
		return err
	}

	var outcome pairing.Outcome

	select {
	case <-ctx.Done():
		coordinator.Cancel()
		outcome = <-outcomes

	case outcome = <-outcomes:
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := coordinator.Close(closeCtx); err != nil {
		printWarn("the adapter could not be returned to its idle scan mode: %s", err)
	}

	switch outcome.State {
	case pairing.Found:
		bar.Finish()

		fmt.Println("Paired with", formatDevice(outcome.Device))

		return nil

	case pairing.Cancelled:
		bar.Exit()
		fmt.Fprintln(os.Stderr)
		printWarn("pairing cancelled")

		return nil
	}

	bar.Exit()
	fmt.Fprintln(os.Stderr)

	return errors.New("no device was found, check that the device is in pairing mode and try again")
}
