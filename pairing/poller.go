package pairing

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
)

// Poller reports whether a new device has bonded.
type Poller interface {
	PollOnce(ctx context.Context) (companion.Device, bool)
}

// DeviceSource queries the most recently bonded device.
type DeviceSource interface {
	LastConnectedDevice(ctx context.Context) (companion.Device, bool, error)
}

// BondPoller polls a DeviceSource. Failures are reported as "no device yet".
type BondPoller struct {
	source DeviceSource
	log    zerolog.Logger
}

// NewBondPoller returns a new poller.
func NewBondPoller(source DeviceSource, log zerolog.Logger) *BondPoller {
	return &BondPoller{source: source, log: log}
}

// PollOnce queries the source once.
func (p *BondPoller) PollOnce(ctx context.Context) (companion.Device, bool) {
	device, ok, err := p.source.LastConnectedDevice(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.log.Debug().Err(err).Msg("bond poll cancelled")
		} else {
			p.log.Warn().Err(err).Msg("bond poll failed")
		}

		return companion.Device{}, false
	}

	if !ok {
		return companion.Device{}, false
	}

	return device, true
}
