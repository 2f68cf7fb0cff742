// Package emulator serves an in-memory stand-in for the companion service,
// with bonded devices and pairing candidates seeded from fixtures.
package emulator

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/pairing"
)

// DefaultPairDelay is the time a candidate takes to bond once scanning starts.
const DefaultPairDelay = 7 * time.Second

// The different deletion messages.
const (
	msgBondNotFound = "Bond not found"
	msgDeleteFailed = "Failed to delete bond"
)

// ErrInvalidScanMode is returned when an unknown scan mode is requested.
var ErrInvalidScanMode = errors.New("invalid scan mode")

// StoreOptions describes the store options.
type StoreOptions struct {
	// PairDelay is the time after which a candidate bonds. Defaults to DefaultPairDelay.
	PairDelay time.Duration

	// Scheduler arms the bonding timer. Defaults to pairing.SystemScheduler.
	Scheduler pairing.Scheduler

	Metrics *Metrics
	Logger  zerolog.Logger
}

// Store holds the state of the emulated adapter.
type Store struct {
	pairDelay time.Duration
	scheduler pairing.Scheduler
	metrics   *Metrics
	log       zerolog.Logger

	mu         sync.Mutex
	bonded     []FixtureDevice
	candidates []FixtureDevice
	mode       companion.ScanMode
	last       *companion.Device
	pending    pairing.Timer
	generation uint64
}

// NewStore returns a store seeded with the fixtures.
// The adapter starts in the paired-devices-only scan mode.
func NewStore(f Fixtures, opts StoreOptions) *Store {
	if opts.PairDelay <= 0 {
		opts.PairDelay = DefaultPairDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = pairing.SystemScheduler()
	}

	s := &Store{
		pairDelay:  opts.PairDelay,
		scheduler:  opts.Scheduler,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		bonded:     slices.Clone(f.Bonded),
		candidates: slices.Clone(f.Candidates),
		mode:       companion.ScanPairedDevicesOnly,
	}
	s.metrics.SetScanMode(s.mode)

	return s
}

// BondedDevices returns the bonded devices.
func (s *Store) BondedDevices() []companion.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]companion.Device, 0, len(s.bonded))
	for _, d := range s.bonded {
		devices = append(devices, d.device())
	}

	return devices
}

// DeleteBond removes the bond with the device.
func (s *Store) DeleteBond(address string, addressType companion.AddressType) companion.DeleteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.deleteBond(address, addressType)
	s.metrics.IncDelete(result.Deleted)

	s.log.Info().
		Str("address", address).
		Bool("deleted", result.Deleted).
		Str("message", result.Message).
		Msg("delete bond")

	return result
}

func (s *Store) deleteBond(address string, addressType companion.AddressType) companion.DeleteResult {
	address, err := companion.ParseAddress(address)
	if err != nil {
		return companion.DeleteResult{Message: msgBondNotFound}
	}

	i := slices.IndexFunc(s.bonded, func(d FixtureDevice) bool {
		return d.Address == address && d.AddressType == addressType
	})
	if i < 0 {
		return companion.DeleteResult{Message: msgBondNotFound}
	}

	if s.bonded[i].Locked {
		return companion.DeleteResult{Message: msgDeleteFailed}
	}

	s.bonded = slices.Delete(s.bonded, i, i+1)
	if s.last != nil && s.last.Address == address {
		s.last = nil
	}

	return companion.DeleteResult{Deleted: true}
}

// ScanMode returns the current scan mode.
func (s *Store) ScanMode() companion.ScanMode {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mode
}

// SetScanMode changes the scan mode. Entering the new-devices-only mode
// forgets the last connected device and schedules the next candidate
// to bond; any other mode cancels a pending bond.
func (s *Store) SetScanMode(mode companion.ScanMode) error {
	if !mode.Valid() {
		return ErrInvalidScanMode
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	s.metrics.SetScanMode(mode)
	s.stopPending()

	if mode != companion.ScanNewDevicesOnly {
		s.log.Info().Stringer("mode", mode).Msg("scan mode changed")
		return nil
	}

	s.last = nil

	candidate, ok := s.nextCandidate()
	if !ok {
		s.log.Info().Stringer("mode", mode).Msg("scanning, no candidate left to bond")
		return nil
	}

	generation := s.generation
	s.pending = s.scheduler.AfterFunc(s.pairDelay, func() {
		s.bond(generation, candidate)
	})

	s.log.Info().
		Stringer("mode", mode).
		Str("candidate", candidate.Address).
		Dur("delay", s.pairDelay).
		Msg("scanning")

	return nil
}

// LastConnectedDevice returns the device bonded since scanning started.
func (s *Store) LastConnectedDevice() (companion.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return companion.Device{}, false
	}

	return *s.last, true
}

// Close cancels a pending bond.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopPending()
}

func (s *Store) bond(generation uint64, candidate FixtureDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation || s.mode != companion.ScanNewDevicesOnly {
		return
	}
	s.pending = nil

	candidate.Connected = true
	s.bonded = append(s.bonded, candidate)

	device := candidate.device()
	s.last = &device
	s.metrics.IncBond()

	s.log.Info().Str("address", device.Address).Str("name", device.Name).Msg("device bonded")
}

// nextCandidate returns the first candidate which is not bonded.
func (s *Store) nextCandidate() (FixtureDevice, bool) {
	for _, c := range s.candidates {
		bonded := slices.ContainsFunc(s.bonded, func(d FixtureDevice) bool {
			return d.Address == c.Address
		})
		if !bonded {
			return c, true
		}
	}

	return FixtureDevice{}, false
}

func (s *Store) stopPending() {
	s.generation++

	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
