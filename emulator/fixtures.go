package emulator

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ps2ble/bondmgr/api/companion"
)

// FixtureDevice describes a device of the fixture file.
type FixtureDevice struct {
	Address     string                `yaml:"address"`
	AddressType companion.AddressType `yaml:"addressType"`
	Name        string                `yaml:"name"`
	Appearance  companion.Appearance  `yaml:"appearance"`
	Connected   bool                  `yaml:"connected"`

	// Locked devices cannot be removed.
	Locked bool `yaml:"locked"`
}

// Fixtures holds the initial state of the emulated adapter.
type Fixtures struct {
	// Bonded is the initial set of bonded devices.
	Bonded []FixtureDevice `yaml:"bonded"`

	// Candidates are bonded one at a time, while the adapter
	// scans for new devices.
	Candidates []FixtureDevice `yaml:"candidates"`
}

// DefaultFixtures returns the built-in fixtures.
func DefaultFixtures() Fixtures {
	return Fixtures{
		Bonded: []FixtureDevice{
			{
				Address:     "db:e9:33:80:a2:91",
				AddressType: companion.AddressRandom,
				Name:        "MX Anywhere 3",
				Appearance:  companion.AppearanceMouse,
				Connected:   true,
				Locked:      true,
			},
			{
				Address:     "e4:2a:91:0c:5d:17",
				AddressType: companion.AddressPublic,
				Name:        "Keychron K3",
				Appearance:  companion.AppearanceKeyboard,
			},
			{
				Address:     "f6:0b:33:81:7e:c2",
				AddressType: companion.AddressRandom,
				Appearance:  companion.AppearanceGenericHID,
			},
		},
		Candidates: []FixtureDevice{
			{
				Address:     "d3:55:a0:19:6b:e8",
				AddressType: companion.AddressRandom,
				Name:        "Keyboard K380",
				Appearance:  companion.AppearanceKeyboard,
			},
			{
				Address:     "c8:7f:54:22:91:0a",
				AddressType: companion.AddressRandom,
				Name:        "Pebble M350",
				Appearance:  companion.AppearanceMouse,
			},
		},
	}
}

// LoadFixtures reads the fixtures from the YAML file at path.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}

	return ParseFixtures(data)
}

// ParseFixtures decodes and validates YAML fixtures.
func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}

	if err := f.normalize(); err != nil {
		return Fixtures{}, err
	}

	return f, nil
}

func (f *Fixtures) normalize() error {
	seen := make(map[string]struct{}, len(f.Bonded))

	for i := range f.Bonded {
		if err := f.Bonded[i].normalize(); err != nil {
			return fmt.Errorf("bonded device %d: %w", i, err)
		}

		address := f.Bonded[i].Address
		if _, ok := seen[address]; ok {
			return fmt.Errorf("bonded device %d: duplicate address %s", i, address)
		}
		seen[address] = struct{}{}
	}

	for i := range f.Candidates {
		if err := f.Candidates[i].normalize(); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}

	return nil
}

func (d *FixtureDevice) normalize() error {
	address, err := companion.ParseAddress(d.Address)
	if err != nil {
		return fmt.Errorf("%w: %q", err, d.Address)
	}
	d.Address = address

	switch {
	case d.AddressType == "":
		d.AddressType = companion.AddressPublic

	case !d.AddressType.Valid():
		return fmt.Errorf("invalid address type %q", d.AddressType)
	}

	d.Appearance = d.Appearance.Category()

	return nil
}

// device returns the device as reported by the service.
func (d FixtureDevice) device() companion.Device {
	return companion.Device{
		Address:     d.Address,
		AddressType: d.AddressType,
		Name:        d.Name,
		Appearance:  d.Appearance,
		IsConnected: d.Connected,
	}
}
