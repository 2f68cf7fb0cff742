package cmd

import (
	"testing"

	"github.com/fatih/color"

	"github.com/ps2ble/bondmgr/api/companion"
)

func TestFormatDevice(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	tests := map[string]struct {
		device companion.Device
		want   string
	}{
		"connected": {
			companion.Device{Address: "db:e9:33:80:a2:91", AddressType: companion.AddressRandom, Name: "MX Anywhere 3", Appearance: companion.AppearanceMouse, IsConnected: true},
			"MX Anywhere 3 (Mouse) db:e9:33:80:a2:91 random connected",
		},
		"unnamed": {
			companion.Device{Address: "f6:0b:33:81:7e:c2", AddressType: companion.AddressPublic, Appearance: "Joystick"},
			"(No name) (Unknown) f6:0b:33:81:7e:c2 public",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := formatDevice(tc.device); got != tc.want {
				t.Fatalf("formatDevice = %q, want %q", got, tc.want)
			}
		})
	}
}
