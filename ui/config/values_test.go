package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ps2ble/bondmgr/ui/keybindings"
)

func TestValidateValues_defaults(t *testing.T) {
	c := &Config{path: t.TempDir()}

	if err := c.ValidateValues(); err != nil {
		t.Fatalf("ValidateValues: %v", err)
	}

	v := c.Values
	if v.Server != DefaultServer || v.APIPrefix != "/api" {
		t.Fatalf("server = %q%s", v.Server, v.APIPrefix)
	}
	if v.Interval != 3*time.Second || v.Timeout != 30*time.Second || v.ReqTimeout != 5*time.Second {
		t.Fatalf("timings = %s/%s/%s", v.Interval, v.Timeout, v.ReqTimeout)
	}
	if v.LogLevel != "info" {
		t.Fatalf("log level = %q", v.LogLevel)
	}
	if want := filepath.Join(c.path, "bondmgr.log"); v.LogFile != want {
		t.Fatalf("log file = %q, want %q", v.LogFile, want)
	}
	if v.Kb == nil || v.Kb.Data(keybindings.KeyDevicePair) == nil {
		t.Fatal("keybindings not initialized")
	}
}

func TestValidateValues_overrides(t *testing.T) {
	c := &Config{
		path: t.TempDir(),
		Values: Values{
			Server:         "10.0.0.7:8080",
			APIPrefix:      "v1",
			PollInterval:   "500",
			PairTimeout:    "1m",
			RequestTimeout: "750ms",
			LogLevel:       "debug",
			LogFile:        "/tmp/custom.log",
			Keybindings:    map[string]string{"DevicePair": "n"},
		},
	}

	if err := c.ValidateValues(); err != nil {
		t.Fatalf("ValidateValues: %v", err)
	}

	v := c.Values
	if v.Server != "http://10.0.0.7:8080" || v.APIPrefix != "/v1" {
		t.Fatalf("server = %q%s", v.Server, v.APIPrefix)
	}
	if v.Interval != 500*time.Millisecond || v.Timeout != time.Minute || v.ReqTimeout != 750*time.Millisecond {
		t.Fatalf("timings = %s/%s/%s", v.Interval, v.Timeout, v.ReqTimeout)
	}
	if v.LogFile != "/tmp/custom.log" {
		t.Fatalf("log file = %q", v.LogFile)
	}
	if got := v.Kb.Data(keybindings.KeyDevicePair).Kb.Rune; got != 'n' {
		t.Fatalf("DevicePair rune = %q", got)
	}
}

func TestValidateValues_errors(t *testing.T) {
	cases := map[string]struct {
		values Values
		want   string
	}{
		"scheme":         {Values{Server: "ftp://192.168.4.1"}, "invalid server address"},
		"duration":       {Values{PollInterval: "soon"}, "poll-interval: soon: invalid duration"},
		"negative":       {Values{PairTimeout: "-5s"}, "pair-timeout: -5s: duration must be positive"},
		"interval order": {Values{PollInterval: "30s", PairTimeout: "30s"}, "must be shorter than pair-timeout"},
		"log level":      {Values{LogLevel: "loud"}, "unknown log level"},
		"theme":          {Values{Theme: map[string]string{"Menu": "red"}}, "unknown theme element"},
		"keybindings":    {Values{Keybindings: map[string]string{"DeviceRemove": "p"}}, "will conflict"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := &Config{path: t.TempDir(), Values: tc.values}

			err := c.ValidateValues()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("ValidateValues() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      time.Second,
		"3000":  3 * time.Second,
		"3s":    3 * time.Second,
		" 250 ": 250 * time.Millisecond,
	}

	for in, want := range cases {
		got, err := parseDuration(in, time.Second)
		if err != nil || got != want {
			t.Fatalf("parseDuration(%q) = %s, %v, want %s", in, got, err, want)
		}
	}

	if _, err := parseDuration("0", time.Second); err == nil {
		t.Fatal("parseDuration(0) succeeded")
	}
}
