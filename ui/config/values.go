package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/logging"
	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/keybindings"
	"github.com/ps2ble/bondmgr/ui/theme"
)

// DefaultServer is the address of the companion device when it runs
// its own access point.
const DefaultServer = "http://192.168.4.1"

// Values describes the possible configuration values that a user can
// modify and supply to the application.
type Values struct {
	Server         string            `koanf:"server"`
	APIPrefix      string            `koanf:"api-prefix"`
	PollInterval   string            `koanf:"poll-interval"`
	PairTimeout    string            `koanf:"pair-timeout"`
	RequestTimeout string            `koanf:"request-timeout"`
	LogLevel       string            `koanf:"log-level"`
	LogFile        string            `koanf:"log-file"`
	NoWarning      bool              `koanf:"no-warning"`
	NoHelpDisplay  bool              `koanf:"no-help-display"`
	ConfirmOnQuit  bool              `koanf:"confirm-on-quit"`
	Theme          map[string]string `koanf:"theme"`
	Keybindings    map[string]string `koanf:"keybindings"`

	Interval   time.Duration
	Timeout    time.Duration
	ReqTimeout time.Duration
	Kb         *keybindings.Keybindings
}

// validateValues validates all configuration values.
func (v *Values) validateValues() error {
	for _, validate := range []func() error{
		v.validateServer,
		v.validateTimings,
		v.validateLogLevel,
		v.validateKeybindings,
		v.validateTheme,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

// validateServer validates the companion device address and API prefix.
func (v *Values) validateServer() error {
	if v.Server == "" {
		v.Server = DefaultServer
	}
	if !strings.Contains(v.Server, "://") {
		v.Server = "http://" + v.Server
	}

	u, err := url.Parse(v.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: invalid server address", v.Server)
	}

	if v.APIPrefix == "" {
		v.APIPrefix = companion.DefaultPrefix
	}
	if !strings.HasPrefix(v.APIPrefix, "/") {
		v.APIPrefix = "/" + v.APIPrefix
	}

	return nil
}

// validateTimings validates the pairing session durations.
// The poll interval must be shorter than the pairing timeout.
func (v *Values) validateTimings() error {
	var err error

	for _, t := range []struct {
		name, value string
		fallback    time.Duration
		dst         *time.Duration
	}{
		{"poll-interval", v.PollInterval, pairing.DefaultInterval, &v.Interval},
		{"pair-timeout", v.PairTimeout, pairing.DefaultTimeout, &v.Timeout},
		{"request-timeout", v.RequestTimeout, pairing.DefaultRequestTimeout, &v.ReqTimeout},
	} {
		if *t.dst, err = parseDuration(t.value, t.fallback); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}

	if v.Interval >= v.Timeout {
		return fmt.Errorf("poll-interval (%s) must be shorter than pair-timeout (%s)", v.Interval, v.Timeout)
	}

	return nil
}

// validateLogLevel validates the log level.
func (v *Values) validateLogLevel() error {
	if v.LogLevel == "" {
		v.LogLevel = "info"
		return nil
	}

	if !logging.ValidLevel(v.LogLevel) {
		return fmt.Errorf("%s: unknown log level", v.LogLevel)
	}

	return nil
}

// validateKeybindings validates the keybindings.
func (v *Values) validateKeybindings() error {
	v.Kb = keybindings.NewKeybindings()
	if len(v.Keybindings) == 0 {
		return nil
	}

	return v.Kb.Validate(v.Keybindings)
}

// validateTheme validates the theme configuration.
func (v *Values) validateTheme() error {
	if len(v.Theme) == 0 {
		return nil
	}

	return theme.ParseThemeConfig(v.Theme)
}

// parseDuration parses a duration such as "3s", or a plain number of milliseconds.
func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		ms, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil {
			return 0, fmt.Errorf("%s: invalid duration", value)
		}

		d = time.Duration(ms) * time.Millisecond
	}

	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive", value)
	}

	return d, nil
}
