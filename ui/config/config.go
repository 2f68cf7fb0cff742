package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

const (
	appName    = "bondmgr"
	configFile = appName + ".conf"
	logFile    = appName + ".log"
)

// Config describes the configuration for the app.
type Config struct {
	path string

	Values Values
}

// NewConfig returns a new configuration.
func NewConfig() *Config {
	return &Config{}
}

// Load merges the configuration file and the command-line flags, in that order,
// into the configuration values.
func (c *Config) Load(k *koanf.Koanf, cliCtx *cli.Context) error {
	path, err := c.file()
	if err != nil {
		return err
	}

	if err := k.Load(file.Provider(path), hjson.Parser()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
		return err
	}

	return k.UnmarshalWithConf("", &c.Values, koanf.UnmarshalConf{Tag: "koanf"})
}

// ValidateValues validates the configuration values.
// The log file defaults to a file within the configuration directory.
func (c *Config) ValidateValues() error {
	if c.Values.LogFile == "" && c.path != "" {
		c.Values.LogFile = filepath.Join(c.path, logFile)
	}

	return c.Values.validateValues()
}

// Dir returns the configuration directory.
func (c *Config) Dir() string {
	return c.path
}

// GenerateAndSave writes the merged configuration in k to the configuration file.
func (c *Config) GenerateAndSave(k *koanf.Koanf) error {
	data, err := hjson.Parser().Marshal(k.All())
	if err != nil {
		return err
	}

	path, err := c.file()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// file returns the path of the configuration file, creating the
// configuration directory and an empty file if they do not exist.
func (c *Config) file() (string, error) {
	if c.path == "" {
		dir, err := configDir()
		if err != nil {
			return "", err
		}

		c.path = dir
	}

	path := filepath.Join(c.path, configFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return "", fmt.Errorf("cannot create %s file at %s", configFile, c.path)
		}
	}

	return path, nil
}

// configDir returns the first existing configuration directory, or
// creates one in the candidate locations, in order:
// $XDG_CONFIG_HOME/bondmgr, ~/.config/bondmgr and ~/.bondmgr.
func configDir() (string, error) {
	var candidates []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, appName))
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", appName),
			filepath.Join(home, "."+appName),
		)
	}

	if len(candidates) == 0 {
		return "", errors.New("no configuration directory is available, set XDG_CONFIG_HOME or HOME")
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}

	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err == nil {
			return dir, nil
		}
	}

	return "", fmt.Errorf("the configuration directories could not be created at\n%s", strings.Join(candidates, "\n"))
}
