package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/logging"
	"github.com/ps2ble/bondmgr/pairing"
	"github.com/ps2ble/bondmgr/ui/app"
	"github.com/ps2ble/bondmgr/ui/config"
)

// These values are set at compile-time.
var (
	Version  = ""
	Revision = ""
)

// Run runs the commandline application.
func Run() error {
	return newApp().Run(os.Args)
}

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	return &cli.App{
		Name:                   "bondmgr",
		Usage:                  "Bluetooth LE bond manager.",
		Version:                Version + " (" + Revision + ")",
		Description:            "Pair and manage the Bluetooth LE peripherals bonded to a companion adapter.",
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				EnvVars: []string{"BONDMGR_SERVER"},
				Usage:   "Specify the address of the companion device. (For example, http://192.168.4.1)",
			},
			&cli.StringFlag{
				Name:    "api-prefix",
				EnvVars: []string{"BONDMGR_API_PREFIX"},
				Usage:   "Specify the path prefix of the companion API.",
			},
			&cli.StringFlag{
				Name:    "poll-interval",
				EnvVars: []string{"BONDMGR_POLL_INTERVAL"},
				Usage:   "Specify how often a new bond is checked for while pairing. (For example, 3s or 3000)",
			},
			&cli.StringFlag{
				Name:    "pair-timeout",
				EnvVars: []string{"BONDMGR_PAIR_TIMEOUT"},
				Usage:   "Specify how long to scan for a new device. (For example, 30s)",
			},
			&cli.StringFlag{
				Name:    "request-timeout",
				EnvVars: []string{"BONDMGR_REQUEST_TIMEOUT"},
				Usage:   "Specify the timeout of each request to the companion device.",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"BONDMGR_LOG_LEVEL"},
				Usage:   "Specify the log level. (trace, debug, info, warn, error, off)",
			},
			&cli.StringFlag{
				Name:    "log-file",
				EnvVars: []string{"BONDMGR_LOG_FILE"},
				Usage:   "Specify the file the application logs to.",
			},
			&cli.BoolFlag{
				Name:    "no-warning",
				Aliases: []string{"w"},
				EnvVars: []string{"BONDMGR_NO_WARNING"},
				Usage:   "Do not display warnings when the application has initialized.",
			},
			&cli.BoolFlag{
				Name:    "no-help-display",
				Aliases: []string{"i"},
				EnvVars: []string{"BONDMGR_NO_HELP_DISPLAY"},
				Usage:   "Do not display help keybindings in the application.",
			},
			&cli.BoolFlag{
				Name:    "confirm-on-quit",
				Aliases: []string{"c"},
				EnvVars: []string{"BONDMGR_CONFIRM_ON_QUIT"},
				Usage:   "Ask for confirmation before quitting the application.",
			},
			&cli.BoolFlag{
				Name:    "list-bonded",
				Aliases: []string{"l"},
				Usage:   "List the devices bonded to the adapter.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					return withConfig(cliCtx, listBonded)
				},
			},
			&cli.StringFlag{
				Name:    "delete",
				Aliases: []string{"d"},
				Usage:   "Remove the bond of the device with the given address. (For example, 'AA:BB:CC:DD:EE:FF')",
				Action: func(cliCtx *cli.Context, address string) error {
					return withConfig(cliCtx, func(ctx context.Context, cfg *config.Config) error {
						return deleteBond(ctx, cfg, address, cliCtx.String("address-type"))
					})
				},
			},
			&cli.StringFlag{
				Name:    "address-type",
				Aliases: []string{"t"},
				Usage:   "Specify the address type of the device to remove. (public or random)",
			},
			&cli.BoolFlag{
				Name:    "pair",
				Aliases: []string{"p"},
				Usage:   "Scan for and bond with a new device, without the interface.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					return withConfig(cliCtx, pairDevice)
				},
			},
			&cli.BoolFlag{
				Name:    "generate",
				Aliases: []string{"g"},
				Usage:   "Generate configuration.",
				Action: func(cliCtx *cli.Context, _ bool) error {
					k := koanf.New(".")

					cliCtx.Command.Name = "global"

					conf := config.NewConfig()
					if err := conf.Load(k, cliCtx); err != nil {
						return err
					}

					if err := conf.GenerateAndSave(k); err != nil {
						return fmt.Errorf("cannot save configuration: %w", err)
					}

					fmt.Println("Configuration written to", conf.Dir())

					return nil
				},
			},
		},
		Commands: []*cli.Command{
			emulateCommand(),
		},
		Action: func(cliCtx *cli.Context) error {
			for _, headless := range []string{"list-bonded", "delete", "pair", "generate"} {
				if cliCtx.IsSet(headless) {
					return nil
				}
			}

			cfg, err := loadConfig(cliCtx)
			if err != nil {
				return err
			}

			return startInterface(cfg)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}

// loadConfig loads and validates the configuration.
func loadConfig(cliCtx *cli.Context) (*config.Config, error) {
	// required for koanf to merge all global flags under the root namespace.
	cliCtx.Command.Name = "global"

	k, cfg := koanf.New("."), config.NewConfig()
	if err := cfg.Load(k, cliCtx); err != nil {
		return nil, err
	}
	if err := cfg.ValidateValues(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withConfig loads the configuration and runs a headless command,
// which is cancelled on an interrupt.
func withConfig(cliCtx *cli.Context, command func(context.Context, *config.Config) error) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	ctx, stop := notifyContext(cliCtx.Context)
	defer stop()

	return command(ctx, cfg)
}

// startInterface starts the terminal interface.
func startInterface(cfg *config.Config) error {
	logFile, err := logging.OpenFile(cfg.Values.LogFile)
	if err != nil {
		return fmt.Errorf("cannot open log file: %w", err)
	}
	defer logFile.Close()

	log := logging.New(cfg.Values.LogLevel, logFile)

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	printUnreachable(cfg, client)

	a := app.NewApplication()
	coordinator := pairing.New(client, pairing.NewBondPoller(client, log), pairing.Options{
		Interval:       cfg.Values.Interval,
		Timeout:        cfg.Values.Timeout,
		RequestTimeout: cfg.Values.ReqTimeout,
		OnProgress:     a.PairingProgress,
		Logger:         log,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		coordinator.Close(ctx)
	}()

	log.Info().Str("server", client.BaseURL()).Msg("interface started")

	return a.Start(app.Services{
		Server:    client.BaseURL(),
		Inventory: client,
		Pairing:   coordinator,
		Logger:    log,
	}, cfg)
}

// printUnreachable warns if the companion device cannot be reached.
func printUnreachable(cfg *config.Config, client *companion.Client) {
	if cfg.Values.NoWarning {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Values.ReqTimeout)
	defer cancel()

	if _, err := client.BondedDevices(ctx); err != nil {
		printWarn("the companion device at %s cannot be reached: %s", cfg.Values.Server, err)
		time.Sleep(1 * time.Second)
	}
}
