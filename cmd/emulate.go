package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ps2ble/bondmgr/api/companion"
	"github.com/ps2ble/bondmgr/emulator"
	"github.com/ps2ble/bondmgr/logging"
)

// emulateCommand returns the command which serves an emulated companion device.
func emulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "emulate",
		Usage: "Serve an emulated companion device.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Value:   ":8080",
				EnvVars: []string{"BONDMGR_EMULATE_LISTEN"},
				Usage:   "Specify the address to listen on.",
			},
			&cli.StringFlag{
				Name:    "fixtures",
				EnvVars: []string{"BONDMGR_EMULATE_FIXTURES"},
				Usage:   "Specify a YAML file with the bonded and candidate devices.",
			},
			&cli.DurationFlag{
				Name:  "pair-delay",
				Value: emulator.DefaultPairDelay,
				Usage: "Specify the time after which a candidate device bonds while scanning.",
			},
			&cli.StringFlag{
				Name:  "api-prefix",
				Value: companion.DefaultPrefix,
				Usage: "Specify the path prefix of the API.",
			},
			&cli.StringSliceFlag{
				Name:  "allowed-origin",
				Usage: "Specify an origin allowed to call the API from a browser.",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "Specify the log level.",
			},
		},
		Action: func(cliCtx *cli.Context) error {
			if !logging.ValidLevel(cliCtx.String("log-level")) {
				return fmt.Errorf("%s: unknown log level", cliCtx.String("log-level"))
			}

			log := logging.New(cliCtx.String("log-level"), os.Stderr)

			fixtures := emulator.DefaultFixtures()
			if path := cliCtx.String("fixtures"); path != "" {
				var err error

				fixtures, err = emulator.LoadFixtures(path)
				if err != nil {
					return err
				}
			}

			metrics := emulator.NewMetrics()
			store := emulator.NewStore(fixtures, emulator.StoreOptions{
				PairDelay: cliCtx.Duration("pair-delay"),
				Metrics:   metrics,
				Logger:    log,
			})
			defer store.Close()

			server := emulator.NewServer(store, emulator.Options{
				Prefix:         cliCtx.String("api-prefix"),
				AllowedOrigins: cliCtx.StringSlice("allowed-origin"),
				Metrics:        metrics,
				Logger:         log,
			})

			srv := &http.Server{
				Addr:              cliCtx.String("listen"),
				Handler:           server.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := notifyContext(cliCtx.Context)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info().
					Str("addr", srv.Addr).
					Int("bonded", len(fixtures.Bonded)).
					Int("candidates", len(fixtures.Candidates)).
					Msg("emulator listening")

				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}

				return nil
			})
			g.Go(func() error {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()

				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return fmt.Errorf("emulator: %w", err)
			}

			log.Info().Msg("emulator stopped")

			return nil
		},
	}
}
