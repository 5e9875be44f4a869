package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"libdb.so/metarglow"
	"libdb.so/metarglow/internal/logging"
)

var (
	config  = "metarglow.toml"
	verbose = false
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "metarglow",
		Short:         "Show live airport weather on an LED map",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runDaemon,
	}

	addGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the LED daemon until interrupted",
			Args:  cobra.NoArgs,
			RunE:  runDaemon,
		},
		&cobra.Command{
			Use:   "resolve",
			Short: "Fetch the weather once and print each station's patterns",
			Args:  cobra.NoArgs,
			RunE:  runResolve,
		},
		&cobra.Command{
			Use:   "check",
			Short: "Validate the configuration file",
			Args:  cobra.NoArgs,
			RunE:  runCheck,
		},
	)

	return root
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&config, "config", "c", config, "configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func newLogger(cfg *metarglow.Config) *slog.Logger {
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = "debug"
	}

	logger := logging.New(logCfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := metarglow.NewDaemon(cfg, logger, metarglow.WithReady(func() {
		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			logger.Warn(
				"failed to notify systemd",
				"error", err)
		} else if ok {
			logger.Debug("notified systemd")
		}
	}))
	if err != nil {
		return errors.Wrap(err, "failed to create daemon")
	}

	err = d.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "daemon failed")
	}

	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	d, err := metarglow.NewDaemon(cfg, newLogger(cfg))
	if err != nil {
		return errors.Wrap(err, "failed to create daemon")
	}

	results, err := d.Resolve(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LED\tSTATION\tCATEGORY\tPATTERNS")
	for _, r := range results {
		category := "-"
		if r.Observation != nil && r.Observation.FlightCategory != "" {
			category = r.Observation.FlightCategory
		}

		patterns := "-"
		if len(r.Patterns) > 0 {
			patterns = fmt.Sprint(r.Patterns)
		}

		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Channel, r.Station, category, patterns)
	}
	return w.Flush()
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"%s: ok, %d LEDs showing %d stations\n",
		config, cfg.NumLEDs(), len(cfg.StationIDs()))
	return nil
}

func readConfig() (*metarglow.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer f.Close()

	cfg, err := metarglow.ParseConfig(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", config)
	}
	return cfg, nil
}
