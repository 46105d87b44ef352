package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"getpoetry/internal/config"
	"getpoetry/internal/fetch"
	"getpoetry/internal/logger"
	"getpoetry/internal/metrics"
	"getpoetry/internal/poetry"
)

const clientUsage = `get-poetry [flags] [hostname]:port ...`

const clientLong = `Get Poetry Now! downloads a poem from every address at once.

Run it like this:

  get-poetry 10001 10002 10003

to grab poetry from servers on ports 10001, 10002 and 10003 on 127.0.0.1.
Downloads from even-numbered ports are abandoned once --timeout elapses.`

// errReported means the message already reached the user.
var errReported = errors.New("reported")

// ExecuteClient runs the get-poetry command and exits non-zero on error.
func ExecuteClient() {
	cmd := NewClientCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			pterm.Error.WithWriter(os.Stderr).Println(err)
		}
		os.Exit(1)
	}
}

// NewClientCmd builds the get-poetry root command writing poems to stdout
// and diagnostics to stderr.
func NewClientCmd(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           clientUsage,
		Short:         "Download poems from many servers at once",
		Long:          clientLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			addrs, err := config.ParseAddresses(args)
			if err != nil {
				if errors.Is(err, config.ErrInvalidPort) {
					fmt.Fprintln(stderr, "Ports must be integers.")
					return errReported
				}
				return err
			}
			cfg.Addresses = addrs
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runClient(ctx, cfg, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", config.DefaultTimeout, "deadline for downloads from even-numbered ports")
	cmd.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", config.DefaultDialTimeout, "give up connecting after this long")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "enable verbose logging to stderr")
	cmd.Flags().StringVar(&cfg.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics for the run to this file")
	return cmd
}

func runClient(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	log := logger.New(logger.Config{Debug: cfg.Debug, Writer: stderr})
	reg := prometheus.NewRegistry()
	failed := pterm.Error.WithWriter(stderr)

	client := poetry.FromConfig(cfg,
		poetry.WithLogger(log),
		poetry.WithMetrics(metrics.NewFetch(reg)),
		poetry.WithObserver(func(r fetch.Resolution) {
			if r.Outcome.Failed() {
				failed.Printfln("Poem failed on %s: %v", r.Address, r.Outcome.Err)
			}
		}),
	)

	start := time.Now()
	res, runErr := client.Run(ctx, cfg.Addresses)

	for _, poem := range res.Poems {
		fmt.Fprintln(stdout, poem)
	}

	log.Debug("client.summary", "poems", len(res.Poems), "failures", len(res.Failures),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("interrupted with %d of %d downloads outstanding: %w",
			len(cfg.Addresses)-len(res.Poems)-len(res.Failures), len(cfg.Addresses), runErr)
	}
	return nil
}
