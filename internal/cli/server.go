package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"getpoetry/internal/config"
	"getpoetry/internal/logger"
	"getpoetry/internal/metrics"
	"getpoetry/internal/server"
)

// ExecuteServer runs the poetry-server command and exits non-zero on error.
func ExecuteServer() {
	cmd := NewServerCmd(os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		pterm.Error.WithWriter(os.Stderr).Println(err)
		os.Exit(1)
	}
}

// NewServerCmd builds the poetry-server root command.
func NewServerCmd(stderr io.Writer) *cobra.Command {
	var (
		configPath string
		debug      bool
		lis        = config.Listener{Iface: "localhost", NumBytes: config.DefaultNumBytes, Delay: config.DefaultDelay}
		sc         config.ServerConfig
	)

	cmd := &cobra.Command{
		Use:           "poetry-server",
		Short:         "Serve poetry slowly",
		Long:          "A slow poetry server: sends a poem a few bytes at a time, then closes the connection.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := sc
			if configPath != "" {
				loaded, err := config.LoadServerFile(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
				if cmd.Flags().Changed("admin-addr") {
					cfg.AdminAddr = sc.AdminAddr
				}
				if cmd.Flags().Changed("metrics-addr") {
					cfg.MetricsAddr = sc.MetricsAddr
				}
			} else {
				cfg.Listeners = []config.Listener{lis}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.New(logger.Config{Debug: debug, Writer: stderr})
			return serve(ctx, cfg, log, stderr)
		},
	}

	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&configPath, "config", "", "YAML file listing several listeners")
	cmd.Flags().IntVar(&lis.Port, "port", 0, "port to listen on (0 picks one)")
	cmd.Flags().StringVar(&lis.Iface, "iface", lis.Iface, "interface to listen on")
	cmd.Flags().IntVar(&lis.NumBytes, "num-bytes", lis.NumBytes, "bytes written per tick")
	cmd.Flags().DurationVar(&lis.Delay, "delay", lis.Delay, "pause between writes")
	cmd.Flags().BoolVar(&lis.Hang, "hang", false, "keep connections open after the poem")
	cmd.Flags().BoolVar(&lis.ReusePort, "reuse-port", false, "set SO_REUSEPORT on the listener")
	cmd.Flags().StringVar(&lis.PoemPath, "poem", "", "file holding the poem to serve")
	cmd.Flags().StringVar(&sc.AdminAddr, "admin-addr", "", "gRPC health and reflection endpoint")
	cmd.Flags().StringVar(&sc.MetricsAddr, "metrics-addr", "", "HTTP address serving /metrics")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable verbose logging")
	return cmd
}

func serve(ctx context.Context, cfg config.ServerConfig, log *slog.Logger, out io.Writer) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServer(reg)

	var admin *server.Admin
	if cfg.AdminAddr != "" {
		admin = server.NewAdmin(cfg.AdminAddr, log)
		if err := admin.Start(); err != nil {
			return err
		}
		defer admin.Stop()
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("metrics.listening", "addr", cfg.MetricsAddr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics.serve_failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer hs.Close()
	}

	opts := []server.Option{server.WithLogger(log), server.WithMetrics(m)}
	if admin != nil {
		opts = append(opts, server.WithHealth(admin))
	}

	servers := make([]*server.Server, 0, len(cfg.Listeners))
	defer func() {
		for _, s := range servers {
			s.Stop()
		}
	}()

	for _, l := range cfg.Listeners {
		poem, err := loadPoem(l)
		if err != nil {
			return err
		}

		s := server.New(l.Addr(), server.BehaviorFor(l, poem), opts...)
		if err := s.Start(ctx); err != nil {
			return err
		}
		servers = append(servers, s)
		pterm.Info.WithWriter(out).Printfln("Serving %s (%d bytes) on port %d", poemName(l), len(poem), s.Port())
	}

	<-ctx.Done()
	log.Info("server.shutdown")
	return nil
}

func loadPoem(l config.Listener) ([]byte, error) {
	switch {
	case l.Text != "":
		return []byte(l.Text), nil
	case l.PoemPath != "":
		b, err := os.ReadFile(l.PoemPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read poem: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("listener %s: no poem given", l.Addr())
	}
}

func poemName(l config.Listener) string {
	if l.PoemPath != "" {
		return l.PoemPath
	}
	return "inline poem"
}
