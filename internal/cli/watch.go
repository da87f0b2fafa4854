package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/swatzat-oss/cs2-dumper/internal/cli/output"
	"github.com/swatzat-oss/cs2-dumper/internal/constants"
	"github.com/swatzat-oss/cs2-dumper/internal/lookup"
	"github.com/swatzat-oss/cs2-dumper/internal/modules"
)

const shutdownTimeout = 5 * time.Second

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		format      string
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Resolve every interface and follow module reloads",
		Long: `Resolve every interface in the offset table, then poll the target process
for module changes. When a module is unloaded, reloaded or moves, its
interfaces are re-resolved and the new addresses are logged.

With --metrics-addr the lookup metrics are served over HTTP at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())

			s, err := openSession(ctx, opts, reg)
			if err != nil {
				return err
			}
			defer s.Close()

			if interval <= 0 {
				interval = s.cfg.Watch.Interval
			}
			if metricsAddr == "" {
				metricsAddr = s.cfg.Metrics.Addr
			}

			table := s.facade.Table()
			var rows []resultRow
			for _, r := range s.facade.ResolveAll(ctx) {
				rows = append(rows, newResultRow(table, r.Record.Module, r.Record.Interface, r.Resolution, r.Err))
			}
			if err := output.Write(cmd.OutOrStdout(), format, rows); err != nil {
				return err
			}

			reloads := make(chan modules.ReloadEvent, 64)
			s.tracker.OnReload(func(ev modules.ReloadEvent) {
				select {
				case reloads <- ev:
				default:
					s.logger.Warn().Str("module", ev.Module).Msg("Reload queue full, dropping event")
				}
			})

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := s.tracker.Watch(gctx, interval); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case ev := <-reloads:
						reresolve(gctx, s.facade, ev, s.logger)
					}
				}
			})
			if metricsAddr != "" {
				serveMetrics(gctx, g, metricsAddr, reg, s.logger)
			}

			s.logger.Info().Int("interfaces", table.Len()).Msg("Watching for module reloads - press Ctrl+C to stop")
			if err := g.Wait(); err != nil {
				return err
			}

			stats := s.facade.Stats()
			s.logger.Info().
				Uint64("resolutions", stats.Resolutions).
				Uint64("invalidations", stats.Invalidations).
				Uint64("cache_hits", stats.Hits).
				Msg("Stopped watching")
			return nil
		},
	}
	output.AddFormatFlag(cmd, &format)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Module poll interval (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	return cmd
}

// reresolve refreshes every interface of the module named by ev.
func reresolve(ctx context.Context, f *lookup.Facade, ev modules.ReloadEvent, logger zerolog.Logger) {
	for _, iface := range f.Table().Interfaces(ev.Module) {
		res, err := f.Resolve(ctx, ev.Module, iface)
		switch {
		case err == nil:
			logger.Info().
				Str("interface", res.String()).
				Uint64("generation", res.Generation).
				Msg("Interface re-resolved")
		case res.Address != 0:
			logger.Warn().Err(err).Str("interface", res.String()).Msg("Interface re-resolved with warning")
		default:
			logger.Warn().Err(err).
				Str("module", ev.Module).
				Str("interface", iface).
				Msg("Interface unavailable after module change")
		}
	}
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(constants.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("path", constants.MetricsPath).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
