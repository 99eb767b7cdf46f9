package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"rss_glue/internal/metrics"
)

func newWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Update feeds and regenerate outputs on every tick until interrupted",
		Long: `Run an update pass immediately and then once per RSSGLUE_TICK until SIGINT.

When RSSGLUE_METRICS_ADDR is set, an HTTP server on that address serves
Prometheus metrics at /metrics and the generated outputs at /.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			if a.cfg.MetricsAddr != "" {
				srv := &http.Server{
					Addr:              a.cfg.MetricsAddr,
					Handler:           a.handler(),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					a.log.Info("serving", "addr", a.cfg.MetricsAddr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("http server", "error", err)
					}
				}()
				defer func() {
					shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdown)
				}()
			}

			a.log.Info("watching", "feeds", len(a.env.Registry.All()), "tick", a.cfg.Tick)
			a.sched.Run(ctx)
			a.log.Info("stopped")
			return nil
		},
	}
}

func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", http.FileServer(afero.NewHttpFs(a.out)))
	return mux
}
