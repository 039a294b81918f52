package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/internal/server"
	"github.com/systmms/dsops-rotator/pkg/secretstore"
)

// NewServeCommand serves rotation events over HTTP.
func NewServeCommand(cfg *config.Config) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rotation events over HTTP",
		Long: `Serve the rotation protocol over HTTP.

Endpoints:
  POST /rotate    run the step named by a JSON rotation event
  POST /start     register a new version token (memory and keyring stores)
  GET  /health    liveness check
  GET  /metrics   Prometheus metrics, when metrics.enabled is set

The server stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRotator(cfg)
			if err != nil {
				return err
			}

			def := cfg.Definition
			srvCfg := server.Config{
				Addr:           def.Server.Addr,
				MetricsEnabled: def.Metrics.Enabled,
				MetricsPath:    def.Metrics.Path,
				ReadTimeout:    time.Duration(def.Server.ReadTimeoutMs) * time.Millisecond,
				WriteTimeout:   time.Duration(def.Server.WriteTimeoutMs) * time.Millisecond,
			}
			if addr != "" {
				srvCfg.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []server.Option
			if st, ok := r.store.(secretstore.Starter); ok {
				opts = append(opts, server.WithStarter(st))
			}
			return server.New(srvCfg, r.orchestrator, cfg.Logger, opts...).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
