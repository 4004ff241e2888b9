package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/leaselens/internal/api"
	"github.com/Aman-CERP/leaselens/internal/output"
	"github.com/Aman-CERP/leaselens/internal/session"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
)

// minPruneInterval keeps a tiny idle_ttl from spinning the pruner.
const minPruneInterval = time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Each client creates a session, uploads a lease to it and
asks questions; sessions idle longer than session.idle_ttl are discarded.

When LEASELENS_API_KEY is set, /api routes require it as a bearer token.
/health is always public.`,
		Example: `  leaselens serve
  leaselens serve --addr 127.0.0.1:9000 --offline`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr from config)")

	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	metrics := telemetry.NewAskMetrics(telemetry.DefaultAskMetricsConfig())
	deps, err := newDeps(cfg, metrics)
	if err != nil {
		return err
	}
	defer func() { _ = closeDeps(deps) }()

	mgr := session.NewManager(session.ManagerConfig{
		Session:     sessionConfig(cfg),
		Deps:        deps,
		MaxSessions: cfg.Session.MaxSessions,
		IdleTTL:     cfg.Session.IdleTTL,
	})
	defer func() { _ = mgr.Close() }()

	srv := api.NewServer(mgr, metrics, slog.Default(), api.Config{
		APIKey:         cfg.Server.APIKey,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Debug:          debugMode,
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := output.New(cmd.ErrOrStderr())
	out.Statusf("🚀", "Listening on %s", addr)
	if cfg.Server.APIKey == "" {
		out.Warning("No API key set; /api routes are open. Set LEASELENS_API_KEY to require one.")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	g.Go(func() error {
		pruneIdle(gctx, mgr, cfg.Session.IdleTTL)
		return nil
	})
	return g.Wait()
}

// pruneIdle discards idle sessions every half TTL until ctx is done.
func pruneIdle(ctx context.Context, mgr *session.Manager, ttl time.Duration) {
	if ttl <= 0 {
		ttl = session.DefaultIdleTTL
	}
	ticker := time.NewTicker(max(ttl/2, minPruneInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mgr.Prune(ttl); n > 0 {
				slog.Info("idle_sessions_pruned", slog.Int("count", n), slog.Int("remaining", mgr.Len()))
			}
		}
	}
}
