package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/leaselens/internal/extract"
	"github.com/Aman-CERP/leaselens/internal/mcp"
	"github.com/Aman-CERP/leaselens/internal/session"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp [file]",
		Short: "Start the MCP server on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout for AI clients
such as Claude Desktop or Cursor.

Tools: load_lease, ask_lease, lease_history, lease_stats.
Resources: lease://sample-questions, lease://transcript, lease://metrics.

If a file is given it is loaded before the server starts. Stdout carries only
protocol messages; logs go to ~/.leaselens/logs/leaselens.log
(view them with 'leaselens logs -f').`,
		Example: `  # Claude Desktop config
  {"mcpServers": {"leaselens": {"command": "leaselens", "args": ["mcp"]}}}

  # Preload a lease
  leaselens mcp ~/Documents/lease.pdf`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{stdioAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runMCP(cmd.Context(), path)
		},
	}

	return cmd
}

func runMCP(ctx context.Context, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		return err
	}

	metrics := telemetry.NewAskMetrics(telemetry.DefaultAskMetricsConfig())
	deps, err := newDeps(cfg, metrics)
	if err != nil {
		slog.Error("failed to create providers", slog.String("error", err.Error()))
		return err
	}
	defer func() { _ = closeDeps(deps) }()

	sess, err := session.New(sessionConfig(cfg), deps)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Nothing may be written to stdout before the server takes over.
	if path != "" {
		data, err := extract.ReadFile(path, cfg.MaxUploadBytes())
		if err == nil {
			_, err = sess.ProcessFile(ctx, filepath.Base(path), data)
		}
		if err != nil {
			slog.Error("failed to preload lease",
				slog.String("file", filepath.Base(path)),
				slog.String("error", err.Error()))
			_ = sess.Close()
			return err
		}
	}

	srv, err := mcp.NewServer(sess, mcp.Options{
		Metrics:          metrics,
		MaxDocumentBytes: cfg.MaxUploadBytes(),
		Logger:           slog.Default(),
	})
	if err != nil {
		_ = sess.Close()
		return err
	}
	defer func() { _ = srv.Close() }()

	err = srv.Serve(ctx, "stdio")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
