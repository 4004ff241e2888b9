// Package cmd provides the CLI commands for LeaseLens.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/logging"
	"github.com/Aman-CERP/leaselens/internal/profiling"
	"github.com/Aman-CERP/leaselens/pkg/version"
)

// stdioAnnotation marks commands that own stdout for a protocol stream.
// Their logs go to the log file only.
const stdioAnnotation = "leaselens/stdio"

// Global flags
var (
	debugMode  bool
	configPath string
	offline    bool
	profile    profiling.Options

	loggingCleanup func()
	profileRun     *profiling.Run
)

// NewRootCmd creates the root command for the leaselens CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaselens",
		Short: "Ask questions about a lease and get cited answers",
		Long: `LeaseLens answers questions about a lease document.

It splits the lease into overlapping chunks, retrieves the most relevant ones
with hybrid search (BM25 + embeddings, fused with weighted reciprocal rank
fusion) and generates an answer grounded in them, citing page numbers.

Run it in a terminal, as an HTTP service, or as an MCP server for AI clients.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("leaselens version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.leaselens/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .leaselens.yaml in the current directory)")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use static embeddings and extractive answers (no API calls)")

	cmd.PersistentFlags().StringVar(&profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startRun
	cmd.PersistentPostRunE = stopRun

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startRun installs the default logger for the command about to run and
// starts any requested profiles.
func startRun(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	switch {
	case cmd.Annotations[stdioAnnotation] == "true":
		level := "info"
		if debugMode {
			level = "debug"
		}
		cfg = logging.StdioConfig(level)
	case debugMode:
		cfg = logging.DebugConfig()
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("Debug logging enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Version))
	}

	if profile.Enabled() {
		run, err := profiling.Start(profile)
		if err != nil {
			return err
		}
		profileRun = run
	}
	return nil
}

// stopRun writes pending profiles and flushes and closes the log file.
func stopRun(_ *cobra.Command, _ []string) error {
	var err error
	if profileRun != nil {
		err = profileRun.Stop()
		profileRun = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	// PersistentPostRunE is skipped when RunE fails.
	_ = stopRun(nil, nil)
	if err != nil {
		fmt.Fprint(os.Stderr, formatError(err))
	}
	return err
}

func formatError(err error) string {
	if _, ok := lenserrors.As(err); ok {
		return lenserrors.FormatForCLI(err)
	}
	return fmt.Sprintf("Error: %v\n", err)
}
