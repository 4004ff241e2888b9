package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/leaselens/internal/output"
	"github.com/Aman-CERP/leaselens/internal/preflight"
)

// errCheckFailed is returned when a required doctor check fails.
var errCheckFailed = errors.New("system check failed")

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and providers",
		Long: `Run diagnostics to ensure LeaseLens can answer questions.

Checks:
  - Configuration loads and validates
  - OPENAI_API_KEY is set when an OpenAI provider is selected
  - The log directory is writable
  - Disk space for logs
  - The embedding provider answers a test embedding request

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  leaselens doctor

  # Check the local providers only
  leaselens doctor --offline

  # JSON output for scripting
  leaselens doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []preflight.Option{
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	}

	cfg, err := loadConfig()
	opts = append(opts, preflight.WithConfig(cfg, err))
	if err == nil {
		// A provider that cannot be built is reported by the credentials check.
		if deps, derr := newDeps(cfg, nil); derr == nil {
			defer func() { _ = closeDeps(deps) }()
			opts = append(opts, preflight.WithEmbedder(deps.Embedder))
		}
	}

	checker := preflight.New(opts...)
	results := checker.RunAll(ctx)

	if jsonOutput {
		if err := output.New(cmd.OutOrStdout()).JSON(checker.Report(results)); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errCheckFailed
	}
	return nil
}
