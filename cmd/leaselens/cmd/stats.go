package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/leaselens/internal/output"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Show how a lease is chunked and indexed",
		Long: `Process a lease and print its document statistics: pages, chunk count,
chunk size and overlap, and the embedding and answer models in use.

Useful for tuning chunking.size and chunking.overlap.`,
		Example: `  leaselens stats lease.pdf
  leaselens stats lease.pdf --offline --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, cleanup, err := openSession(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(sess.Stats())
			}
			out.Stats(sess.Stats())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
