package cli

import (
	"github.com/spf13/cobra"
)

type RefreshOptions struct {
	BatchSize   int
	CommitEvery int
	Workers     int
	DryRun      bool
}

func NewRefreshCmd() *cobra.Command {
	opts := &RefreshOptions{}

	cmd := &cobra.Command{
		Use:   "refresh-addresses",
		Short: "Reconcile the source address table into the target database",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runRefresh(c.Context(), c, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.BatchSize, "batch-size", "b", 0, "Records per batch (overrides BATCH_SIZE)")
	cmd.Flags().IntVarP(&opts.CommitEvery, "commit-every", "c", 0, "Batches per checkpoint commit (overrides COMMIT_EVERY)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Concurrent writes per batch (overrides WRITE_WORKERS)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Reconcile and report without writing")

	return cmd
}
