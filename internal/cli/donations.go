package cli

import (
	"github.com/spf13/cobra"
)

type DonationOptions struct {
	Files     []string
	RejectDir string
}

func NewDonationsCmd() *cobra.Command {
	opts := &DonationOptions{}

	cmd := &cobra.Command{
		Use:   "load-donations",
		Short: "Validate and load donation files, routing rejects to group leaders",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runDonations(c.Context(), c, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.Files, "file", "f", nil, "Donation CSV file (repeatable, processed in order)")
	cmd.Flags().StringVar(&opts.RejectDir, "reject-dir", "", "Directory for rejected_<owner>.csv files (overrides REJECT_DIR)")
	cmd.MarkFlagRequired("file")

	return cmd
}
