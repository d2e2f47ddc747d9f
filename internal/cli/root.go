// Package cli wires the donorsync commands using the Cobra library.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "donorsync",
		Short: "donorsync - keeps the donor database in step with its sources",
		Long: `donorsync refreshes the target address table from the source-of-record
database and loads donation files, writing rejected donations to one
file per group leader.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewRefreshCmd(), NewDonationsCmd())

	return rootCmd
}
