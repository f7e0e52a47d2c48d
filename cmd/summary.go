package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/svt-crawler/internal/summary"
)

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print a summary of the collected articles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\nCalculating summary of collected articles ...")

			state, err := appInstance.LoadState(cmd.Context())
			if err != nil {
				return fmt.Errorf("load crawl state: %w", err)
			}
			summary.Render(out, summary.Build(state.Ledger))
			return nil
		},
	}
}
