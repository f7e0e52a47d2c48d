package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newXMLCmd() *cobra.Command {
	var override bool
	cmd := &cobra.Command{
		Use:   "xml",
		Short: "Convert the collected articles to XML corpus files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\nPreparing to convert articles to XML ...")

			stats, err := appInstance.Converter().Run(override)
			if err != nil {
				return fmt.Errorf("convert to xml: %w", err)
			}
			fmt.Fprintf(out, "Converted %d articles into %d files (%d skipped, %d failed)\n",
				stats.Converted, stats.Files, stats.Skipped, stats.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&override, "override", "o", false, "override existing xml files")
	return cmd
}
