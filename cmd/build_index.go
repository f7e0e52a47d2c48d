package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/svt-crawler/internal/index"
)

func newBuildIndexCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "build-index",
		Short: "Rebuild an index of crawled articles from the downloaded JSON files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "\nBuilding an index of crawled files based on the downloaded JSON files ...")

			res, err := appInstance.Indexer().Build(out)
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			fmt.Fprintf(w, "Done writing index of crawled data to '%s'\n", res.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", index.DefaultOutput, "file name of the index, written to the data directory")
	return cmd
}
