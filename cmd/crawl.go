package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type crawlOptions struct {
	retry bool
	force bool
	debug bool
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl svt.se and save new articles",
		Long: `Walks every configured topic listing newest first and saves articles
that are not in the crawl ledger yet. A topic stops at the first article
that was saved before, unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.retry, "retry", "r", false, "try to crawl pages that failed last time")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "crawl all pages and overwrite saved articles")
	cmd.Flags().BoolVarP(&opts.debug, "debug", "d", false, "print debug information")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, opts crawlOptions) error {
	ctx := cmd.Context()
	appInstance, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	logger := appInstance.GetLogger()

	engine, err := appInstance.Engine(ctx)
	if err != nil {
		return fmt.Errorf("load crawl state: %w", err)
	}
	started := appInstance.Clock.Now()
	defer appInstance.ObserveRun(engine.State(), started)

	if opts.retry {
		fmt.Fprintln(out, "\nTrying to crawl pages that failed last time ...")
		if opts.force {
			fmt.Fprintln(out, "Argument '--force' is ignored when recrawling failed pages.")
		}
		stats, err := engine.RetryFailed(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("retry failed urls: %w", err)
		}
		logger.Info("Retry command finished.",
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("still_failing", stats.Failed),
		)
		return nil
	}

	fmt.Fprintln(out, "\nStarting to crawl svt.se ...")
	stats, err := engine.Crawl(ctx, opts.force)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawler: %w", err)
	}
	stored := 0
	for _, st := range stats {
		stored += st.Stored
	}
	logger.Info("Crawl command finished.",
		zap.Int("topics", len(stats)),
		zap.Int("stored", stored),
		zap.Int("queued_failures", engine.State().Failures.Len()),
	)
	return nil
}
