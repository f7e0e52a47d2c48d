// Package cmd defines and implements the CLI commands for the svt-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/svt-crawler/internal/app"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can
// wrap or replace it.
var newApp = app.New

// rootState carries what the root command built so it can be closed
// even when a subcommand fails.
type rootState struct {
	cfgFile string
	app     *app.App
}

// newRootCmd creates and configures the root command.
func newRootCmd() (*cobra.Command, *rootState) {
	state := &rootState{}
	cmd := &cobra.Command{
		Use:   "svt-crawler",
		Short: "Crawls news articles from svt.se and builds a text corpus.",
		Long: `svt-crawler downloads articles from the SVT content API topic by topic.
Each article is saved once as JSON; what was saved and what failed is kept
in the data directory so runs can be interrupted, resumed and retried.`,
		SilenceUsage: true,

		// This hook runs BEFORE the subcommand's RunE and injects the application.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), app.Options{
				ConfigPath: state.cfgFile,
				Debug:      wantsDebug(cmd),
				Out:        cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			state.app = appInstance
			zap.ReplaceGlobals(appInstance.Logger)

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&state.cfgFile, "config", "", "config file (defaults and SVTCRAWLER_* env vars otherwise)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newXMLCmd())
	cmd.AddCommand(newBuildIndexCmd())
	return cmd, state
}

// wantsDebug enables debug logging for --debug, and always when retrying.
func wantsDebug(cmd *cobra.Command) bool {
	for _, name := range []string{"debug", "retry"} {
		if on, err := cmd.Flags().GetBool(name); err == nil && on {
			return true
		}
	}
	return false
}

// run executes the CLI with args and shuts the services down afterwards.
func run(ctx context.Context, args []string, out io.Writer) error {
	root, state := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)

	err := root.ExecuteContext(ctx)
	if state.app != nil {
		state.app.Close()
	}
	return err
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		stop()
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
