// Package cmd defines the CLI commands of the business-discovery executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/business-discovery/internal/app"
	"github.com/JakeFAU/business-discovery/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// appFactory builds the application from a config file path. Tests inject
// their own.
type appFactory func(ctx context.Context, cfgPath string) (*app.App, error)

func defaultFactory(ctx context.Context, cfgPath string) (*app.App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	return a, nil
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd(factory appFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "business-discovery",
		Short: "Discover a business from its map listing and recommend improvements.",
		Long: `business-discovery scrapes a map listing through a chain of providers
(remote browser, managed scraping actor, built-in fixture), normalizes the
business and its reviews, and asks an LLM for prioritized, measurable tasks.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, err := resolveApp(cmd.Context()); err == nil {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 10*time.Second)
				defer cancel()
				a.Close(ctx)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml); env DISCOVERY_* overrides it")
	cmd.AddCommand(newServeCmd(), newDiscoverCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application not initialized")
	}
	return a, nil
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd(defaultFactory)
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
