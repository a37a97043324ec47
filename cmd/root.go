// Package cmd defines and implements the CLI commands for the stringfinder
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/stringfinder/internal/app"
	"github.com/JakeFAU/stringfinder/internal/config"
	"github.com/JakeFAU/stringfinder/internal/logging"
	"github.com/JakeFAU/stringfinder/internal/scan"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App is what the subcommands need from the application container. Tests
// swap in their own through newApp.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Engine() *scan.Engine
	Handler() http.Handler
}

type appAdapter struct {
	*app.App
}

func (a appAdapter) Handler() http.Handler {
	return a.Server().Handler()
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return appAdapter{App: a}, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "stringfinder",
		Short: "Scan a list of URLs for a target string.",
		Long: `stringfinder fetches every URL from an uploaded list, in bounded
batches, and records whether each page body contains a target string.
Results are written to a CSV file once the whole list has been scanned.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
				_ = appInstance.Logger().Sync() // stderr sync fails on some terminals
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); env vars use the STRINGFINDER_ prefix")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScanCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "stringfinder: %v\n", err)
		os.Exit(1)
	}
}
