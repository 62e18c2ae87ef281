package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"media-meta/internal/ai"
	"media-meta/internal/config"
	"media-meta/internal/db"
	"media-meta/internal/logging"
)

var (
	configPath string
	proxyURL   string
	limit      int
)

var rootCmd = &cobra.Command{
	Use:   "mediameta",
	Short: "mediameta generates alt text, titles and descriptions for your images.",
	Long: `A CLI and local service that asks Gemini to describe stored images and
writes the alt text, title and description back to the media library.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitConfig(configPath)
	},
	Run: func(cmd *cobra.Command, args []string) {
		// Default action when no subcommand is given
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/mediameta/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "HTTP proxy to use for network requests (e.g. http://127.0.0.1:7890)")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 0, "Limit the number of items to process (0 for no limit)")
}

// app bundles what most commands need once the config is loaded.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	store *db.Store
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, cfg.LogLevel)
	slog.SetDefault(log)

	dsn, err := databaseDSN(cfg)
	if err != nil {
		return nil, err
	}
	store, err := db.InitDB(ctx, cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &app{cfg: cfg, log: log, store: store}, nil
}

// databaseDSN is the configured DSN, or the default SQLite file for an
// unset sqlite DSN.
func databaseDSN(cfg *config.Config) (string, error) {
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "" {
		return cfg.Database.DSN, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}
	return db.DefaultPath(dir), nil
}

func (a *app) Close() error { return a.store.Close() }

func (a *app) gateway() (*ai.Gateway, error) {
	client, err := ai.NewClient(ai.ClientOptions{
		Endpoint:  a.cfg.Gemini.Endpoint,
		Timeout:   a.cfg.Gemini.Timeout,
		ProxyURL:  proxyURL,
		RateLimit: a.cfg.Gemini.RateLimit,
		Burst:     a.cfg.Gemini.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Gemini client: %w", err)
	}
	return ai.NewGateway(config.Credentials{}, a.store, client,
		ai.WithMaxFileSize(a.cfg.Media.MaxFileSize),
		ai.WithLogger(a.log))
}

func main() {
	Execute()
}
