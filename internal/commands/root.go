// Package commands implements the reconctl command line.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"agentic-reconciliation-backend/internal/ai"
	"agentic-reconciliation-backend/internal/ai/langchain"
	"agentic-reconciliation-backend/internal/app"
	"agentic-reconciliation-backend/internal/config"
	"agentic-reconciliation-backend/internal/repository"
)

// ProviderFactory builds the LLM provider from the loaded configuration.
type ProviderFactory func(ctx context.Context, cfg *ai.Config) (ai.Provider, error)

type options struct {
	providers ProviderFactory
}

// Option customizes the root command.
type Option func(*options)

// WithProviderFactory replaces the langchaingo provider.
func WithProviderFactory(f ProviderFactory) Option {
	return func(o *options) {
		o.providers = f
	}
}

// env is shared by every subcommand.
type env struct {
	opts       options
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(opts ...Option) *cobra.Command {
	e := &env{opts: options{providers: langchain.NewProvider}}
	for _, opt := range opts {
		opt(&e.opts)
	}

	rootCmd := &cobra.Command{
		Use:   "reconctl",
		Short: "Run reconciliation and compliance agents from the command line",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&e.configPath, "config", "config.yaml", "configuration file")

	rootCmd.AddCommand(newRunCommand(e))
	rootCmd.AddCommand(newComplianceCommand(e))
	rootCmd.AddCommand(newAskCommand(e))

	return rootCmd
}

// open loads configuration and wires the application. With memory set the
// record store lives in process memory instead of Postgres.
func (e *env) open(ctx context.Context, memory bool) (*app.App, func(), error) {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   repository.Store
		closeDB = func() {}
	)
	if memory {
		store = repository.NewMemoryStore()
	} else {
		db, err := config.InitDB(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		store = repository.NewSQLStore(db)
		closeDB = func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
	}

	provider, err := e.opts.providers(ctx, &cfg.AI)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("creating provider: %w", err)
	}

	a, err := app.New(ctx, cfg, store, provider)
	if err != nil {
		_ = provider.Close()
		closeDB()
		return nil, nil, err
	}
	return a, func() {
		_ = a.Close()
		_ = provider.Close()
		closeDB()
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
