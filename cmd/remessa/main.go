package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/csg33k/remessa-generator/internal/adapters/cnab/layout"
	sqliteadapter "github.com/csg33k/remessa-generator/internal/adapters/sqlite"
	"github.com/csg33k/remessa-generator/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "remessa",
	Short:         "Automatic-debit remittance (REMESSA) and return (RETORNO) files",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// app is the wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	repo   *sqliteadapter.Repository
	layout *layout.Layout
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "remessa",
		Level:           cfg.Level(),
	})

	l, err := layout.Load(cfg.LayoutFile)
	if err != nil {
		return nil, err
	}

	repo, err := sqliteadapter.New(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	if err := repo.SetSequenceSuffix(ctx, cfg.NSASuffix); err != nil {
		repo.Close()
		return nil, err
	}
	logger.Debug("ready", "db", cfg.DBPath, "layout", l.Name)
	return &app{cfg: cfg, logger: logger, repo: repo, layout: l}, nil
}

func (a *app) Close() { a.repo.Close() }

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./remessa.yaml)")

	rootCmd.AddCommand(clientsCmd, chargesCmd, generateCmd, retornoCmd, nsaCmd, historyCmd, archiveCmd, layoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(exitCode(err))
	}
}
