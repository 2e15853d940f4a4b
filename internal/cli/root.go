// Package cli implements the scorectl administrative command set.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/logging"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/service"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "scorectl",
	Short: "Supply-chain credit scoring administration",
	Long: `scorectl manages the scoring engine from the terminal:

Seed synthetic counterparties, compute scores, inspect and roll
scorecard versions, and run ML refinements against registered
model artifacts.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
}

// env bundles the backend handles CLI commands work against.
type env struct {
	repo     repository.Repository
	versions *service.VersionManager
	scoring  *service.ScoringService
	refiner  *service.Refiner
}

func connect(ctx context.Context) (*env, func(), error) {
	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).Logger

	repo, err := repository.NewPostgresRepository(ctx, cfg.Database.Postgres.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	versions := service.NewVersionManager(repo, cfg.Versions, nil, log)
	return &env{
		repo:     repo,
		versions: versions,
		scoring:  service.NewScoringService(repo, versions, nil, nil, cfg.Scoring, log),
		refiner:  service.NewRefiner(repo, cfg.Refinement, log),
	}, repo.Close, nil
}
