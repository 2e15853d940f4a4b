package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ledgerline-systems/supplyscore/internal/cache"
	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/handlers"
	"github.com/ledgerline-systems/supplyscore/internal/importer"
	"github.com/ledgerline-systems/supplyscore/internal/logging"
	"github.com/ledgerline-systems/supplyscore/internal/messaging"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/server"
	"github.com/ledgerline-systems/supplyscore/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	connString := cfg.Database.Postgres.ConnString()

	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Error("failed to initialize migrations", "error", err)
		os.Exit(1)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("database migrations completed")

	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var snapshots *cache.SnapshotCache
	if cfg.Redis.Addr != "" {
		snapshots, err = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer snapshots.Close()
	}

	var publisher *messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = messaging.NewPublisher(cfg.NATS.URL, log.Logger)
		if err != nil {
			log.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
	}

	versions := service.NewVersionManager(repo, cfg.Versions, publisher, log.Logger)
	if _, err := versions.EnsureInitialVersion(context.Background()); err != nil {
		log.Error("failed to ensure initial scorecard version", "error", err)
		os.Exit(1)
	}

	imp := importer.NewImporter(repo, log.Logger)
	if err := imp.Import(context.Background(), cfg.Rules.BootstrapFile); err != nil {
		log.Error("failed to bootstrap decision rules", "error", err)
		os.Exit(1)
	}

	scoring := service.NewScoringService(repo, versions, snapshots, publisher, cfg.Scoring, log.Logger)
	refiner := service.NewRefiner(repo, cfg.Refinement, log.Logger)

	handler := handlers.NewHandler(scoring, versions, refiner, repo)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("scoring service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
}
