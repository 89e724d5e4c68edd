package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/warp/agency-billing/api"
	"github.com/warp/agency-billing/billing"
	"github.com/warp/agency-billing/config"
	"github.com/warp/agency-billing/logger"
	"github.com/warp/agency-billing/store/postgres"
	"github.com/warp/agency-billing/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// storeHandle is a runtime store with its lifecycle methods.
type storeHandle interface {
	billing.TxStore
	io.Closer
	Migrate(ctx context.Context) error
}

// openStore opens the configured store. The sqlite store migrates on open.
func openStore(cfg config.DatabaseConfig) (storeHandle, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.Postgres)
	default:
		return sqlite.New(cfg.Path)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closer.Close()
	log := logger.WithComponent("server")

	store, err := openStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Driver == "postgres" {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	grants, err := billing.ParseGrants(cfg.Access.ViewAllGrants)
	if err != nil {
		return fmt.Errorf("GRANTS_VIEW_ALL: %w", err)
	}
	engine := billing.NewEngine(store, grants,
		billing.WithLogger(logger.WithComponent("engine")),
		billing.WithNotifier(billing.LogNotifier{Logger: logger.WithComponent("notifier")}),
		billing.WithBulkConcurrency(cfg.Billing.BulkTaxConcurrency),
	)
	handler := api.NewHandler(engine, store, logger.WithComponent("api"))

	if cfg.App.Seed {
		results, err := api.Seeder{Engine: engine, Store: store}.LoadAll(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info().Int("scenarios", len(results)).Msg("demo data loaded")
	}

	router := api.NewRouter(handler, api.RouterConfig{
		Auth:           api.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Issuer),
		Limiter:        api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger.WithComponent("http"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("driver", cfg.Database.Driver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	engine.Wait()
	log.Info().Msg("server stopped")
	return nil
}
