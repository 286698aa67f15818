// Command launchbot runs the Telegram washing-machine launch bot: a
// selection wizard over the shop catalog that ends in a relay pulse against
// the chosen shop's terminal, plus an auxiliary HTTP server for health and
// metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/washpoint/launchbot/internal/bot"
	"github.com/washpoint/launchbot/internal/config"
	"github.com/washpoint/launchbot/internal/domain"
	"github.com/washpoint/launchbot/internal/observability"
	"github.com/washpoint/launchbot/internal/ops"
	"github.com/washpoint/launchbot/internal/relay"
	"github.com/washpoint/launchbot/internal/repo"
	"github.com/washpoint/launchbot/internal/services"
	"github.com/washpoint/launchbot/internal/session"
	"github.com/washpoint/launchbot/internal/sysutil"
)

// version is stamped by the release pipeline via -ldflags.
var version = "dev"

// shutdownGrace bounds how long draining the ops server may take.
const shutdownGrace = 5 * time.Second

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.DefaultContextLogger = &log.Logger
	sysutil.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("database connection failed")
	}
	if cfg.DBDriver == "sqlite" {
		// The MySQL catalog schema is owned by the shop-management system;
		// only local SQLite databases are migrated here.
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("database migration failed")
		}
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentGorm(db); err != nil {
			log.Fatal().Err(err).Msg("gorm instrumentation failed")
		}
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("catalog database ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	sessions := session.NewStore(cfg.SessionTTL)
	relayClient := relay.NewClient(cfg.Relay, metrics)
	wizard := services.NewWizardService(db, catalogShim{}, sessions, relayClient, metrics)

	b, err := bot.New(cfg, wizard)
	if err != nil {
		log.Fatal().Err(err).Msg("bot startup failed")
	}

	var opsServer *http.Server
	if cfg.Ops.Enabled {
		opsServer = &http.Server{
			Addr:    cfg.Ops.Addr,
			Handler: ops.NewRouter(db, registry),
		}
		go func() {
			log.Info().Str("addr", cfg.Ops.Addr).Msg("ops server listening")
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops server failed")
			}
		}()
	}

	// Blocks until SIGINT/SIGTERM cancels ctx.
	b.Run(ctx)

	log.Info().Msg("shutdown signal received, stopping services")
	if opsServer != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := opsServer.Shutdown(drainCtx); err != nil {
			log.Error().Err(err).Msg("ops server shutdown failed")
		}
	}
	if err := shutdownOTel(context.Background()); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("stopped")
}

// catalogShim adapts the repository free functions to the
// services.CatalogRepo interface expected by the WizardService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type catalogShim struct{}

// ListCities proxies repo.ListCities.
func (catalogShim) ListCities(ctx context.Context, db *gorm.DB) ([]domain.City, error) {
	return repo.ListCities(ctx, db)
}

// ListShops proxies repo.ListShops.
func (catalogShim) ListShops(ctx context.Context, db *gorm.DB, cityID int64) ([]domain.Shop, error) {
	return repo.ListShops(ctx, db, cityID)
}

// ListMachines proxies repo.ListMachines.
func (catalogShim) ListMachines(ctx context.Context, db *gorm.DB, shopID int64) ([]domain.Machine, error) {
	return repo.ListMachines(ctx, db, shopID)
}

// GetMachine proxies repo.GetMachine.
func (catalogShim) GetMachine(ctx context.Context, db *gorm.DB, id int64) (*domain.Machine, error) {
	return repo.GetMachine(ctx, db, id)
}

// GetShopTerminalURL proxies repo.GetShopTerminalURL.
func (catalogShim) GetShopTerminalURL(ctx context.Context, db *gorm.DB, shopID int64) (string, error) {
	return repo.GetShopTerminalURL(ctx, db, shopID)
}
