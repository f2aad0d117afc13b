// cmd/chaos/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barternexus/internal/chaos"
	"barternexus/internal/config"
	"barternexus/internal/notify"
	"barternexus/internal/observability"
	"barternexus/internal/storage/memory"
	"barternexus/internal/storage/postgres"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load("exchange-chaos")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireStore(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := observability.NewLogger(cfg.ServiceName, false)
	defer logger.Sync()

	var target *chaos.Target
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		gateway := postgres.NewGateway(db, logger)
		if err := gateway.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate schema", zap.Error(err))
		}
		inspector := chaos.NewPostgresInspector(db, gateway.Events())
		target = chaos.NewTarget(gateway, gateway, inspector, notify.NewLogSink(logger), logger)
	default:
		store := memory.NewStore()
		target = chaos.NewTarget(store, store, chaos.NewMemoryInspector(store), notify.NewLogSink(logger), logger)
	}
	target.Window = 10 * time.Second

	engine := chaos.NewEngine(logger, time.Second)
	engine.RegisterAll(target)

	gameDay := chaos.GameDay{
		Name:      "Weekly Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
		Pause:     5 * time.Second,
	}

	failed, err := engine.RunGameDay(ctx, gameDay)
	if err != nil {
		logger.Fatal("Chaos Game Day failed", zap.Error(err))
	}
	if failed > 0 {
		logger.Fatal("Chaos Game Day found violated hypotheses", zap.Int("failed", failed))
	}
	logger.Info("Chaos Game Day passed", zap.Int("experiments", len(gameDay.Scenarios)))
}
