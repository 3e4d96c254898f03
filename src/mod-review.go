package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/mod-review/src/app"
	"github.com/stake-plus/mod-review/src/config"
	shareddata "github.com/stake-plus/mod-review/src/data"
	"github.com/stake-plus/mod-review/src/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}

	// Settings live in MySQL when a DSN is given; env covers everything otherwise.
	var db *gorm.DB
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		var err error
		db, err = shareddata.ConnectMySQL(dsn)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		if err := shareddata.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	cfg, err := config.LoadReviewConfig(db)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.Open(ctx, cfg, db, logger)
	if err != nil {
		logger.Fatal("open services", zap.Error(err))
	}
	defer svc.Close()

	manager := app.NewManager(logger, svc.Modules(net.JoinHostPort("", cfg.Port), cfg.DiscordTimeout*2)...)
	if err := manager.Start(ctx); err != nil {
		logger.Fatal("start", zap.Error(err))
	}
	logger.Info("review service running",
		zap.String("store", cfg.StoreBackend),
		zap.Bool("redis", svc.Redis != nil))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	manager.Stop(shutdownCtx)
}
