// Command parley-server starts the Parley backup restore API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/migrate"
	"github.com/parleychat/parley/internal/notify"
	"github.com/parleychat/parley/internal/repository/postgres"
	httpserver "github.com/parleychat/parley/internal/server/http"
	"github.com/parleychat/parley/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and starts the HTTP server.
func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	logger := newLogger(cfg.Logging.Level)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Server.Addr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.Database.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	serverRepo := postgres.NewServerRepo(db)
	channelRepo := postgres.NewChannelRepo(db)
	userRepo := postgres.NewUserRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	// Event publisher
	var pub notify.Publisher = notify.Noop{}
	if cfg.NATS.Enabled {
		np, err := notify.NewNATS(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("nats connect", zap.Error(err))
		}
		pub = np
	}
	defer pub.Close()

	// Services
	exportSvc := service.NewExportService(userRepo, auditRepo, logger)
	restoreSvc := service.NewRestoreService(serverRepo, auditRepo, pub, logger)
	importSvc := service.NewImportService(channelRepo, serverRepo, cfg.Restore.MaxImportBatch)

	app := httpserver.New(exportSvc, restoreSvc, importSvc, []byte(cfg.Auth.JWTSecret), logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewExample()
	}
	return logger
}
