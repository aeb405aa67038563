package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"smsrelay/internal/config"
	"smsrelay/internal/hub"
	"smsrelay/internal/media"
	"smsrelay/internal/observability/logging"
	"smsrelay/internal/observability/metrics"
	"smsrelay/internal/observability/middleware"
	"smsrelay/internal/service"
	"smsrelay/internal/store"
	transport "smsrelay/internal/transport/http"
	"smsrelay/pkg/db"
)

func main() {
	_ = godotenv.Load()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}

	logger := logging.NewLogger(logging.Config{
		ServiceName: "smsrelay",
		Environment: env,
		Level:       os.Getenv("LOG_LEVEL"),
	})

	slog.SetDefault(logger)
	metrics.MustRegister("smsrelay")

	logger.Info("starting service")

	cfg := config.Load()

	gormDB, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
	if err != nil {
		logger.Error("gorm open", "error", err)
		os.Exit(1)
	}

	st := store.New(gormDB)
	if err := st.AutoMigrate(context.Background()); err != nil {
		logger.Error("auto migrate", "error", err)
		os.Exit(1)
	}

	mediaStore, err := media.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		logger.Error("media store init", "error", err)
		os.Exit(1)
	}

	h := hub.New(st, cfg.SessionBuffer)
	svc := service.New(st, h)

	router := transport.NewRouter(svc, h, mediaStore, transport.Options{
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     strings.Split(cfg.CORSOrigins, ","),
		MaxUploadBytes:  cfg.MaxUploadBytes,
		UploadDir:       cfg.UploadDir,
	})

	handler := middleware.WithRequestAndTrace(middleware.WithMetrics(router))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("smsrelay listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
