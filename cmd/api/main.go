package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-monitor/internal/auth"
	"call-monitor/internal/calls"
	"call-monitor/internal/config"
	"call-monitor/internal/httpapi"
	"call-monitor/internal/ingest"
	"call-monitor/internal/pending"
	"call-monitor/internal/platform"
	"call-monitor/internal/reporting"
	"call-monitor/pkg/logger"
	"call-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Call record store (explicit object, injected everywhere; no globals).
	var records calls.Store
	switch cfg.Store.Driver {
	case "postgres":
		db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := calls.NewPostgresStore(db)
		if err := pg.EnsureSchema(rootCtx); err != nil {
			log.Error("schema init failed", "err", err)
			os.Exit(1)
		}
		records = pg
	default:
		records = calls.NewMemoryStore(cfg.Store.RecordCap)
	}

	// Pending-contact pool.
	var pendingStore pending.Store
	if cfg.Pending.RedisAddr != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.Pending.RedisAddr})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		pendingStore = pending.NewRedisStore(rdb, "", cfg.Pending.Capacity)
	} else {
		pendingStore = pending.NewMemoryStore(cfg.Pending.Capacity)
	}

	// Upstream pull path; stays nil when no base URL is configured.
	var upstream platform.API
	if cfg.Platform.BaseURL != "" {
		upstream = platform.NewClient(platform.Config{
			BaseURL: cfg.Platform.BaseURL,
			APIKey:  cfg.Platform.APIKey,
		})
	}

	svc := ingest.NewService(records, pendingStore, ingest.Options{
		PendingTTL: cfg.Pending.TTL,
		Upstream:   upstream,
		Logger:     log,
	})

	var authManager *auth.Manager
	if cfg.AuthEnabled() {
		authManager, err = auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			log.Error("auth init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("JWT_SECRET not set, dashboard API is unauthenticated")
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, httpapi.Handlers{
		Ingest:    svc,
		Reporting: reporting.NewService(records),
		Auth:      authManager,
	}, authManager)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
