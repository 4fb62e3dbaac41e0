package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/access"
	"github.com/Skotchmaster/stockflow/internal/config"
	"github.com/Skotchmaster/stockflow/internal/db"
	"github.com/Skotchmaster/stockflow/internal/events"
	"github.com/Skotchmaster/stockflow/internal/httpserver"
	"github.com/Skotchmaster/stockflow/internal/lockout"
	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/metrics"
	"github.com/Skotchmaster/stockflow/internal/scope"
	"github.com/Skotchmaster/stockflow/internal/search"
	"github.com/Skotchmaster/stockflow/internal/service"
	"github.com/Skotchmaster/stockflow/internal/session"
	"github.com/Skotchmaster/stockflow/internal/tokens"
)

func openDB(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return db.OpenSQLite(cfg.DatabaseURL)
	}
	return db.Open(ctx, cfg.DatabaseURL)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := logging.IntoContext(context.Background(), logger)

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	gdb, err := openDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var publisher events.Publisher = events.Nop{}
	var kafkaPub *events.KafkaPublisher
	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(brokers, cfg.KafkaTopic)
		publisher = kafkaPub
		logger.Info("kafka_enabled", "brokers", brokers, "topic", cfg.KafkaTopic)
	}

	signer := tokens.NewSigner([]byte(cfg.JWTSecret), cfg.AccessTTL())
	sessions := session.NewStore(gdb, cfg.RefreshTTL(), cfg.RefreshTokenBytes)
	engine := scope.NewEngine(gdb, &access.GormLoader{DB: gdb}, access.NewResolver(), m)

	var searcher *search.Searcher
	if cfg.ESURL != "" {
		esCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		esClient, err := search.NewClient(esCtx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		cancel()
		if err != nil {
			logger.Warn("elasticsearch_unavailable", "error", err)
		} else {
			searcher = search.NewSearcher(esClient, cfg.ESIndex, engine)
		}
	}

	authSvc := &service.AuthService{
		DB:       gdb,
		Sessions: sessions,
		Lock:     lockout.NewGuard(gdb, cfg.LockoutThreshold),
		Signer:   signer,
		Events:   publisher,
		Metrics:  m,
	}

	secure := cfg.CookieSecure
	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	httpserver.Register(e, &httpserver.Deps{
		Logger:        logger,
		Auth:          &httpserver.AuthHTTP{Svc: authSvc, SecureCookies: secure},
		Inventory:     &httpserver.InventoryHTTP{Engine: engine, Search: searcher},
		Signer:        signer,
		Metrics:       m,
		SecureCookies: secure,
		CSRF:          true,
		Ready: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	})

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweeper := &session.Sweeper{Store: sessions, Interval: cfg.SweepInterval(), Metrics: m}
	sweepDone := make(chan struct{})
	go func() {
		sweeper.Run(sweepCtx)
		close(sweepDone)
	}()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stopSweep()
	<-sweepDone

	if err := kafkaPub.Close(); err != nil {
		logger.Error("kafka close error", "error", err)
	}
	if err := db.Close(gdb); err != nil {
		logger.Error("db close error", "error", err)
	}

	logger.Info("shutdown complete")
}
