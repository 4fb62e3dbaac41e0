// seed inserts a demo tenant for local testing. It is a no-op when the demo
// admin already exists.
package main

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/stockflow/internal/config"
	"github.com/Skotchmaster/stockflow/internal/db"
	"github.com/Skotchmaster/stockflow/internal/logging"
	"github.com/Skotchmaster/stockflow/internal/search"
	"github.com/Skotchmaster/stockflow/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), time.Minute)
	defer cancel()

	var gdb *gorm.DB
	if cfg.DBDriver == "sqlite" {
		gdb, err = db.OpenSQLite(cfg.DatabaseURL)
	} else {
		gdb, err = db.Open(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close(gdb)

	var idx seed.Indexer
	if cfg.ESURL != "" {
		es, err := search.NewClient(ctx, search.Config{URL: cfg.ESURL, User: cfg.ESUser, Password: cfg.ESPassword})
		if err != nil {
			logger.Warn("elasticsearch_unavailable", "error", err)
		} else {
			idx = search.NewSearcher(es, cfg.ESIndex, nil)
		}
	}

	if err := seed.Run(ctx, gdb, idx); err != nil {
		if errors.Is(err, seed.ErrAlreadySeeded) {
			logger.Info("seed_skipped", "reason", err.Error())
			return
		}
		log.Fatalf("seed: %v", err)
	}
	logger.Info("seed_complete", "admin", seed.AdminEmail)
}
