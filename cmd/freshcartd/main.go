package main

import (
	"log"

	"github.com/vbonduro/freshcart/internal/config"
	"github.com/vbonduro/freshcart/internal/logging"
	"github.com/vbonduro/freshcart/internal/server"
	"github.com/vbonduro/freshcart/internal/store/sqlite"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if cfg.AuthToken == "" {
		logger.Warn("AUTH_TOKEN is empty; accepting unauthenticated requests")
	}

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	st := sqlite.New(db, logger)

	srv := server.NewServer(st, cfg.AuthToken, logger)
	defer srv.Close()

	if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}
