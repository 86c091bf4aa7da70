package db

import (
	"context"
	"time"

	"rps_arena/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Connect opens the match store pool, retrying while the database comes up.
func Connect(ctx context.Context, dsn string, maxConns int32) *pgxpool.Pool {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", "error", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.Ping(pingCtx)
		cancel()
		if err == nil {
			break
		}
		if attempt == connectAttempts || ctx.Err() != nil {
			logger.Fatal("failed to ping database", "attempts", attempt, "error", err)
		}
		logger.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(connectBackoff):
		}
	}

	logger.Info("database connected", "max_conns", cfg.MaxConns)
	return db
}
