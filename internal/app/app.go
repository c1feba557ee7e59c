// Package app builds the shared pieces the binaries start from.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vncsmyrnk/timedpolls/internal/adapters/repository/file"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/repository/sqldb"
	"github.com/vncsmyrnk/timedpolls/internal/config"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

// NewLogger returns a JSON logger at the named level. Unknown levels fall
// back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// SQLConfig maps the storage settings onto the SQL adapter. It fails for the
// file backend.
func SQLConfig(cfg config.StorageConfig, logger *slog.Logger) (sqldb.Config, error) {
	dialect, err := sqldb.ParseDialect(string(cfg.Type))
	if err != nil {
		return sqldb.Config{}, err
	}
	return sqldb.Config{
		Dialect: dialect,
		DSN:     cfg.DSN(),
		Timeout: cfg.Timeout,
		Logger:  logger,
	}, nil
}

// OpenSQL connects to the configured SQL backend, creating the parent
// directory of a sqlite file first.
func OpenSQL(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*sql.DB, sqldb.Config, error) {
	sqlCfg, err := SQLConfig(cfg, logger)
	if err != nil {
		return nil, sqldb.Config{}, err
	}
	if sqlCfg.Dialect == sqldb.SQLite && cfg.SQLitePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, sqldb.Config{}, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	db, err := sqldb.Open(ctx, sqlCfg)
	if err != nil {
		return nil, sqldb.Config{}, err
	}
	return db, sqlCfg, nil
}

// OpenStorage opens the configured backend. SQL schemas are migrated before
// the store is returned.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (ports.Storage, error) {
	if cfg.Type == config.StorageFile {
		return file.Open(cfg.FilePath, logger)
	}

	db, sqlCfg, err := OpenSQL(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := sqldb.Migrate(ctx, db, sqlCfg.Dialect); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("storage ready", "type", cfg.Type)
	return sqldb.NewStore(db, sqlCfg), nil
}
