package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

//go:embed migrations
var migrations embed.FS

const DefaultTimeout = 5 * time.Second

type Config struct {
	Dialect Dialect
	DSN     string
	// Timeout bounds every storage call. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Open connects to the configured database and checks it is reachable.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn, err := normalizeDSN(cfg.Dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Dialect, err)
	}
	if cfg.Dialect == SQLite {
		// one writer; also keeps :memory: databases on a single connection
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.Timeout))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", cfg.Dialect, err)
	}
	return db, nil
}

func normalizeDSN(dialect Dialect, dsn string) (string, error) {
	switch dialect {
	case MySQL:
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
		// report matched rows so an unchanged UPDATE still counts as found
		parsed.ClientFoundRows = true
		return parsed.FormatDSN(), nil
	case SQLite:
		if strings.Contains(dsn, "_pragma=foreign_keys") {
			return dsn, nil
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	case Postgres:
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", dialect)
	}
}

// Migrate applies every embedded up migration for the dialect in file order.
// The schema uses IF NOT EXISTS so reapplying is harmless.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	dir := path.Join("migrations", string(dialect))
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migrations, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
		}
	}
	return nil
}

// MigrationNames lists the embedded up migrations for the dialect.
func MigrationNames(dialect Dialect) ([]string, error) {
	entries, err := fs.ReadDir(migrations, path.Join("migrations", string(dialect)))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".up.sql"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ApplyMigration runs a single embedded migration file, up or down, whose
// name contains the given fragment.
func ApplyMigration(ctx context.Context, db *sql.DB, dialect Dialect, fragment string, down bool) (string, error) {
	suffix := ".up.sql"
	if down {
		suffix = ".down.sql"
	}
	dir := path.Join("migrations", string(dialect))
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read migrations directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, suffix) || !strings.Contains(name, fragment) {
			continue
		}
		content, err := fs.ReadFile(migrations, path.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return "", fmt.Errorf("failed to execute migration %s: %w", name, err)
			}
		}
		return name, nil
	}
	return "", fmt.Errorf("migration file not found")
}

// splitStatements cuts a migration file on semicolons. The mysql driver
// rejects multi-statement execs unless explicitly enabled.
func splitStatements(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

type store struct {
	*pollRepository
	*voteRepository
	db *sql.DB
}

// NewStore wraps an open database as a full storage backend. Closing the
// store closes db.
func NewStore(db *sql.DB, cfg Config) ports.Storage {
	base := repository{
		db:      db,
		dialect: cfg.Dialect,
		timeout: timeoutOrDefault(cfg.Timeout),
		logger:  cfg.Logger,
	}
	if base.logger == nil {
		base.logger = slog.Default()
	}
	return &store{
		pollRepository: &pollRepository{repository: base},
		voteRepository: &voteRepository{repository: base},
		db:             db,
	}
}

func (s *store) Close() error {
	return s.db.Close()
}

type repository struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	logger  *slog.Logger
}

func (r repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r repository) q(query string) string {
	return r.dialect.rebind(query)
}
