// Package repository persists the run ledger and the model response cache.
// Two backends share one SQL implementation: SQLite through modernc.org/sqlite
// and PostgreSQL through a pgx pool wrapped as *sql.DB.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/species-extractor/internal/common"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// DB is an open ledger database.
type DB struct {
	sql     *sql.DB
	pool    *pgxpool.Pool
	dialect Dialect
	logger  *slog.Logger
}

// ParseDSN picks the backend. postgres:// and postgresql:// URLs go to
// PostgreSQL; "sqlite:<path>", "file:<path>" or a bare path go to SQLite.
func ParseDSN(dsn string) (Dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return "", "", common.NewAppError(common.CodeConfig, "empty store dsn", common.ErrInvalidInput, nil)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DialectPostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return DialectSQLite, strings.TrimPrefix(dsn, "sqlite:"), nil
	default:
		return DialectSQLite, dsn, nil
	}
}

// Open connects and creates the schema when missing.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect, target, err := ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	logger.Info("store.connect", "dialect", dialect)
	db := &DB{dialect: dialect, logger: logger}
	switch dialect {
	case DialectPostgres:
		err = db.openPostgres(ctx, target, cfg)
	default:
		err = db.openSQLite(target)
	}
	if err != nil {
		logger.Error("store.connect_failed", "dialect", dialect, "error", err)
		return nil, err
	}

	if err := db.migrate(ctx); err != nil {
		_ = db.Close()
		logger.Error("store.migrate_failed", "error", err)
		return nil, err
	}
	logger.Info("store.connected", "dialect", dialect)
	return db, nil
}

func (db *DB) openPostgres(ctx context.Context, dsn string, cfg Config) error {
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "species-extractor"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	db.pool = pool
	db.sql = stdlib.OpenDBFromPool(pool)
	return nil
}

func (db *DB) openSQLite(path string) error {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create store dir: %w", err)
			}
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the ledger is written from a single goroutine per event.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return fmt.Errorf("sqlite %q: %w", pragma, err)
		}
	}
	db.sql = conn
	return nil
}

func (db *DB) Dialect() Dialect { return db.dialect }

// Ping checks the connection, bounded by timeout when positive.
func (db *DB) Ping(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	db.logger.Debug("store.ping")
	return db.sql.PingContext(ctx)
}

// Close closes the database connections gracefully
func (db *DB) Close() error {
	db.logger.Info("store.close")
	var err error
	if db.sql != nil {
		err = db.sql.Close()
	}
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, query string, args ...any) error {
	_, err := db.sql.ExecContext(ctx, db.rebind(query), args...)
	return err
}

func (db *DB) migrate(ctx context.Context) error {
	ts := "TEXT"
	if db.dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extraction_runs (
			id          TEXT PRIMARY KEY,
			input_dir   TEXT NOT NULL,
			model       TEXT NOT NULL,
			status      TEXT NOT NULL,
			started_at  ` + ts + ` NOT NULL,
			finished_at ` + ts + `,
			documents   INTEGER NOT NULL DEFAULT 0,
			records     INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS document_summaries (
			run_id           TEXT NOT NULL,
			document         TEXT NOT NULL,
			sha256           TEXT NOT NULL,
			status           TEXT NOT NULL,
			pages            INTEGER NOT NULL,
			pages_digital    INTEGER NOT NULL,
			pages_ocr        INTEGER NOT NULL,
			pages_empty      INTEGER NOT NULL,
			ocr_failures     INTEGER NOT NULL,
			language_dropped INTEGER NOT NULL,
			chunks           INTEGER NOT NULL,
			chunks_skipped   INTEGER NOT NULL,
			chunks_failed    INTEGER NOT NULL,
			chunks_cached    INTEGER NOT NULL,
			candidates       INTEGER NOT NULL,
			accepted         INTEGER NOT NULL,
			rejected         INTEGER NOT NULL,
			error            TEXT NOT NULL,
			elapsed_ms       BIGINT NOT NULL,
			recorded_at      ` + ts + ` NOT NULL,
			PRIMARY KEY (run_id, document)
		)`,
		`CREATE TABLE IF NOT EXISTS model_responses (
			cache_key  TEXT PRIMARY KEY,
			model      TEXT NOT NULL,
			raw        TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
	}
	for _, s := range stmts {
		if err := db.exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
