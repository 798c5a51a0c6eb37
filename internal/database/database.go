package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/quizsets/backend/internal/apperr"
	"github.com/quizsets/backend/internal/config"
	"github.com/quizsets/backend/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB is the shared handle every store uses. Queries are written with `?`
// placeholders and rebound for the active driver.
type DB struct {
	*sqlx.DB
	maxAttempts int
	log         *logger.Logger
}

func Connect(cfg *config.Config, log *logger.Logger) (*DB, error) {
	switch cfg.DBDriver {
	case DriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
		)
		db, err := sqlx.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		return Wrap(db, cfg.TxMaxAttempts, log), nil
	case DriverSQLite:
		return OpenSQLite(cfg.SQLitePath+"?_pragma=busy_timeout(5000)", cfg.TxMaxAttempts, log)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// OpenSQLite opens a single-connection SQLite database. One connection keeps
// ":memory:" databases alive and serializes writers.
func OpenSQLite(dsn string, maxAttempts int, log *logger.Logger) (*DB, error) {
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return Wrap(db, maxAttempts, log), nil
}

func Wrap(db *sqlx.DB, maxAttempts int, log *logger.Logger) *DB {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DB{DB: db, maxAttempts: maxAttempts, log: log.With("component", "database")}
}

func (d *DB) txOptions() *sql.TxOptions {
	if d.DriverName() == DriverPostgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	// SQLite only runs serializable transactions.
	return nil
}

// InTx runs fn inside one serializable transaction. Transient conflicts are
// retried up to the configured attempt count and then returned wrapped in
// apperr.ErrTransactionConflict; every other error aborts immediately.
func (d *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := d.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if IsSerializationFailure(err) {
			err = apperr.TxConflict(err)
		}
		if !errors.Is(err, apperr.ErrTransactionConflict) {
			return err
		}
		lastErr = err
		d.log.Warn("transaction conflict", "attempt", attempt, "max_attempts", d.maxAttempts, "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("transaction aborted after %d attempts: %w", d.maxAttempts, lastErr)
}

func (d *DB) runTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.BeginTxx(ctx, d.txOptions())
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsSerializationFailure reports whether err is a transient concurrency
// failure that a fresh transaction may not hit again.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
		return false
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err came from a unique or primary key constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
