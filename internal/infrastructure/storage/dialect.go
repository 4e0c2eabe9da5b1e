package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"BirbFetcher/internal/config"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	pgUniqueViolation = "23505"
)

// Dialect captures the per-database differences the repository and migrator
// care about.
type Dialect struct {
	Name        string
	placeholder sq.PlaceholderFormat
	// lockSuffix is appended to the schema version read inside the
	// migration transaction.
	lockSuffix        string
	isUniqueViolation func(error) bool
	migrations        []Migration
}

// Builder returns a squirrel statement builder with the right placeholders.
func (d Dialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.placeholder)
}

// Migrations returns the ordered schema steps for this dialect.
func (d Dialect) Migrations() []Migration {
	return append([]Migration(nil), d.migrations...)
}

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "postgresql", "pq":
		return Dialect{
			Name:              DriverPostgres,
			placeholder:       sq.Dollar,
			lockSuffix:        "FOR UPDATE",
			isUniqueViolation: isPostgresUniqueViolation,
			migrations:        postgresMigrations,
		}, nil
	case DriverSQLite, "sqlite3":
		return Dialect{
			Name:              DriverSQLite,
			placeholder:       sq.Question,
			isUniqueViolation: isSQLiteUniqueViolation,
			migrations:        sqliteMigrations,
		}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	db, err := sql.Open(dialect.Name, cfg.DSN)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s db: %w", dialect.Name, err)
	}

	switch dialect.Name {
	case DriverSQLite:
		// A single connection keeps pragmas in effect and serializes writers.
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, Dialect{}, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	default:
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, Dialect{}, fmt.Errorf("ping %s db: %w", dialect.Name, err)
	}
	return db, dialect, nil
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if err == nil || !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pgUniqueViolation
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if err == nil || !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
