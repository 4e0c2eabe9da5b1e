package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"BirbFetcher/internal/domain"
)

const versionRowID = 0

// Result summarises one migration run.
type Result struct {
	From    int
	To      int
	Applied int
}

// Migrator brings the schema to the newest known version.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	steps   []Migration
	logger  *slog.Logger
}

// NewMigrator uses the dialect's built-in migrations.
func NewMigrator(db *sql.DB, dialect Dialect, logger *slog.Logger) *Migrator {
	return NewMigratorWithSteps(db, dialect, dialect.Migrations(), logger)
}

// NewMigratorWithSteps runs an explicit step list.
func NewMigratorWithSteps(db *sql.DB, dialect Dialect, steps []Migration, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, dialect: dialect, steps: steps, logger: logger}
}

// Migrate applies every step newer than the persisted version inside one
// transaction. On failure nothing from this run is kept.
func (m *Migrator) Migrate(ctx context.Context) (Result, error) {
	if err := validateSteps(m.steps); err != nil {
		return Result{}, domain.Wrap(domain.ErrPersistence, "validate migrations", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, domain.Wrap(domain.ErrPersistence, "begin migration tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := m.currentVersion(ctx, tx)
	if err != nil {
		return Result{}, err
	}
	m.logger.Debug("schema version loaded", "version", current)

	result := Result{From: current, To: current}
	for _, step := range m.steps {
		if step.Version <= current {
			continue
		}
		m.logger.Info("applying migration", "version", step.Version, "statements", len(step.Statements))
		for i, stmt := range step.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return Result{}, domain.Wrap(domain.ErrPersistence,
					fmt.Sprintf("apply migration %d statement %d", step.Version, i+1), err)
			}
		}
		result.To = step.Version
		result.Applied++
	}

	if result.Applied == 0 {
		if err := tx.Commit(); err != nil {
			return Result{}, domain.Wrap(domain.ErrPersistence, "commit migrations", err)
		}
		return result, nil
	}

	query, args, err := m.dialect.Builder().
		Update("schema_version").
		Set("version", result.To).
		Where(sq.Eq{"id": versionRowID}).
		ToSql()
	if err != nil {
		return Result{}, domain.Wrap(domain.ErrPersistence, "build version update", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return Result{}, domain.Wrap(domain.ErrPersistence, "record schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, domain.Wrap(domain.ErrPersistence, "commit migrations", err)
	}
	m.logger.Info("schema migrated", "from", result.From, "to", result.To, "applied", result.Applied)
	return result, nil
}

// Version reads the persisted schema version without changing anything. It
// returns 0 when the version table does not exist yet.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "begin version tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	return m.currentVersion(ctx, tx)
}

func (m *Migrator) currentVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx, versionTableDDL); err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "ensure schema_version", err)
	}

	seed, args, err := m.dialect.Builder().
		Insert("schema_version").
		Columns("id", "version").
		Values(versionRowID, 0).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "build version seed", err)
	}
	if _, err := tx.ExecContext(ctx, seed, args...); err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "seed schema_version", err)
	}

	selectVersion := m.dialect.Builder().
		Select("version").
		From("schema_version").
		Where(sq.Eq{"id": versionRowID})
	if m.dialect.lockSuffix != "" {
		selectVersion = selectVersion.Suffix(m.dialect.lockSuffix)
	}
	query, args, err := selectVersion.ToSql()
	if err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "build version query", err)
	}

	var version int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		return 0, domain.Wrap(domain.ErrPersistence, "read schema version", err)
	}
	return version, nil
}

func validateSteps(steps []Migration) error {
	last := 0
	for _, step := range steps {
		if step.Version <= last {
			return fmt.Errorf("migration version %d is not greater than %d", step.Version, last)
		}
		if len(step.Statements) == 0 {
			return fmt.Errorf("migration %d has no statements", step.Version)
		}
		last = step.Version
	}
	return nil
}
