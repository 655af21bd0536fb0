package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// lockKey serialises migration runs across replicas starting together.
const lockKey int64 = 7_411_902_317

// Runner executes database migrations.
type Runner struct {
	db   *sql.DB
	fsys fs.FS
	out  io.Writer
}

// NewRunner creates a runner over fsys. Progress goes to out, which may be nil.
func NewRunner(db *sql.DB, fsys fs.FS, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, fsys: fsys, out: out}
}

// MigrationRecord represents a row in schema_migrations.
type MigrationRecord struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(14) PRIMARY KEY,
			name       VARCHAR(255) NOT NULL DEFAULT '',
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

// Applied returns applied migrations in version order.
func (r *Runner) Applied(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.Version, &rec.Name, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Pending returns migrations not yet applied.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	available, err := Load(r.fsys, Up)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return pendingOf(available, applied), nil
}

func pendingOf(available []Migration, applied []MigrationRecord) []Migration {
	done := make(map[string]bool, len(applied))
	for _, rec := range applied {
		done[rec.Version] = true
	}
	var pending []Migration
	for _, m := range available {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Up runs all pending migrations and returns how many were applied.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return 0, fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.out, "No pending migrations")
		return 0, nil
	}

	fmt.Fprintf(r.out, "Running %d migrations...\n", len(pending))
	applied := 0
	for _, m := range pending {
		ran, err := r.apply(ctx, m)
		if err != nil {
			return applied, fmt.Errorf("migration %s failed: %w", m, err)
		}
		if ran {
			applied++
			fmt.Fprintf(r.out, "  Applied: %s\n", m)
		}
	}
	return applied, nil
}

// apply runs one up migration under an advisory lock. It re-checks the
// ledger inside the transaction so a concurrent runner is not repeated.
func (r *Runner) apply(ctx context.Context, m Migration) (bool, error) {
	content, err := fs.ReadFile(r.fsys, m.Path)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version,
	).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name,
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// Down rolls back the last applied migration.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(r.out, "No migrations to rollback")
		return nil
	}
	last := applied[len(applied)-1]

	downs, err := Load(r.fsys, Down)
	if err != nil {
		return err
	}
	var target *Migration
	for i := range downs {
		if downs[i].Version == last.Version {
			target = &downs[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no down migration for version %s", last.Version)
	}

	content, err := fs.ReadFile(r.fsys, target.Path)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("rollback %s failed: %w", target, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last.Version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Rolled back: %s\n", target)
	return nil
}

// Status prints every known migration with its state.
func (r *Runner) Status(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return err
	}
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	available, err := Load(r.fsys, Up)
	if err != nil {
		return err
	}

	appliedAt := make(map[string]time.Time, len(applied))
	for _, rec := range applied {
		appliedAt[rec.Version] = rec.AppliedAt
	}

	fmt.Fprintln(r.out, "Migration Status")
	fmt.Fprintln(r.out, "================")
	for _, m := range available {
		status := "pending"
		if at, ok := appliedAt[m.Version]; ok {
			status = "applied (" + at.Format("2006-01-02 15:04") + ")"
		}
		fmt.Fprintf(r.out, "  %s_%s: %s\n", m.Version, m.Name, status)
	}
	return nil
}

// Seed loads the sample tags, tools and versions. Re-running it is a no-op.
func (r *Runner) Seed(ctx context.Context) error {
	content, err := fs.ReadFile(r.fsys, "seed.sql")
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Seed data loaded")
	return nil
}
