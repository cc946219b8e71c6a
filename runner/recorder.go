package runner

import (
	"context"
	"os/user"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ridoystarlord/depmigrate/database"
	"github.com/ridoystarlord/depmigrate/migration"
)

const (
	migrationsTable = "schema_migrations"
	logsTable       = "migration_logs"
)

// Log levels written to migration_logs.
const (
	LevelInfo    = "INFO"
	LevelSuccess = "SUCCESS"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Record is one applied migration.
type Record struct {
	ID          int64     `db:"id"`
	App         string    `db:"app"`
	Name        string    `db:"name"`
	AppliedAt   time.Time `db:"applied_at"`
	ExecutionMs int64     `db:"execution_ms"`
	ExecutedBy  string    `db:"executed_by"`
	Checksum    string    `db:"checksum"`
	RunID       string    `db:"run_id"`
}

func (r Record) Key() migration.Key { return migration.Key{App: r.App, Name: r.Name} }

func (r Record) ExecutionTime() time.Duration {
	return time.Duration(r.ExecutionMs) * time.Millisecond
}

// LogEntry is one row of migration activity.
type LogEntry struct {
	ID            int64     `db:"id"`
	LoggedAt      time.Time `db:"logged_at"`
	Level         string    `db:"level"`
	Message       string    `db:"message"`
	User          string    `db:"user_name"`
	Details       string    `db:"details"`
	MigrationName string    `db:"migration_name"`
	RunID         string    `db:"run_id"`
}

var recordColumns = []string{"id", "app", "name", "applied_at", "execution_ms", "executed_by", "checksum", "run_id"}

var logColumns = []string{"id", "logged_at", "level", "message", "user_name", "details", "migration_name", "run_id"}

var trackingDDL = map[database.Dialect][]string{
	database.Postgres: {
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			id BIGSERIAL PRIMARY KEY,
			app TEXT NOT NULL,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			execution_ms BIGINT NOT NULL DEFAULT 0,
			executed_by TEXT NOT NULL DEFAULT '',
			checksum TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			UNIQUE (app, name)
		)`,
		`CREATE TABLE IF NOT EXISTS migration_logs (
			id BIGSERIAL PRIMARY KEY,
			logged_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT '',
			migration_name TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT ''
		)`,
	},
	database.SQLite: {
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			app TEXT NOT NULL,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			execution_ms INTEGER NOT NULL DEFAULT 0,
			executed_by TEXT NOT NULL DEFAULT '',
			checksum TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT '',
			UNIQUE (app, name)
		)`,
		`CREATE TABLE IF NOT EXISTS migration_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			logged_at TIMESTAMP NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			details TEXT NOT NULL DEFAULT '',
			migration_name TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL DEFAULT ''
		)`,
	},
}

// IsTrackingTable reports whether a table belongs to the migration
// bookkeeping rather than to the managed schema.
func IsTrackingTable(name string) bool {
	return name == migrationsTable || name == logsTable
}

// TrackingTables returns the names of the bookkeeping tables.
func TrackingTables() []string {
	return []string{migrationsTable, logsTable}
}

// recorder reads and writes the tracking tables.
type recorder struct {
	db      *database.DB
	builder sq.StatementBuilderType
	user    string
}

func newRecorder(db *database.DB) *recorder {
	return &recorder{db: db, builder: db.Dialect.Builder(), user: currentUser()}
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func (r *recorder) ensureTables(ctx context.Context) error {
	for _, ddl := range trackingDDL[r.db.Dialect] {
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return errors.Wrap(err, "creating tracking tables")
		}
	}
	return nil
}

// hasTable reports whether a tracking table exists, without creating it.
func (r *recorder) hasTable(ctx context.Context, name string) (bool, error) {
	q := r.builder.Select("count(*)")
	switch r.db.Dialect {
	case database.SQLite:
		q = q.From("sqlite_master").Where(sq.Eq{"type": "table", "name": name})
	default:
		q = q.From("information_schema.tables").
			Where("table_schema = current_schema()").
			Where(sq.Eq{"table_name": name})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return false, errors.Wrapf(err, "looking up table %s", name)
	}
	return n > 0, nil
}

// applied returns the applied migrations, most recent first.
func (r *recorder) applied(ctx context.Context) ([]Record, error) {
	return r.history(ctx, HistoryFilter{})
}

// history reads the applied records. A database without the tracking
// table has applied nothing.
func (r *recorder) history(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	if ok, err := r.hasTable(ctx, migrationsTable); err != nil || !ok {
		return nil, err
	}
	q := r.builder.Select(recordColumns...).From(migrationsTable).OrderBy("applied_at DESC", "id DESC")
	if filter.App != "" {
		q = q.Where(sq.Eq{"app": filter.App})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.Wrap(err, "query migration history")
	}
	return records, nil
}

func (r *recorder) insert(ctx context.Context, tx *sqlx.Tx, rec Record) error {
	query, args, err := r.builder.Insert(migrationsTable).
		Columns("app", "name", "applied_at", "execution_ms", "executed_by", "checksum", "run_id").
		Values(rec.App, rec.Name, rec.AppliedAt, rec.ExecutionMs, rec.ExecutedBy, rec.Checksum, rec.RunID).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return errors.Wrapf(err, "recording migration %s.%s", rec.App, rec.Name)
}

func (r *recorder) remove(ctx context.Context, tx *sqlx.Tx, k migration.Key) error {
	query, args, err := r.builder.Delete(migrationsTable).
		Where(sq.Eq{"app": k.App, "name": k.Name}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return errors.Wrapf(err, "removing migration record for %s", k)
}

// log writes an activity row. It must not be called while a migration
// transaction is open: SQLite runs on a single connection.
func (r *recorder) log(ctx context.Context, runID, level, message, migrationName, details string) error {
	query, args, err := r.builder.Insert(logsTable).
		Columns("logged_at", "level", "message", "user_name", "details", "migration_name", "run_id").
		Values(time.Now().UTC(), level, message, r.user, details, migrationName, runID).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "writing migration log")
}

func (r *recorder) logs(ctx context.Context, limit int) ([]LogEntry, error) {
	if ok, err := r.hasTable(ctx, logsTable); err != nil || !ok {
		return nil, err
	}
	q := r.builder.Select(logColumns...).From(logsTable).OrderBy("logged_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	var entries []LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, errors.Wrap(err, "query migration logs")
	}
	return entries, nil
}

// lastErrors returns, per migration, the newest log entry when that entry
// is an error.
func (r *recorder) lastErrors(ctx context.Context) (map[string]LogEntry, error) {
	if ok, err := r.hasTable(ctx, logsTable); err != nil || !ok {
		return map[string]LogEntry{}, err
	}
	query, args, err := r.builder.Select(logColumns...).From(logsTable).
		Where(sq.NotEq{"migration_name": ""}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	var entries []LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, errors.Wrap(err, "query migration logs")
	}

	latest := map[string]LogEntry{}
	for _, e := range entries {
		latest[e.MigrationName] = e
	}
	for name, e := range latest {
		if e.Level != LevelError {
			delete(latest, name)
		}
	}
	return latest, nil
}
