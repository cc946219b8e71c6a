package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/ridoystarlord/depmigrate/database"
	"github.com/ridoystarlord/depmigrate/generator"
	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/planner"
	"github.com/ridoystarlord/depmigrate/schema"
)

// ApplyOptions controls Runner.Apply.
type ApplyOptions struct {
	// DryRun plans and generates SQL without touching the database.
	DryRun bool
	// Fake records migrations as applied without executing their SQL.
	Fake bool
	// Target limits the run to the given migration and its dependencies.
	Target *migration.Key
}

// RollbackOptions controls Runner.Rollback.
type RollbackOptions struct {
	Steps  int
	DryRun bool
}

// HistoryFilter narrows Runner.History.
type HistoryFilter struct {
	Limit int
	App   string
}

// StepSQL is the SQL generated for one migration.
type StepSQL struct {
	Migration  migration.Key
	Statements []string
}

// Result describes a run.
type Result struct {
	RunID string
	Plan  *planner.Plan
	// SQL holds the statements of every planned step, in execution order.
	SQL []StepSQL
	// Done lists the migrations applied (or unapplied) by this run.
	Done []migration.Key
}

// Status summarises the applied-migrations record against the registry.
type Status struct {
	Applied []Record
	Pending []migration.Key
	// Failed holds pending migrations whose latest activity is an error.
	Failed []LogEntry
	// Unknown holds applied migrations missing from the registry.
	Unknown []migration.Key
	// Modified holds applied migrations whose descriptor changed since.
	Modified []migration.Key
}

// Runner applies and rolls back registered migrations against a database.
type Runner struct {
	db  *database.DB
	reg *migration.Registry
	rec *recorder
	log *zap.Logger
}

func New(db *database.DB, reg *migration.Registry, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		db:  db,
		reg: reg,
		rec: newRecorder(db),
		log: log,
	}
}

// EnsureTables creates the tracking tables if they are missing.
func (r *Runner) EnsureTables(ctx context.Context) error {
	return r.rec.ensureTables(ctx)
}

// Plan computes the forward plan against the applied-migrations record.
// It only reads: missing tracking tables mean nothing is applied.
func (r *Runner) Plan(ctx context.Context, targets ...migration.Key) (*planner.Plan, error) {
	records, err := r.rec.applied(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := planner.NewGraph(r.reg)
	if err != nil {
		return nil, err
	}
	return planner.Forwards(graph, appliedSet(records), targets...)
}

// Apply runs every pending migration, each in its own transaction. The
// whole plan, SQL included, is computed first: a dependency cycle or an
// unmet operation precondition fails before any statement runs. A database
// error stops the run; migrations committed before it stay applied.
func (r *Runner) Apply(ctx context.Context, opts ApplyOptions) (*Result, error) {
	runID := uuid.NewString()
	log := r.log.With(zap.String("run_id", runID))

	if !opts.DryRun {
		if err := r.rec.ensureTables(ctx); err != nil {
			return nil, err
		}
	}

	var targets []migration.Key
	if opts.Target != nil {
		targets = append(targets, *opts.Target)
	}
	plan, err := r.Plan(ctx, targets...)
	if err != nil {
		log.Error("Planning migrations failed", zap.Error(err))
		if !opts.DryRun {
			r.logActivity(ctx, log, runID, LevelError, "Planning failed", "", err.Error())
		}
		return nil, errors.Wrap(err, "planning migrations")
	}

	res := &Result{RunID: runID, Plan: plan}
	for _, step := range plan.Steps {
		stmts, err := generator.MigrationSQL(step.Migration, step.Snapshots)
		if err != nil {
			return nil, errors.Wrap(err, "generating SQL")
		}
		res.SQL = append(res.SQL, StepSQL{Migration: step.Key(), Statements: stmts})
	}

	if len(plan.Unknown) > 0 {
		log.Warn("Applied migrations missing from the registry", zap.Stringers("migrations", plan.Unknown))
	}
	if opts.DryRun || len(plan.Steps) == 0 {
		return res, nil
	}

	log.Info("Bringing up migrations", zap.Int("migration_count", len(plan.Steps)), zap.Bool("fake", opts.Fake))
	for i, step := range plan.Steps {
		stmts := res.SQL[i].Statements
		if opts.Fake {
			stmts = nil
		}
		if err := r.applyStep(ctx, log, runID, step.Migration, stmts); err != nil {
			return res, err
		}
		res.Done = append(res.Done, step.Key())
	}
	return res, nil
}

func (r *Runner) applyStep(ctx context.Context, log *zap.Logger, runID string, m *migration.Migration, stmts []string) error {
	key := m.Key()
	log = log.With(zap.Stringer("migration", key))
	log.Debug("Executing migration", zap.Int("statement_count", len(stmts)))
	r.logActivity(ctx, log, runID, LevelInfo, fmt.Sprintf("Starting migration: %s", key), key.String(), "Migration execution started")

	start := time.Now()
	err := r.inTx(ctx, stmts, func(tx *sqlx.Tx) error {
		return r.rec.insert(ctx, tx, Record{
			App:         key.App,
			Name:        key.Name,
			AppliedAt:   time.Now().UTC(),
			ExecutionMs: time.Since(start).Milliseconds(),
			ExecutedBy:  r.rec.user,
			Checksum:    m.Checksum(),
			RunID:       runID,
		})
	})
	elapsed := time.Since(start)

	if err != nil {
		details := err.Error()
		if database.IsUniqueViolation(err) {
			details = "existing rows violate a unique constraint: " + details
		}
		log.Error("Migration failed", zap.Error(err))
		r.logActivity(ctx, log, runID, LevelError, fmt.Sprintf("Migration failed: %s", key), key.String(), details)
		return errors.Wrapf(err, "applying migration %s", key)
	}

	log.Info("Migration applied", zap.Duration("elapsed", elapsed))
	r.logActivity(ctx, log, runID, LevelSuccess, fmt.Sprintf("Migration completed: %s", key), key.String(), fmt.Sprintf("Execution time: %v", elapsed))
	return nil
}

// Rollback unapplies the most recently applied migrations, newest first,
// each in its own transaction.
func (r *Runner) Rollback(ctx context.Context, opts RollbackOptions) (*Result, error) {
	runID := uuid.NewString()
	log := r.log.With(zap.String("run_id", runID))

	if opts.Steps <= 0 {
		return nil, errors.Errorf("rollback steps must be positive, got %d", opts.Steps)
	}
	if !opts.DryRun {
		if err := r.rec.ensureTables(ctx); err != nil {
			return nil, err
		}
	}
	records, err := r.rec.applied(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := planner.NewGraph(r.reg)
	if err != nil {
		return nil, errors.Wrap(err, "planning rollback")
	}
	keys := make([]migration.Key, 0, len(records))
	for _, rec := range records {
		keys = append(keys, rec.Key())
	}
	plan, err := planner.Backwards(graph, keys, opts.Steps)
	if err != nil {
		return nil, errors.Wrap(err, "planning rollback")
	}

	res := &Result{RunID: runID, Plan: plan}
	for _, step := range plan.Steps {
		stmts, err := generator.RollbackSQL(step.Migration, step.Snapshots)
		if err != nil {
			return nil, errors.Wrap(err, "generating rollback SQL")
		}
		res.SQL = append(res.SQL, StepSQL{Migration: step.Key(), Statements: stmts})
	}
	if opts.DryRun || len(plan.Steps) == 0 {
		return res, nil
	}

	log.Info("Rolling back migrations", zap.Int("migration_count", len(plan.Steps)))
	for i, step := range plan.Steps {
		if err := r.rollbackStep(ctx, log, runID, step.Key(), res.SQL[i].Statements); err != nil {
			return res, err
		}
		res.Done = append(res.Done, step.Key())
	}
	return res, nil
}

func (r *Runner) rollbackStep(ctx context.Context, log *zap.Logger, runID string, key migration.Key, stmts []string) error {
	log = log.With(zap.Stringer("migration", key))
	r.logActivity(ctx, log, runID, LevelInfo, fmt.Sprintf("Starting rollback: %s", key), key.String(), "Rollback execution started")

	start := time.Now()
	err := r.inTx(ctx, stmts, func(tx *sqlx.Tx) error {
		return r.rec.remove(ctx, tx, key)
	})
	elapsed := time.Since(start)

	if err != nil {
		log.Error("Rollback failed", zap.Error(err))
		r.logActivity(ctx, log, runID, LevelError, fmt.Sprintf("Rollback failed: %s", key), key.String(), err.Error())
		return errors.Wrapf(err, "rolling back migration %s", key)
	}
	log.Info("Migration rolled back", zap.Duration("elapsed", elapsed))
	r.logActivity(ctx, log, runID, LevelSuccess, fmt.Sprintf("Rollback completed: %s", key), key.String(), fmt.Sprintf("Execution time: %v", elapsed))
	return nil
}

// Status compares the applied-migrations record with the registry.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	records, err := r.rec.applied(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := planner.NewGraph(r.reg)
	if err != nil {
		return nil, err
	}
	order, err := graph.Order()
	if err != nil {
		return nil, err
	}
	failures, err := r.rec.lastErrors(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{}
	applied := appliedSet(records)
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		st.Applied = append(st.Applied, rec)
		m, ok := graph.Node(rec.Key())
		if !ok {
			st.Unknown = append(st.Unknown, rec.Key())
			continue
		}
		if rec.Checksum != "" && rec.Checksum != m.Checksum() {
			st.Modified = append(st.Modified, rec.Key())
		}
	}
	for _, k := range order {
		if applied[k] {
			continue
		}
		st.Pending = append(st.Pending, k)
		if e, ok := failures[k.String()]; ok {
			st.Failed = append(st.Failed, e)
		}
	}
	return st, nil
}

// History returns applied migrations, most recent first.
func (r *Runner) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	return r.rec.history(ctx, filter)
}

// Logs returns migration activity, most recent first.
func (r *Runner) Logs(ctx context.Context, limit int) ([]LogEntry, error) {
	return r.rec.logs(ctx, limit)
}

// ExpectedState replays the applied migrations and returns the schema the
// database should have.
func (r *Runner) ExpectedState(ctx context.Context) (*schema.State, error) {
	records, err := r.rec.applied(ctx)
	if err != nil {
		return nil, err
	}
	graph, err := planner.NewGraph(r.reg)
	if err != nil {
		return nil, err
	}
	return planner.State(graph, appliedSet(records))
}

func (r *Runner) logActivity(ctx context.Context, log *zap.Logger, runID, level, message, migrationName, details string) {
	if err := r.rec.log(ctx, runID, level, message, migrationName, details); err != nil {
		log.Warn("Failed to write migration log", zap.Error(err))
	}
}

// inTx executes stmts and then record inside one transaction.
func (r *Runner) inTx(ctx context.Context, stmts []string, record func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "statement %d: %s", i+1, stmt)
		}
	}
	if err := record(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

func appliedSet(records []Record) map[migration.Key]bool {
	out := make(map[migration.Key]bool, len(records))
	for _, rec := range records {
		out[rec.Key()] = true
	}
	return out
}
