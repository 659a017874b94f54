// Package engine applies batches of statements to a relational backend.
//
// A batch runs through a fixed sequence of phases inside the caller's
// transaction. An optional privacy policy is evaluated against every
// statement before the batch is planned. The check phases come first, and
// nothing is written unless they all pass:
//
//  1. existence checks
//  2. remove-reference consistency check
//  3. add-reference consistency check
//  4. identifying-attribute uniqueness checks
//
// Then the writes:
//
//  5. remove references
//  6. delete, holders before the rows they must reference
//  7. insert, referenced rows first, with mandatory references inline
//  8. update
//  9. merged remove/add pairs, one update per cell
//  10. remaining add references
//
// The engine does not roll back. A failed batch leaves the transaction to
// the caller, or to ApplyTx.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/config"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sql/sqlgraph"
	"github.com/syssam/strata/privacy"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/statement"
)

// Phase names a step of Apply.
type Phase string

// Phases, in execution order.
const (
	PhasePolicy        Phase = "policy"
	PhasePlan          Phase = "plan"
	PhaseExists        Phase = "exists"
	PhaseRemoveCheck   Phase = "remove-check"
	PhaseAddCheck      Phase = "add-check"
	PhaseUnique        Phase = "unique"
	PhaseRemove        Phase = "remove"
	PhaseDelete        Phase = "delete"
	PhaseInsert        Phase = "insert"
	PhaseUpdate        Phase = "update"
	PhaseMerge         Phase = "merge"
	PhaseAddReferences Phase = "add"
)

// PhaseError reports the phase a batch was aborted in.
type PhaseError struct {
	Phase Phase
	Err   error
}

// Error returns the error string.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// FailedPhase returns the phase err was raised in, or "" if err did not come
// from Apply.
func FailedPhase(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}

// Report summarizes an applied batch.
type Report struct {
	Statements int
	// Checked counts the passed existence checks.
	Checked int
	// Unique counts the passed uniqueness checks.
	Unique   int
	Removed  int
	Deleted  int
	Inserted int
	// Inlined counts the references written by inserts.
	Inlined int
	Updated int
	// Merged counts the cells written once for a remove/add pair.
	Merged int
	Added  int
	// Queries holds the statistics of the statements sent for the batch.
	Queries  sql.StatsSnapshot
	Duration time.Duration
}

// Engine applies statement batches. It holds no per-batch state and is
// safe for concurrent use; each batch must run in its own transaction.
type Engine struct {
	graph         *sqlgraph.Graph
	provider      schema.Provider
	logger        *slog.Logger
	failFast      bool
	debug         bool
	slowThreshold time.Duration
	graphOpts     []sqlgraph.Option
	policy        privacy.Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithFailFast stops each check phase at its first validation error.
func WithFailFast(b bool) Option {
	return func(e *Engine) {
		e.failFast = b
	}
}

// WithDebug logs every SQL statement at debug level.
func WithDebug() Option {
	return func(e *Engine) {
		e.debug = true
	}
}

// WithSlowThreshold logs statements running longer than d. Defaults to
// 100ms.
func WithSlowThreshold(d time.Duration) Option {
	return func(e *Engine) {
		e.slowThreshold = d
	}
}

// WithPolicy evaluates rule against every statement of a batch before it
// is planned.
func WithPolicy(rule privacy.Rule) Option {
	return func(e *Engine) {
		e.policy = rule
	}
}

// WithGraphOptions configures the underlying sqlgraph.Graph.
func WithGraphOptions(opts ...sqlgraph.Option) Option {
	return func(e *Engine) {
		e.graphOpts = append(e.graphOpts, opts...)
	}
}

// New returns an engine issuing SQL of dialect d for the tables described
// by p.
func New(d string, p schema.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider:      p,
		logger:        slog.Default(),
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.graph = sqlgraph.New(d, p, e.graphOpts...)
	return e
}

// FromConfig returns an engine configured by cfg. Options are applied after
// the configuration.
func FromConfig(cfg *config.Config, p schema.Provider, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids, err := cfg.IDs()
	if err != nil {
		return nil, err
	}
	base := []Option{
		WithFailFast(cfg.FailFast),
		WithGraphOptions(sqlgraph.WithIDProvider(ids)),
	}
	if cfg.SlowThreshold > 0 {
		base = append(base, WithSlowThreshold(cfg.SlowThreshold))
	}
	if cfg.Debug {
		base = append(base, WithDebug())
	}
	return New(cfg.Dialect, p, append(base, opts...)...), nil
}

// Graph returns the executor of the engine.
func (e *Engine) Graph() *sqlgraph.Graph { return e.graph }

// run is the state of one batch.
type run struct {
	*Engine
	*plan
	eq     dialect.ExecQuerier
	report *Report
}

// Apply runs the batch against tx. On error nothing is rolled back; the
// error matches strata.ErrValidation when the batch was rejected and
// strata.ErrInternal when it was malformed or the engine failed, and
// FailedPhase names the phase it was raised in.
func (e *Engine) Apply(ctx context.Context, tx dialect.ExecQuerier, b statement.Batch) (*Report, error) {
	start := time.Now()
	if e.policy != nil {
		if err := privacy.EvalBatch(ctx, e.policy, b); err != nil {
			e.logger.WarnContext(ctx, "strata: batch denied", "phase", PhasePolicy, "error", err)
			return nil, &PhaseError{Phase: PhasePolicy, Err: err}
		}
	}
	p, err := newPlan(e.graph, b)
	if err != nil {
		e.logger.WarnContext(ctx, "strata: batch rejected", "phase", PhasePlan, "error", err)
		return nil, &PhaseError{Phase: PhasePlan, Err: err}
	}
	stats := &sql.QueryStats{}
	eq := tx
	if e.debug {
		eq = sql.NewDebugQuerier(eq, e.logger)
	}
	r := &run{
		Engine: e,
		plan:   p,
		eq:     sql.NewStatsQuerier(eq, stats, sql.WithSlowThreshold(e.slowThreshold), sql.WithSlowQueryLog(e.logger)),
		report: &Report{Statements: len(b)},
	}
	for _, ph := range []struct {
		phase Phase
		run   func(context.Context) error
	}{
		{PhaseExists, r.checkExists},
		{PhaseRemoveCheck, r.checkRemoves},
		{PhaseAddCheck, r.checkAdds},
		{PhaseUnique, r.checkUnique},
		{PhaseRemove, r.runRemoves},
		{PhaseDelete, r.runDeletes},
		{PhaseInsert, r.runInserts},
		{PhaseUpdate, r.runUpdates},
		{PhaseMerge, r.runMerges},
		{PhaseAddReferences, r.runAdds},
	} {
		e.logger.DebugContext(ctx, "strata: phase", "phase", ph.phase, "batch", len(b))
		if err := ph.run(ctx); err != nil {
			level := slog.LevelWarn
			if strata.IsFatal(err) {
				level = slog.LevelError
			}
			e.logger.Log(ctx, level, "strata: batch aborted", "phase", ph.phase, "error", err)
			return nil, &PhaseError{Phase: ph.phase, Err: err}
		}
	}
	r.report.Queries = stats.Stats()
	r.report.Duration = time.Since(start)
	e.logger.DebugContext(ctx, "strata: batch applied", "batch", len(b), "duration", r.report.Duration, "queries", r.report.Queries.String())
	return r.report, nil
}

// ApplyTx runs the batch in a new transaction of drv, committing on
// success and rolling back on error. A failed rollback is reported with a
// *strata.RollbackError joined to the error of the batch.
func (e *Engine) ApplyTx(ctx context.Context, drv dialect.Driver, b statement.Batch) (*Report, error) {
	tx, err := drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: starting a transaction: %w", err)
	}
	report, err := e.Apply(ctx, tx, b)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("engine: committing transaction: %w", err)
	}
	return report, nil
}

// rollback calls tx.Rollback and joins the rollback error, if any, to err.
func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		return errors.Join(err, &strata.RollbackError{Err: rerr})
	}
	return err
}

func (r *run) runRemoves(ctx context.Context) error {
	for _, l := range r.removes {
		if l.dup || l.merged {
			continue
		}
		if err := r.graph.RemoveReference(ctx, r.eq, l.edges[0]); err != nil {
			return err
		}
		r.report.Removed++
	}
	return nil
}

func (r *run) runDeletes(ctx context.Context) error {
	for _, i := range r.deleteOrder {
		if err := r.graph.Delete(ctx, r.eq, r.deletes[i]); err != nil {
			return err
		}
		r.report.Deleted++
	}
	return nil
}

func (r *run) runInserts(ctx context.Context) error {
	for _, i := range r.insertOrder {
		s := r.inserts[i]
		inline := r.inline[s.Instance.ID]
		if err := r.graph.Insert(ctx, r.eq, s, inline); err != nil {
			return err
		}
		r.report.Inserted++
		r.report.Inlined += len(inline)
	}
	return nil
}

func (r *run) runUpdates(ctx context.Context) error {
	for _, s := range r.updates {
		if err := r.graph.Update(ctx, r.eq, s); err != nil {
			return err
		}
		r.report.Updated++
	}
	return nil
}

func (r *run) runAdds(ctx context.Context) error {
	for _, l := range r.adds {
		if l.dup || l.merged || l.inlined {
			continue
		}
		if err := r.graph.AddReference(ctx, r.eq, l.edges[0]); err != nil {
			return err
		}
		r.report.Added++
	}
	return nil
}
