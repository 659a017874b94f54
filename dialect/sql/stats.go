package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/syssam/strata/dialect"
)

// QueryStats holds query execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing queries.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of queries exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of query errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgQueryDuration returns the average query duration.
func (s StatsSnapshot) AvgQueryDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgQueryDuration(),
		s.SlowQueries, s.Errors,
	)
}

// SlowQueryHook is a function called when a slow query is detected.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsQuerier wraps an ExecQuerier with query statistics collection.
// The engine wraps the caller's transaction with it for the lifetime of one
// batch.
type StatsQuerier struct {
	dialect.ExecQuerier
	stats         *QueryStats
	slowThreshold time.Duration
	slowHook      SlowQueryHook
}

// StatsOption configures the StatsQuerier.
type StatsOption func(*StatsQuerier)

// WithSlowThreshold sets the threshold for slow query detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsQuerier) {
		s.slowThreshold = d
	}
}

// WithSlowQueryHook sets a callback function for slow queries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsQuerier) {
		s.slowHook = hook
	}
}

// WithSlowQueryLog logs slow queries to the given logger.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow query detected", "duration", duration, "query", query, "args", args)
	})
}

// NewStatsQuerier wraps eq and records into stats. A nil stats allocates a
// fresh QueryStats.
func NewStatsQuerier(eq dialect.ExecQuerier, stats *QueryStats, opts ...StatsOption) *StatsQuerier {
	if stats == nil {
		stats = &QueryStats{}
	}
	s := &StatsQuerier{
		ExecQuerier:   eq,
		stats:         stats,
		slowThreshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the underlying QueryStats for reading statistics.
func (s *StatsQuerier) QueryStats() *QueryStats {
	return s.stats
}

// Query executes a query and records statistics.
func (s *StatsQuerier) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := s.ExecQuerier.Query(ctx, query, args, v)
	s.record(ctx, query, args, start, err, true)
	return err
}

// Exec executes a statement and records statistics.
func (s *StatsQuerier) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := s.ExecQuerier.Exec(ctx, query, args, v)
	s.record(ctx, query, args, start, err, false)
	return err
}

func (s *StatsQuerier) record(ctx context.Context, query string, args any, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		s.stats.TotalQueries.Add(1)
	} else {
		s.stats.TotalExecs.Add(1)
	}
	s.stats.TotalDuration.Add(int64(duration))
	if err != nil {
		s.stats.Errors.Add(1)
	}
	if duration > s.slowThreshold {
		s.stats.SlowQueries.Add(1)
		if s.slowHook != nil {
			argsSlice, _ := args.([]any)
			s.slowHook(ctx, query, argsSlice, duration)
		}
	}
}

// DebugQuerier wraps an ExecQuerier with debug logging of every statement.
type DebugQuerier struct {
	dialect.ExecQuerier
	logger *slog.Logger
}

// NewDebugQuerier wraps eq and logs every statement at debug level.
func NewDebugQuerier(eq dialect.ExecQuerier, logger *slog.Logger) *DebugQuerier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugQuerier{ExecQuerier: eq, logger: logger}
}

// Query executes a query and logs it.
func (d *DebugQuerier) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "query", "sql", query, "args", args)
	return d.ExecQuerier.Query(ctx, query, args, v)
}

// Exec executes a statement and logs it.
func (d *DebugQuerier) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "exec", "sql", query, "args", args)
	return d.ExecQuerier.Exec(ctx, query, args, v)
}

// Ensure interfaces are implemented.
var (
	_ dialect.ExecQuerier = (*StatsQuerier)(nil)
	_ dialect.ExecQuerier = (*DebugQuerier)(nil)
)
