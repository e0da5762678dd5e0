package safety

import (
	"context"

	appErrors "github.com/brianlane/bizblasts-insights/internal/errors"
	"github.com/brianlane/bizblasts-insights/internal/gateway"
	"github.com/brianlane/bizblasts-insights/internal/logging"
)

// RunFunc executes a gateway query for a spec and returns the matching rows.
type RunFunc[T any] func(ctx context.Context, spec gateway.QuerySpec) ([]T, error)

// BatchFunc consumes one batch of a paginated result.
type BatchFunc[T any] func(batch []T) error

// QueryBudget enforces a hard cap on the number of records an analytics
// query may load. It bounds potentially unbounded work by row count rather
// than by timeout; wall-clock cancellation is the caller's concern via ctx.
type QueryBudget struct {
	maxRecords int
	logger     logging.Logger
}

// NewQueryBudget creates a budget with the given record cap.
func NewQueryBudget(maxRecords int, logger logging.Logger) *QueryBudget {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &QueryBudget{maxRecords: maxRecords, logger: logger}
}

// MaxRecords returns the configured cap.
func (b *QueryBudget) MaxRecords() int {
	return b.maxRecords
}

// Enforce runs the query with a limit of maxRecords+1. A result set larger
// than the budget emits a monitoring event and returns BudgetExceededError
// with a range-narrowing suggestion; exactly maxRecords rows is within
// budget. Results are never silently truncated.
func Enforce[T any](ctx context.Context, b *QueryBudget, name string, spec gateway.QuerySpec, run RunFunc[T]) ([]T, error) {
	rows, err := run(ctx, spec.WithLimit(b.maxRecords+1))
	if err != nil {
		return nil, err
	}
	if len(rows) > b.maxRecords {
		b.logger.WarnContext(ctx, "query budget exceeded",
			"query", name,
			"tenant_id", spec.TenantID,
			"max_records", b.maxRecords,
		)
		return nil, appErrors.NewBudgetExceeded(name, b.maxRecords)
	}
	return rows, nil
}

// WithinBudget probes whether the query fits the budget without raising.
// Query failures count as out of budget.
func WithinBudget[T any](ctx context.Context, b *QueryBudget, spec gateway.QuerySpec, run RunFunc[T]) bool {
	rows, err := run(ctx, spec.WithLimit(b.maxRecords+1))
	if err != nil {
		return false
	}
	return len(rows) <= b.maxRecords
}

// Paginate feeds the query result to fn in batches. A result within budget
// is delivered as a single batch. Otherwise it pages by offset until an
// empty batch is returned or the offset exceeds the budget cap; the latter
// is a known lossy fallback, logged as a warning, not a correctness
// guarantee.
func Paginate[T any](ctx context.Context, b *QueryBudget, name string, spec gateway.QuerySpec, batchSize int, run RunFunc[T], fn BatchFunc[T]) error {
	all, err := run(ctx, spec.WithLimit(b.maxRecords+1))
	if err != nil {
		return err
	}
	if len(all) <= b.maxRecords {
		if len(all) == 0 {
			return nil
		}
		return fn(all)
	}

	for offset := 0; ; offset += batchSize {
		if offset > b.maxRecords {
			b.logger.WarnContext(ctx, "pagination stopped at budget cap; result truncated",
				"query", name,
				"tenant_id", spec.TenantID,
				"max_records", b.maxRecords,
			)
			return nil
		}

		batch, err := run(ctx, spec.WithLimit(batchSize).WithOffset(offset))
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
}
