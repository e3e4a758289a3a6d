package analysis

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/run-uniqueness/internal/logging"
)

// DefaultBatchSize is used when an analyzer is created with a non-positive batch size
const DefaultBatchSize = 100

// BatchFunc processes items [start, end) and returns how many of them failed
type BatchFunc func(ctx context.Context, start, end int) (failed int, err error)

// IncrementalAnalyzer provides base functionality for incremental analysis
type IncrementalAnalyzer struct {
	*BaseAnalyzer
	BatchSize int // Number of records to process in each batch
}

// NewIncrementalAnalyzer creates a new incremental analyzer
func NewIncrementalAnalyzer(db *sql.DB, name string, batchSize int) *IncrementalAnalyzer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &IncrementalAnalyzer{
		BaseAnalyzer: NewBaseAnalyzer(db, name),
		BatchSize:    batchSize,
	}
}

// ProcessInBatches runs fn over total items in batches of batchSize (the
// analyzer's BatchSize when batchSize <= 0), recording progress after each
// batch. A batch that returns an error counts every item in it as failed and
// processing continues. The total number of failed items is returned.
func (a *IncrementalAnalyzer) ProcessInBatches(ctx context.Context, taskID int64, total, batchSize int, fn BatchFunc) (int, error) {
	if batchSize <= 0 {
		batchSize = a.BatchSize
	}

	if err := a.UpdateTaskProgress(ctx, taskID, 0, total, 0); err != nil {
		return 0, fmt.Errorf("failed to update progress: %w", err)
	}

	failed := 0
	for start := 0; start < total; start += batchSize {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return failed, ctx.Err()
		default:
		}

		end := min(start+batchSize, total)
		batchFailed, err := fn(ctx, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return failed, ctx.Err()
			}
			logging.Warn().Err(err).Str("analyzer", a.Name).Int64("task_id", taskID).
				Int("start", start).Int("end", end).Msg("batch failed")
			batchFailed = end - start
		}
		failed += batchFailed

		if err := a.UpdateTaskProgress(ctx, taskID, end, total, failed); err != nil {
			return failed, fmt.Errorf("failed to update progress: %w", err)
		}
	}

	return failed, nil
}
