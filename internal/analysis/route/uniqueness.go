// Package route holds analyzers that work on whole activity routes.
package route

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/jengzang/run-uniqueness/internal/analysis"
	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

// SkillName is the registry name of the uniqueness analyzer
const SkillName = "route_uniqueness"

// UniquenessAnalyzer scores stored activities against every stored route and
// persists the results.
//
// In incremental mode only activities without a stored result are scored;
// the reference corpus always holds every stored activity. Activities that
// cannot be scored or saved do not stop the others, but the run then returns
// their errors and the task is marked failed.
type UniquenessAnalyzer struct {
	*analysis.IncrementalAnalyzer
	activities *repository.ActivityRepository
	cfg        uniqueness.Config
}

// NewUniquenessAnalyzer creates a new route uniqueness analyzer
func NewUniquenessAnalyzer(db *sql.DB, cfg uniqueness.Config) analysis.Analyzer {
	return &UniquenessAnalyzer{
		IncrementalAnalyzer: analysis.NewIncrementalAnalyzer(db, SkillName, analysis.DefaultBatchSize),
		activities:          repository.NewActivityRepository(db),
		cfg:                 cfg,
	}
}

// Analyze performs the uniqueness analysis
func (a *UniquenessAnalyzer) Analyze(ctx context.Context, taskID int64, mode string) error {
	log := logging.With().Str("analyzer", SkillName).Int64("task_id", taskID).Str("mode", mode).Logger()
	log.Info().Msg("starting analysis")
	started := time.Now()

	if err := a.MarkTaskAsRunning(ctx, taskID); err != nil {
		return fmt.Errorf("failed to mark task as running: %w", err)
	}

	scorer, err := uniqueness.NewScorer(a.cfg)
	if err != nil {
		return err
	}

	all, err := a.activities.List(ctx, models.ActivityFilter{})
	if err != nil {
		return err
	}

	targets := all
	if mode != analysis.ModeFull {
		targets, err = a.activities.List(ctx, models.ActivityFilter{WithoutUniqueness: true})
		if err != nil {
			return err
		}
	}

	corpus := scorer.BuildCorpus(all)
	log.Info().Int("activities", len(all)).Int("targets", len(targets)).Int("corpus", corpus.Len()).Msg("corpus built")

	summary := models.AnalysisResultSummary{
		Corpus:    corpus.Len(),
		Algorithm: scorer.Engine().Name(),
	}

	// Batch-relative modes must see every target at once
	batchSize := a.BatchSize
	if scorer.BatchRelative() {
		batchSize = len(targets)
	}

	// Batches run sequentially, so errs needs no lock
	var errs []error
	failed, err := a.ProcessInBatches(ctx, taskID, len(targets), batchSize, func(ctx context.Context, start, end int) (int, error) {
		results, err := scorer.ScoreBatch(ctx, targets[start:end], corpus)
		if err != nil {
			errs = append(errs, fmt.Errorf("activities %d-%d: %w", start, end, err))
			return 0, err
		}

		batchFailed := 0
		for _, r := range results {
			if r.Err != nil {
				log.Warn().Err(r.Err).Str("activity_id", r.ActivityID).Msg("failed to score activity")
				errs = append(errs, fmt.Errorf("activity %s: %w", r.ActivityID, r.Err))
				batchFailed++
				continue
			}
			if err := a.save(ctx, scorer, r); err != nil {
				log.Warn().Err(err).Str("activity_id", r.ActivityID).Msg("failed to save uniqueness")
				errs = append(errs, fmt.Errorf("activity %s: %w", r.ActivityID, err))
				batchFailed++
				continue
			}
			if r.Score != nil {
				summary.Scored++
			} else {
				summary.Unscored++
			}
		}
		return batchFailed, nil
	})
	if err != nil {
		return err
	}
	summary.Skipped = failed

	if len(errs) > 0 {
		log.Warn().
			Int("scored", summary.Scored).
			Int("unscored", summary.Unscored).
			Int("skipped", summary.Skipped).
			Msg("analysis finished with failures")
		return fmt.Errorf("%d of %d activities could not be scored: %w", failed, len(targets), errors.Join(errs...))
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize result summary: %w", err)
	}
	if err := a.MarkTaskAsCompleted(ctx, taskID, string(summaryJSON)); err != nil {
		return fmt.Errorf("failed to mark task as completed: %w", err)
	}

	log.Info().
		Int("scored", summary.Scored).
		Int("unscored", summary.Unscored).
		Int("skipped", summary.Skipped).
		Dur("elapsed", time.Since(started)).
		Msg("analysis completed")
	return nil
}

func (a *UniquenessAnalyzer) save(ctx context.Context, scorer *uniqueness.Scorer, r uniqueness.Result) error {
	u := r.Uniqueness()
	return a.activities.SaveUniqueness(ctx, &models.StoredUniqueness{
		ActivityID:   r.ActivityID,
		Score:        u.Score,
		RawDistance:  r.RawDistance,
		Description:  u.Description,
		SimilarDates: u.SimilarDates,
		Algorithm:    scorer.Engine().Name(),
	})
}

func init() {
	analysis.RegisterAnalyzer(SkillName, NewUniquenessAnalyzer)
}
