package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

// ErrNoActivity is returned when a request carries no activity
var ErrNoActivity = errors.New("no activity given")

// ActivityStore is the persistent activity and result store
type ActivityStore interface {
	Upsert(ctx context.Context, activities []models.Activity) (int, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error)
	GetUniqueness(ctx context.Context, activityID string) (*models.StoredUniqueness, error)
}

// RecordStore is a set of activity records that receive uniqueness results
// in place, such as a directory of JSON files
type RecordStore interface {
	List(ctx context.Context) ([]models.Activity, error)
	SaveUniqueness(ctx context.Context, activityID string, u models.Uniqueness) error
}

// UniquenessService handles route uniqueness business logic
type UniquenessService struct {
	store  ActivityStore
	scorer *uniqueness.Scorer
}

// NewUniquenessService creates a new uniqueness service. store may be nil
// when only record stores are scored.
func NewUniquenessService(store ActivityStore, cfg uniqueness.Config) (*UniquenessService, error) {
	scorer, err := uniqueness.NewScorer(cfg)
	if err != nil {
		return nil, err
	}
	return &UniquenessService{store: store, scorer: scorer}, nil
}

// Scorer returns the configured scorer
func (s *UniquenessService) Scorer() *uniqueness.Scorer {
	return s.scorer
}

// ImportActivities stores activities, replacing existing ones with the same id
func (s *UniquenessService) ImportActivities(ctx context.Context, activities []models.Activity) (int, error) {
	n, err := s.store.Upsert(ctx, activities)
	if err != nil {
		return 0, fmt.Errorf("failed to import activities: %w", err)
	}
	logging.Info().Int("received", len(activities)).Int("imported", n).Msg("activities imported")
	return n, nil
}

// GetUniqueness returns the stored result of an activity
func (s *UniquenessService) GetUniqueness(ctx context.Context, activityID string) (*models.StoredUniqueness, error) {
	return s.store.GetUniqueness(ctx, activityID)
}

// ScoreOne scores a single activity against every stored route. A stored
// route with the same id as the activity is not compared with it.
//
// Under batch-relative settings the activity is scored together with every
// other stored activity and its result is taken from that batch.
func (s *UniquenessService) ScoreOne(ctx context.Context, activity *models.Activity) (*uniqueness.Result, error) {
	if activity == nil {
		return nil, ErrNoActivity
	}

	stored, err := s.store.List(ctx, models.ActivityFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load reference activities: %w", err)
	}
	corpus := s.scorer.BuildCorpus(stored)

	if !s.scorer.BatchRelative() {
		result, err := s.scorer.ScoreActivity(activity, corpus)
		if err != nil {
			return nil, err
		}
		return &result, nil
	}

	batch := make([]models.Activity, 0, len(stored)+1)
	for _, a := range stored {
		if activity.ID != "" && a.ID == activity.ID {
			continue
		}
		batch = append(batch, a)
	}
	batch = append(batch, *activity)

	results, err := s.scorer.ScoreBatch(ctx, batch, corpus)
	if err != nil {
		return nil, err
	}
	result := results[len(results)-1]
	if result.Err != nil {
		return nil, result.Err
	}
	return &result, nil
}

// ScoreRecords scores every record of the store and writes the result back
// into it. The reference corpus is history when given, otherwise the records
// themselves. Records that fail to score are left unchanged; every other
// record is still written, and their errors are returned joined together
// along with the summary.
func (s *UniquenessService) ScoreRecords(ctx context.Context, records RecordStore, history []models.Activity) (*models.AnalysisResultSummary, error) {
	targets, err := records.List(ctx)
	if err != nil {
		return nil, err
	}

	reference := history
	if reference == nil {
		reference = targets
	}
	corpus := s.scorer.BuildCorpus(reference)
	logging.Info().Int("records", len(targets)).Int("corpus", corpus.Len()).Str("algorithm", s.scorer.Engine().Name()).Msg("scoring records")

	results, err := s.scorer.ScoreBatch(ctx, targets, corpus)
	if err != nil {
		return nil, err
	}

	summary := &models.AnalysisResultSummary{
		Corpus:    corpus.Len(),
		Algorithm: s.scorer.Engine().Name(),
	}
	var failed []error
	for _, r := range results {
		if r.Err != nil {
			logging.Warn().Err(r.Err).Str("activity_id", r.ActivityID).Msg("failed to score record")
			summary.Skipped++
			failed = append(failed, fmt.Errorf("record %s: %w", r.ActivityID, r.Err))
			continue
		}
		u := r.Uniqueness()
		if err := records.SaveUniqueness(ctx, r.ActivityID, u); err != nil {
			return summary, fmt.Errorf("failed to save uniqueness for %s: %w", r.ActivityID, err)
		}

		event := logging.Debug().Str("activity_id", r.ActivityID)
		if u.HasScore() {
			summary.Scored++
			event = event.Float64("score", *r.Score)
			if r.Description != nil {
				event = event.Str("description", *r.Description)
			}
		} else {
			summary.Unscored++
		}
		event.Msg("record scored")
	}

	if len(failed) > 0 {
		return summary, fmt.Errorf("%d of %d records could not be scored: %w", len(failed), len(results), errors.Join(failed...))
	}
	return summary, nil
}
