package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/stats"
)

// StatsService handles business logic for statistics
type StatsService struct {
	statsRepo *repository.StatsRepository
}

// NewStatsService creates a new stats service
func NewStatsService(statsRepo *repository.StatsRepository) *StatsService {
	return &StatsService{
		statsRepo: statsRepo,
	}
}

// GetUniquenessStatistics summarizes the stored results. algorithm filters by
// engine name when not empty.
func (s *StatsService) GetUniquenessStatistics(ctx context.Context, algorithm string) (*models.UniquenessStatistics, error) {
	activities, err := s.statsRepo.CountActivities(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.statsRepo.ListScores(ctx, algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to get uniqueness statistics: %w", err)
	}

	result := summarizeScores(rows)
	result.Activities = activities
	result.GeneratedAt = time.Now().Format(time.RFC3339)
	return result, nil
}

func summarizeScores(rows []models.ScoreRow) *models.UniquenessStatistics {
	result := &models.UniquenessStatistics{
		Results:      len(rows),
		Descriptions: make(map[string]int),
		Algorithms:   make(map[string]int),
	}

	scores := make([]float64, 0, len(rows))
	for _, row := range rows {
		result.Algorithms[row.Algorithm]++
		if row.Description != nil {
			result.Descriptions[*row.Description]++
		}
		if row.Score != nil {
			scores = append(scores, *row.Score)
		}
	}

	result.Scored = len(scores)
	if len(scores) == 0 {
		return result
	}

	value := func(v float64) *float64 { return &v }
	result.Mean = value(stats.Mean(scores))
	result.Min = value(stats.Min(scores))
	result.P10 = value(stats.Percentile(scores, 10))
	result.Median = value(stats.Median(scores))
	result.P90 = value(stats.Percentile(scores, 90))
	result.Max = value(stats.Max(scores))
	return result
}
