package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jengzang/run-uniqueness/internal/models"
)

// StatsRepository handles database operations for statistics
type StatsRepository struct {
	db *sql.DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountActivities returns the number of stored activities
func (r *StatsRepository) CountActivities(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return n, nil
}

// ListScores returns every stored uniqueness result, optionally restricted to
// one algorithm
func (r *StatsRepository) ListScores(ctx context.Context, algorithm string) ([]models.ScoreRow, error) {
	query := `SELECT score, description, algorithm FROM activity_uniqueness`
	var args []interface{}
	if algorithm != "" {
		query += ` WHERE algorithm = ?`
		args = append(args, algorithm)
	}
	query += ` ORDER BY activity_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	var result []models.ScoreRow
	for rows.Next() {
		var (
			score       sql.NullFloat64
			description sql.NullString
			row         models.ScoreRow
		)
		if err := rows.Scan(&score, &description, &row.Algorithm); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		if score.Valid {
			row.Score = &score.Float64
		}
		if description.Valid {
			row.Description = &description.String
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
