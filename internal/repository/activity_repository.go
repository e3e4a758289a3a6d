package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/jengzang/run-uniqueness/internal/database"
	"github.com/jengzang/run-uniqueness/internal/models"
)

// ActivityRepository handles database operations for activities and their
// uniqueness results
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Upsert inserts or replaces activities in a single transaction.
// Activities without an id are skipped; the number written is returned.
func (r *ActivityRepository) Upsert(ctx context.Context, activities []models.Activity) (int, error) {
	query := `
		INSERT INTO activities (
			id, name, type, start_date, start_date_local, distance,
			moving_time, summary_polyline, polyline
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			summary_polyline = excluded.summary_polyline,
			polyline = excluded.polyline,
			updated_at = CURRENT_TIMESTAMP
	`

	written := 0
	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare activity upsert: %w", err)
		}
		defer stmt.Close()

		for i := range activities {
			a := &activities[i]
			if a.ID == "" {
				continue
			}

			var summary, full sql.NullString
			if a.Map != nil {
				summary = nullString(a.Map.SummaryPolyline)
				full = nullString(a.Map.Polyline)
			}

			if _, err := stmt.ExecContext(ctx,
				a.ID.String(),
				a.Name,
				a.Type,
				a.StartDate,
				a.StartDateLocal,
				a.Distance,
				a.MovingTime,
				summary,
				full,
			); err != nil {
				return fmt.Errorf("failed to upsert activity %s: %w", a.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// GetByID retrieves an activity by ID
func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*models.Activity, error) {
	query := `
		SELECT id, name, type, start_date, start_date_local, distance,
			   moving_time, summary_polyline, polyline
		FROM activities
		WHERE id = ?
	`

	activity, err := scanActivity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	return activity, nil
}

// List retrieves activities ordered by start date, then id
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	query := `
		SELECT a.id, a.name, a.type, a.start_date, a.start_date_local, a.distance,
			   a.moving_time, a.summary_polyline, a.polyline
		FROM activities a
		WHERE 1=1
	`

	args := []interface{}{}
	if filter.WithoutUniqueness {
		query += " AND NOT EXISTS (SELECT 1 FROM activity_uniqueness u WHERE u.activity_id = a.id)"
	}
	if filter.Type != "" {
		query += " AND a.type = ?"
		args = append(args, filter.Type)
	}

	query += " ORDER BY a.start_date, a.id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []models.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, *activity)
	}

	return activities, rows.Err()
}

// Count returns the number of activities matching the filter
func (r *ActivityRepository) Count(ctx context.Context, filter models.ActivityFilter) (int, error) {
	query := "SELECT COUNT(*) FROM activities a WHERE 1=1"
	args := []interface{}{}
	if filter.WithoutUniqueness {
		query += " AND NOT EXISTS (SELECT 1 FROM activity_uniqueness u WHERE u.activity_id = a.id)"
	}
	if filter.Type != "" {
		query += " AND a.type = ?"
		args = append(args, filter.Type)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

// SaveUniqueness stores or replaces the uniqueness result of an activity
func (r *ActivityRepository) SaveUniqueness(ctx context.Context, u *models.StoredUniqueness) error {
	similar := u.SimilarDates
	if similar == nil {
		similar = []string{}
	}
	similarJSON, err := json.Marshal(similar)
	if err != nil {
		return fmt.Errorf("failed to serialize similar dates: %w", err)
	}

	if u.ComputedAt.IsZero() {
		u.ComputedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_uniqueness (
			activity_id, score, raw_distance, description,
			similar_dates_json, algorithm, computed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			score = excluded.score,
			raw_distance = excluded.raw_distance,
			description = excluded.description,
			similar_dates_json = excluded.similar_dates_json,
			algorithm = excluded.algorithm,
			computed_at = excluded.computed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		u.ActivityID,
		nullFloat(u.Score),
		nullFloat(u.RawDistance),
		nullString(u.Description),
		string(similarJSON),
		u.Algorithm,
		u.ComputedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save uniqueness for %s: %w", u.ActivityID, err)
	}

	return nil
}

// GetUniqueness retrieves the stored uniqueness result of an activity
func (r *ActivityRepository) GetUniqueness(ctx context.Context, activityID string) (*models.StoredUniqueness, error) {
	query := `
		SELECT activity_id, score, raw_distance, description,
			   similar_dates_json, algorithm, computed_at
		FROM activity_uniqueness
		WHERE activity_id = ?
	`

	var (
		u           models.StoredUniqueness
		score       sql.NullFloat64
		rawDistance sql.NullFloat64
		description sql.NullString
		similarJSON string
	)
	err := r.db.QueryRowContext(ctx, query, activityID).Scan(
		&u.ActivityID,
		&score,
		&rawDistance,
		&description,
		&similarJSON,
		&u.Algorithm,
		&u.ComputedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("uniqueness for activity %s: %w", activityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get uniqueness: %w", err)
	}

	if score.Valid {
		u.Score = &score.Float64
	}
	if rawDistance.Valid {
		u.RawDistance = &rawDistance.Float64
	}
	if description.Valid {
		u.Description = &description.String
	}
	if similarJSON != "" {
		if err := json.Unmarshal([]byte(similarJSON), &u.SimilarDates); err != nil {
			return nil, fmt.Errorf("failed to parse similar dates: %w", err)
		}
	}
	if len(u.SimilarDates) == 0 {
		u.SimilarDates = nil
	}

	return &u, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanActivity(row rowScanner) (*models.Activity, error) {
	var (
		a       models.Activity
		id      string
		summary sql.NullString
		full    sql.NullString
	)
	err := row.Scan(
		&id,
		&a.Name,
		&a.Type,
		&a.StartDate,
		&a.StartDateLocal,
		&a.Distance,
		&a.MovingTime,
		&summary,
		&full,
	)
	if err != nil {
		return nil, err
	}

	a.ID = models.ActivityID(id)
	if summary.Valid || full.Valid {
		a.Map = &models.ActivityMap{}
		if summary.Valid {
			a.Map.SummaryPolyline = &summary.String
		}
		if full.Valid {
			a.Map.Polyline = &full.String
		}
	}

	return &a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
