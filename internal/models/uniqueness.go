package models

import "time"

// Uniqueness is the object merged into an activity record under "uniqueness".
// Score and Description are null when no score could be computed.
type Uniqueness struct {
	Score        *float64 `json:"score"`
	Description  *string  `json:"description"`
	SimilarDates []string `json:"similar_dates,omitempty"`
}

// HasScore reports whether a score was computed
func (u Uniqueness) HasScore() bool {
	return u.Score != nil
}

// StoredUniqueness is a uniqueness result persisted in the database
type StoredUniqueness struct {
	ActivityID   string    `json:"activity_id" db:"activity_id"`
	Score        *float64  `json:"score" db:"score"`
	RawDistance  *float64  `json:"raw_distance,omitempty" db:"raw_distance"`
	Description  *string   `json:"description" db:"description"`
	SimilarDates []string  `json:"similar_dates,omitempty" db:"similar_dates_json"`
	Algorithm    string    `json:"algorithm" db:"algorithm"`
	ComputedAt   time.Time `json:"computed_at" db:"computed_at"`
}

// Uniqueness converts the stored row to the record payload form
func (s *StoredUniqueness) Uniqueness() Uniqueness {
	return Uniqueness{
		Score:        s.Score,
		Description:  s.Description,
		SimilarDates: s.SimilarDates,
	}
}
