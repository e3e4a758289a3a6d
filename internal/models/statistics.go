package models

// UniquenessStatistics summarizes the stored uniqueness results
type UniquenessStatistics struct {
	// Counts
	Activities int `json:"activities"` // stored activities
	Results    int `json:"results"`    // activities with a stored result
	Scored     int `json:"scored"`     // results with a non-null score

	// Score distribution, null when nothing is scored
	Mean   *float64 `json:"mean"`
	Min    *float64 `json:"min"`
	P10    *float64 `json:"p10"`
	Median *float64 `json:"median"`
	P90    *float64 `json:"p90"`
	Max    *float64 `json:"max"`

	// Descriptions maps each description word to its number of results
	Descriptions map[string]int `json:"descriptions"`
	// Algorithms maps each engine name to its number of results
	Algorithms map[string]int `json:"algorithms"`

	GeneratedAt string `json:"generated_at"`
}

// ScoreRow is one stored result as read for statistics
type ScoreRow struct {
	Score       *float64
	Description *string
	Algorithm   string
}
