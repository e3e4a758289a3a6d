package models

import "time"

// AnalysisTask represents a scoring run over the stored activities
type AnalysisTask struct {
	ID int64 `json:"id" db:"id"`

	// Task identification
	SkillName string `json:"skill_name" db:"skill_name"` // e.g. route_uniqueness
	TaskType  string `json:"task_type" db:"task_type"`   // INCREMENTAL, FULL_RECOMPUTE

	// Status
	Status          string  `json:"status" db:"status"` // pending, running, completed, failed
	ProgressPercent float64 `json:"progress_percent" db:"progress_percent"`

	// Input parameters
	ParamsJSON string `json:"params_json,omitempty" db:"params_json"`

	// Execution info
	TotalItems     int   `json:"total_items" db:"total_items"`
	ProcessedItems int   `json:"processed_items" db:"processed_items"`
	FailedItems    int   `json:"failed_items" db:"failed_items"`
	StartTime      int64 `json:"start_time,omitempty" db:"start_time"` // Unix timestamp
	EndTime        int64 `json:"end_time,omitempty" db:"end_time"`     // Unix timestamp

	// Results
	ResultSummary string `json:"result_summary,omitempty" db:"result_summary"` // JSON object with summary statistics
	ErrorMessage  string `json:"error_message,omitempty" db:"error_message"`

	// Metadata
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskType constants
const (
	TaskTypeIncremental   = "INCREMENTAL"
	TaskTypeFullRecompute = "FULL_RECOMPUTE"
)

// TaskStatus constants
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// AnalysisResultSummary is serialized into AnalysisTask.ResultSummary
type AnalysisResultSummary struct {
	Scored    int    `json:"scored"`
	Unscored  int    `json:"unscored"`
	Skipped   int    `json:"skipped"`
	Corpus    int    `json:"corpus"`
	Algorithm string `json:"algorithm"`
}
