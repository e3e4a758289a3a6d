package analysis

import (
	"context"
	"database/sql"
	"sort"

	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

// Analysis modes
const (
	ModeIncremental = "incremental"
	ModeFull        = "full"
)

// Analyzer is the interface that all analysis skills must implement
type Analyzer interface {
	// Analyze performs the analysis for a given task
	// taskID: the analysis task ID
	// mode: "incremental" or "full"
	Analyze(ctx context.Context, taskID int64, mode string) error

	// GetProgress returns the current progress of the analysis
	GetProgress(ctx context.Context, taskID int64) (*Progress, error)

	// GetName returns the name of the analyzer
	GetName() string
}

// Progress represents the progress of an analysis task
type Progress struct {
	Processed int     // Number of records processed
	Total     int     // Total number of records to process
	Failed    int     // Number of failed records
	Percent   float64 // Progress percentage (0-100)
}

// BaseAnalyzer provides common functionality for all analyzers
type BaseAnalyzer struct {
	DB    *sql.DB
	Name  string
	Tasks *repository.AnalysisTaskRepository
}

// NewBaseAnalyzer creates a new base analyzer
func NewBaseAnalyzer(db *sql.DB, name string) *BaseAnalyzer {
	return &BaseAnalyzer{
		DB:    db,
		Name:  name,
		Tasks: repository.NewAnalysisTaskRepository(db),
	}
}

// GetName returns the analyzer name
func (a *BaseAnalyzer) GetName() string {
	return a.Name
}

// UpdateTaskProgress updates the progress of an analysis task in the database
func (a *BaseAnalyzer) UpdateTaskProgress(ctx context.Context, taskID int64, processed, total, failed int) error {
	return a.Tasks.UpdateProgress(ctx, taskID, processed, total, failed)
}

// MarkTaskAsRunning marks a task as running
func (a *BaseAnalyzer) MarkTaskAsRunning(ctx context.Context, taskID int64) error {
	return a.Tasks.MarkAsRunning(ctx, taskID)
}

// MarkTaskAsCompleted marks a task as completed with a result summary
func (a *BaseAnalyzer) MarkTaskAsCompleted(ctx context.Context, taskID int64, resultSummary string) error {
	return a.Tasks.MarkAsCompleted(ctx, taskID, resultSummary)
}

// GetProgress returns the current progress from the database
func (a *BaseAnalyzer) GetProgress(ctx context.Context, taskID int64) (*Progress, error) {
	task, err := a.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	return &Progress{
		Processed: task.ProcessedItems,
		Total:     task.TotalItems,
		Failed:    task.FailedItems,
		Percent:   task.ProgressPercent,
	}, nil
}

// AnalyzerFactory is a function that creates an analyzer instance
type AnalyzerFactory func(db *sql.DB, cfg uniqueness.Config) Analyzer

// AnalyzerRegistry maps skill names to analyzer factories
var AnalyzerRegistry = make(map[string]AnalyzerFactory)

// RegisterAnalyzer registers an analyzer factory for a skill name
func RegisterAnalyzer(skillName string, factory AnalyzerFactory) {
	AnalyzerRegistry[skillName] = factory
}

// GetAnalyzer retrieves an analyzer instance for a skill name
func GetAnalyzer(skillName string, db *sql.DB, cfg uniqueness.Config) Analyzer {
	factory, ok := AnalyzerRegistry[skillName]
	if !ok {
		return nil
	}
	return factory(db, cfg)
}

// IsRegistered checks if an analyzer exists for a skill name
func IsRegistered(skillName string) bool {
	_, ok := AnalyzerRegistry[skillName]
	return ok
}

// SkillNames returns the registered skill names in sorted order
func SkillNames() []string {
	names := make([]string, 0, len(AnalyzerRegistry))
	for name := range AnalyzerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
