package route

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/run-uniqueness/internal/analysis"
	"github.com/jengzang/run-uniqueness/internal/database"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/spatial"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func runActivity(id string, lat float64) models.Activity {
	route := make(spatial.Route, 8)
	for i := range route {
		route[i] = spatial.GeoPoint{Lat: lat, Lon: float64(i) * 0.01}
	}
	encoded := polyline.Encode(route)
	return models.Activity{
		ID:             models.ActivityID(id),
		StartDateLocal: "2024-01-" + id,
		Map:            &models.ActivityMap{SummaryPolyline: &encoded},
	}
}

func createTask(t *testing.T, db *sql.DB, taskType string) int64 {
	task := &models.AnalysisTask{SkillName: SkillName, TaskType: taskType, Status: models.TaskStatusPending}
	require.NoError(t, repository.NewAnalysisTaskRepository(db).Create(context.Background(), task))
	return task.ID
}

func TestUniquenessAnalyzerRegistered(t *testing.T) {
	assert.True(t, analysis.IsRegistered(SkillName))
	assert.Contains(t, analysis.SkillNames(), SkillName)
	assert.Nil(t, analysis.GetAnalyzer("unknown", nil, uniqueness.DefaultConfig()))
}

func TestUniquenessAnalyzerIncrementalAndFull(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	activities := repository.NewActivityRepository(db)

	_, err := activities.Upsert(ctx, []models.Activity{
		runActivity("1", 0),
		runActivity("2", 0.001),
		runActivity("3", 0.5),
		{ID: "4"},
	})
	require.NoError(t, err)

	analyzer := analysis.GetAnalyzer(SkillName, db, uniqueness.DefaultConfig())
	require.NotNil(t, analyzer)
	assert.Equal(t, SkillName, analyzer.GetName())

	taskID := createTask(t, db, models.TaskTypeIncremental)
	require.NoError(t, analyzer.Analyze(ctx, taskID, analysis.ModeIncremental))

	task, err := repository.NewAnalysisTaskRepository(db).GetByID(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 4, task.TotalItems)
	assert.Zero(t, task.FailedItems)

	var summary models.AnalysisResultSummary
	require.NoError(t, json.Unmarshal([]byte(task.ResultSummary), &summary))
	assert.Equal(t, 3, summary.Scored)
	assert.Equal(t, 1, summary.Unscored)
	assert.Zero(t, summary.Skipped)
	assert.Equal(t, 3, summary.Corpus)
	assert.Equal(t, uniqueness.AlgorithmDTW, summary.Algorithm)

	stored, err := activities.GetUniqueness(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, stored.Score)
	require.NotNil(t, stored.Description)
	assert.Equal(t, []string{"2024-01-2", "2024-01-3"}, stored.SimilarDates)

	none, err := activities.GetUniqueness(ctx, "4")
	require.NoError(t, err)
	assert.Nil(t, none.Score)

	progress, err := analyzer.GetProgress(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, progress.Percent)

	pending, err := activities.Count(ctx, models.ActivityFilter{WithoutUniqueness: true})
	require.NoError(t, err)
	assert.Zero(t, pending)

	t.Run("full recompute rescored everything", func(t *testing.T) {
		_, err := activities.Upsert(ctx, []models.Activity{runActivity("6", 0.0005)})
		require.NoError(t, err)

		taskID := createTask(t, db, models.TaskTypeFullRecompute)
		require.NoError(t, analyzer.Analyze(ctx, taskID, analysis.ModeFull))

		task, err := repository.NewAnalysisTaskRepository(db).GetByID(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, 5, task.TotalItems)

		var summary models.AnalysisResultSummary
		require.NoError(t, json.Unmarshal([]byte(task.ResultSummary), &summary))
		assert.Equal(t, 4, summary.Scored)
		assert.Equal(t, 4, summary.Corpus)
	})
}

func TestUniquenessAnalyzerMalformedRoute(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	activities := repository.NewActivityRepository(db)

	bad := "!!corrupt"
	_, err := activities.Upsert(ctx, []models.Activity{
		runActivity("1", 0),
		runActivity("2", 0.001),
		runActivity("3", 0.5),
		{ID: "5", Map: &models.ActivityMap{SummaryPolyline: &bad}},
	})
	require.NoError(t, err)

	taskID := createTask(t, db, models.TaskTypeIncremental)
	err = NewUniquenessAnalyzer(db, uniqueness.DefaultConfig()).Analyze(ctx, taskID, analysis.ModeIncremental)
	require.Error(t, err)
	assert.ErrorIs(t, err, polyline.ErrMalformed)
	assert.Contains(t, err.Error(), "activity 5")

	task, err := repository.NewAnalysisTaskRepository(db).GetByID(ctx, taskID)
	require.NoError(t, err)
	assert.NotEqual(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, 4, task.ProcessedItems)
	assert.Equal(t, 1, task.FailedItems)

	// The good activities are still scored
	stored, err := activities.GetUniqueness(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, stored.Score)

	pending, err := activities.Count(ctx, models.ActivityFilter{WithoutUniqueness: true})
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestUniquenessAnalyzerMinMax(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	activities := repository.NewActivityRepository(db)

	_, err := activities.Upsert(ctx, []models.Activity{
		runActivity("1", 0),
		runActivity("2", 0.001),
		runActivity("3", 0.5),
	})
	require.NoError(t, err)

	cfg := uniqueness.DefaultConfig()
	cfg.Algorithm = uniqueness.AlgorithmResample
	cfg.Normalization = uniqueness.NormalizationMinMax

	taskID := createTask(t, db, models.TaskTypeFullRecompute)
	require.NoError(t, NewUniquenessAnalyzer(db, cfg).Analyze(ctx, taskID, analysis.ModeFull))

	outlier, err := activities.GetUniqueness(ctx, "3")
	require.NoError(t, err)
	require.NotNil(t, outlier.Score)
	assert.InDelta(t, uniqueness.UniquenessMax, *outlier.Score, 1e-9)
	assert.Equal(t, uniqueness.AlgorithmResample, outlier.Algorithm)
}
