package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
	"github.com/jengzang/run-uniqueness/internal/repository"
	"github.com/jengzang/run-uniqueness/internal/spatial"
	"github.com/jengzang/run-uniqueness/internal/uniqueness"
)

type memoryStore struct {
	activities []models.Activity
	stored     map[string]*models.StoredUniqueness
}

func (m *memoryStore) Upsert(ctx context.Context, activities []models.Activity) (int, error) {
	m.activities = append(m.activities, activities...)
	return len(activities), nil
}

func (m *memoryStore) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, error) {
	return m.activities, nil
}

func (m *memoryStore) GetUniqueness(ctx context.Context, activityID string) (*models.StoredUniqueness, error) {
	if u, ok := m.stored[activityID]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
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

func TestScoreOne(t *testing.T) {
	store := &memoryStore{activities: []models.Activity{
		runActivity("1", 0),
		runActivity("2", 0.001),
		runActivity("3", 0.5),
	}}
	svc, err := NewUniquenessService(store, uniqueness.DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("new activity", func(t *testing.T) {
		query := runActivity("9", 0.0002)
		result, err := svc.ScoreOne(ctx, &query)
		require.NoError(t, err)
		require.NotNil(t, result.Score)
		assert.Len(t, result.Similar, 3)
	})

	t.Run("stored activity excludes itself", func(t *testing.T) {
		query := store.activities[0]
		result, err := svc.ScoreOne(ctx, &query)
		require.NoError(t, err)
		require.Len(t, result.Similar, 2)
		for _, n := range result.Similar {
			assert.NotEqual(t, "1", n.ID)
		}
	})

	t.Run("malformed route", func(t *testing.T) {
		bad := "!!!"
		_, err := svc.ScoreOne(ctx, &models.Activity{ID: "x", Map: &models.ActivityMap{SummaryPolyline: &bad}})
		assert.ErrorIs(t, err, polyline.ErrMalformed)
	})

	t.Run("nil activity", func(t *testing.T) {
		_, err := svc.ScoreOne(ctx, nil)
		assert.ErrorIs(t, err, ErrNoActivity)
	})
}

func TestScoreOneBatchRelative(t *testing.T) {
	store := &memoryStore{activities: []models.Activity{
		runActivity("1", 0),
		runActivity("2", 0.001),
	}}
	cfg := uniqueness.DefaultConfig()
	cfg.Normalization = uniqueness.NormalizationMinMax
	svc, err := NewUniquenessService(store, cfg)
	require.NoError(t, err)

	query := runActivity("9", 3)
	result, err := svc.ScoreOne(context.Background(), &query)
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	assert.InDelta(t, uniqueness.UniquenessMax, *result.Score, 1e-9, "the far route is the most unique of the batch")
}

func TestScoreOneEmptyStore(t *testing.T) {
	svc, err := NewUniquenessService(&memoryStore{}, uniqueness.DefaultConfig())
	require.NoError(t, err)

	query := runActivity("1", 0)
	result, err := svc.ScoreOne(context.Background(), &query)
	require.NoError(t, err)
	assert.Nil(t, result.Score)
	assert.Nil(t, result.Uniqueness().Description)
}

func TestImportAndGet(t *testing.T) {
	store := &memoryStore{stored: map[string]*models.StoredUniqueness{"1": {ActivityID: "1"}}}
	svc, err := NewUniquenessService(store, uniqueness.DefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	n, err := svc.ImportActivities(ctx, []models.Activity{runActivity("1", 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetUniqueness(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ActivityID)

	_, err = svc.GetUniqueness(ctx, "2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func writeRecord(t *testing.T, dir, name string, activity models.Activity) {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{"activity": activity, "kept": true})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func readUniqueness(t *testing.T, path string) map[string]json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var record map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &record))
	return record
}

func TestScoreRecords(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "1.json", runActivity("1", 0))
	writeRecord(t, dir, "2.json", runActivity("2", 0.001))
	writeRecord(t, dir, "3.json", runActivity("3", 0.5))
	writeRecord(t, dir, "4.json", models.Activity{ID: "4"})
	bad := "!!!"
	writeRecord(t, dir, "5.json", models.Activity{ID: "5", Map: &models.ActivityMap{SummaryPolyline: &bad}})

	svc, err := NewUniquenessService(nil, uniqueness.DefaultConfig())
	require.NoError(t, err)

	summary, err := svc.ScoreRecords(context.Background(), repository.NewFileStore(dir), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, polyline.ErrMalformed)
	assert.Contains(t, err.Error(), "record 5")
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.Scored)
	assert.Equal(t, 1, summary.Unscored)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 3, summary.Corpus)

	record := readUniqueness(t, filepath.Join(dir, "1.json"))
	assert.JSONEq(t, "true", string(record["kept"]))
	var u models.Uniqueness
	require.NoError(t, json.Unmarshal(record["uniqueness"], &u))
	require.NotNil(t, u.Score)
	require.NotNil(t, u.Description)

	record = readUniqueness(t, filepath.Join(dir, "4.json"))
	assert.JSONEq(t, `{"score": null, "description": null}`, string(record["uniqueness"]))

	record = readUniqueness(t, filepath.Join(dir, "5.json"))
	_, touched := record["uniqueness"]
	assert.False(t, touched, "records that fail to score are left unchanged")
}

func TestScoreRecordsAllGood(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "1.json", runActivity("1", 0))
	writeRecord(t, dir, "2.json", runActivity("2", 0.001))

	svc, err := NewUniquenessService(nil, uniqueness.DefaultConfig())
	require.NoError(t, err)

	summary, err := svc.ScoreRecords(context.Background(), repository.NewFileStore(dir), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scored)
	assert.Zero(t, summary.Skipped)
}

func TestScoreRecordsAgainstHistory(t *testing.T) {
	dir := t.TempDir()
	writeRecord(t, dir, "new.json", runActivity("7", 0.0001))

	svc, err := NewUniquenessService(nil, uniqueness.DefaultConfig())
	require.NoError(t, err)

	history := []models.Activity{runActivity("1", 0), runActivity("2", 1)}
	summary, err := svc.ScoreRecords(context.Background(), repository.NewFileStore(dir), history)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 2, summary.Corpus)
}
