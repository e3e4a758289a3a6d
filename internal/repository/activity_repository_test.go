package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/run-uniqueness/internal/models"
)

func TestActivityRepositoryUpsertAndList(t *testing.T) {
	repo := NewActivityRepository(setupTestDB(t))
	ctx := context.Background()

	n, err := repo.Upsert(ctx, []models.Activity{
		testActivity("2", "2024-02-01", "_p~iF~ps|U"),
		testActivity("1", "2024-01-01", "_ulLnnqC"),
		{Name: "no id"},
		{ID: "3", StartDate: "2024-03-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	activities, err := repo.List(ctx, models.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, activities, 3)
	assert.Equal(t, models.ActivityID("1"), activities[0].ID)
	assert.Equal(t, models.ActivityID("2"), activities[1].ID)
	assert.Nil(t, activities[2].Map, "no polylines means no map")

	route, ok := activities[0].EncodedRoute()
	assert.True(t, ok)
	assert.Equal(t, "_ulLnnqC", route)

	// Upsert replaces
	updated := testActivity("1", "2024-01-01", "changed")
	updated.Name = "Renamed"
	_, err = repo.Upsert(ctx, []models.Activity{updated})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "changed", *got.Map.SummaryPolyline)

	count, err := repo.Count(ctx, models.ActivityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	limited, err := repo.List(ctx, models.ActivityFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, models.ActivityID("2"), limited[0].ID)
}

func TestActivityRepositoryGetByIDNotFound(t *testing.T) {
	repo := NewActivityRepository(setupTestDB(t))
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivityRepositoryUniqueness(t *testing.T) {
	repo := NewActivityRepository(setupTestDB(t))
	ctx := context.Background()

	_, err := repo.Upsert(ctx, []models.Activity{
		testActivity("1", "2024-01-01", "??"),
		testActivity("2", "2024-01-02", "??"),
	})
	require.NoError(t, err)

	_, err = repo.GetUniqueness(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)

	description := "rare"
	require.NoError(t, repo.SaveUniqueness(ctx, &models.StoredUniqueness{
		ActivityID:   "1",
		Score:        floatPtr(72.5),
		RawDistance:  floatPtr(0.25),
		Description:  &description,
		SimilarDates: []string{"2024-01-02T08:00:00Z"},
		Algorithm:    "dtw",
	}))

	got, err := repo.GetUniqueness(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 72.5, *got.Score)
	assert.Equal(t, 0.25, *got.RawDistance)
	assert.Equal(t, "rare", *got.Description)
	assert.Equal(t, []string{"2024-01-02T08:00:00Z"}, got.SimilarDates)
	assert.Equal(t, "dtw", got.Algorithm)
	assert.False(t, got.ComputedAt.IsZero())

	t.Run("null score round trips", func(t *testing.T) {
		require.NoError(t, repo.SaveUniqueness(ctx, &models.StoredUniqueness{ActivityID: "2", Algorithm: "dtw"}))
		got, err := repo.GetUniqueness(ctx, "2")
		require.NoError(t, err)
		assert.Nil(t, got.Score)
		assert.Nil(t, got.Description)
		assert.Nil(t, got.SimilarDates)
	})

	t.Run("filter without uniqueness", func(t *testing.T) {
		_, err := repo.Upsert(ctx, []models.Activity{testActivity("3", "2024-01-03", "??")})
		require.NoError(t, err)

		pending, err := repo.List(ctx, models.ActivityFilter{WithoutUniqueness: true})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, models.ActivityID("3"), pending[0].ID)

		count, err := repo.Count(ctx, models.ActivityFilter{WithoutUniqueness: true})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown activity is rejected", func(t *testing.T) {
		err := repo.SaveUniqueness(ctx, &models.StoredUniqueness{ActivityID: "ghost", Algorithm: "dtw"})
		assert.Error(t, err)
	})
}
