package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jengzang/run-uniqueness/internal/database"
	"github.com/jengzang/run-uniqueness/internal/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func testActivity(id, date, summary string) models.Activity {
	return models.Activity{
		ID:             models.ActivityID(id),
		Name:           "Run " + id,
		Type:           "Run",
		StartDate:      date + "T06:00:00Z",
		StartDateLocal: date + "T08:00:00Z",
		Distance:       5000,
		MovingTime:     1500,
		Map:            &models.ActivityMap{SummaryPolyline: strPtr(summary)},
	}
}
