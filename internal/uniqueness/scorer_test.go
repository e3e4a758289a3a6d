package uniqueness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
)

func newTestScorer(t *testing.T, mutate func(*Config)) *Scorer {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewScorer(cfg)
	require.NoError(t, err)
	return s
}

func history() []models.Activity {
	return []models.Activity{
		activityWith("1", line(0, 0, 0.01, 10)),
		activityWith("2", line(0.001, 0, 0.01, 10)),
		activityWith("3", line(0.5, 0.5, 0.01, 10)),
		activityWith("4", line(1, 1, 0.01, 10)),
		activityWith("5", line(2, 2, 0.01, 10)),
	}
}

func TestNewScorerRejectsInvalidConfig(t *testing.T) {
	_, err := NewScorer(Config{Algorithm: "fastdtw"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScoreActivityEmptyCorpus(t *testing.T) {
	s := newTestScorer(t, nil)
	query := activityWith("9", line(0, 0, 0.01, 10))

	for _, corpus := range []*Corpus{nil, s.BuildCorpus(nil)} {
		result, err := s.ScoreActivity(&query, corpus)
		require.NoError(t, err)
		assert.Nil(t, result.Score)
		assert.Nil(t, result.Description)
	}
}

func TestScoreActivitySelfExclusion(t *testing.T) {
	s := newTestScorer(t, nil)
	corpus := s.BuildCorpus(history())

	query := history()[0]
	route, err := polyline.DecodeActivity(&query)
	require.NoError(t, err)

	neighbors := s.Neighbors(query.ID.String(), s.Engine().Prepare(route), corpus)
	require.Len(t, neighbors, corpus.Len()-1)
	for _, n := range neighbors {
		assert.NotEqual(t, "1", n.ID)
	}

	t.Run("only self in corpus is no score", func(t *testing.T) {
		single := s.BuildCorpus(history()[:1])
		result, err := s.ScoreActivity(&query, single)
		require.NoError(t, err)
		assert.Nil(t, result.Score)
	})
}

func TestScoreActivityDeterministic(t *testing.T) {
	s := newTestScorer(t, nil)
	corpus := s.BuildCorpus(history())
	query := activityWith("new", line(0.002, 0, 0.01, 12))

	first, err := s.ScoreActivity(&query, corpus)
	require.NoError(t, err)
	require.NotNil(t, first.Score)

	for i := 0; i < 5; i++ {
		again, err := s.ScoreActivity(&query, corpus)
		require.NoError(t, err)
		assert.Equal(t, *first.Score, *again.Score)
		assert.Equal(t, *first.Description, *again.Description)
	}
}

func TestScoreActivityFamiliarRouteScoresLow(t *testing.T) {
	s := newTestScorer(t, nil)
	corpus := s.BuildCorpus(history())

	familiar := activityWith("a", line(0.0005, 0, 0.01, 10))
	remote := activityWith("b", line(5, 5, 0.01, 10))

	f, err := s.ScoreActivity(&familiar, corpus)
	require.NoError(t, err)
	r, err := s.ScoreActivity(&remote, corpus)
	require.NoError(t, err)

	require.NotNil(t, f.Score)
	require.NotNil(t, r.Score)
	assert.Less(t, *f.Score, *r.Score)
	assert.GreaterOrEqual(t, *f.Score, UniquenessMin)
	assert.LessOrEqual(t, *r.Score, UniquenessMax)
}

func TestScoreActivityNearestInverse(t *testing.T) {
	s := newTestScorer(t, func(c *Config) { c.RatioDirection = RatioDirectionNearestInverse })
	corpus := s.BuildCorpus(history())

	familiar := activityWith("a", line(0.0005, 0, 0.01, 10))
	remote := activityWith("b", line(5, 5, 0.01, 10))

	f, err := s.ScoreActivity(&familiar, corpus)
	require.NoError(t, err)
	r, err := s.ScoreActivity(&remote, corpus)
	require.NoError(t, err)

	require.NotNil(t, f.Score)
	require.NotNil(t, r.Score)
	assert.Greater(t, *f.Score, *r.Score)
	assert.LessOrEqual(t, *f.Score, UniquenessMax)
	assert.GreaterOrEqual(t, *r.Score, UniquenessMin)
}

func TestScoreActivitySimilar(t *testing.T) {
	s := newTestScorer(t, func(c *Config) { c.SimilarCount = 2 })
	corpus := s.BuildCorpus(history())
	query := activityWith("q", line(0.0002, 0, 0.01, 10))

	result, err := s.ScoreActivity(&query, corpus)
	require.NoError(t, err)
	require.Len(t, result.Similar, 2)
	assert.ElementsMatch(t, []string{"1", "2"}, []string{result.Similar[0].ID, result.Similar[1].ID})
	assert.LessOrEqual(t, result.Similar[0].Distance, result.Similar[1].Distance)
	require.NotNil(t, result.RawDistance)

	u := result.Uniqueness()
	assert.Len(t, u.SimilarDates, 2)
	assert.Equal(t, result.Score, u.Score)
}

func TestScoreActivityMissingAndMalformedRoutes(t *testing.T) {
	s := newTestScorer(t, nil)
	corpus := s.BuildCorpus(history())

	t.Run("missing route is no score", func(t *testing.T) {
		query := models.Activity{ID: "x"}
		result, err := s.ScoreActivity(&query, corpus)
		require.NoError(t, err)
		assert.Nil(t, result.Score)
		assert.Equal(t, "x", result.ActivityID)
	})

	t.Run("malformed route is an error", func(t *testing.T) {
		query := activityWithPolyline("y", "!!!")
		_, err := s.ScoreActivity(&query, corpus)
		assert.ErrorIs(t, err, polyline.ErrMalformed)
	})
}

func TestScoreActivityEngineMismatch(t *testing.T) {
	dtw := newTestScorer(t, nil)
	resample := newTestScorer(t, func(c *Config) { c.Algorithm = AlgorithmResample })

	corpus := resample.BuildCorpus(history())
	query := activityWith("q", line(0, 0, 0.01, 10))

	_, err := dtw.ScoreActivity(&query, corpus)
	assert.ErrorIs(t, err, ErrEngineMismatch)

	_, err = dtw.ScoreBatch(context.Background(), []models.Activity{query}, corpus)
	assert.ErrorIs(t, err, ErrEngineMismatch)
}

func TestScoreBatch(t *testing.T) {
	acts := append(history(), activityWithPolyline("bad", "!!!"), models.Activity{ID: "none"})

	t.Run("matches single scoring in input order", func(t *testing.T) {
		s := newTestScorer(t, func(c *Config) { c.Workers = 4 })
		corpus := s.BuildCorpus(acts)

		results, err := s.ScoreBatch(context.Background(), acts, corpus)
		require.NoError(t, err)
		require.Len(t, results, len(acts))

		for i := range history() {
			single, err := s.ScoreActivity(&acts[i], corpus)
			require.NoError(t, err)
			assert.Equal(t, acts[i].ID.String(), results[i].ActivityID)
			assert.Equal(t, *single.Score, *results[i].Score)
			assert.NoError(t, results[i].Err)
		}

		bad := results[len(acts)-2]
		assert.ErrorIs(t, bad.Err, polyline.ErrMalformed)
		assert.Nil(t, bad.Score)

		none := results[len(acts)-1]
		assert.NoError(t, none.Err)
		assert.Nil(t, none.Score)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := newTestScorer(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.ScoreBatch(ctx, acts, s.BuildCorpus(acts))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScoreBatchMinMax(t *testing.T) {
	s := newTestScorer(t, func(c *Config) {
		c.Algorithm = AlgorithmResample
		c.Normalization = NormalizationMinMax
	})
	assert.True(t, s.BatchRelative())

	acts := history()
	results, err := s.ScoreBatch(context.Background(), acts, s.BuildCorpus(acts))
	require.NoError(t, err)

	var lo, hi int
	for i, r := range results {
		require.NotNil(t, r.Score)
		require.NotNil(t, r.Description)
		if *r.Score < *results[lo].Score {
			lo = i
		}
		if *r.Score > *results[hi].Score {
			hi = i
		}
	}
	assert.InDelta(t, UniquenessMin, *results[lo].Score, 1e-9)
	assert.InDelta(t, UniquenessMax, *results[hi].Score, 1e-9)
	assert.Equal(t, "5", results[hi].ActivityID, "the outlying route is the most unique")

	t.Run("single activity is max", func(t *testing.T) {
		pair := history()[:2]
		results, err := s.ScoreBatch(context.Background(), pair[:1], s.BuildCorpus(pair))
		require.NoError(t, err)
		assert.Equal(t, UniquenessMax, *results[0].Score)
	})

	t.Run("score activity leaves min-max unscored", func(t *testing.T) {
		result, err := s.ScoreActivity(&acts[0], s.BuildCorpus(acts))
		require.NoError(t, err)
		assert.Nil(t, result.Score)
		assert.NotNil(t, result.RawDistance)
	})
}

func TestScoreBatchPercentileDescriptions(t *testing.T) {
	s := newTestScorer(t, func(c *Config) { c.DescriptionMode = DescriptionPercentile })
	assert.True(t, s.BatchRelative())

	acts := history()
	results, err := s.ScoreBatch(context.Background(), acts, s.BuildCorpus(acts))
	require.NoError(t, err)

	var top Result
	for _, r := range results {
		require.NotNil(t, r.Score)
		if top.Score == nil || *r.Score > *top.Score {
			top = r
		}
	}
	assert.Equal(t, "novel", *top.Description)
}
