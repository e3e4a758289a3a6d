package uniqueness

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
	"github.com/jengzang/run-uniqueness/internal/spatial"
)

// ErrEngineMismatch is returned when a corpus was prepared by another engine
var ErrEngineMismatch = errors.New("corpus prepared by a different engine")

// Neighbor is a reference route and its distance to the query
type Neighbor struct {
	ID       string
	Date     string
	Distance float64
}

// Result is the uniqueness outcome for one activity.
// Score is nil when the activity has no route or no other reference exists.
type Result struct {
	ActivityID  string
	Score       *float64
	RawDistance *float64 // mean distance to the corpus
	Description *string
	Similar     []Neighbor
	Err         error // set by ScoreBatch when this activity could not be scored
}

// Uniqueness converts the result to the persisted record form
func (r Result) Uniqueness() models.Uniqueness {
	u := models.Uniqueness{
		Score:       r.Score,
		Description: r.Description,
	}
	for _, n := range r.Similar {
		if n.Date != "" {
			u.SimilarDates = append(u.SimilarDates, n.Date)
		}
	}
	return u
}

// Scorer computes uniqueness with one fixed engine and normalization
type Scorer struct {
	cfg       Config
	engine    Engine
	describer Describer
}

// NewScorer validates cfg and builds the scorer
func NewScorer(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:       cfg,
		engine:    NewEngine(cfg),
		describer: NewDescriber(cfg.AscendingWithScore),
	}, nil
}

// Config returns the scorer configuration
func (s *Scorer) Config() Config {
	return s.cfg
}

// Engine returns the active distance engine
func (s *Scorer) Engine() Engine {
	return s.engine
}

// BuildCorpus builds a reference corpus prepared for this scorer's engine
func (s *Scorer) BuildCorpus(activities []models.Activity) *Corpus {
	return BuildCorpus(s.engine, activities)
}

// Neighbors returns the distance from a prepared route to every reference
// except the one whose id equals id, nearest first (ties broken by id).
func (s *Scorer) Neighbors(id string, prepared spatial.Route, corpus *Corpus) []Neighbor {
	neighbors := make([]Neighbor, 0, corpus.Len())
	corpus.each(func(ref *Reference) {
		if ref.ID == id {
			return
		}
		neighbors = append(neighbors, Neighbor{
			ID:       ref.ID,
			Date:     ref.Date,
			Distance: s.engine.Distance(prepared, ref.Route),
		})
	})

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ID < neighbors[j].ID
	})
	return neighbors
}

// ScoreActivity scores a single activity against the corpus.
//
// A missing route or an empty corpus yields a Result with a nil score. A
// malformed polyline is returned as an error. Under min-max normalization the
// score stays nil until the batch is rescaled by ScoreBatch.
func (s *Scorer) ScoreActivity(activity *models.Activity, corpus *Corpus) (Result, error) {
	result := Result{ActivityID: activity.ID.String()}
	if corpus.Len() > 0 && corpus.Engine() != s.engine.Name() {
		return result, fmt.Errorf("%w: %s != %s", ErrEngineMismatch, corpus.Engine(), s.engine.Name())
	}

	route, err := polyline.DecodeActivity(activity)
	if err != nil {
		return result, err
	}
	if len(route) == 0 || corpus.Len() == 0 {
		return result, nil
	}

	neighbors := s.Neighbors(result.ActivityID, s.engine.Prepare(route), corpus)
	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		distances[i] = n.Distance
	}

	result.RawDistance = MeanDistance(distances)
	if s.cfg.Normalization == NormalizationRatio {
		result.Score = CalculateScore(distances, s.cfg.RatioDirection)
		result.Description = s.describer.Describe(result.Score)
	}

	if len(neighbors) > s.cfg.SimilarCount {
		neighbors = neighbors[:s.cfg.SimilarCount]
	}
	result.Similar = neighbors
	return result, nil
}

// BatchRelative reports whether scores or descriptions depend on the other
// activities of the batch
func (s *Scorer) BatchRelative() bool {
	return s.cfg.Normalization == NormalizationMinMax || s.cfg.DescriptionMode == DescriptionPercentile
}

// ScoreBatch scores every activity against the corpus, using up to
// cfg.Workers goroutines, and applies the batch-level passes: min-max
// rescaling and percentile descriptions. Results keep the input order.
//
// An activity that fails to score gets a nil score and its error in
// Result.Err; only cancellation or an engine mismatch fails the batch.
func (s *Scorer) ScoreBatch(ctx context.Context, activities []models.Activity, corpus *Corpus) ([]Result, error) {
	if corpus.Len() > 0 && corpus.Engine() != s.engine.Name() {
		return nil, fmt.Errorf("%w: %s != %s", ErrEngineMismatch, corpus.Engine(), s.engine.Name())
	}

	results := make([]Result, len(activities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range activities {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.ScoreActivity(&activities[i], corpus)
			if err != nil {
				r = Result{ActivityID: activities[i].ID.String(), Err: err}
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.finalize(results)
	return results, nil
}

// finalize applies normalization and descriptions across the whole batch
func (s *Scorer) finalize(results []Result) {
	if s.cfg.Normalization == NormalizationMinMax {
		raw := make([]*float64, len(results))
		for i := range results {
			raw[i] = results[i].RawDistance
		}
		for i, score := range RescaleMinMax(raw) {
			results[i].Score = score
		}
	}

	var population []float64
	if s.cfg.DescriptionMode == DescriptionPercentile {
		for _, r := range results {
			if r.Score != nil {
				population = append(population, *r.Score)
			}
		}
	}

	for i := range results {
		if s.cfg.DescriptionMode == DescriptionPercentile {
			results[i].Description = s.describer.DescribeByRank(results[i].Score, population)
		} else {
			results[i].Description = s.describer.Describe(results[i].Score)
		}
	}
}
