// Package uniqueness scores how unusual an activity's route is relative to a
// corpus of previously recorded routes.
//
// For each query route the scorer computes a distance to every other route in
// the reference corpus, reduces those distances to a score in
// [UniquenessMin, UniquenessMax], and maps the score onto a word ladder.
// Exactly one distance engine and one normalization are active per Scorer.
package uniqueness

import (
	"errors"
	"fmt"
)

// Score bounds
const (
	UniquenessMin = 1.0
	UniquenessMax = 100.0
)

// DefaultResamplePoints is the point count used by the resample engine
const DefaultResamplePoints = 50

// Distance engines
const (
	AlgorithmDTW      = "dtw"
	AlgorithmResample = "resample"
)

// Normalizations
const (
	// NormalizationRatio scores each activity by nearest/median distance
	NormalizationRatio = "ratio"
	// NormalizationMinMax rescales each activity's mean distance across the batch
	NormalizationMinMax = "minmax"
)

// Ratio directions
const (
	// RatioDirectionFamiliarLow scores min + (max-min)*ratio: a close nearest
	// neighbour is a familiar route and scores low
	RatioDirectionFamiliarLow = "familiar_low"
	// RatioDirectionNearestInverse scores min + (max-min)*(1-ratio): a close
	// nearest neighbour scores high
	RatioDirectionNearestInverse = "nearest_inverse"
)

// Point metrics
const (
	MetricPlanar    = "planar"
	MetricHaversine = "haversine"
)

// Description modes
const (
	DescriptionLinear     = "linear"
	DescriptionPercentile = "percentile"
)

// Words is the default ladder, ordered from least to most unique
var Words = []string{
	"mundane",
	"repetitive",
	"routine",
	"familiar",
	"commonplace",
	"standard",
	"ordinary",
	"typical",
	"distinct",
	"notable",
	"uncommon",
	"rare",
	"fresh",
	"original",
	"innovative",
	"novel",
}

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid uniqueness config")

// Config selects the algorithm and its tuning
type Config struct {
	Algorithm          string  `koanf:"algorithm" json:"algorithm" validate:"oneof=dtw resample"`
	Normalization      string  `koanf:"normalization" json:"normalization" validate:"oneof=ratio minmax"`
	RatioDirection     string  `koanf:"ratio_direction" json:"ratio_direction" validate:"oneof=familiar_low nearest_inverse"`
	ResamplePoints     int     `koanf:"resample_points" json:"resample_points" validate:"gte=2"`
	PointMetric        string  `koanf:"point_metric" json:"point_metric" validate:"oneof=planar haversine"`
	DTWWindow          int     `koanf:"dtw_window" json:"dtw_window" validate:"gte=0"`
	SimplifyTolerance  float64 `koanf:"simplify_tolerance" json:"simplify_tolerance" validate:"gte=0"`
	AscendingWithScore bool    `koanf:"ascending_with_score" json:"ascending_with_score"`
	DescriptionMode    string  `koanf:"description_mode" json:"description_mode" validate:"oneof=linear percentile"`
	SimilarCount       int     `koanf:"similar_count" json:"similar_count" validate:"gte=0"`
	Workers            int     `koanf:"workers" json:"workers" validate:"gte=1"`
}

// DefaultConfig returns DTW with ratio normalization, the ladder ascending with score
func DefaultConfig() Config {
	return Config{
		Algorithm:          AlgorithmDTW,
		Normalization:      NormalizationRatio,
		RatioDirection:     RatioDirectionFamiliarLow,
		ResamplePoints:     DefaultResamplePoints,
		PointMetric:        MetricPlanar,
		DTWWindow:          0,
		SimplifyTolerance:  0,
		AscendingWithScore: true,
		DescriptionMode:    DescriptionLinear,
		SimilarCount:       5,
		Workers:            1,
	}
}

// Validate checks enum values and ranges
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmDTW, AlgorithmResample:
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, c.Algorithm)
	}
	switch c.Normalization {
	case NormalizationRatio, NormalizationMinMax:
	default:
		return fmt.Errorf("%w: unknown normalization %q", ErrInvalidConfig, c.Normalization)
	}
	switch c.RatioDirection {
	case RatioDirectionFamiliarLow, RatioDirectionNearestInverse:
	default:
		return fmt.Errorf("%w: unknown ratio direction %q", ErrInvalidConfig, c.RatioDirection)
	}
	switch c.PointMetric {
	case MetricPlanar, MetricHaversine:
	default:
		return fmt.Errorf("%w: unknown point metric %q", ErrInvalidConfig, c.PointMetric)
	}
	switch c.DescriptionMode {
	case DescriptionLinear, DescriptionPercentile:
	default:
		return fmt.Errorf("%w: unknown description mode %q", ErrInvalidConfig, c.DescriptionMode)
	}
	if c.Algorithm == AlgorithmResample && c.ResamplePoints < 2 {
		return fmt.Errorf("%w: resample_points must be at least 2, got %d", ErrInvalidConfig, c.ResamplePoints)
	}
	if c.DTWWindow < 0 {
		return fmt.Errorf("%w: dtw_window must not be negative", ErrInvalidConfig)
	}
	if c.SimplifyTolerance < 0 {
		return fmt.Errorf("%w: simplify_tolerance must not be negative", ErrInvalidConfig)
	}
	if c.SimilarCount < 0 {
		return fmt.Errorf("%w: similar_count must not be negative", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}
