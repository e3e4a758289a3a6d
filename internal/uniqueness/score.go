package uniqueness

import (
	"math"

	"github.com/jengzang/run-uniqueness/internal/stats"
)

// CalculateScore reduces the distances from one activity to every other
// reference route into a score in [UniquenessMin, UniquenessMax].
//
// With ratio = min(1, nearest/median), RatioDirectionFamiliarLow scores
// min + (max-min)*ratio, so a neighbour much closer than the typical route is
// a familiar route with a low score. RatioDirectionNearestInverse scores
// min + (max-min)*(1-ratio). Any other direction is treated as familiar_low.
// It returns nil for an empty list and UniquenessMax when the median is zero,
// whatever the direction.
func CalculateScore(distances []float64, direction string) *float64 {
	if len(distances) == 0 {
		return nil
	}

	median := stats.Median(distances)
	if median == 0 {
		score := UniquenessMax
		return &score
	}

	nearest := stats.Min(distances)
	ratio := math.Min(1, nearest/median)
	if direction == RatioDirectionNearestInverse {
		ratio = 1 - ratio
	}
	score := UniquenessMin + (UniquenessMax-UniquenessMin)*ratio
	return &score
}

// MeanDistance is the raw metric used by min-max normalization; nil when empty
func MeanDistance(distances []float64) *float64 {
	if len(distances) == 0 {
		return nil
	}
	mean := stats.Mean(distances)
	return &mean
}

// RescaleMinMax maps every non-nil raw value linearly onto
// [UniquenessMin, UniquenessMax] using the batch minimum and maximum.
// When all raw values are equal every score is UniquenessMax. Nil entries
// stay nil.
func RescaleMinMax(raw []*float64) []*float64 {
	valid := make([]float64, 0, len(raw))
	for _, r := range raw {
		if r != nil {
			valid = append(valid, *r)
		}
	}

	out := make([]*float64, len(raw))
	if len(valid) == 0 {
		return out
	}

	lo, hi := stats.Min(valid), stats.Max(valid)
	for i, r := range raw {
		if r == nil {
			continue
		}
		score := stats.Rescale(*r, lo, hi, UniquenessMin, UniquenessMax)
		out[i] = &score
	}
	return out
}
