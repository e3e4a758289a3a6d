// Package stats holds the small descriptive statistics used to reduce route
// distances to scores and to summarize stored results.
//
// Every function accepts an unsorted slice, leaves it untouched, and returns
// 0 for an empty one.
package stats

import (
	"math"
	"sort"
)

// sortedCopy returns values in ascending order without reordering the input
func sortedCopy(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted
}

// Mean is the arithmetic mean
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Min is the smallest value
func Min(values []float64) float64 {
	return fold(values, math.Min)
}

// Max is the largest value
func Max(values []float64) float64 {
	return fold(values, math.Max)
}

func fold(values []float64, pick func(a, b float64) float64) float64 {
	if len(values) == 0 {
		return 0
	}
	acc := values[0]
	for _, v := range values[1:] {
		acc = pick(acc, v)
	}
	return acc
}

// Median is the middle value, or the mean of the two middle values for an
// even count.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Quantile returns the q-th quantile, q clamped to [0, 1], interpolating
// linearly between the two nearest ranks.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return quantileSorted(sortedCopy(values), math.Max(0, math.Min(1, q)))
}

func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	if lower == len(sorted)-1 {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[lower+1]-sorted[lower])*frac
}

// Percentile is Quantile with p in [0, 100]
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100)
}

// SortedRank returns the fraction of an ascending slice that is <= value,
// which is the bisect-right insertion point over the length.
func SortedRank(sorted []float64, value float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := sort.Search(len(sorted), func(i int) bool { return sorted[i] > value })
	return float64(pos) / float64(len(sorted))
}

// Rescale maps v from [min, max] linearly onto [lo, hi]. A degenerate
// source range maps everything to hi.
func Rescale(v, min, max, lo, hi float64) float64 {
	if max == min {
		return hi
	}
	return lo + (hi-lo)*(v-min)/(max-min)
}
