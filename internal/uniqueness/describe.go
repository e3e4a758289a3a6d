package uniqueness

import (
	"math"
	"sort"

	"github.com/jengzang/run-uniqueness/internal/stats"
)

// Describer maps scores onto an ordered word ladder
type Describer struct {
	// Words are ordered from least to most unique
	Words []string
	// AscendingWithScore maps UniquenessMin to Words[0] and UniquenessMax to
	// the last word; false reverses the ladder.
	AscendingWithScore bool
}

// NewDescriber returns a describer over the default ladder
func NewDescriber(ascending bool) Describer {
	return Describer{Words: Words, AscendingWithScore: ascending}
}

// Describe picks a word by the score's linear position in [Min, Max].
// It returns nil for a nil score or an empty ladder.
func (d Describer) Describe(score *float64) *string {
	if score == nil || len(d.Words) == 0 {
		return nil
	}

	normalized := (*score - UniquenessMin) / (UniquenessMax - UniquenessMin)
	if !d.AscendingWithScore {
		normalized = 1 - normalized
	}
	index := int(math.Floor(normalized * float64(len(d.Words)-1)))
	return d.word(index)
}

// DescribeByRank picks a word by the score's percentile rank within
// population (bisect-right position / population size).
func (d Describer) DescribeByRank(score *float64, population []float64) *string {
	if score == nil || len(d.Words) == 0 {
		return nil
	}
	if len(population) == 0 {
		return d.Describe(score)
	}

	sorted := make([]float64, len(population))
	copy(sorted, population)
	sort.Float64s(sorted)

	rank := stats.SortedRank(sorted, *score)
	if !d.AscendingWithScore {
		rank = 1 - rank
	}
	index := int(rank * float64(len(d.Words)))
	return d.word(index)
}

func (d Describer) word(index int) *string {
	if index < 0 {
		index = 0
	}
	if index > len(d.Words)-1 {
		index = len(d.Words) - 1
	}
	w := d.Words[index]
	return &w
}
