package uniqueness

import (
	"math"

	"github.com/jengzang/run-uniqueness/internal/spatial"
)

// Engine computes a non-negative dissimilarity between two routes.
// Prepare is applied once to every route (corpus and query) before Distance.
type Engine interface {
	Name() string
	Prepare(route spatial.Route) spatial.Route
	Distance(a, b spatial.Route) float64
}

// NewEngine builds the engine selected by cfg
func NewEngine(cfg Config) Engine {
	metric := spatial.DistanceFunc(spatial.PlanarDistance)
	if cfg.PointMetric == MetricHaversine {
		metric = spatial.GeodesicDistance
	}

	if cfg.Algorithm == AlgorithmResample {
		points := cfg.ResamplePoints
		if points < 2 {
			points = DefaultResamplePoints
		}
		return &ResampleEngine{Points: points, Metric: metric}
	}
	return &DTWEngine{Window: cfg.DTWWindow, SimplifyTolerance: cfg.SimplifyTolerance, Metric: metric}
}

// DTWEngine aligns routes with dynamic time warping
type DTWEngine struct {
	Window            int // Sakoe-Chiba band half-width, 0 = unconstrained
	SimplifyTolerance float64
	Metric            spatial.DistanceFunc
}

// Name returns the algorithm name
func (e *DTWEngine) Name() string { return AlgorithmDTW }

// Prepare optionally simplifies the route to shrink the cost matrix
func (e *DTWEngine) Prepare(route spatial.Route) spatial.Route {
	return spatial.Simplify(route, e.SimplifyTolerance)
}

// Distance returns the minimal cumulative alignment cost
func (e *DTWEngine) Distance(a, b spatial.Route) float64 {
	return DTW(a, b, e.Metric, e.Window)
}

// DTW computes the dynamic time warping distance between a and b.
// Each step advances one or both sequences and costs metric(a[i], b[j]);
// the result is the minimal total cost of a monotonic path from
// (a[0], b[0]) to (a[n-1], b[m-1]). window > 0 restricts |i-j| to the band,
// widened to |n-m| so that a path always exists.
func DTW(a, b spatial.Route, metric spatial.DistanceFunc, window int) float64 {
	n, m := len(a), len(b)
	if n == 0 && m == 0 {
		return 0
	}
	if n == 0 || m == 0 {
		return math.Inf(1)
	}
	if metric == nil {
		metric = spatial.PlanarDistance
	}

	w := max(n, m)
	if window > 0 {
		w = max(window, abs(n-m))
	}

	inf := math.Inf(1)
	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := range prev {
		prev[j] = inf
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		for j := range curr {
			curr[j] = inf
		}
		lo := max(1, i-w)
		hi := min(m, i+w)
		for j := lo; j <= hi; j++ {
			best := prev[j-1] // diagonal
			if prev[j] < best {
				best = prev[j] // advance a only
			}
			if curr[j-1] < best {
				best = curr[j-1] // advance b only
			}
			curr[j] = metric(a[i-1], b[j-1]) + best
		}
		prev, curr = curr, prev
	}

	return prev[m]
}

// ResampleEngine compares routes resampled to a fixed point count
type ResampleEngine struct {
	Points int
	Metric spatial.DistanceFunc
}

// Name returns the algorithm name
func (e *ResampleEngine) Name() string { return AlgorithmResample }

// Prepare resamples the route by arc length
func (e *ResampleEngine) Prepare(route spatial.Route) spatial.Route {
	return spatial.Resample(route, e.Points)
}

// Distance returns the mean point-wise distance between prepared routes
func (e *ResampleEngine) Distance(a, b spatial.Route) float64 {
	return MeanPointDistance(a, b, e.Metric)
}

// MeanPointDistance averages metric over index-aligned pairs, truncating to
// the shorter route
func MeanPointDistance(a, b spatial.Route, metric spatial.DistanceFunc) float64 {
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	if metric == nil {
		metric = spatial.PlanarDistance
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += metric(a[i], b[i])
	}
	return sum / float64(n)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
