package spatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// GeoPoint is a WGS84 position in decimal degrees
type GeoPoint struct {
	Lat float64
	Lon float64
}

// Route is an ordered sequence of points along a recorded path
type Route []GeoPoint

// LineString converts the route to an orb line string (X=lon, Y=lat)
func (r Route) LineString() orb.LineString {
	ls := make(orb.LineString, len(r))
	for i, p := range r {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	return ls
}

// RouteFromLineString converts an orb line string back to a route
func RouteFromLineString(ls orb.LineString) Route {
	route := make(Route, len(ls))
	for i, p := range ls {
		route[i] = GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
	}
	return route
}

// Resample returns n points evenly spaced by arc length along the route.
// The first and last points of the result are the route's endpoints.
// A route of zero length resamples to n copies of its first point.
func Resample(r Route, n int) Route {
	if n <= 0 || len(r) == 0 {
		return Route{}
	}
	if n == 1 {
		return Route{r[0]}
	}

	ls := r.LineString()
	cumLen := make([]float64, len(ls))
	for i := 1; i < len(ls); i++ {
		cumLen[i] = cumLen[i-1] + planar.Distance(ls[i-1], ls[i])
	}
	totalLen := cumLen[len(cumLen)-1]

	result := make(Route, n)
	if len(ls) < 2 || totalLen == 0 {
		for i := range result {
			result[i] = r[0]
		}
		return result
	}

	result[0] = r[0]
	result[n-1] = r[len(r)-1]

	segIdx := 0
	for i := 1; i < n-1; i++ {
		target := totalLen * float64(i) / float64(n-1)

		// Advance to the segment containing target
		for segIdx < len(cumLen)-2 && cumLen[segIdx+1] < target {
			segIdx++
		}

		segLen := cumLen[segIdx+1] - cumLen[segIdx]
		if segLen == 0 {
			result[i] = r[segIdx]
			continue
		}

		t := (target - cumLen[segIdx]) / segLen
		a, b := ls[segIdx], ls[segIdx+1]
		result[i] = GeoPoint{
			Lat: a.Lat() + t*(b.Lat()-a.Lat()),
			Lon: a.Lon() + t*(b.Lon()-a.Lon()),
		}
	}

	return result
}

// Simplify reduces the route with Ramer-Douglas-Peucker at the given tolerance
// (degrees). Routes with fewer than 3 points, or a non-positive tolerance, are
// returned unchanged.
func Simplify(r Route, tolerance float64) Route {
	if tolerance <= 0 || len(r) < 3 {
		return r
	}

	simplified := simplify.DouglasPeucker(tolerance).Simplify(r.LineString())
	ls, ok := simplified.(orb.LineString)
	if !ok || len(ls) < 2 {
		return r
	}
	return RouteFromLineString(ls)
}
