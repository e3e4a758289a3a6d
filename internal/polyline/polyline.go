// Package polyline decodes and encodes routes in Google's encoded polyline
// format (5 decimal places).
package polyline

import (
	"errors"
	"fmt"

	gopolyline "github.com/twpayne/go-polyline"

	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/spatial"
)

// ErrMalformed is returned for strings that are not valid polyline encoding
var ErrMalformed = errors.New("malformed polyline")

// Precision is the coordinate resolution of the encoding in degrees
const Precision = 1e-5

// Decode decodes an encoded polyline into an ordered route.
// An empty string decodes to an empty route.
func Decode(encoded string) (spatial.Route, error) {
	if encoded == "" {
		return spatial.Route{}, nil
	}

	coords, rest, err := gopolyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}

	route := make(spatial.Route, 0, len(coords))
	for _, c := range coords {
		route = append(route, spatial.GeoPoint{Lat: c[0], Lon: c[1]})
	}
	return route, nil
}

// Encode encodes a route into a polyline string
func Encode(route spatial.Route) string {
	coords := make([][]float64, len(route))
	for i, p := range route {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(gopolyline.EncodeCoords(coords))
}

// DecodeActivity returns the route of an activity, preferring summary_polyline.
// It returns (nil, nil) when the activity carries no route at all; malformed
// encodings are returned as errors.
func DecodeActivity(activity *models.Activity) (spatial.Route, error) {
	encoded, ok := activity.EncodedRoute()
	if !ok {
		return nil, nil
	}

	route, err := Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", activity.ID, err)
	}
	if len(route) == 0 {
		return nil, nil
	}
	return route, nil
}
