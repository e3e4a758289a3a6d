package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// PlanarDistance treats (lat, lon) as plane coordinates and returns the
// Euclidean distance in degrees
func PlanarDistance(a, b GeoPoint) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// GeodesicDistance returns the great-circle distance between two points in meters
func GeodesicDistance(a, b GeoPoint) float64 {
	return HaversineDistance(a.Lat, a.Lon, b.Lat, b.Lon)
}

// DistanceFunc measures the cost of aligning two points
type DistanceFunc func(a, b GeoPoint) float64
