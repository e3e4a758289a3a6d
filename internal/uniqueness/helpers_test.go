package uniqueness

import (
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
	"github.com/jengzang/run-uniqueness/internal/spatial"
)

// line returns n points eastward from (lat, lon) spaced step degrees apart
func line(lat, lon, step float64, n int) spatial.Route {
	r := make(spatial.Route, n)
	for i := range r {
		r[i] = spatial.GeoPoint{Lat: lat, Lon: lon + float64(i)*step}
	}
	return r
}

func activityWith(id string, route spatial.Route) models.Activity {
	encoded := polyline.Encode(route)
	return models.Activity{
		ID:             models.ActivityID(id),
		StartDateLocal: "2024-01-" + id,
		Map:            &models.ActivityMap{SummaryPolyline: &encoded},
	}
}

func activityWithPolyline(id, encoded string) models.Activity {
	return models.Activity{
		ID:  models.ActivityID(id),
		Map: &models.ActivityMap{SummaryPolyline: &encoded},
	}
}

func floatPtr(v float64) *float64 { return &v }
