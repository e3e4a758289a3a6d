package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// ActivityID is an activity identifier that may arrive as a JSON string or number
type ActivityID string

// UnmarshalJSON accepts "123", 123 and null
func (id *ActivityID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid activity id %s: %w", string(b), err)
		}
		*id = ActivityID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid activity id %s: %w", string(b), err)
	}
	// Large Strava ids must not be rendered in exponent form
	if i, err := n.Int64(); err == nil {
		*id = ActivityID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ActivityID(n.String())
	return nil
}

// String returns the id as a plain string
func (id ActivityID) String() string {
	return string(id)
}

// ActivityMap holds the encoded route of an activity
type ActivityMap struct {
	SummaryPolyline *string `json:"summary_polyline,omitempty"`
	Polyline        *string `json:"polyline,omitempty"`
}

// Activity represents a recorded activity as exported from Strava
type Activity struct {
	ID             ActivityID   `json:"id,omitempty" db:"id"`
	Name           string       `json:"name,omitempty" db:"name"`
	Type           string       `json:"type,omitempty" db:"type"`
	StartDate      string       `json:"start_date,omitempty" db:"start_date"`
	StartDateLocal string       `json:"start_date_local,omitempty" db:"start_date_local"`
	Distance       float64      `json:"distance,omitempty" db:"distance"`       // meters
	MovingTime     int          `json:"moving_time,omitempty" db:"moving_time"` // seconds
	Map            *ActivityMap `json:"map,omitempty"`
}

// EncodedRoute returns the encoded polyline to use for this activity.
// summary_polyline wins over polyline; empty strings count as absent.
func (a *Activity) EncodedRoute() (string, bool) {
	if a == nil || a.Map == nil {
		return "", false
	}
	if a.Map.SummaryPolyline != nil && *a.Map.SummaryPolyline != "" {
		return *a.Map.SummaryPolyline, true
	}
	if a.Map.Polyline != nil && *a.Map.Polyline != "" {
		return *a.Map.Polyline, true
	}
	return "", false
}

// DisplayDate returns the local start date, falling back to the UTC one
func (a *Activity) DisplayDate() string {
	if a.StartDateLocal != "" {
		return a.StartDateLocal
	}
	return a.StartDate
}

// ActivityFilter represents filter parameters for listing stored activities
type ActivityFilter struct {
	WithoutUniqueness bool   `form:"withoutUniqueness"`
	Type              string `form:"type"`
	Limit             int    `form:"limit"`
	Offset            int    `form:"offset"`
}
