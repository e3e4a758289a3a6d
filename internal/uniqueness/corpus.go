package uniqueness

import (
	"sort"

	"github.com/jengzang/run-uniqueness/internal/logging"
	"github.com/jengzang/run-uniqueness/internal/models"
	"github.com/jengzang/run-uniqueness/internal/polyline"
	"github.com/jengzang/run-uniqueness/internal/spatial"
)

// Reference is one historical route in the corpus
type Reference struct {
	ID    string
	Date  string
	Route spatial.Route // prepared by the engine
}

// Corpus is the read-only set of reference routes, ordered by id.
// It is safe for concurrent use once built.
type Corpus struct {
	engine string
	refs   []Reference
}

// BuildCorpus decodes and prepares every activity that has a usable route.
// Activities without a route, or with an undecodable one, are left out.
func BuildCorpus(engine Engine, activities []models.Activity) *Corpus {
	refs := make([]Reference, 0, len(activities))
	seen := make(map[string]bool, len(activities))

	for i := range activities {
		activity := &activities[i]
		route, err := polyline.DecodeActivity(activity)
		if err != nil {
			logging.Warn().Err(err).Str("activity_id", activity.ID.String()).Msg("skipping undecodable reference route")
			continue
		}
		if len(route) == 0 {
			continue
		}

		id := activity.ID.String()
		if seen[id] {
			logging.Warn().Str("activity_id", id).Msg("duplicate reference id, keeping first")
			continue
		}
		seen[id] = true

		refs = append(refs, Reference{
			ID:    id,
			Date:  activity.DisplayDate(),
			Route: engine.Prepare(route),
		})
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })

	return &Corpus{engine: engine.Name(), refs: refs}
}

// Len returns the number of reference routes
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.refs)
}

// Engine returns the name of the engine that prepared the routes
func (c *Corpus) Engine() string {
	if c == nil {
		return ""
	}
	return c.engine
}

// each calls fn for every reference in id order
func (c *Corpus) each(fn func(ref *Reference)) {
	if c == nil {
		return
	}
	for i := range c.refs {
		fn(&c.refs[i])
	}
}
