// Package route finds the shortest chain of import/export hops that turns one
// MIME type into another.
//
// Hops alternate between the two sides of the catalog: a native type can only
// be exported, an external type can only be imported. The search is bounded to
// MaxHops conversion steps; pairs further apart are reported as unreachable.
package route

import (
	"github.com/mrlokans/mimeroute/internal/formats"
)

// MaxHops is the longest route the finder will consider.
const MaxHops = 4

// Conversion is the kind of backend operation a hop performs.
type Conversion string

const (
	Import Conversion = "import"
	Export Conversion = "export"
)

// Opposite returns the conversion that follows c in an alternating route.
func (c Conversion) Opposite() Conversion {
	if c == Import {
		return Export
	}
	return Import
}

// Hop is one conversion step.
type Hop struct {
	To      string     `json:"to"`
	Convert Conversion `json:"convert"`
}

// Route is an ordered chain of hops starting at From.
//
// The zero Route means no route exists. A Route with From set and no hops is
// the no-op route between identical types.
type Route struct {
	From string `json:"from,omitempty"`
	Hops []Hop  `json:"hops,omitempty"`
}

// Found reports whether the route connects its endpoints.
func (r Route) Found() bool { return r.From != "" }

// IsNoop reports whether the route requires no conversion.
func (r Route) IsNoop() bool { return r.Found() && len(r.Hops) == 0 }

// Len returns the number of conversion steps.
func (r Route) Len() int { return len(r.Hops) }

// To returns the type the route ends at.
func (r Route) To() string {
	if len(r.Hops) == 0 {
		return r.From
	}
	return r.Hops[len(r.Hops)-1].To
}

// Types flattens the route into the sequence of types it passes through,
// starting with the source. An unreachable route yields nil.
func (r Route) Types() []string {
	if !r.Found() {
		return nil
	}
	types := make([]string, 0, len(r.Hops)+1)
	types = append(types, r.From)
	for _, h := range r.Hops {
		types = append(types, h.To)
	}
	return types
}

// adjacency returns the types reachable from t with a single conversion of kind c.
func adjacency(c *formats.Catalog, kind Conversion, t string) []string {
	if kind == Import {
		return c.Import[t]
	}
	return c.Export[t]
}

// partial is a route under construction during the search.
type partial struct {
	at   string
	next Conversion
	hops []Hop
}

// Find returns the shortest route from src to dst in catalog c.
//
// Routes are expanded breadth-first, one level per hop, in the order the
// backend lists its formats. The first route to reach dst on the shallowest
// level wins, so among equally short routes the earliest enumerated one is
// returned.
func Find(src, dst string, c *formats.Catalog) Route {
	if src == dst {
		return Route{From: src}
	}
	if c == nil {
		return Route{}
	}

	var primary Conversion
	switch {
	case c.IsExportable(src):
		primary = Export
	case c.IsImportable(src):
		primary = Import
	default:
		return Route{}
	}

	frontier := []partial{{at: src, next: primary}}
	for depth := 1; depth <= MaxHops && len(frontier) > 0; depth++ {
		var nextFrontier []partial
		for _, p := range frontier {
			for _, to := range adjacency(c, p.next, p.at) {
				if to == p.at {
					continue
				}
				hops := make([]Hop, len(p.hops)+1)
				copy(hops, p.hops)
				hops[len(p.hops)] = Hop{To: to, Convert: p.next}

				if to == dst {
					return Route{From: src, Hops: hops}
				}
				nextFrontier = append(nextFrontier, partial{at: to, next: p.next.Opposite(), hops: hops})
			}
		}
		frontier = nextFrontier
	}

	return Route{}
}
