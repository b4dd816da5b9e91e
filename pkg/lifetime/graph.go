package lifetime

import (
	"slices"

	"github.com/nikandfor/tlog"
)

// LifetimeGraph records outlives obligations. An edge a -> b means a must live at least as
// long as b.
type LifetimeGraph struct {
	idx *index
}

func NewLifetimeGraph() *LifetimeGraph { return &LifetimeGraph{idx: newIndex()} }

func always(edge) bool { return true }

// RequireOutlives records that a must outlive b.
func (g *LifetimeGraph) RequireOutlives(a, b Lifetime) {
	if g.idx.add(a, b, EdgeOutlives, nil) {
		tlog.V("lifetime").Printw("require outlives", "a", a, "b", b)
	}
}

// OutlivedBy returns every lifetime a outlives, a included.
func (g *LifetimeGraph) OutlivedBy(a Lifetime) []Lifetime { return g.idx.walk(a, g.idx.fwd, always) }

// OutlivedByVia is OutlivedBy restricted to paths whose every step lands on a lifetime
// accepted by keep.
func (g *LifetimeGraph) OutlivedByVia(a Lifetime, keep func(Lifetime) bool) []Lifetime {
	return g.idx.walk(a, g.idx.fwd, func(e edge) bool { return keep(g.idx.lifetimes[e.to]) })
}

// Precursors returns every lifetime that outlives a, a included.
func (g *LifetimeGraph) Precursors(a Lifetime) []Lifetime { return g.idx.walk(a, g.idx.rev, always) }

func (g *LifetimeGraph) DoesOutlive(a, b Lifetime) bool {
	return a == b || slices.Contains(g.OutlivedBy(a), b)
}

func (g *LifetimeGraph) Lifetimes() []Lifetime { return g.idx.all() }
func (g *LifetimeGraph) Dump() string          { return g.idx.dump() }
