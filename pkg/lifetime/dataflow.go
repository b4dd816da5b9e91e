package lifetime

import (
	"slices"

	"github.com/nikandfor/tlog"

	"github.com/helixlang/helix/pkg/types"
)

// DataFlowGraph keeps three relations over the same lifetimes: Equality (values assigned to
// each other), Dependence (a value stored into storage that must keep it alive) and Member
// (a struct value and its members). Queries never mix Member edges with the other two.
type DataFlowGraph struct {
	idx *index
}

func NewDataFlowGraph() *DataFlowGraph { return &DataFlowGraph{idx: newIndex()} }

func flows(e edge) bool { return e.kind == EdgeEquality || e.kind == EdgeDependence }

// RecordAssignment makes l1 and l2 outlive each other.
func (g *DataFlowGraph) RecordAssignment(l1, l2 Lifetime, t *types.Type) {
	g.idx.add(l1, l2, EdgeEquality, t)
	g.idx.add(l2, l1, EdgeEquality, t)
	tlog.V("lifetime").Printw("assignment", "l1", l1, "l2", l2, "type", t)
}

// RecordStorage records that l1 depends on l2 staying alive, so l2 outlives l1.
func (g *DataFlowGraph) RecordStorage(l1, l2 Lifetime, t *types.Type) {
	if g.idx.add(l2, l1, EdgeDependence, t) {
		tlog.V("lifetime").Printw("storage", "l1", l1, "l2", l2, "type", t)
	}
}

// RecordMember records that member is a member of the value parent.
func (g *DataFlowGraph) RecordMember(parent, member Lifetime, t *types.Type) {
	g.idx.add(parent, member, EdgeMember, t)
}

// OutlivedBy returns every lifetime l outlives through equality and dependence, l included.
func (g *DataFlowGraph) OutlivedBy(l Lifetime) []Lifetime { return g.idx.walk(l, g.idx.fwd, flows) }

// Precursors returns every lifetime that outlives l, l included.
func (g *DataFlowGraph) Precursors(l Lifetime) []Lifetime { return g.idx.walk(l, g.idx.rev, flows) }

func (g *DataFlowGraph) DoesOutlive(a, b Lifetime) bool {
	return a == b || slices.Contains(g.OutlivedBy(a), b)
}

// AliasedLifetimes returns the lifetimes l was derived from through assignments and stores
// whose carried type still unifies to t. l itself is not reported.
func (g *DataFlowGraph) AliasedLifetimes(l Lifetime, t *types.Type) []Lifetime {
	found := g.idx.walk(l, g.idx.rev, func(e edge) bool {
		return flows(e) && (e.typ == nil || types.CanUnifyTo(e.typ, t))
	})
	return slices.DeleteFunc(found, func(x Lifetime) bool { return x == l })
}

// EquivalentLifetimes returns every lifetime reachable through equality edges, l included.
func (g *DataFlowGraph) EquivalentLifetimes(l Lifetime) []Lifetime {
	return g.idx.walk(l, g.idx.fwd, func(e edge) bool { return e.kind == EdgeEquality })
}

// MemberLifetimes returns the lifetimes recorded for member name of l or of anything
// equivalent to l.
func (g *DataFlowGraph) MemberLifetimes(l Lifetime, name string) []Lifetime {
	var out []Lifetime
	for _, eq := range g.EquivalentLifetimes(l) {
		id, ok := g.idx.lookup(eq)
		if !ok {
			continue
		}
		for _, e := range g.idx.fwd[id] {
			m := g.idx.lifetimes[e.to]
			if e.kind == EdgeMember && m.Path.Last() == name && !slices.Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

func (g *DataFlowGraph) Lifetimes() []Lifetime { return g.idx.all() }
func (g *DataFlowGraph) Dump() string          { return g.idx.dump() }
