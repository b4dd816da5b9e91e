package lifetime

import (
	"fmt"
	"slices"
	"strings"

	"github.com/helixlang/helix/pkg/types"
)

// EdgeKind separates the relations a DataFlowGraph keeps side by side.
type EdgeKind int

const (
	EdgeOutlives EdgeKind = iota
	EdgeEquality
	EdgeDependence
	EdgeMember
)

var edgeKindNames = [...]string{"outlives", "equality", "dependence", "member"}

func (k EdgeKind) String() string { return edgeKindNames[k] }

type edge struct {
	to   int
	kind EdgeKind
	typ  *types.Type
}

// index interns lifetimes to dense handles and keeps a forward adjacency list with a
// mirrored reverse list. Both lists are appended together so they never drift apart.
type index struct {
	ids       map[Lifetime]int
	lifetimes []Lifetime
	fwd, rev  [][]edge
}

func newIndex() *index { return &index{ids: make(map[Lifetime]int)} }

func (x *index) intern(l Lifetime) int {
	if id, ok := x.ids[l]; ok {
		return id
	}
	id := len(x.lifetimes)
	x.ids[l] = id
	x.lifetimes = append(x.lifetimes, l)
	x.fwd = append(x.fwd, nil)
	x.rev = append(x.rev, nil)
	return id
}

func (x *index) lookup(l Lifetime) (int, bool) {
	id, ok := x.ids[l]
	return id, ok
}

// add records from -> to. None endpoints and self edges are dropped, duplicates ignored.
func (x *index) add(from, to Lifetime, kind EdgeKind, typ *types.Type) bool {
	if from.IsNone() || to.IsNone() || from == to {
		return false
	}
	f, t := x.intern(from), x.intern(to)
	for _, e := range x.fwd[f] {
		if e.to == t && e.kind == kind && e.typ.Equal(typ) {
			return false
		}
	}
	x.fwd[f] = append(x.fwd[f], edge{to: t, kind: kind, typ: typ})
	x.rev[t] = append(x.rev[t], edge{to: f, kind: kind, typ: typ})
	return true
}

// walk runs an iterative DFS from start over adj, following only edges accepted by follow.
// The start node is included in the result.
func (x *index) walk(start Lifetime, adj [][]edge, follow func(edge) bool) []Lifetime {
	id, ok := x.lookup(start)
	if !ok {
		if start.IsNone() {
			return nil
		}
		return []Lifetime{start}
	}
	visited := make([]bool, len(x.lifetimes))
	visited[id] = true
	stack := []int{id}
	var out []Lifetime
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, x.lifetimes[n])
		for _, e := range adj[n] {
			if !visited[e.to] && follow(e) {
				visited[e.to] = true
				stack = append(stack, e.to)
			}
		}
	}
	return out
}

func (x *index) all() []Lifetime { return slices.Clone(x.lifetimes) }

// dump renders every edge once, sorted, for debugging and snapshot tests.
func (x *index) dump() string {
	var lines []string
	for f, edges := range x.fwd {
		for _, e := range edges {
			line := fmt.Sprintf("%s -> %s [%s]", x.lifetimes[f], x.lifetimes[e.to], e.kind)
			if e.typ != nil {
				line += " " + e.typ.String()
			}
			lines = append(lines, line)
		}
	}
	slices.Sort(lines)
	return strings.Join(lines, "\n")
}
