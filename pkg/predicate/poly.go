package predicate

import (
	"slices"
	"strings"

	"github.com/helixlang/helix/pkg/ident"
)

// Poly is a disjunction of leaves, kept sorted by key with no duplicates. A Poly never mixes
// a literal with other leaves: it is either a single literal or a set of non-literal leaves.
type Poly struct {
	leaves []Leaf
}

func literalPoly(b bool) Poly { return Poly{leaves: []Leaf{boolLit(b)}} }

// NewPoly ors the given leaves together. An empty disjunction is false.
func NewPoly(leaves ...Leaf) Poly {
	p := literalPoly(false)
	for _, l := range leaves {
		p = p.OrLeaf(l)
	}
	return p
}

func (p Poly) Leaves() []Leaf { return slices.Clone(p.leaves) }

func (p Poly) literal() (bool, bool) {
	if len(p.leaves) != 1 {
		return false, false
	}
	lit, ok := p.leaves[0].(Literal)
	return lit.IsTrue, ok
}

func (p Poly) single() (Leaf, bool) {
	if len(p.leaves) != 1 {
		return nil, false
	}
	return p.leaves[0], true
}

func (p Poly) without(i int) Poly {
	rest := make([]Leaf, 0, len(p.leaves)-1)
	rest = append(rest, p.leaves[:i]...)
	return Poly{leaves: append(rest, p.leaves[i+1:]...)}
}

// OrLeaf adds a leaf to the disjunction, merging it with the first existing leaf it
// combines with.
func (p Poly) OrLeaf(leaf Leaf) Poly {
	if b, ok := p.literal(); ok {
		if b {
			return p
		}
		return Poly{leaves: []Leaf{leaf}}
	}
	if lit, ok := leaf.(Literal); ok {
		if lit.IsTrue {
			return literalPoly(true)
		}
		return p
	}
	for i, existing := range p.leaves {
		merged, ok := orLeaves(existing, leaf)
		if !ok {
			continue
		}
		rest := p.without(i)
		if len(rest.leaves) == 0 {
			return Poly{leaves: []Leaf{merged}}
		}
		return rest.OrLeaf(merged)
	}
	leaves := append(slices.Clone(p.leaves), leaf)
	slices.SortFunc(leaves, func(a, b Leaf) int { return strings.Compare(a.Key(), b.Key()) })
	return Poly{leaves: leaves}
}

func (p Poly) Or(other Poly) Poly {
	for _, l := range other.leaves {
		p = p.OrLeaf(l)
	}
	return p
}

// Negate applies De Morgan: not (a or b) is (not a) and (not b).
func (p Poly) Negate() Term {
	t := True()
	for _, l := range p.leaves {
		t = t.AndPoly(NewPoly(l.Negate()))
	}
	return t
}

// subsetOf reports whether every leaf of p also appears in other, in which case p implies other.
func (p Poly) subsetOf(other Poly) bool {
	for _, l := range p.leaves {
		key := l.Key()
		if !slices.ContainsFunc(other.leaves, func(o Leaf) bool { return o.Key() == key }) {
			return false
		}
	}
	return true
}

func (p Poly) UsesVariable(v ident.Path) bool {
	return slices.ContainsFunc(p.leaves, func(l Leaf) bool { return l.UsesVariable(v) })
}

func (p Poly) Key() string {
	keys := make([]string, len(p.leaves))
	for i, l := range p.leaves {
		keys[i] = l.Key()
	}
	return strings.Join(keys, "|")
}

func (p Poly) String() string {
	if len(p.leaves) == 1 {
		return p.leaves[0].String()
	}
	parts := make([]string, len(p.leaves))
	for i, l := range p.leaves {
		parts[i] = l.String()
	}
	return "(" + strings.Join(parts, " or ") + ")"
}
