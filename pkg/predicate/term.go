package predicate

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/helixlang/helix/pkg/ident"
)

// Term is a conjunction of polys. The empty conjunction is true; false is a single poly
// holding the false literal. Terms are immutable values: every operation returns a new Term.
type Term struct {
	polys []Poly
}

type ImplicationKind int

const (
	ImpliesBool ImplicationKind = iota
	ImpliesWord
	ImpliesTag
)

// Implication is a fact that must hold for one variable whenever the term holds.
type Implication struct {
	Var    ident.Path
	Kind   ImplicationKind
	Bool   bool
	Word   int64
	Union  string
	Member string
	Tag    int
}

func True() Term  { return Term{} }
func False() Term { return Term{polys: []Poly{literalPoly(false)}} }

func FromLeaf(l Leaf) Term { return True().AndPoly(NewPoly(l)) }
func FromBool(b bool) Term { return FromLeaf(boolLit(b)) }

func (t Term) IsTrue() bool { return len(t.polys) == 0 }

func (t Term) IsFalse() bool {
	if len(t.polys) != 1 {
		return false
	}
	b, ok := t.polys[0].literal()
	return ok && !b
}

func (t Term) Polys() []Poly { return slices.Clone(t.polys) }

func (t Term) without(i int) Term {
	rest := make([]Poly, 0, len(t.polys)-1)
	rest = append(rest, t.polys[:i]...)
	return Term{polys: append(rest, t.polys[i+1:]...)}
}

// AndPoly adds one clause. Single-leaf clauses are first folded into an existing
// single-leaf clause when the two leaves combine; then subsumed clauses are dropped.
func (t Term) AndPoly(p Poly) Term {
	if t.IsFalse() {
		return t
	}
	if b, ok := p.literal(); ok {
		if b {
			return t
		}
		return False()
	}
	if leaf, ok := p.single(); ok {
		for i, c := range t.polys {
			existing, ok := c.single()
			if !ok {
				continue
			}
			if merged, ok := andLeaves(existing, leaf); ok {
				return t.without(i).AndPoly(NewPoly(merged))
			}
		}
	}
	for _, c := range t.polys {
		if c.subsetOf(p) {
			return t
		}
	}
	polys := make([]Poly, 0, len(t.polys)+1)
	for _, c := range t.polys {
		if !p.subsetOf(c) {
			polys = append(polys, c)
		}
	}
	polys = append(polys, p)
	slices.SortFunc(polys, func(a, b Poly) int { return strings.Compare(a.Key(), b.Key()) })
	return Term{polys: polys}
}

func (t Term) And(other Term) Term {
	if other.IsFalse() {
		return other
	}
	for _, p := range other.polys {
		t = t.AndPoly(p)
	}
	return t
}

func (t Term) orPoly(p Poly) Term {
	result := True()
	for _, c := range t.polys {
		result = result.AndPoly(c.Or(p))
	}
	return result
}

// Or distributes: (a and b) or (c and d) is (a or c)(a or d)(b or c)(b or d).
func (t Term) Or(other Term) Term {
	switch {
	case t.IsTrue() || other.IsFalse():
		return t
	case other.IsTrue() || t.IsFalse():
		return other
	}
	if len(other.polys) == 1 {
		return t.orPoly(other.polys[0])
	}
	if len(t.polys) == 1 {
		return other.orPoly(t.polys[0])
	}
	result := True()
	for _, a := range t.polys {
		for _, b := range other.polys {
			result = result.AndPoly(a.Or(b))
		}
	}
	return result
}

func (t Term) Negate() Term {
	switch {
	case t.IsTrue():
		return False()
	case t.IsFalse():
		return True()
	}
	result := t.polys[0].Negate()
	for _, p := range t.polys[1:] {
		result = result.Or(p.Negate())
	}
	return result
}

// Xor is (a or b) and not (a and b).
func (t Term) Xor(other Term) Term {
	return t.Or(other).And(t.And(other).Negate())
}

// Implications collects the facts of every single-leaf clause, ordered by variable.
func (t Term) Implications() []Implication {
	var out []Implication
	for _, p := range t.polys {
		leaf, ok := p.single()
		if !ok {
			continue
		}
		if impl, ok := leaf.TryImplication(); ok {
			out = append(out, impl)
		}
	}
	slices.SortStableFunc(out, func(a, b Implication) int { return strings.Compare(string(a.Var), string(b.Var)) })
	return out
}

func (t Term) UsesVariable(v ident.Path) bool {
	return slices.ContainsFunc(t.polys, func(p Poly) bool { return p.UsesVariable(v) })
}

// Without drops every clause that mentions v. Dropping clauses only weakens the term,
// which keeps it sound after v is reassigned.
func (t Term) Without(v ident.Path) Term {
	result := True()
	for _, p := range t.polys {
		if !p.UsesVariable(v) {
			result = result.AndPoly(p)
		}
	}
	return result
}

func (t Term) Key() string {
	keys := make([]string, len(t.polys))
	for i, p := range t.polys {
		keys[i] = p.Key()
	}
	return strings.Join(keys, "&")
}

func (t Term) Hash() uint64          { return xxhash.Sum64String(t.Key()) }
func (t Term) Equal(other Term) bool { return t.Key() == other.Key() }

func (t Term) String() string {
	if t.IsTrue() {
		return "true"
	}
	parts := make([]string, len(t.polys))
	for i, p := range t.polys {
		parts[i] = p.String()
	}
	return strings.Join(parts, " and ")
}
