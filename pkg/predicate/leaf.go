// Package predicate implements the CNF algebra the checker attaches to boolean and word
// values. It is a sound but incomplete simplifier: leaf pairs it does not understand are
// kept side by side instead of being combined.
package predicate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/helixlang/helix/pkg/ident"
)

// Leaf is an atomic fact. The set of leaves is closed: Literal, BoolVar, WordVar, UnionTag.
type Leaf interface {
	isLeaf()
	Negate() Leaf
	TryAnd(other Leaf) (Leaf, bool)
	TryOr(other Leaf) (Leaf, bool)
	UsesVariable(v ident.Path) bool
	TryImplication() (Implication, bool)
	Key() string
	String() string
}

type Literal struct{ IsTrue bool }

// BoolVar is "Var == true", or "Var == false" when negated.
type BoolVar struct {
	Var     ident.Path
	Negated bool
}

// WordVar is "Var == Value", or "Var != Value" when negated.
type WordVar struct {
	Var     ident.Path
	Value   int64
	Negated bool
}

// UnionTag is "Var is one of Members". All lists every member of the union in declaration
// order and Members is always a subset of All kept in that same order.
type UnionTag struct {
	Var     ident.Path
	Union   string
	All     []string
	Members []string
}

func (Literal) isLeaf()  {}
func (BoolVar) isLeaf()  {}
func (WordVar) isLeaf()  {}
func (UnionTag) isLeaf() {}

var (
	litTrue  Leaf = Literal{IsTrue: true}
	litFalse Leaf = Literal{IsTrue: false}
)

func boolLit(b bool) Leaf {
	if b {
		return litTrue
	}
	return litFalse
}

// NewUnionTag builds a tag test, collapsing to a literal when members is empty or covers
// the whole union.
func NewUnionTag(v ident.Path, union string, all []string, members ...string) Leaf {
	var kept []string
	for _, name := range all {
		if slices.Contains(members, name) {
			kept = append(kept, name)
		}
	}
	switch len(kept) {
	case 0: return litFalse
	case len(all): return litTrue
	}
	return UnionTag{Var: v, Union: union, All: slices.Clone(all), Members: kept}
}

// trivialAnd covers the cases every leaf shares: literals and identical leaves.
func trivialAnd(self, other Leaf) (Leaf, bool) {
	if lit, ok := other.(Literal); ok {
		if lit.IsTrue {
			return self, true
		}
		return litFalse, true
	}
	if self.Key() == other.Key() {
		return self, true
	}
	return nil, false
}

func trivialOr(self, other Leaf) (Leaf, bool) {
	if lit, ok := other.(Literal); ok {
		if lit.IsTrue {
			return litTrue, true
		}
		return self, true
	}
	if self.Key() == other.Key() {
		return self, true
	}
	return nil, false
}

// Literal

func (l Literal) Negate() Leaf { return boolLit(!l.IsTrue) }

func (l Literal) TryAnd(other Leaf) (Leaf, bool) {
	if l.IsTrue {
		return other, true
	}
	return litFalse, true
}

func (l Literal) TryOr(other Leaf) (Leaf, bool) {
	if l.IsTrue {
		return litTrue, true
	}
	return other, true
}

func (Literal) UsesVariable(ident.Path) bool        { return false }
func (Literal) TryImplication() (Implication, bool) { return Implication{}, false }
func (l Literal) Key() string                       { return "0:" + l.String() }
func (l Literal) String() string {
	if l.IsTrue {
		return "true"
	}
	return "false"
}

// BoolVar

func (b BoolVar) Negate() Leaf { return BoolVar{Var: b.Var, Negated: !b.Negated} }

func (b BoolVar) TryAnd(other Leaf) (Leaf, bool) {
	if r, ok := trivialAnd(b, other); ok {
		return r, true
	}
	if o, ok := other.(BoolVar); ok && o.Var == b.Var && o.Negated != b.Negated {
		return litFalse, true
	}
	return nil, false
}

func (b BoolVar) TryOr(other Leaf) (Leaf, bool) {
	if r, ok := trivialOr(b, other); ok {
		return r, true
	}
	if o, ok := other.(BoolVar); ok && o.Var == b.Var && o.Negated != b.Negated {
		return litTrue, true
	}
	return nil, false
}

func (b BoolVar) UsesVariable(v ident.Path) bool { return b.Var == v }

func (b BoolVar) TryImplication() (Implication, bool) {
	return Implication{Var: b.Var, Kind: ImpliesBool, Bool: !b.Negated}, true
}

func (b BoolVar) Key() string { return fmt.Sprintf("1:%s:%t", b.Var, b.Negated) }

func (b BoolVar) String() string {
	if b.Negated {
		return "!" + b.Var.Last()
	}
	return b.Var.Last()
}

// WordVar

func (w WordVar) Negate() Leaf { return WordVar{Var: w.Var, Value: w.Value, Negated: !w.Negated} }

func (w WordVar) TryAnd(other Leaf) (Leaf, bool) {
	if r, ok := trivialAnd(w, other); ok {
		return r, true
	}
	o, ok := other.(WordVar)
	if !ok || o.Var != w.Var {
		return nil, false
	}
	switch {
	case o.Value == w.Value && o.Negated != w.Negated:
		return litFalse, true
	case !w.Negated && !o.Negated:
		// two different exact values
		return litFalse, true
	case !w.Negated && o.Negated:
		return w, true
	case w.Negated && !o.Negated:
		return o, true
	}
	return nil, false
}

func (w WordVar) TryOr(other Leaf) (Leaf, bool) {
	if r, ok := trivialOr(w, other); ok {
		return r, true
	}
	o, ok := other.(WordVar)
	if !ok || o.Var != w.Var {
		return nil, false
	}
	switch {
	case o.Value == w.Value && o.Negated != w.Negated:
		return litTrue, true
	case w.Negated && o.Negated:
		return litTrue, true
	case !w.Negated && o.Negated:
		return o, true
	case w.Negated && !o.Negated:
		return w, true
	}
	return nil, false
}

func (w WordVar) UsesVariable(v ident.Path) bool { return w.Var == v }

func (w WordVar) TryImplication() (Implication, bool) {
	if w.Negated {
		return Implication{}, false
	}
	return Implication{Var: w.Var, Kind: ImpliesWord, Word: w.Value}, true
}

func (w WordVar) Key() string { return fmt.Sprintf("2:%s:%d:%t", w.Var, w.Value, w.Negated) }

func (w WordVar) String() string {
	if w.Negated {
		return fmt.Sprintf("%s != %d", w.Var.Last(), w.Value)
	}
	return fmt.Sprintf("%s == %d", w.Var.Last(), w.Value)
}

// UnionTag

func (u UnionTag) Negate() Leaf {
	var rest []string
	for _, name := range u.All {
		if !slices.Contains(u.Members, name) {
			rest = append(rest, name)
		}
	}
	return NewUnionTag(u.Var, u.Union, u.All, rest...)
}

func (u UnionTag) sameTarget(other Leaf) (UnionTag, bool) {
	o, ok := other.(UnionTag)
	if !ok || o.Var != u.Var || o.Union != u.Union {
		return UnionTag{}, false
	}
	return o, true
}

func (u UnionTag) TryAnd(other Leaf) (Leaf, bool) {
	if r, ok := trivialAnd(u, other); ok {
		return r, true
	}
	o, ok := u.sameTarget(other)
	if !ok {
		return nil, false
	}
	var overlap []string
	for _, name := range u.Members {
		if slices.Contains(o.Members, name) {
			overlap = append(overlap, name)
		}
	}
	return NewUnionTag(u.Var, u.Union, u.All, overlap...), true
}

func (u UnionTag) TryOr(other Leaf) (Leaf, bool) {
	if r, ok := trivialOr(u, other); ok {
		return r, true
	}
	o, ok := u.sameTarget(other)
	if !ok {
		return nil, false
	}
	return NewUnionTag(u.Var, u.Union, u.All, append(slices.Clone(u.Members), o.Members...)...), true
}

func (u UnionTag) UsesVariable(v ident.Path) bool { return u.Var == v }

func (u UnionTag) TryImplication() (Implication, bool) {
	if len(u.Members) != 1 {
		return Implication{}, false
	}
	return Implication{
		Var:    u.Var,
		Kind:   ImpliesTag,
		Union:  u.Union,
		Member: u.Members[0],
		Tag:    slices.Index(u.All, u.Members[0]),
	}, true
}

func (u UnionTag) Key() string {
	return fmt.Sprintf("3:%s:%s:%s", u.Var, u.Union, strings.Join(u.Members, ","))
}

func (u UnionTag) String() string {
	if len(u.Members) == 1 {
		return u.Var.Last() + " is " + u.Members[0]
	}
	return u.Var.Last() + " is { " + strings.Join(u.Members, "; ") + " }"
}

// andLeaves and orLeaves try both receivers, since each leaf only knows its own kind.
func andLeaves(a, b Leaf) (Leaf, bool) {
	if r, ok := a.TryAnd(b); ok {
		return r, true
	}
	return b.TryAnd(a)
}

func orLeaves(a, b Leaf) (Leaf, bool) {
	if r, ok := a.TryOr(b); ok {
		return r, true
	}
	return b.TryOr(a)
}
