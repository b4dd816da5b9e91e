package typeChecker

import (
	"slices"

	"github.com/benbjohnson/immutable"

	"github.com/helixlang/helix/pkg/ident"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/predicate"
	"github.com/helixlang/helix/pkg/types"
)

// Variable is one declared name. Variables are immutable once stored in a frame; updates
// replace the pointer.
type Variable struct {
	Name     string
	Path     ident.Path
	Declared *types.Type // type of the storage
	Current  *types.Type // flow-narrowed type at this point
	Value    lifetime.Lifetime
	Location lifetime.Lifetime
	IsParam  bool

	// Set on flow variables: the union variable they downcast and the member selected.
	FlowOf ident.Path
	Member string
}

func (v *Variable) with(fn func(*Variable)) *Variable {
	c := *v
	fn(&c)
	return &c
}

// TypeFrame is the checker's view of one scope. Its maps are persistent, so Fork is a
// struct copy and sibling frames never observe each other's changes.
type TypeFrame struct {
	Scope ident.Path
	Facts predicate.Term
	Flow  *lifetime.DataFlowGraph

	vars      *immutable.Map[ident.Path, *Variable]
	names     *immutable.Map[string, ident.Path]
	preds     *immutable.Map[ident.Path, predicate.Term]
	addressed *immutable.Map[ident.Path, bool]
}

func NewTypeFrame(scope ident.Path, flow *lifetime.DataFlowGraph) *TypeFrame {
	return &TypeFrame{
		Scope:     scope,
		Facts:     predicate.True(),
		Flow:      flow,
		vars:      immutable.NewMap[ident.Path, *Variable](ident.Hasher{}),
		names:     immutable.NewMap[string, ident.Path](nil),
		preds:     immutable.NewMap[ident.Path, predicate.Term](ident.Hasher{}),
		addressed: immutable.NewMap[ident.Path, bool](ident.Hasher{}),
	}
}

// Fork returns an independent child frame one scope segment deeper.
func (f *TypeFrame) Fork(segment string) *TypeFrame {
	c := *f
	c.Scope = f.Scope.Append(segment)
	return &c
}

func (f *TypeFrame) Declare(v *Variable) {
	f.vars = f.vars.Set(v.Path, v)
	f.names = f.names.Set(v.Name, v.Path)
}

// Update replaces a variable already visible in the frame without touching name resolution.
func (f *TypeFrame) Update(v *Variable) { f.vars = f.vars.Set(v.Path, v) }

func (f *TypeFrame) Lookup(path ident.Path) (*Variable, bool) { return f.vars.Get(path) }

func (f *TypeFrame) Resolve(name string) (*Variable, bool) {
	path, ok := f.names.Get(name)
	if !ok {
		return nil, false
	}
	return f.vars.Get(path)
}

func (f *TypeFrame) Predicate(path ident.Path) (predicate.Term, bool) { return f.preds.Get(path) }

func (f *TypeFrame) SetPredicate(path ident.Path, p predicate.Term) {
	f.preds = f.preds.Set(path, p)
}

func (f *TypeFrame) IsAddressed(path ident.Path) bool {
	_, ok := f.addressed.Get(path)
	return ok
}

// MarkAddressed records that path may now be changed through an alias, which also makes
// every fact about it unreliable.
func (f *TypeFrame) MarkAddressed(path ident.Path) {
	f.addressed = f.addressed.Set(path, true)
	f.invalidate(path)
	if v, ok := f.vars.Get(path); ok {
		f.Update(v.with(func(v *Variable) { v.Current = v.Declared }))
	}
}

// Assume ANDs term into the active facts and returns the implications that became newly
// available.
func (f *TypeFrame) Assume(term predicate.Term) []predicate.Implication {
	before := f.Facts.Implications()
	f.Facts = f.Facts.And(term)
	var fresh []predicate.Implication
	for _, impl := range f.Facts.Implications() {
		if !slices.Contains(before, impl) {
			fresh = append(fresh, impl)
		}
	}
	return fresh
}

// Mutate records an assignment to path: the variable gets a new value lifetime and every
// fact or stored predicate mentioning it is dropped.
func (f *TypeFrame) Mutate(path ident.Path, value lifetime.Lifetime, current *types.Type) *Variable {
	f.invalidate(path)
	v, _ := f.vars.Get(path)
	v = v.with(func(v *Variable) {
		v.Value = value
		v.Current = current
		if f.IsAddressed(path) {
			v.Current = v.Declared
		}
	})
	f.Update(v)
	return v
}

func (f *TypeFrame) invalidate(path ident.Path) {
	f.Facts = f.Facts.Without(path)
	f.preds = f.preds.Delete(path)
	itr := f.preds.Iterator()
	for !itr.Done() {
		key, term, _ := itr.Next()
		if !term.UsesVariable(path) {
			continue
		}
		if weaker := term.Without(path); weaker.IsTrue() {
			f.preds = f.preds.Delete(key)
		} else {
			f.preds = f.preds.Set(key, weaker)
		}
	}
}

// sortedVars lists the frame's variables by path so merges are deterministic.
func (f *TypeFrame) sortedVars() []*Variable {
	out := make([]*Variable, 0, f.vars.Len())
	itr := f.vars.Iterator()
	for !itr.Done() {
		_, v, _ := itr.Next()
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b *Variable) int { return lifetime.Compare(a.Value, b.Value) })
	return out
}

// Pop folds a child block frame back into f: variables the parent can see take
// the child's final state, names declared in the child go out of scope.
func (f *TypeFrame) Pop(child *TypeFrame) {
	out := *f
	for _, v := range f.sortedVars() {
		if cv, ok := child.vars.Get(v.Path); ok {
			out.vars = out.vars.Set(v.Path, cv)
		}
		if p, ok := child.preds.Get(v.Path); ok {
			out.preds = out.preds.Set(v.Path, p)
		} else {
			out.preds = out.preds.Delete(v.Path)
		}
		if child.IsAddressed(v.Path) {
			out.addressed = out.addressed.Set(v.Path, true)
		}
	}
	out.Facts = child.Facts
	*f = out
}

// Merge joins the two branch frames of an if back into f. Only variables declared in f
// survive. Their types are joined, stored predicates are OR'd unless both arms stored the
// same one, and a
// variable whose value lifetime differs between branches gets a fresh version that depends
// on both. Facts about variables either branch changed are dropped.
func (f *TypeFrame) Merge(then, els *TypeFrame, remint func(lifetime.Lifetime) lifetime.Lifetime) {
	out := *f
	for _, v := range f.sortedVars() {
		tv, _ := then.vars.Get(v.Path)
		ev, _ := els.vars.Get(v.Path)

		current, ok := types.Join(tv.Current, ev.Current)
		if !ok {
			current = v.Declared
		}
		merged := v.with(func(m *Variable) { m.Current = current })

		if tv.Value != v.Value || ev.Value != v.Value {
			out.Facts = out.Facts.Without(v.Path)
			if tv.Value == ev.Value {
				merged.Value = tv.Value
			} else {
				merged.Value = remint(v.Value)
				f.Flow.RecordStorage(merged.Value, tv.Value, v.Declared)
				f.Flow.RecordStorage(merged.Value, ev.Value, v.Declared)
			}
		}
		if then.IsAddressed(v.Path) || els.IsAddressed(v.Path) {
			out.addressed = out.addressed.Set(v.Path, true)
			out.Facts = out.Facts.Without(v.Path)
			merged.Current = merged.Declared
		}
		out.vars = out.vars.Set(v.Path, merged)

		tp, tok := then.preds.Get(v.Path)
		ep, eok := els.preds.Get(v.Path)
		switch {
		case tok && eok && tp.Hash() == ep.Hash():
			out.preds = out.preds.Set(v.Path, tp)
		case tok && eok:
			out.preds = out.preds.Set(v.Path, tp.Or(ep))
		default:
			out.preds = out.preds.Delete(v.Path)
		}
	}
	*f = out
}
