package codegen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/benbjohnson/immutable"
	"github.com/cespare/xxhash/v2"
	"github.com/nikandfor/tlog"

	"github.com/helixlang/helix/pkg/ir"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/util"
)

// ReduceRoots keeps the region-backed lifetimes of roots that no other root already
// outlives. Of two roots that outlive each other the first in order survives. Local
// roots never force a region and are dropped.
func ReduceRoots(g lifetime.Outlives, roots []lifetime.Lifetime) []lifetime.Lifetime {
	var fixed []lifetime.Lifetime
	for _, r := range roots {
		if r.IsRoot() && r.Origin != lifetime.Local && !slices.Contains(fixed, r) {
			fixed = append(fixed, r)
		}
	}
	slices.SortFunc(fixed, lifetime.Compare)

	var kept []lifetime.Lifetime
	for i, r := range fixed {
		implied := false
		for j, o := range fixed {
			if i != j && g.DoesOutlive(o, r) && (j < i || !g.DoesOutlive(r, o)) {
				implied = true
				break
			}
		}
		if !implied {
			kept = append(kept, r)
		}
	}
	return kept
}

// RegionResolver turns root lifetimes into C region expressions for one function.
type RegionResolver struct {
	flow    *lifetime.DataFlowGraph
	graph   lifetime.Outlives
	w       *Writer
	regions map[lifetime.Lifetime]ir.Value
	combos  *immutable.Map[uint64, ir.Value]
}

func NewRegionResolver(flow *lifetime.DataFlowGraph, graph lifetime.Outlives, w *Writer) *RegionResolver {
	return &RegionResolver{
		flow:    flow,
		graph:   graph,
		w:       w,
		regions: make(map[lifetime.Lifetime]ir.Value),
		combos:  immutable.NewMap[uint64, ir.Value](nil),
	}
}

func (r *RegionResolver) Register(l lifetime.Lifetime, expr ir.Value) { r.regions[l] = expr }

// Lookup finds the region registered for l or for a lifetime equal to it.
func (r *RegionResolver) Lookup(l lifetime.Lifetime) (ir.Value, bool) {
	if v, ok := r.regions[l]; ok {
		return v, true
	}
	for _, eq := range r.flow.EquivalentLifetimes(l) {
		if v, ok := r.regions[eq]; ok {
			return v, true
		}
	}
	return nil, false
}

// Scope opens a C block scope. Region temporaries computed inside it are forgotten when
// the returned function runs.
func (r *RegionResolver) Scope() func() {
	saved := r.combos
	return func() { r.combos = saved }
}

// SmallestRegionFor returns the region that outlives every root, or nil when the storage
// can live on the stack. Several roots are combined with _region_min once per distinct set.
func (r *RegionResolver) SmallestRegionFor(tok token.Token, roots []lifetime.Lifetime) (ir.Value, error) {
	roots = ReduceRoots(r.graph, roots)
	switch len(roots) {
	case 0:
		return nil, nil
	case 1:
		return r.region(tok, roots[0])
	}

	key := rootsKey(roots)
	if v, ok := r.combos.Get(key); ok {
		return v, nil
	}

	values := make([]ir.Value, len(roots))
	for i, root := range roots {
		v, err := r.region(tok, root)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}

	tmp := &ir.Var{Name: r.w.Temp()}
	r.w.EmitBlank()
	r.w.Emit(
		&ir.Comment{Text: fmt.Sprintf("Line %d: Region calculation", tok.Line)},
		&ir.Decl{Type: "_Region*", Name: tmp.Name, Init: values[0]},
	)
	for _, v := range values[1:] {
		r.w.Emit(&ir.Assign{Target: tmp, Value: &ir.Call{Name: "_region_min", Args: []ir.Value{tmp, v}}})
	}
	r.w.EmitBlank()

	tlog.V("region").Printw("region combination", "roots", roots, "temp", tmp.Name)
	r.combos = r.combos.Set(key, tmp)
	return tmp, nil
}

func (r *RegionResolver) region(tok token.Token, root lifetime.Lifetime) (ir.Value, error) {
	if v, ok := r.Lookup(root); ok {
		return v, nil
	}
	return nil, util.InternalError(tok, "no region is registered for lifetime '%s'", root)
}

func rootsKey(roots []lifetime.Lifetime) uint64 {
	keys := make([]string, len(roots))
	for i, l := range roots {
		keys[i] = l.Key()
	}
	return xxhash.Sum64String(strings.Join(keys, ","))
}
