package typeChecker

import (
	"slices"

	"github.com/nikandfor/tlog"

	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/types"
	"github.com/helixlang/helix/pkg/util"
)

// requireStore records that value, of type typ, is stored into whatever target
// designates. Every lifetime value may have come from must outlive every place target
// may point into.
func (tc *TypeChecker) requireStore(tok token.Token, typ *types.Type, value, target lifetime.Lifetime) error {
	if value.IsNone() || target.IsNone() || !typ.HasPointers() {
		return nil
	}
	for _, t := range tc.ctx.Flow.Precursors(target) {
		for _, r := range tc.ctx.Flow.Precursors(value) {
			if err := tc.requireOutlives(tok, r, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// requireOutlives adds r ≥ t. Inferred lifetimes absorb the constraint into the outlives
// graph. A fixed lifetime must outlive every fixed lifetime t reaches, both now and once
// the function is fully checked.
func (tc *TypeChecker) requireOutlives(tok token.Token, r, t lifetime.Lifetime) error {
	if !r.IsRoot() {
		tc.ctx.Outlives.RequireOutlives(r, t)
		return nil
	}
	if !t.IsRoot() {
		tc.ctx.Outlives.RequireOutlives(r, t)
		tc.pending = append(tc.pending, obligation{tok: tok, value: r, target: t})
	}
	return tc.verify(tok, r, t)
}

// verify checks the fixed lifetime r against every fixed lifetime t must outlive.
func (tc *TypeChecker) verify(tok token.Token, r, t lifetime.Lifetime) error {
	for _, fixed := range tc.ctx.Outlives.OutlivedBy(t) {
		if !fixed.IsRoot() || fixed == r {
			continue
		}
		if !tc.outlives(r, fixed) {
			tlog.V("lifetime").Printw("violation", "value", r, "target", fixed)
			return util.LifetimeError(tok, "value with lifetime '%s' may not live as long as '%s'", r, fixed)
		}
	}
	return nil
}

// verifyPending rechecks the stores of fixed lifetimes into inferred ones after the whole
// function body added its edges.
func (tc *TypeChecker) verifyPending() error {
	pending := tc.pending
	tc.pending = nil
	for _, ob := range pending {
		if err := tc.verify(ob.tok, ob.value, ob.target); err != nil {
			return err
		}
	}
	return nil
}

// outlives decides a ≥ b between fixed lifetimes. Only relations declared between fixed
// lifetimes count; paths through inferred lifetimes are obligations, not evidence.
func (tc *TypeChecker) outlives(a, b lifetime.Lifetime) bool {
	switch {
	case a == b:
		return true
	case a.Origin == lifetime.Heap:
		return true
	case b.Origin == lifetime.Local:
		return true
	}
	return slices.Contains(tc.ctx.Outlives.OutlivedByVia(a, lifetime.Lifetime.IsRoot), b)
}

type obligation struct {
	tok           token.Token
	value, target lifetime.Lifetime
}
