package typeChecker

import (
	"fmt"

	"github.com/nikandfor/tlog"

	"github.com/helixlang/helix/pkg/ast"
	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/predicate"
	"github.com/helixlang/helix/pkg/types"
	"github.com/helixlang/helix/pkg/util"
)

// checkIs types `x is m`. x must be a variable holding a pointer to a union with a member m.
func (tc *TypeChecker) checkIs(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	d := node.Data.(ast.IsNode)
	if d.Target.Type != ast.Ident {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "the target of 'is' must be a variable")
	}
	if _, _, err := tc.checkExpr(f, d.Target); err != nil {
		return nil, lifetime.Bundle{}, err
	}
	v := tc.ctx.Vars[d.Target]
	if v.FlowOf != "" {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "'%s' is already narrowed to member '%s' here, test it before the enclosing 'is' check", v.Name, v.Member)
	}
	u, ok := v.Declared.AsUnion()
	if !ok || v.Declared.Kind != types.TYPE_POINTER {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "'%s' is not a pointer to a union (it has type '%s')", v.Name, v.Declared)
	}
	if types.UnionIndex(u, d.Member) < 0 {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "union '%s' has no member '%s'", u.Name, d.Member)
	}
	if _, ok := tc.tracked(f, d.Target); !ok {
		return types.TypeBool, lifetime.Bundle{}, nil
	}

	check := predicate.FromLeaf(predicate.NewUnionTag(v.Path, u.Name, u.MemberNames(), d.Member))
	switch {
	case f.Facts.And(check.Negate()).IsFalse():
		tc.ctx.Reporter.Warn(config.WarnRedundantCheck, node.Tok, "'%s is %s' is always true here", v.Name, d.Member)
	case f.Facts.And(check).IsFalse():
		tc.ctx.Reporter.Warn(config.WarnRedundantCheck, node.Tok, "'%s is %s' is never true here", v.Name, d.Member)
	}
	return types.PredicateBool(check), lifetime.Bundle{}, nil
}

// checkIf types an if expression. Each arm is checked in a forked frame that assumes the
// condition (or its negation); the arms are merged back into f afterwards.
func (tc *TypeChecker) checkIf(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	d := node.Data.(ast.IfNode)
	ct, _, err := tc.checkExpr(f, d.Cond)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	if !types.CanUnifyTo(ct, types.TypeBool) {
		return nil, lifetime.Bundle{}, util.TypeError(d.Cond.Tok, "if condition must be a bool, got '%s'", ct)
	}
	if ct.Kind == types.TYPE_SINGULAR_BOOL {
		dead := "else"
		if !ct.Bool {
			dead = "then"
		}
		tc.ctx.Reporter.Warn(config.WarnUnreachableCode, d.Cond.Tok, "condition is always %t, the %s branch is unreachable", ct.Bool, dead)
	}

	cond, known := ct.Predicate()
	branch := &Branch{Affirm: predicate.True(), Negate: predicate.True()}
	if known {
		branch.Affirm, branch.Negate = cond, cond.Negate()
	}

	tc.ctx.ifCount++
	id := tc.ctx.ifCount
	thenFrame := f.Fork(fmt.Sprintf("$if%dT", id))
	elseFrame := f.Fork(fmt.Sprintf("$if%dF", id))
	if known && tc.flowTyping() {
		branch.ThenVars = tc.assume(thenFrame, branch.Affirm)
		branch.ElseVars = tc.assume(elseFrame, branch.Negate)
	}
	tlog.V("flow").Printw("if", "id", id, "then", branch.Affirm, "else", branch.Negate)

	tt, tb, err := tc.checkArm(thenFrame, d.ThenBody)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	et, eb := types.TypeVoid, lifetime.Bundle{}
	if d.ElseBody != nil {
		if et, eb, err = tc.checkArm(elseFrame, d.ElseBody); err != nil {
			return nil, lifetime.Bundle{}, err
		}
	}
	f.Merge(thenFrame, elseFrame, tc.ctx.remint)
	tc.ctx.Branches[node] = branch

	if d.ElseBody == nil {
		return types.TypeVoid, lifetime.Bundle{}, nil
	}
	typ, ok := types.Join(tt, et)
	if !ok {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "if branches have incompatible types '%s' and '%s'", tt, et)
	}
	if typ.Kind == types.TYPE_BOOL && known {
		tp, tok := tt.Predicate()
		ep, eok := et.Predicate()
		if tok && eok {
			typ = types.PredicateBool(cond.And(tp).Or(branch.Negate.And(ep)))
		}
	}
	return typ, tc.joinBundles(f, tb, eb, typ), nil
}

// joinBundles gives the value of an if a lifetime both arms' values flow into.
func (tc *TypeChecker) joinBundles(f *TypeFrame, a, b lifetime.Bundle, typ *types.Type) lifetime.Bundle {
	switch {
	case a.Value == b.Value: return lifetime.Bundle{Value: a.Value}
	case a.Value.IsNone(): return lifetime.Bundle{Value: b.Value}
	case b.Value.IsNone(): return lifetime.Bundle{Value: a.Value}
	}
	tmp := tc.temp(f)
	tc.ctx.Flow.RecordStorage(tmp, a.Value, typ)
	tc.ctx.Flow.RecordStorage(tmp, b.Value, typ)
	return lifetime.Bundle{Value: tmp}
}

// checkArm checks one arm of an if directly in its branch frame.
func (tc *TypeChecker) checkArm(f *TypeFrame, body *ast.Node) (*types.Type, lifetime.Bundle, error) {
	if body.Type != ast.Block {
		return tc.checkExpr(f, body)
	}
	typ, b, err := tc.checkStmts(f, body.Data.(ast.BlockNode).Stmts)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	body.Typ = typ
	tc.ctx.Lifetimes[body] = b
	return typ, b, nil
}

// assume adds term to the facts of f and narrows every variable a fresh implication pins.
// A tag implication declares a flow variable that shadows the union variable; the flow
// variables are returned.
func (tc *TypeChecker) assume(f *TypeFrame, term predicate.Term) []*Variable {
	var flowVars []*Variable
	for _, impl := range f.Assume(term) {
		v, ok := f.Lookup(impl.Var)
		if !ok || f.IsAddressed(impl.Var) {
			continue
		}
		narrowed, ok := types.Implied(impl, v.Declared)
		if !ok {
			continue
		}
		if impl.Kind != predicate.ImpliesTag {
			f.Update(v.with(func(v *Variable) { v.Current = narrowed }))
			continue
		}
		if tc.cfg.IsFeatureEnabled(config.FeatUnionNarrowing) {
			flowVars = append(flowVars, tc.declareFlowVar(f, v, impl.Member, narrowed))
		}
	}
	return flowVars
}

// declareFlowVar shadows union inside an arm with a pointer to the selected member. The
// union itself stays unreachable by name until the arm ends.
func (tc *TypeChecker) declareFlowVar(f *TypeFrame, union *Variable, member string, typ *types.Type) *Variable {
	path := f.Scope.Append(union.Name)
	fv := &Variable{
		Name:     union.Name,
		Path:     path,
		Declared: typ,
		Current:  typ,
		Value:    lifetime.New(path, lifetime.Inferred),
		Location: lifetime.New(path.Append("$storage"), lifetime.Inferred),
		FlowOf:   union.Path,
		Member:   member,
	}
	tc.ctx.Flow.RecordAssignment(fv.Value, union.Value, typ)
	f.Declare(fv)
	tlog.V("narrow").Printw("flow variable", "var", union.Path, "member", member, "type", typ)
	return fv
}
