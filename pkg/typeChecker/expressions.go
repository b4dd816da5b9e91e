package typeChecker

import (
	"fmt"
	"math/big"

	"github.com/helixlang/helix/pkg/ast"
	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/predicate"
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/types"
	"github.com/helixlang/helix/pkg/util"
)

// checkExpr types node and records its type and lifetimes on the context.
func (tc *TypeChecker) checkExpr(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	typ, b, err := tc.expr(f, node)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	node.Typ = typ
	tc.ctx.Lifetimes[node] = b
	return typ, b, nil
}

func (tc *TypeChecker) expr(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	switch node.Type {
	case ast.Number: return types.SingularWord(node.Data.(ast.NumberNode).Value), lifetime.Bundle{}, nil
	case ast.Bool: return types.SingularBool(node.Data.(ast.BoolNode).Value), lifetime.Bundle{}, nil
	case ast.Ident: return tc.checkIdent(f, node)
	case ast.BinaryOp: return tc.checkBinary(f, node)
	case ast.UnaryOp: return tc.checkUnary(f, node)
	case ast.Is: return tc.checkIs(f, node)
	case ast.AddressOf: return tc.checkAddressOf(f, node)
	case ast.Indirection: return tc.checkIndirection(f, node)
	case ast.MemberAccess: return tc.checkMemberAccess(f, node)
	case ast.New: return tc.checkNew(f, node)
	case ast.If: return tc.checkIf(f, node)
	case ast.Block: return tc.checkBlock(f, node)
	}
	return nil, lifetime.Bundle{}, util.InternalError(node.Tok, "unexpected %s node in expression position", node.Type)
}

func (tc *TypeChecker) checkIdent(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	name := node.Data.(ast.IdentNode).Name
	v, ok := f.Resolve(name)
	if !ok {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "variable '%s' is not defined", name)
	}
	tc.ctx.Vars[node] = v
	return tc.readType(f, v), lifetime.Bundle{Value: v.Value, Location: v.Location}, nil
}

// readType is the type of reading v here. An unaddressed bool reads as the predicate it
// was assigned from, or as a predicate on itself.
func (tc *TypeChecker) readType(f *TypeFrame, v *Variable) *types.Type {
	if v.Current.Kind != types.TYPE_BOOL || !tc.flowTyping() || f.IsAddressed(v.Path) {
		return v.Current
	}
	if p, ok := f.Predicate(v.Path); ok {
		return types.PredicateBool(p)
	}
	return types.PredicateBool(predicate.FromLeaf(predicate.BoolVar{Var: v.Path}))
}

// tracked returns the variable behind node if predicates may mention it.
func (tc *TypeChecker) tracked(f *TypeFrame, node *ast.Node) (*Variable, bool) {
	if node.Type != ast.Ident || !tc.flowTyping() {
		return nil, false
	}
	v, ok := tc.ctx.Vars[node]
	if !ok || f.IsAddressed(v.Path) {
		return nil, false
	}
	return v, true
}

func (tc *TypeChecker) checkBinary(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	d := node.Data.(ast.BinaryOpNode)
	lt, _, err := tc.checkExpr(f, d.Left)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	rt, _, err := tc.checkExpr(f, d.Right)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}

	var typ *types.Type
	switch d.Op {
	case token.Plus, token.Minus, token.Star:
		if !lt.IsWordLike() || !rt.IsWordLike() {
			return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "arithmetic needs words, got '%s' and '%s'", lt, rt)
		}
		typ = tc.foldArith(node.Tok, d.Op, lt, rt)
	case token.Lt, token.Gt, token.Lte, token.Gte:
		if !lt.IsWordLike() || !rt.IsWordLike() {
			return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot order '%s' and '%s'", lt, rt)
		}
		typ = types.TypeBool
		if lt.IsSingular() && rt.IsSingular() {
			typ = types.SingularBool(relation(d.Op, lt.Word, rt.Word))
		}
	case token.EqEq, token.Neq:
		negated := d.Op == token.Neq
		switch {
		case lt.IsWordLike() && rt.IsWordLike():
			typ = tc.compareWords(f, node, d, lt, rt, negated)
		case lt.IsBoolLike() && rt.IsBoolLike():
			typ = compareBools(lt, rt, negated)
		default:
			return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot compare '%s' with '%s'", lt, rt)
		}
	case token.And, token.Or, token.Xor:
		if !lt.IsBoolLike() || !rt.IsBoolLike() {
			return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "logical operator needs bools, got '%s' and '%s'", lt, rt)
		}
		typ = combineBools(d.Op, lt, rt)
	default:
		return nil, lifetime.Bundle{}, util.InternalError(node.Tok, "unknown binary operator %s", d.Op)
	}
	return typ, lifetime.Bundle{}, nil
}

func relation(op token.Type, a, b int64) bool {
	switch op {
	case token.Lt: return a < b
	case token.Gt: return a > b
	case token.Lte: return a <= b
	case token.Gte: return a >= b
	}
	return false
}

// foldArith folds arithmetic on two known words. Results outside the target word degrade
// to word with an overflow warning.
func (tc *TypeChecker) foldArith(tok token.Token, op token.Type, lt, rt *types.Type) *types.Type {
	if !lt.IsSingular() || !rt.IsSingular() {
		return types.TypeWord
	}
	a, b := big.NewInt(lt.Word), big.NewInt(rt.Word)
	var r big.Int
	switch op {
	case token.Plus: r.Add(a, b)
	case token.Minus: r.Sub(a, b)
	case token.Star: r.Mul(a, b)
	}
	return tc.fitWord(tok, &r)
}

func (tc *TypeChecker) fitWord(tok token.Token, r *big.Int) *types.Type {
	lo, hi := tc.cfg.WordRange()
	if r.Cmp(big.NewInt(lo)) < 0 || r.Cmp(big.NewInt(hi)) > 0 {
		tc.ctx.Reporter.Warn(config.WarnOverflow, tok, "constant %s overflows the %d-bit target word", r, tc.cfg.WordSize*8)
		return types.TypeWord
	}
	return types.SingularWord(r.Int64())
}

// compareWords types a word equality. Comparing a tracked variable against a known value
// yields a predicate on that variable.
func (tc *TypeChecker) compareWords(f *TypeFrame, node *ast.Node, d ast.BinaryOpNode, lt, rt *types.Type, negated bool) *types.Type {
	if lt.IsSingular() && rt.IsSingular() {
		result := (lt.Word == rt.Word) != negated
		if d.Left.Type == ast.Ident || d.Right.Type == ast.Ident {
			tc.ctx.Reporter.Warn(config.WarnType, node.Tok, "comparison is always %t here", result)
		}
		return types.SingularBool(result)
	}
	if v, ok := tc.tracked(f, d.Left); ok && rt.IsSingular() {
		return types.PredicateBool(predicate.FromLeaf(predicate.WordVar{Var: v.Path, Value: rt.Word, Negated: negated}))
	}
	if v, ok := tc.tracked(f, d.Right); ok && lt.IsSingular() {
		return types.PredicateBool(predicate.FromLeaf(predicate.WordVar{Var: v.Path, Value: lt.Word, Negated: negated}))
	}
	return types.TypeBool
}

func compareBools(lt, rt *types.Type, negated bool) *types.Type {
	lp, lok := lt.Predicate()
	rp, rok := rt.Predicate()
	if !lok || !rok {
		return types.TypeBool
	}
	if negated {
		return types.PredicateBool(lp.Xor(rp))
	}
	return types.PredicateBool(lp.Xor(rp).Negate())
}

func combineBools(op token.Type, lt, rt *types.Type) *types.Type {
	lp, lok := lt.Predicate()
	rp, rok := rt.Predicate()
	if !lok || !rok {
		return types.TypeBool
	}
	switch op {
	case token.And: return types.PredicateBool(lp.And(rp))
	case token.Or: return types.PredicateBool(lp.Or(rp))
	}
	return types.PredicateBool(lp.Xor(rp))
}

func (tc *TypeChecker) checkUnary(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	d := node.Data.(ast.UnaryOpNode)
	typ, _, err := tc.checkExpr(f, d.Expr)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	switch d.Op {
	case token.Not:
		if !typ.IsBoolLike() {
			return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot negate non-bool type '%s'", typ)
		}
		if p, ok := typ.Predicate(); ok {
			return types.PredicateBool(p.Negate()), lifetime.Bundle{}, nil
		}
		return types.TypeBool, lifetime.Bundle{}, nil
	case token.Minus:
		if !typ.IsWordLike() {
			return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot negate non-word type '%s'", typ)
		}
		if typ.IsSingular() {
			return tc.fitWord(node.Tok, new(big.Int).Neg(big.NewInt(typ.Word))), lifetime.Bundle{}, nil
		}
		return types.TypeWord, lifetime.Bundle{}, nil
	}
	return nil, lifetime.Bundle{}, util.InternalError(node.Tok, "unknown unary operator %s", d.Op)
}

// checkAddressOf types &e. The pointer's value is the storage of e; taking the address of
// a variable stops all narrowing of it.
func (tc *TypeChecker) checkAddressOf(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	lv := node.Data.(ast.AddressOfNode).LValue
	if !ast.IsLValue(lv) {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot take the address of this expression")
	}
	typ, b, err := tc.checkExpr(f, lv)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	base := typ.Supertype()
	if lv.Type == ast.Ident {
		v := tc.ctx.Vars[lv]
		f.MarkAddressed(v.Path)
		base = v.Declared
	}
	return types.PointerTo(base, true), lifetime.Bundle{Value: b.Location}, nil
}

// checkIndirection types *e. The loaded value gets a temporary lifetime the pointer's
// value flows into.
func (tc *TypeChecker) checkIndirection(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	expr := node.Data.(ast.IndirectionNode).Expr
	typ, b, err := tc.checkExpr(f, expr)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	base, ok := typ.Pointee()
	if !ok {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot dereference non-pointer type '%s'", typ)
	}
	tmp := tc.temp(f)
	tc.ctx.Flow.RecordStorage(tmp, b.Value, base)
	return base, lifetime.Bundle{Value: tmp, Location: b.Value}, nil
}

func (tc *TypeChecker) temp(f *TypeFrame) lifetime.Lifetime {
	return lifetime.New(f.Scope.Append(tc.ctx.TempName()), lifetime.Temp)
}

// checkMemberAccess types e.m for a struct or a pointer to one. Union members are only
// reachable through a flow variable introduced by an `is` check.
func (tc *TypeChecker) checkMemberAccess(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	d := node.Data.(ast.MemberAccessNode)
	typ, b, err := tc.checkExpr(f, d.Expr)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	target, location := typ, b.Location
	if base, ok := typ.Pointee(); ok {
		target, location = base, b.Value
	}

	switch target.Kind {
	case types.TYPE_STRUCT:
	case types.TYPE_UNION:
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "member '%s' of union '%s' can only be read after an 'is' check", d.Member, target.Name)
	default:
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "type '%s' has no members", typ)
	}
	m, ok := target.Member(d.Member)
	if !ok {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "struct '%s' has no member '%s'", target.Name, d.Member)
	}

	value := b.Value
	if typ.Kind == types.TYPE_POINTER {
		value = tc.temp(f)
		tc.ctx.Flow.RecordStorage(value, b.Value, m.Type)
	} else if members := tc.ctx.Flow.MemberLifetimes(b.Value, d.Member); len(members) == 1 {
		value = members[0]
	} else if len(members) > 1 {
		value = tc.temp(f)
		for _, l := range members {
			tc.ctx.Flow.RecordStorage(value, l, m.Type)
		}
	}
	return m.Type, lifetime.Bundle{Value: value, Location: location}, nil
}

// checkNew types `new T`. The allocation's lifetime is inferred from where the pointer
// ends up.
func (tc *TypeChecker) checkNew(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	typ := node.Data.(ast.NewNode).Type
	if typ == nil || typ.Kind == types.TYPE_VOID {
		return nil, lifetime.Bundle{}, util.TypeError(node.Tok, "cannot allocate a value of type void")
	}
	tc.ctx.newCount++
	alloc := lifetime.New(f.Scope.Append(fmt.Sprintf("$new%d", tc.ctx.newCount)), lifetime.Inferred)
	tc.ctx.Allocations[node] = alloc
	return types.PointerTo(typ, true), lifetime.Bundle{Value: alloc}, nil
}

// checkBlock checks a nested block in its own scope.
func (tc *TypeChecker) checkBlock(f *TypeFrame, node *ast.Node) (*types.Type, lifetime.Bundle, error) {
	tc.ctx.blkCount++
	child := f.Fork(fmt.Sprintf("$b%d", tc.ctx.blkCount))
	typ, b, err := tc.checkStmts(child, node.Data.(ast.BlockNode).Stmts)
	if err != nil {
		return nil, lifetime.Bundle{}, err
	}
	f.Pop(child)
	return typ, b, nil
}
