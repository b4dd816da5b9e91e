// Package typeChecker types a Helix program and records its lifetime relations. It
// narrows variables along branches using the predicates of their conditions.
package typeChecker

import (
	"fmt"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/helixlang/helix/pkg/ast"
	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/ident"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/predicate"
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/types"
	"github.com/helixlang/helix/pkg/util"
)

// FuncInfo is a checked function signature.
type FuncInfo struct {
	Name       string
	Node       *ast.Node
	Scope      ident.Path
	Params     []*Variable
	ReturnType *types.Type
	Return     lifetime.Lifetime
}

// Branch records what checking an if learned: the predicate each arm runs under and
// the flow variables each arm introduced.
type Branch struct {
	Affirm, Negate     predicate.Term
	ThenVars, ElseVars []*Variable
}

// Context holds everything one compilation produces. Nothing in it is shared between
// compilations.
type Context struct {
	Cfg      *config.Config
	Reporter *util.Reporter
	Flow     *lifetime.DataFlowGraph
	Outlives *lifetime.LifetimeGraph

	Funcs       map[string]*FuncInfo
	Vars        map[*ast.Node]*Variable
	Lifetimes   map[*ast.Node]lifetime.Bundle
	Branches    map[*ast.Node]*Branch
	Allocations map[*ast.Node]lifetime.Lifetime

	versions  map[ident.Path]int
	ifCount   int
	blkCount  int
	newCount  int
	tempCount int
}

func NewContext(cfg *config.Config, reporter *util.Reporter) *Context {
	return &Context{
		Cfg:         cfg,
		Reporter:    reporter,
		Flow:        lifetime.NewDataFlowGraph(),
		Outlives:    lifetime.NewLifetimeGraph(),
		Funcs:       make(map[string]*FuncInfo),
		Vars:        make(map[*ast.Node]*Variable),
		Lifetimes:   make(map[*ast.Node]lifetime.Bundle),
		Branches:    make(map[*ast.Node]*Branch),
		Allocations: make(map[*ast.Node]lifetime.Lifetime),
		versions:    make(map[ident.Path]int),
	}
}

// NextTemp numbers a fresh compiler temporary. The checker and the code generator share
// the counter so temporaries never collide.
func (c *Context) NextTemp() int {
	c.tempCount++
	return c.tempCount
}

// TempName names a temporary lifetime. The '$' keeps it apart from every source name.
func (c *Context) TempName() string { return fmt.Sprintf("$t%d", c.NextTemp()) }

// remint returns the next version of l.
func (c *Context) remint(l lifetime.Lifetime) lifetime.Lifetime {
	l.Version = c.versions[l.Path]
	l = l.Bump()
	c.versions[l.Path] = l.Version
	return l
}

type TypeChecker struct {
	ctx *Context
	cfg *config.Config
	fn  *FuncInfo

	// stores of fixed lifetimes into inferred ones, rechecked once the function is done
	pending []obligation
}

func NewTypeChecker(ctx *Context) *TypeChecker {
	return &TypeChecker{ctx: ctx, cfg: ctx.Cfg}
}

func (tc *TypeChecker) flowTyping() bool { return tc.cfg.IsFeatureEnabled(config.FeatFlowTyping) }

// Check types every function of prog. It stops at the first error; the error wraps a
// *util.Diagnostic carrying the position.
func (tc *TypeChecker) Check(prog *ast.Program) error {
	for _, fn := range prog.Funcs {
		if err := tc.declareFunc(fn); err != nil {
			return err
		}
	}
	for _, fn := range prog.Funcs {
		d := fn.Data.(ast.FuncDeclNode)
		if err := tc.checkFunc(fn); err != nil {
			return errors.Wrap(err, "check %s", d.Name)
		}
		tlog.V("lifetime").Printw("function checked", "func", d.Name, "lifetimes", len(tc.ctx.Flow.Lifetimes()))
	}
	return nil
}

// declareFunc sets up the parameter and return lifetimes of a function. Every parameter
// value must outlive the return region.
func (tc *TypeChecker) declareFunc(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	if _, exists := tc.ctx.Funcs[d.Name]; exists {
		return util.TypeError(node.Tok, "function '%s' is already defined", d.Name)
	}

	scope := ident.New(d.Name)
	info := &FuncInfo{
		Name:       d.Name,
		Node:       node,
		Scope:      scope,
		ReturnType: d.ReturnType,
		Return:     lifetime.New(scope.Append("$return"), lifetime.Return),
	}
	if info.ReturnType == nil {
		info.ReturnType = types.TypeVoid
	}

	seen := make(map[string]bool)
	for _, p := range d.Params {
		pd := p.Data.(ast.ParamNode)
		if seen[pd.Name] {
			return util.TypeError(p.Tok, "duplicate parameter '%s'", pd.Name)
		}
		seen[pd.Name] = true

		path := scope.Append(pd.Name)
		v := &Variable{
			Name:     pd.Name,
			Path:     path,
			Declared: pd.Type,
			Current:  pd.Type,
			Value:    lifetime.New(path, lifetime.Parameter),
			Location: lifetime.New(path.Append("$storage"), lifetime.Local),
			IsParam:  true,
		}
		tc.ctx.Outlives.RequireOutlives(v.Value, info.Return)
		tc.ctx.Vars[p] = v
		p.Typ = pd.Type
		info.Params = append(info.Params, v)
	}

	tc.ctx.Funcs[d.Name] = info
	return nil
}

func (tc *TypeChecker) checkFunc(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	tc.fn = tc.ctx.Funcs[d.Name]
	defer func() { tc.fn = nil }()

	frame := NewTypeFrame(tc.fn.Scope, tc.ctx.Flow)
	for _, p := range tc.fn.Params {
		frame.Declare(p)
		for _, m := range tc.mintMembers(p.Value, p.Declared) {
			tc.ctx.Outlives.RequireOutlives(m, tc.fn.Return)
		}
	}

	if d.Body == nil {
		return nil
	}
	tc.pending = nil
	typ, _, err := tc.checkStmts(frame, d.Body.Data.(ast.BlockNode).Stmts)
	if err != nil {
		return err
	}
	d.Body.Typ = typ
	return tc.verifyPending()
}

// checkStmts checks a statement list in f. The list's value is its trailing expression
// statement, or void.
func (tc *TypeChecker) checkStmts(f *TypeFrame, stmts []*ast.Node) (*types.Type, lifetime.Bundle, error) {
	typ, bundle := types.TypeVoid, lifetime.Bundle{}
	for _, stmt := range stmts {
		var err error
		switch stmt.Type {
		case ast.VarDecl, ast.Assign, ast.Return:
			err = tc.checkStmt(f, stmt)
			typ, bundle = types.TypeVoid, lifetime.Bundle{}
		default:
			typ, bundle, err = tc.checkExpr(f, stmt)
		}
		if err != nil {
			return nil, lifetime.Bundle{}, err
		}
	}
	return typ, bundle, nil
}

func (tc *TypeChecker) checkStmt(f *TypeFrame, node *ast.Node) error {
	node.Typ = types.TypeVoid
	switch node.Type {
	case ast.VarDecl: return tc.checkVarDecl(f, node)
	case ast.Assign: return tc.checkAssign(f, node)
	case ast.Return: return tc.checkReturn(f, node)
	}
	return util.InternalError(node.Tok, "unexpected %s node in statement position", node.Type)
}

func (tc *TypeChecker) checkVarDecl(f *TypeFrame, node *ast.Node) error {
	d := node.Data.(ast.VarDeclNode)
	path := f.Scope.Append(d.Name)
	if _, exists := f.Lookup(path); exists {
		return util.TypeError(node.Tok, "variable '%s' is already declared in this scope", d.Name)
	}
	if outer, ok := f.Resolve(d.Name); ok {
		tc.ctx.Reporter.Warn(config.WarnExtra, node.Tok, "declaration of '%s' shadows the variable declared in '%s'", d.Name, outer.Path.Pop())
	}

	typ, b, err := tc.checkExpr(f, d.Init)
	if err != nil {
		return err
	}
	if typ.Kind == types.TYPE_VOID {
		return util.TypeError(d.Init.Tok, "cannot initialize '%s' with a void expression", d.Name)
	}

	declared := typ.Supertype()
	v := &Variable{
		Name:     d.Name,
		Path:     path,
		Declared: declared,
		Current:  tc.currentAfterStore(typ, declared),
		Value:    lifetime.New(path, lifetime.Inferred),
		Location: lifetime.New(path.Append("$storage"), lifetime.Inferred),
	}
	tc.ctx.Flow.RecordAssignment(v.Value, b.Value, declared)
	tc.mintMembers(v.Value, declared)
	f.Declare(v)
	tc.storePredicate(f, path, typ)
	tc.ctx.Vars[node] = v
	return nil
}

// currentAfterStore is the flow type a variable has right after typ is stored in it.
func (tc *TypeChecker) currentAfterStore(typ, declared *types.Type) *types.Type {
	if !tc.flowTyping() || typ.Kind == types.TYPE_PREDICATE_BOOL {
		return declared
	}
	return typ
}

func (tc *TypeChecker) storePredicate(f *TypeFrame, path ident.Path, typ *types.Type) {
	if typ.Kind != types.TYPE_PREDICATE_BOOL || !tc.flowTyping() || !tc.cfg.IsFeatureEnabled(config.FeatPredicateStore) {
		return
	}
	if f.IsAddressed(path) || typ.Pred.UsesVariable(path) {
		return
	}
	f.SetPredicate(path, typ.Pred)
}

func (tc *TypeChecker) checkAssign(f *TypeFrame, node *ast.Node) error {
	d := node.Data.(ast.AssignNode)
	switch d.Lhs.Type {
	case ast.Ident: return tc.assignVar(f, node, d)
	case ast.Indirection: return tc.assignThrough(f, node, d)
	case ast.MemberAccess: return tc.assignMember(f, node, d)
	}
	return util.TypeError(d.Lhs.Tok, "cannot assign to this expression")
}

func (tc *TypeChecker) assignVar(f *TypeFrame, node *ast.Node, d ast.AssignNode) error {
	name := d.Lhs.Data.(ast.IdentNode).Name
	v, ok := f.Resolve(name)
	if !ok {
		return util.TypeError(d.Lhs.Tok, "variable '%s' is not defined", name)
	}
	rt, rb, err := tc.checkExpr(f, d.Rhs)
	if err != nil {
		return err
	}
	if !types.CanUnifyTo(rt, v.Declared) {
		return util.TypeError(node.Tok, "cannot assign '%s' to variable '%s' of type '%s'", rt, name, v.Declared)
	}

	nv := f.Mutate(v.Path, tc.ctx.remint(v.Value), tc.currentAfterStore(rt, v.Declared))
	tc.ctx.Flow.RecordAssignment(nv.Value, rb.Value, v.Declared)
	tc.storePredicate(f, v.Path, rt)

	tc.ctx.Vars[d.Lhs] = nv
	tc.ctx.Lifetimes[d.Lhs] = lifetime.Bundle{Value: nv.Value, Location: nv.Location}
	d.Lhs.Typ = v.Declared
	return nil
}

// assignThrough checks `*p = e`. The stored value must outlive whatever p points into.
func (tc *TypeChecker) assignThrough(f *TypeFrame, node *ast.Node, d ast.AssignNode) error {
	target := d.Lhs.Data.(ast.IndirectionNode).Expr
	pt, pb, err := tc.checkExpr(f, target)
	if err != nil {
		return err
	}
	base, ok := pt.Pointee()
	if !ok {
		return util.TypeError(d.Lhs.Tok, "cannot dereference non-pointer type '%s'", pt)
	}
	if !pt.Writable {
		return util.TypeError(d.Lhs.Tok, "cannot write through read-only pointer of type '%s'", pt)
	}
	rt, rb, err := tc.checkExpr(f, d.Rhs)
	if err != nil {
		return err
	}
	if !types.CanUnifyTo(rt, base) {
		return util.TypeError(node.Tok, "cannot store '%s' through a pointer to '%s'", rt, base)
	}
	d.Lhs.Typ = base
	tc.ctx.Lifetimes[d.Lhs] = lifetime.Bundle{Location: pb.Value}
	if err := tc.requireStore(node.Tok, base, rb.Value, pb.Value); err != nil {
		return err
	}
	tc.storeThroughAliases(f, pt, base, pb.Value, rb.Value)
	return nil
}

// storeThroughAliases accounts for `*p = e` writing into storage p may point at. A variable
// whose storage p aliases gets a new version that may hold either its old value or e.
func (tc *TypeChecker) storeThroughAliases(f *TypeFrame, pt, base *types.Type, p, value lifetime.Lifetime) {
	for _, al := range tc.ctx.Flow.AliasedLifetimes(p, pt) {
		tc.ctx.Flow.RecordStorage(al, value, base)
		if al.Path.Last() != "$storage" {
			continue
		}
		v, ok := f.Lookup(al.Path.Pop())
		if !ok || v.Location != al {
			continue
		}
		nv := f.Mutate(v.Path, tc.ctx.remint(v.Value), v.Declared)
		tc.ctx.Flow.RecordStorage(nv.Value, v.Value, v.Declared)
		tc.ctx.Flow.RecordAssignment(nv.Value, value, v.Declared)
		tlog.V("lifetime").Printw("aliased store", "var", v.Path, "value", nv.Value)
	}
}

func (tc *TypeChecker) assignMember(f *TypeFrame, node *ast.Node, d ast.AssignNode) error {
	ma := d.Lhs.Data.(ast.MemberAccessNode)
	mt, mb, err := tc.checkExpr(f, d.Lhs)
	if err != nil {
		return err
	}
	if err := tc.memberWritable(d.Lhs.Tok, ma); err != nil {
		return err
	}
	rt, rb, err := tc.checkExpr(f, d.Rhs)
	if err != nil {
		return err
	}
	if !types.CanUnifyTo(rt, mt) {
		return util.TypeError(node.Tok, "cannot assign '%s' to member '%s' of type '%s'", rt, ma.Member, mt)
	}

	// storing into a struct held by a variable makes a new version of that variable
	if root, ok := tc.rootVar(ma.Expr); ok {
		v, _ := f.Lookup(root.Path)
		old := v.Value
		nv := f.Mutate(v.Path, tc.ctx.remint(old), v.Declared)
		tc.ctx.Flow.RecordAssignment(nv.Value, old, v.Declared)
		tc.ctx.Flow.RecordAssignment(mb.Value, rb.Value, mt)
		return nil
	}
	return tc.requireStore(node.Tok, mt, rb.Value, mb.Location)
}

// memberWritable rejects stores into read-only members and through read-only pointers.
// The holder of the member has already been typed.
func (tc *TypeChecker) memberWritable(tok token.Token, ma ast.MemberAccessNode) error {
	holder := ma.Expr.Typ
	if base, ok := holder.Pointee(); ok {
		if !holder.Writable {
			return util.TypeError(tok, "cannot write through read-only pointer of type '%s'", holder)
		}
		holder = base
	}
	if m, ok := holder.Member(ma.Member); ok && !m.Writable {
		return util.TypeError(tok, "member '%s' of '%s' is read-only", ma.Member, holder.Name)
	}
	return nil
}

// rootVar finds the variable a chain of direct member accesses starts from.
func (tc *TypeChecker) rootVar(node *ast.Node) (*Variable, bool) {
	switch node.Type {
	case ast.Ident:
		v, ok := tc.ctx.Vars[node]
		return v, ok
	case ast.MemberAccess:
		inner := node.Data.(ast.MemberAccessNode).Expr
		if inner.Typ != nil && inner.Typ.Kind == types.TYPE_POINTER {
			return nil, false
		}
		return tc.rootVar(inner)
	}
	return nil, false
}

func (tc *TypeChecker) checkReturn(f *TypeFrame, node *ast.Node) error {
	d := node.Data.(ast.ReturnNode)
	if d.Expr == nil {
		if tc.fn.ReturnType.Kind != types.TYPE_VOID {
			return util.TypeError(node.Tok, "function '%s' must return a value of type '%s'", tc.fn.Name, tc.fn.ReturnType)
		}
		return nil
	}
	rt, rb, err := tc.checkExpr(f, d.Expr)
	if err != nil {
		return err
	}
	if !types.CanUnifyTo(rt, tc.fn.ReturnType) {
		return util.TypeError(node.Tok, "cannot return '%s' from function '%s' returning '%s'", rt, tc.fn.Name, tc.fn.ReturnType)
	}
	return tc.requireStore(node.Tok, rt, rb.Value, tc.fn.Return)
}

// mintMembers gives every nested member of a struct value its own lifetime, linked to
// its parent by member edges. Members of a parameter are parameters themselves.
func (tc *TypeChecker) mintMembers(value lifetime.Lifetime, typ *types.Type) []lifetime.Lifetime {
	if typ.Kind != types.TYPE_STRUCT {
		return nil
	}
	origin := lifetime.Inferred
	if value.Origin == lifetime.Parameter {
		origin = lifetime.Parameter
	}
	var out []lifetime.Lifetime
	minted := map[ident.Path]lifetime.Lifetime{"": value}
	for _, mp := range types.MemberPaths(typ)[1:] {
		l := lifetime.New(value.Path.Join(mp.Path), origin)
		tc.ctx.Flow.RecordMember(minted[mp.Path.Pop()], l, mp.Type)
		minted[mp.Path] = l
		out = append(out, l)
	}
	return out
}
