// Package codegen lowers a checked Helix program to C, placing every allocation in the
// smallest region its lifetime allows.
package codegen

import (
	"sort"

	"github.com/nikandfor/errors"

	"github.com/helixlang/helix/pkg/ast"
	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/ident"
	"github.com/helixlang/helix/pkg/ir"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/typeChecker"
	"github.com/helixlang/helix/pkg/types"
	"github.com/helixlang/helix/pkg/util"
)

const RuntimeHeader = "helix.h"

var binaryOps = map[token.Type]string{
	token.Plus: "+", token.Minus: "-", token.Star: "*",
	token.Lt: "<", token.Gt: ">", token.Lte: "<=", token.Gte: ">=",
	token.EqEq: "==", token.Neq: "!=",
	token.And: "&&", token.Or: "||", token.Xor: "^",
}

// Generator emits C for programs the type checker accepted. It reads the checker's
// result tables from the shared context.
type Generator struct {
	ctx     *typeChecker.Context
	cfg     *config.Config
	fn      *typeChecker.FuncInfo
	w       *Writer
	regions *RegionResolver
	boxed   map[ident.Path]bool
}

func NewGenerator(ctx *typeChecker.Context) *Generator {
	return &Generator{ctx: ctx, cfg: ctx.Cfg}
}

func (g *Generator) Generate(prog *ast.Program) (*ir.Program, error) {
	out := &ir.Program{Header: RuntimeHeader, Types: typeDecls(prog.Types)}
	for _, node := range prog.Funcs {
		f, err := g.genFunc(node)
		if err != nil {
			return nil, errors.Wrap(err, "generate %s", node.Data.(ast.FuncDeclNode).Name)
		}
		out.Funcs = append(out.Funcs, f)
	}
	return out, nil
}

func typeDecls(named map[string]*types.Type) []*ir.TypeDecl {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	var decls []*ir.TypeDecl
	for _, name := range names {
		t := named[name]
		if t.Kind != types.TYPE_STRUCT && t.Kind != types.TYPE_UNION {
			continue
		}
		decl := &ir.TypeDecl{Name: name, IsUnion: t.Kind == types.TYPE_UNION}
		for _, m := range t.Members {
			decl.Fields = append(decl.Fields, ir.Field{Type: m.Type.CType(), Name: m.Name})
		}
		decls = append(decls, decl)
	}
	return decls
}

func (g *Generator) genFunc(node *ast.Node) (*ir.Func, error) {
	d := node.Data.(ast.FuncDeclNode)
	g.fn = g.ctx.Funcs[d.Name]
	g.w = NewWriter(g.ctx)
	g.regions = NewRegionResolver(g.ctx.Flow, g.ctx.Outlives, g.w)
	g.boxed = make(map[ident.Path]bool)

	f := &ir.Func{
		Name:       d.Name,
		ReturnType: g.fn.ReturnType.CType(),
		Params:     []ir.Param{{Type: "_Region*", Name: "_return_region"}},
	}
	g.regions.Register(g.fn.Return, &ir.Var{Name: "_return_region"})
	g.regions.Register(lifetime.HeapLifetime, &ir.Call{Name: "_region_heap"})
	for _, p := range g.fn.Params {
		name := g.w.Name(p.Path, p.Name)
		f.Params = append(f.Params, ir.Param{Type: p.Declared.CType(), Name: name})
		g.registerParam(p.Value, &ir.Var{Name: name}, p.Declared)
	}

	if d.Body == nil {
		return f, nil
	}
	body, err := g.w.Nested(func() error {
		_, err := g.genStmts(d.Body.Data.(ast.BlockNode).Stmts, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.Body = body
	return f, nil
}

// registerParam makes the region a pointer parameter (or a pointer member of a struct
// parameter) points into available as _region_get of that pointer.
func (g *Generator) registerParam(value lifetime.Lifetime, expr ir.Value, typ *types.Type) {
	for _, mp := range types.MemberPaths(typ) {
		if mp.Type.Kind != types.TYPE_POINTER {
			continue
		}
		access := expr
		for _, seg := range mp.Path.Segments() {
			access = &ir.Member{Value: access, Name: seg}
		}
		l := lifetime.New(value.Path.Join(mp.Path), lifetime.Parameter)
		g.regions.Register(l, &ir.Call{Name: "_region_get", Args: []ir.Value{access}})
	}
}

// nested emits fn into a C block scope of its own.
func (g *Generator) nested(fn func() error) ([]ir.Stmt, error) {
	restore := g.regions.Scope()
	defer restore()
	return g.w.Nested(fn)
}

// genStmts emits a statement list. With want set, the value of a trailing expression
// statement is returned instead of dropped.
func (g *Generator) genStmts(stmts []*ast.Node, want bool) (ir.Value, error) {
	var last ir.Value
	for i, stmt := range stmts {
		last = nil
		switch stmt.Type {
		case ast.VarDecl:
			if err := g.genVarDecl(stmt); err != nil {
				return nil, err
			}
		case ast.Assign:
			if err := g.genAssign(stmt); err != nil {
				return nil, err
			}
		case ast.Return:
			if err := g.genReturn(stmt); err != nil {
				return nil, err
			}
		default:
			v, err := g.genExpr(stmt, want && i == len(stmts)-1)
			if err != nil {
				return nil, err
			}
			last = v
		}
	}
	return last, nil
}

func (g *Generator) genVarDecl(node *ast.Node) error {
	d := node.Data.(ast.VarDeclNode)
	init, err := g.genExpr(d.Init, true)
	if err != nil {
		return err
	}
	return g.declare(node.Tok, g.ctx.Vars[node], init)
}

// declare emits the storage of v. Storage that must outlive the function's frame is
// carved from a region and every later use goes through the pointer.
func (g *Generator) declare(tok token.Token, v *typeChecker.Variable, init ir.Value) error {
	name := g.w.Name(v.Path, v.Name)
	ctype := v.Declared.CType()
	region, err := g.storageRegion(tok, v.Location)
	if err != nil {
		return err
	}
	if region == nil {
		g.w.Emit(&ir.Decl{Type: ctype, Name: name, Init: init})
		return nil
	}
	g.boxed[v.Path] = true
	g.w.Emit(
		&ir.Decl{Type: ctype + "*", Name: name, Init: malloc(region, ctype)},
		&ir.Assign{Target: &ir.Deref{Value: &ir.Var{Name: name}}, Value: init},
	)
	return nil
}

// storageRegion picks the region for storage with lifetime l, or nil for the stack.
// Without region inference anything that escapes goes to the heap.
func (g *Generator) storageRegion(tok token.Token, l lifetime.Lifetime) (ir.Value, error) {
	roots := g.ctx.Outlives.OutlivedBy(l)
	if !g.cfg.IsFeatureEnabled(config.FeatRegionInference) {
		if len(ReduceRoots(g.ctx.Outlives, roots)) == 0 {
			return nil, nil
		}
		return g.regions.region(tok, lifetime.HeapLifetime)
	}
	return g.regions.SmallestRegionFor(tok, roots)
}

func malloc(region ir.Value, ctype string) ir.Value {
	return &ir.Cast{Type: ctype + "*", Value: &ir.Call{
		Name: "_region_malloc",
		Args: []ir.Value{region, &ir.SizeOf{Type: ctype}},
	}}
}

func (g *Generator) genAssign(node *ast.Node) error {
	d := node.Data.(ast.AssignNode)
	target, err := g.genLValue(d.Lhs)
	if err != nil {
		return err
	}
	value, err := g.genExpr(d.Rhs, true)
	if err != nil {
		return err
	}
	g.w.Emit(&ir.Assign{Target: target, Value: value})
	return nil
}

func (g *Generator) genLValue(node *ast.Node) (ir.Value, error) {
	switch node.Type {
	case ast.Ident: return g.varValue(node.Tok, g.ctx.Vars[node].Path)
	case ast.Indirection, ast.MemberAccess: return g.genExpr(node, true)
	}
	return nil, util.InternalError(node.Tok, "cannot assign to a %s node", node.Type)
}

func (g *Generator) genReturn(node *ast.Node) error {
	d := node.Data.(ast.ReturnNode)
	if d.Expr == nil {
		g.w.Emit(&ir.Return{})
		return nil
	}
	v, err := g.genExpr(d.Expr, true)
	if err != nil {
		return err
	}
	g.w.Emit(&ir.Return{Value: v})
	return nil
}

// varValue reads the variable at path, dereferencing region-backed storage.
func (g *Generator) varValue(tok token.Token, path ident.Path) (ir.Value, error) {
	name, ok := g.w.Lookup(path)
	if !ok {
		return nil, util.InternalError(tok, "no C name for variable '%s'", path)
	}
	if g.boxed[path] {
		return &ir.Deref{Value: &ir.Var{Name: name}}, nil
	}
	return &ir.Var{Name: name}, nil
}

// genExpr emits the statements node needs and returns its value. Values known at
// compile time are emitted as constants.
func (g *Generator) genExpr(node *ast.Node, want bool) (ir.Value, error) {
	if node.Typ != nil && node.Typ.IsSingular() && node.Type != ast.If && node.Type != ast.Block {
		if node.Typ.Kind == types.TYPE_SINGULAR_BOOL {
			return boolConst(node.Typ.Bool), nil
		}
		return &ir.Const{Value: node.Typ.Word}, nil
	}

	switch node.Type {
	case ast.Number: return &ir.Const{Value: node.Data.(ast.NumberNode).Value}, nil
	case ast.Bool: return boolConst(node.Data.(ast.BoolNode).Value), nil
	case ast.Ident: return g.varValue(node.Tok, g.ctx.Vars[node].Path)
	case ast.BinaryOp: return g.genBinary(node)
	case ast.UnaryOp: return g.genUnary(node)
	case ast.Is: return g.genIs(node)
	case ast.AddressOf: return g.genAddressOf(node)
	case ast.Indirection:
		v, err := g.genExpr(node.Data.(ast.IndirectionNode).Expr, true)
		if err != nil {
			return nil, err
		}
		return &ir.Deref{Value: v}, nil
	case ast.MemberAccess: return g.genMemberAccess(node)
	case ast.New: return g.genNew(node)
	case ast.If: return g.genIf(node, want)
	case ast.Block: return g.genBlock(node, want)
	}
	return nil, util.InternalError(node.Tok, "unexpected %s node in expression position", node.Type)
}

func boolConst(b bool) ir.Value {
	if b {
		return &ir.Const{Value: 1}
	}
	return &ir.Const{Value: 0}
}

func (g *Generator) genBinary(node *ast.Node) (ir.Value, error) {
	d := node.Data.(ast.BinaryOpNode)
	l, err := g.genExpr(d.Left, true)
	if err != nil {
		return nil, err
	}
	r, err := g.genExpr(d.Right, true)
	if err != nil {
		return nil, err
	}
	op, ok := binaryOps[d.Op]
	if !ok {
		return nil, util.InternalError(node.Tok, "unknown binary operator %s", d.Op)
	}
	return &ir.Binary{Op: op, Left: l, Right: r}, nil
}

func (g *Generator) genUnary(node *ast.Node) (ir.Value, error) {
	d := node.Data.(ast.UnaryOpNode)
	v, err := g.genExpr(d.Expr, true)
	if err != nil {
		return nil, err
	}
	if d.Op == token.Not {
		return &ir.Unary{Op: "!", Value: v}, nil
	}
	return &ir.Unary{Op: "-", Value: v}, nil
}

// genIs compares the union's tag against the member's index.
func (g *Generator) genIs(node *ast.Node) (ir.Value, error) {
	d := node.Data.(ast.IsNode)
	v := g.ctx.Vars[d.Target]
	u, _ := v.Declared.AsUnion()
	target, err := g.varValue(node.Tok, v.Path)
	if err != nil {
		return nil, err
	}
	return &ir.Binary{
		Op:    "==",
		Left:  &ir.Member{Value: target, Name: "tag", Arrow: true},
		Right: &ir.Const{Value: int64(types.UnionIndex(u, d.Member))},
	}, nil
}

func (g *Generator) genAddressOf(node *ast.Node) (ir.Value, error) {
	lv := node.Data.(ast.AddressOfNode).LValue
	switch lv.Type {
	case ast.Ident:
		v := g.ctx.Vars[lv]
		name, ok := g.w.Lookup(v.Path)
		if !ok {
			return nil, util.InternalError(lv.Tok, "no C name for variable '%s'", v.Path)
		}
		if g.boxed[v.Path] {
			return &ir.Var{Name: name}, nil
		}
		return &ir.AddrOf{Value: &ir.Var{Name: name}}, nil
	case ast.Indirection:
		return g.genExpr(lv.Data.(ast.IndirectionNode).Expr, true)
	}
	v, err := g.genExpr(lv, true)
	if err != nil {
		return nil, err
	}
	return &ir.AddrOf{Value: v}, nil
}

func (g *Generator) genMemberAccess(node *ast.Node) (ir.Value, error) {
	d := node.Data.(ast.MemberAccessNode)
	v, err := g.genExpr(d.Expr, true)
	if err != nil {
		return nil, err
	}
	return &ir.Member{Value: v, Name: d.Member, Arrow: d.Expr.Typ.Kind == types.TYPE_POINTER}, nil
}

// genNew allocates in the region inferred for the allocation. An allocation that never
// escapes becomes a stack slot.
func (g *Generator) genNew(node *ast.Node) (ir.Value, error) {
	ctype := node.Data.(ast.NewNode).Type.CType()
	alloc, ok := g.ctx.Allocations[node]
	if !ok {
		return nil, util.InternalError(node.Tok, "allocation was never checked")
	}
	region, err := g.storageRegion(node.Tok, alloc)
	if err != nil {
		return nil, err
	}
	if region != nil {
		return malloc(region, ctype), nil
	}
	slot := g.w.Temp()
	g.w.Emit(&ir.Decl{Type: ctype, Name: slot})
	return &ir.AddrOf{Value: &ir.Var{Name: slot}}, nil
}

// genIf emits an if statement. When the value is wanted it is collected in a temporary
// both arms assign.
func (g *Generator) genIf(node *ast.Node, want bool) (ir.Value, error) {
	d := node.Data.(ast.IfNode)
	branch := g.ctx.Branches[node]
	cond, err := g.genExpr(d.Cond, true)
	if err != nil {
		return nil, err
	}

	var result *ir.Var
	if want && node.Typ.Kind != types.TYPE_VOID {
		result = &ir.Var{Name: g.w.Temp()}
		g.w.Emit(&ir.Decl{Type: node.Typ.CType(), Name: result.Name})
	}

	arm := func(body *ast.Node, flowVars []*typeChecker.Variable) ([]ir.Stmt, error) {
		return g.nested(func() error {
			if err := g.downcast(node.Tok, flowVars); err != nil {
				return err
			}
			v, err := g.genArm(body, result != nil)
			if err != nil {
				return err
			}
			if result != nil && v != nil {
				g.w.Emit(&ir.Assign{Target: result, Value: v})
			}
			return nil
		})
	}

	stmt := &ir.If{Cond: cond}
	if stmt.Then, err = arm(d.ThenBody, branch.ThenVars); err != nil {
		return nil, err
	}
	if d.ElseBody != nil {
		if stmt.Else, err = arm(d.ElseBody, branch.ElseVars); err != nil {
			return nil, err
		}
	}
	g.w.Emit(stmt)

	if result == nil {
		return nil, nil
	}
	return result, nil
}

func (g *Generator) genArm(body *ast.Node, want bool) (ir.Value, error) {
	if body.Type == ast.Block {
		return g.genStmts(body.Data.(ast.BlockNode).Stmts, want)
	}
	return g.genExpr(body, want)
}

// downcast declares the flow variables of one arm as pointers into the union's payload.
func (g *Generator) downcast(tok token.Token, flowVars []*typeChecker.Variable) error {
	for _, fv := range flowVars {
		union, err := g.varValue(tok, fv.FlowOf)
		if err != nil {
			return err
		}
		payload := &ir.Member{Value: &ir.Member{Value: union, Name: "data", Arrow: true}, Name: fv.Member}
		g.w.Emit(&ir.Comment{Text: "Union downcast flowtyping"})
		if err := g.declare(tok, fv, &ir.AddrOf{Value: payload}); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genBlock(node *ast.Node, want bool) (ir.Value, error) {
	var result *ir.Var
	if want && node.Typ.Kind != types.TYPE_VOID {
		result = &ir.Var{Name: g.w.Temp()}
		g.w.Emit(&ir.Decl{Type: node.Typ.CType(), Name: result.Name})
	}
	body, err := g.nested(func() error {
		v, err := g.genStmts(node.Data.(ast.BlockNode).Stmts, result != nil)
		if err != nil {
			return err
		}
		if result != nil && v != nil {
			g.w.Emit(&ir.Assign{Target: result, Value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.w.Emit(&ir.Block{Body: body})
	if result == nil {
		return nil, nil
	}
	return result, nil
}
