package typeChecker

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/helixlang/helix/pkg/ast"
	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/ident"
	"github.com/helixlang/helix/pkg/lifetime"
	"github.com/helixlang/helix/pkg/predicate"
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/types"
	"github.com/helixlang/helix/pkg/util"
)

var at = token.At(1, 1)

func id(name string) *ast.Node                      { return ast.NewIdent(at, name) }
func num(v int64) *ast.Node                         { return ast.NewNumber(at, v) }
func block(stmts ...*ast.Node) *ast.Node            { return ast.NewBlock(at, stmts) }
func param(name string, t *types.Type) *ast.Node    { return ast.NewParam(at, name, t) }
func binop(op token.Type, l, r *ast.Node) *ast.Node { return ast.NewBinaryOp(at, op, l, r) }

func fn(name string, params []*ast.Node, ret *types.Type, stmts ...*ast.Node) *ast.Node {
	return ast.NewFuncDecl(at, name, params, ret, block(stmts...))
}

func newTestContext(cfg *config.Config) (*Context, *bytes.Buffer) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	var buf bytes.Buffer
	return NewContext(cfg, util.NewReporter(&buf, cfg)), &buf
}

func check(t *testing.T, cfg *config.Config, funcs ...*ast.Node) (*Context, error) {
	t.Helper()
	ctx, _ := newTestContext(cfg)
	err := NewTypeChecker(ctx).Check(&ast.Program{Funcs: funcs})
	return ctx, err
}

func mustCheck(t *testing.T, cfg *config.Config, funcs ...*ast.Node) *Context {
	t.Helper()
	ctx, err := check(t, cfg, funcs...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ctx
}

func expectDiagnostic(t *testing.T, err error, kind util.DiagnosticKind) {
	t.Helper()
	var d *util.Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("expected a diagnostic, got %v", err)
	}
	if d.Kind != kind {
		t.Errorf("expected a %s, got %s: %s", kind, d.Kind, d.Message)
	}
}

func expectType(t *testing.T, what string, node *ast.Node, want *types.Type) {
	t.Helper()
	if !node.Typ.Equal(want) {
		t.Errorf("%s: expected type %s, got %s", what, want, node.Typ)
	}
}

var unionU = types.NewUnion("U",
	types.Member{Name: "a", Type: types.TypeWord, Writable: true},
	types.Member{Name: "b", Type: types.TypeBool, Writable: true},
)

func TestUnionNarrowing(t *testing.T) {
	uptr := types.PointerTo(unionU, true)
	deref := ast.NewIndirection(at, id("u"))
	ifNode := ast.NewIf(at, ast.NewIs(at, id("u"), "a"), block(deref), block(num(0)))
	after := id("u")

	ctx := mustCheck(t, nil, fn("f", []*ast.Node{param("u", uptr)}, types.TypeWord,
		ast.NewVarDecl(at, "r", ifNode),
		after,
		ast.NewReturn(at, id("r")),
	))

	branch := ctx.Branches[ifNode]
	if branch == nil || len(branch.ThenVars) != 1 || len(branch.ElseVars) != 1 {
		t.Fatalf("expected one flow variable per arm, got %+v", branch)
	}
	uPath := ident.New("f", "u")
	fv := branch.ThenVars[0]
	if fv.FlowOf != uPath || fv.Member != "a" || !fv.Declared.Equal(types.PointerTo(types.TypeWord, true)) {
		t.Errorf("unexpected then flow variable %+v", fv)
	}
	if ev := branch.ElseVars[0]; ev.Member != "b" || !ev.Declared.Equal(types.PointerTo(types.TypeBool, true)) {
		t.Errorf("unexpected else flow variable %+v", ev)
	}

	want := []predicate.Implication{{Var: uPath, Kind: predicate.ImpliesTag, Union: "U", Member: "a", Tag: 0}}
	if diff := cmp.Diff(want, branch.Affirm.Implications()); diff != "" {
		t.Errorf("implications mismatch (-want +got):\n%s", diff)
	}

	if v := ctx.Vars[deref.Data.(ast.IndirectionNode).Expr]; v != fv {
		t.Errorf("expected u inside the branch to resolve to the flow variable, got %+v", v)
	}
	expectType(t, "deref", deref, types.TypeWord)
	expectType(t, "if", ifNode, types.TypeWord)
	expectType(t, "u after the if", after, uptr)
}

func TestNarrowingDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatUnionNarrowing, false)
	ifNode := ast.NewIf(at, ast.NewIs(at, id("u"), "a"), block(num(1)), block(num(0)))
	ctx := mustCheck(t, cfg, fn("f", []*ast.Node{param("u", types.PointerTo(unionU, true))}, types.TypeWord,
		ast.NewReturn(at, ifNode),
	))
	if b := ctx.Branches[ifNode]; len(b.ThenVars) != 0 || len(b.ElseVars) != 0 {
		t.Errorf("expected no flow variables, got %+v", b)
	}
}

func TestIsErrors(t *testing.T) {
	uptr := types.PointerTo(unionU, true)
	for name, body := range map[string]*ast.Node{
		"unknown member": ast.NewIs(at, id("u"), "c"),
		"not a union":    ast.NewIs(at, id("n"), "a"),
		"not a variable": ast.NewIs(at, num(1), "a"),
		"raw member":     ast.NewMemberAccess(at, id("u"), "a"),
	} {
		_, err := check(t, nil, fn("f", []*ast.Node{param("u", uptr), param("n", types.TypeWord)}, nil, body))
		if err == nil {
			t.Errorf("%s: expected an error", name)
			continue
		}
		expectDiagnostic(t, err, util.DiagType)
	}
}

func TestIsOnNarrowedVariable(t *testing.T) {
	inner := ast.NewIs(at, id("u"), "b")
	_, err := check(t, nil, fn("f", []*ast.Node{param("u", types.PointerTo(unionU, true))}, nil,
		ast.NewIf(at, ast.NewIs(at, id("u"), "a"), block(inner), block(ast.NewBool(at, false))),
	))
	expectDiagnostic(t, err, util.DiagType)
	var d *util.Diagnostic
	if errors.As(err, &d) && !strings.Contains(d.Message, "already narrowed to member 'a'") {
		t.Errorf("expected the diagnostic to name the narrowing, got %q", d.Message)
	}
}

func TestMemberWritability(t *testing.T) {
	s := types.NewStruct("S",
		types.Member{Name: "x", Type: types.TypeWord, Writable: true},
		types.Member{Name: "y", Type: types.TypeWord},
	)
	store := func(ptr *types.Type, member string) *ast.Node {
		return fn("f", []*ast.Node{param("s", ptr)}, nil,
			ast.NewAssign(at, ast.NewMemberAccess(at, id("s"), member), num(1)),
		)
	}
	mustCheck(t, nil, store(types.PointerTo(s, true), "x"))
	for name, f := range map[string]*ast.Node{
		"read-only member":  store(types.PointerTo(s, true), "y"),
		"read-only pointer": store(types.PointerTo(s, false), "x"),
	} {
		_, err := check(t, nil, f)
		if err == nil {
			t.Errorf("%s: expected an error", name)
			continue
		}
		expectDiagnostic(t, err, util.DiagType)
	}
}

func TestIfMergeTypes(t *testing.T) {
	distinct := ast.NewIf(at, id("c"), block(num(5)), block(num(7)))
	same := ast.NewIf(at, id("c"), block(num(5)), block(num(5)))
	declY := ast.NewVarDecl(at, "y", same)

	ctx := mustCheck(t, nil, fn("g", []*ast.Node{param("c", types.TypeBool)}, types.TypeWord,
		ast.NewVarDecl(at, "x", distinct),
		declY,
		ast.NewReturn(at, id("x")),
	))
	expectType(t, "5 else 7", distinct, types.TypeWord)
	expectType(t, "5 else 5", same, types.SingularWord(5))
	if v := ctx.Vars[declY]; !v.Current.Equal(types.SingularWord(5)) || !v.Declared.Equal(types.TypeWord) {
		t.Errorf("expected y to be declared word and known to be 5, got %s / %s", v.Declared, v.Current)
	}
}

func TestIfIncompatibleArms(t *testing.T) {
	_, err := check(t, nil, fn("g", []*ast.Node{param("c", types.TypeBool)}, nil,
		ast.NewVarDecl(at, "x", ast.NewIf(at, id("c"), block(num(5)), block(ast.NewBool(at, true)))),
	))
	expectDiagnostic(t, err, util.DiagType)

	_, err = check(t, nil, fn("g", nil, nil, ast.NewIf(at, num(1), block(), nil)))
	expectDiagnostic(t, err, util.DiagType)
}

func TestBoolMergeKeepsPredicate(t *testing.T) {
	ifNode := ast.NewIf(at, id("c"), block(id("x")), block(ast.NewBool(at, false)))
	mustCheck(t, nil, fn("g", []*ast.Node{param("c", types.TypeBool), param("x", types.TypeBool)}, types.TypeBool,
		ast.NewReturn(at, ifNode),
	))
	if ifNode.Typ.Kind != types.TYPE_PREDICATE_BOOL || ifNode.Typ.Pred.String() != "c and x" {
		t.Errorf("expected bool{c and x}, got %s", ifNode.Typ)
	}
}

func TestMergeKeepsSharedPredicate(t *testing.T) {
	f := NewTypeFrame(ident.New("f"), lifetime.NewDataFlowGraph())
	path := ident.New("f", "b")
	f.Declare(&Variable{Name: "b", Path: path, Declared: types.TypeBool, Current: types.TypeBool, Value: lifetime.New(path, lifetime.Inferred)})

	shared := predicate.FromLeaf(predicate.BoolVar{Var: ident.New("f", "c")}).
		And(predicate.FromLeaf(predicate.BoolVar{Var: ident.New("f", "d")}))
	then, els := f.Fork("then"), f.Fork("else")
	then.SetPredicate(path, shared)
	els.SetPredicate(path, shared)
	f.Merge(then, els, func(l lifetime.Lifetime) lifetime.Lifetime { return l.Bump() })

	got, ok := f.Predicate(path)
	if !ok {
		t.Fatal("expected the predicate both arms stored to survive the merge")
	}
	if got.Key() != shared.Key() {
		t.Errorf("expected %v, got %v", shared, got)
	}
}

func TestWordFactsStayInBranch(t *testing.T) {
	inThen, inElse, after := id("n"), id("n"), id("n")
	mustCheck(t, nil, fn("h", []*ast.Node{param("n", types.TypeWord)}, types.TypeWord,
		ast.NewIf(at, binop(token.EqEq, id("n"), num(5)), block(inThen), block(inElse)),
		ast.NewReturn(at, after),
	))
	expectType(t, "then", inThen, types.SingularWord(5))
	expectType(t, "else", inElse, types.TypeWord)
	expectType(t, "after", after, types.TypeWord)
}

func TestPredicateStore(t *testing.T) {
	build := func() (*ast.Node, *ast.Node) {
		inThen := id("n")
		return fn("h", []*ast.Node{param("n", types.TypeWord)}, types.TypeWord,
			ast.NewVarDecl(at, "c", binop(token.EqEq, id("n"), num(5))),
			ast.NewReturn(at, ast.NewIf(at, id("c"), block(inThen), block(num(0)))),
		), inThen
	}

	f, inThen := build()
	mustCheck(t, nil, f)
	expectType(t, "stored predicate", inThen, types.SingularWord(5))

	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatPredicateStore, false)
	f, inThen = build()
	mustCheck(t, cfg, f)
	expectType(t, "without predicate store", inThen, types.TypeWord)
}

func TestAssignmentInvalidatesPredicate(t *testing.T) {
	cond, inThen := id("c"), id("n")
	mustCheck(t, nil, fn("h", []*ast.Node{param("n", types.TypeWord)}, types.TypeWord,
		ast.NewVarDecl(at, "c", binop(token.EqEq, id("n"), num(5))),
		ast.NewAssign(at, id("n"), num(3)),
		ast.NewReturn(at, ast.NewIf(at, cond, block(inThen), block(num(0)))),
	))
	want := types.PredicateBool(predicate.FromLeaf(predicate.BoolVar{Var: ident.New("h", "c")}))
	expectType(t, "condition", cond, want)
	expectType(t, "n in then", inThen, types.SingularWord(3))
}

func TestAddressedVariableIsNotNarrowed(t *testing.T) {
	cond, inThen := binop(token.EqEq, id("x"), num(5)), id("x")
	mustCheck(t, nil, fn("h", nil, types.TypeWord,
		ast.NewVarDecl(at, "x", num(5)),
		ast.NewVarDecl(at, "p", ast.NewAddressOf(at, id("x"))),
		ast.NewReturn(at, ast.NewIf(at, cond, block(inThen), block(num(0)))),
	))
	expectType(t, "condition", cond, types.TypeBool)
	expectType(t, "x", inThen, types.TypeWord)
}

func TestUnreachableWarning(t *testing.T) {
	ctx := mustCheck(t, nil, fn("h", nil, types.TypeWord,
		ast.NewReturn(at, ast.NewIf(at, ast.NewBool(at, true), block(num(1)), block(num(2)))),
	))
	warnings := ctx.Reporter.Warnings()
	if len(warnings) != 1 || warnings[0].Warning != config.WarnUnreachableCode {
		t.Errorf("expected one unreachable-code warning, got %+v", warnings)
	}
}

func TestOverflowWarning(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetTarget("linux", "riscv", "rv32")
	sum := binop(token.Plus, num(2147483647), num(1))
	ctx := mustCheck(t, cfg, fn("h", nil, types.TypeWord, ast.NewReturn(at, sum)))
	expectType(t, "overflowing sum", sum, types.TypeWord)
	if w := ctx.Reporter.Warnings(); len(w) != 1 || w[0].Warning != config.WarnOverflow {
		t.Errorf("expected one overflow warning, got %+v", w)
	}
}

func TestReturnLocalAddress(t *testing.T) {
	_, err := check(t, nil, fn("f", []*ast.Node{param("x", types.TypeWord)}, types.PointerTo(types.TypeWord, true),
		ast.NewReturn(at, ast.NewAddressOf(at, id("x"))),
	))
	expectDiagnostic(t, err, util.DiagLifetime)
}

func TestStoreParameterIntoParameter(t *testing.T) {
	pp := types.PointerTo(types.PointerTo(types.TypeWord, true), true)
	_, err := check(t, nil, fn("f", []*ast.Node{param("p", pp), param("q", types.PointerTo(types.TypeWord, true))}, nil,
		ast.NewAssign(at, ast.NewIndirection(at, id("p")), id("q")),
	))
	expectDiagnostic(t, err, util.DiagLifetime)
}

// The store happens before anything says where the allocation ends up.
func TestStoreThenEscape(t *testing.T) {
	wp := types.PointerTo(types.TypeWord, true)
	pp := types.PointerTo(wp, true)
	_, err := check(t, nil, fn("f", []*ast.Node{param("q", types.TypeWord)}, pp,
		ast.NewVarDecl(at, "r", ast.NewNew(at, wp)),
		ast.NewAssign(at, ast.NewIndirection(at, id("r")), ast.NewAddressOf(at, id("q"))),
		ast.NewReturn(at, id("r")),
	))
	expectDiagnostic(t, err, util.DiagLifetime)

	mustCheck(t, nil, fn("g", []*ast.Node{param("q", wp)}, pp,
		ast.NewVarDecl(at, "r", ast.NewNew(at, wp)),
		ast.NewAssign(at, ast.NewIndirection(at, id("r")), id("q")),
		ast.NewReturn(at, id("r")),
	))
}

func TestStoreThroughAlias(t *testing.T) {
	wp := types.PointerTo(types.TypeWord, true)
	body := func(stored *ast.Node) []*ast.Node {
		return []*ast.Node{
			ast.NewVarDecl(at, "y", num(1)),
			ast.NewVarDecl(at, "a", ast.NewAddressOf(at, id("y"))),
			ast.NewVarDecl(at, "pa", ast.NewAddressOf(at, id("a"))),
			ast.NewAssign(at, ast.NewIndirection(at, id("pa")), stored),
			ast.NewReturn(at, id("a")),
		}
	}
	_, err := check(t, nil, fn("f", []*ast.Node{param("q", types.TypeWord)}, wp, body(ast.NewAddressOf(at, id("q")))...))
	expectDiagnostic(t, err, util.DiagLifetime)

	ret := ast.NewIdent(at, "a")
	stmts := body(id("q"))
	stmts[len(stmts)-1] = ast.NewReturn(at, ret)
	ctx := mustCheck(t, nil, fn("g", []*ast.Node{param("q", wp)}, wp, stmts...))
	a := ctx.Vars[ret]
	q := ctx.Funcs["g"].Params[0]
	if a.Value.Version == 0 {
		t.Errorf("expected a new version of a after the store through pa, got %s", a.Value)
	}
	if !slices.Contains(ctx.Flow.Precursors(a.Value), q.Value) {
		t.Errorf("expected %s to flow into %s:\n%s", q.Value, a.Value, ctx.Flow.Dump())
	}
}

func TestAllocationFollowsStore(t *testing.T) {
	pp := types.PointerTo(types.PointerTo(types.TypeWord, true), true)
	alloc := ast.NewNew(at, types.TypeWord)
	ctx := mustCheck(t, nil, fn("f", []*ast.Node{param("p", pp)}, nil,
		ast.NewVarDecl(at, "x", alloc),
		ast.NewAssign(at, ast.NewIndirection(at, id("p")), id("x")),
	))
	l, ok := ctx.Allocations[alloc]
	if !ok {
		t.Fatal("expected the allocation to be recorded")
	}
	p := ctx.Funcs["f"].Params[0]
	if !ctx.Outlives.DoesOutlive(l, p.Value) {
		t.Errorf("expected %s to outlive %s:\n%s", l, p.Value, ctx.Outlives.Dump())
	}
}

func TestReturnLocalVariableAddress(t *testing.T) {
	ctx := mustCheck(t, nil, fn("f", nil, types.PointerTo(types.TypeWord, true),
		ast.NewVarDecl(at, "x", num(1)),
		ast.NewReturn(at, ast.NewAddressOf(at, id("x"))),
	))
	x := lifetime.New(ident.New("f", "x", "$storage"), lifetime.Inferred)
	if !ctx.Outlives.DoesOutlive(x, ctx.Funcs["f"].Return) {
		t.Errorf("expected the storage of x to outlive the return region:\n%s", ctx.Outlives.Dump())
	}
}
