package predicate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/helixlang/helix/pkg/ident"
)

var (
	pathX = ident.New("main", "x")
	pathY = ident.New("main", "y")
	pathN = ident.New("main", "n")
	pathU = ident.New("main", "u")
)

func boolVar(p ident.Path) Term { return FromLeaf(BoolVar{Var: p}) }

func TestIdempotence(t *testing.T) {
	x, y := boolVar(pathX), boolVar(pathY)
	terms := []Term{x, x.Or(y), x.And(y), x.And(y.Negate()).Or(y)}
	for _, term := range terms {
		if got := term.And(term); !got.Equal(term) {
			t.Errorf("expected %v and itself to be %v, got %v", term, term, got)
		}
		if got := term.Or(term); !got.Equal(term) {
			t.Errorf("expected %v or itself to be %v, got %v", term, term, got)
		}
	}
}

func TestDoubleNegation(t *testing.T) {
	x, y := boolVar(pathX), boolVar(pathY)
	terms := []Term{x, x.And(y), x.Or(y.Negate())}
	for _, term := range terms {
		if got := term.Negate().Negate(); !got.Equal(term) {
			t.Errorf("expected %v, got %v", term, got)
		}
	}
}

func TestContradictionAndTautology(t *testing.T) {
	x := boolVar(pathX)
	if got := x.And(x.Negate()); !got.IsFalse() {
		t.Errorf("expected false, got %v", got)
	}
	if got := x.Or(x.Negate()); !got.IsTrue() {
		t.Errorf("expected true, got %v", got)
	}

	five := FromLeaf(WordVar{Var: pathN, Value: 5})
	seven := FromLeaf(WordVar{Var: pathN, Value: 7})
	if got := five.And(seven); !got.IsFalse() {
		t.Errorf("expected n == 5 and n == 7 to be false, got %v", got)
	}
	if got := five.Negate().Or(seven.Negate()); !got.IsTrue() {
		t.Errorf("expected n != 5 or n != 7 to be true, got %v", got)
	}
}

func TestWordSubsumption(t *testing.T) {
	eq := FromLeaf(WordVar{Var: pathN, Value: 5})
	ne := FromLeaf(WordVar{Var: pathN, Value: 7, Negated: true})
	if got := eq.And(ne); !got.Equal(eq) {
		t.Errorf("expected %v, got %v", eq, got)
	}
	if got := eq.Or(ne); !got.Equal(ne) {
		t.Errorf("expected %v, got %v", ne, got)
	}
}

func TestLiterals(t *testing.T) {
	x := boolVar(pathX)
	if got := x.And(True()); !got.Equal(x) {
		t.Errorf("expected %v, got %v", x, got)
	}
	if got := x.And(False()); !got.IsFalse() {
		t.Errorf("expected false, got %v", got)
	}
	if got := x.Or(True()); !got.IsTrue() {
		t.Errorf("expected true, got %v", got)
	}
	if got := x.Or(False()); !got.Equal(x) {
		t.Errorf("expected %v, got %v", x, got)
	}
	if got := FromBool(true).String(); got != "true" {
		t.Errorf("expected true, got %q", got)
	}
	if got := FromBool(false).String(); got != "false" {
		t.Errorf("expected false, got %q", got)
	}
}

func TestUnionTags(t *testing.T) {
	all := []string{"a", "b", "c"}
	isA := NewUnionTag(pathU, "U", all, "a")
	isB := NewUnionTag(pathU, "U", all, "b")

	if got, ok := andLeaves(isA, isB); !ok || got.Key() != litFalse.Key() {
		t.Errorf("expected false, got %v", got)
	}
	either, ok := orLeaves(isA, isB)
	if !ok {
		t.Fatal("expected tags to combine")
	}
	if got := either.String(); got != "u is { a; b }" {
		t.Errorf("expected \"u is { a; b }\", got %q", got)
	}
	if got := either.Negate().String(); got != "u is c" {
		t.Errorf("expected \"u is c\", got %q", got)
	}
	if got := NewUnionTag(pathU, "U", all, "a", "b", "c"); got.Key() != litTrue.Key() {
		t.Errorf("expected true, got %v", got)
	}
	if got := NewUnionTag(pathU, "U", all); got.Key() != litFalse.Key() {
		t.Errorf("expected false, got %v", got)
	}
}

func TestImplications(t *testing.T) {
	all := []string{"a", "b"}
	cond := FromLeaf(NewUnionTag(pathU, "U", all, "a")).
		And(FromLeaf(BoolVar{Var: pathX, Negated: true})).
		And(FromLeaf(WordVar{Var: pathN, Value: 3}))

	want := []Implication{
		{Var: pathN, Kind: ImpliesWord, Word: 3},
		{Var: pathU, Kind: ImpliesTag, Union: "U", Member: "a", Tag: 0},
		{Var: pathX, Kind: ImpliesBool, Bool: false},
	}
	if diff := cmp.Diff(want, cond.Implications()); diff != "" {
		t.Errorf("implications mismatch (-want +got):\n%s", diff)
	}

	negated := FromLeaf(NewUnionTag(pathU, "U", all, "a")).Negate()
	want = []Implication{{Var: pathU, Kind: ImpliesTag, Union: "U", Member: "b", Tag: 1}}
	if diff := cmp.Diff(want, negated.Implications()); diff != "" {
		t.Errorf("negated implications mismatch (-want +got):\n%s", diff)
	}

	if got := boolVar(pathX).Or(boolVar(pathY)).Implications(); len(got) != 0 {
		t.Errorf("expected no implications from a disjunction, got %v", got)
	}
}

func TestWithout(t *testing.T) {
	x, y := boolVar(pathX), boolVar(pathY)
	term := x.And(y).And(x.Or(FromLeaf(WordVar{Var: pathN, Value: 1})))
	got := term.Without(pathX)
	if !got.Equal(y) {
		t.Errorf("expected %v, got %v", y, got)
	}
	if got.UsesVariable(pathX) {
		t.Errorf("expected %v not to mention x", got)
	}
}

func TestDeterministicString(t *testing.T) {
	x, y := boolVar(pathX), boolVar(pathY)
	n := FromLeaf(WordVar{Var: pathN, Value: 2})
	a := x.Or(y).And(n)
	b := n.And(y.Or(x))
	if a.String() != b.String() {
		t.Errorf("expected identical strings, got %q and %q", a, b)
	}
	if a.Hash() != b.Hash() {
		t.Errorf("expected identical hashes for %v", a)
	}
	if got, want := a.String(), "(x or y) and n == 2"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestXor(t *testing.T) {
	x, y := boolVar(pathX), boolVar(pathY)
	if got := x.Xor(x); !got.IsFalse() {
		t.Errorf("expected x xor x to be false, got %v", got)
	}
	if got := x.Xor(False()); !got.Equal(x) {
		t.Errorf("expected %v, got %v", x, got)
	}
	if got := x.Xor(x).Negate(); !got.IsTrue() {
		t.Errorf("expected x xnor x to be true, got %v", got)
	}
	if got, want := x.Xor(y).String(), "(x or y) and (!x or !y)"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
