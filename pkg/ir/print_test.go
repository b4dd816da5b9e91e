package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrint(t *testing.T) {
	u := &Var{Name: "u"}
	prog := &Program{
		Header: "helix.h",
		Types: []*TypeDecl{
			{Name: "P", Fields: []Field{{Type: "int", Name: "x"}}},
			{Name: "U", IsUnion: true, Fields: []Field{{Type: "int", Name: "a"}, {Type: "P*", Name: "b"}}},
		},
		Funcs: []*Func{{
			Name:       "f",
			ReturnType: "int",
			Params:     []Param{{Type: "_Region*", Name: "_return_region"}, {Type: "U*", Name: "u"}},
			Body: []Stmt{
				&Decl{Type: "int", Name: "_t1"},
				&If{
					Cond: &Binary{Op: "==", Left: &Member{Value: u, Name: "tag", Arrow: true}, Right: &Const{Value: 0}},
					Then: []Stmt{
						&Comment{Text: "Union downcast flowtyping"},
						&Decl{Type: "int*", Name: "u_2", Init: &AddrOf{Value: &Member{Value: &Member{Value: u, Name: "data", Arrow: true}, Name: "a"}}},
						&Assign{Target: &Var{Name: "_t1"}, Value: &Deref{Value: &Var{Name: "u_2"}}},
					},
					Else: []Stmt{
						&Assign{Target: &Var{Name: "_t1"}, Value: &Unary{Op: "-", Value: &Const{Value: -1}}},
					},
				},
				&Blank{},
				&Return{Value: &Binary{Op: "+", Left: &Var{Name: "_t1"}, Right: &Cast{Type: "int", Value: &SizeOf{Type: "P"}}}},
			},
		}},
	}

	want := `#include "helix.h"

typedef struct P P;
typedef struct U U;

struct P {
    int x;
};

struct U {
    int tag;
    union {
        int a;
        P* b;
    } data;
};

int f(_Region* _return_region, U* u);

int f(_Region* _return_region, U* u) {
    int _t1;
    if (u->tag == 0) {
        // Union downcast flowtyping
        int* u_2 = &u->data.a;
        _t1 = (*u_2);
    }
    else {
        _t1 = -(-1);
    }

    return (_t1 + (int)sizeof(P));
}
`
	if diff := cmp.Diff(want, Print(prog)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestSignatureWithoutParams(t *testing.T) {
	f := &Func{Name: "g", ReturnType: "void"}
	if got := f.Signature(); got != "void g(void)" {
		t.Errorf("unexpected signature %q", got)
	}
}
