package token

import "testing"

func TestTypeString(t *testing.T) {
	for typ, want := range map[Type]string{
		Plus: "+", Star: "*", Neq: "!=", Gte: ">=", Xor: "xor", Not: "not", Type(0): "?",
	} {
		if got := typ.String(); got != want {
			t.Errorf("%d: expected %q, got %q", int(typ), want, got)
		}
	}
}
