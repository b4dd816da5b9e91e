package types

import "github.com/helixlang/helix/pkg/predicate"

// CanUnifyTo reports whether a value of type from can be used where to is expected.
func CanUnifyTo(from, to *Type) bool {
	if from.Equal(to) {
		return true
	}
	switch to.Kind {
	case TYPE_WORD: return from.IsWordLike()
	case TYPE_BOOL: return from.IsBoolLike()
	case TYPE_POINTER:
		// a writable pointer may be read through a read-only one
		return from.Kind == TYPE_POINTER && from.Base.Equal(to.Base) && (from.Writable || !to.Writable)
	}
	return false
}

// Join computes the type of a value that may come from either branch. Distinct singular
// values degrade to their primitive; predicate bools degrade to bool and callers that track
// the condition rebuild the predicate themselves.
func Join(a, b *Type) (*Type, bool) {
	switch {
	case a.Equal(b):
		return a, true
	case a.IsWordLike() && b.IsWordLike():
		return TypeWord, true
	case a.IsBoolLike() && b.IsBoolLike():
		return TypeBool, true
	case CanUnifyTo(a, b):
		return b, true
	case CanUnifyTo(b, a):
		return a, true
	}
	return nil, false
}

// Implied is the narrowed type an implication pins a variable of type declared to. A tag
// implication turns a pointer to a union into a pointer to the selected member, writable
// only when both the pointer and the member are.
func Implied(impl predicate.Implication, declared *Type) (*Type, bool) {
	switch impl.Kind {
	case predicate.ImpliesBool:
		if !declared.IsBoolLike() {
			return nil, false
		}
		return SingularBool(impl.Bool), true
	case predicate.ImpliesWord:
		if !declared.IsWordLike() {
			return nil, false
		}
		return SingularWord(impl.Word), true
	case predicate.ImpliesTag:
		u, ok := declared.AsUnion()
		if !ok || declared.Kind != TYPE_POINTER {
			return nil, false
		}
		m, ok := u.Member(impl.Member)
		if !ok {
			return nil, false
		}
		return PointerTo(m.Type, declared.Writable && m.Writable), true
	}
	return nil, false
}
