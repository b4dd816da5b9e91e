// Package types defines the Helix type representation used by the checker
package types

import (
	"fmt"

	"github.com/helixlang/helix/pkg/ident"
	"github.com/helixlang/helix/pkg/predicate"
)

// TypeKind defines the kind of a Type
type TypeKind int

// Type kinds enum
const (
	TYPE_VOID TypeKind = iota
	TYPE_WORD
	TYPE_BOOL
	TYPE_SINGULAR_WORD
	TYPE_SINGULAR_BOOL
	TYPE_PREDICATE_BOOL
	TYPE_POINTER
	TYPE_ARRAY
	TYPE_STRUCT
	TYPE_UNION
)

// Member is a named field of a struct or union
type Member struct {
	Name     string
	Type     *Type
	Writable bool
}

// Type represents a Helix type. Singular types carry their single value in Word or Bool,
// predicate bools carry the CNF term that decides them.
type Type struct {
	Kind     TypeKind
	Name     string
	Base     *Type // pointee or element type
	Writable bool  // pointers only
	Members  []Member
	Word     int64
	Bool     bool
	Pred     predicate.Term
}

// Pre-defined types
var (
	TypeVoid = &Type{Kind: TYPE_VOID, Name: "void"}
	TypeWord = &Type{Kind: TYPE_WORD, Name: "word"}
	TypeBool = &Type{Kind: TYPE_BOOL, Name: "bool"}
)

func SingularWord(v int64) *Type { return &Type{Kind: TYPE_SINGULAR_WORD, Name: "word", Word: v} }
func SingularBool(b bool) *Type  { return &Type{Kind: TYPE_SINGULAR_BOOL, Name: "bool", Bool: b} }

// PredicateBool wraps a term, collapsing literal terms to singular bools.
func PredicateBool(p predicate.Term) *Type {
	switch {
	case p.IsTrue(): return SingularBool(true)
	case p.IsFalse(): return SingularBool(false)
	}
	return &Type{Kind: TYPE_PREDICATE_BOOL, Name: "bool", Pred: p}
}

func PointerTo(base *Type, writable bool) *Type {
	return &Type{Kind: TYPE_POINTER, Base: base, Writable: writable}
}

func ArrayOf(base *Type) *Type { return &Type{Kind: TYPE_ARRAY, Base: base} }

func NewStruct(name string, members ...Member) *Type {
	return &Type{Kind: TYPE_STRUCT, Name: name, Members: members}
}

func NewUnion(name string, members ...Member) *Type {
	return &Type{Kind: TYPE_UNION, Name: name, Members: members}
}

func (t *Type) IsWordLike() bool { return t.Kind == TYPE_WORD || t.Kind == TYPE_SINGULAR_WORD }

func (t *Type) IsBoolLike() bool {
	return t.Kind == TYPE_BOOL || t.Kind == TYPE_SINGULAR_BOOL || t.Kind == TYPE_PREDICATE_BOOL
}

func (t *Type) IsSingular() bool {
	return t.Kind == TYPE_SINGULAR_WORD || t.Kind == TYPE_SINGULAR_BOOL
}

// HasPointers reports whether a value of t can hold a pointer, and so has a lifetime that
// matters when it is stored.
func (t *Type) HasPointers() bool {
	switch t.Kind {
	case TYPE_POINTER, TYPE_ARRAY: return true
	case TYPE_STRUCT, TYPE_UNION:
		for _, m := range t.Members {
			if m.Type.HasPointers() {
				return true
			}
		}
	}
	return false
}

// Supertype strips singular and predicate refinements.
func (t *Type) Supertype() *Type {
	switch {
	case t.IsWordLike(): return TypeWord
	case t.IsBoolLike(): return TypeBool
	}
	return t
}

// Predicate returns the term deciding a bool-like type. Plain bools have none.
func (t *Type) Predicate() (predicate.Term, bool) {
	switch t.Kind {
	case TYPE_SINGULAR_BOOL: return predicate.FromBool(t.Bool), true
	case TYPE_PREDICATE_BOOL: return t.Pred, true
	}
	return predicate.True(), false
}

func (t *Type) Pointee() (*Type, bool) {
	if t.Kind != TYPE_POINTER {
		return nil, false
	}
	return t.Base, true
}

// AsUnion returns the union t is, or the union t points at.
func (t *Type) AsUnion() (*Type, bool) {
	switch {
	case t.Kind == TYPE_UNION:
		return t, true
	case t.Kind == TYPE_POINTER && t.Base.Kind == TYPE_UNION:
		return t.Base, true
	}
	return nil, false
}

func (t *Type) Member(name string) (Member, bool) {
	for _, m := range t.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func (t *Type) MemberNames() []string {
	names := make([]string, len(t.Members))
	for i, m := range t.Members {
		names[i] = m.Name
	}
	return names
}

// UnionIndex is the tag value of member name in u, or -1.
func UnionIndex(u *Type, name string) int {
	for i, m := range u.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case TYPE_SINGULAR_WORD: return t.Word == other.Word
	case TYPE_SINGULAR_BOOL: return t.Bool == other.Bool
	case TYPE_PREDICATE_BOOL: return t.Pred.Equal(other.Pred)
	case TYPE_POINTER: return t.Writable == other.Writable && t.Base.Equal(other.Base)
	case TYPE_ARRAY: return t.Base.Equal(other.Base)
	case TYPE_STRUCT, TYPE_UNION: return t.Name == other.Name
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case TYPE_SINGULAR_WORD: return fmt.Sprint(t.Word)
	case TYPE_SINGULAR_BOOL: return fmt.Sprint(t.Bool)
	case TYPE_PREDICATE_BOOL: return "bool{" + t.Pred.String() + "}"
	case TYPE_POINTER:
		if t.Writable {
			return "*" + t.Base.String()
		}
		return "&" + t.Base.String()
	case TYPE_ARRAY: return t.Base.String() + "[]"
	}
	return t.Name
}

// CType is the C spelling of a type's storage.
func (t *Type) CType() string {
	switch t.Kind {
	case TYPE_VOID: return "void"
	case TYPE_WORD, TYPE_SINGULAR_WORD, TYPE_BOOL, TYPE_SINGULAR_BOOL, TYPE_PREDICATE_BOOL: return "int"
	case TYPE_POINTER: return t.Base.CType() + "*"
	case TYPE_ARRAY: return t.Base.CType() + "*"
	}
	return t.Name
}

// MemberPath is one entry of a type's member decomposition. The root has an empty path.
type MemberPath struct {
	Path ident.Path
	Type *Type
}

// MemberPaths decomposes a struct into every nested member, root first. Unions and other
// types are indivisible.
func MemberPaths(t *Type) []MemberPath {
	out := []MemberPath{{Type: t}}
	if t.Kind != TYPE_STRUCT {
		return out
	}
	for _, m := range t.Members {
		for _, sub := range MemberPaths(m.Type) {
			out = append(out, MemberPath{Path: ident.New(m.Name).Join(sub.Path), Type: sub.Type})
		}
	}
	return out
}
