// Package ir is the C statement tree the code generator builds before printing.
package ir

import (
	"strconv"
	"strings"
)

// Value is a C expression.
type Value interface {
	isValue()
	String() string
}

type Const struct{ Value int64 }
type Var struct{ Name string }
type Deref struct{ Value Value }
type AddrOf struct{ Value Value }
type Member struct{ Value Value; Name string; Arrow bool }
type Binary struct{ Op string; Left, Right Value }
type Unary struct{ Op string; Value Value }
type Call struct{ Name string; Args []Value }
type Cast struct{ Type string; Value Value }
type SizeOf struct{ Type string }

func (*Const) isValue()  {}
func (*Var) isValue()    {}
func (*Deref) isValue()  {}
func (*AddrOf) isValue() {}
func (*Member) isValue() {}
func (*Binary) isValue() {}
func (*Unary) isValue()  {}
func (*Call) isValue()   {}
func (*Cast) isValue()   {}
func (*SizeOf) isValue() {}

func (c *Const) String() string  { return strconv.FormatInt(c.Value, 10) }
func (v *Var) String() string    { return v.Name }
func (d *Deref) String() string  { return "(*" + d.Value.String() + ")" }
func (a *AddrOf) String() string { return "&" + a.Value.String() }
func (c *Cast) String() string   { return "(" + c.Type + ")" + c.Value.String() }
func (s *SizeOf) String() string { return "sizeof(" + s.Type + ")" }

func (m *Member) String() string {
	if m.Arrow {
		return m.Value.String() + "->" + m.Name
	}
	return m.Value.String() + "." + m.Name
}

func (b *Binary) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

func (u *Unary) String() string {
	switch v := u.Value.(type) {
	case *Var: return u.Op + v.String()
	case *Const:
		if v.Value >= 0 {
			return u.Op + v.String()
		}
	}
	return u.Op + "(" + u.Value.String() + ")"
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

// Stmt is a C statement.
type Stmt interface{ isStmt() }

// Decl declares a variable. A nil Init leaves it uninitialized.
type Decl struct{ Type, Name string; Init Value }
type Assign struct{ Target, Value Value }
type ExprStmt struct{ Value Value }
type Return struct{ Value Value }
type If struct{ Cond Value; Then, Else []Stmt }
type Block struct{ Body []Stmt }
type Comment struct{ Text string }
type Blank struct{}

func (*Decl) isStmt()     {}
func (*Assign) isStmt()   {}
func (*ExprStmt) isStmt() {}
func (*Return) isStmt()   {}
func (*If) isStmt()       {}
func (*Block) isStmt()    {}
func (*Comment) isStmt()  {}
func (*Blank) isStmt()    {}

type Param struct{ Type, Name string }

type Func struct {
	Name       string
	ReturnType string
	Params     []Param
	Body       []Stmt
}

type Field struct{ Type, Name string }

// TypeDecl is a struct, or a union laid out as a tag plus a union of its members.
type TypeDecl struct {
	Name    string
	IsUnion bool
	Fields  []Field
}

type Program struct {
	Header string
	Types  []*TypeDecl
	Funcs  []*Func
}

// Signature renders the function's prototype without a trailing semicolon.
func (f *Func) Signature() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Type + " " + p.Name
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return f.ReturnType + " " + f.Name + "(" + strings.Join(params, ", ") + ")"
}
