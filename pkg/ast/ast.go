// Package ast defines the typed syntax tree the checker walks
package ast

import (
	"github.com/helixlang/helix/pkg/token"
	"github.com/helixlang/helix/pkg/types"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Bool
	Ident
	BinaryOp
	UnaryOp
	Is
	AddressOf
	Indirection
	MemberAccess
	New
	If

	// Statements
	FuncDecl
	Param
	VarDecl
	Assign
	Return
	Block
)

var nodeTypeNames = [...]string{
	"number", "bool", "ident", "binary", "unary", "is", "address-of", "indirection",
	"member-access", "new", "if", "func", "param", "var", "assign", "return", "block",
}

func (t NodeType) String() string { return nodeTypeNames[t] }

// Node represents a node in the AST
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}
	Typ    *types.Type // Set by the type checker
}

// Program is one compilation unit: the named union and struct types plus the functions.
type Program struct {
	Types map[string]*types.Type
	Funcs []*Node
}

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type BoolNode struct{ Value bool }
type IdentNode struct{ Name string }
type BinaryOpNode struct{ Op token.Type; Left, Right *Node }
type UnaryOpNode struct{ Op token.Type; Expr *Node }
type IsNode struct{ Target *Node; Member string }
type AddressOfNode struct{ LValue *Node }
type IndirectionNode struct{ Expr *Node }
type MemberAccessNode struct{ Expr *Node; Member string }
type NewNode struct{ Type *types.Type }
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type FuncDeclNode struct {
	Name       string
	Params     []*Node
	ReturnType *types.Type
	Body       *Node
}
type ParamNode struct{ Name string; Type *types.Type }
type VarDeclNode struct{ Name string; Init *Node }
type AssignNode struct{ Lhs, Rhs *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewBool(tok token.Token, value bool) *Node {
	return newNode(tok, Bool, BoolNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewIs(tok token.Token, target *Node, member string) *Node {
	return newNode(tok, Is, IsNode{Target: target, Member: member}, target)
}
func NewAddressOf(tok token.Token, lvalue *Node) *Node {
	return newNode(tok, AddressOf, AddressOfNode{LValue: lvalue}, lvalue)
}
func NewIndirection(tok token.Token, expr *Node) *Node {
	return newNode(tok, Indirection, IndirectionNode{Expr: expr}, expr)
}
func NewMemberAccess(tok token.Token, expr *Node, member string) *Node {
	return newNode(tok, MemberAccess, MemberAccessNode{Expr: expr, Member: member}, expr)
}
func NewNew(tok token.Token, typ *types.Type) *Node {
	return newNode(tok, New, NewNode{Type: typ})
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewFuncDecl(tok token.Token, name string, params []*Node, returnType *types.Type, body *Node) *Node {
	node := newNode(tok, FuncDecl, FuncDeclNode{Name: name, Params: params, ReturnType: returnType, Body: body}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
func NewParam(tok token.Token, name string, typ *types.Type) *Node {
	return newNode(tok, Param, ParamNode{Name: name, Type: typ})
}
func NewVarDecl(tok token.Token, name string, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Init: init}, init)
}
func NewAssign(tok token.Token, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	node := newNode(tok, Block, BlockNode{Stmts: stmts})
	for _, s := range stmts {
		if s != nil {
			s.Parent = node
		}
	}
	return node
}

// IsLValue reports whether node names storage that can be assigned or addressed.
func IsLValue(node *Node) bool {
	switch node.Type {
	case Ident, Indirection: return true
	case MemberAccess: return IsLValue(node.Data.(MemberAccessNode).Expr)
	}
	return false
}
