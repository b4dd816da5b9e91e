package token

// Type is the operator of a unary or binary expression node.
type Type int

const (
	_ Type = iota
	Plus
	Minus
	Star
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
	And
	Or
	Xor
	Not
)

var typeStrings = map[Type]string{
	Plus: "+", Minus: "-", Star: "*",
	EqEq: "==", Neq: "!=", Lt: "<", Gt: ">", Lte: "<=", Gte: ">=",
	And: "and", Or: "or", Xor: "xor", Not: "not",
}

func (t Type) String() string {
	if s, ok := typeStrings[t]; ok {
		return s
	}
	return "?"
}

// Token is the source position handed to diagnostics. The analysis never lexes, it only
// carries the tokens the front end attached to each node.
type Token struct {
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// At builds a position-only token, mostly for synthesized nodes and tests.
func At(line, col int) Token { return Token{Line: line, Column: col, Len: 1} }
