package codegen

import (
	"fmt"

	"github.com/helixlang/helix/pkg/ident"
	"github.com/helixlang/helix/pkg/ir"
	"github.com/helixlang/helix/pkg/typeChecker"
)

// Writer collects the C statements of one function and hands out C names. Each
// variable path gets its own name, so a flow variable never collides with the union
// variable it was cut from.
type Writer struct {
	ctx   *typeChecker.Context
	names map[ident.Path]string
	taken map[string]bool
	body  *[]ir.Stmt
}

func NewWriter(ctx *typeChecker.Context) *Writer {
	var body []ir.Stmt
	return &Writer{
		ctx:   ctx,
		names: make(map[ident.Path]string),
		taken: map[string]bool{"_return_region": true},
		body:  &body,
	}
}

// Name returns the C name of the variable at path, minting one from base on first use.
func (w *Writer) Name(path ident.Path, base string) string {
	if n, ok := w.names[path]; ok {
		return n
	}
	n := base
	for i := 2; w.taken[n]; i++ {
		n = fmt.Sprintf("%s_%d", base, i)
	}
	w.taken[n] = true
	w.names[path] = n
	return n
}

func (w *Writer) Lookup(path ident.Path) (string, bool) {
	n, ok := w.names[path]
	return n, ok
}

// Temp mints a C temporary that no variable of the function uses.
func (w *Writer) Temp() string {
	n := fmt.Sprintf("_t%d", w.ctx.NextTemp())
	for w.taken[n] {
		n = fmt.Sprintf("_t%d", w.ctx.NextTemp())
	}
	w.taken[n] = true
	return n
}

func (w *Writer) Emit(stmts ...ir.Stmt) { *w.body = append(*w.body, stmts...) }

// EmitBlank separates groups of statements, never doubling an empty line.
func (w *Writer) EmitBlank() {
	if n := len(*w.body); n > 0 {
		if _, ok := (*w.body)[n-1].(*ir.Blank); !ok {
			w.Emit(&ir.Blank{})
		}
	}
}

// Nested runs fn against a fresh statement list and returns what it emitted.
func (w *Writer) Nested(fn func() error) ([]ir.Stmt, error) {
	saved := w.body
	var body []ir.Stmt
	w.body = &body
	err := fn()
	w.body = saved
	return body, err
}

func (w *Writer) Body() []ir.Stmt { return *w.body }
