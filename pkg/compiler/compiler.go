// Package compiler runs the middle end over a parsed program: type checking, region
// placement and C emission.
package compiler

import (
	"bytes"
	"io"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/helixlang/helix/pkg/ast"
	"github.com/helixlang/helix/pkg/codegen"
	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/typeChecker"
	"github.com/helixlang/helix/pkg/util"
)

// Result is the output of one compilation.
type Result struct {
	C        *bytes.Buffer
	Context  *typeChecker.Context
	Warnings []util.Emitted
}

type Compiler struct {
	cfg     *config.Config
	diag    io.Writer
	backend codegen.Backend
	files   []util.SourceFileRecord
}

func New(cfg *config.Config, diag io.Writer) *Compiler {
	return &Compiler{cfg: cfg, diag: diag, backend: codegen.NewCBackend()}
}

// SetSourceFiles hands the reporter the text diagnostics quote.
func (c *Compiler) SetSourceFiles(files []util.SourceFileRecord) { c.files = files }

// Compile checks prog and emits C for it. A failing stage is reported to the diagnostic
// writer before its error is returned.
func (c *Compiler) Compile(prog *ast.Program) (*Result, error) {
	reporter := util.NewReporter(c.diag, c.cfg)
	reporter.SetSourceFiles(c.files)
	ctx := typeChecker.NewContext(c.cfg, reporter)
	res := &Result{Context: ctx}

	if err := typeChecker.NewTypeChecker(ctx).Check(prog); err != nil {
		reporter.Report(err)
		res.Warnings = reporter.Warnings()
		return res, errors.Wrap(err, "type check")
	}
	tlog.V("compile").Printw("checked", "funcs", len(prog.Funcs), "lifetimes", len(ctx.Flow.Lifetimes()))

	out, err := codegen.NewGenerator(ctx).Generate(prog)
	if err != nil {
		reporter.Report(err)
		res.Warnings = reporter.Warnings()
		return res, errors.Wrap(err, "codegen")
	}

	res.C, err = c.backend.Generate(out, c.cfg)
	res.Warnings = reporter.Warnings()
	if err != nil {
		return res, errors.Wrap(err, "backend")
	}
	return res, nil
}
