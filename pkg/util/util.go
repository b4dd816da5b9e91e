package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/token"
)

// DiagnosticKind classifies a compile error.
type DiagnosticKind int

const (
	DiagType DiagnosticKind = iota
	DiagLifetime
	// DiagInternal is a broken compiler invariant, never the user's fault.
	DiagInternal
)

var diagTitles = [...]string{"Type Error", "Lifetime Error", "Internal Error"}

func (k DiagnosticKind) String() string { return diagTitles[k] }

// Diagnostic is a user-facing compile error. It carries the source position it was raised at.
type Diagnostic struct {
	Kind    DiagnosticKind
	Tok     token.Token
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Tok.Line, d.Tok.Column, d.Kind, d.Message)
}

func NewDiagnostic(kind DiagnosticKind, tok token.Token, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Tok: tok, Message: fmt.Sprintf(format, args...)}
}

func TypeError(tok token.Token, format string, args ...interface{}) *Diagnostic {
	return NewDiagnostic(DiagType, tok, format, args...)
}

func LifetimeError(tok token.Token, format string, args ...interface{}) *Diagnostic {
	return NewDiagnostic(DiagLifetime, tok, format, args...)
}

func InternalError(tok token.Token, format string, args ...interface{}) *Diagnostic {
	return NewDiagnostic(DiagInternal, tok, format, args...)
}

// SourceFileRecord tracks the name and content of a single source file.
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Emitted is a warning the reporter printed.
type Emitted struct {
	Warning config.Warning
	Tok     token.Token
	Message string
}

// Reporter prints diagnostics with the offending source line and a caret, coloring output
// only when it goes to a terminal.
type Reporter struct {
	out      io.Writer
	color    bool
	cfg      *config.Config
	files    []SourceFileRecord
	warnings []Emitted
}

func NewReporter(out io.Writer, cfg *config.Config) *Reporter {
	r := &Reporter{out: out, cfg: cfg}
	if f, ok := out.(*os.File); ok {
		r.color = term.IsTerminal(int(f.Fd()))
	}
	return r
}

// SetSourceFiles stores the source code for all input files for rich error messages
func (r *Reporter) SetSourceFiles(files []SourceFileRecord) { r.files = files }

func (r *Reporter) Warnings() []Emitted { return r.warnings }

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// findFileAndLine converts a global token to a file-specific location
func (r *Reporter) findFileAndLine(tok token.Token) (filename string, line, col int) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.files) {
		return "unknown", tok.Line, tok.Column
	}
	return r.files[tok.FileIndex].Name, tok.Line, tok.Column
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.files) || tok.Line == 0 {
		return
	}

	content := r.files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, c := range content {
		if lineNum <= 1 {
			break
		}
		if c == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(r.out, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(r.out, "  %s%s\n", strings.Repeat(" ", max(tok.Column-1, 0)), r.paint("32", caret))
}

// Report prints an error. Non-diagnostic errors are printed without a position.
func (r *Reporter) Report(err error) {
	var d *Diagnostic
	if !errors.As(err, &d) {
		fmt.Fprintf(r.out, "%s %v\n", r.paint("31", "error:"), err)
		return
	}
	filename, line, col := r.findFileAndLine(d.Tok)
	fmt.Fprintf(r.out, "%s:%d:%d: %s %s: %s\n", filename, line, col, r.paint("31", "error:"), d.Kind, d.Message)
	r.printErrorLine(d.Tok)
}

// Warn prints a formatted warning message if the corresponding warning is enabled
func (r *Reporter) Warn(wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if !r.cfg.IsWarningEnabled(wt) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.warnings = append(r.warnings, Emitted{Warning: wt, Tok: tok, Message: msg})

	filename, line, col := r.findFileAndLine(tok)
	fmt.Fprintf(r.out, "%s:%d:%d: %s %s [-W%s]\n", filename, line, col, r.paint("33", "warning:"), msg, r.cfg.Warnings[wt].Name)
	r.printErrorLine(tok)
}
