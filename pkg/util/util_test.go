package util

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/token"
)

func newTestReporter() (*Reporter, *bytes.Buffer) {
	var buf bytes.Buffer
	r := NewReporter(&buf, config.NewConfig())
	r.SetSourceFiles([]SourceFileRecord{{Name: "main.hx", Content: []rune("var x = 1;\nreturn &x;\n")}})
	return r, &buf
}

func TestReportDiagnostic(t *testing.T) {
	r, buf := newTestReporter()
	tok := token.Token{Line: 2, Column: 8, Len: 2}
	r.Report(LifetimeError(tok, "value does not outlive the return region"))

	want := "main.hx:2:8: error: Lifetime Error: value does not outlive the return region\n" +
		"  return &x;\n" +
		"         ^~\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestWarnRespectsConfig(t *testing.T) {
	r, buf := newTestReporter()
	tok := token.Token{Line: 1, Column: 9, Len: 1}
	r.Warn(config.WarnRedundantCheck, tok, "redundant")
	if buf.Len() != 0 {
		t.Errorf("expected a disabled warning to print nothing, got %q", buf.String())
	}

	r.Warn(config.WarnOverflow, tok, "constant overflows")
	want := "main.hx:1:9: warning: constant overflows [-Woverflow]\n" +
		"  var x = 1;\n" +
		"          ^\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("warning mismatch (-want +got):\n%s", diff)
	}
	if got := len(r.Warnings()); got != 1 {
		t.Errorf("expected 1 recorded warning, got %d", got)
	}
}

func TestDiagnosticIsError(t *testing.T) {
	var err error = TypeError(token.At(3, 4), "bad %s", "thing")
	var d *Diagnostic
	if !errors.As(err, &d) {
		t.Fatal("expected a *Diagnostic")
	}
	if d.Kind != DiagType || d.Message != "bad thing" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if got, want := err.Error(), "3:4: Type Error: bad thing"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
