package codegen

import (
	"bytes"
	"fmt"

	"github.com/helixlang/helix/pkg/config"
	"github.com/helixlang/helix/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes an IR program and a configuration, and produces the target
	// source as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// CBackend renders the IR as a C translation unit against the region runtime header.
type CBackend struct{}

func NewCBackend() Backend { return &CBackend{} }

func (b *CBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if prog == nil {
		return nil, fmt.Errorf("no program to generate")
	}
	var buf bytes.Buffer
	if cfg.QbeTarget != "" {
		fmt.Fprintf(&buf, "// target %s, %d-byte words\n", cfg.QbeTarget, cfg.WordSize)
	}
	buf.WriteString(ir.Print(prog))
	return &buf, nil
}
