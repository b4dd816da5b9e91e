package ir

import (
	"fmt"
	"strings"
)

const indentUnit = "    "

// Print renders prog as one C translation unit.
func Print(prog *Program) string {
	var b strings.Builder
	if prog.Header != "" {
		fmt.Fprintf(&b, "#include \"%s\"\n", prog.Header)
	}

	if len(prog.Types) > 0 {
		b.WriteString("\n")
		for _, t := range prog.Types {
			fmt.Fprintf(&b, "typedef struct %s %s;\n", t.Name, t.Name)
		}
		for _, t := range prog.Types {
			printType(&b, t)
		}
	}

	if len(prog.Funcs) > 0 {
		b.WriteString("\n")
		for _, f := range prog.Funcs {
			b.WriteString(f.Signature() + ";\n")
		}
	}
	for _, f := range prog.Funcs {
		b.WriteString("\n" + f.Signature() + " {\n")
		printStmts(&b, f.Body, 1)
		b.WriteString("}\n")
	}
	return b.String()
}

func printType(b *strings.Builder, t *TypeDecl) {
	fmt.Fprintf(b, "\nstruct %s {\n", t.Name)
	if !t.IsUnion {
		for _, f := range t.Fields {
			fmt.Fprintf(b, "%s%s %s;\n", indentUnit, f.Type, f.Name)
		}
		b.WriteString("};\n")
		return
	}
	fmt.Fprintf(b, "%sint tag;\n%sunion {\n", indentUnit, indentUnit)
	for _, f := range t.Fields {
		fmt.Fprintf(b, "%s%s %s;\n", indentUnit+indentUnit, f.Type, f.Name)
	}
	fmt.Fprintf(b, "%s} data;\n};\n", indentUnit)
}

func printStmts(b *strings.Builder, stmts []Stmt, depth int) {
	for _, s := range stmts {
		printStmt(b, s, depth)
	}
}

func printStmt(b *strings.Builder, s Stmt, depth int) {
	indent := strings.Repeat(indentUnit, depth)
	switch s := s.(type) {
	case *Decl:
		if s.Init == nil {
			fmt.Fprintf(b, "%s%s %s;\n", indent, s.Type, s.Name)
		} else {
			fmt.Fprintf(b, "%s%s %s = %s;\n", indent, s.Type, s.Name, s.Init)
		}
	case *Assign: fmt.Fprintf(b, "%s%s = %s;\n", indent, s.Target, s.Value)
	case *ExprStmt: fmt.Fprintf(b, "%s%s;\n", indent, s.Value)
	case *Return:
		if s.Value == nil {
			fmt.Fprintf(b, "%sreturn;\n", indent)
		} else {
			fmt.Fprintf(b, "%sreturn %s;\n", indent, s.Value)
		}
	case *If:
		cond := s.Cond.String()
		if bin, ok := s.Cond.(*Binary); ok {
			cond = bin.Left.String() + " " + bin.Op + " " + bin.Right.String()
		}
		fmt.Fprintf(b, "%sif (%s) {\n", indent, cond)
		printStmts(b, s.Then, depth+1)
		if len(s.Else) > 0 {
			fmt.Fprintf(b, "%s}\n%selse {\n", indent, indent)
			printStmts(b, s.Else, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", indent)
	case *Block:
		fmt.Fprintf(b, "%s{\n", indent)
		printStmts(b, s.Body, depth+1)
		fmt.Fprintf(b, "%s}\n", indent)
	case *Comment: fmt.Fprintf(b, "%s// %s\n", indent, s.Text)
	case *Blank: b.WriteString("\n")
	}
}
