package scheme

import "strings"

// Compiler is the context of one compilation: the two tables, the
// per-category label counters and the options.  Apart from interning
// symbols into the shared, lock-guarded symbol table, nothing in the
// package mutates globals while compiling, so distinct Compilers are
// independent.
type Compiler struct {
	consts      *ConstTable
	freeVars    *FreeVarTable
	labelCounts map[string]int

	// ListAnalyzed records a rendering of each analyzed top-level
	// form into Listing.
	ListAnalyzed bool
	Listing      []string
}

// NewCompiler constructs a compiler with fresh label counters.
func NewCompiler() *Compiler {
	return &Compiler{labelCounts: make(map[string]int)}
}

// AnalyzeForm tag-parses and analyzes a single S-expression.
func AnalyzeForm(x Any) (result Expr, err error) {
	defer recoverError(&err)
	return analyze(tagParse(x, true)), nil
}

// Parse reads, tag-parses and analyzes every form of src.
func (c *Compiler) Parse(src string) (result []Expr, err error) {
	defer recoverError(&err)
	forms, err := ReadAll(src)
	if err != nil {
		return nil, err
	}
	exprs := make([]Expr, len(forms))
	for i, f := range forms {
		exprs[i] = analyze(tagParse(f, true))
	}
	return exprs, nil
}

// CompileProgram compiles src into a complete assembly file: the
// prologue, the constants table, the free-variables table, the
// primitive bindings, the translated program and the epilogue.
func (c *Compiler) CompileProgram(src string) (string, error) {
	exprs, err := c.Parse(src)
	if err != nil {
		return "", err
	}
	return c.emitProgram(exprs)
}

func (c *Compiler) emitProgram(exprs []Expr) (asm string, err error) {
	defer recoverError(&err)
	if c.ListAnalyzed {
		for _, e := range exprs {
			c.Listing = append(c.Listing, ExprString(e))
		}
	}
	c.consts = BuildConstTable(exprs)
	c.freeVars = BuildFreeVarTable(exprs)
	var b strings.Builder
	b.WriteString(Prologue1)
	c.consts.Emit(&b)
	c.freeVars.Emit(&b, c.consts)
	b.WriteString(Prologue2)
	c.genBindPrimitives(&b)
	b.WriteByte('\n')
	c.genTopLevel(&b, exprs)
	b.WriteString(Epilogue)
	return b.String(), nil
}
