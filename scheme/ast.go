package scheme

import (
	"fmt"
	"strings"
)

// The AST is a closed sum; code generation dispatches by tag.  The
// pre-analysis tree uses Var values with a nil Addr; the analyzer
// fills the addresses in and adds the Box forms.

// Expr is an AST node.
type Expr interface {
	expr()
}

// Addr is the lexical address of a variable occurrence.
type Addr interface {
	addr()
}

// Free resolves against the free-variables table at run time.
type Free struct{}

// Param is the i-th parameter of the enclosing lambda, 0-based.
type Param struct {
	Index int
}

// Bound is the Minor-th slot of the rib Major frames up the lexical
// environment.
type Bound struct {
	Major int
	Minor int
}

func (*Free) addr()  {}
func (*Param) addr() {}
func (*Bound) addr() {}

// Var is a named variable occurrence with its lexical address.
type Var struct {
	Name *Sym
	Addr Addr
}

// Const is a literal S-expression.
type Const struct {
	Value Any
}

// VarGet is a variable reference.
type VarGet struct {
	V *Var
}

// VarSet is a variable mutation; its value is that of void.
type VarSet struct {
	V     *Var
	Value Expr
}

// VarDef is a global definition.
type VarDef struct {
	V     *Var
	Value Expr
}

// If is the three-way conditional.
type If struct {
	Test Expr
	Then Expr
	Else Expr
}

// Seq evaluates its body in order; its value is that of the last.
type Seq struct {
	Body []Expr
}

// Or is the short-circuit disjunction.
type Or struct {
	Body []Expr
}

// Lambda is a procedure expression.  Opt is nil for a fixed-arity
// lambda and names the rest parameter otherwise.
type Lambda struct {
	Params []*Sym
	Opt    *Sym
	Body   Expr
}

// Applic is a procedure application.  Tail is set by the tail-call
// annotation pass.
type Applic struct {
	Proc Expr
	Args []Expr
	Tail bool
}

// Box allocates the indirection cell for a parameter.
type Box struct {
	V *Var
}

// BoxGet reads through a boxed variable.
type BoxGet struct {
	V *Var
}

// BoxSet writes through a boxed variable; its value is that of void.
type BoxSet struct {
	V     *Var
	Value Expr
}

func (*Const) expr()  {}
func (*VarGet) expr() {}
func (*VarSet) expr() {}
func (*VarDef) expr() {}
func (*If) expr()     {}
func (*Seq) expr()    {}
func (*Or) expr()     {}
func (*Lambda) expr() {}
func (*Applic) expr() {}
func (*Box) expr()    {}
func (*BoxGet) expr() {}
func (*BoxSet) expr() {}

//----------------------------------------------------------------------

// ExprString renders an AST node for listings and diagnostics.
func ExprString(e Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeVar(b *strings.Builder, v *Var) {
	switch a := v.Addr.(type) {
	case *Free:
		fmt.Fprintf(b, "(var %s free)", v.Name)
	case *Param:
		fmt.Fprintf(b, "(var %s par %d)", v.Name, a.Index)
	case *Bound:
		fmt.Fprintf(b, "(var %s bound %d %d)", v.Name, a.Major, a.Minor)
	default:
		fmt.Fprintf(b, "(var %s)", v.Name)
	}
}

func writeExpr(b *strings.Builder, e Expr) {
	switch x := e.(type) {
	case *Const:
		b.WriteString("(const ")
		b.WriteString(Str(x.Value))
		b.WriteByte(')')
	case *VarGet:
		writeVar(b, x.V)
	case *VarSet:
		b.WriteString("(set! ")
		writeVar(b, x.V)
		b.WriteByte(' ')
		writeExpr(b, x.Value)
		b.WriteByte(')')
	case *VarDef:
		b.WriteString("(define ")
		writeVar(b, x.V)
		b.WriteByte(' ')
		writeExpr(b, x.Value)
		b.WriteByte(')')
	case *If:
		b.WriteString("(if ")
		writeExpr(b, x.Test)
		b.WriteByte(' ')
		writeExpr(b, x.Then)
		b.WriteByte(' ')
		writeExpr(b, x.Else)
		b.WriteByte(')')
	case *Seq:
		b.WriteString("(seq")
		for _, e := range x.Body {
			b.WriteByte(' ')
			writeExpr(b, e)
		}
		b.WriteByte(')')
	case *Or:
		b.WriteString("(or")
		for _, e := range x.Body {
			b.WriteByte(' ')
			writeExpr(b, e)
		}
		b.WriteByte(')')
	case *Lambda:
		b.WriteString("(lambda (")
		for i, p := range x.Params {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(p.Name)
		}
		if x.Opt != nil {
			b.WriteString(" . ")
			b.WriteString(x.Opt.Name)
		}
		b.WriteString(") ")
		writeExpr(b, x.Body)
		b.WriteByte(')')
	case *Applic:
		if x.Tail {
			b.WriteString("(tc-applic ")
		} else {
			b.WriteString("(applic ")
		}
		writeExpr(b, x.Proc)
		for _, e := range x.Args {
			b.WriteByte(' ')
			writeExpr(b, e)
		}
		b.WriteByte(')')
	case *Box:
		b.WriteString("(box ")
		writeVar(b, x.V)
		b.WriteByte(')')
	case *BoxGet:
		b.WriteString("(box-get ")
		writeVar(b, x.V)
		b.WriteByte(')')
	case *BoxSet:
		b.WriteString("(box-set ")
		writeVar(b, x.V)
		b.WriteByte(' ')
		writeExpr(b, x.Value)
		b.WriteByte(')')
	default:
		panic(&InternalError{fmt.Sprintf("unknown AST node %T", e)})
	}
}
