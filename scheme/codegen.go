package scheme

import (
	"fmt"
	"strings"
)

// The code generator lowers the analyzed AST to assembly text.  It
// carries two integer contexts: params, the parameter count of the
// innermost enclosing lambda (0 at top level), and depth, the number
// of enclosing lambdas.
//
// The callee frame layout from rbp: [rbp+16] environment pointer,
// [rbp+24] argument count, [rbp+32+8i] the i-th argument.  The PARAM,
// ENV and COUNT macros of the prologue read these slots.

// label mints a fresh label in the given category.  Each category
// counts up monotonically for the whole compilation.
func (c *Compiler) label(category string) string {
	c.labelCounts[category]++
	return fmt.Sprintf("L_%s_%d", category, c.labelCounts[category])
}

func (c *Compiler) genExpr(b *strings.Builder, e Expr, params, depth int) {
	switch x := e.(type) {
	case *Const:
		fmt.Fprintf(b, "\tmov rax, L_constants + %d\n", c.consts.Loc(x.Value))
	case *VarGet:
		c.genVarGet(b, x.V)
	case *VarSet:
		c.genVarSet(b, x.V, x.Value, params, depth)
	case *VarDef:
		if _, ok := x.V.Addr.(*Free); !ok {
			panic(&InternalError{"define of a non-free variable " + x.V.Name.Name})
		}
		c.genExpr(b, x.Value, params, depth)
		fmt.Fprintf(b, "\tmov qword [%s], rax\t; define %s\n",
			c.freeVars.Label(x.V.Name.Name), x.V.Name)
		b.WriteString("\tmov rax, sob_void\n")
	case *If:
		elseLabel := c.label("if_else")
		endLabel := c.label("if_end")
		c.genExpr(b, x.Test, params, depth)
		b.WriteString("\tcmp rax, sob_boolean_false\n")
		fmt.Fprintf(b, "\tje %s\n", elseLabel)
		c.genExpr(b, x.Then, params, depth)
		fmt.Fprintf(b, "\tjmp %s\n", endLabel)
		fmt.Fprintf(b, "%s:\n", elseLabel)
		c.genExpr(b, x.Else, params, depth)
		fmt.Fprintf(b, "%s:\n", endLabel)
	case *Seq:
		for _, e := range x.Body {
			c.genExpr(b, e, params, depth)
		}
	case *Or:
		endLabel := c.label("or_end")
		for i, e := range x.Body {
			c.genExpr(b, e, params, depth)
			if i < len(x.Body)-1 {
				b.WriteString("\tcmp rax, sob_boolean_false\n")
				fmt.Fprintf(b, "\tjne %s\n", endLabel)
			}
		}
		fmt.Fprintf(b, "%s:\n", endLabel)
	case *Lambda:
		if x.Opt == nil {
			c.genLambdaSimple(b, x, params, depth)
		} else {
			c.genLambdaOpt(b, x, params, depth)
		}
	case *Applic:
		c.genApplic(b, x, params, depth)
	case *BoxGet:
		c.genVarGet(b, x.V)
		b.WriteString("\tmov rax, qword [rax]\n")
	case *BoxSet:
		c.genExpr(b, x.Value, params, depth)
		b.WriteString("\tpush rax\n")
		c.genVarGet(b, x.V)
		b.WriteString("\tpop qword [rax]\n")
		b.WriteString("\tmov rax, sob_void\n")
	default:
		panic(&InternalError{"code generation: unknown node " + ExprString(e)})
	}
}

func (c *Compiler) genVarGet(b *strings.Builder, v *Var) {
	switch a := v.Addr.(type) {
	case *Free:
		fmt.Fprintf(b, "\tmov rax, qword [%s]\t; %s\n",
			c.freeVars.Label(v.Name.Name), v.Name)
		b.WriteString("\tcmp byte [rax], T_undefined\n")
		b.WriteString("\tje L_error_fvar_undefined\n")
	case *Param:
		fmt.Fprintf(b, "\tmov rax, PARAM(%d)\t; %s\n", a.Index, v.Name)
	case *Bound:
		b.WriteString("\tmov rax, ENV\n")
		fmt.Fprintf(b, "\tmov rax, qword [rax + 8*%d]\n", a.Major)
		fmt.Fprintf(b, "\tmov rax, qword [rax + 8*%d]\t; %s\n", a.Minor, v.Name)
	default:
		panic(&InternalError{"unaddressed variable " + v.Name.Name})
	}
}

func (c *Compiler) genVarSet(b *strings.Builder, v *Var, value Expr, params, depth int) {
	if _, ok := value.(*Box); ok {
		// the boxing prologue: move the parameter into a fresh cell
		a, ok := v.Addr.(*Param)
		if !ok {
			panic(&InternalError{"box of a non-parameter " + v.Name.Name})
		}
		b.WriteString("\tmov rdi, 8\n")
		b.WriteString("\tcall malloc\n")
		fmt.Fprintf(b, "\tmov rbx, PARAM(%d)\t; box %s\n", a.Index, v.Name)
		b.WriteString("\tmov qword [rax], rbx\n")
		fmt.Fprintf(b, "\tmov PARAM(%d), rax\n", a.Index)
		b.WriteString("\tmov rax, sob_void\n")
		return
	}
	c.genExpr(b, value, params, depth)
	switch a := v.Addr.(type) {
	case *Free:
		fmt.Fprintf(b, "\tmov qword [%s], rax\t; set! %s\n",
			c.freeVars.Label(v.Name.Name), v.Name)
	case *Param:
		fmt.Fprintf(b, "\tmov PARAM(%d), rax\t; set! %s\n", a.Index, v.Name)
	case *Bound:
		b.WriteString("\tmov rbx, ENV\n")
		fmt.Fprintf(b, "\tmov rbx, qword [rbx + 8*%d]\n", a.Major)
		fmt.Fprintf(b, "\tmov qword [rbx + 8*%d], rax\t; set! %s\n", a.Minor, v.Name)
	default:
		panic(&InternalError{"unaddressed variable " + v.Name.Name})
	}
	b.WriteString("\tmov rax, sob_void\n")
}

//----------------------------------------------------------------------
// Closures.
//
// A closure object is an RTTI byte, an environment pointer and a code
// pointer.  Creating one allocates a new rib holding the current
// parameters and an extended environment with the new rib at index 0
// and each enclosing rib shifted one up.

func (c *Compiler) genClosure(b *strings.Builder, kind string, params, depth int) (codeLabel, endLabel string) {
	envLoop := c.label(kind + "_env_loop")
	envEnd := c.label(kind + "_env_end")
	paramsLoop := c.label(kind + "_params_loop")
	paramsEnd := c.label(kind + "_params_end")
	codeLabel = c.label(kind + "_code")
	endLabel = c.label(kind + "_end")

	b.WriteString("\tmov rdi, 17\t; closure: RTTI + env + code\n")
	b.WriteString("\tcall malloc\n")
	b.WriteString("\tpush rax\n")
	fmt.Fprintf(b, "\tmov rdi, 8*%d\t; the new rib\n", params)
	b.WriteString("\tcall malloc\n")
	b.WriteString("\tpush rax\n")
	fmt.Fprintf(b, "\tmov rdi, 8*%d\t; the extended environment\n", depth+1)
	b.WriteString("\tcall malloc\n")
	b.WriteString("\tmov rdi, ENV\n")
	b.WriteString("\tmov rsi, 0\n")
	b.WriteString("\tmov rdx, 1\n")
	fmt.Fprintf(b, "%s:\t; copy rib i to slot i+1\n", envLoop)
	fmt.Fprintf(b, "\tcmp rsi, %d\n", depth)
	fmt.Fprintf(b, "\tje %s\n", envEnd)
	b.WriteString("\tmov rcx, qword [rdi + rsi*8]\n")
	b.WriteString("\tmov qword [rax + rdx*8], rcx\n")
	b.WriteString("\tinc rsi\n")
	b.WriteString("\tinc rdx\n")
	fmt.Fprintf(b, "\tjmp %s\n", envLoop)
	fmt.Fprintf(b, "%s:\n", envEnd)
	b.WriteString("\tpop rbx\t; the new rib\n")
	b.WriteString("\tmov rsi, 0\n")
	fmt.Fprintf(b, "%s:\t; copy the parameters into the rib\n", paramsLoop)
	fmt.Fprintf(b, "\tcmp rsi, %d\n", params)
	fmt.Fprintf(b, "\tje %s\n", paramsEnd)
	b.WriteString("\tmov rdx, qword [rbp + rsi*8 + 8*4]\n")
	b.WriteString("\tmov qword [rbx + rsi*8], rdx\n")
	b.WriteString("\tinc rsi\n")
	fmt.Fprintf(b, "\tjmp %s\n", paramsLoop)
	fmt.Fprintf(b, "%s:\n", paramsEnd)
	b.WriteString("\tmov qword [rax], rbx\t; the new rib at index 0\n")
	b.WriteString("\tmov rbx, rax\n")
	b.WriteString("\tpop rax\t; the closure\n")
	b.WriteString("\tmov byte [rax], T_closure\n")
	b.WriteString("\tmov SOB_CLOSURE_ENV(rax), rbx\n")
	fmt.Fprintf(b, "\tmov qword SOB_CLOSURE_CODE(rax), %s\n", codeLabel)
	fmt.Fprintf(b, "\tjmp %s\n", endLabel)
	return codeLabel, endLabel
}

func (c *Compiler) genLambdaSimple(b *strings.Builder, x *Lambda, params, depth int) {
	codeLabel, endLabel := c.genClosure(b, "lambda_simple", params, depth)
	fixed := len(x.Params)
	fmt.Fprintf(b, "%s:\n", codeLabel)
	b.WriteString("\tpush rbp\n")
	b.WriteString("\tmov rbp, rsp\n")
	fmt.Fprintf(b, "\tcmp COUNT, %d\n", fixed)
	b.WriteString("\tjne L_error_incorrect_arity_simple\n")
	c.genExpr(b, x.Body, fixed, depth+1)
	b.WriteString("\tleave\n")
	fmt.Fprintf(b, "\tret AND_KILL_FRAME(%d)\n", fixed)
	fmt.Fprintf(b, "%s:\n", endLabel)
}

// genLambdaOpt widens the incoming frame to |fixed|+1 arguments: an
// exact call grows the stack by one nil slot; a longer call folds the
// excess arguments into a list, right to left, and shifts the header
// and fixed arguments down over the vacated slots.
func (c *Compiler) genLambdaOpt(b *strings.Builder, x *Lambda, params, depth int) {
	codeLabel, endLabel := c.genClosure(b, "lambda_opt", params, depth)
	fixed := len(x.Params)
	exact := c.label("lambda_opt_arity_exact")
	exactLoop := c.label("lambda_opt_exact_loop")
	exactEnd := c.label("lambda_opt_exact_end")
	more := c.label("lambda_opt_arity_more")
	listLoop := c.label("lambda_opt_list_loop")
	listEnd := c.label("lambda_opt_list_end")
	shiftLoop := c.label("lambda_opt_shift_loop")
	stackOk := c.label("lambda_opt_stack_adjusted")

	fmt.Fprintf(b, "%s:\n", codeLabel)
	fmt.Fprintf(b, "\tcmp qword [rsp + 8*2], %d\n", fixed)
	fmt.Fprintf(b, "\tje %s\n", exact)
	fmt.Fprintf(b, "\tjg %s\n", more)
	b.WriteString("\tjmp L_error_incorrect_arity_opt\n")

	fmt.Fprintf(b, "%s:\t; widen the frame by an empty rest list\n", exact)
	b.WriteString("\tsub rsp, 8\n")
	b.WriteString("\tmov rsi, 0\n")
	fmt.Fprintf(b, "%s:\n", exactLoop)
	fmt.Fprintf(b, "\tcmp rsi, %d\n", fixed+3)
	fmt.Fprintf(b, "\tje %s\n", exactEnd)
	b.WriteString("\tmov rbx, qword [rsp + rsi*8 + 8]\n")
	b.WriteString("\tmov qword [rsp + rsi*8], rbx\n")
	b.WriteString("\tinc rsi\n")
	fmt.Fprintf(b, "\tjmp %s\n", exactLoop)
	fmt.Fprintf(b, "%s:\n", exactEnd)
	fmt.Fprintf(b, "\tmov qword [rsp + 8*%d], sob_nil\n", fixed+3)
	fmt.Fprintf(b, "\tmov qword [rsp + 8*2], %d\n", fixed+1)
	fmt.Fprintf(b, "\tjmp %s\n", stackOk)

	fmt.Fprintf(b, "%s:\t; fold the excess arguments into a list\n", more)
	b.WriteString("\tmov r9, sob_nil\n")
	b.WriteString("\tmov rcx, qword [rsp + 8*2]\n")
	fmt.Fprintf(b, "%s:\n", listLoop)
	fmt.Fprintf(b, "\tcmp rcx, %d\n", fixed)
	fmt.Fprintf(b, "\tje %s\n", listEnd)
	b.WriteString("\tmov rdi, 17\n")
	b.WriteString("\tcall malloc\n")
	b.WriteString("\tmov byte [rax], T_pair\n")
	b.WriteString("\tmov rbx, qword [rsp + rcx*8 + 8*2]\n")
	b.WriteString("\tmov qword [rax + 1], rbx\n")
	b.WriteString("\tmov qword [rax + 9], r9\n")
	b.WriteString("\tmov r9, rax\n")
	b.WriteString("\tdec rcx\n")
	fmt.Fprintf(b, "\tjmp %s\n", listLoop)
	fmt.Fprintf(b, "%s:\n", listEnd)
	b.WriteString("\tmov rdx, qword [rsp + 8*2]\n")
	b.WriteString("\tmov qword [rsp + rdx*8 + 8*2], r9\t; the rest list\n")
	b.WriteString("\tmov r8, rdx\n")
	fmt.Fprintf(b, "\tsub r8, %d\t; slots vacated\n", fixed+1)
	fmt.Fprintf(b, "\tmov rsi, %d\t; header plus fixed arguments\n", fixed+2)
	fmt.Fprintf(b, "%s:\n", shiftLoop)
	b.WriteString("\tmov rbx, qword [rsp + rsi*8]\n")
	b.WriteString("\tlea rdi, [rsp + rsi*8]\n")
	b.WriteString("\tmov qword [rdi + r8*8], rbx\n")
	b.WriteString("\tdec rsi\n")
	fmt.Fprintf(b, "\tjns %s\n", shiftLoop)
	b.WriteString("\tlea rsp, [rsp + r8*8]\n")
	fmt.Fprintf(b, "\tmov qword [rsp + 8*2], %d\n", fixed+1)

	fmt.Fprintf(b, "%s:\n", stackOk)
	b.WriteString("\tpush rbp\n")
	b.WriteString("\tmov rbp, rsp\n")
	c.genExpr(b, x.Body, fixed+1, depth+1)
	b.WriteString("\tleave\n")
	fmt.Fprintf(b, "\tret AND_KILL_FRAME(%d)\n", fixed+1)
	fmt.Fprintf(b, "%s:\n", endLabel)
}

//----------------------------------------------------------------------
// Applications.

func (c *Compiler) genApplic(b *strings.Builder, x *Applic, params, depth int) {
	n := len(x.Args)
	for i := n - 1; i >= 0; i-- {
		c.genExpr(b, x.Args[i], params, depth)
		b.WriteString("\tpush rax\n")
	}
	fmt.Fprintf(b, "\tpush %d\t; the argument count\n", n)
	c.genExpr(b, x.Proc, params, depth)
	b.WriteString("\tcmp byte [rax], T_closure\n")
	b.WriteString("\tjne L_error_non_closure\n")
	b.WriteString("\tpush qword SOB_CLOSURE_ENV(rax)\n")
	if !x.Tail {
		b.WriteString("\tcall qword SOB_CLOSURE_CODE(rax)\n")
		return
	}
	// Frame recycling: overlay the new argument block onto the
	// caller's frame and jump, so a tail call never grows the stack.
	recycleLoop := c.label("tc_recycle_frame_loop")
	b.WriteString("\tpush qword [rbp + 8]\t; the return address\n")
	b.WriteString("\tpush qword [rbp]\t; the saved rbp\n")
	b.WriteString("\tmov r10, qword SOB_CLOSURE_CODE(rax)\n")
	b.WriteString("\tmov r8, qword [rbp + 8*3]\n")
	b.WriteString("\tlea r8, [rbp + r8*8 + 8*3]\t; top of the current frame\n")
	fmt.Fprintf(b, "\tlea r9, [rsp + 8*%d]\t; top of the new frame\n", n+3)
	fmt.Fprintf(b, "\tmov rcx, %d\n", n+4)
	fmt.Fprintf(b, "%s:\n", recycleLoop)
	b.WriteString("\tmov rbx, qword [r9]\n")
	b.WriteString("\tmov qword [r8], rbx\n")
	b.WriteString("\tsub r8, 8\n")
	b.WriteString("\tsub r9, 8\n")
	b.WriteString("\tdec rcx\n")
	fmt.Fprintf(b, "\tjnz %s\n", recycleLoop)
	b.WriteString("\tlea rsp, [r8 + 8]\n")
	b.WriteString("\tpop rbp\n")
	b.WriteString("\tjmp r10\n")
}

//----------------------------------------------------------------------
// Top level.

// genTopLevel lowers the analyzed top-level forms.  Between forms the
// runtime prints the result unless it is void.
func (c *Compiler) genTopLevel(b *strings.Builder, exprs []Expr) {
	for _, e := range exprs {
		c.genExpr(b, e, 0, 0)
		b.WriteString("\tmov rdi, rax\n")
		b.WriteString("\tcall print_sexpr_if_not_void\n")
	}
}

// genBindPrimitives emits the startup loop binding every primitive
// name to a closure over its runtime code pointer.
func (c *Compiler) genBindPrimitives(b *strings.Builder) {
	b.WriteString("\t; bind the primitive procedures\n")
	for _, p := range Primitives {
		fmt.Fprintf(b, "\tmov rdi, %s\t; %s\n", c.freeVars.Label(p.Name), p.Name)
		fmt.Fprintf(b, "\tmov rsi, %s\n", p.Label)
		b.WriteString("\tcall bind_primitive\n")
	}
}
