package scheme

import (
	"strings"
	"testing"
)

func compileStr(t *testing.T, src string) string {
	t.Helper()
	asm, err := NewCompiler().CompileProgram(src)
	if err != nil {
		t.Fatalf("compiling %q: %v", src, err)
	}
	return asm
}

func TestCompileProgramShape(t *testing.T) {
	asm := compileStr(t, "(display (f 2 3))")
	for _, want := range []string{
		"L_constants:",
		"free_var_0:",
		"section .text",
		"global main",
		"call bind_primitive",
		"call print_sexpr_if_not_void",
		"L_program_done:",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("program lacks %q", want)
		}
	}
	// prologue, tables, code, epilogue appear in order
	order := []string{"%define T_void", "L_constants:", "free_var_0:",
		"global main", "print_sexpr_if_not_void", "L_program_done:"}
	pos := -1
	for _, s := range order {
		next := strings.Index(asm, s)
		if next <= pos {
			t.Fatalf("%q out of order", s)
		}
		pos = next
	}
}

func TestCompileConst(t *testing.T) {
	asm := compileStr(t, "42")
	if !strings.Contains(asm, "db T_integer\n\tdq 42") {
		t.Error("missing the integer constant")
	}
	if !strings.Contains(asm, "mov rax, L_constants + ") {
		t.Error("missing the constant load")
	}
}

func TestCompileFreeVarGet(t *testing.T) {
	asm := compileStr(t, "x")
	if !strings.Contains(asm, "cmp byte [rax], T_undefined") ||
		!strings.Contains(asm, "je L_error_fvar_undefined") {
		t.Error("missing the undefined-variable check")
	}
}

func TestCompileIf(t *testing.T) {
	asm := compileStr(t, "(if #t 1 2)")
	for _, want := range []string{
		"cmp rax, sob_boolean_false",
		"je L_if_else_1",
		"jmp L_if_end_1",
		"L_if_else_1:",
		"L_if_end_1:",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("if lowering lacks %q", want)
		}
	}
}

func TestCompileOr(t *testing.T) {
	asm := compileStr(t, "(or (f) (g) (h))")
	if !strings.Contains(asm, "jne L_or_end_1") ||
		!strings.Contains(asm, "L_or_end_1:") {
		t.Error("or lowering lacks its short-circuit labels")
	}
}

func TestCompileLambdaSimple(t *testing.T) {
	asm := compileStr(t, "(lambda (x y) x)")
	for _, want := range []string{
		"mov byte [rax], T_closure",
		"mov SOB_CLOSURE_ENV(rax), rbx",
		"mov qword SOB_CLOSURE_CODE(rax), L_lambda_simple_code_1",
		"L_lambda_simple_code_1:",
		"cmp COUNT, 2",
		"jne L_error_incorrect_arity_simple",
		"ret AND_KILL_FRAME(2)",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("lambda lowering lacks %q", want)
		}
	}
}

func TestCompileLambdaOpt(t *testing.T) {
	asm := compileStr(t, "(lambda (x . r) r)")
	for _, want := range []string{
		"jmp L_error_incorrect_arity_opt",
		"mov qword [rsp + 8*4], sob_nil",
		"mov byte [rax], T_pair",
		"ret AND_KILL_FRAME(2)",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("opt-lambda lowering lacks %q", want)
		}
	}
}

func TestCompileApplicNonTail(t *testing.T) {
	asm := compileStr(t, "(f (g))")
	if !strings.Contains(asm, "cmp byte [rax], T_closure") ||
		!strings.Contains(asm, "jne L_error_non_closure") {
		t.Error("missing the closure check")
	}
	if strings.Count(asm, "call qword SOB_CLOSURE_CODE(rax)") != 2 {
		t.Error("expected two non-tail calls")
	}
	if strings.Contains(asm, "jmp r10") {
		t.Error("unexpected tail-call sequence at the top level")
	}
}

func TestCompileTailCall(t *testing.T) {
	asm := compileStr(t, "(define (loop n) (loop n))")
	if !strings.Contains(asm, "L_tc_recycle_frame_loop_1:") ||
		!strings.Contains(asm, "jmp r10") {
		t.Error("missing the frame-recycling sequence")
	}
	// the recursive call must not grow the stack
	if strings.Contains(asm, "call qword SOB_CLOSURE_CODE(rax)") {
		t.Error("tail call was lowered as a plain call")
	}
}

func TestCompileBoxing(t *testing.T) {
	asm := compileStr(t,
		"(define (adder x) (cons (lambda () x) (lambda (n) (set! x n))))")
	for _, want := range []string{
		"mov rdi, 8\n\tcall malloc",
		"; box x",
		"mov rax, qword [rax]", // the box read
		"pop qword [rax]",      // the box write
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("boxing lowering lacks %q", want)
		}
	}
}

func TestCompileBindsEveryPrimitive(t *testing.T) {
	asm := compileStr(t, "1")
	if strings.Count(asm, "call bind_primitive") != len(Primitives) {
		t.Errorf("expected %d primitive bindings", len(Primitives))
	}
	for _, p := range Primitives {
		if !strings.Contains(asm, "mov rsi, "+p.Label) {
			t.Errorf("missing binding of %s", p.Name)
		}
	}
}

func TestCompileSeparateCompilersIndependent(t *testing.T) {
	a1 := compileStr(t, "(if 1 2 3)")
	a2 := compileStr(t, "(if 1 2 3)")
	if a1 != a2 {
		t.Error("two compilations of the same source differ")
	}
}

func TestCompileListing(t *testing.T) {
	c := NewCompiler()
	c.ListAnalyzed = true
	if _, err := c.CompileProgram("(lambda (x) x)"); err != nil {
		t.Fatal(err)
	}
	if len(c.Listing) != 1 || c.Listing[0] != "(lambda (x) (var x par 0))" {
		t.Errorf("bad listing: %v", c.Listing)
	}
}

func TestCompileErrorPropagation(t *testing.T) {
	if _, err := NewCompiler().CompileProgram("(lambda (x x) 1)"); err == nil {
		t.Error("expected a syntax error")
	}
	if _, err := NewCompiler().CompileProgram("(1 2"); err == nil {
		t.Error("expected a read error")
	}
}

func TestCompileEndToEndScenarios(t *testing.T) {
	// the sources of the end-to-end scenarios must all compile
	for _, src := range []string{
		"(display (+ 2 3))",
		"(define (fact n) (if (zero? n) 1 (* n (fact (- n 1))))) (display (fact 10))",
		"(define (loop n) (if (zero? n) 'done (loop (- n 1)))) (display (loop 1000000))",
		"(define (mk) (let ((x 0)) (lambda () (set! x (+ x 1)) x)))" +
			" (define c (mk)) (c) (c) (display (c))",
		"(display (map (lambda (x) (* x x)) '(1 2 3 4)))",
		`(display "hello ~{(+ 1 2)} world")`,
	} {
		if _, err := NewCompiler().CompileProgram(src); err != nil {
			t.Errorf("compiling %q: %v", src, err)
		}
	}
}
