package scheme

import "testing"

func analyzeStr(t *testing.T, src string) Expr {
	t.Helper()
	e, err := AnalyzeForm(read1(t, src))
	if err != nil {
		t.Fatalf("analyzing %q: %v", src, err)
	}
	return e
}

func analyzeString2(t *testing.T, src, expected string) {
	t.Helper()
	if s := ExprString(analyzeStr(t, src)); s != expected {
		t.Errorf("%q:\nexpected %s\n     got %s", src, expected, s)
	}
}

func TestLexicalAddressing(t *testing.T) {
	analyzeString2(t, "(lambda (x) (lambda (y) (x y z)))",
		"(lambda (x) (lambda (y) (tc-applic (var x bound 0 0) (var y par 0) (var z free))))")
	analyzeString2(t, "x", "(var x free)")
	analyzeString2(t, "(lambda (x y) y)", "(lambda (x y) (var y par 1))")
	analyzeString2(t, "(lambda (x . r) r)", "(lambda (x . r) (var r par 1))")
}

func TestInnermostBindingWins(t *testing.T) {
	analyzeString2(t, "(lambda (x) (lambda (x) x))",
		"(lambda (x) (lambda (x) (var x par 0)))")
	analyzeString2(t, "(lambda (x) (lambda (y) (lambda (z) x)))",
		"(lambda (x) (lambda (y) (lambda (z) (var x bound 1 0))))")
}

func TestDefineBindsGlobally(t *testing.T) {
	analyzeString2(t, "(define x (f))",
		"(define (var x free) (applic (var f free)))")
}

func TestTailAnnotation(t *testing.T) {
	analyzeString2(t, "(f)", "(applic (var f free))")
	analyzeString2(t, "(lambda (x) (f (g x)))",
		"(lambda (x) (tc-applic (var f free) (applic (var g free) (var x par 0))))")
	analyzeString2(t, "(lambda () (if (f) (g) (h)))",
		"(lambda () (if (applic (var f free)) (tc-applic (var g free)) (tc-applic (var h free))))")
	analyzeString2(t, "(lambda () (or (f) (g)))",
		"(lambda () (or (applic (var f free)) (tc-applic (var g free))))")
	analyzeString2(t, "(lambda () (begin (f) (g)))",
		"(lambda () (seq (applic (var f free)) (tc-applic (var g free))))")
	// the value of a set! is never a tail position
	analyzeString2(t, "(lambda (x) (set! x (f)))",
		"(lambda (x) (set! (var x par 0) (applic (var f free))))")
}

func TestBoxingAcrossClosures(t *testing.T) {
	analyzeString2(t,
		"(lambda (x) (cons (lambda () x) (lambda () (set! x 1))))",
		"(lambda (x) (seq (set! (var x par 0) (box (var x par 0)))"+
			" (tc-applic (var cons free)"+
			" (lambda () (box-get (var x bound 0 0)))"+
			" (lambda () (box-set (var x bound 0 0) (const 1))))))")
}

func TestBoxingParamAndClosure(t *testing.T) {
	analyzeString2(t,
		"(lambda (x) (cons x (lambda () (set! x 1))))",
		"(lambda (x) (seq (set! (var x par 0) (box (var x par 0)))"+
			" (tc-applic (var cons free)"+
			" (box-get (var x par 0))"+
			" (lambda () (box-set (var x bound 0 0) (const 1))))))")
}

func TestNoBoxingSameClosure(t *testing.T) {
	// read and write share one inner closure, hence one rib
	analyzeString2(t, "(lambda (x) (lambda () (set! x 1) x))",
		"(lambda (x) (lambda () (seq (set! (var x bound 0 0) (const 1))"+
			" (var x bound 0 0))))")
}

func TestNoBoxingParamOnly(t *testing.T) {
	analyzeString2(t, "(lambda (x) (set! x 1) x)",
		"(lambda (x) (seq (set! (var x par 0) (const 1)) (var x par 0)))")
}

func TestBoxingShadowedRegionUntouched(t *testing.T) {
	analyzeString2(t,
		"(lambda (x) (cons x (cons (lambda () (set! x 1)) (lambda (x) x))))",
		"(lambda (x) (seq (set! (var x par 0) (box (var x par 0)))"+
			" (tc-applic (var cons free)"+
			" (box-get (var x par 0))"+
			" (applic (var cons free)"+
			" (lambda () (box-set (var x bound 0 0) (const 1)))"+
			" (lambda (x) (var x par 0))))))")
}

//----------------------------------------------------------------------
// Structural properties of the analyzed tree.

// checkAddresses verifies that every Param and Bound address points
// into a real rib of the right size.
func checkAddresses(t *testing.T, e Expr, params int, ribs []int) {
	check := func(v *Var, params int, ribs []int) {
		switch a := v.Addr.(type) {
		case *Free:
		case *Param:
			if a.Index >= params {
				t.Errorf("parameter index %d out of range %d", a.Index, params)
			}
		case *Bound:
			if a.Major >= len(ribs) {
				t.Errorf("major %d out of depth %d", a.Major, len(ribs))
			} else if a.Minor >= ribs[a.Major] {
				t.Errorf("minor %d out of rib size %d", a.Minor, ribs[a.Major])
			}
		default:
			t.Errorf("unaddressed variable %s", v.Name)
		}
	}
	var walk func(e Expr, params int, ribs []int)
	walk = func(e Expr, params int, ribs []int) {
		switch x := e.(type) {
		case *Const:
		case *VarGet:
			check(x.V, params, ribs)
		case *VarSet:
			check(x.V, params, ribs)
			walk(x.Value, params, ribs)
		case *VarDef:
			check(x.V, params, ribs)
			walk(x.Value, params, ribs)
		case *If:
			walk(x.Test, params, ribs)
			walk(x.Then, params, ribs)
			walk(x.Else, params, ribs)
		case *Seq:
			for _, e := range x.Body {
				walk(e, params, ribs)
			}
		case *Or:
			for _, e := range x.Body {
				walk(e, params, ribs)
			}
		case *Lambda:
			n := len(x.Params)
			if x.Opt != nil {
				n++
			}
			walk(x.Body, n, append([]int{params}, ribs...))
		case *Applic:
			walk(x.Proc, params, ribs)
			for _, a := range x.Args {
				walk(a, params, ribs)
			}
		case *Box:
			check(x.V, params, ribs)
		case *BoxGet:
			check(x.V, params, ribs)
		case *BoxSet:
			check(x.V, params, ribs)
			walk(x.Value, params, ribs)
		}
	}
	walk(e, params, ribs)
}

// checkBoxFixpoint verifies that after boxing no lambda still has a
// parameter which would need boxing.
func checkBoxFixpoint(t *testing.T, e Expr) {
	var walk func(e Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *VarSet:
			walk(x.Value)
		case *VarDef:
			walk(x.Value)
		case *If:
			walk(x.Test)
			walk(x.Then)
			walk(x.Else)
		case *Seq:
			for _, e := range x.Body {
				walk(e)
			}
		case *Or:
			for _, e := range x.Body {
				walk(e)
			}
		case *Lambda:
			for _, p := range lambdaParamList(x) {
				if shouldBox(x.Body, p) {
					t.Errorf("parameter %s still needs boxing in %s",
						p, ExprString(x))
				}
			}
			walk(x.Body)
		case *Applic:
			walk(x.Proc)
			for _, a := range x.Args {
				walk(a)
			}
		case *BoxSet:
			walk(x.Value)
		}
	}
	walk(e)
}

func TestAnalyzerProperties(t *testing.T) {
	for _, src := range []string{
		"(lambda (x) (lambda (y) (x y z)))",
		"(lambda (x) (cons (lambda () x) (lambda () (set! x 1))))",
		"(let ((x 0)) (lambda () (set! x (add1 x)) x))",
		"(define (loop n) (if (zero? n) 'done (loop (sub1 n))))",
		"(lambda (a b . c) (cons a (lambda () (set! b (f a c)))))",
		"(letrec ((even (lambda (n) (if (zero? n) #t (odd (sub1 n)))))"+
			" (odd (lambda (n) (if (zero? n) #f (even (sub1 n)))))) (even 8))",
	} {
		e := analyzeStr(t, src)
		checkAddresses(t, e, 0, nil)
		checkBoxFixpoint(t, e)
	}
}
