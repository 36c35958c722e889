package scheme

import (
	"sort"
	"strings"
	"testing"
)

func parseProgram(t *testing.T, src string) []Expr {
	t.Helper()
	exprs, err := NewCompiler().Parse(src)
	if err != nil {
		t.Fatalf("parsing %q: %v", src, err)
	}
	return exprs
}

func TestConstTablePrologueObjects(t *testing.T) {
	ct := BuildConstTable(parseProgram(t, "1"))
	want := []struct {
		v   Any
		loc int
	}{
		{VoidToken, 0},
		{Nil, 1},
		{false, 2},
		{true, 3},
		{Char(0), 4},
	}
	for i, w := range want {
		e := ct.Entries[i]
		if !Equal(e.Value, w.v) || e.Loc != w.loc {
			t.Errorf("entry %d: expected %s at %d, got %s at %d",
				i, Str(w.v), w.loc, Str(e.Value), e.Loc)
		}
	}
	// the first primitive name string follows the fixed objects
	if e := ct.Entries[5]; e.Value != Primitives[0].Name || e.Loc != 6 {
		t.Errorf("entry 5: expected %q at 6, got %s at %d",
			Primitives[0].Name, Str(e.Value), e.Loc)
	}
}

func TestConstTableDeduplication(t *testing.T) {
	ct := BuildConstTable(parseProgram(t, `(f 7 7 "a" "a" '(7 . "a"))`))
	for i, e := range ct.Entries {
		for _, e2 := range ct.Entries[i+1:] {
			if Equal(e.Value, e2.Value) {
				t.Errorf("duplicate entry %s", Str(e.Value))
			}
		}
	}
}

func TestConstTableSubObjectsFirst(t *testing.T) {
	ct := BuildConstTable(parseProgram(t, `(f '(1 2 (3)) '#(4 "five") 'sym)`))
	for _, e := range ct.Entries {
		switch x := e.Value.(type) {
		case *Cell:
			if x == Nil {
				continue
			}
			if ct.Loc(x.Car) >= e.Loc || ct.Loc(x.Cdr) >= e.Loc {
				t.Errorf("pair %s precedes a component", Str(x))
			}
		case *Vector:
			for _, el := range x.Items {
				if ct.Loc(el) >= e.Loc {
					t.Errorf("vector %s precedes a component", Str(x))
				}
			}
		case *Sym:
			if ct.Loc(x.Name) >= e.Loc {
				t.Errorf("symbol %s precedes its name string", x.Name)
			}
		}
	}
}

func TestConstTableOffsets(t *testing.T) {
	ct := BuildConstTable(parseProgram(t, "1"))
	loc := 0
	for _, e := range ct.Entries {
		if e.Loc != loc {
			t.Fatalf("entry %s: expected offset %d, got %d",
				Str(e.Value), loc, e.Loc)
		}
		loc += constSize(e.Value)
	}
}

func TestConstSize(t *testing.T) {
	for _, tc := range []struct {
		v Any
		n int
	}{
		{VoidToken, 1},
		{Nil, 1},
		{true, 1},
		{Char('a'), 2},
		{"ab", 11},
		{NewSym("ab"), 9},
		{int64(5), 9},
		{&Fraction{1, 2}, 17},
		{2.5, 9},
		{&Vector{[]Any{int64(1), int64(2)}}, 25},
		{&Cell{int64(1), int64(2)}, 17},
	} {
		if n := constSize(tc.v); n != tc.n {
			t.Errorf("%s: expected size %d, got %d", Str(tc.v), tc.n, n)
		}
	}
}

func TestConstTableEmit(t *testing.T) {
	ct := BuildConstTable(parseProgram(t, `'(foo . 2.5)`))
	var b strings.Builder
	ct.Emit(&b)
	asm := b.String()
	for _, want := range []string{
		"L_constants:",
		"db T_void",
		"db T_nil",
		"db T_boolean_false",
		"db T_boolean_true",
		"db T_char, 0x00",
		"db T_interned_symbol",
		"db T_real",
		"dq 2.5",
		"db T_pair",
	} {
		if !strings.Contains(asm, want) {
			t.Errorf("emitted table lacks %q", want)
		}
	}
	// the symbol points at its name string
	if !strings.Contains(asm, "db 0x66, 0x6f, 0x6f") {
		t.Errorf("emitted table lacks the bytes of \"foo\"")
	}
}

func TestFreeVarTable(t *testing.T) {
	exprs := parseProgram(t, "(f x) (define y 1)")
	ft := BuildFreeVarTable(exprs)
	if !sort.StringsAreSorted(ft.Names) {
		t.Error("free-variable names are not sorted")
	}
	for _, name := range []string{"f", "x", "y"} {
		if _, ok := ft.index[name]; !ok {
			t.Errorf("free variable %s missing from the table", name)
		}
	}
	// the primitive set is a superset at startup
	for _, p := range Primitives {
		if _, ok := ft.index[p.Name]; !ok {
			t.Errorf("primitive %s missing from the table", p.Name)
		}
	}
	// parameters are not free
	ft2 := BuildFreeVarTable(parseProgram(t, "(lambda (q17) q17)"))
	if _, ok := ft2.index["q17"]; ok {
		t.Error("parameter q17 wrongly collected as free")
	}
}

func TestFreeVarTableEmit(t *testing.T) {
	exprs := parseProgram(t, "x")
	ct := BuildConstTable(exprs)
	ft := BuildFreeVarTable(exprs)
	var b strings.Builder
	ft.Emit(&b, ct)
	asm := b.String()
	if !strings.Contains(asm, "free_var_0:") {
		t.Error("missing slot label")
	}
	if !strings.Contains(asm, "db T_undefined") {
		t.Error("missing undefined cell")
	}
	if !strings.Contains(asm, ft.Label("x")+":") {
		t.Errorf("missing slot for x (%s)", ft.Label("x"))
	}
}
