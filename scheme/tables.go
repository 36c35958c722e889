package scheme

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ConstEntry is one deduplicated constants-table object and its byte
// offset from L_constants.
type ConstEntry struct {
	Value Any
	Loc   int
}

// ConstTable is the constants table of a compilation.  Subcomponents
// always precede their composites, so emitted pointers never refer
// forward.
type ConstTable struct {
	Entries []*ConstEntry
}

// BuildConstTable collects every literal of the program and the name
// string of every free variable, prepends the fixed prologue objects,
// expands subconstants in post-order and deduplicates structurally.
func BuildConstTable(exprs []Expr) *ConstTable {
	raw := []Any{VoidToken, Nil, false, true, Char(0)}
	for _, p := range Primitives {
		raw = append(raw, p.Name)
	}
	for _, e := range exprs {
		collectConsts(e, &raw)
	}
	var expanded []Any
	for _, v := range raw {
		expandConst(v, &expanded)
	}
	t := &ConstTable{}
	loc := 0
	for _, v := range expanded {
		if t.find(v) == nil {
			t.Entries = append(t.Entries, &ConstEntry{v, loc})
			loc += constSize(v)
		}
	}
	return t
}

// collectConsts gathers Const literals and free-variable name strings.
func collectConsts(e Expr, out *[]Any) {
	switch x := e.(type) {
	case *Const:
		*out = append(*out, x.Value)
	case *VarGet:
		collectVarName(x.V, out)
	case *VarSet:
		collectVarName(x.V, out)
		collectConsts(x.Value, out)
	case *VarDef:
		collectVarName(x.V, out)
		collectConsts(x.Value, out)
	case *If:
		collectConsts(x.Test, out)
		collectConsts(x.Then, out)
		collectConsts(x.Else, out)
	case *Seq:
		for _, e := range x.Body {
			collectConsts(e, out)
		}
	case *Or:
		for _, e := range x.Body {
			collectConsts(e, out)
		}
	case *Lambda:
		collectConsts(x.Body, out)
	case *Applic:
		collectConsts(x.Proc, out)
		for _, a := range x.Args {
			collectConsts(a, out)
		}
	case *Box:
		collectVarName(x.V, out)
	case *BoxGet:
		collectVarName(x.V, out)
	case *BoxSet:
		collectVarName(x.V, out)
		collectConsts(x.Value, out)
	}
}

func collectVarName(v *Var, out *[]Any) {
	if _, ok := v.Addr.(*Free); ok {
		*out = append(*out, v.Name.Name)
	}
}

// expandConst appends v and its subconstants in post-order: for pairs
// car, cdr, then the pair; for vectors the elements, then the vector;
// for symbols the name string, then the symbol.
func expandConst(v Any, out *[]Any) {
	switch x := v.(type) {
	case *Cell:
		if x != Nil {
			expandConst(x.Car, out)
			expandConst(x.Cdr, out)
		}
	case *Vector:
		for _, e := range x.Items {
			expandConst(e, out)
		}
	case *Sym:
		expandConst(x.Name, out)
	}
	*out = append(*out, v)
}

func (t *ConstTable) find(v Any) *ConstEntry {
	for _, e := range t.Entries {
		if Equal(e.Value, v) {
			return e
		}
	}
	return nil
}

// Loc returns the byte offset of v in the table.
func (t *ConstTable) Loc(v Any) int {
	e := t.find(v)
	if e == nil {
		panic(&InternalError{"constant not in table: " + Str(v)})
	}
	return e.Loc
}

// constSize returns the byte size of the table entry for v: one RTTI
// byte plus the payload of its kind.
func constSize(v Any) int {
	switch x := v.(type) {
	case bool:
		return 1
	case Char:
		return 2
	case string:
		return 1 + 8 + len(x)
	case *Sym:
		return 1 + 8
	case int64:
		return 1 + 8
	case *Fraction:
		return 1 + 16
	case float64:
		return 1 + 8
	case *Vector:
		return 1 + 8 + 8*len(x.Items)
	case *Cell:
		if x == Nil {
			return 1
		}
		return 1 + 16
	default:
		if v == VoidToken {
			return 1
		}
	}
	panic(&InternalError{"unsized constant: " + Str(v)})
}

// Emit writes the table as assembly data.
func (t *ConstTable) Emit(b *strings.Builder) {
	b.WriteString("L_constants:\n")
	for _, e := range t.Entries {
		fmt.Fprintf(b, "\t; L_constants + %d: %s\n", e.Loc, Str(e.Value))
		t.emitEntry(b, e.Value)
	}
}

func (t *ConstTable) emitEntry(b *strings.Builder, v Any) {
	switch x := v.(type) {
	case bool:
		if x {
			b.WriteString("\tdb T_boolean_true\n")
		} else {
			b.WriteString("\tdb T_boolean_false\n")
		}
	case Char:
		fmt.Fprintf(b, "\tdb T_char, 0x%02x\n", byte(x))
	case string:
		fmt.Fprintf(b, "\tdb T_string\n\tdq %d\n", len(x))
		emitBytes(b, x)
	case *Sym:
		fmt.Fprintf(b, "\tdb T_interned_symbol\n\tdq L_constants + %d\n",
			t.Loc(x.Name))
	case int64:
		fmt.Fprintf(b, "\tdb T_integer\n\tdq %d\n", x)
	case *Fraction:
		fmt.Fprintf(b, "\tdb T_fraction\n\tdq %d, %d\n", x.Num, x.Den)
	case float64:
		fmt.Fprintf(b, "\tdb T_real\n\tdq %s\n", nasmFloat(x))
	case *Vector:
		fmt.Fprintf(b, "\tdb T_vector\n\tdq %d\n", len(x.Items))
		for _, e := range x.Items {
			fmt.Fprintf(b, "\tdq L_constants + %d\n", t.Loc(e))
		}
	case *Cell:
		if x == Nil {
			b.WriteString("\tdb T_nil\n")
		} else {
			fmt.Fprintf(b, "\tdb T_pair\n\tdq L_constants + %d, L_constants + %d\n",
				t.Loc(x.Car), t.Loc(x.Cdr))
		}
	default:
		if v == VoidToken {
			b.WriteString("\tdb T_void\n")
		} else {
			panic(&InternalError{"unemittable constant: " + Str(v)})
		}
	}
}

// emitBytes writes the bytes of a string in lines of at most twelve.
func emitBytes(b *strings.Builder, s string) {
	for i := 0; i < len(s); i += 12 {
		end := i + 12
		if end > len(s) {
			end = len(s)
		}
		b.WriteString("\tdb ")
		for j := i; j < end; j++ {
			if j > i {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "0x%02x", s[j])
		}
		b.WriteByte('\n')
	}
}

// nasmFloat formats f so that nasm reads it as a float literal.
func nasmFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.Contains(s, ".") {
		if i := strings.IndexAny(s, "eE"); i >= 0 {
			s = s[:i] + ".0" + s[i:]
		} else {
			s += ".0"
		}
	}
	return s
}

//----------------------------------------------------------------------

// FreeVarTable assigns each free-variable name a stable slot label.
type FreeVarTable struct {
	Names []string
	index map[string]int
}

// BuildFreeVarTable collects the unique names addressed Free anywhere
// in the program, seeds them with the primitive names, and sorts
// lexicographically.
func BuildFreeVarTable(exprs []Expr) *FreeVarTable {
	set := make(map[string]bool)
	for _, p := range Primitives {
		set[p.Name] = true
	}
	for _, e := range exprs {
		collectFreeNames(e, set)
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}
	return &FreeVarTable{names, index}
}

func collectFreeNames(e Expr, set map[string]bool) {
	switch x := e.(type) {
	case *VarGet:
		freeVarName(x.V, set)
	case *VarSet:
		freeVarName(x.V, set)
		collectFreeNames(x.Value, set)
	case *VarDef:
		freeVarName(x.V, set)
		collectFreeNames(x.Value, set)
	case *If:
		collectFreeNames(x.Test, set)
		collectFreeNames(x.Then, set)
		collectFreeNames(x.Else, set)
	case *Seq:
		for _, e := range x.Body {
			collectFreeNames(e, set)
		}
	case *Or:
		for _, e := range x.Body {
			collectFreeNames(e, set)
		}
	case *Lambda:
		collectFreeNames(x.Body, set)
	case *Applic:
		collectFreeNames(x.Proc, set)
		for _, a := range x.Args {
			collectFreeNames(a, set)
		}
	case *Box:
		freeVarName(x.V, set)
	case *BoxGet:
		freeVarName(x.V, set)
	case *BoxSet:
		freeVarName(x.V, set)
		collectFreeNames(x.Value, set)
	}
}

func freeVarName(v *Var, set map[string]bool) {
	if _, ok := v.Addr.(*Free); ok {
		set[v.Name.Name] = true
	}
}

// Index returns the slot number of name.
func (t *FreeVarTable) Index(name string) int {
	i, ok := t.index[name]
	if !ok {
		panic(&InternalError{"name not in free-variables table: " + name})
	}
	return i
}

// Label returns the slot label of name.
func (t *FreeVarTable) Label(name string) string {
	return fmt.Sprintf("free_var_%d", t.Index(name))
}

// Emit writes the table.  Each slot starts out pointing at an
// undefined cell which itself points at the symbol-name constant, so
// the runtime can report which name was referenced before definition.
func (t *FreeVarTable) Emit(b *strings.Builder, consts *ConstTable) {
	b.WriteString("; the free-variables table\n")
	for i, name := range t.Names {
		fmt.Fprintf(b, "free_var_%d:\t; location of %s\n", i, name)
		b.WriteString("\tdq .undefined_object\n")
		b.WriteString("\t.undefined_object:\n")
		b.WriteString("\t\tdb T_undefined\n")
		fmt.Fprintf(b, "\t\tdq L_constants + %d\n", consts.Loc(name))
	}
}
