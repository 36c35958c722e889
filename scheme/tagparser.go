package scheme

// The tag parser maps a raw S-expression to an AST.  Derived forms are
// expanded source-to-source and the result is re-fed to the parser, so
// analysis only ever sees core forms.

// TagParse parses a top-level S-expression.
func TagParse(x Any) (result Expr, err error) {
	defer recoverError(&err)
	return tagParse(x, true), nil
}

// tagParse parses x.  top is true only at the program top level and
// through top-level begin forms; define is rejected elsewhere.
func tagParse(x Any, top bool) Expr {
	switch s := x.(type) {
	case *Sym:
		if s.IsKeyword {
			panic(NewSyntaxError("reserved word used as a variable", s))
		}
		return &VarGet{&Var{s, nil}}
	case *Cell:
		if s == Nil {
			panic(NewSyntaxError("empty application", s))
		}
		if head, ok := s.Car.(*Sym); ok && head.IsKeyword {
			return tagParseForm(head, s, top)
		}
		return tagParseApplic(s)
	default:
		// void, booleans, chars, strings, numbers and vectors
		// are self-evaluating.
		return &Const{x}
	}
}

// tailCell checks that x, a cdr inside form, is a list.
func tailCell(x Any, form *Cell) *Cell {
	c, ok := x.(*Cell)
	if !ok {
		panic(NewSyntaxError("proper list expected", form))
	}
	return c
}

func formArgs(form *Cell) []Any {
	return tailCell(form.Cdr, form).Slice()
}

func tagParseForm(head *Sym, form *Cell, top bool) Expr {
	args := formArgs(form)
	switch head {
	case Quote_:
		if len(args) != 1 {
			panic(NewSyntaxError("bad quote form", form))
		}
		return &Const{args[0]}
	case If_:
		switch len(args) {
		case 2:
			return &If{tagParse(args[0], false), tagParse(args[1], false),
				&Const{VoidToken}}
		case 3:
			return &If{tagParse(args[0], false), tagParse(args[1], false),
				tagParse(args[2], false)}
		}
		panic(NewSyntaxError("bad if form", form))
	case Or_:
		switch len(args) {
		case 0:
			return &Const{false}
		case 1:
			return tagParse(args[0], false)
		}
		body := make([]Expr, len(args))
		for i, a := range args {
			body[i] = tagParse(a, false)
		}
		return &Or{body}
	case Begin_:
		switch len(args) {
		case 0:
			return &Const{VoidToken}
		case 1:
			return tagParse(args[0], top)
		}
		body := make([]Expr, len(args))
		for i, a := range args {
			body[i] = tagParse(a, top)
		}
		return &Seq{body}
	case And_:
		switch len(args) {
		case 0:
			return &Const{true}
		case 1:
			return tagParse(args[0], false)
		}
		return tagParse(expandAnd(args), false)
	case Cond_:
		if len(args) == 0 {
			panic(NewSyntaxError("bad cond form", form))
		}
		return tagParse(expandCond(tailCell(form.Cdr, form)), false)
	case Lambda_:
		if len(args) < 2 {
			panic(NewSyntaxError("bad lambda form", form))
		}
		return tagParseLambda(args[0], form.Tail().Tail(), form)
	case Define_:
		return tagParseDefine(form, args, top)
	case SetQ_:
		if len(args) != 2 {
			panic(NewSyntaxError("bad set! form", form))
		}
		v := bindableSym(args[0], form)
		return &VarSet{&Var{v, nil}, tagParse(args[1], false)}
	case Let_:
		return tagParse(expandLet(form), false)
	case LetStar_:
		return tagParse(expandLetStar(form), false)
	case Letrec_:
		return tagParse(expandLetrec(form), false)
	case Quasiquote_:
		if len(args) != 1 {
			panic(NewSyntaxError("bad quasiquote form", form))
		}
		return tagParse(QqExpand(args[0]), false)
	}
	panic(NewSyntaxError("unknown special form", form))
}

// bindableSym checks that x may be bound or assigned.
func bindableSym(x Any, form *Cell) *Sym {
	s, ok := x.(*Sym)
	if !ok {
		panic(NewSyntaxError("identifier expected", form))
	}
	if s.IsKeyword {
		panic(NewSyntaxError("reserved word used as an identifier", form))
	}
	return s
}

func tagParseApplic(form *Cell) Expr {
	proc := tagParse(form.Car, false)
	rest := tailCell(form.Cdr, form).Slice()
	args := make([]Expr, len(rest))
	for i, a := range rest {
		args[i] = tagParse(a, false)
	}
	return &Applic{proc, args, false}
}

//----------------------------------------------------------------------

// tagParseLambda parses a lambda header and body.  The header is a
// proper list of identifiers, a bare identifier (zero fixed parameters
// plus rest), or an improper list (n fixed plus rest).
func tagParseLambda(header Any, body *Cell, form *Cell) Expr {
	var fixed []*Sym
	var opt *Sym
	switch h := header.(type) {
	case *Sym:
		opt = bindableSym(h, form)
	case *Cell:
		rest := Any(h)
		for {
			c, ok := rest.(*Cell)
			if !ok {
				opt = bindableSym(rest, form)
				break
			}
			if c == Nil {
				break
			}
			fixed = append(fixed, bindableSym(c.Car, form))
			rest = c.Cdr
		}
	default:
		panic(NewSyntaxError("bad lambda header", form))
	}
	seen := make(map[*Sym]bool)
	for _, p := range fixed {
		if seen[p] {
			panic(NewSyntaxError("duplicate parameter "+p.Name, form))
		}
		seen[p] = true
	}
	if opt != nil && seen[opt] {
		panic(NewSyntaxError("duplicate parameter "+opt.Name, form))
	}
	if body == Nil {
		panic(NewSyntaxError("empty body", form))
	}
	return &Lambda{fixed, opt, tagParse(&Cell{Begin_, body}, false)}
}

func tagParseDefine(form *Cell, args []Any, top bool) Expr {
	if !top {
		panic(&NotYetImplementedError{"define inside a body: " + Str(form)})
	}
	if len(args) < 1 {
		panic(NewSyntaxError("bad define form", form))
	}
	switch target := args[0].(type) {
	case *Cell:
		// (define (f p...) body...) =>
		// (define f (lambda (p...) (begin body...)))
		if target == Nil {
			panic(NewSyntaxError("bad define form", form))
		}
		f := bindableSym(target.Car, form)
		if len(args) < 2 {
			panic(NewSyntaxError("empty body", form))
		}
		lambda := tagParseLambda(target.Cdr, form.Tail().Tail(), form)
		return &VarDef{&Var{f, nil}, lambda}
	default:
		if len(args) != 2 {
			panic(NewSyntaxError("bad define form", form))
		}
		v := bindableSym(args[0], form)
		return &VarDef{&Var{v, nil}, tagParse(args[1], false)}
	}
}

//----------------------------------------------------------------------
// Derived forms expand source-to-source; the expansion is re-fed to
// tagParse.

// expandAnd right-folds (and e1 e2 ... en) into
// (if e1 (if e2 ... en #f) #f).
func expandAnd(args []Any) Any {
	if len(args) == 1 {
		return args[0]
	}
	return __(If_, args[0], expandAnd(args[1:]), false)
}

var valueSym = NewSym("value")
var fSym = NewSym("f")
var restSym = NewSym("rest")

// expandCond rewrites a clause list.  An empty clause list leaves the
// value of the whole cond void.
func expandCond(clauses *Cell) Any {
	if clauses == Nil {
		return VoidToken
	}
	clause, ok := clauses.Car.(*Cell)
	if !ok || clause == Nil {
		panic(NewSyntaxError("bad cond clause", clauses))
	}
	test := clause.Car
	body := tailCell(clause.Cdr, clause)
	rest := tailCell(clauses.Cdr, clauses)
	if test == Else_ {
		if body == Nil {
			panic(NewSyntaxError("empty else clause", clauses))
		}
		return &Cell{Begin_, body}
	}
	if body != Nil && body.Car == Arrow_ {
		// (cond (t => f) rest...) =>
		// (let ((value t) (f (lambda () f)) (rest (lambda () rest...)))
		//   (if value ((f) value) (rest)))
		if body.Length() != 2 {
			panic(NewSyntaxError("bad => clause", clauses))
		}
		recipient := body.Tail().Car
		return __(Let_,
			__(__(valueSym, test),
				__(fSym, __(Lambda_, Nil, recipient)),
				__(restSym, __(Lambda_, Nil, expandCond(rest)))),
			__(If_, valueSym,
				__(__(fSym), valueSym),
				__(restSym)))
	}
	if body == Nil {
		panic(NewSyntaxError("empty cond clause", clauses))
	}
	return __(If_, test, &Cell{Begin_, body}, expandCond(rest))
}

// splitBindings splits a binding list ((x e) ...) into the name list
// and the value list.
func splitBindings(form *Cell, bindings Any) (*Cell, *Cell) {
	var names, values []Any
	c, ok := bindings.(*Cell)
	if !ok {
		panic(NewSyntaxError("bad binding list", form))
	}
	for _, b := range c.Slice() {
		pair, ok := b.(*Cell)
		if !ok || pair.Length() != 2 {
			panic(NewSyntaxError("bad binding", form))
		}
		names = append(names, pair.Car)
		values = append(values, pair.Tail().Car)
	}
	return ListOf(names), ListOf(values)
}

// expandLet rewrites (let ((x e)...) body...) into
// ((lambda (x...) (begin body...)) e...).
func expandLet(form *Cell) Any {
	args := tailCell(form.Cdr, form)
	if args == Nil || args.Tail() == Nil {
		panic(NewSyntaxError("bad let form", form))
	}
	names, values := splitBindings(form, args.Car)
	lambda := __(Lambda_, names, &Cell{Begin_, args.Tail()})
	return &Cell{lambda, values}
}

// expandLetStar rewrites (let* ((x e) rest...) body...) into
// ((lambda (x) (let* (rest...) body...)) e).
func expandLetStar(form *Cell) Any {
	args := tailCell(form.Cdr, form)
	if args == Nil || args.Tail() == Nil {
		panic(NewSyntaxError("bad let* form", form))
	}
	bindings, ok := args.Car.(*Cell)
	if !ok {
		panic(NewSyntaxError("bad binding list", form))
	}
	if bindings == Nil || tailCell(bindings.Cdr, form) == Nil {
		return &Cell{Let_, args}
	}
	first, ok := bindings.Car.(*Cell)
	if !ok || first.Length() != 2 {
		panic(NewSyntaxError("bad binding", form))
	}
	lambda := __(Lambda_, __(first.Car),
		&Cell{LetStar_, &Cell{bindings.Tail(), args.Tail()}})
	return __(lambda, first.Tail().Car)
}

// expandLetrec rewrites (letrec ((x e)...) body...) into
// (let ((x (quote whatever))...) (set! x e)... body...).
func expandLetrec(form *Cell) Any {
	args := tailCell(form.Cdr, form)
	if args == Nil || args.Tail() == Nil {
		panic(NewSyntaxError("bad letrec form", form))
	}
	names, values := splitBindings(form, args.Car)
	var bindings []Any
	for j := names; j != Nil; j = j.Tail() {
		bindings = append(bindings, __(j.Car, __(Quote_, whateverSym)))
	}
	body := args.Tail()
	nn, vv := names.Slice(), values.Slice()
	for i := len(nn) - 1; i >= 0; i-- {
		body = &Cell{__(SetQ_, nn[i], vv[i]), body}
	}
	return &Cell{Let_, &Cell{ListOf(bindings), body}}
}
