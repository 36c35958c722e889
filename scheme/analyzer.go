package scheme

// The semantic analyzer runs three total passes over the AST: lexical
// addressing, tail-call annotation, and automatic boxing of mutated
// closed-over parameters.

// Analyze runs the three passes over a tag-parsed expression.
func Analyze(e Expr) (result Expr, err error) {
	defer recoverError(&err)
	return analyze(e), nil
}

func analyze(e Expr) Expr {
	return boxSets(annotateTC(lexicalAddress(e, nil, nil), false))
}

//----------------------------------------------------------------------
// Pass 1: lexical addressing.
//
// params is the innermost parameter list; env lists the outer
// parameter lists, innermost first.  The innermost binding wins.

func lexicalAddress(e Expr, params []*Sym, env [][]*Sym) Expr {
	switch x := e.(type) {
	case *Const:
		return x
	case *VarGet:
		return &VarGet{resolveVar(x.V.Name, params, env)}
	case *VarSet:
		return &VarSet{resolveVar(x.V.Name, params, env),
			lexicalAddress(x.Value, params, env)}
	case *VarDef:
		// define always binds at the global level
		return &VarDef{&Var{x.V.Name, &Free{}},
			lexicalAddress(x.Value, params, env)}
	case *If:
		return &If{lexicalAddress(x.Test, params, env),
			lexicalAddress(x.Then, params, env),
			lexicalAddress(x.Else, params, env)}
	case *Seq:
		return &Seq{lexicalAddressAll(x.Body, params, env)}
	case *Or:
		return &Or{lexicalAddressAll(x.Body, params, env)}
	case *Lambda:
		inner := make([]*Sym, 0, len(x.Params)+1)
		inner = append(inner, x.Params...)
		if x.Opt != nil {
			inner = append(inner, x.Opt)
		}
		newEnv := make([][]*Sym, 0, len(env)+1)
		newEnv = append(newEnv, params)
		newEnv = append(newEnv, env...)
		return &Lambda{x.Params, x.Opt, lexicalAddress(x.Body, inner, newEnv)}
	case *Applic:
		return &Applic{lexicalAddress(x.Proc, params, env),
			lexicalAddressAll(x.Args, params, env), x.Tail}
	}
	panic(&InternalError{"lexical addressing: unknown node " + ExprString(e)})
}

func lexicalAddressAll(ee []Expr, params []*Sym, env [][]*Sym) []Expr {
	result := make([]Expr, len(ee))
	for i, e := range ee {
		result[i] = lexicalAddress(e, params, env)
	}
	return result
}

func resolveVar(name *Sym, params []*Sym, env [][]*Sym) *Var {
	for i, p := range params {
		if p == name {
			return &Var{name, &Param{i}}
		}
	}
	for major, rib := range env {
		for minor, p := range rib {
			if p == name {
				return &Var{name, &Bound{major, minor}}
			}
		}
	}
	return &Var{name, &Free{}}
}

//----------------------------------------------------------------------
// Pass 2: tail-call annotation.

func annotateTC(e Expr, inTail bool) Expr {
	switch x := e.(type) {
	case *Const, *VarGet:
		return e
	case *VarSet:
		return &VarSet{x.V, annotateTC(x.Value, false)}
	case *VarDef:
		return &VarDef{x.V, annotateTC(x.Value, false)}
	case *If:
		return &If{annotateTC(x.Test, false),
			annotateTC(x.Then, inTail),
			annotateTC(x.Else, inTail)}
	case *Seq:
		return &Seq{annotateTCBody(x.Body, inTail)}
	case *Or:
		return &Or{annotateTCBody(x.Body, inTail)}
	case *Lambda:
		return &Lambda{x.Params, x.Opt, annotateTC(x.Body, true)}
	case *Applic:
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = annotateTC(a, false)
		}
		return &Applic{annotateTC(x.Proc, false), args, inTail}
	}
	panic(&InternalError{"tail annotation: unknown node " + ExprString(e)})
}

// annotateTCBody annotates a Seq or Or body: all but the last member
// are non-tail; the last inherits the context.
func annotateTCBody(ee []Expr, inTail bool) []Expr {
	result := make([]Expr, len(ee))
	for i, e := range ee {
		if i == len(ee)-1 {
			result[i] = annotateTC(e, inTail)
		} else {
			result[i] = annotateTC(e, false)
		}
	}
	return result
}

//----------------------------------------------------------------------
// Pass 3: automatic boxing.
//
// A parameter of a lambda is boxed iff its body both reads and writes
// it through references which cannot share the parameter slot: one of
// them addressed Param with the other Bound, or both Bound but
// reached through disjoint inner closures.  Each reference records the
// first lambda crossed on the way to it; two references agree iff
// that lambda is the same object.

func boxSets(e Expr) Expr {
	switch x := e.(type) {
	case *Const, *VarGet:
		return e
	case *VarSet:
		return &VarSet{x.V, boxSets(x.Value)}
	case *VarDef:
		return &VarDef{x.V, boxSets(x.Value)}
	case *If:
		return &If{boxSets(x.Test), boxSets(x.Then), boxSets(x.Else)}
	case *Seq:
		return &Seq{boxSetsAll(x.Body)}
	case *Or:
		return &Or{boxSetsAll(x.Body)}
	case *Lambda:
		return boxLambda(x)
	case *Applic:
		return &Applic{boxSets(x.Proc), boxSetsAll(x.Args), x.Tail}
	case *Box, *BoxGet:
		return e
	case *BoxSet:
		return &BoxSet{x.V, boxSets(x.Value)}
	}
	panic(&InternalError{"boxing: unknown node " + ExprString(e)})
}

func boxSetsAll(ee []Expr) []Expr {
	result := make([]Expr, len(ee))
	for i, e := range ee {
		result[i] = boxSets(e)
	}
	return result
}

func lambdaParamList(x *Lambda) []*Sym {
	names := make([]*Sym, 0, len(x.Params)+1)
	names = append(names, x.Params...)
	if x.Opt != nil {
		names = append(names, x.Opt)
	}
	return names
}

func boxLambda(x *Lambda) Expr {
	names := lambdaParamList(x)
	body := x.Body
	var toBox []int
	for i, p := range names {
		if shouldBox(body, p) {
			toBox = append(toBox, i)
		}
	}
	var sets []Expr
	for _, i := range toBox {
		p := names[i]
		body = rewriteBoxed(body, p, 0)
		v := &Var{p, &Param{i}}
		sets = append(sets, &VarSet{v, &Box{v}})
	}
	body = boxSets(body)
	if len(sets) > 0 {
		if seq, ok := body.(*Seq); ok {
			body = &Seq{append(sets, seq.Body...)}
		} else {
			body = &Seq{append(sets, body)}
		}
	}
	return &Lambda{x.Params, x.Opt, body}
}

// refersTo reports whether variable occurrence v, seen depth lambdas
// below the owner of name, denotes the owner's parameter.  A crossed
// lambda that shadows the name gives the occurrence a different
// address, so shadowed regions drop out here.
func refersTo(v *Var, name *Sym, depth int) bool {
	if v.Name != name {
		return false
	}
	if depth == 0 {
		_, ok := v.Addr.(*Param)
		return ok
	}
	b, ok := v.Addr.(*Bound)
	return ok && b.Major == depth-1
}

type boxOcc struct {
	write bool
	first *Lambda // first lambda crossed below the owner; nil if none
}

func shouldBox(body Expr, name *Sym) bool {
	var occs []boxOcc
	collectOcc(body, name, 0, nil, &occs)
	for _, r := range occs {
		if r.write {
			continue
		}
		for _, w := range occs {
			if w.write && r.first != w.first {
				return true
			}
		}
	}
	return false
}

func collectOcc(e Expr, name *Sym, depth int, first *Lambda, occs *[]boxOcc) {
	switch x := e.(type) {
	case *Const:
	case *VarGet:
		if refersTo(x.V, name, depth) {
			*occs = append(*occs, boxOcc{false, first})
		}
	case *VarSet:
		if refersTo(x.V, name, depth) {
			*occs = append(*occs, boxOcc{true, first})
		}
		collectOcc(x.Value, name, depth, first, occs)
	case *VarDef:
		collectOcc(x.Value, name, depth, first, occs)
	case *If:
		collectOcc(x.Test, name, depth, first, occs)
		collectOcc(x.Then, name, depth, first, occs)
		collectOcc(x.Else, name, depth, first, occs)
	case *Seq:
		for _, e := range x.Body {
			collectOcc(e, name, depth, first, occs)
		}
	case *Or:
		for _, e := range x.Body {
			collectOcc(e, name, depth, first, occs)
		}
	case *Lambda:
		f := first
		if depth == 0 {
			f = x
		}
		collectOcc(x.Body, name, depth+1, f, occs)
	case *Applic:
		collectOcc(x.Proc, name, depth, first, occs)
		for _, a := range x.Args {
			collectOcc(a, name, depth, first, occs)
		}
	case *BoxSet:
		collectOcc(x.Value, name, depth, first, occs)
	}
}

// rewriteBoxed replaces every read of the boxed parameter with BoxGet
// and every write with BoxSet, stopping at shadowing regions via the
// address check in refersTo.
func rewriteBoxed(e Expr, name *Sym, depth int) Expr {
	switch x := e.(type) {
	case *Const:
		return x
	case *VarGet:
		if refersTo(x.V, name, depth) {
			return &BoxGet{x.V}
		}
		return x
	case *VarSet:
		value := rewriteBoxed(x.Value, name, depth)
		if refersTo(x.V, name, depth) {
			return &BoxSet{x.V, value}
		}
		return &VarSet{x.V, value}
	case *VarDef:
		return &VarDef{x.V, rewriteBoxed(x.Value, name, depth)}
	case *If:
		return &If{rewriteBoxed(x.Test, name, depth),
			rewriteBoxed(x.Then, name, depth),
			rewriteBoxed(x.Else, name, depth)}
	case *Seq:
		return &Seq{rewriteBoxedAll(x.Body, name, depth)}
	case *Or:
		return &Or{rewriteBoxedAll(x.Body, name, depth)}
	case *Lambda:
		return &Lambda{x.Params, x.Opt, rewriteBoxed(x.Body, name, depth+1)}
	case *Applic:
		return &Applic{rewriteBoxed(x.Proc, name, depth),
			rewriteBoxedAll(x.Args, name, depth), x.Tail}
	case *Box, *BoxGet:
		return e
	case *BoxSet:
		return &BoxSet{x.V, rewriteBoxed(x.Value, name, depth)}
	}
	panic(&InternalError{"boxing rewrite: unknown node " + ExprString(e)})
}

func rewriteBoxedAll(ee []Expr, name *Sym, depth int) []Expr {
	result := make([]Expr, len(ee))
	for i, e := range ee {
		result[i] = rewriteBoxed(e, name, depth)
	}
	return result
}
