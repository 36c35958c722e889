package scheme

// Quasi-Quotation

// QqExpand rewrites the template x of (quasiquote x) into an
// equivalent S-expression built from quote, cons, append, vector and
// list->vector.
func QqExpand(x Any) Any {
	switch t := x.(type) {
	case *Cell:
		if t == Nil {
			return __(Quote_, Nil)
		}
		if t.Car == Unquote_splicing_ {
			panic(NewSyntaxError("unquote-splicing outside a list template", t))
		}
		if isUnquoteForm(t, Unquote_) { // ,e => e
			return t.Tail().Car
		}
		if car, ok := t.Car.(*Cell); ok && isUnquoteForm(car, Unquote_splicing_) {
			e := car.Tail().Car
			if t.Cdr == Any(Nil) { // (,@e) => e
				return e
			}
			return __(appendSym, e, QqExpand(t.Cdr))
		}
		return __(consSym, QqExpand(t.Car), QqExpand(t.Cdr))
	case *Sym:
		return __(Quote_, t)
	case *Vector:
		return qqExpandVector(t)
	default:
		// self-evaluating atoms need no quote
		return x
	}
}

// isUnquoteForm reports whether c is (tag e).
func isUnquoteForm(c *Cell, tag *Sym) bool {
	if c == Nil || c.Car != tag {
		return false
	}
	cdr, ok := c.Cdr.(*Cell)
	if !ok || cdr == Nil || cdr.Cdr != Any(Nil) {
		return false
	}
	return true
}

// qqExpandVector expands a vector template.  A vector with a spliced
// element becomes (list->vector elements-as-list); otherwise each
// element expands in place under vector.
func qqExpandVector(v *Vector) Any {
	spliced := false
	for _, e := range v.Items {
		if c, ok := e.(*Cell); ok && isUnquoteForm(c, Unquote_splicing_) {
			spliced = true
			break
		}
	}
	if spliced {
		return __(listToVectorSym, QqExpand(ListOf(v.Items)))
	}
	result := []Any{vectorSym}
	for _, e := range v.Items {
		result = append(result, QqExpand(e))
	}
	return ListOf(result)
}
