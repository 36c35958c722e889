package scheme

import "fmt"

// The compiler fails fast: the first error aborts the compilation.
// Deep recursive code panics with one of the error kinds below and the
// public entry points recover and return it as an ordinary error.

// ReadError represents a malformed S-expression in the source text.
type ReadError struct {
	Pos    int // byte offset into the source
	Reason string
}

func (err *ReadError) Error() string {
	return fmt.Sprintf("read error at %d: %s", err.Pos, err.Reason)
}

// SyntaxError represents a malformed core form: a bad special form, a
// duplicate parameter, a reserved word misused, an unknown head symbol.
type SyntaxError struct {
	Message string
}

// NewSyntaxError constructs a SyntaxError naming the offending form x.
func NewSyntaxError(msg string, x Any) *SyntaxError {
	return &SyntaxError{msg + ": " + Str(x)}
}

func (err *SyntaxError) Error() string {
	return "syntax error: " + err.Message
}

// NotYetImplementedError marks a construct which is rejected
// deliberately, such as define inside a body.
type NotYetImplementedError struct {
	What string
}

func (err *NotYetImplementedError) Error() string {
	return "not yet implemented: " + err.What
}

// InternalError represents a broken compiler invariant.  It is a
// programming error, not a user error.
type InternalError struct {
	What string
}

func (err *InternalError) Error() string {
	return "internal error: " + err.What
}

// recoverError converts a panic raised by the compiler into an error.
// Foreign panics are re-raised.
func recoverError(errp *error) {
	if e := recover(); e != nil {
		switch err := e.(type) {
		case *ReadError:
			*errp = err
		case *SyntaxError:
			*errp = err
		case *NotYetImplementedError:
			*errp = err
		case *InternalError:
			*errp = err
		default:
			panic(e)
		}
	}
}
