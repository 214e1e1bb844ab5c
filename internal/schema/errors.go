package schema

import "fmt"

// Kind identifies a structured error category returned by the public API.
// None of these are raised as panics; internal assertion failures on
// post-load invariants are the only things that are fatal.
type Kind int

const (
	KindInvalidArgument Kind = iota
	KindNotFound
	KindInstanceLimit
	KindInvalidBank
	KindAlreadyLoaded
	KindOutOfMemory
	KindIOError
	KindInvalidCall
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindNotFound:
		return "NotFound"
	case KindInstanceLimit:
		return "InstanceLimit"
	case KindInvalidBank:
		return "InvalidBank"
	case KindAlreadyLoaded:
		return "AlreadyLoaded"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindIOError:
		return "IOError"
	case KindInvalidCall:
		return "InvalidCall"
	default:
		return "Unknown"
	}
}

// Error is the structured result code used throughout the runtime in place
// of ad-hoc error strings or control-flow panics.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func newErr(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func ErrInvalidBank(format string, args ...any) *Error {
	return newErr(KindInvalidBank, format, args...)
}

func ErrNotFound(format string, args ...any) *Error {
	return newErr(KindNotFound, format, args...)
}

func ErrInvalidArgument(format string, args ...any) *Error {
	return newErr(KindInvalidArgument, format, args...)
}

func ErrInstanceLimit(format string, args ...any) *Error {
	return newErr(KindInstanceLimit, format, args...)
}

func ErrInvalidCall(format string, args ...any) *Error {
	return newErr(KindInvalidCall, format, args...)
}

func ErrIO(format string, args ...any) *Error {
	return newErr(KindIOError, format, args...)
}

// Is reports whether err is a *Error of the given kind, for errors.Is style
// checks at call sites that only care about the category.
func Is(err error, k Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == k
}
