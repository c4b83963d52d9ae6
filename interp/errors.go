package interp

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExceptionKind classifies a raisable exception. Syntax errors are
// reported by the external parser through the same Runtime kind;
// Cancelled marks the error delivered into a coroutine resumed after
// cancellation.
type ExceptionKind int

const (
	ExceptionRuntime ExceptionKind = iota
	ExceptionUser
	ExceptionCancelled
)

// CancelledErrorMsg is the fixed diagnostic text delivered into a
// suspended coroutine when its cancellation takes effect.
const CancelledErrorMsg = "CANCELLED_ERROR_MSG"

// ScriptException is a raisable exception: a per-interpreter exception
// value is set while unwinding, consumed by a matching catch, and
// re-raised or cleared by finally. It is plain data, not a Go error,
// because user code can inspect and re-raise it.
type ScriptException struct {
	Kind    ExceptionKind
	Message string
	Line    int
	Column  int
	Value   Value // payload available to `catch (e)` bindings
}

func (e *ScriptException) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Column, e.Message)
}

// NewRuntimeException builds a Runtime exception at the given source
// position: division by zero, bad index, wrong arity, bad await
// target, and the like.
func NewRuntimeException(line, col int, format string, args ...interface{}) *ScriptException {
	return &ScriptException{
		Kind:    ExceptionRuntime,
		Message: fmt.Sprintf(format, args...),
		Line:    line,
		Column:  col,
		Value:   NewString(fmt.Sprintf(format, args...)),
	}
}

// NewCancelledException builds the fixed-message exception delivered
// to a coroutine resumed after cancellation.
func NewCancelledException(line, col int) *ScriptException {
	return &ScriptException{
		Kind:    ExceptionCancelled,
		Message: CancelledErrorMsg,
		Line:    line,
		Column:  col,
		Value:   NewString(CancelledErrorMsg),
	}
}

// FatalError is raised for system failures the engine cannot recover
// from: an unreadable source file, a structural invariant violation.
// Unlike ScriptException it is a real Go error carrying a stack, and
// it always terminates the process.
type FatalError struct {
	cause error
	Line  int
	Col   int
}

func (f *FatalError) Error() string {
	return fmt.Sprintf("fatal error at line %d, col %d: %v", f.Line, f.Col, f.cause)
}

func (f *FatalError) Unwrap() error { return f.cause }

// NewFatalError wraps msg with a stack trace and the source position
// the diagnostic prints.
func NewFatalError(line, col int, msg string) *FatalError {
	return &FatalError{cause: errors.New(msg), Line: line, Col: col}
}

// WrapFatalError attaches a stack trace to an existing error rather
// than constructing a brand-new one, for failures that originate in a
// collaborator (filesystem, allocation).
func WrapFatalError(line, col int, err error) *FatalError {
	return &FatalError{cause: errors.WithStack(err), Line: line, Col: col}
}

// UnhandledExceptionDiagnostic formats the single-line diagnostic the
// CLI prints for an exception that escaped every catch.
func UnhandledExceptionDiagnostic(file string, e *ScriptException) string {
	return fmt.Sprintf("[Unhandled Exception] in %s at line %d, col %d: %s",
		file, e.Line, e.Column, e.Message)
}
