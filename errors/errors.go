package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // op declaration
	PhaseMarshal  Phase = "marshal"  // guest to native argument conversion
	PhaseDispatch Phase = "dispatch" // op invocation
	PhaseAsync    Phase = "async"    // pending op completion
	PhaseResource Phase = "resource" // resource table operations
	PhaseFastCall Phase = "fastcall" // trampoline generation
	PhaseRuntime  Phase = "runtime"  // event loop and realms
	PhaseConfig   Phase = "config"   // configuration loading
	PhaseEngine   Phase = "engine"   // guest engine binding
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindInvalidUTF8    Kind = "invalid_utf8"
	KindOverflow       Kind = "overflow"
	KindMissingArg     Kind = "missing_argument"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
	KindBadResourceID  Kind = "bad_resource_id"
	KindBadResource    Kind = "bad_resource"
	KindClosed         Kind = "closed"
	KindNotInitialized Kind = "not_initialized"
)

// Error is the structured error type used throughout the core
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	GoType    string
	GuestType string
	Detail    string
	Path      []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.GuestType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.GuestType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", guest type ")
			b.WriteString(e.GuestType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("guest type ")
			b.WriteString(e.GuestType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.GuestType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// GuestType sets the guest-side type name
func (b *Builder) GuestType(t string) *Builder {
	b.err.GuestType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Sentinels for errors.Is matching regardless of phase.
var (
	ErrBadResourceID = &Error{Kind: KindBadResourceID}
	ErrBadResource   = &Error{Kind: KindBadResource}
	ErrClosed        = &Error{Kind: KindClosed}
)

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, guestType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindTypeMismatch,
		Path:      path,
		GoType:    goType,
		GuestType: guestType,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// MissingArg creates an error for an argument the guest did not supply
func MissingArg(path []string, index int) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindMissingArg,
		Path:   path,
		Detail: fmt.Sprintf("argument %d not provided", index),
		Value:  index,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:     phase,
		Kind:      KindOverflow,
		Path:      path,
		GuestType: targetType,
		Detail:    fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:     value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// BadResourceID creates a lookup error for an unknown handle
func BadResourceID(id uint32) *Error {
	return &Error{
		Phase:  PhaseResource,
		Kind:   KindBadResourceID,
		Detail: fmt.Sprintf("bad resource ID %d", id),
		Value:  id,
	}
}

// BadResource creates a lookup error for a handle of the wrong type
func BadResource(id uint32, name, want string) *Error {
	return &Error{
		Phase:  PhaseResource,
		Kind:   KindBadResource,
		GoType: want,
		Detail: fmt.Sprintf("resource %d is %q", id, name),
		Value:  id,
	}
}

// Closed creates a lifecycle error for an operation on a closed resource
func Closed(name string) *Error {
	return &Error{
		Phase:  PhaseResource,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", name),
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register op %s", name),
		Cause:  cause,
	}
}
