package errors

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Class names produced by DefaultClassifier.
const (
	ClassError             = "Error"
	ClassNotFound          = "NotFound"
	ClassPermissionDenied  = "PermissionDenied"
	ClassAlreadyExists     = "AlreadyExists"
	ClassBadResource       = "BadResource"
	ClassTypeError         = "TypeError"
	ClassInterrupted       = "Interrupted"
	ClassTimedOut          = "TimedOut"
	ClassUnexpectedEOF     = "UnexpectedEof"
	ClassConnectionRefused = "ConnectionRefused"
	ClassConnectionReset   = "ConnectionReset"
	ClassBrokenPipe        = "BrokenPipe"
	ClassInvalidData       = "InvalidData"
)

// OpError is the tagged form of an error raised by an op body. It is what
// crosses the guest boundary, either as a returned value or as a thrown one.
type OpError struct {
	Class   string `cbor:"class"`
	Message string `cbor:"message"`
	Code    string `cbor:"code,omitempty"`
}

func (e *OpError) Error() string {
	if e.Code != "" {
		return e.Class + ": " + e.Message + " (" + e.Code + ")"
	}
	return e.Class + ": " + e.Message
}

// Coder is implemented by native errors carrying a machine-readable code.
type Coder interface {
	Code() string
}

// Classifier maps a native error to a stable class name.
type Classifier func(err error) string

// ToOpError tags err using classify. A nil classify uses DefaultClassifier.
// Errors that already are *OpError pass through unchanged.
func ToOpError(err error, classify Classifier) *OpError {
	if err == nil {
		return nil
	}
	var oe *OpError
	if stderrors.As(err, &oe) {
		return oe
	}
	if classify == nil {
		classify = DefaultClassifier
	}
	return &OpError{
		Class:   classify(err),
		Message: err.Error(),
		Code:    codeOf(err),
	}
}

type classRule struct {
	target error
	class  string
}

var classTable = []classRule{
	{ErrBadResourceID, ClassBadResource},
	{ErrBadResource, ClassBadResource},
	{ErrClosed, ClassBadResource},
	{&Error{Kind: KindTypeMismatch}, ClassTypeError},
	{&Error{Kind: KindOverflow}, ClassTypeError},
	{&Error{Kind: KindMissingArg}, ClassTypeError},
	{&Error{Kind: KindInvalidUTF8}, ClassInvalidData},
	{&Error{Kind: KindInvalidData}, ClassInvalidData},
	{os.ErrNotExist, ClassNotFound},
	{os.ErrPermission, ClassPermissionDenied},
	{os.ErrExist, ClassAlreadyExists},
	{context.Canceled, ClassInterrupted},
	{context.DeadlineExceeded, ClassTimedOut},
	{os.ErrDeadlineExceeded, ClassTimedOut},
	{io.ErrUnexpectedEOF, ClassUnexpectedEOF},
	{io.EOF, ClassUnexpectedEOF},
	{net.ErrClosed, ClassBadResource},
	{syscall.ECONNREFUSED, ClassConnectionRefused},
	{syscall.ECONNRESET, ClassConnectionReset},
	{syscall.EPIPE, ClassBrokenPipe},
}

// DefaultClassifier walks a fixed table in order; the first errors.Is match
// wins. Unmatched errors are ClassError.
func DefaultClassifier(err error) string {
	var oe *OpError
	if stderrors.As(err, &oe) {
		return oe.Class
	}
	for _, rule := range classTable {
		if stderrors.Is(err, rule.target) {
			return rule.class
		}
	}
	return ClassError
}

var errnoCodes = map[syscall.Errno]string{
	syscall.ENOENT:       "ENOENT",
	syscall.EACCES:       "EACCES",
	syscall.EEXIST:       "EEXIST",
	syscall.EPIPE:        "EPIPE",
	syscall.ECONNREFUSED: "ECONNREFUSED",
	syscall.ECONNRESET:   "ECONNRESET",
	syscall.EINVAL:       "EINVAL",
	syscall.EBADF:        "EBADF",
}

func codeOf(err error) string {
	var c Coder
	if stderrors.As(err, &c) {
		return c.Code()
	}
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		return errnoCodes[errno]
	}
	return ""
}
