// Package errors provides structured error types for the op runtime core.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: argument path, Go/guest type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Path("op_read", "arg0").
//		GoType("uint32").
//		GuestType("string").
//		Detail("expected a number").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.BadResourceID(7)
//	err := errors.Closed("tcpStream")
//
// Errors raised by op bodies are classified into tagged OpError values by a
// Classifier. DefaultClassifier is an explicit table; runtimes may supply
// their own.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
