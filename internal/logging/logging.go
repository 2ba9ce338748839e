// Package logging holds the package-level zap loggers used across opcore.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var nop = zap.NewNop()

// Holder is a replaceable logger. The zero value logs nothing.
type Holder struct {
	l atomic.Pointer[zap.Logger]
}

// Get returns the current logger.
func (h *Holder) Get() *zap.Logger {
	if l := h.l.Load(); l != nil {
		return l
	}
	return nop
}

// Set replaces the logger. A nil logger restores the no-op default.
func (h *Holder) Set(l *zap.Logger) {
	h.l.Store(l)
}
