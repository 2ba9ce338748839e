package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/opcore/internal/logging"
)

var pkgLogger logging.Holder

// Logger returns the engine's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	return pkgLogger.Get()
}

// SetLogger configures the engine's logger.
func SetLogger(l *zap.Logger) {
	pkgLogger.Set(l)
}
