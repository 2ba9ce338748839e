package resource

import (
	"go.uber.org/zap"

	"github.com/wippyai/opcore/internal/logging"
)

var pkgLogger logging.Holder

// Logger returns the resource package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	return pkgLogger.Get()
}

// SetLogger configures the resource package's logger.
// This must be called before any table operations.
func SetLogger(l *zap.Logger) {
	pkgLogger.Set(l)
}
