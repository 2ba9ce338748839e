package op

import (
	"go.uber.org/zap"

	"github.com/wippyai/opcore/internal/logging"
)

var pkgLogger logging.Holder

// Logger returns the op package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	return pkgLogger.Get()
}

// SetLogger configures the op package's logger.
// This must be called before any ops are registered.
func SetLogger(l *zap.Logger) {
	pkgLogger.Set(l)
}
