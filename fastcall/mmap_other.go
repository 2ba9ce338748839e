//go:build !((linux || darwin) && amd64)

package fastcall

import (
	"runtime"

	"github.com/wippyai/opcore/errors"
)

func mapCode([]byte) ([]byte, error) {
	return nil, errors.Unsupported(errors.PhaseFastCall, "executable code on "+runtime.GOOS+"/"+runtime.GOARCH)
}

func unmapCode([]byte) error { return nil }
