//go:build linux && amd64

package fastcall

import "syscall"

const mmapFlags = syscall.MAP_ANONYMOUS
