//go:build darwin && amd64

package fastcall

import "syscall"

const mmapFlags = syscall.MAP_ANON
