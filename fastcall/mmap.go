//go:build (linux || darwin) && amd64

package fastcall

import "syscall"

// mapCode copies code into an executable region and returns the region.
func mapCode(code []byte) ([]byte, error) {
	seg, err := syscall.Mmap(
		-1,
		0,
		len(code),
		syscall.PROT_READ|syscall.PROT_WRITE|syscall.PROT_EXEC, syscall.MAP_PRIVATE|mmapFlags,
	)
	if err != nil {
		return nil, err
	}
	copy(seg, code)
	return seg, nil
}

func unmapCode(seg []byte) error {
	return syscall.Munmap(seg)
}
