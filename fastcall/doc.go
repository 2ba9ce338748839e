// Package fastcall describes fast-call signatures and generates System V
// AMD64 trampolines for them.
//
// An engine invokes a fast op as a native call whose first integer
// argument is the engine's receiver object. The trampoline drops that
// receiver by shifting every remaining integer argument down one position
// (RSI into RDI, RDX into RSI and so on, the first stacked integer into R9
// and later stack slots down one slot), leaves float arguments in their XMM
// registers and tail-jumps to the op's native entry point.
//
//	sig := fastcall.Signature{Args: []fastcall.Type{fastcall.I32, fastcall.I32}, Ret: fastcall.I32}
//	t, err := fastcall.Generate(sig, entry)
//	if err == nil {
//		err = t.Map()
//	}
//
// entry must be a native function following the System V convention, such
// as a cgo-exported C function. Go function entries use a different
// register assignment and must not be used as targets of mapped code.
//
// Generation is pure Go and works on any host. Mapping code executable is
// only available on linux and darwin amd64; elsewhere Map returns an
// Unsupported error and callers dispatch through the Go fast path or the
// slow path, which behave identically.
package fastcall
