package fastcall

import (
	"sync"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
	"go.uber.org/zap"

	"github.com/wippyai/opcore/errors"
)

var intRegs = [numIntRegs]int16{
	x86.REG_DI, x86.REG_SI, x86.REG_DX, x86.REG_CX, x86.REG_R8, x86.REG_R9,
}

// scratch holds stack-to-stack moves. R11 is caller-saved and never
// carries an argument.
const scratch = x86.REG_R11

// Trampoline is generated linkage for one fast op.
type Trampoline struct {
	Sig    Signature
	Target uintptr
	Moves  []Move
	Code   []byte

	mu     sync.Mutex
	mapped []byte
}

// Generate assembles a trampoline for sig that tail-jumps to target.
func Generate(sig Signature, target uintptr) (*Trampoline, error) {
	moves, err := Plan(sig)
	if err != nil {
		return nil, err
	}

	b, err := asm.NewBuilder("amd64", 64)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseFastCall, errors.KindUnsupported, err, "create assembler")
	}

	for _, m := range moves {
		emitMove(b, m)
	}

	// MOVQ $target, AX; JMP AX
	load := b.NewProg()
	load.As = x86.AMOVQ
	load.From.Type = obj.TYPE_CONST
	load.From.Offset = int64(target)
	load.To.Type = obj.TYPE_REG
	load.To.Reg = x86.REG_AX
	b.AddInstruction(load)

	jmp := b.NewProg()
	jmp.As = obj.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = x86.REG_AX
	b.AddInstruction(jmp)

	code := b.Assemble()
	Logger().Debug("trampoline generated",
		zap.Stringer("sig", sig),
		zap.Int("moves", len(moves)),
		zap.Int("bytes", len(code)),
	)
	return &Trampoline{Sig: sig, Target: target, Moves: moves, Code: code}, nil
}

func emitMove(b *asm.Builder, m Move) {
	switch {
	case m.From.Kind == LocStack && m.To.Kind == LocStack:
		emitMOVQ(b, stackAddr(m.From), regAddr(scratch))
		emitMOVQ(b, regAddr(scratch), stackAddr(m.To))
	case m.From.Kind == LocFloat || m.To.Kind == LocFloat:
		// Floats keep their XMM register when only integers are removed.
		panic("fastcall: unexpected XMM relocation " + m.String())
	default:
		emitMOVQ(b, locAddr(m.From), locAddr(m.To))
	}
}

func emitMOVQ(b *asm.Builder, from, to obj.Addr) {
	p := b.NewProg()
	p.As = x86.AMOVQ
	p.From = from
	p.To = to
	b.AddInstruction(p)
}

func locAddr(l Loc) obj.Addr {
	if l.Kind == LocStack {
		return stackAddr(l)
	}
	return regAddr(intRegs[l.Index])
}

func regAddr(reg int16) obj.Addr {
	return obj.Addr{Type: obj.TYPE_REG, Reg: reg}
}

func stackAddr(l Loc) obj.Addr {
	return obj.Addr{Type: obj.TYPE_MEM, Reg: x86.REG_SP, Offset: stackOffset(l.Index)}
}

// Map copies the code into executable memory.
func (t *Trampoline) Map() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mapped != nil {
		return nil
	}
	seg, err := mapCode(t.Code)
	if err != nil {
		return err
	}
	t.mapped = seg
	return nil
}

// Mapped reports whether the code has been made executable.
func (t *Trampoline) Mapped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapped != nil
}

// Unmap releases the executable mapping.
func (t *Trampoline) Unmap() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mapped == nil {
		return nil
	}
	err := unmapCode(t.mapped)
	t.mapped = nil
	return err
}
