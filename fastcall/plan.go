package fastcall

import "fmt"

// LocKind identifies where an argument lives at call time.
type LocKind uint8

const (
	LocInt LocKind = iota
	LocFloat
	LocStack
)

// Loc is an argument location: an integer register index, an XMM register
// index or a stack slot counted from the first argument slot above the
// return address.
type Loc struct {
	Kind  LocKind
	Index int
}

var intRegNames = [...]string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

const (
	numIntRegs   = len(intRegNames)
	numFloatRegs = 8
)

func (l Loc) String() string {
	switch l.Kind {
	case LocInt:
		return intRegNames[l.Index]
	case LocFloat:
		return fmt.Sprintf("xmm%d", l.Index)
	default:
		return fmt.Sprintf("[rsp+%d]", stackOffset(l.Index))
	}
}

// stackOffset is the RSP-relative offset of a stack slot on entry, past
// the return address.
func stackOffset(slot int) int64 {
	return 8 + 8*int64(slot)
}

// Move relocates one argument.
type Move struct {
	Arg  int
	From Loc
	To   Loc
}

func (m Move) String() string {
	return fmt.Sprintf("arg%d: %s -> %s", m.Arg, m.From, m.To)
}

// assign lays out args per System V: integers fill the six integer
// registers, floats the eight XMM registers, and the rest take stack
// slots in argument order.
func assign(args []Type) []Loc {
	locs := make([]Loc, len(args))
	ints, floats, slots := 0, 0, 0
	for i, a := range args {
		switch {
		case a.IsFloat() && floats < numFloatRegs:
			locs[i] = Loc{Kind: LocFloat, Index: floats}
			floats++
		case !a.IsFloat() && ints < numIntRegs:
			locs[i] = Loc{Kind: LocInt, Index: ints}
			ints++
		default:
			locs[i] = Loc{Kind: LocStack, Index: slots}
			slots++
		}
	}
	return locs
}

// Plan computes the moves that turn an incoming call carrying the engine
// receiver as its first integer argument into a call of sig. Moves are
// ordered so every source is read before it is overwritten.
func Plan(sig Signature) ([]Move, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	incoming := assign(append([]Type{Pointer}, sig.Args...))[1:]
	outgoing := assign(sig.Args)

	var moves []Move
	for i := range sig.Args {
		if incoming[i] != outgoing[i] {
			moves = append(moves, Move{Arg: i, From: incoming[i], To: outgoing[i]})
		}
	}
	return moves, nil
}
