package engine

import (
	"context"
	"strconv"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/op"
)

// MemoryResolver delivers async completions to guest instances by calling
// their ResolveExport with (promise, status, ptr, len). The payload is the
// CBOR encoding of the value or of the error, allocated with CabiRealloc.
type MemoryResolver struct {
	ctx context.Context

	mu     sync.Mutex
	guests map[int]api.Module
}

// NewMemoryResolver creates a resolver calling guests with ctx.
func NewMemoryResolver(ctx context.Context) *MemoryResolver {
	return &MemoryResolver{
		ctx:    ctx,
		guests: make(map[int]api.Module),
	}
}

// Attach routes completions of realm to mod. The module must export
// ResolveExport, CabiRealloc and its memory.
func (m *MemoryResolver) Attach(realm int, mod api.Module) error {
	defs := mod.ExportedFunctionDefinitions()
	for _, name := range []string{ResolveExport, CabiRealloc} {
		if _, ok := defs[name]; !ok {
			return errors.NotFound(errors.PhaseEngine, "export", name)
		}
	}
	if mod.Memory() == nil {
		return errors.NotInitialized(errors.PhaseEngine, "guest memory")
	}

	m.mu.Lock()
	m.guests[realm] = mod
	m.mu.Unlock()
	return nil
}

// Detach stops delivery to realm.
func (m *MemoryResolver) Detach(realm int) {
	m.mu.Lock()
	delete(m.guests, realm)
	m.mu.Unlock()
}

// Resolve implements runtime.Resolver.
func (m *MemoryResolver) Resolve(c op.Completion) error {
	m.mu.Lock()
	mod := m.guests[c.Realm]
	m.mu.Unlock()
	if mod == nil {
		return errors.NotFound(errors.PhaseEngine, "guest for realm", strconv.Itoa(c.Realm))
	}

	status := uint64(StatusOK)
	v := c.Value
	if c.Err != nil {
		status = StatusThrown
		v = op.Object(c.Err)
	}

	ptr, n, err := writePayload(m.ctx, mod, v)
	if err != nil {
		return err
	}
	if _, err := mod.ExportedFunction(ResolveExport).Call(m.ctx,
		api.EncodeI32(int32(c.Promise)), status, uint64(ptr), uint64(n)); err != nil {
		return errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, ResolveExport)
	}

	Logger().Debug("promise resolved",
		zap.Int("realm", c.Realm),
		zap.Int32("promise", int32(c.Promise)),
		zap.Uint64("status", status),
		zap.Uint32("len", n))
	return nil
}
