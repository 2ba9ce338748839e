package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/opcore/errors"
)

// Config holds configuration for engine creation.
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32

	// EnableThreads enables the WebAssembly threads proposal.
	EnableThreads bool

	// WASI instantiates wasi_snapshot_preview1 for guests that import it.
	WASI bool
}

// Engine owns a wazero runtime into which op runtimes are bound with
// Bind and guests are instantiated.
type Engine struct {
	runtime wazero.Runtime
}

// New creates an engine. A nil cfg uses defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	if cfg.EnableThreads {
		runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
	}
	if cfg.WASI {
		if _, err := instantiateWASI(ctx, e.runtime); err != nil {
			_ = e.runtime.Close(ctx)
			return nil, errors.Wrap(errors.PhaseEngine, errors.KindRegistration, err, "instantiate wasi")
		}
	}
	return e, nil
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime { return e.runtime }

// Instantiate compiles and instantiates a guest module under name.
func (e *Engine) Instantiate(ctx context.Context, wasm []byte, name string) (api.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidData, err, "compile")
	}
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseEngine, errors.KindInvalidInput, err, "instantiate "+name)
	}
	Logger().Debug("guest instantiated", zap.String("name", name))
	return mod, nil
}

// Close releases the wazero runtime and every module in it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
