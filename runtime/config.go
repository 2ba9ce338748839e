package runtime

import (
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/opcore/erased"
	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/op"
)

// Config holds runtime configuration options.
type Config struct {
	// SlotSize is the erased capacity in bytes of every pending async call.
	// It must be at least op.MinSlotSize.
	SlotSize uint32 `toml:"slot_size"`

	// ArenaCapacity pre-sizes the pending-call arena.
	ArenaCapacity int `toml:"arena_capacity"`

	// Realms is the number of independent execution realms.
	Realms int `toml:"realms"`

	// FastCalls attaches trampoline linkage to fast-eligible ops. The
	// linkage is descriptive; fast calls from Go always go through
	// Realm.CallFast.
	FastCalls bool `toml:"fast_calls"`

	// LogLevel builds a production zap logger at the given level
	// ("debug", "info", "warn", "error"). Empty means no logging unless
	// WithLogger is used.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		SlotSize:      uint32(erased.DefaultCapacity),
		ArenaCapacity: 64,
		Realms:        1,
	}
}

// ParseConfig decodes TOML text over the defaults.
//
//	slot_size = 128
//	realms = 2
//	log_level = "debug"
func ParseConfig(text string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode toml")
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Config{}, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(undec[0].String()).
			Detail("unknown configuration key").
			Build()
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads and parses a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	return ParseConfig(string(data))
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if uintptr(c.SlotSize) < op.MinSlotSize {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("slot_size").
			Value(c.SlotSize).
			Detail("slot size below minimum %d", op.MinSlotSize).
			Build()
	}
	if c.Realms < 1 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("realms").
			Value(c.Realms).
			Detail("at least one realm is required").
			Build()
	}
	if c.ArenaCapacity < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("arena_capacity").
			Value(c.ArenaCapacity).
			Detail("negative arena capacity").
			Build()
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log_level")
		}
	}
	return nil
}

func (c Config) logger() (*zap.Logger, error) {
	if c.LogLevel == "" {
		return zap.NewNop(), nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
