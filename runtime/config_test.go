package runtime

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/opcore/errors"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    Config
		wantErr bool
	}{
		{
			name: "empty uses defaults",
			text: "",
			want: DefaultConfig(),
		},
		{
			name: "overrides",
			text: "slot_size = 128\nrealms = 3\nfast_calls = true\nlog_level = \"warn\"\n",
			want: Config{SlotSize: 128, ArenaCapacity: 64, Realms: 3, FastCalls: true, LogLevel: "warn"},
		},
		{name: "slot too small", text: "slot_size = 8", wantErr: true},
		{name: "no realms", text: "realms = 0", wantErr: true},
		{name: "unknown key", text: "slots = 1", wantErr: true},
		{name: "bad level", text: "log_level = \"loud\"", wantErr: true},
		{name: "bad toml", text: "slot_size = ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfig(tt.text)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				var e *errors.Error
				if !stderrors.As(err, &e) || e.Phase != errors.PhaseConfig {
					t.Fatalf("error = %v, want config phase", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConfig: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opcore.toml")
	if err := os.WriteFile(path, []byte("arena_capacity = 8\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil || cfg.ArenaCapacity != 8 || cfg.SlotSize != DefaultConfig().SlotSize {
		t.Fatalf("LoadConfig = %+v, %v", cfg, err)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("missing file should fail")
	}
}
