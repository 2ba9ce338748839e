package errors

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:     PhaseMarshal,
				Kind:      KindTypeMismatch,
				Path:      []string{"op_write", "arg1"},
				GoType:    "[]byte",
				GuestType: "number",
				Detail:    "cannot convert",
			},
			contains: []string{"[marshal]", "type_mismatch", "op_write.arg1", "[]byte", "number", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseEngine,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[engine]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindInvalidData,
				Detail: "loop stalled",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "invalid_data", "loop stalled", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !containsSubstring(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseMarshal,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	// Test with errors.Unwrap
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseMarshal,
		Kind:  KindTypeMismatch,
		Path:  []string{"op_foo"},
	}

	// Same phase and kind
	if !err.Is(&Error{Phase: PhaseMarshal, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}

	// Different phase
	if err.Is(&Error{Phase: PhaseDispatch, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}

	// Different kind
	if err.Is(&Error{Phase: PhaseMarshal, Kind: KindOverflow}) {
		t.Error("Is should not match different kind")
	}

	// Test with errors.Is
	target := &Error{Phase: PhaseMarshal, Kind: KindTypeMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMarshal, KindTypeMismatch).
		Path("op_read", "arg0").
		GoType("string").
		GuestType("u32").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "string", "int").
		Build()

	if err.Phase != PhaseMarshal {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseMarshal)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "op_read" || err.Path[1] != "arg0" {
		t.Errorf("Path = %v, want [op_read arg0]", err.Path)
	}
	if err.GoType != "string" {
		t.Errorf("GoType = %v, want 'string'", err.GoType)
	}
	if err.GuestType != "u32" {
		t.Errorf("GuestType = %v, want 'u32'", err.GuestType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected string, got int" {
		t.Errorf("Detail = %v, want 'expected string, got int'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseMarshal, []string{"arg0"}, "int32", "string")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if err.GoType != "int32" || err.GuestType != "string" {
			t.Errorf("GoType=%v GuestType=%v", err.GoType, err.GuestType)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		err := InvalidUTF8(PhaseMarshal, []string{"str"}, []byte{0xff, 0xfe})
		if err.Kind != KindInvalidUTF8 {
			t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidUTF8)
		}
	})

	t.Run("MissingArg", func(t *testing.T) {
		err := MissingArg([]string{"op_add"}, 1)
		if err.Kind != KindMissingArg || err.Phase != PhaseMarshal {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseEngine, []string{"memory"}, 10, 5)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != 10 {
			t.Errorf("Value = %v, want 10", err.Value)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseMarshal, []string{"val"}, 300, "u8")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
	})

	t.Run("BadResourceID", func(t *testing.T) {
		err := BadResourceID(7)
		if !errors.Is(err, ErrBadResourceID) {
			t.Error("expected errors.Is(err, ErrBadResourceID)")
		}
		if errors.Is(err, ErrBadResource) {
			t.Error("bad id must not match wrong-type sentinel")
		}
	})

	t.Run("Closed", func(t *testing.T) {
		err := Closed("fsFile")
		if !errors.Is(err, ErrClosed) {
			t.Error("expected errors.Is(err, ErrClosed)")
		}
		if !containsSubstring(err.Error(), "fsFile") {
			t.Errorf("message %q should name the resource", err.Error())
		}
	})
}

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		(len(s) > 0 && containsSubstringHelper(s, substr)))
}

func containsSubstringHelper(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
