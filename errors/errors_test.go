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
				Phase:  PhaseBuild,
				Kind:   KindTerminated,
				Path:   []string{"fn_main", "bb3"},
				Detail: "cannot append",
			},
			contains: []string{"[build]", "terminated", "fn_main.bb3", "cannot append"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseType,
				Kind:  KindUnknownName,
			},
			contains: []string{"[type]", "unknown_name"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLink,
				Kind:   KindDynamicLoaderFailed,
				Detail: "dlopen failed",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[link]", "dynamic_loader_failed", "dlopen failed", "caused by", "underlying error"},
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
		Phase: PhaseLower,
		Kind:  KindBackendBuildFailed,
		Cause: cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestError_Is(t *testing.T) {
	a := &Error{Phase: PhaseBuild, Kind: KindTerminated}
	b := &Error{Phase: PhaseBuild, Kind: KindTerminated, Detail: "different detail"}
	c := &Error{Phase: PhaseType, Kind: KindTerminated}

	if !a.Is(b) {
		t.Error("expected a.Is(b) to be true (same phase+kind)")
	}
	if a.Is(c) {
		t.Error("expected a.Is(c) to be false (different phase)")
	}
	if a.Is(errors.New("plain error")) {
		t.Error("expected a.Is(plain error) to be false")
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseBuild, KindUnterminatedSwitch).
		Path("fn_loop", "bb1").
		Detail("block %d not terminated", 1).
		Cause(errors.New("inner")).
		Build()

	if err.Phase != PhaseBuild {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseBuild)
	}
	if err.Kind != KindUnterminatedSwitch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindUnterminatedSwitch)
	}
	if err.Detail != "block 1 not terminated" {
		t.Errorf("Detail = %q, want %q", err.Detail, "block 1 not terminated")
	}
	if err.Cause == nil {
		t.Error("expected Cause to be set")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"DuplicateName", DuplicateName(PhaseType, "Tuple"), KindDuplicateName},
		{"UnknownName", UnknownName(PhaseType, "HashTable"), KindUnknownName},
		{"UntypedFragment", UntypedFragment("ptr_add"), KindUntypedFragment},
		{"Terminated", Terminated("fn_main", 3), KindTerminated},
		{"UnterminatedSwitch", UnterminatedSwitch("fn_main", 2), KindUnterminatedSwitch},
		{"InvalidConstantDependency", InvalidConstantDependency("cycle detected"), KindInvalidConstantDependency},
		{"BackendBuildFailed", BackendBuildFailed("asm", errors.New("x")), KindBackendBuildFailed},
		{"DynamicLoaderFailed", DynamicLoaderFailed("/tmp/q.so", errors.New("x")), KindDynamicLoaderFailed},
		{"OutputPipelineHasSuccessor", OutputPipelineHasSuccessor(2), KindOutputPipelineHasSuccessor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("expected non-empty error message")
			}
		})
	}
}

func containsSubstring(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}
