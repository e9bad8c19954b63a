package main

import (
	"testing"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/compile"
	"github.com/kushdb/khir/driver"
)

func TestParseConfigAcceptsEveryDocumentedValue(t *testing.T) {
	cfg, err := parseConfig("llvm", "linear-scan", "adaptive")
	if err != nil {
		t.Fatalf("parseConfig failed: %v", err)
	}
	if cfg.Backend != compile.BackendOptimizing {
		t.Errorf("Backend = %v, want BackendOptimizing", cfg.Backend)
	}
	if cfg.RegAllocImpl != asm.LinearScan {
		t.Errorf("RegAllocImpl = %v, want LinearScan", cfg.RegAllocImpl)
	}
	if cfg.PipelineMode != driver.ModeAdaptive {
		t.Errorf("PipelineMode = %v, want ModeAdaptive", cfg.PipelineMode)
	}
}

func TestParseConfigRejectsUnknownBackend(t *testing.T) {
	if _, err := parseConfig("wasm", "stack-spill", "static"); err == nil {
		t.Error("expected an error for an unknown backend name")
	}
}

func TestParseConfigRejectsUnknownRegAlloc(t *testing.T) {
	if _, err := parseConfig("asm", "greedy", "static"); err == nil {
		t.Error("expected an error for an unknown reg-alloc name")
	}
}

func TestParseConfigRejectsUnknownPipelineMode(t *testing.T) {
	if _, err := parseConfig("asm", "stack-spill", "eager"); err == nil {
		t.Error("expected an error for an unknown pipeline-mode name")
	}
}

func TestFindScenarioLocatesEveryListedName(t *testing.T) {
	for _, s := range scenarios {
		if got := findScenario(s.name); got == nil || got.name != s.name {
			t.Errorf("findScenario(%q) = %v, want a match", s.name, got)
		}
	}
}

func TestFindScenarioReturnsNilForUnknownName(t *testing.T) {
	if findScenario("does-not-exist") != nil {
		t.Error("expected nil for an unregistered scenario name")
	}
}

func TestScenarioNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range scenarios {
		if seen[s.name] {
			t.Errorf("duplicate scenario name %q", s.name)
		}
		seen[s.name] = true
		if s.build == nil && s.pipeline == nil {
			t.Errorf("scenario %q has neither a build nor a pipeline constructor", s.name)
		}
	}
}

func TestWrapIndexStaysInRange(t *testing.T) {
	cases := []struct{ i, n, want int }{
		{0, 3, 0},
		{2, 3, 2},
		{3, 3, 0},
		{-1, 3, 2},
		{-4, 3, 2},
	}
	for _, c := range cases {
		if got := wrapIndex(c.i, c.n); got != c.want {
			t.Errorf("wrapIndex(%d, %d) = %d, want %d", c.i, c.n, got, c.want)
		}
	}
}

func TestPipelineModeNameRoundTrips(t *testing.T) {
	if pipelineModeName(driver.ModeStatic) != "static" {
		t.Error("expected ModeStatic to render as \"static\"")
	}
	if pipelineModeName(driver.ModeAdaptive) != "adaptive" {
		t.Error("expected ModeAdaptive to render as \"adaptive\"")
	}
}
