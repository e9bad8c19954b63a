package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/compile"
	"github.com/kushdb/khir/driver"
)

func main() {
	var (
		programName  = flag.String("program", "", "Demo scenario to run (see -list)")
		backendName  = flag.String("backend", "asm", "Code generator: asm or llvm")
		regAllocName = flag.String("reg-alloc", "stack-spill", "Register allocator: stack-spill or linear-scan")
		pipelineName = flag.String("pipeline-mode", "static", "Pipeline dispatch: static or adaptive")
		argsStr      = flag.String("args", "", "Comma-separated scenario arguments, in declaration order")
		list         = flag.Bool("list", false, "List demo scenarios and exit")
		interactive  = flag.Bool("i", false, "Interactive mode (default when stdout is a terminal)")
	)
	flag.Parse()

	if *list {
		printScenarioList()
		return
	}

	wantInteractive := *interactive || (*programName == "" && term.IsTerminal(int(os.Stdout.Fd())))
	if wantInteractive {
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *programName == "" {
		fmt.Fprintln(os.Stderr, "Usage: khirc -program <name> [-backend asm|llvm] [-reg-alloc stack-spill|linear-scan] [-pipeline-mode static|adaptive]")
		fmt.Fprintln(os.Stderr, "       khirc -list")
		os.Exit(1)
	}

	cfg, err := parseConfig(*backendName, *regAllocName, *pipelineName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var args []string
	if *argsStr != "" {
		args = strings.Split(*argsStr, ",")
	}
	if err := runBatch(*programName, cfg, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printScenarioList() {
	fmt.Println("Available scenarios:")
	for _, s := range scenarios {
		fmt.Printf("  %-18s %s\n", s.name, s.description)
	}
}

func parseConfig(backendName, regAllocName, pipelineName string) (compile.Config, error) {
	cfg := compile.DefaultConfig()

	switch backendName {
	case "asm":
		cfg.Backend = compile.BackendAsm
	case "llvm":
		cfg.Backend = compile.BackendOptimizing
	default:
		return cfg, fmt.Errorf("unknown backend %q (want asm or llvm)", backendName)
	}

	switch regAllocName {
	case "stack-spill":
		cfg.RegAllocImpl = asm.StackSpill
	case "linear-scan":
		cfg.RegAllocImpl = asm.LinearScan
	default:
		return cfg, fmt.Errorf("unknown reg-alloc %q (want stack-spill or linear-scan)", regAllocName)
	}

	switch pipelineName {
	case "static":
		cfg.PipelineMode = driver.ModeStatic
	case "adaptive":
		cfg.PipelineMode = driver.ModeAdaptive
	default:
		return cfg, fmt.Errorf("unknown pipeline-mode %q (want static or adaptive)", pipelineName)
	}

	return cfg, nil
}

// runBatch is the non-interactive path, used whenever stdout is not a
// terminal (piped output, CI, scripting) — the same TTY-detection
// fallback the teacher's CLI applies to WASI's terminal-stdout host.
func runBatch(programName string, cfg compile.Config, args []string) error {
	s := findScenario(programName)
	if s == nil {
		return fmt.Errorf("unknown scenario %q; run -list to see available scenarios", programName)
	}

	ctx := context.Background()

	if s.pipeline != nil {
		return runPipelineScenario(ctx, cfg, func(line string) { fmt.Println(line) })
	}

	fmt.Printf("backend=%s reg-alloc=%s pipeline-mode=%s\n", cfg.Backend, regAllocLabel(cfg.RegAllocImpl), pipelineModeName(cfg.PipelineMode))
	result, err := translateAndRun(ctx, s, cfg, args)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

func findScenario(name string) *scenario {
	for i := range scenarios {
		if scenarios[i].name == name {
			return &scenarios[i]
		}
	}
	return nil
}

func regAllocLabel(s asm.Strategy) string {
	return string(s)
}

func pipelineModeName(m driver.PipelineMode) string {
	if m == driver.ModeAdaptive {
		return "adaptive"
	}
	return "static"
}

// translateAndRun builds s's program, translates mainName through cfg's
// backend, and invokes the resulting entry point, returning a one-line
// human-readable result.
func translateAndRun(ctx context.Context, s *scenario, cfg compile.Config, args []string) (string, error) {
	tm := newTypeManager()
	prog, mainName := s.build(tm)
	cprog := compile.NewProgram(prog)

	result, err := cprog.Translate(ctx, mainName, cfg)
	if err != nil {
		return "", fmt.Errorf("translate %s: %w", s.name, err)
	}
	if result.Buffer != nil {
		defer result.Buffer.Release()
	}

	return s.run(ctx, result.EntryAddr, args)
}

// runPipelineScenario drives the pipeline-dispatch demo graph through
// driver.Execute and prints the per-morsel trace each recordingOps
// pipeline collected.
func runPipelineScenario(ctx context.Context, cfg compile.Config, emit func(string)) error {
	g, src, mid, sink := buildPipelineDemo()
	if err := driver.Execute(ctx, g, cfg.PipelineMode); err != nil {
		return fmt.Errorf("execute pipeline graph: %w", err)
	}

	emit(fmt.Sprintf("pipeline-mode=%s", pipelineModeName(cfg.PipelineMode)))
	emit(fmt.Sprintf("source:  init=%d reset=%d size=%d", src.inits, src.resets, src.size))
	emit(fmt.Sprintf("filter:  init=%d reset=%d morsels=%d", mid.inits, mid.resets, len(mid.ranges)))
	for i, r := range mid.ranges {
		emit(fmt.Sprintf("  morsel %d: [%d, %d) on %s", i, r[0], r[1], driver.Backend(r[2])))
	}
	emit(fmt.Sprintf("sink:    init=%d reset=%d", sink.inits, sink.resets))
	return nil
}
