package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kushdb/khir/asm"
	"github.com/kushdb/khir/compile"
	"github.com/kushdb/khir/driver"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectScenario modelState = iota
	stateSelectConfig
	stateInputArgs
	stateShowResult
)

// configField names one of the three options spec.md §6.1 exposes, in the
// order the interactive model lets the user cycle them.
type configField int

const (
	fieldBackend configField = iota
	fieldRegAlloc
	fieldPipelineMode
	numConfigFields
)

var backendChoices = []compile.Backend{compile.BackendAsm, compile.BackendOptimizing}
var regAllocChoices = []asm.Strategy{asm.StackSpill, asm.LinearScan}
var pipelineModeChoices = []driver.PipelineMode{driver.ModeStatic, driver.ModeAdaptive}

type interactiveModel struct {
	state       modelState
	selected    int // scenario index
	focusField  configField
	backendIdx  int
	regAllocIdx int
	pipelineIdx int
	inputs      []textinput.Model
	inputFocus  int
	resultLines []string
	err         error
}

func newInteractiveModel() *interactiveModel {
	return &interactiveModel{state: stateSelectScenario}
}

func (m *interactiveModel) Init() tea.Cmd { return nil }

type runResultMsg struct {
	lines []string
	err   error
}

func (m *interactiveModel) currentConfig() compile.Config {
	return compile.Config{
		Backend:      backendChoices[m.backendIdx],
		RegAllocImpl: regAllocChoices[m.regAllocIdx],
		PipelineMode: pipelineModeChoices[m.pipelineIdx],
	}
}

// prepareInputs builds one textinput.Model per parameter the selected
// scenario declares, pre-filled with its default and the first one
// focused — mirroring the teacher's own prepareInputs() for WASI export
// arguments in cmd/run/interactive.go.
func (m *interactiveModel) prepareInputs() {
	params := scenarios[m.selected].params
	m.inputs = make([]textinput.Model, len(params))
	m.inputFocus = 0
	for i, p := range params {
		ti := textinput.New()
		ti.Placeholder = p.typeHint
		ti.Prompt = p.name + ": "
		ti.SetValue(p.defaultVal)
		ti.CharLimit = 64
		ti.Width = 24
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
}

func (m *interactiveModel) runSelected() tea.Msg {
	ctx := context.Background()
	s := &scenarios[m.selected]
	cfg := m.currentConfig()

	if s.pipeline != nil {
		var lines []string
		err := runPipelineScenario(ctx, cfg, func(line string) { lines = append(lines, line) })
		return runResultMsg{lines: lines, err: err}
	}

	args := make([]string, len(m.inputs))
	for i := range m.inputs {
		args[i] = m.inputs[i].Value()
	}

	out, err := translateAndRun(ctx, s, cfg, args)
	if err != nil {
		return runResultMsg{err: err}
	}
	return runResultMsg{lines: []string{out}}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			switch m.state {
			case stateSelectScenario:
				if m.selected > 0 {
					m.selected--
				}
			case stateSelectConfig:
				if m.focusField > 0 {
					m.focusField--
				}
			}

		case "down", "j":
			switch m.state {
			case stateSelectScenario:
				if m.selected < len(scenarios)-1 {
					m.selected++
				}
			case stateSelectConfig:
				if m.focusField < numConfigFields-1 {
					m.focusField++
				}
			}

		case "left", "h":
			if m.state == stateSelectConfig {
				m.cycleField(-1)
			}

		case "right", "l":
			if m.state == stateSelectConfig {
				m.cycleField(1)
			}

		case "enter":
			switch m.state {
			case stateSelectScenario:
				m.state = stateSelectConfig
				m.focusField = fieldBackend
			case stateSelectConfig:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.runSelected
				}
				m.state = stateInputArgs
			case stateInputArgs:
				return m, m.runSelected
			case stateShowResult:
				m.state = stateSelectScenario
				m.resultLines = nil
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.inputFocus].Blur()
				m.inputFocus = (m.inputFocus + 1) % len(m.inputs)
				m.inputs[m.inputFocus].Focus()
			}

		case "esc":
			switch m.state {
			case stateSelectConfig:
				m.state = stateSelectScenario
			case stateInputArgs:
				m.state = stateSelectConfig
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectScenario
				m.resultLines = nil
				m.err = nil
			}
		}

	case runResultMsg:
		m.resultLines = msg.lines
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// cycleField advances the config option currently focused by delta
// positions, wrapping within its choice list.
func (m *interactiveModel) cycleField(delta int) {
	switch m.focusField {
	case fieldBackend:
		m.backendIdx = wrapIndex(m.backendIdx+delta, len(backendChoices))
	case fieldRegAlloc:
		m.regAllocIdx = wrapIndex(m.regAllocIdx+delta, len(regAllocChoices))
	case fieldPipelineMode:
		m.pipelineIdx = wrapIndex(m.pipelineIdx+delta, len(pipelineModeChoices))
	}
}

func wrapIndex(i, n int) int {
	return ((i % n) + n) % n
}

func (m *interactiveModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("khirc"))
	b.WriteString(" interactive\n\n")

	switch m.state {
	case stateSelectScenario:
		b.WriteString("Select a demo scenario:\n\n")
		for i, s := range scenarios {
			cursor := "  "
			line := funcStyle.Render(s.name) + " — " + s.description
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + line))
			} else {
				b.WriteString(cursor + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter configure • q quit"))

	case stateSelectConfig:
		s := scenarios[m.selected]
		b.WriteString(fmt.Sprintf("Configuring %s\n\n", funcStyle.Render(s.name)))
		m.writeField(&b, fieldBackend, "backend", string(backendChoices[m.backendIdx]))
		m.writeField(&b, fieldRegAlloc, "reg-alloc", string(regAllocChoices[m.regAllocIdx]))
		m.writeField(&b, fieldPipelineMode, "pipeline-mode", pipelineModeName(pipelineModeChoices[m.pipelineIdx]))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ field • ←/→ change • enter run • esc back"))

	case stateInputArgs:
		s := scenarios[m.selected]
		b.WriteString(fmt.Sprintf("Arguments for %s\n\n", funcStyle.Render(s.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(s.params[i].typeHint))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter run • esc back"))

	case stateShowResult:
		s := scenarios[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(s.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			for _, line := range m.resultLines {
				b.WriteString(resultStyle.Render(line))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter back to scenarios • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) writeField(b *strings.Builder, f configField, label, value string) {
	line := label + ": " + typeStyle.Render(value)
	if f == m.focusField {
		b.WriteString(selectedStyle.Render("> " + line))
	} else {
		b.WriteString("  " + line)
	}
	b.WriteString("\n")
}

func runInteractive() error {
	p := tea.NewProgram(newInteractiveModel(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
