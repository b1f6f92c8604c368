// internal/tui/progress.go
// Package tui renders the terminal progress display shown while a run scores batches.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// stepMsg reports that batch step of total is about to run.
type stepMsg struct {
	step  int
	total int
}

// finishMsg ends the display.
type finishMsg struct{}

// model is the Bubble Tea model for the progress display.
type model struct {
	spinner spinner.Model
	title   string
	step    int
	total   int
	start   time.Time
	done    bool
}

func newModel(title string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return model{spinner: s, title: title, start: time.Now()}
}

// Init starts the spinner animation.
func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles progress and spinner messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.step = msg.step
		m.total = msg.total
		return m, nil
	case finishMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the spinner, a bar and the step counter.
func (m model) View() string {
	elapsed := time.Since(m.start).Truncate(time.Second)
	if m.done {
		return fmt.Sprintf("  %s %d/%d batches in %s\n", titleStyle.Render(m.title), m.step, m.total, elapsed)
	}
	return fmt.Sprintf("\n  %s %s %s %s %s\n",
		m.spinner.View(),
		titleStyle.Render(m.title),
		barStyle.Render(renderBar(m.step, m.total, barWidth)),
		fmt.Sprintf("%d/%d", m.step, m.total),
		dimStyle.Render(elapsed.String()),
	)
}

// renderBar draws a fixed-width bar filled in proportion to step/total.
func renderBar(step, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, step*width/total)
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// Progress drives a progress display running in its own goroutine.
type Progress struct {
	program *tea.Program
	done    chan struct{}
}

// Start launches the display on out. Input and signals are left to the caller.
func Start(out io.Writer, title string) *Progress {
	p := &Progress{
		program: tea.NewProgram(newModel(title),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
	return p
}

// Step reports the batch about to run. It matches runner.Progress.
func (p *Progress) Step(step, total int) {
	p.program.Send(stepMsg{step: step, total: total})
}

// Stop ends the display and waits for the terminal to be restored.
func (p *Progress) Stop() {
	p.program.Send(finishMsg{})
	<-p.done
}
