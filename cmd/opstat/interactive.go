package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const roundInterval = 250 * time.Millisecond

type interactiveModel struct {
	ctx      context.Context
	inflight *sync.WaitGroup

	w       *workload
	spinner spinner.Model
	input   textinput.Model
	editing bool

	calls   int
	rounds  int
	last    time.Duration
	paused  bool
	running bool
	err     error
}

type roundMsg struct {
	err error
	dur time.Duration
}

type nextRoundMsg struct{}

func newInteractiveModel(ctx context.Context, w *workload, wg *sync.WaitGroup) *interactiveModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	ti := textinput.New()
	ti.Prompt = "calls per round: "
	ti.Placeholder = strconv.Itoa(w.calls)
	ti.Width = 12

	return &interactiveModel{
		ctx:      ctx,
		inflight: wg,
		w:        w,
		spinner:  sp,
		input:    ti,
		calls:    w.calls,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRound())
}

// startRound runs one workload round off the update goroutine. Only one
// round is in flight at a time, so the runtime is never used concurrently.
func (m *interactiveModel) startRound() tea.Cmd {
	m.running = true
	m.inflight.Add(1)
	calls, w, ctx := m.calls, m.w, m.ctx
	return func() tea.Msg {
		defer m.inflight.Done()
		w.calls = calls
		start := time.Now()
		err := w.round(ctx)
		return roundMsg{err: err, dur: time.Since(start)}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
			if !m.paused && !m.running {
				return m, m.startRound()
			}
		case "c":
			m.editing = true
			m.input.SetValue("")
			return m, m.input.Focus()
		}

	case roundMsg:
		m.running = false
		m.last = msg.dur
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.rounds++
		if !m.paused {
			return m, tea.Tick(roundInterval, func(time.Time) tea.Msg { return nextRoundMsg{} })
		}

	case nextRoundMsg:
		if !m.paused && !m.running {
			return m, m.startRound()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if n, err := strconv.Atoi(strings.TrimSpace(m.input.Value())); err == nil && n >= 0 {
			m.calls = n
			m.input.Placeholder = strconv.Itoa(n)
		}
		fallthrough
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("opstat"))
	status := "paused"
	switch {
	case m.err != nil:
		status = "stopped"
	case m.running:
		status = m.spinner.View() + " running"
	case !m.paused:
		status = "waiting"
	}
	fmt.Fprintf(&b, " %s  round %d  last %s  realms %d  calls %d\n\n",
		status, m.rounds, m.last.Round(time.Microsecond), m.w.rt.Realms(), m.calls)

	b.WriteString(metricsTable(m.w.rt.Dispatcher().Decls(), m.w.rt.Metrics()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "resolved %d  failed %d\n\n", m.w.res.resolved.Load(), m.w.res.failed.Load())

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}
	if m.editing {
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter apply • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("space pause/resume • c set calls • q quit"))
	}
	return b.String()
}

func runInteractive(w *workload) error {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	p := tea.NewProgram(newInteractiveModel(ctx, w, &wg), tea.WithAltScreen())
	_, err := p.Run()

	cancel()
	wg.Wait()
	return err
}
