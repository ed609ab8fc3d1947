// Package progress implements the bubbletea model behind --progress: a live
// view of the current round's fan-out, updated as probe buckets and explored
// fields complete. When --progress is off, callers never call [New] and the
// oracle runs exactly as it would otherwise.
package progress

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/wraithsec/wraithql/log"
)

// maxLogLines bounds how many recent log entries the view keeps around.
const maxLogLines = 5

// Phase names the fan-out stage a [Reporter] update belongs to.
type Phase string

const (
	// PhaseValidFields counts the discovered fields explored in the current
	// round.
	PhaseValidFields Phase = "valid-fields"
	// PhaseArgs counts the argument typerefs resolved for the field being
	// explored.
	PhaseArgs Phase = "args"
	// PhaseTypeRef counts the field typerefs resolved in the current round.
	PhaseTypeRef Phase = "typeref"
)

// startMsg announces a phase's task count for the current round.
type startMsg struct {
	phase Phase
	label string
	total int
}

// stepMsg announces one completed task within a phase.
type stepMsg struct {
	phase Phase
}

// roundMsg announces the start of a new Clairvoyance round.
type roundMsg struct {
	typename string
}

// doneMsg announces the driver loop has finished.
type doneMsg struct{}

// logMsg carries one published log entry into the view's scrollback.
type logMsg string

// Reporter is the write side [New] returns for the oracle: StartPhase
// once per fan-out, Step once per completed task, NewRound once per
// Clairvoyance call, and Done when the outer loop terminates. A nil
// *Reporter is safe to call methods on (they no-op), so wiring it through
// internal/oracle costs callers nothing when --progress is off.
type Reporter struct {
	program *tea.Program
}

// StartPhase announces that phase is beginning with total tasks.
func (r *Reporter) StartPhase(phase Phase, label string, total int) {
	if r == nil || r.program == nil {
		return
	}

	r.program.Send(startMsg{phase: phase, label: label, total: total})
}

// Step announces one completed task within phase.
func (r *Reporter) Step(phase Phase) {
	if r == nil || r.program == nil {
		return
	}

	r.program.Send(stepMsg{phase: phase})
}

// NewRound announces the start of a round exploring typename.
func (r *Reporter) NewRound(typename string) {
	if r == nil || r.program == nil {
		return
	}

	r.program.Send(roundMsg{typename: typename})
}

// Done announces the outer loop has terminated, tearing down the view.
func (r *Reporter) Done() {
	if r == nil || r.program == nil {
		return
	}

	r.program.Send(doneMsg{})
}

// phaseState tracks one phase's progress bar within a round.
type phaseState struct {
	label string
	done  int
	total int
}

type model struct {
	typename string
	phases   map[Phase]*phaseState
	order    []Phase
	finished bool
	logs     []string
}

func newModel() *model {
	return &model{phases: map[Phase]*phaseState{}}
}

// New creates a bubbletea program rendering fan-out progress and returns the
// [Reporter] used to feed it updates together with the program itself.
// Run the returned program's event loop in its own goroutine; bubbletea
// takes over the terminal until a quit key is pressed or a doneMsg arrives.
func New() (*Reporter, *tea.Program) {
	p := tea.NewProgram(newModel())

	return &Reporter{program: p}, p
}

// Attach wires pub into p: every entry a [log.Publisher] fans out is
// forwarded into the running program and rendered in its scrollback, per
// the usage [log.Publisher] itself documents for Bubble Tea TUIs. The
// subscription is released when ctx is done.
func Attach(ctx context.Context, p *tea.Program, pub *log.Publisher) {
	sub := pub.Subscribe()

	go func() {
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-sub.C():
				if !ok {
					return
				}

				p.Send(logMsg(strings.TrimRight(string(entry), "\n")))
			}
		}
	}()
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case roundMsg:
		m.typename = msg.typename
		m.phases = map[Phase]*phaseState{}
		m.order = nil

	case startMsg:
		if _, ok := m.phases[msg.phase]; !ok {
			m.order = append(m.order, msg.phase)
		}

		m.phases[msg.phase] = &phaseState{label: msg.label, total: msg.total}

	case stepMsg:
		if ps, ok := m.phases[msg.phase]; ok {
			ps.done++
		}

	case doneMsg:
		m.finished = true

		return m, tea.Quit

	case logMsg:
		m.logs = append(m.logs, string(msg))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
	}

	return m, nil
}

func (m *model) View() tea.View {
	var b strings.Builder

	switch {
	case m.finished:
		fmt.Fprintln(&b, "done.")
	case m.typename == "":
		fmt.Fprintln(&b, "waiting for first round...")
	default:
		fmt.Fprintf(&b, "exploring %s\n", m.typename)

		for _, phase := range m.order {
			ps := m.phases[phase]
			if ps == nil {
				continue
			}

			fmt.Fprintf(&b, "  %-12s [%s] %d/%d\n", ps.label, bar(ps.done, ps.total), ps.done, ps.total)
		}
	}

	if len(m.logs) > 0 {
		fmt.Fprintln(&b)

		for _, line := range m.logs {
			fmt.Fprintln(&b, line)
		}
	}

	return tea.NewView(b.String())
}

func bar(done, total int) string {
	const width = 20

	if total <= 0 {
		return strings.Repeat("-", width)
	}

	filled := done * width / total
	if filled > width {
		filled = width
	}

	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}
