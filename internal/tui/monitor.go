// Package tui is the terminal front-end of a running bridge: it shows the
// loop counters and lets the user step, pause, stop and push the robot.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/san-kum/simbridge/internal/bridge"
	"github.com/san-kum/simbridge/internal/driver"
	"github.com/san-kum/simbridge/internal/dynamo"
)

type state int

const (
	stateMonitor state = iota
	stateForce
	stateImpact
)

// form fields: the body, then the six wrench components.
var fieldNames = []string{"body", "tx", "ty", "tz", "fx", "fy", "fz"}

type Monitor struct {
	state  state
	flags  *driver.Flags
	target driver.Target
	feed   *Feed
	bodies []string

	stats   bridge.Stats
	last    dynamo.TickRecord
	hasLast bool
	history []float64
	status  string

	bodyCursor int
	cursor     int
	wrench     [6]float64
	editing    bool
	editBuf    string
	refresh    time.Duration
	width      int
	quitOnStop bool
}

// New builds the monitor. bodies are the names offered by the force and
// impact forms.
func New(flags *driver.Flags, target driver.Target, feed *Feed, bodies []string) *Monitor {
	return &Monitor{
		flags:      flags,
		target:     target,
		feed:       feed,
		bodies:     bodies,
		refresh:    100 * time.Millisecond,
		width:      80,
		quitOnStop: true,
	}
}

// Run shows the monitor until the user stops the simulation or ctx ends.
// Leaving the UI always stops the simulation.
func Run(ctx context.Context, flags *driver.Flags, target driver.Target, feed *Feed, bodies []string) error {
	defer flags.Stop()
	p := tea.NewProgram(New(flags, target, feed, bodies), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "terminal ui")
	}
	return nil
}

type tickMsg time.Time

func (m *Monitor) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Monitor) Init() tea.Cmd { return m.tick() }

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		m.poll()
		if m.flags.Done() && m.quitOnStop {
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Monitor) poll() {
	m.stats = m.target.Stats()
	if m.feed != nil {
		m.last, m.hasLast = m.feed.Last()
		m.history = m.feed.History()
	}
}

func (m *Monitor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.flags.Stop()
		return m, tea.Quit
	}
	switch m.state {
	case stateForce, stateImpact:
		return m, m.formKey(msg)
	}
	return m, m.monitorKey(msg)
}

func (m *Monitor) monitorKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		m.flags.Stop()
		m.status = "stopping"
		return tea.Quit
	case "n", " ":
		m.flags.NextStep()
		m.status = "next"
	case "p":
		m.flags.SetStepByStep(false)
		m.flags.Play()
		m.status = "playing"
	case "s":
		if m.flags.ToggleStepByStep() {
			m.status = "step-by-step on"
		} else {
			m.status = "step-by-step off"
		}
	case "f", "i":
		if len(m.bodies) == 0 {
			m.status = "no body accepts forces"
			return nil
		}
		m.state = stateForce
		if msg.String() == "i" {
			m.state = stateImpact
		}
		m.cursor = 0
		m.wrench = [6]float64{}
	case "r":
		if len(m.bodies) == 0 {
			return nil
		}
		body := m.bodies[m.bodyCursor]
		if m.target.RemoveExternalForce(body) {
			m.status = "removed force on " + body
		} else {
			m.status = "no force on " + body
		}
	}
	return nil
}

func (m *Monitor) formKey(msg tea.KeyMsg) tea.Cmd {
	if m.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(m.editBuf, 64); err == nil {
				m.wrench[m.cursor-1] = v
			} else {
				m.status = "not a number: " + m.editBuf
			}
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 {
				c := s[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == 'e' {
					m.editBuf += s
				}
			}
		}
		return nil
	}

	switch msg.String() {
	case "esc", "q":
		m.state = stateMonitor
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(fieldNames)-1 {
			m.cursor++
		}
	case "left", "h":
		m.adjust(-1)
	case "right", "l":
		m.adjust(1)
	case "enter":
		if m.cursor > 0 {
			m.editing = true
			m.editBuf = strconv.FormatFloat(m.wrench[m.cursor-1], 'g', -1, 64)
		}
	case "a":
		m.apply()
		m.state = stateMonitor
	}
	return nil
}

func (m *Monitor) adjust(delta int) {
	if m.cursor == 0 {
		n := len(m.bodies)
		m.bodyCursor = ((m.bodyCursor+delta)%n + n) % n
		return
	}
	m.wrench[m.cursor-1] += float64(delta)
}

func (m *Monitor) apply() {
	body := m.bodies[m.bodyCursor]
	w, _ := dynamo.WrenchFromSlice(m.wrench[:])
	if m.state == stateImpact {
		m.target.ApplyImpact(body, w)
		m.status = fmt.Sprintf("impact on %s", body)
		return
	}
	m.target.SetExternalForce(body, w)
	m.status = fmt.Sprintf("force on %s", body)
}

func (m *Monitor) View() string {
	switch m.state {
	case stateForce:
		return m.viewForm("external force")
	case stateImpact:
		return m.viewForm("impact")
	}
	return m.viewMonitor()
}

func (m *Monitor) viewMonitor() string {
	var b strings.Builder
	st := m.stats

	icon, label := green.Render("●"), green.Render(st.State.String())
	switch {
	case m.flags.Done() || st.State == bridge.Stopped:
		icon, label = red.Render("■"), red.Render("stopped")
	case st.State == bridge.StepPaused:
		icon, label = yellow.Render("○"), yellow.Render(st.State.String())
	}
	step := dim.Render("step-by-step off")
	if m.flags.StepByStep() {
		step = magenta.Render("step-by-step on")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s  %s\n", icon, cyan.Render("simbridge"), label, step))
	b.WriteString(dimmer.Render("   "+strings.Repeat("─", 44)) + "\n")

	rows := [][2]string{
		{"sim time", fmt.Sprintf("%.3fs", st.SimTime)},
		{"iteration", strconv.FormatUint(st.Iteration, 10)},
		{"control ticks", fmt.Sprintf("%d (frameskip %d)", st.ControlTicks, st.Frameskip)},
		{"actuations", strconv.FormatUint(st.Actuations, 10)},
		{"missed steps", strconv.FormatUint(st.MissedSteps, 10)},
		{"concurrent", strconv.FormatUint(st.ConcurrentAdvances, 10)},
	}
	for _, r := range rows {
		b.WriteString("   " + dim.Render(fmt.Sprintf("%-14s", r[0])) + white.Render(r[1]) + "\n")
	}

	if m.hasLast {
		b.WriteString("\n   " + dim.Render(fmt.Sprintf("%-14s", "encoders")) + white.Render(formatVec(m.last.Encoders, 4)) + "\n")
		if m.last.Actuated {
			b.WriteString("   " + dim.Render(fmt.Sprintf("%-14s", m.last.Mode.String())) + white.Render(formatVec(m.last.Commands, 4)) + "\n")
		}
	}
	if len(m.history) > 1 {
		b.WriteString("   " + dim.Render(fmt.Sprintf("%-14s", "q0")) + cyan.Render(sparkline(m.history, 40)) + "\n")
	}

	if m.status != "" {
		b.WriteString("\n   " + yellow.Render(m.status) + "\n")
	}
	b.WriteString("\n" + dim.Render("   n next  p play  s step mode  f force  i impact  r remove  q stop") + "\n")
	return b.String()
}

func (m *Monitor) viewForm(title string) string {
	var rows strings.Builder
	for i, name := range fieldNames {
		var val string
		if i == 0 {
			val = m.bodies[m.bodyCursor]
		} else {
			val = fmt.Sprintf("%8.3f", m.wrench[i-1])
			if m.editing && i == m.cursor {
				val = fmt.Sprintf("%8s", m.editBuf+"▋")
			}
		}
		if i == m.cursor {
			rows.WriteString(cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-6s", name)) + magenta.Render(val) + "\n")
		} else {
			rows.WriteString("  " + dim.Render(fmt.Sprintf("%-6s", name)) + dim.Render(val) + "\n")
		}
	}
	return "\n   " + cyan.Render(title) + "\n" + panel.Render(rows.String()) + "\n" +
		dim.Render("   ↑↓ select  ←→ adjust  enter edit  a apply  esc back") + "\n"
}

func formatVec(v []float64, n int) string {
	parts := make([]string, 0, n+1)
	for i, x := range v {
		if i == n {
			parts = append(parts, "…")
			break
		}
		parts = append(parts, fmt.Sprintf("%.3f", x))
	}
	return strings.Join(parts, " ")
}
