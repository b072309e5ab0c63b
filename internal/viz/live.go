package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/hal"
	"github.com/san-kum/pamjoint/internal/plant"
	"github.com/san-kum/pamjoint/internal/storage"
)

const (
	width           = 40
	height          = 16
	historyCapacity = 500
	graphWidth      = 44
	targetStep      = 5.0
)

var dropoutLevels = []float64{0, 0.05, 1}

type TickMsg time.Time

// Model drives a simulation one control cycle per tick and renders it.
type Model struct {
	ctx      context.Context
	sim      *plant.Simulation
	rec      *storage.Recorder
	canvas   *Canvas
	period   time.Duration
	target   float64
	dropout  int
	running  bool
	last     cycle.Report
	lastErr  error
	showHelp bool
}

// NewModel attaches a recorder to the simulation's driver, so it must be
// called before the driver runs.
func NewModel(ctx context.Context, sim *plant.Simulation, target float64) Model {
	rec := storage.NewRecorder(historyCapacity)
	sim.Driver.AddObserver(rec)

	m := Model{
		ctx:     ctx,
		sim:     sim,
		rec:     rec,
		canvas:  NewCanvas(width, height),
		period:  sim.Driver.Config().Period,
		target:  target,
		running: true,
	}
	m.lastErr = sim.Driver.SetTargetAngle(target)
	return m
}

// Recorder exposes the reports seen so far.
func (m Model) Recorder() *storage.Recorder { return m.rec }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "up", "k":
			m.setTarget(m.target + targetStep)
		case "down", "j":
			m.setTarget(m.target - targetStep)
		case "z":
			m.lastErr = m.sim.Driver.ZeroReference()
		case "d":
			m.dropout = (m.dropout + 1) % len(dropoutLevels)
			m.lastErr = m.sim.Joint.SetDropoutRate(dropoutLevels[m.dropout])
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) setTarget(angle float64) {
	if err := m.sim.Driver.SetTargetAngle(angle); err != nil {
		m.lastErr = err
		return
	}
	m.target = angle
}

func (m *Model) step() {
	m.last, m.lastErr = m.sim.Step(m.ctx)
}

func (m Model) status() string {
	switch {
	case !m.last.Faulted.Empty():
		return StatusFault.Render("FAULT " + m.last.Faulted.String())
	case !m.running:
		return StatusPaused.Render("PAUSED")
	default:
		return StatusRunning.Render("RUNNING")
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func (m Model) View() string {
	reports := m.rec.Reports()
	r := m.last

	DrawJoint(m.canvas, JointView{Angle: r.Angle, PressureA: r.PressureA, PressureB: r.PressureB})
	canvasView := canvasStyle.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(headerStyle.Render("PNEUMATIC JOINT") + "\n")
	s.WriteString(m.status() + "\n\n")

	if len(reports) > 1 {
		angles := make([]float64, len(reports))
		targets := make([]float64, len(reports))
		for i, rep := range reports {
			angles[i] = rep.Angle
			targets[i] = rep.Target
		}
		chart := asciigraph.PlotMany([][]float64{angles, targets},
			asciigraph.Height(6),
			asciigraph.Width(graphWidth),
			asciigraph.SeriesColors(asciigraph.Green, asciigraph.Gray),
			asciigraph.Caption("angle / target (deg)"),
		)
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	truth := m.sim.Joint.Truth()
	s.WriteString(row("Time", fmt.Sprintf("%.2fs  cycle %d", truth.Elapsed.Seconds(), r.Cycle)))
	s.WriteString(row("Target", fmt.Sprintf("%+.1f°", m.target)))
	s.WriteString(row("Angle", fmt.Sprintf("%+.2f°  raw %d", r.Angle, r.RawAngle)))
	s.WriteString(row("Muscle A", fmt.Sprintf("%6.1f / %6.1f kPa", r.PressureA, r.SetpointA)))
	s.WriteString(row("Muscle B", fmt.Sprintf("%6.1f / %6.1f kPa", r.PressureB, r.SetpointB)))
	s.WriteString(row("Valve A", DutyBar(float64(r.DutyA)/hal.MaxDuty, 20)+fmt.Sprintf(" %4d", r.DutyA)))
	s.WriteString(row("Valve B", DutyBar(float64(r.DutyB)/hal.MaxDuty, 20)+fmt.Sprintf(" %4d", r.DutyB)))

	diff := make([]float64, 0, len(reports))
	for _, rep := range reports {
		diff = append(diff, rep.PressureA-rep.PressureB)
	}
	s.WriteString(row("ΔP", Sparkline(diff, 30)))

	relay := "off"
	if truth.Relay {
		relay = "on"
	}
	s.WriteString(row("Supply", fmt.Sprintf("%.0f kPa  pump %s", truth.Supply, relay)))
	s.WriteString(row("Dropout", fmt.Sprintf("%.0f%%", dropoutLevels[m.dropout]*100)))

	stats := m.sim.Driver.Stats()
	s.WriteString(row("Skipped", fmt.Sprintf("%d of %d", stats.Skipped, stats.Cycles)))
	if m.lastErr != nil {
		s.WriteString(row("Last error", Subtle.Render(m.lastErr.Error())))
	}

	s.WriteString(helpStyle.Render(Separator(36) + "\n↑↓:Target Z:Zero D:Dropout\nSP:Pause ?:Help Q:Quit"))
	statsView := statsStyle.Render(s.String())
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  Up/K     - Raise target by 5°       ║
║  Down/J   - Lower target by 5°       ║
║  Z        - Re-zero at this angle    ║
║  D        - Cycle sensor dropout     ║
║  Space    - Pause/Resume             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}
