// ABOUTME: Bubbletea model for the sampler TUI
// ABOUTME: Renders the pad grid and latency dashboard, routes key hits
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/internal/chops"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/chop"
	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

// debounceWindow filters terminal key auto-repeat. Auto-repeat arrives
// well under 30ms apart; deliberate retriggers do not.
const debounceWindow = 30 * time.Millisecond

// flashWindow is how long a pad stays lit after a hit.
const flashWindow = 150 * time.Millisecond

// Model represents the TUI state
type Model struct {
	ctrl *PadControl

	// Loaded sample
	title      string
	sampleRate int
	channels   int
	duration   time.Duration

	// Pads
	padStates map[string]chop.SampleState
	padFlash  map[string]time.Time
	lastPress map[string]time.Time

	// Engine
	metrics chop.Metrics

	// Latency
	status     *latency.PerformanceStatus
	flags      latency.OptimizationFlags
	monitoring bool

	// Panels
	showLatency bool

	// Dimensions
	width  int
	height int
}

// NewModel creates a new TUI model
func NewModel(ctrl *PadControl) Model {
	return Model{
		ctrl:        ctrl,
		padStates:   make(map[string]chop.SampleState),
		padFlash:    make(map[string]time.Time),
		lastPress:   make(map[string]time.Time),
		showLatency: true,
	}
}

type tickMsg time.Time

func tickEvery() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the redraw ticker that expires pad flashes
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderPads())
	b.WriteString(m.renderStats())

	if m.showLatency {
		b.WriteString(m.renderLatency())
	}

	b.WriteString(m.renderHelp())

	return b.String()
}

// renderHeader renders the loaded sample and monitoring state
func (m Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Chop Shop"))
	b.WriteString("\n\n")

	if m.title == "" {
		b.WriteString(valueStyle.Render("No sample loaded"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(valueStyle.Render(fmt.Sprintf("%s  %dHz %s  %.1fs",
		truncate(m.title, 40), m.sampleRate, channelName(m.channels),
		m.duration.Seconds())))

	monitorText := "monitor paused"
	if m.monitoring {
		monitorText = "monitoring"
	}
	b.WriteString(valueStyle.Render(fmt.Sprintf("  [%s]", monitorText)))
	b.WriteString("\n")

	return b.String()
}

// renderPads renders the 4x4 pad grid
func (m Model) renderPads() string {
	readyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86"))

	emptyStyle := lipgloss.NewStyle().
		Faint(true)

	pendingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("220"))

	failedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	hitStyle := lipgloss.NewStyle().
		Bold(true).
		Reverse(true).
		Foreground(lipgloss.Color("205"))

	now := time.Now()

	var b strings.Builder
	b.WriteString("\n")
	for row := 0; row < 4; row++ {
		b.WriteString("  ")
		for col := 0; col < 4; col++ {
			key := chops.PadOrder[row*4+col]
			cell := fmt.Sprintf("[ %s ]", key)

			if hit, ok := m.padFlash[key]; ok && now.Sub(hit) < flashWindow {
				b.WriteString(hitStyle.Render(cell))
			} else {
				switch m.padStates[key] {
				case chop.StateReady:
					b.WriteString(readyStyle.Render(cell))
				case chop.StatePending:
					b.WriteString(pendingStyle.Render(cell))
				case chop.StateFailed:
					b.WriteString(failedStyle.Render(cell))
				default:
					b.WriteString(emptyStyle.Render(cell))
				}
			}
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// renderStats renders trigger and voice statistics
func (m Model) renderStats() string {
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	return "\n" + valueStyle.Render(fmt.Sprintf(
		"Triggers: %d  Drops: %d  Voices: %d  Pads ready: %d  Buffer: %.0fms",
		m.metrics.Triggers, m.metrics.Drops, m.metrics.ActiveVoices,
		m.metrics.PreloadedSamples,
		float64(m.metrics.BufferSize)/float64(time.Millisecond))) + "\n"
}

// renderLatency renders the per-category latency dashboard
func (m Model) renderLatency() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Latency"))
	b.WriteString("\n")

	if m.status == nil {
		b.WriteString(valueStyle.Render("  No measurements yet"))
		b.WriteString("\n")
		return b.String()
	}

	for _, cat := range latency.Categories() {
		stats, ok := m.status.Categories[cat]
		if !ok {
			continue
		}

		line := fmt.Sprintf("  %-14s avg %6.2fms  min %6.2f  max %6.2f  (%d)  ",
			cat, stats.AverageMs, stats.MinMs, stats.MaxMs, stats.Count)
		b.WriteString(valueStyle.Render(line))
		b.WriteString(ratingStyle(stats.Rating).Render(string(stats.Rating)))
		b.WriteString("\n")
	}

	b.WriteString(valueStyle.Render("  Overall: "))
	b.WriteString(ratingStyle(m.status.Overall).Render(string(m.status.Overall)))
	b.WriteString("\n")

	if applied := appliedOptimizations(m.flags); applied != "" {
		b.WriteString(valueStyle.Render("  Applied: " + applied))
		b.WriteString("\n")
	}

	for _, rec := range m.status.Recommendations {
		b.WriteString(valueStyle.Render("  Tip: " + truncate(rec, 70)))
		b.WriteString("\n")
	}

	return b.String()
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "\n" + lipgloss.NewStyle().Faint(true).Render(
		"Pads: 1-4 q-r a-f z-v   space:Stop  o:Optimize  m:Monitor  l:Latency  esc:Quit") + "\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if isPadKey(key) {
		return m.handlePad(key)
	}

	switch key {
	case "esc", "ctrl+c":
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case " ", "space":
		m.sendCommand(CommandStopAll)
	case "o":
		m.sendCommand(CommandOptimize)
	case "m":
		m.sendCommand(CommandToggleMonitor)
	case "l":
		m.showLatency = !m.showLatency
	}

	return m, nil
}

// handlePad debounces and forwards one pad hit
func (m Model) handlePad(key string) (tea.Model, tea.Cmd) {
	now := time.Now()
	if last, ok := m.lastPress[key]; ok && now.Sub(last) < debounceWindow {
		return m, nil
	}
	m.lastPress[key] = now
	m.padFlash[key] = now

	if m.ctrl != nil {
		select {
		case m.ctrl.Pads <- PadMsg{Pad: key, At: now}:
		default:
		}
	}

	return m, nil
}

// sendCommand forwards one command without blocking the update loop
func (m Model) sendCommand(kind CommandKind) {
	if m.ctrl == nil {
		return
	}
	select {
	case m.ctrl.Commands <- CommandMsg{Kind: kind}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Title != "" {
		m.title = msg.Title
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.duration = msg.Duration
	}
	if msg.PadStates != nil {
		m.padStates = msg.PadStates
	}
	if msg.Metrics != nil {
		m.metrics = *msg.Metrics
	}
	if msg.Status != nil {
		m.status = msg.Status
	}
	if msg.Flags != nil {
		m.flags = *msg.Flags
	}
	if msg.Monitoring != nil {
		m.monitoring = *msg.Monitoring
	}
	if msg.FlashPad != "" {
		m.padFlash[msg.FlashPad] = time.Now()
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Title      string
	SampleRate int
	Channels   int
	Duration   time.Duration
	PadStates  map[string]chop.SampleState
	Metrics    *chop.Metrics
	Status     *latency.PerformanceStatus
	Flags      *latency.OptimizationFlags
	Monitoring *bool
	FlashPad   string
}

// Utility functions
func isPadKey(key string) bool {
	for _, pad := range chops.PadOrder {
		if key == pad {
			return true
		}
	}
	return false
}

func ratingStyle(r latency.Rating) lipgloss.Style {
	switch r {
	case latency.RatingExcellent:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	case latency.RatingGood:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	case latency.RatingAcceptable:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	case latency.RatingPoor:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	case latency.RatingUnacceptable:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	}
	return lipgloss.NewStyle().Faint(true)
}

func appliedOptimizations(flags latency.OptimizationFlags) string {
	var parts []string
	if flags.PreloadingActive {
		parts = append(parts, "preloading")
	}
	if flags.ContextOptimized {
		parts = append(parts, "context")
	}
	if flags.BufferSizeReduced {
		parts = append(parts, "smaller buffer")
	}
	if flags.MixerPathEnabled {
		parts = append(parts, "mixer path")
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}
