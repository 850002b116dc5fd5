// ABOUTME: Dashboard TUI for watching a remote sampler's feed
// ABOUTME: Real-time latency display using bubbletea
package feed

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Daniel-Hillman/chop-shop-base44-sub000/pkg/latency"
)

// MonitorTUI manages the dashboard TUI
type MonitorTUI struct {
	program  *tea.Program
	updates  chan MonitorStatus
	quitChan chan struct{}
	snapChan chan struct{}
}

// MonitorStatus holds remote sampler state for display
type MonitorStatus struct {
	Sampler   string
	Addr      string
	Connected bool
	Status    *latency.PerformanceStatus
	Flags     latency.OptimizationFlags
	Actions   []string
}

// dashModel is the bubbletea model for the dashboard
type dashModel struct {
	status    MonitorStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
	snapChan  chan struct{}
}

type dashTickMsg time.Time
type dashStatusMsg MonitorStatus

func (m dashModel) Init() tea.Cmd {
	return dashTick()
}

func dashTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		case "s":
			select {
			case m.snapChan <- struct{}{}:
			default:
			}
		}

	case dashTickMsg:
		return m, dashTick()

	case dashStatusMsg:
		m.status = MonitorStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m dashModel) View() string {
	if m.quitting {
		return "Closing monitor...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	// Build the view
	var b strings.Builder

	b.WriteString(titleStyle.Render("Chop Shop Monitor"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Sampler: "))
	connState := "disconnected"
	if m.status.Connected {
		connState = "connected"
	}
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%s) [%s]",
		m.status.Sampler, m.status.Addr, connState)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Watching: "))
	uptime := time.Since(m.startTime).Round(time.Second)
	b.WriteString(valueStyle.Render(uptime.String()))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Latency"))
	b.WriteString("\n")

	if m.status.Status == nil {
		b.WriteString(valueStyle.Render("  Waiting for first assessment..."))
		b.WriteString("\n")
	} else {
		for _, cat := range latency.Categories() {
			stats, ok := m.status.Status.Categories[cat]
			if !ok {
				continue
			}
			line := fmt.Sprintf("  %-14s avg %6.2fms  min %6.2f  max %6.2f  (%d)  ",
				cat, stats.AverageMs, stats.MinMs, stats.MaxMs, stats.Count)
			b.WriteString(valueStyle.Render(line))
			b.WriteString(dashRatingStyle(stats.Rating).Render(string(stats.Rating)))
			b.WriteString("\n")
		}

		b.WriteString(valueStyle.Render("  Overall: "))
		b.WriteString(dashRatingStyle(m.status.Status.Overall).Render(string(m.status.Status.Overall)))
		b.WriteString("\n")

		for _, rec := range m.status.Status.Recommendations {
			b.WriteString(valueStyle.Render("  Tip: " + rec))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Tuning"))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf(
		"  preloading=%v context=%v smallBuffer=%v mixer=%v",
		m.status.Flags.PreloadingActive, m.status.Flags.ContextOptimized,
		m.status.Flags.BufferSizeReduced, m.status.Flags.MixerPathEnabled)))
	b.WriteString("\n")

	if len(m.status.Actions) > 0 {
		b.WriteString(valueStyle.Render("  Recent actions: " + strings.Join(m.status.Actions, ", ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 's' to save a snapshot, 'q' to quit"))

	return b.String()
}

func dashRatingStyle(r latency.Rating) lipgloss.Style {
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

// NewMonitorTUI creates a new dashboard TUI
func NewMonitorTUI() *MonitorTUI {
	return &MonitorTUI{
		updates:  make(chan MonitorStatus, 10),
		quitChan: make(chan struct{}, 1),
		snapChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until the user quits
func (t *MonitorTUI) Start(initial MonitorStatus) error {
	m := dashModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
		snapChan:  t.snapChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	// Start listening for updates in a goroutine
	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(dashStatusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *MonitorTUI) Update(status MonitorStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *MonitorTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
}

// QuitChan returns the channel that signals when the user wants to quit
func (t *MonitorTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

// SnapshotChan returns the channel that signals a snapshot request
func (t *MonitorTUI) SnapshotChan() <-chan struct{} {
	return t.snapChan
}
