// ABOUTME: TUI initialization and control
// ABOUTME: Wraps bubbletea program for the sampler UI
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// PadMsg is one pad hit from the keyboard. At is the arrival time of
// the key event, kept so the app can measure key-to-trigger latency.
type PadMsg struct {
	Pad string
	At  time.Time
}

// CommandKind selects one UI command.
type CommandKind int

const (
	// CommandStopAll cuts every playing voice.
	CommandStopAll CommandKind = iota
	// CommandOptimize requests the low-latency retune.
	CommandOptimize
	// CommandToggleMonitor pauses or resumes latency monitoring.
	CommandToggleMonitor
)

// CommandMsg is one command from the keyboard.
type CommandMsg struct {
	Kind CommandKind
}

// QuitMsg signals that the user asked to exit.
type QuitMsg struct{}

// PadControl holds channels for pad and command communication
type PadControl struct {
	Pads     chan PadMsg
	Commands chan CommandMsg
	Quit     chan QuitMsg
}

// NewPadControl creates a new pad control handler
func NewPadControl() *PadControl {
	return &PadControl{
		Pads:     make(chan PadMsg, 32),
		Commands: make(chan CommandMsg, 8),
		Quit:     make(chan QuitMsg, 1),
	}
}

// Run starts the TUI
func Run(ctrl *PadControl) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
