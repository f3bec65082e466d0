package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/image-finder/pkg/finder"
)

// Notifier forwards controller notifications to a running program as toasts.
// Messages sent before Attach are logged.
type Notifier struct {
	mu      sync.Mutex
	program *tea.Program
	logger  zerolog.Logger
}

// NewNotifier creates a notifier that logs through logger until attached.
func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Attach directs notifications to p.
func (n *Notifier) Attach(p *tea.Program) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.program = p
}

// Notify implements finder.Notifier.
func (n *Notifier) Notify(message string) {
	n.mu.Lock()
	p := n.program
	n.mu.Unlock()

	if p == nil {
		n.logger.Warn().Str("notification", message).Msg("Notification before UI start")
		return
	}
	p.Send(ToastMsg{Text: message})
}

// Forward returns a state subscriber that wakes p on every change.
// It must not be registered on a controller driven from inside Update.
func Forward(p *tea.Program) func(finder.State) {
	return func(finder.State) {
		p.Send(StateMsg{})
	}
}
