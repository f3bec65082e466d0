// Package tui is the terminal front end of the image finder.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/Sternrassler/image-finder/pkg/finder"
)

// ToastDuration is how long a notification stays on screen.
const ToastDuration = 4 * time.Second

// Controller is the part of *finder.Controller the UI drives.
type Controller interface {
	Start() error
	SubmitQuery(text string) error
	LoadMore() error
	State() finder.State
}

// StateMsg tells the model the controller state changed.
// The model re-reads State() rather than trusting a carried snapshot,
// since snapshots from different goroutines can arrive out of order.
type StateMsg struct{}

// ToastMsg displays a transient notification.
type ToastMsg struct {
	Text string
}

type clearToastMsg struct {
	id int
}

type controlErrMsg struct {
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	queryStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("238")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	toastStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("160")).Padding(0, 1)
	urlStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1)
	buttonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("236")).Padding(0, 2)
)

// headerHeight is the number of lines above the result list.
const headerHeight = 7

// Model is the bubbletea model for the finder screen.
type Model struct {
	ctrl    Controller
	input   textinput.Model
	spinner spinner.Model
	state   finder.State

	toast   string
	toastID int

	width  int
	height int
}

// NewModel creates the finder screen for ctrl.
func NewModel(ctrl Controller) *Model {
	input := textinput.New()
	input.Placeholder = "Search for images..."
	input.Prompt = "> "
	input.CharLimit = 120
	input.Width = 40
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctrl:    ctrl,
		input:   input,
		spinner: sp,
		state:   ctrl.State(),
	}
}

// Init starts the initial fetch. It runs as a command so the controller's
// notifications reach a running program.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.start())
}

// Update handles input and controller messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if msg.Width > 10 {
			m.input.Width = min(msg.Width-10, 80)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m.state = m.ctrl.State()
		return m, nil

	case ToastMsg:
		m.toastID++
		m.toast = msg.Text
		id := m.toastID
		return m, tea.Tick(ToastDuration, func(time.Time) tea.Msg {
			return clearToastMsg{id: id}
		})

	case clearToastMsg:
		if msg.id == m.toastID {
			m.toast = ""
		}
		return m, nil

	case controlErrMsg:
		// Rejected requests leave the screen as it is.
		if errors.Is(msg.err, finder.ErrBusy) || errors.Is(msg.err, finder.ErrNoResults) || errors.Is(msg.err, finder.ErrClosed) {
			return m, nil
		}
		return m.Update(ToastMsg{Text: msg.err.Error()})

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+n":
		// Works while typing, so the control is usable whenever it is shown.
		if !m.state.CanLoadMore() {
			return m, nil
		}
		return m, m.loadMore()
	}

	if m.input.Focused() {
		switch msg.String() {
		case "enter":
			query := m.input.Value()
			m.input.Blur()
			return m, m.submit(query)
		case "esc", "tab":
			m.input.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "/", "tab", "s":
		return m, m.input.Focus()
	case "m", "enter", " ":
		if !m.state.CanLoadMore() {
			return m, nil
		}
		return m, m.loadMore()
	}
	return m, nil
}

func (m *Model) start() tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.Start(); err != nil && !errors.Is(err, finder.ErrAlreadyStarted) {
			return controlErrMsg{err: err}
		}
		return StateMsg{}
	}
}

func (m *Model) submit(query string) tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.SubmitQuery(query); err != nil {
			return controlErrMsg{err: err}
		}
		return StateMsg{}
	}
}

func (m *Model) loadMore() tea.Cmd {
	return func() tea.Msg {
		if err := m.ctrl.LoadMore(); err != nil {
			return controlErrMsg{err: err}
		}
		return StateMsg{}
	}
}

// View renders the screen.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Image ") + accentStyle.Render("Finder"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Search, browse and download photos from Pexels."))
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	b.WriteString(dimStyle.Render("Showing results for "))
	b.WriteString(queryStyle.Render(m.state.Query))
	if m.state.TotalResults > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d of %s", len(m.state.Results), humanize.Comma(int64(m.state.TotalResults)))))
	}
	b.WriteString("\n")

	if m.toast != "" {
		b.WriteString(toastStyle.Render(m.toast))
		b.WriteString("\n")
	}

	switch {
	case m.state.IsEmpty():
		b.WriteString(emptyStyle.Render("No images found\nTry searching for something else or adjust your search terms."))
		b.WriteString("\n")
	default:
		b.WriteString(m.renderResults())
	}

	if m.state.Busy {
		b.WriteString("\n" + m.spinner.View() + " Loading images...\n")
	}
	if m.state.CanLoadMore() {
		b.WriteString("\n" + buttonStyle.Render("Load more") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpLine()))
	b.WriteString("\n")

	return b.String()
}

func (m *Model) renderResults() string {
	photos := m.state.Results
	skipped := 0

	// Each photo takes two lines; keep the newest ones on screen.
	if m.height > 0 {
		fit := max((m.height-headerHeight-4)/2, 1)
		if len(photos) > fit {
			skipped = len(photos) - fit
			photos = photos[skipped:]
		}
	}

	var b strings.Builder
	if skipped > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d earlier photos", skipped)))
		b.WriteString("\n")
	}
	for i, photo := range photos {
		alt := photo.Alt
		if alt == "" {
			alt = "untitled"
		}
		fmt.Fprintf(&b, "%3d. %s  %s\n", skipped+i+1, alt, dimStyle.Render("by "+photo.Photographer))
		fmt.Fprintf(&b, "     Download %s\n", urlStyle.Render(photo.Src.Original))
	}
	return b.String()
}

func (m *Model) helpLine() string {
	if m.input.Focused() {
		if m.state.CanLoadMore() {
			return "enter search  ctrl+n load more  esc cancel  ctrl+c quit"
		}
		return "enter search  esc cancel  ctrl+c quit"
	}
	if m.state.CanLoadMore() {
		return "m load more  / search  q quit"
	}
	return "/ search  q quit"
}
