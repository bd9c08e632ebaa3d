package timer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"macrotrack/internal/modules/fasting/dto"
	"macrotrack/internal/ui/theme"
)

const refreshEvery = time.Second

type StatusPort interface {
	Status(ctx context.Context, personID string, presetHours float64) (dto.StatusOutput, error)
	Toggle(ctx context.Context, personID string) (dto.ToggleOutput, error)
}

type TickMsg time.Time

type StatusLoadedMsg struct {
	PersonID string
	Status   dto.StatusOutput
	Err      error
}

// ToggledMsg reports a finished toggle so the root model can update its status bar.
type ToggledMsg struct {
	Out dto.ToggleOutput
	Err error
}

type Model struct {
	port     StatusPort
	personID string
	preset   float64
	status   dto.StatusOutput
	err      error
	loaded   bool
	busy     bool
	spinner  spinner.Model
	width    int
	height   int
}

func New(port StatusPort, personID string, presetHours float64) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Green)
	return Model{port: port, personID: personID, preset: presetHours, spinner: sp}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), tick(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.loadCmd(), tick())

	case StatusLoadedMsg:
		if msg.PersonID != m.personID {
			return m, nil
		}
		m.loaded = true
		m.err = msg.Err
		if msg.Err == nil {
			m.status = msg.Status
		}

	case ToggledMsg:
		m.busy = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		return m, m.loadCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Toggle starts or ends the person's fast. Repeated calls while a toggle is
// in flight are ignored.
func (m *Model) Toggle() tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	port, person := m.port, m.personID
	return func() tea.Msg {
		out, err := port.Toggle(context.Background(), person)
		return ToggledMsg{Out: out, Err: err}
	}
}

// SetPerson switches the view to another person's log.
func (m *Model) SetPerson(personID string) tea.Cmd {
	m.personID = personID
	m.loaded = false
	return m.loadCmd()
}

func (m *Model) SetPreset(hours float64) tea.Cmd {
	m.preset = hours
	return m.loadCmd()
}

func (m Model) Reload() tea.Cmd { return m.loadCmd() }

func (m Model) PersonID() string { return m.personID }

func (m Model) Active() bool { return m.status.Active != nil }

func (m Model) View() string {
	if !m.loaded {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, theme.Muted.Render("Loading…"))
	}

	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Fasting · "+m.personID) + "\n\n")
	if m.status.Active != nil {
		sb.WriteString(m.spinner.View() + " " + theme.Good.Render(m.status.DurationLabel) + "\n")
		sb.WriteString(theme.Muted.Render(m.status.TargetEndLabel) + "\n")
	} else {
		sb.WriteString(theme.Muted.Render(m.status.DurationLabel) + "\n\n")
	}
	sb.WriteString(fmt.Sprintf("\nStreak: %s\n\n", theme.Hot.Render(fmt.Sprintf("%d day(s)", m.status.Streak))))

	button := theme.Button
	if m.status.Active != nil {
		button = theme.ButtonStop
	}
	sb.WriteString(button.Render(m.status.CTALabel))
	if m.err != nil {
		sb.WriteString("\n\n" + theme.Error.Render(m.err.Error()))
	}

	pane := theme.Pane
	if m.status.Active != nil {
		pane = theme.Fasting
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, pane.Render(sb.String()))
}

func (m Model) loadCmd() tea.Cmd {
	port, person, preset := m.port, m.personID, m.preset
	return func() tea.Msg {
		status, err := port.Status(context.Background(), person, preset)
		return StatusLoadedMsg{PersonID: person, Status: status, Err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return TickMsg(t) })
}
