package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"macrotrack/internal/modules/fasting/domain"
	"macrotrack/internal/modules/fasting/dto"
	"macrotrack/internal/ui/components"
	"macrotrack/internal/ui/theme"
	historyview "macrotrack/internal/ui/views/history"
	timerview "macrotrack/internal/ui/views/timer"
)

// FastingPort is the slice of the fasting CLI handler the TUI drives.
type FastingPort interface {
	Start(ctx context.Context, personID string) (dto.SessionOutput, error)
	End(ctx context.Context, personID string) (dto.EndOutput, error)
	Toggle(ctx context.Context, personID string) (dto.ToggleOutput, error)
	Status(ctx context.Context, personID string, presetHours float64) (dto.StatusOutput, error)
	History(ctx context.Context, personID, from, to string, limit int) ([]dto.SessionOutput, error)
	Report(ctx context.Context, personID, notePath string, recent int) (dto.ReportOutput, error)
}

type tabID int

const (
	tabTimer tabID = iota
	tabHistory
	tabCount
)

var tabLabels = [tabCount]string{"Timer", "History"}

var paletteHints = []string{
	"toggle",
	"start",
	"end",
	"person <id>",
	"preset <hours>",
	"report [note-path]",
	"refresh",
}

type actionDoneMsg struct {
	status string
	err    error
}

type keyMap struct {
	Toggle  key.Binding
	Tab     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/end fast")),
		Tab:     key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "switch view")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "command")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Tab, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Tab},
		{k.Help, k.Palette, k.Quit},
	}
}

// Model is the root Bubble Tea model: tab routing, the help overlay and the
// command palette. Rendering of each tab is delegated to its view.
type Model struct {
	fasting  FastingPort
	personID string
	loc      *time.Location

	timer   timerview.Model
	history historyview.Model

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

func NewModel(fasting FastingPort, personID string, presetHours float64, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}
	return Model{
		fasting:  fasting,
		personID: personID,
		loc:      loc,
		timer:    timerview.New(fasting, personID, presetHours),
		history:  historyview.New(fasting, personID, loc),
		keys:     defaultKeys(),
		help:     help.New(),
		palette:  components.NewPalette(paletteHints...),
		status:   "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.timer.Init(), m.history.Init())
}

// Update routes keys to the palette while it is open. Every other message
// still reaches the views so the timer keeps ticking underneath.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.palette.Visible() {
		return m.update(msg)
	}
	var paletteCmd tea.Cmd
	m.palette, paletteCmd = m.palette.Update(msg)
	if _, ok := msg.(tea.KeyMsg); ok {
		return m, paletteCmd
	}
	next, cmd := m.update(msg)
	return next, tea.Batch(paletteCmd, cmd)
}

func (m Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 72))
		m.help.Width = m.width
		sz := tea.WindowSizeMsg{Width: m.width, Height: max(m.height-3, 1)}
		m.timer, _ = m.timer.Update(sz)
		m.history, _ = m.history.Update(sz)
		return m, nil

	case timerview.TickMsg, timerview.StatusLoadedMsg, spinner.TickMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd

	case timerview.ToggledMsg:
		switch {
		case msg.Err != nil:
			m.status = "toggle failed: " + msg.Err.Error()
		case msg.Out.Action == dto.ActionStarted:
			m.status = "fast started"
		default:
			m.status = "fast ended after " + durationOf(msg.Out.Session)
		}
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, tea.Batch(cmd, m.history.Reload())

	case historyview.LoadedMsg:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd

	case actionDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		} else {
			m.status = msg.status
		}
		return m, m.refresh()

	case components.PaletteSubmitMsg:
		return m.execute(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if key.Matches(msg, m.keys.Help) || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.activeTab == tabHistory && m.history.Filtering() {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			cmd := m.timer.Toggle()
			return m, cmd
		case key.Matches(msg, m.keys.Tab):
			if msg.String() == "shift+tab" {
				m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			} else {
				m.activeTab = (m.activeTab + 1) % tabCount
			}
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.showHelp = true
			return m, nil
		case key.Matches(msg, m.keys.Palette):
			cmd := m.palette.Open()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case tabTimer:
		m.timer, cmd = m.timer.Update(msg)
	case tabHistory:
		m.history, cmd = m.history.Update(msg)
	}
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := max(m.height-lipgloss.Height(tabBar)-lipgloss.Height(statusBar), 1)

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH, lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabHistory:
		content = m.history.View()
	default:
		content = m.timer.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		style := theme.Muted
		if i == m.activeTab {
			style = theme.Hot
		}
		parts[i] = style.Render(" " + tabLabels[i] + " ")
	}
	bar := "macrotrack  " + strings.Join(parts, theme.Muted.Render(" │ "))
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := theme.Muted.Render(m.personID) + "  " + m.status
	if m.timer.Active() {
		left = theme.Good.Render("● fasting") + "  " + left
	}
	right := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

func (m Model) execute(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	person, loc := m.personID, m.loc

	switch parts[0] {
	case "toggle":
		cmd := m.timer.Toggle()
		return m, cmd

	case "start":
		return m, m.action(func(ctx context.Context) (string, error) {
			out, err := m.fasting.Start(ctx, person)
			if err != nil {
				return "", err
			}
			return "fasting since " + domain.FormatClock(out.StartAt, loc), nil
		})

	case "end":
		return m, m.action(func(ctx context.Context) (string, error) {
			out, err := m.fasting.End(ctx, person)
			if err != nil {
				return "", err
			}
			if !out.Ended {
				return "no fast in progress", nil
			}
			return "fast ended after " + durationOf(out.Session), nil
		})

	case "person":
		if len(parts) < 2 {
			m.status = "usage: person <id>"
			return m, nil
		}
		m.personID = parts[1]
		m.status = "switched to " + m.personID
		cmd := tea.Batch(m.timer.SetPerson(m.personID), m.history.SetPerson(m.personID))
		return m, cmd

	case "preset":
		if len(parts) < 2 {
			m.status = "usage: preset <hours>"
			return m, nil
		}
		hours, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || hours <= 0 {
			m.status = "preset must be a positive number of hours"
			return m, nil
		}
		m.status = fmt.Sprintf("target set to %gh", hours)
		cmd := m.timer.SetPreset(hours)
		return m, cmd

	case "report":
		notePath := ""
		if len(parts) >= 2 {
			notePath = parts[1]
		}
		return m, m.action(func(ctx context.Context) (string, error) {
			out, err := m.fasting.Report(ctx, person, notePath, 0)
			if err != nil {
				return "", err
			}
			return "report written to " + out.Path, nil
		})

	case "refresh":
		m.status = "refreshed"
		return m, m.refresh()
	}
	m.status = "unknown command: " + parts[0]
	return m, nil
}

func (m Model) action(fn func(ctx context.Context) (string, error)) tea.Cmd {
	return func() tea.Msg {
		status, err := fn(context.Background())
		return actionDoneMsg{status: status, err: err}
	}
}

func (m Model) refresh() tea.Cmd {
	return tea.Batch(m.timer.Reload(), m.history.Reload())
}

func durationOf(s dto.SessionOutput) string {
	return domain.FormatDuration(s.DurationMs)
}
