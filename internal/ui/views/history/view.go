package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"macrotrack/internal/modules/fasting/domain"
	"macrotrack/internal/modules/fasting/dto"
	"macrotrack/internal/ui/theme"
)

const pageSize = 200

type HistoryPort interface {
	History(ctx context.Context, personID, from, to string, limit int) ([]dto.SessionOutput, error)
}

type LoadedMsg struct {
	PersonID string
	Sessions []dto.SessionOutput
	Err      error
}

type sessionItem struct {
	session dto.SessionOutput
	loc     *time.Location
}

func (i sessionItem) Title() string { return i.session.DateKey }

func (i sessionItem) Description() string {
	start := domain.FormatClock(i.session.StartAt, i.loc)
	if i.session.Open {
		return start + " → now  (" + domain.FormatDuration(i.session.DurationMs) + ")"
	}
	return fmt.Sprintf("%s → %s  (%s)", start, domain.FormatClock(*i.session.EndAt, i.loc), domain.FormatDuration(i.session.DurationMs))
}

func (i sessionItem) FilterValue() string { return i.session.DateKey }

type Model struct {
	port     HistoryPort
	personID string
	loc      *time.Location
	list     list.Model
	detail   viewport.Model
	width    int
	height   int
}

func New(port HistoryPort, personID string, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "History"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)

	vp := viewport.New(0, 0)
	vp.Style = lipgloss.NewStyle().Foreground(theme.Text).Padding(1)

	return Model{port: port, personID: personID, loc: loc, list: l, detail: vp}
}

func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Reload fetches the newest sessions of the current person.
func (m Model) Reload() tea.Cmd {
	port, person := m.port, m.personID
	return func() tea.Msg {
		sessions, err := port.History(context.Background(), person, "", "", pageSize)
		return LoadedMsg{PersonID: person, Sessions: sessions, Err: err}
	}
}

func (m *Model) SetPerson(personID string) tea.Cmd {
	m.personID = personID
	m.list.SetItems(nil)
	return m.Reload()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case LoadedMsg:
		if msg.PersonID != m.personID {
			return m, nil
		}
		if msg.Err != nil {
			m.list.Title = "History: " + msg.Err.Error()
			return m, nil
		}
		m.list.Title = "History"
		items := make([]list.Item, len(msg.Sessions))
		for i, s := range msg.Sessions {
			items[i] = sessionItem{session: s, loc: m.loc}
		}
		cmds = append(cmds, m.list.SetItems(items))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	m.detail.SetContent(m.renderDetail())
	m.detail, cmd = m.detail.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	listW := m.width / 2
	listPane := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	detailPane := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Surface1).
		Width(max(m.width-listW-2, 1)).
		Height(max(m.height-2, 1)).
		Render(m.detail.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)
}

// Filtering reports whether the list filter is capturing keystrokes.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m *Model) resize() {
	listW := m.width / 2
	m.list.SetSize(listW, m.height)
	m.detail.Width = max(m.width-listW-4, 1)
	m.detail.Height = max(m.height-4, 1)
}

func (m Model) renderDetail() string {
	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok {
		return theme.Muted.Render("No sessions yet")
	}
	s := item.session
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(s.DateKey) + "\n\n")
	sb.WriteString(theme.Muted.Render("id:       ") + s.ID + "\n")
	sb.WriteString(theme.Muted.Render("start:    ") + time.UnixMilli(s.StartAt).In(m.loc).Format(time.DateTime) + "\n")
	if s.EndAt != nil {
		sb.WriteString(theme.Muted.Render("end:      ") + time.UnixMilli(*s.EndAt).In(m.loc).Format(time.DateTime) + "\n")
	} else {
		sb.WriteString(theme.Muted.Render("end:      ") + theme.Good.Render("in progress") + "\n")
	}
	sb.WriteString(theme.Muted.Render("duration: ") + domain.FormatDuration(s.DurationMs) + "\n")
	return sb.String()
}
