package monitoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/ByteMirror/overseer/supervisor"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	refreshInterval = 2 * time.Second
	idColumnWidth   = 32
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

// DashboardModel is a live view of a status report file.
type DashboardModel struct {
	path     string
	read     func(path string) (*supervisor.Report, error)
	report   *supervisor.Report
	table    table.Model
	width    int
	height   int
	lastSync time.Time
	err      error
}

// NewDashboard creates a dashboard that follows the report at path.
func NewDashboard(path string) DashboardModel {
	columns := []table.Column{
		{Title: "Subagent", Width: idColumnWidth},
		{Title: "Status", Width: 12},
		{Title: "Memory", Width: 12},
		{Title: "CPU", Width: 8},
		{Title: "Runtime", Width: 10},
		{Title: "Warnings", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return DashboardModel{
		path:  path,
		read:  ReadReport,
		table: t,
	}
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m DashboardModel) Init() tea.Cmd {
	// Read the report straight away; every tick schedules the next one.
	return func() tea.Msg { return tickMsg(time.Now()) }
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		m.lastSync = time.Time(msg)
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *DashboardModel) refresh() {
	report, err := m.read(m.path)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.report = report

	rows := make([]table.Row, 0, len(report.SubagentDetails))
	for _, id := range sortedIDs(report) {
		d := report.SubagentDetails[id]
		rows = append(rows, table.Row{
			runewidth.Truncate(id, idColumnWidth, "…"),
			d.Status.String(),
			fmt.Sprintf("%.1f MB", d.MemoryMB),
			fmt.Sprintf("%.1f%%", d.CPUPercent),
			seconds(d.DurationSeconds),
			fmt.Sprintf("%d", len(d.Warnings)),
		})
	}
	m.table.SetRows(rows)
}

func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Overseer Dashboard"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(statusStyle[supervisor.StatusCritical].Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if m.report != nil {
		b.WriteString(strings.Join(summaryLines(m.report), "\n"))
		b.WriteString("\n\n")
		b.WriteString(baseStyle.Render(m.table.View()))
		b.WriteString("\n")
	} else if m.err == nil {
		b.WriteString(labelStyle.Render("Waiting for report..."))
		b.WriteString("\n")
	}

	if !m.lastSync.IsZero() {
		b.WriteString(labelStyle.Render(fmt.Sprintf("\n%s | last sync %s | q: quit",
			m.path, m.lastSync.Format("15:04:05"))))
	}
	return b.String()
}

// RunDashboard opens the dashboard on the terminal until the user quits.
func RunDashboard(path string) error {
	_, err := tea.NewProgram(NewDashboard(path), tea.WithAltScreen()).Run()
	return err
}
