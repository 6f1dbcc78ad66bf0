package monitoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ByteMirror/overseer/supervisor"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
)

// maxWarningWidth bounds the warning column of RenderReport.
const maxWarningWidth = 60

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	metricStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	statusStyle = map[supervisor.Status]lipgloss.Style{
		supervisor.StatusActive: lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")),
		supervisor.StatusWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		supervisor.StatusCritical: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		supervisor.StatusTerminated: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
)

func coloredStatus(s supervisor.Status) string {
	style, ok := statusStyle[s]
	if !ok {
		return s.String()
	}
	return style.Render(s.String())
}

// sortedIDs returns the subagent ids of r, oldest first.
func sortedIDs(r *supervisor.Report) []string {
	ids := make([]string, 0, len(r.SubagentDetails))
	for id := range r.SubagentDetails {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.SubagentDetails[ids[i]], r.SubagentDetails[ids[j]]
		if a.DurationSeconds != b.DurationSeconds {
			return a.DurationSeconds > b.DurationSeconds
		}
		return ids[i] < ids[j]
	})
	return ids
}

func seconds(v float64) string {
	return (time.Duration(v * float64(time.Second))).Round(time.Second).String()
}

// usageBar renders used/limit as a fixed-width bar.
func usageBar(used, limit float64, width int) string {
	if limit <= 0 {
		return ""
	}
	ratio := min(used/limit, 1)
	filled := int(float64(width) * ratio)

	var style lipgloss.Style
	switch {
	case ratio >= 0.9:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	case ratio >= 0.7:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	default:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	}
	return style.Render(strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}

func summaryLines(r *supervisor.Report) []string {
	line := func(label, value string) string {
		return fmt.Sprintf("%s %s", labelStyle.Render(fmt.Sprintf("%-18s", label)), value)
	}
	memory := fmt.Sprintf("%s %s",
		metricStyle.Render(fmt.Sprintf("%.1f / %.0f MB", r.TotalMemoryUsedMB, r.Limits.MaxMemoryMB)),
		usageBar(r.TotalMemoryUsedMB, r.Limits.MaxMemoryMB, 20))

	return []string{
		line("Updated", r.Timestamp.Local().Format(time.DateTime)),
		line("Subagents", metricStyle.Render(fmt.Sprintf("%d", r.ActiveSubagents))+
			labelStyle.Render(fmt.Sprintf(" (max %d running)", r.Limits.MaxConcurrentSubagents))),
		line("Memory", memory),
		line("System", fmt.Sprintf("%.1f%% memory, %.1f%% cpu", r.SystemMemoryPercent, r.SystemCPUPercent)),
		line("Session", fmt.Sprintf("%.1f of %.0f minutes", r.SessionDurationMinutes, r.Limits.SessionTimeoutMinutes)),
		line("Per subagent", fmt.Sprintf("%.0f MB, %.0f%% cpu, %s",
			r.Limits.MaxMemoryMB, r.Limits.MaxCPUPercent, seconds(r.Limits.MaxExecutionTimeSeconds))),
	}
}

// RenderReport formats r for a terminal: a summary of the session against
// its limits followed by one row per subagent.
func RenderReport(r *supervisor.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Overseer Status"))
	b.WriteString("\n\n")
	b.WriteString(strings.Join(summaryLines(r), "\n"))
	b.WriteString("\n\n")

	if len(r.SubagentDetails) == 0 {
		b.WriteString(labelStyle.Render("No subagents registered."))
		b.WriteString("\n")
		return b.String()
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers("ID", "STATUS", "MEMORY", "CPU", "RUNTIME", "LAST WARNING")
	for _, id := range sortedIDs(r) {
		d := r.SubagentDetails[id]
		last := ""
		if n := len(d.Warnings); n > 0 {
			last = warningStyle.Render(truncate.StringWithTail(d.Warnings[n-1], maxWarningWidth, "…"))
		}
		t.Row(id, coloredStatus(d.Status),
			fmt.Sprintf("%.1f MB", d.MemoryMB),
			fmt.Sprintf("%.1f%%", d.CPUPercent),
			seconds(d.DurationSeconds),
			last)
	}
	b.WriteString(t.Render())
	b.WriteString("\n")
	return b.String()
}
