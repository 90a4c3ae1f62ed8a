package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/openclaw/mission-control/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)

	columnHeaderStyle = lipgloss.NewStyle().Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1)

	cardSelectedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(clrHighlight).
				Padding(0, 1).
				Bold(true)

	cardBlockedStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(clrRed).
				Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(clrRed).Bold(true)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.currentScreen {
	case screenStory:
		return m.viewStory()
	default:
		return m.viewBoard()
	}
}

func (m Model) viewBoard() string {
	var b strings.Builder

	total := 0
	for i := range m.columns {
		total += len(m.columns[i])
	}
	header := titleStyle.Render("mission control")
	header += dimStyle.Render(fmt.Sprintf(" — %d stories", total))
	b.WriteString(header + "\n\n")

	if total == 0 {
		b.WriteString(dimStyle.Render("  No stories yet.\n"))
		b.WriteString("\n" + m.boardFooter())
		return b.String()
	}

	colWidth := 26
	if m.width > 0 {
		colWidth = (m.width - numColumns) / numColumns
		if colWidth < 18 {
			colWidth = 18
		}
		if colWidth > 34 {
			colWidth = 34
		}
	}

	var cols []string
	for i := 0; i < numColumns; i++ {
		cols = append(cols, m.renderColumn(i, colWidth))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))

	if m.statusMsg != "" {
		b.WriteString("\n" + errorStyle.Render("  "+m.statusMsg))
	}
	b.WriteString("\n" + m.boardFooter())
	return b.String()
}

func (m Model) renderColumn(col, width int) string {
	var b strings.Builder

	label := columnLabels[col]
	count := len(m.columns[col])
	headerColor := subtleStyle
	switch columnStatuses[col] {
	case store.StatusInProgress:
		headerColor = lipgloss.NewStyle().Foreground(clrBlue)
	case store.StatusCodeReview:
		headerColor = lipgloss.NewStyle().Foreground(clrYellow)
	case store.StatusVerify:
		headerColor = lipgloss.NewStyle().Foreground(clrCyan)
	case store.StatusDone:
		headerColor = lipgloss.NewStyle().Foreground(clrGreen)
	}
	b.WriteString(columnHeaderStyle.Inherit(headerColor).Render(fmt.Sprintf(" %s (%d)", label, count)))
	b.WriteString("\n")

	for row, st := range m.columns[col] {
		b.WriteString(m.renderStoryCard(&st, col == m.cursorCol && row == m.cursorRow, width))
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(width + 1).Render(b.String())
}

func (m Model) renderStoryCard(st *store.Story, selected bool, width int) string {
	var content strings.Builder

	key := ""
	if st.Key != nil {
		key = *st.Key
	}
	keyStr := lipgloss.NewStyle().Foreground(clrCyan).Render(key)
	mode := dimStyle.Render(string(st.StatusMode))
	content.WriteString(keyStr + "  " + mode + "\n")
	content.WriteString(truncate(st.Title, width-4))

	if st.IsBlocked {
		reason := "blocked"
		if st.BlockedReason != nil {
			reason = *st.BlockedReason
		}
		content.WriteString("\n" + lipgloss.NewStyle().Foreground(clrRed).Render("⚠ "+truncate(reason, width-6)))
	}

	style := cardStyle.Width(width - 2)
	if selected {
		style = cardSelectedStyle.Width(width - 2)
	} else if st.IsBlocked {
		style = cardBlockedStyle.Width(width - 2)
	}
	return style.Render(content.String())
}

func (m Model) viewStory() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("story detail"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render("esc back"))
	b.WriteString("\n\n")
	b.WriteString(m.detailView.View())
	b.WriteString("\n\n")
	keys := []struct{ key, desc string }{
		{"↑↓", "scroll"},
		{"esc", "back"},
	}
	b.WriteString(renderFooter(keys))
	return b.String()
}

// renderStoryDetail builds the scrollable story content.
func (m Model) renderStoryDetail() string {
	if m.selectedStory == nil {
		return "No story selected"
	}
	st := m.selectedStory
	var b strings.Builder

	key := ""
	if st.Key != nil {
		key = *st.Key + " "
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(key+st.Title) + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s · %s · %s", st.Status, st.StatusMode, st.StoryType)) + "\n\n")

	if st.Intent != nil && *st.Intent != "" {
		b.WriteString(subtleStyle.Render("Intent: ") + *st.Intent + "\n")
	}
	if st.Description != nil && *st.Description != "" {
		b.WriteString(*st.Description + "\n")
	}

	if len(m.storyLabels) > 0 {
		var names []string
		for _, l := range m.storyLabels {
			names = append(names, l.Name)
		}
		b.WriteString("\n" + subtleStyle.Render("Labels: ") + strings.Join(names, ", ") + "\n")
	}

	b.WriteString("\n" + lipgloss.NewStyle().Bold(true).Render("Tasks:") + "\n")
	if len(m.storyTasks) == 0 {
		b.WriteString(dimStyle.Render("  none") + "\n")
	}
	for _, t := range m.storyTasks {
		b.WriteString(m.renderTaskLine(t) + "\n")
	}
	return b.String()
}

func (m Model) renderTaskLine(t store.Task) string {
	var dot string
	switch t.Status {
	case store.StatusDone:
		dot = lipgloss.NewStyle().Foreground(clrGreen).Render("●")
	case store.StatusInProgress:
		dot = lipgloss.NewStyle().Foreground(clrBlue).Render("◉")
	case store.StatusCodeReview:
		dot = lipgloss.NewStyle().Foreground(clrYellow).Render("◉")
	case store.StatusVerify:
		dot = lipgloss.NewStyle().Foreground(clrCyan).Render("◉")
	default:
		dot = dimStyle.Render("○")
	}

	key := ""
	if t.Key != nil {
		key = *t.Key
	}
	keyStr := lipgloss.NewStyle().Foreground(clrCyan).Render(key)
	line := fmt.Sprintf("  %s %s %-40s %s", dot, keyStr, truncate(t.Title, 40), dimStyle.Render(string(t.Status)))

	if t.IsBlocked && t.BlockedReason != nil {
		line += "\n      " + lipgloss.NewStyle().Foreground(clrRed).Render("⚠ "+truncate(*t.BlockedReason, 50))
	}
	return line
}

func (m Model) boardFooter() string {
	keys := []struct{ key, desc string }{
		{"↑↓←→", "navigate"},
		{"enter", "open story"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	return renderFooter(keys)
}

func renderFooter(keys []struct{ key, desc string }) string {
	var parts []string
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+footerDescStyle.Render(k.desc))
	}
	return "  " + strings.Join(parts, "  ")
}

func truncate(s string, maxLen int) string {
	if maxLen < 1 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
