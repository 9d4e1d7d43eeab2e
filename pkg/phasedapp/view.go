package phasedapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	recentLogLines = 5
	outputTail     = 6
)

func (m *model) View() string {
	header := m.renderHeader()
	body := m.renderBody()
	promptPanel := m.renderPromptPanel()
	var actionsPanel string
	if m.actionsVisible {
		actionsPanel = m.renderActionsPanel()
	}
	statusBar := statusBarStyle.Render(m.statusMsg)
	footer := footerStyle.Render("↑/↓ or j/k move • Enter actions • Tab switch focus • ? help • q quit")

	sections := []string{header, body}
	if actionsPanel != "" {
		sections = append(sections, actionsPanel)
	}
	sections = append(sections, promptPanel, statusBar)

	if m.helpVisible {
		sections = append(sections, renderHelp())
	} else {
		sections = append(sections, footer)
	}

	view := lipgloss.JoinVertical(lipgloss.Left, sections...)
	renderWidth := m.width
	if renderWidth <= 0 {
		renderWidth = lipgloss.Width(view)
	}
	renderHeight := lipgloss.Height(view)
	if m.height > renderHeight {
		renderHeight = m.height
	}
	return lipgloss.Place(renderWidth, renderHeight, lipgloss.Left, lipgloss.Top, view)
}

func (m *model) renderHeader() string {
	title := titleStyle.Render(m.title)
	total := m.total
	if total < len(m.order) {
		total = len(m.order)
	}
	progress := subtitleStyle.Render(fmt.Sprintf("Progress: %d/%d done", m.completedCount(), total))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", progress)
}

func (m *model) renderBody() string {
	width := m.viewportWidth()
	if width < 80 {
		return lipgloss.JoinVertical(lipgloss.Left, m.renderPhaseList(width), m.renderPhaseDetails(width))
	}
	left := width/2 - 1
	if left < 30 {
		left = 30
	}
	right := width - left - 2
	if right < 30 {
		right = 30
	}
	gap := lipgloss.NewStyle().Width(2).Render(" ")
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderPhaseList(left), gap, m.renderPhaseDetails(right))
}

func (m *model) renderPhaseList(width int) string {
	focused := m.focus == focusPhases
	items := make([]string, 0, len(m.order))
	for idx, id := range m.order {
		state := m.phases[id]
		if state == nil {
			continue
		}
		items = append(items, m.phaseItemView(state, idx == m.selectedPhase, focused))
	}
	if len(items) == 0 {
		items = append(items, disabledTextStyle.Render("No phases yet"))
	}
	style := styleForWidth(listPanelStyle, width)
	if focused {
		style = style.Copy().BorderForeground(activeBorderColor)
	}
	return style.Render(strings.Join(items, "\n"))
}

func (m *model) phaseItemView(state *phaseState, selected, focused bool) string {
	icon := statusIcons[state.status]
	if state.status == statusRunning {
		icon = m.spinner.View()
	}
	label := fmt.Sprintf("%s %s", icon, state.meta.Title)
	if state.status == statusFailed && state.err != nil {
		label = fmt.Sprintf("%s (%s)", label, state.err.Severity)
	}
	if n := len(state.warnings); n > 0 {
		label = fmt.Sprintf("%s ⚠%d", label, n)
	}

	style := statusStyles[state.status]
	if selected {
		style = style.Copy().Bold(true)
		if focused {
			style = style.Copy().Underline(true).Foreground(activeBorderColor)
		}
	}
	return style.Render(label)
}

func (m *model) renderPhaseDetails(width int) string {
	state := m.currentPhaseState()
	if state == nil {
		return styleForWidth(detailPanelStyle, width).Render("No phase selected")
	}

	status := fmt.Sprintf("Status: %s", statusDisplay(state.status))
	if state.duration > 0 {
		status += fmt.Sprintf(" in %s", state.duration.Round(time.Millisecond))
	}
	body := []string{
		detailTitleStyle.Render(state.meta.Title),
		infoTextStyle.Render(state.meta.Description),
		infoTextStyle.Render(fmt.Sprintf("Severity: %s", state.meta.Severity)),
		infoTextStyle.Render(status),
	}

	for _, w := range state.warnings {
		body = append(body, warnTextStyle.Render("Warning: "+m.redactSecrets(w)))
	}

	if ie := state.err; ie != nil {
		body = append(body, errorTextStyle.Render("Error: "+m.redactSecrets(ie.Message)))
		if ie.Advice != "" {
			body = append(body, adviceTextStyle.Render("Advice: "+ie.Advice))
		}
		if cmd := ie.Command; cmd != nil {
			body = append(body, logTextStyle.Render(fmt.Sprintf("Command: %s (exit %d)", m.redactSecrets(cmd.Command), cmd.ExitCode)))
			if tail := lastLines(cmd.Stderr, outputTail); tail != "" {
				body = append(body, logTextStyle.Render(m.redactSecrets(tail)))
			}
		}
	}

	if len(state.logs) > 0 {
		entries := state.logs
		if len(entries) > recentLogLines {
			entries = entries[len(entries)-recentLogLines:]
		}
		logs := logSectionStyle.Render("Recent events:")
		for _, line := range entries {
			logs += "\n" + logTextStyle.Render("• "+line)
		}
		body = append(body, logs)
	}
	return styleForWidth(detailPanelStyle, width).Render(strings.Join(body, "\n"))
}

func (m *model) renderPromptPanel() string {
	style := styleForWidth(promptPanelStyle, m.viewportWidth())
	if m.active != nil && m.focus == focusPrompt {
		style = style.Copy().BorderForeground(activeBorderColor)
	}

	if m.active == nil {
		content := "No input requested"
		if m.running {
			content = "Run in progress…"
		}
		return style.Render("Prompt\n" + content)
	}

	in := m.active.input
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt • %s\n", in.Label)
	if in.Description != "" {
		b.WriteString(in.Description)
		b.WriteString("\n")
	}
	if m.active.choice() {
		b.WriteString("Use ↑/↓, j/k, number keys. Enter to confirm.\n\n")
		b.WriteString(m.renderSelectOptions())
	} else {
		b.WriteString("> ")
		b.WriteString(m.prompt.View())
	}
	return style.Render(b.String())
}

func (m *model) renderSelectOptions() string {
	options := m.active.options
	if len(options) == 0 {
		return "No options available"
	}
	lines := make([]string, 0, len(options))
	for idx, opt := range options {
		cursor := " "
		if idx == m.selectIndex {
			cursor = ">"
		}
		label := opt.Label
		if label == "" {
			label = opt.Value
		}
		line := fmt.Sprintf("%d. %s", idx+1, label)
		if opt.Description != "" {
			line = fmt.Sprintf("%s: %s", line, opt.Description)
		}
		lines = append(lines, fmt.Sprintf("%s %s", cursor, line))
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderActionsPanel() string {
	state := m.currentPhaseState()
	if state == nil {
		return ""
	}
	hasErr := state.err != nil
	options := []string{
		actionLine("1", "Close", true),
		actionLine("2", "Copy error details", hasErr),
		actionLine("3", "Copy advice", hasErr && state.err.Advice != ""),
	}
	content := fmt.Sprintf("Actions • %s\n%s", state.meta.Title, strings.Join(options, "\n"))
	return styleForWidth(actionsPanelStyle, m.viewportWidth()).Render(content)
}

func renderHelp() string {
	help := []string{
		"Key Bindings:",
		"  ↑/↓ or j/k  Move phase selection",
		"  Enter        Submit input / open phase actions",
		"  Tab          Switch focus between phases and prompt",
		"  y / n        Answer a yes/no prompt",
		"  Esc          Cancel prompt or hide help",
		"  ?            Toggle this help",
		"  q / Ctrl+C   Quit (cancels a running installation)",
	}
	return helpStyle.Render(strings.Join(help, "\n"))
}

func (m *model) viewportWidth() int {
	if m.width > 0 {
		if m.width < 40 {
			return 40
		}
		return m.width
	}
	return 100
}

var titleCase = cases.Title(language.English)

func statusDisplay(status phaseStatus) string {
	return titleCase.String(status.String())
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func styleForWidth(base lipgloss.Style, totalWidth int) lipgloss.Style {
	style := base.Copy()
	if totalWidth <= 0 {
		return style.Width(0)
	}
	frameWidth, _ := base.GetFrameSize()
	contentWidth := totalWidth - frameWidth
	if contentWidth < 0 {
		contentWidth = 0
	}
	return style.Width(contentWidth)
}

func actionLine(key, label string, enabled bool) string {
	line := fmt.Sprintf("[%s] %s", key, label)
	if enabled {
		return infoTextStyle.Render(line)
	}
	return disabledTextStyle.Render(line + " (unavailable)")
}

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E0AAFF"))
	subtitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	listPanelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4C566A")).Padding(0, 1)
	detailPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4C566A")).Padding(0, 1)
	promptPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4C566A")).Padding(0, 1).MarginTop(1)
	actionsPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7C3AED")).Padding(0, 1).MarginTop(1)
	statusBarStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1).Background(lipgloss.Color("#312E81")).Foreground(lipgloss.Color("#E0E7FF"))
	footerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8")).Padding(0, 1).MarginTop(1)
	helpStyle         = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7C3AED")).Padding(1, 2).MarginTop(1)
	detailTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FDE047"))
	infoTextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CBD5F5"))
	warnTextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
	errorTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	adviceTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399"))
	disabledTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#475569"))
	logSectionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A5B4FC")).Bold(true)
	logTextStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#E0E7FF"))
	activeBorderColor = lipgloss.Color("#A78BFA")
)

var statusStyles = map[phaseStatus]lipgloss.Style{
	statusPending: lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8")),
	statusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("#F97316")).Bold(true),
	statusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("#34D399")),
	statusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171")),
	statusSkipped: lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B")),
}

var statusIcons = map[phaseStatus]string{
	statusPending: "•",
	statusRunning: "⟳",
	statusSuccess: "✔",
	statusFailed:  "✖",
	statusSkipped: "↷",
}
