package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rusenback/dockergate/internal/model"
	"github.com/rusenback/dockergate/internal/redact"
)

var (
	// Log level patterns
	errorPattern   = regexp.MustCompile(`(?i)\b(error|err|fatal|fail|failed|exception|panic)\b`)
	warningPattern = regexp.MustCompile(`(?i)\b(warn|warning|caution)\b`)
	infoPattern    = regexp.MustCompile(`(?i)\b(info|information)\b`)
	debugPattern   = regexp.MustCompile(`(?i)\b(debug|trace)\b`)

	urlPattern = regexp.MustCompile(`https?://[^\s]+`)

	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")) // Dim gray

	errorLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")) // Red
	warningLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")) // Orange
	infoLogStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")) // Blue
	debugLogStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")) // Dim
	defaultLogStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4")) // Normal

	redactedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")) // Yellow
	urlStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#89DCEB")) // Cyan
)

// styleLogLine renders one received line: dimmed receive time, then the text
// colored by its apparent level.
func styleLogLine(line model.LogLine, maxWidth int) string {
	timestamp := timestampStyle.Render(line.Received.Format("15:04:05"))

	message := strings.TrimRight(line.Text, "\r")
	if overhead := lipgloss.Width(timestamp) + 4; maxWidth > overhead && len([]rune(message)) > maxWidth-overhead {
		message = string([]rune(message)[:maxWidth-overhead]) + "..."
	}

	var style lipgloss.Style
	switch {
	case errorPattern.MatchString(message):
		style = errorLogStyle
	case warningPattern.MatchString(message):
		style = warningLogStyle
	case infoPattern.MatchString(message):
		style = infoLogStyle
	case debugPattern.MatchString(message):
		style = debugLogStyle
	default:
		style = defaultLogStyle
	}

	return timestamp + " " + styleMessage(message, style)
}

// styleMessage applies the base style and highlights masked endpoints and URLs
func styleMessage(message string, baseStyle lipgloss.Style) string {
	var b strings.Builder
	for i, part := range strings.Split(message, redact.Token) {
		if i > 0 {
			b.WriteString(redactedStyle.Render(redact.Token))
		}
		b.WriteString(highlightURLs(part, baseStyle))
	}
	return b.String()
}

func highlightURLs(text string, baseStyle lipgloss.Style) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			b.WriteString(baseStyle.Render(text[last:loc[0]]))
		}
		b.WriteString(urlStyle.Render(text[loc[0]:loc[1]]))
		last = loc[1]
	}
	if last < len(text) {
		b.WriteString(baseStyle.Render(text[last:]))
	}
	return b.String()
}
