package main

import (
	"fmt"
	"io"
	"strings"

	"officeapp/internal/update"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

// printCheckSummary prints the result of an update check.
func printCheckSummary(w io.Writer, check update.CheckResult, format string, width int) {
	appStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor)

	versionStyle := lipgloss.NewStyle().
		Foreground(dimColor)

	header := appStyle.Render("OfficeApp") + versionStyle.Render(fmt.Sprintf(" v%s", check.CurrentVersion))
	render := buildMarkdownRenderer(format, width)

	_, _ = fmt.Fprintln(w, header)
	_, _ = fmt.Fprintln(w, render(checkSummaryMarkdown(check)))
}

func checkSummaryMarkdown(check update.CheckResult) string {
	var b strings.Builder
	if !check.HasUpdate {
		b.WriteString("## Up to date\n\n")
		fmt.Fprintf(&b, "- Installed: `%s`\n", check.CurrentVersion)
		return b.String()
	}

	b.WriteString("## Update available\n\n")
	fmt.Fprintf(&b, "- Installed: `%s`\n", check.CurrentVersion)
	fmt.Fprintf(&b, "- Available: `%s`\n", check.AvailableVersion)
	if check.LocalIsNewer {
		b.WriteString("\nThe release recorded on the server is older than this build. ")
		b.WriteString("Updating will replace it with the server release.\n")
	}
	return b.String()
}

// buildMarkdownRenderer returns a renderer for the requested output format.
// "plain" and renderer failures fall back to word-wrapped source text.
func buildMarkdownRenderer(format string, width int) func(string) string {
	fallback := func(input string) string {
		return strings.TrimSpace(wordwrap.String(input, width))
	}

	style := strings.ToLower(strings.TrimSpace(format))
	if style == "plain" {
		return fallback
	}
	if style == "" || style == "rich" {
		style = defaultMarkdownStyle()
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}

func defaultMarkdownStyle() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
