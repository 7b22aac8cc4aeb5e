package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cwbudde/algo-declick/declick/ratelimit"
)

var (
	accentColor = lipgloss.Color("#D7875F")
	mutedColor  = lipgloss.Color("#888888")
	textColor   = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

func printError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", errorStyle.Render("Error:"), message)
}

func printSummary(cli *CLI, s *summary) {
	if s == nil {
		return
	}
	fmt.Println(renderSummary(cli, s))
}

func renderSummary(cli *CLI, s *summary) string {
	row := func(k, v string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(k), valueStyle.Render(v))
	}

	rows := []string{
		titleStyle.Render("declick " + version),
		row("Input", cli.Input),
		row("Output", cli.Output),
		row("Audio", fmt.Sprintf("%d samples (%s)", s.samples, s.duration.Round(time.Millisecond))),
		row("Enabled", fmt.Sprintf("%t", s.enabled)),
		row("Parameters", s.params),
		row("Analyzed", fmt.Sprintf("%d of %d ticks", s.stats.Analyzed, s.stats.Ticks)),
		row("Clicks", fmt.Sprintf("%d detected, %d repaired", s.stats.Clicks, s.stats.Emitted)),
	}

	if r := rejected(s.stats.Rejected); r != "" {
		rows = append(rows, row("Rejected", r))
	}
	if s.stats.Fallbacks > 0 {
		rows = append(rows, row("Fallbacks", fmt.Sprint(s.stats.Fallbacks)))
	}
	if s.stats.Faults > 0 {
		rows = append(rows, row("Faults", fmt.Sprint(s.stats.Faults)))
	}
	rows = append(rows, row("Elapsed", s.elapsed.Round(time.Millisecond).String()))

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func rejected(m map[ratelimit.Reason]int) string {
	reasons := make([]ratelimit.Reason, 0, len(m))
	for r, n := range m {
		if n > 0 {
			reasons = append(reasons, r)
		}
	}
	slices.Sort(reasons)

	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", r, m[r])
	}
	return strings.Join(parts, " ")
}
