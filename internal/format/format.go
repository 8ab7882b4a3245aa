// Package format renders tracker data for Discord: timestamp markdown, the
// list and stats bodies, the ASCII bar chart and the reminder DM.
package format

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"hiretrack/internal/db"
	"hiretrack/internal/tracker"
)

// chartWidth is the maximum bar width, in characters, of the ASCII chart.
const chartWidth = 40

// DiscordTimestamp renders ts as Discord timestamp markdown, e.g. style "f"
// for a short datetime and "R" for relative time.
func DiscordTimestamp(ts int64, style string) string {
	return fmt.Sprintf("<t:%d:%s>", ts, style)
}

// ASCIIBarChart renders label counts as a fenced code block bar chart,
// largest first.
func ASCIIBarChart(data map[string]int, title string) string {
	if len(data) == 0 {
		return fmt.Sprintf("**%s**\n```\nNo data available\n```", title)
	}

	maxValue := 0
	for _, v := range data {
		if v > maxValue {
			maxValue = v
		}
	}
	if maxValue == 0 {
		return fmt.Sprintf("**%s**\n```\nNo applications found\n```", title)
	}

	type entry struct {
		label string
		count int
	}
	entries := make([]entry, 0, len(data))
	for label, count := range data {
		entries = append(entries, entry{label, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].label < entries[j].label
	})

	lines := []string{title, strings.Repeat("=", utf8.RuneCountInString(title)), ""}
	total := 0
	for _, e := range entries {
		// Pad by block count, not bytes; the block rune is 3 bytes wide so
		// %-*s would misalign the count column.
		blocks := e.count * chartWidth / maxValue
		bar := strings.Repeat("█", blocks) + strings.Repeat(" ", chartWidth-blocks)
		lines = append(lines, fmt.Sprintf("%10s │%s %3d", e.label, bar, e.count))
		total += e.count
	}
	lines = append(lines, "", fmt.Sprintf("Total: %d applications", total))

	return "```\n" + strings.Join(lines, "\n") + "\n```"
}

// ApplicationList renders a numbered list of applications with their
// derived stages.
func ApplicationList(apps []tracker.ApplicationSummary, title string) string {
	if len(apps) == 0 {
		return fmt.Sprintf("**%s**\n```\nNo applications found\n```", title)
	}

	lines := []string{fmt.Sprintf("**%s**", title), ""}
	for i, sum := range apps {
		line := fmt.Sprintf("%2d. **%s** - %s", i+1, sum.App.Company, sum.App.Role)
		if sum.App.Season != db.SeasonFullTime {
			line += fmt.Sprintf(" (%s)", sum.App.Season)
		}
		stageName := "Unknown"
		if sum.Current != nil {
			stageName = sum.Current.Stage
		}
		lines = append(lines, line, fmt.Sprintf("    └─ Stage: %s", stageName))
		if sum.Current != nil {
			lines = append(lines, fmt.Sprintf("    └─ Updated: %s", DiscordTimestamp(sum.Current.Date.Int64(), "f")))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// ReminderMessage builds the DM body for a due reminder.
func ReminderMessage(app *db.Application, current *db.Stage) string {
	stageName := "Unknown"
	if current != nil {
		stageName = current.Stage
	}

	var b strings.Builder
	b.WriteString("🔔 **Job Application Reminder**\n\n")
	fmt.Fprintf(&b, "**Company:** %s\n", app.Company)
	fmt.Fprintf(&b, "**Role:** %s\n", app.Role)
	if app.Season != db.SeasonFullTime {
		fmt.Fprintf(&b, "**Season:** %s\n", app.Season)
	}
	fmt.Fprintf(&b, "**Current Stage:** %s\n", stageName)
	if current != nil {
		fmt.Fprintf(&b, "**Last Updated:** %s (%s)\n",
			DiscordTimestamp(current.Date.Int64(), "f"),
			DiscordTimestamp(current.Date.Int64(), "R"))
	}
	b.WriteString("\n💡 Consider following up or updating the application status!")
	return b.String()
}

// StatsSummary renders a one-line total with a per-stage breakdown in
// pipeline order.
func StatsSummary(stats map[string]int) string {
	if len(stats) == 0 {
		return "No applications tracked yet"
	}

	total := 0
	for _, c := range stats {
		total += c
	}

	var parts []string
	for _, stage := range db.ValidStages {
		c, ok := stats[stage]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d (%.1f%%)", stage, c, float64(c)*100/float64(total)))
	}
	return fmt.Sprintf("**Total: %d** | %s", total, strings.Join(parts, " | "))
}

// Truncate shortens text to at most max runes, ellipsis included, to fit
// Discord field limits.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
