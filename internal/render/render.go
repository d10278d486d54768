// Package render formats enhancement and scrape results for the terminal and for report files
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"articleforge/internal/ingest"
	"articleforge/internal/pipeline"
)

var (
	successColor = lipgloss.Color("#8BC34A")
	warningColor = lipgloss.Color("#FFC107")
	errorColor   = lipgloss.Color("#e53935")
	mutedColor   = lipgloss.Color("#8a94a6")

	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(mutedColor).Width(12)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

func statusStyle(status pipeline.Status) lipgloss.Style {
	switch status {
	case pipeline.StatusEnhanced:
		return lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case pipeline.StatusSkipped:
		return lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	}
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// Outcome renders a single enhancement result as a boxed report
func Outcome(o pipeline.Outcome) string {
	rows := []string{
		headerStyle.Render("Article Enhancement"),
		"",
		row("Status", statusStyle(o.Status).Render(strings.ToUpper(string(o.Status)))),
		row("Article", o.ArticleID),
	}
	if o.Title != "" {
		rows = append(rows, row("Title", o.Title))
	}

	switch o.Status {
	case pipeline.StatusEnhanced:
		rows = append(rows, row("Enhanced", o.NewArticleID))
		rows = append(rows, row("References", fmt.Sprintf("%d", len(o.References))))
		for i, ref := range o.References {
			rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %d. %s (%s)", i+1, ref.Title, ref.Source)))
		}
	default:
		if o.Stage != "" {
			rows = append(rows, row("Stage", string(o.Stage)))
		}
		if o.Err != nil {
			rows = append(rows, row("Reason", o.Err.Error()))
		}
	}
	rows = append(rows, row("Duration", o.Duration.Round(time.Millisecond).String()))

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// Batch renders a batch run summary followed by one line per attempted article
func Batch(r *pipeline.Report) string {
	if r == nil {
		return ""
	}

	summary := []string{
		headerStyle.Render("Batch Enhancement"),
		"",
		row("Run", r.RunID),
		row("Originals", fmt.Sprintf("%d", r.Total)),
		row("Enhanced", statusStyle(pipeline.StatusEnhanced).Render(fmt.Sprintf("%d", r.Succeeded))),
		row("Skipped", statusStyle(pipeline.StatusSkipped).Render(fmt.Sprintf("%d", r.Skipped))),
		row("Failed", statusStyle(pipeline.StatusFailed).Render(fmt.Sprintf("%d", r.Failed))),
		row("Duration", r.Duration.Round(time.Millisecond).String()),
	}
	if r.Canceled {
		summary = append(summary, statusStyle(pipeline.StatusSkipped).Render("Canceled before all articles were processed"))
	}

	var lines []string
	for _, item := range r.Items {
		if item.Outcome.Status == pipeline.StatusSkipped && item.Outcome.Stage == pipeline.StageGuard {
			continue
		}
		mark := statusStyle(item.Outcome.Status).Render(fmt.Sprintf("%-8s", item.Outcome.Status))
		lines = append(lines, fmt.Sprintf("%s %s", mark, item.Title))
		if item.Outcome.Status == pipeline.StatusFailed {
			lines = append(lines, mutedStyle.Render("         "+item.Outcome.Message()))
		}
	}

	out := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, summary...))
	if len(lines) > 0 {
		out += "\n" + strings.Join(lines, "\n")
	}
	return out
}

// Scrape renders an ingest run summary
func Scrape(r *ingest.Result) string {
	if r == nil {
		return ""
	}

	rows := []string{
		headerStyle.Render("Blog Import"),
		"",
		row("Discovered", fmt.Sprintf("%d", r.Discovered)),
		row("Saved", statusStyle(pipeline.StatusEnhanced).Render(fmt.Sprintf("%d", r.Saved))),
		row("Existing", statusStyle(pipeline.StatusSkipped).Render(fmt.Sprintf("%d", r.Existing))),
		row("Failed", statusStyle(pipeline.StatusFailed).Render(fmt.Sprintf("%d", r.Failed))),
		row("Duration", r.Duration.Round(time.Millisecond).String()),
	}
	if len(r.Items) > 0 {
		rows = append(rows, "")
	}
	for i, item := range r.Items {
		title := item.Title
		if title == "" {
			title = item.URL
		}
		date := "no date"
		if item.PublishDate != nil {
			date = item.PublishDate.Format("2006-01-02")
		}
		rows = append(rows, fmt.Sprintf("%d. %s %s", i+1, title, mutedStyle.Render("("+date+", "+string(item.Status)+")")))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
