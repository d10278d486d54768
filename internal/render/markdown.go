package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"articleforge/internal/pipeline"
)

// DefaultReportDir is used when no output directory is given
const DefaultReportDir = "reports"

// MarkdownReport renders a batch run as a markdown document
func MarkdownReport(r *pipeline.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Enhancement Run - %s\n\n", r.StartedAt.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Run `%s` took %s.\n\n", r.RunID, r.Duration.Round(time.Second))

	b.WriteString("| Originals | Enhanced | Skipped | Failed |\n")
	b.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", r.Total, r.Succeeded, r.Skipped, r.Failed)

	if r.Canceled {
		b.WriteString("> The run was canceled before every article was processed.\n\n")
	}

	if len(r.Items) == 0 {
		b.WriteString("No original articles were found.\n")
		return b.String()
	}

	for i, item := range r.Items {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, item.Title)
		fmt.Fprintf(&b, "- **Status:** %s\n", item.Outcome.Status)
		fmt.Fprintf(&b, "- **Original:** `%s`\n", item.ArticleID)
		if item.Outcome.NewArticleID != "" {
			fmt.Fprintf(&b, "- **Enhanced:** `%s`\n", item.Outcome.NewArticleID)
		}
		if item.Outcome.Status != pipeline.StatusEnhanced && item.Outcome.Err != nil {
			fmt.Fprintf(&b, "- **Reason:** %s\n", item.Outcome.Err)
		}
		for j, ref := range item.Outcome.References {
			fmt.Fprintf(&b, "\n[^%d-%d]: [%s](%s)\n", i+1, j+1, ref.Title, ref.URL)
		}
		b.WriteString("\n---\n\n")
	}
	return b.String()
}

// WriteReport writes the markdown report of a batch run into outputDir and returns its path
func WriteReport(r *pipeline.Report, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = DefaultReportDir
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	runID := r.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	filename := fmt.Sprintf("enhance_%s_%s.md", r.StartedAt.UTC().Format("2006-01-02"), runID)
	filePath := filepath.Join(outputDir, filename)

	if err := os.WriteFile(filePath, []byte(MarkdownReport(r)), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file %s: %w", filePath, err)
	}
	return filePath, nil
}
