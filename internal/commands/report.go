// internal/commands/report.go
package prefbench

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
	"github.com/mwiater/prefbench/internal/aggregate"
	"github.com/mwiater/prefbench/internal/results"
)

var (
	strongScore = color.New(color.FgGreen).SprintFunc()
	middleScore = color.New(color.FgYellow).SprintFunc()
	weakScore   = color.New(color.FgRed).SprintFunc()
	heading     = color.New(color.Bold).SprintFunc()
)

// scoreColor colors a 0-100 score.
func scoreColor(score float64) string {
	text := fmt.Sprintf("%.2f", score)
	switch {
	case score >= 70:
		return strongScore(text)
	case score >= 50:
		return middleScore(text)
	default:
		return weakScore(text)
	}
}

func orNone(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// renderSummary prints the run header, the per-subset accuracy table and
// the section scores when the summary carries them.
func renderSummary(out io.Writer, summary results.Summary) {
	fmt.Fprintln(out, heading(summary.Model))
	fmt.Fprintf(out, "  Tokenizer:     %s\n", summary.Tokenizer)
	fmt.Fprintf(out, "  Ref model:     %s\n", orNone(summary.RefModel))
	fmt.Fprintf(out, "  Chat template: %s\n", orNone(summary.ChatTemplate))
	fmt.Fprintf(out, "  Prompts:       %d\n", summary.NumPrompts)
	fmt.Fprintf(out, "  Accuracy:      %s\n", scoreColor(summary.Accuracy*100))

	if len(summary.ExtraResults) > 0 {
		subsets := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
			Headers("Subset", "Accuracy")
		for _, name := range aggregate.SortedKeys(summary.ExtraResults) {
			subsets.Row(name, fmt.Sprintf("%.4f", summary.ExtraResults[name]))
		}
		fmt.Fprintln(out, subsets.Render())
	}

	if len(summary.SectionResults) > 0 {
		sections := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))).
			Headers("Section", "Score")
		for _, name := range aggregate.SortedKeys(summary.SectionResults) {
			sections.Row(name, scoreColor(summary.SectionResults[name]))
		}
		sections.Row("Mean", scoreColor(summary.SectionResultsMean))
		fmt.Fprintln(out, sections.Render())
	}
}
