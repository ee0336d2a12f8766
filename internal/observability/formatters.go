// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/leadscout/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxLeadsToShow is the default number of leads to display
	maxLeadsToShow = 10
	// maxTextPreview is how much lead text to show per row
	maxTextPreview = 48
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJobResult outputs the stage trace and summary for a finished job.
func (p *Printer) PrintJobResult(result *types.JobResult) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status:   %s\n", result.Status))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Leads:    %d\n", len(result.Leads)))
	sb.WriteString("\nStages:\n")

	for _, st := range result.Stages {
		line := fmt.Sprintf("  %-16s %-8s (%d attempts)", st.StageName, st.Outcome, st.Attempts)
		if st.Error != nil {
			line += fmt.Sprintf(" [%s]", st.Error.Kind)
		}
		if st.MediaRef != "" {
			line += " 📷"
		}
		sb.WriteString(line + "\n")
	}

	p.printBox(fmt.Sprintf("Job %s", result.JobID), sb.String())
}

// PrintLeads outputs a ranked table of discovered leads.
func (p *Printer) PrintLeads(leads []types.Lead) {
	if len(leads) == 0 {
		p.printBox("Leads", "No leads discovered.")
		return
	}

	var sb strings.Builder
	count := min(len(leads), maxLeadsToShow)
	for i := 0; i < count; i++ {
		lead := leads[i]
		text := lead.Text
		if len(text) > maxTextPreview {
			text = text[:maxTextPreview-3] + "..."
		}
		sb.WriteString(fmt.Sprintf("%.2f %-5s %-16s %s\n", lead.Score, lead.Category, lead.AuthorHandle, text))
		if lead.ThreadURL != "" {
			sb.WriteString(fmt.Sprintf("           %s\n", lead.ThreadURL))
		}
	}
	if len(leads) > maxLeadsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(leads)-maxLeadsToShow))
	}

	p.printBox(fmt.Sprintf("Leads (%d)", len(leads)), sb.String())
}
