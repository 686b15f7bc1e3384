package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/typetrace/typetrace/internal/analysis"
	"github.com/typetrace/typetrace/internal/index"
)

// WriteBindingsTable renders the binding index as a terminal table.
func WriteBindingsTable(w io.Writer, records []index.BindingRecord, includeBuiltins bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"QNAME", "KIND", "TYPE", "LOCATION", "REFS"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetColumnSeparator("  ")

	for _, r := range records {
		if r.Builtin && !includeBuiltins {
			continue
		}
		loc := "builtin"
		if r.File != "" {
			loc = fmt.Sprintf("%s:%d", r.File, r.Start)
		}
		table.Append([]string{r.QName, r.Kind, r.Type, loc, fmt.Sprintf("%d", r.RefCount)})
	}
	table.Render()
}

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B82F6")).
				Bold(true)

	summaryOKStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	summaryWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FBBF24")).
				Bold(true)

	summaryDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))
)

// Summary aggregates one analysis pass for the terminal.
type Summary struct {
	Root        string
	Files       int
	Bindings    int
	References  int
	Called      int
	Diagnostics int
	Duration    time.Duration
}

func BuildSummary(root string, a *analysis.Analyzer, duration time.Duration) Summary {
	diags := 0
	for _, d := range a.Problems() {
		diags += len(d)
	}
	for _, d := range a.FileProblems() {
		diags += len(d)
	}
	return Summary{
		Root:        root,
		Files:       len(a.LoadedFiles()),
		Bindings:    len(a.AllBindings()),
		References:  len(a.References()),
		Called:      a.CalledFunctions(),
		Diagnostics: diags,
		Duration:    duration,
	}
}

// Print writes the styled one-screen summary.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, summaryTitleStyle.Render("typetrace"), summaryDimStyle.Render(s.Root))
	fmt.Fprintf(w, "  %s analyzed in %s\n",
		summaryOKStyle.Render(fmt.Sprintf("%d files", s.Files)),
		s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  %d bindings, %d references, %d functions called\n",
		s.Bindings, s.References, s.Called)
	if s.Diagnostics > 0 {
		fmt.Fprintf(w, "  %s\n", summaryWarnStyle.Render(fmt.Sprintf("%d diagnostics", s.Diagnostics)))
	} else {
		fmt.Fprintf(w, "  %s\n", summaryOKStyle.Render("no diagnostics"))
	}
}
