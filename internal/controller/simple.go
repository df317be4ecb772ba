package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "nginline.dev/pkg/nginline/internal/model"
)

var (
	inlinedColor   = color.New(color.FgGreen, color.Bold)
	unchangedColor = color.New(color.FgHiBlack)
	failedColor    = color.New(color.FgRed, color.Bold)
	infoColor      = color.New(color.FgCyan)
)

// SimpleUI implements UI using cobra Command's output.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// DisplayRunInfo announces how many documents will be processed.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, documents []m.Path, threads int) {
	if ctx.Err() != nil {
		return
	}

	s.printf("%s\n", infoColor.Sprintf("Inlining %d document(s) with %d worker(s)", len(documents), threads))
}

// DisplayStartingDocument is silent for SimpleUI; results are reported on completion.
func (s *SimpleUI) DisplayStartingDocument(_ context.Context, _ m.Path) {}

// DisplayReport prints the outcome of one document.
func (s *SimpleUI) DisplayReport(ctx context.Context, report m.Report) {
	if ctx.Err() != nil {
		return
	}

	switch report.Status {
	case m.Inlined:
		s.printf("%s %s (%d replacement(s))\n", inlinedColor.Sprint(report.Status.String()), report.Path, report.Replacements)
	case m.Failed:
		s.printf("%s %s: %v\n", failedColor.Sprint(report.Status.String()), report.Path, report.Err)
	default:
		s.printf("%s %s\n", unchangedColor.Sprint(report.Status.String()), report.Path)
	}

	for _, ref := range report.Skipped {
		s.printf("  skipped missing %s\n", ref)
	}
}

// DisplayDiff prints a unified diff of a dry run.
func (s *SimpleUI) DisplayDiff(ctx context.Context, _ m.Path, diff string) {
	if ctx.Err() != nil || diff == "" {
		return
	}

	s.printf("%s", diff)

	if !strings.HasSuffix(diff, "\n") {
		s.printf("\n")
	}
}

// DisplaySummary prints a per-status table of the run.
func (s *SimpleUI) DisplaySummary(ctx context.Context, reports []m.Report) {
	if ctx.Err() != nil {
		return
	}

	s.printf("\n%s", renderSummaryTable(reports))
}

func renderSummaryTable(reports []m.Report) string {
	var (
		tableBuffer  bytes.Buffer
		counts       = map[m.Status]int{}
		replacements int
	)

	for _, report := range reports {
		counts[report.Status]++
		replacements += report.Replacements
	}

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Status", "Documents"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	for _, status := range []m.Status{m.Inlined, m.Unchanged, m.Failed} {
		table.Append([]string{status.String(), fmt.Sprintf("%d", counts[status])})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Replacements %d", replacements),
		fmt.Sprintf("%d", len(reports)),
	})

	table.Render()

	return tableBuffer.String()
}

// DisplayReferences prints the reference properties found by a listing run.
func (s *SimpleUI) DisplayReferences(ctx context.Context, refs []m.ReferenceInfo, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		s.printf("listing error: %v\n", err)
		return err
	}

	s.printf("\n%s", renderReferenceTable(refs))

	return nil
}

func renderReferenceTable(refs []m.ReferenceInfo) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Line", "Block", "Property", "Targets"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	files := map[m.Path]bool{}

	for _, ref := range refs {
		files[ref.Path] = true
		table.Append([]string{
			string(ref.Path),
			fmt.Sprintf("%d", ref.Line),
			string(ref.Block),
			ref.Property,
			strings.Join(ref.Targets, ", "),
		})
	}

	table.SetFooter([]string{fmt.Sprintf("Total Files %d", len(files)), "", "", "", fmt.Sprintf("%d", len(refs))})
	table.Render()

	return tableBuffer.String()
}

// DisplayWatchEvent reports a batch of changed files.
func (s *SimpleUI) DisplayWatchEvent(ctx context.Context, changed []m.Path) {
	if ctx.Err() != nil {
		return
	}

	s.printf("%s\n", infoColor.Sprintf("Detected %d change(s), re-inlining", len(changed)))
}

func (s *SimpleUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
