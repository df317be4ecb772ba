package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "nginline.dev/pkg/nginline/internal/model"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	inlinedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	unchangedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the progress program in inline mode. Other modes print directly.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := newStartConfig(options)
	if cfg.Mode() != ModeInline {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program != nil {
		return nil
	}

	program := tea.NewProgram(newProgressModel(), tea.WithOutput(t.output), tea.WithInput(nil), tea.WithContext(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)

		_, _ = program.Run()
	}()

	t.program = program
	t.done = done

	return nil
}

// Close stops the progress program and waits for its final frame.
func (t *TUI) Close(_ context.Context) {
	program, done := t.detach()
	if program == nil {
		return
	}

	program.Send(finishMsg{})
	<-done
}

func (t *TUI) detach() (*tea.Program, chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	program, done := t.program, t.done
	t.program, t.done = nil, nil

	return program, done
}

func (t *TUI) send(msg tea.Msg) bool {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program == nil {
		return false
	}

	program.Send(msg)

	return true
}

// DisplayRunInfo queues the documents of the run.
func (t *TUI) DisplayRunInfo(ctx context.Context, documents []m.Path, threads int) {
	if ctx.Err() != nil {
		return
	}

	if !t.send(runInfoMsg{documents: documents, threads: threads}) {
		t.printf("%s\n", titleStyle.Render(fmt.Sprintf("Inlining %d document(s) with %d worker(s)", len(documents), threads)))
	}
}

// DisplayStartingDocument marks a document as running.
func (t *TUI) DisplayStartingDocument(ctx context.Context, path m.Path) {
	if ctx.Err() != nil {
		return
	}

	t.send(startedMsg{path: path})
}

// DisplayReport marks a document as finished.
func (t *TUI) DisplayReport(ctx context.Context, report m.Report) {
	if ctx.Err() != nil {
		return
	}

	if !t.send(reportMsg(report)) {
		t.printf("  %s\n", renderReportLine(report))
	}
}

// DisplayDiff prints a dry-run diff above the progress view.
func (t *TUI) DisplayDiff(ctx context.Context, _ m.Path, diff string) {
	if ctx.Err() != nil || diff == "" {
		return
	}

	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Println(strings.TrimRight(diff, "\n"))
		return
	}

	t.printf("%s\n", strings.TrimRight(diff, "\n"))
}

// DisplaySummary renders the status table once the run is over.
func (t *TUI) DisplaySummary(ctx context.Context, reports []m.Report) {
	if ctx.Err() != nil {
		return
	}

	if !t.send(summaryMsg{reports: reports}) {
		t.printf("\n%s", renderSummaryTable(reports))
	}
}

// DisplayReferences prints the reference table under a styled title.
func (t *TUI) DisplayReferences(ctx context.Context, refs []m.ReferenceInfo, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	if err != nil {
		t.printf("%s\n", failedStyle.Render("listing error: "+err.Error()))
		return err
	}

	t.printf("%s\n\n%s", titleStyle.Render("Reference properties"), renderReferenceTable(refs))

	return nil
}

// DisplayWatchEvent reports a batch of changed files.
func (t *TUI) DisplayWatchEvent(ctx context.Context, changed []m.Path) {
	if ctx.Err() != nil {
		return
	}

	t.printf("%s\n", runningStyle.Render(fmt.Sprintf("↻ %d change(s), re-inlining", len(changed))))
}

func (t *TUI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.output, format, args...)
}

type (
	runInfoMsg struct {
		documents []m.Path
		threads   int
	}
	startedMsg struct{ path m.Path }
	reportMsg  m.Report
	summaryMsg struct{ reports []m.Report }
	finishMsg  struct{}
)

type documentItem struct {
	path   m.Path
	report *m.Report
	active bool
}

// progressModel renders one line per document with a spinner for the run.
type progressModel struct {
	spinner spinner.Model
	items   []documentItem
	index   map[m.Path]int
	threads int
	summary string
	done    bool
}

func newProgressModel() *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle

	return &progressModel{spinner: sp, index: map[m.Path]int{}}
}

func (pm *progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

func (pm *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runInfoMsg:
		pm.threads = msg.threads
		for _, path := range msg.documents {
			pm.item(path)
		}

		return pm, nil

	case startedMsg:
		pm.items[pm.item(msg.path)].active = true
		return pm, nil

	case reportMsg:
		report := m.Report(msg)
		idx := pm.item(report.Path)
		pm.items[idx].active = false
		pm.items[idx].report = &report

		return pm, nil

	case summaryMsg:
		pm.summary = renderSummaryTable(msg.reports)
		return pm, nil

	case finishMsg:
		pm.done = true
		return pm, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			pm.done = true
			return pm, tea.Quit
		}

		return pm, nil

	case spinner.TickMsg:
		if pm.done {
			return pm, nil
		}

		var cmd tea.Cmd
		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd
	}

	return pm, nil
}

func (pm *progressModel) item(path m.Path) int {
	if idx, ok := pm.index[path]; ok {
		return idx
	}

	pm.index[path] = len(pm.items)
	pm.items = append(pm.items, documentItem{path: path})

	return len(pm.items) - 1
}

func (pm *progressModel) finished() int {
	n := 0

	for _, item := range pm.items {
		if item.report != nil {
			n++
		}
	}

	return n
}

func (pm *progressModel) View() string {
	var b strings.Builder

	header := fmt.Sprintf("Inlining %d/%d document(s) with %d worker(s)", pm.finished(), len(pm.items), pm.threads)
	if pm.done {
		header = "done: " + header
	} else {
		header = pm.spinner.View() + " " + header
	}

	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	for _, item := range pm.items {
		switch {
		case item.report != nil:
			fmt.Fprintf(&b, "  %s\n", renderReportLine(*item.report))
		case item.active:
			fmt.Fprintf(&b, "  %s %s\n", runningStyle.Render(fmt.Sprintf("%9s", "running")), item.path)
		default:
			fmt.Fprintf(&b, "  %s %s\n", unchangedStyle.Render(fmt.Sprintf("%9s", "queued")), item.path)
		}
	}

	if pm.summary != "" {
		b.WriteString("\n")
		b.WriteString(pm.summary)
	}

	return b.String()
}

func renderReportLine(report m.Report) string {
	label := fmt.Sprintf("%9s", report.Status.String())

	switch report.Status {
	case m.Inlined:
		return fmt.Sprintf("%s %s (%d)", inlinedStyle.Render(label), report.Path, report.Replacements)
	case m.Failed:
		return fmt.Sprintf("%s %s: %v", failedStyle.Render(label), report.Path, report.Err)
	default:
		return fmt.Sprintf("%s %s", unchangedStyle.Render(label), report.Path)
	}
}
