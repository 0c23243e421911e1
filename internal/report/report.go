package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gubarz/cachebust/internal/icons"
	"github.com/gubarz/cachebust/internal/rewrite"
)

// Printer writes progress and summaries for the CLI
type Printer struct {
	w      io.Writer
	styles *StyleManager
	dryRun bool
}

// NewPrinter creates a printer. A nil styles uses DefaultStyles.
func NewPrinter(w io.Writer, styles *StyleManager, dryRun bool) *Printer {
	if styles == nil {
		styles = DefaultStyles()
	}
	return &Printer{w: w, styles: styles, dryRun: dryRun}
}

// File prints the outcome for one file
func (p *Printer) File(res rewrite.FileResult) {
	name := filepath.Base(res.Path)
	if res.Insertions == 0 {
		fmt.Fprintln(p.w, p.styles.Skip.Render(fmt.Sprintf("⏭️  %s: no changes needed", name)))
		return
	}

	verb := "added"
	if p.dryRun {
		verb = "would be added"
	}
	noun := "headers"
	if res.Insertions == 1 {
		noun = "header"
	}
	fmt.Fprintln(p.w, p.styles.Success.Render(
		fmt.Sprintf("✅ %s: %d cache-busting %s %s", name, res.Insertions, noun, verb)))
}

// Summary prints the aggregate counts of a run
func (p *Printer) Summary(s *rewrite.Summary) {
	fmt.Fprintln(p.w)
	title := "📊 Summary:"
	if p.dryRun {
		title = "📊 Summary (dry run):"
	}
	fmt.Fprintln(p.w, p.styles.Title.Render(title))
	p.line("Files processed", s.Processed)
	p.line("Files modified", s.Modified)
	p.line("Headers inserted", s.Insertions)
}

func (p *Printer) line(label string, n int) {
	fmt.Fprintln(p.w, p.styles.Label.Render(label+":"), p.styles.Count.Render(fmt.Sprint(n)))
}

// Icon prints one generated icon
func (p *Printer) Icon(icon icons.Icon) {
	fmt.Fprintln(p.w, p.styles.Success.Render("✓ Generated "+filepath.Base(icon.Path)))
}

// IconsDone prints the closing line of an icon run
func (p *Printer) IconsDone() {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.styles.Title.Render("✅ PWA icons generated successfully!"))
}

// Error prints an error line
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.w, p.styles.Error.Render("❌ "+err.Error()))
}
