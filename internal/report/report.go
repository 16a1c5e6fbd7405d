// Package report renders run summaries for people and for machines.
//
// The text form prints one line per check, a closing line per suite, and a
// final verdict block. The JSON form is the RunSummary itself.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/apiprobe/internal/harness"
	"github.com/roach88/apiprobe/internal/suite"
)

// Status marks.
const (
	markPass = "✓"
	markWarn = "!"
	markFail = "✗"
)

// Printer writes text reports.
type Printer struct {
	Out io.Writer

	// Color enables ANSI colors. Leave it off for files and tests.
	Color bool

	pass, warn, fail, bold *color.Color
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, colored bool) *Printer {
	p := &Printer{
		Out:   out,
		Color: colored,
		pass:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed),
		bold:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.pass, p.warn, p.fail, p.bold} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// acronyms keeps initialisms intact when titling.
var acronyms = map[string]string{
	"api":   "API",
	"cors":  "CORS",
	"crud":  "CRUD",
	"oauth": "OAuth",
}

// Title renders a suite name for display: "rate-limit" becomes "Rate Limit".
func Title(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	caser := cases.Title(language.English)
	for i, w := range words {
		if a, ok := acronyms[strings.ToLower(w)]; ok {
			words[i] = a
			continue
		}
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// Summary writes the full text report of a run.
func (p *Printer) Summary(sum harness.RunSummary) error {
	w := &errWriter{w: p.Out}

	w.printf("%s %s\n", p.bold.Sprint("apiprobe run"), sum.RunID)
	w.printf("target:  %s\n", sum.Target)
	w.printf("started: %s\n", sum.StartedAt.UTC().Format(time.RFC3339))

	for _, r := range sum.Results {
		w.printf("\n")
		p.writeSuite(w, r)
	}

	w.printf("\n%s\n", p.bold.Sprint("Summary"))
	w.printf("  Total suites:     %d\n", sum.TotalSuites)
	w.printf("  Successful:       %d\n", sum.SuccessfulSuites)
	if failed := sum.FailedNames(); len(failed) > 0 {
		w.printf("  Failed:           %d (%s)\n", sum.FailedSuites, strings.Join(failed, ", "))
	} else {
		w.printf("  Failed:           %d\n", sum.FailedSuites)
	}
	w.printf("  Readiness score:  %.1f%%\n", sum.ReadinessScore)
	w.printf("  Duration:         %s\n", sum.Duration)
	w.printf("\n%s\n", p.verdictColor(sum.Verdict).Sprint(sum.Verdict.Describe()))
	return w.err
}

// Suite writes the section of a single suite.
func (p *Printer) Suite(r harness.SuiteResult) error {
	w := &errWriter{w: p.Out}
	p.writeSuite(w, r)
	return w.err
}

func (p *Printer) writeSuite(w *errWriter, r harness.SuiteResult) {
	w.printf("%s\n", p.bold.Sprintf("== %s ==", Title(r.Name)))
	for _, c := range r.Checks {
		w.printf("  %s\n", p.checkLine(c))
	}
	if len(r.Checks) == 0 && r.Error != "" {
		w.printf("  %s %s\n", p.fail.Sprint(markFail), r.Error)
	}
	w.printf("  %s\n", p.suiteLine(r))
}

func (p *Printer) checkLine(c suite.CheckRecord) string {
	var mark string
	switch c.Level {
	case suite.LevelPass:
		mark = p.pass.Sprint(markPass)
	case suite.LevelWarn:
		mark = p.warn.Sprint(markWarn)
	default:
		mark = p.fail.Sprint(markFail)
	}
	line := fmt.Sprintf("%s %s (%s)", mark, c.Name, c.Duration)
	if c.Message != "" {
		line += ": " + c.Message
	}
	return line
}

func (p *Printer) suiteLine(r harness.SuiteResult) string {
	status := p.pass.Sprint("PASS")
	if !r.Passed {
		status = p.fail.Sprint("FAIL")
	}
	line := fmt.Sprintf("%s %s in %s", Title(r.Name), status, r.Duration)
	if r.Warnings > 0 {
		line += fmt.Sprintf(", %d warning(s)", r.Warnings)
	}
	if !r.Passed && r.Error != "" && len(r.Checks) > 0 {
		line += ": " + r.Error
	}
	return line
}

func (p *Printer) verdictColor(v harness.Verdict) *color.Color {
	switch v {
	case harness.VerdictReady:
		return p.pass
	case harness.VerdictMinorIssues:
		return p.warn
	default:
		return p.fail
	}
}

// JSON writes the summary as indented JSON.
func JSON(w io.Writer, sum harness.RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// errWriter keeps the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
