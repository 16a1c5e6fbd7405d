package report

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/apiprobe/internal/store"
)

// History writes a table of past runs, newest first as given.
func (p *Printer) History(runs []store.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(p.Out, "no runs recorded")
		return err
	}

	tw := tabwriter.NewWriter(p.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSCORE\tVERDICT\tFAILED")
	for _, r := range runs {
		failed := "-"
		if len(r.Failed) > 0 {
			failed = strings.Join(r.Failed, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\n",
			r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.ReadinessScore, r.Verdict, failed)
	}
	return tw.Flush()
}

// SuiteHistory writes the past outcomes of one suite.
func (p *Printer) SuiteHistory(name string, entries []store.SuiteHistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintf(p.Out, "no runs recorded for %s\n", name)
		return err
	}

	tw := tabwriter.NewWriter(p.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tRESULT\tERROR")
	for _, e := range entries {
		result, detail := "pass", "-"
		if !e.Passed {
			result = "fail"
		}
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.RunID, e.StartedAt.UTC().Format(time.RFC3339), result, detail)
	}
	return tw.Flush()
}
