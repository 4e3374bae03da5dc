package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/zwy923/easyEmail/internal/jobs"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
// Method form of statusf — avoids threading `quiet bool` through call chains.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// progressPrinter renders job progress. On a terminal it maintains a single
// rewriting line; otherwise it emits plain lines so output stays readable
// in pipes and logs.
type progressPrinter struct {
	label   string
	out     io.Writer
	tty     bool
	quiet   bool
	lastLen int
}

// newProgressPrinter creates a printer labeled with the job description,
// e.g. "fetch 42".
func newProgressPrinter(label string, quiet bool) *progressPrinter {
	return &progressPrinter{
		label: label,
		out:   os.Stderr,
		tty:   isatty.IsTerminal(os.Stderr.Fd()),
		quiet: quiet,
	}
}

// plain disables the in-place terminal rewrite. Required when several
// printers write to the same stream concurrently: rewriting would interleave
// their carriage returns into garbage.
func (p *progressPrinter) plain() *progressPrinter {
	p.tty = false
	return p
}

// Update renders one status snapshot.
func (p *progressPrinter) Update(st jobs.Status) {
	if p.quiet {
		return
	}

	p.write(formatProgress(p.label, st))
}

// Finish renders the final outcome line and terminates the rewriting line.
func (p *progressPrinter) Finish(outcome jobs.Outcome) {
	if p.quiet {
		return
	}

	line := fmt.Sprintf("%s: done", p.label)
	if !outcome.Success {
		line = fmt.Sprintf("%s: %s", p.label, strings.ToLower(string(outcome.Final.State)))
		if outcome.Final.Err != "" {
			line += ": " + outcome.Final.Err
		}
	}

	if counters := formatCounters(outcome.Final.Counters); counters != "" {
		line += " (" + counters + ")"
	}

	p.write(line)

	if p.tty {
		fmt.Fprintln(p.out)
		p.lastLen = 0
	}
}

// write emits one line, rewriting in place on a terminal.
func (p *progressPrinter) write(line string) {
	if !p.tty {
		fmt.Fprintln(p.out, line)
		return
	}

	// Pad with spaces to scrub leftovers from a longer previous line.
	pad := p.lastLen - len(line)
	if pad < 0 {
		pad = 0
	}

	fmt.Fprintf(p.out, "\r%s%s", line, strings.Repeat(" ", pad))
	p.lastLen = len(line)
}

// formatProgress builds the transient progress line for a status snapshot.
func formatProgress(label string, st jobs.Status) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s", label, strings.ToLower(string(st.State)))

	if st.Total > 0 {
		fmt.Fprintf(&b, " %d/%d (%d%%)", st.Current, st.Total, st.Percent)
	}

	if counters := formatCounters(st.Counters); counters != "" {
		fmt.Fprintf(&b, " [%s]", counters)
	}

	return b.String()
}

// formatCounters renders progress counters in deterministic order,
// e.g. "error=1 new=12 skipped=3". Zero counters are omitted.
func formatCounters(counters map[string]int) string {
	if len(counters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(counters))
	for k, v := range counters {
		if v != 0 {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", strings.TrimSuffix(k, "_count"), counters[k]))
	}

	return strings.Join(parts, " ")
}
