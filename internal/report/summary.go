package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/swhidcheck/swhidcheck/internal/consensus"
	"github.com/swhidcheck/swhidcheck/internal/model"
	"github.com/swhidcheck/swhidcheck/pkg/diff"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// ColorEnabled reports whether styled output is appropriate for f: a
// terminal, with NO_COLOR unset.
func ColorEnabled(f *os.File) bool {
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(f.Fd()))
}

// WriteSummary renders the closing terminal summary: case totals, one tally
// line per implementation, then every case that failed or split with a
// character diff against the agreed identifier.
func WriteSummary(w io.Writer, rec *Record, color bool) {
	p := printer{color: color}
	sections := []string{
		p.render(titleStyle, fmt.Sprintf("swhidcheck run %s", rec.Run.ID)),
		p.caseLine(rec),
		p.implementationTable(rec),
	}
	if failing := p.divergingCases(rec); failing != "" {
		sections = append(sections, p.render(headerStyle, "Diverging cases"), failing)
	}
	fmt.Fprintln(w, strings.Join(sections, "\n\n"))
}

type printer struct {
	color bool
}

func (p printer) render(st lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return st.Render(s)
}

func (p printer) caseLine(rec *Record) string {
	order := []consensus.CaseStatus{
		consensus.StatusConformant,
		consensus.StatusAgreement,
		consensus.StatusDisagreement,
		consensus.StatusFail,
		consensus.StatusSkipped,
	}
	var parts []string
	for _, st := range order {
		n := rec.Aggregates.Cases[st]
		if n == 0 {
			continue
		}
		parts = append(parts, p.render(statusStyle(st), fmt.Sprintf("%d %s", n, st)))
	}
	line := fmt.Sprintf("%d cases", len(rec.Tests))
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, ", ")
	}
	return line
}

func statusStyle(s consensus.CaseStatus) lipgloss.Style {
	switch s {
	case consensus.StatusConformant, consensus.StatusAgreement:
		return passStyle
	case consensus.StatusDisagreement, consensus.StatusFail:
		return failStyle
	default:
		return skippedStyle
	}
}

func (p printer) implementationTable(rec *Record) string {
	available := make(map[string]bool, len(rec.Implementations))
	ids := make([]string, 0, len(rec.Implementations))
	width := len("IMPLEMENTATION")
	for _, impl := range rec.Implementations {
		ids = append(ids, impl.ID)
		available[impl.ID] = impl.Available
		if len(impl.ID) > width {
			width = len(impl.ID)
		}
	}
	sort.Strings(ids)

	lines := []string{
		p.render(headerStyle, fmt.Sprintf("%-*s  %7s  %7s  %8s  %8s",
			width, "IMPLEMENTATION", "PASSED", "FAILED", "SKIPPED", "ERRORED")),
	}
	for _, id := range ids {
		if !available[id] {
			lines = append(lines, p.render(dimStyle, fmt.Sprintf("%-*s  unavailable", width, id)))
			continue
		}
		t := rec.Aggregates.ByImplementation[id]
		line := fmt.Sprintf("%-*s  %7d  %7d  %8d  %8d",
			width, id, t.Passed, t.Failed, t.Skipped, t.Errored)
		if t.Failed > 0 || t.Errored > 0 {
			line = p.render(failStyle, line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (p printer) divergingCases(rec *Record) string {
	var lines []string
	for _, tc := range rec.Tests {
		if tc.Outcome.Status != consensus.StatusFail && tc.Outcome.Status != consensus.StatusDisagreement {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s %s (%s) %s",
			p.render(failStyle, "✗"), tc.ID, tc.Variant, tc.Outcome.Status))
		expected := expectedIdentifier(tc)
		for _, r := range tc.Results {
			detail := resultDetail(r, expected)
			if detail == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("      %s: %s", r.Implementation, detail))
		}
	}
	return strings.Join(lines, "\n")
}

// expectedIdentifier picks the value failures are diffed against: the pinned
// golden first, then whatever the run agreed on.
func expectedIdentifier(tc CaseRecord) string {
	if tc.Expected != nil && tc.Expected.Value != "" {
		return tc.Expected.Value
	}
	return tc.Outcome.Consensus
}

func resultDetail(r model.Result, expected string) string {
	switch r.Status {
	case model.StatusFail:
		if expected != "" && r.Identifier != "" {
			if d := diff.Text(expected, r.Identifier); d != "" {
				return d
			}
		}
		if r.Identifier != "" {
			return r.Identifier
		}
		if r.Error != nil {
			return fmt.Sprintf("%s: %s", r.Error.Kind, r.Error.Message)
		}
		return "failed"
	case model.StatusError:
		if r.Error != nil {
			return fmt.Sprintf("%s: %s", r.Error.Kind, r.Error.Message)
		}
		return "error"
	default:
		return ""
	}
}
