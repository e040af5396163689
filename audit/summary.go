package audit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/warp/benefit-engine/generic"
	"github.com/warp/benefit-engine/report"
	"github.com/warp/benefit-engine/vr"
)

// Summary is the material for the end-of-run audit summary.
type Summary struct {
	Competency generic.Competency
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      vr.Stats
	Entries    []generic.AuditEntry
	Files      []string // source files read
	Errors     []string
}

// SummaryPath is where WriteSummaryFile writes the summary for c.
func SummaryPath(dir string, c generic.Competency) string {
	return filepath.Join(dir, "audit_summary_"+c.Slug()+".txt")
}

// WriteSummaryFile writes the summary into dir and returns its path.
func WriteSummaryFile(dir string, s Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log dir: %w", err)
	}
	path := SummaryPath(dir, s.Competency)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create audit summary: %w", err)
	}
	if err := WriteSummary(f, s); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// WriteSummary renders the human-readable summary of a run.
func WriteSummary(w io.Writer, s Summary) error {
	var b bytes.Buffer
	st := s.Stats

	fmt.Fprintf(&b, "=== VR PROCESSING REPORT ===\n")
	fmt.Fprintf(&b, "Generated: %s\n", s.FinishedAt.Format("02/01/2006 15:04:05"))
	fmt.Fprintf(&b, "Competency: %s\n\n", s.Competency)

	fmt.Fprintf(&b, "GENERAL SUMMARY:\n")
	fmt.Fprintf(&b, "- Employees processed: %d\n", st.Total)
	fmt.Fprintf(&b, "- Eligible for VR: %d\n", st.Eligible)
	fmt.Fprintf(&b, "- Excluded: %d\n", st.Ineligible)
	fmt.Fprintf(&b, "- Total value: %s\n", report.FormatBRL(st.TotalValue))
	fmt.Fprintf(&b, "- Processing time: %s\n\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))

	exclusions := map[string]int{}
	specials := map[string]int{}
	var validations, warnings []generic.AuditEntry
	for _, e := range s.Entries {
		switch e.Kind {
		case generic.AuditExclusion:
			exclusions[e.Category]++
		case generic.AuditSpecialCalculation:
			specials[e.Message]++
		case generic.AuditValidation:
			validations = append(validations, e)
		case generic.AuditWarning:
			warnings = append(warnings, e)
		}
	}

	writeCounts(&b, "EXCLUSIONS BY CATEGORY", exclusions)
	writeCounts(&b, "SPECIAL CALCULATIONS", specials)

	fmt.Fprintf(&b, "VALIDATIONS:\n")
	for _, v := range validations {
		mark := "✓"
		if !v.Passed {
			mark = "⚠"
		}
		if v.Message != "" {
			fmt.Fprintf(&b, "%s %s: %s\n", mark, v.Subject, v.Message)
		} else {
			fmt.Fprintf(&b, "%s %s\n", mark, v.Subject)
		}
	}
	b.WriteString("\n")

	if len(s.Files) > 0 {
		fmt.Fprintf(&b, "FILES PROCESSED:\n")
		for _, f := range s.Files {
			fmt.Fprintf(&b, "✓ %s\n", f)
		}
		b.WriteString("\n")
	}

	if len(warnings) > 0 {
		fmt.Fprintf(&b, "WARNINGS:\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "⚠ %s\n", w.Message)
		}
		b.WriteString("\n")
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "ERRORS:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "✗ %s\n", e)
		}
		b.WriteString("\n")
	}

	b.WriteString("=== END OF REPORT ===\n")
	_, err := w.Write(b.Bytes())
	return err
}

func writeCounts(b *bytes.Buffer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, k := range generic.SortedCategories(counts) {
		fmt.Fprintf(b, "- %s: %d employees\n", k, counts[k])
	}
	b.WriteString("\n")
}
