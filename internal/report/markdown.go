package report

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/internal/metadata"
	"github.com/aretw0/strata/internal/tags"
	"github.com/aretw0/strata/pkg/domain"
)

// Markdown renders the distribution as one table per weight bucket.
func (d *Distribution) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Distribution\n\n%d tokens analyzed.\n\n", d.Tokens)
	for _, b := range d.Buckets {
		title := domain.Beautify(b.Category)
		if b.Context != "" {
			title += " [" + metadata.BeautifyContext(domain.ParseContextPath(b.Context)) + "]"
		}
		fmt.Fprintf(&sb, "## %s\n\n%d draws.\n\n", title, b.Draws)
		sb.WriteString("| Value | Weight | Actual | Expected | Error |\n|---|---|---|---|---|\n")
		for _, r := range b.Rows {
			errCol := "-"
			if r.Expected > 0 {
				errCol = fmt.Sprintf("%.2f%%", r.ErrorPct)
			}
			fmt.Fprintf(&sb, "| %s | %g | %d | %.2f | %s |\n", domain.Beautify(r.Value), r.Weight, r.Actual, r.Expected, errCol)
		}
		sb.WriteString("\n")
	}
	if d.Summary.Rows > 0 {
		s := d.Summary
		sb.WriteString("## Summary\n\n| Rows | Mean error | Median error | Std dev | Max error |\n|---|---|---|---|---|\n")
		fmt.Fprintf(&sb, "| %d | %.2f%% | %.2f%% | %.2f | %.2f%% |\n", s.Rows, s.Mean, s.Median, s.StdDev, s.Max)
	}
	return sb.String()
}

// DuplicatesMarkdown renders a duplicate audit.
func DuplicatesMarkdown(dups []Duplicate) string {
	if len(dups) == 0 {
		return "# Duplicates\n\nNo duplicates found.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Duplicates\n\n%d duplicates found.\n\n| Token | Duplicate of |\n|---|---|\n", len(dups))
	for _, d := range dups {
		fmt.Fprintf(&sb, "| #%d | #%d |\n", d.TokenID, d.DuplicateOf)
	}
	return sb.String()
}

// CoverageMarkdown renders tag coverage per group and category.
func CoverageMarkdown(cov []tags.GroupCoverage) string {
	if len(cov) == 0 {
		return "# Tag coverage\n\nNo tag groups configured.\n"
	}
	var sb strings.Builder
	sb.WriteString("# Tag coverage\n\n| Group | Trait | Total | Covered | Complete | Missing |\n|---|---|---|---|---|---|\n")
	for _, c := range cov {
		complete := "no"
		if c.Complete {
			complete = "yes"
		}
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %s | %s |\n",
			c.Group, c.Category, c.Total, c.Covered, complete, strings.Join(c.Missing, ", "))
	}
	return sb.String()
}
