package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/internal/report"
	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/internal/tags"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
)

// InspectOptions configures the read-only project commands.
type InspectOptions struct {
	Options
	JSON bool
	// Strict turns configuration warnings into a validation failure.
	Strict bool
	// BatchID selects the ledger entries a report reads.
	BatchID string
	// TokenID highlights one token on the rule graph.
	TokenID int64
}

func openProject(ctx context.Context, opts InspectOptions) (*Stack, *runtime.Project, error) {
	cfg, logger, err := opts.load()
	if err != nil {
		return nil, nil, err
	}
	st, err := createStack(ctx, opts.Dir, cfg, logger, stackOptions{debug: opts.Debug, offline: true})
	if err != nil {
		return nil, nil, err
	}
	p, err := st.Engine.LoadProject(ctx)
	if err != nil {
		_ = st.Close(ctx)
		return nil, nil, err
	}
	return st, p, nil
}

// RunValidate loads the project and reports every configuration problem.
func RunValidate(ctx context.Context, opts InspectOptions, stdout io.Writer) error {
	st, p, err := openProject(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	warnings := p.Warnings()
	if opts.JSON {
		msgs := []string{}
		for _, w := range warnings {
			msgs = append(msgs, schema.Messages(w)...)
		}
		if err := writeJSON(stdout, map[string]any{
			"categories": p.Index.Categories(),
			"options":    p.Index.Len(),
			"rules":      len(p.Rules.Rules()),
			"tag_groups": len(p.Tags.Groups()),
			"warnings":   msgs,
		}); err != nil {
			return err
		}
	} else {
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n| Categories | Options | Rules | Tag groups |\n|---|---|---|---|\n", st.Engine.Name)
		fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n", len(p.Index.Categories()), p.Index.Len(), len(p.Rules.Rules()), len(p.Tags.Groups()))
		if len(warnings) > 0 {
			sb.WriteString("\n## Warnings\n\n")
			for _, w := range warnings {
				for _, msg := range schema.Messages(w) {
					fmt.Fprintf(&sb, "- %s\n", msg)
				}
			}
		} else {
			sb.WriteString("\nProject is valid!\n")
		}
		if err := writeMarkdown(stdout, sb.String()); err != nil {
			return err
		}
	}

	if opts.Strict && len(warnings) > 0 {
		return fmt.Errorf("%w: %d warning(s)", domain.ErrMalformedConfiguration, len(warnings))
	}
	return nil
}

// RunGraph prints the rule relations as a Mermaid flowchart.
func RunGraph(ctx context.Context, opts InspectOptions, stdout io.Writer) error {
	st, p, err := openProject(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	var overlay *graph.Overlay
	if opts.TokenID > 0 {
		md, err := st.Engine.Token(ctx, opts.TokenID)
		if err != nil {
			return err
		}
		overlay = &graph.Overlay{}
		for _, items := range report.FromMetadata(p, []*domain.TokenMetadata{md}) {
			overlay.Selected = append(overlay.Selected, items...)
		}
	}

	_, err = fmt.Fprint(stdout, graph.GenerateMermaid(p.Rules.Rules(), p.Rules.Overrides(), overlay))
	return err
}

// RunReport compares the emitted collection with the configured weights.
// With a ledger and a batch id the exact combinations are used; otherwise
// they are recovered from the persisted metadata.
func RunReport(ctx context.Context, opts InspectOptions, stdout io.Writer) error {
	st, p, err := openProject(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	var samples [][]domain.ItemKey
	if st.Ledger != nil && opts.BatchID != "" {
		entries, err := st.Ledger.Entries(ctx, opts.BatchID)
		if err != nil {
			return err
		}
		samples = report.FromLedger(entries)
	} else {
		records, err := report.Collect(ctx, st.Engine.Store())
		if err != nil {
			return err
		}
		samples = report.FromMetadata(p, records)
	}

	d, err := report.Analyze(p, samples)
	if err != nil {
		return err
	}
	if opts.JSON {
		return writeJSON(stdout, d)
	}
	return writeMarkdown(stdout, d.Markdown())
}

// RunCoverage reports how every tag group covers the categories it touches.
func RunCoverage(ctx context.Context, opts InspectOptions, stdout io.Writer) error {
	st, p, err := openProject(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	cov := p.Tags.Coverage()
	if opts.JSON {
		if cov == nil {
			cov = []tags.GroupCoverage{}
		}
		return writeJSON(stdout, cov)
	}
	return writeMarkdown(stdout, report.CoverageMarkdown(cov))
}

// RunDupes audits the collection for repeated combinations: across every
// recorded batch with a ledger, else over the persisted metadata.
func RunDupes(ctx context.Context, opts InspectOptions, stdout io.Writer) error {
	st, _, err := openProject(ctx, opts)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	var dups []report.Duplicate
	if st.Ledger != nil {
		groups, err := st.Ledger.Duplicates(ctx)
		if err != nil {
			return err
		}
		dups = report.FromGroups(groups)
	} else {
		records, err := report.Collect(ctx, st.Engine.Store())
		if err != nil {
			return err
		}
		dups = report.Duplicates(records)
	}

	if opts.JSON {
		if dups == nil {
			dups = []report.Duplicate{}
		}
		return writeJSON(stdout, dups)
	}
	return writeMarkdown(stdout, report.DuplicatesMarkdown(dups))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
