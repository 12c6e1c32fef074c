package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// Overlay marks the options of one token on the graph.
type Overlay struct {
	Selected []domain.ItemKey
}

// GenerateMermaid produces a Mermaid flowchart of the rule relations.
// Options are grouped per category:
// - Selector: [Rectangle], context scoped ones as ([Stadium])
// - Exclusion: x--x (symmetric)
// - Requirement: -- requires --> (directional)
// - Context override: {{Hexagon}} pointing at its parent and skipped categories
// Options of the overlay token are styled when an overlay is provided.
func GenerateMermaid(rules []domain.Rule, overrides []domain.ContextOverride, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	nodes := make(map[string]domain.Selector)
	byCategory := make(map[string][]string)
	add := func(s domain.Selector) string {
		id := sanitizeMermaidID(s.String())
		if _, ok := nodes[id]; !ok {
			nodes[id] = s
			byCategory[s.Category] = append(byCategory[s.Category], id)
		}
		return id
	}

	var edges []string
	for _, r := range rules {
		from := add(r.Primary)
		for _, t := range r.ExcludeWith {
			edges = append(edges, fmt.Sprintf("    %s x--x %s\n", from, add(t)))
		}
		for _, t := range r.RequireWith {
			edges = append(edges, fmt.Sprintf("    %s -- requires --> %s\n", from, add(t)))
		}
	}

	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	slices.Sort(categories)
	for _, c := range categories {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("cat_"+c), domain.Beautify(c))
		ids := byCategory[c]
		slices.Sort(ids)
		for _, id := range ids {
			s := nodes[id]
			opener, closer := "[", "]"
			label := s.Value
			if !s.Context.IsZero() {
				opener, closer = "([", "])"
				label = s.Context.String() + " - " + s.Value
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", id, opener, escapeLabel(label), closer)
		}
		sb.WriteString("    end\n")
	}
	for _, e := range edges {
		sb.WriteString(e)
	}

	for _, o := range overrides {
		id := sanitizeMermaidID("ctx_" + o.Prefix.String())
		fmt.Fprintf(&sb, "    %s{{\"%s\"}}\n", id, escapeLabel(o.Prefix.String()))
		if o.Parent != "" {
			fmt.Fprintf(&sb, "    %s -. \"paint after\" .-> %s\n", id, sanitizeMermaidID("cat_"+o.Parent))
		}
		for _, s := range o.Skip {
			fmt.Fprintf(&sb, "    %s -. skip .-> %s\n", id, sanitizeMermaidID("cat_"+s))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000;\n")

		ids := make([]string, 0, len(nodes))
		for id := range nodes {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			if selected(nodes[id], overlay.Selected) {
				fmt.Fprintf(&sb, "    class %s selected;\n", id)
			}
		}
	}

	return sb.String()
}

func selected(s domain.Selector, items []domain.ItemKey) bool {
	for _, it := range items {
		if it.Category == s.Category && it.Value == s.Value &&
			domain.ParseContextPath(it.Context).HasPrefix(s.Context) {
			return true
		}
	}
	return false
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(
		".", "_", "-", "_", "/", "_", "\\", "_",
		"=", "_", " ", "_", "'", "_",
	)
	return r.Replace(id)
}
