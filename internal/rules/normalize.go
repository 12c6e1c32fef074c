package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
)

// BucketSeparator splits a weight bucket key into category and context.
const BucketSeparator = "__"

// ParseBucket decodes "<category>__<context>" into a typed bucket.
func ParseBucket(key string) domain.Bucket {
	cat, ctx, _ := strings.Cut(key, BucketSeparator)
	return domain.Bucket{
		Category: domain.Sanitize(cat),
		Context:  domain.ParseContextPath(ctx).String(),
	}
}

// FormatBucket is the inverse of ParseBucket.
func FormatBucket(b domain.Bucket) string {
	return b.Category + BucketSeparator + b.Context
}

// Normalize sanitizes every name of doc and converts it into a RuleSet.
// Entries that cannot be interpreted are dropped and reported.
func Normalize(doc *Document) (*domain.RuleSet, []error) {
	var warns []error
	set := &domain.RuleSet{
		Weights: make(map[domain.Bucket]map[string]float64),
		ShowTo:  make(map[string]map[string][]string),
	}
	if doc == nil {
		return set, nil
	}

	for key, values := range doc.Weights {
		b := ParseBucket(key)
		if b.Category == "" {
			warns = append(warns, &schema.ValidationError{Key: "weights." + key, Reason: "bucket has no category"})
			continue
		}
		table := set.Weights[b]
		if table == nil {
			table = make(map[string]float64, len(values))
			set.Weights[b] = table
		}
		for v, w := range values {
			if w < 0 {
				warns = append(warns, &schema.ValidationError{Key: "weights." + key + "." + v, Reason: "negative weight treated as zero", Value: w})
				w = 0
			}
			table[domain.Sanitize(v)] = w
		}
	}

	for cat, values := range doc.ShowTo {
		c := domain.Sanitize(cat)
		table := set.ShowTo[c]
		if table == nil {
			table = make(map[string][]string, len(values))
			set.ShowTo[c] = table
		}
		for v, tags := range values {
			var clean []string
			for _, tag := range tags {
				if t := domain.Sanitize(tag); t != "" {
					clean = append(clean, t)
				}
			}
			table[domain.Sanitize(v)] = clean
		}
	}

	for i, r := range doc.Specific {
		key := fmt.Sprintf("specific[%d]", i)
		primary, ok := selector(r.Trait, r.Value, r.Context)
		if !ok {
			warns = append(warns, &schema.ValidationError{Key: key, Reason: "rule needs both trait and value"})
			continue
		}
		rule := domain.Rule{Primary: primary}
		for j, t := range r.ExcludeWith {
			if sel, ok := selector(t.Trait, t.Value, t.Context); ok {
				rule.ExcludeWith = append(rule.ExcludeWith, sel)
			} else {
				warns = append(warns, &schema.ValidationError{Key: fmt.Sprintf("%s.exclude_with[%d]", key, j), Reason: "target needs both trait and value"})
			}
		}
		for j, t := range r.RequireWith {
			if sel, ok := selector(t.Trait, t.Value, t.Context); ok {
				rule.RequireWith = append(rule.RequireWith, sel)
			} else {
				warns = append(warns, &schema.ValidationError{Key: fmt.Sprintf("%s.require_with[%d]", key, j), Reason: "target needs both trait and value"})
			}
		}
		if len(rule.ExcludeWith) == 0 && len(rule.RequireWith) == 0 {
			continue
		}
		set.Rules = append(set.Rules, rule)
	}

	groupNames := sortedKeys(doc.Tags)
	for _, g := range groupNames {
		group := domain.TagGroup{Name: domain.Sanitize(g)}
		subs := doc.Tags[g].Subtags
		for _, sub := range sortedKeys(subs) {
			st := domain.Subtag{Name: domain.Sanitize(sub)}
			for _, it := range subs[sub] {
				item := domain.TagItem{Category: domain.Sanitize(it.TraitType), Value: domain.Sanitize(it.Value)}
				if item.Category == "" || item.Value == "" {
					warns = append(warns, &schema.ValidationError{Key: "tags." + g + "." + sub, Reason: "tag item needs trait_type and value"})
					continue
				}
				st.Items = append(st.Items, item)
			}
			group.Subtags = append(group.Subtags, st)
		}
		if group.Name != "" {
			set.Tags = append(set.Tags, group)
		}
	}

	for prefix, o := range doc.ContextOverrides {
		p := domain.ParseContextPath(prefix)
		if p.IsZero() {
			warns = append(warns, &schema.ValidationError{Key: "contextOverrides." + prefix, Reason: "override needs a context prefix"})
			continue
		}
		ov := domain.ContextOverride{Prefix: p, Parent: domain.Sanitize(o.Parent)}
		for _, s := range o.Skip {
			if c := domain.Sanitize(s); c != "" {
				ov.Skip = append(ov.Skip, c)
			}
		}
		// The owner takes the draw slot of the first suppressed category.
		if ov.Parent == "" && len(ov.Skip) > 0 {
			ov.Parent = ov.Skip[0]
		}
		set.Overrides = append(set.Overrides, ov)
	}
	sort.Slice(set.Overrides, func(i, j int) bool {
		a, b := set.Overrides[i].Prefix, set.Overrides[j].Prefix
		if a.Depth() != b.Depth() {
			return a.Depth() > b.Depth()
		}
		return a.String() < b.String()
	})

	set.Global = domain.Global{
		EnableDynamicContext: doc.Global.EnableDynamicContext,
		ContextFacet:         strings.TrimSpace(doc.Global.ContextFacet),
	}
	if len(doc.Global.ContextFacetByCategory) > 0 {
		set.Global.ContextFacetByCategory = make(map[string]string, len(doc.Global.ContextFacetByCategory))
		for c, name := range doc.Global.ContextFacetByCategory {
			set.Global.ContextFacetByCategory[domain.Sanitize(c)] = name
		}
	}
	for _, p := range doc.Global.PrimaryOnlyContexts {
		if cp := domain.ParseContextPath(p); !cp.IsZero() {
			set.Global.PrimaryOnlyContexts = append(set.Global.PrimaryOnlyContexts, cp)
		}
	}
	return set, warns
}

func selector(trait, value, ctx string) (domain.Selector, bool) {
	s := domain.Selector{
		Category: domain.Sanitize(trait),
		Value:    domain.Sanitize(value),
		Context:  domain.ParseContextPath(ctx),
	}
	return s, s.Category != "" && s.Value != ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Denormalize converts a RuleSet back into its document form.
func Denormalize(set *domain.RuleSet) *Document {
	doc := &Document{
		Weights: make(map[string]map[string]float64, len(set.Weights)),
		ShowTo:  set.ShowTo,
		Global: GlobalDoc{
			EnableDynamicContext:   set.Global.EnableDynamicContext,
			ContextFacet:           set.Global.ContextFacet,
			ContextFacetByCategory: set.Global.ContextFacetByCategory,
		},
	}
	for b, table := range set.Weights {
		doc.Weights[FormatBucket(b)] = table
	}
	for _, r := range set.Rules {
		rd := RuleDoc{Trait: r.Primary.Category, Value: r.Primary.Value, Context: r.Primary.Context.String()}
		for _, t := range r.ExcludeWith {
			rd.ExcludeWith = append(rd.ExcludeWith, SelectorDoc{Trait: t.Category, Value: t.Value, Context: t.Context.String()})
		}
		for _, t := range r.RequireWith {
			rd.RequireWith = append(rd.RequireWith, SelectorDoc{Trait: t.Category, Value: t.Value, Context: t.Context.String()})
		}
		doc.Specific = append(doc.Specific, rd)
	}
	if len(set.Tags) > 0 {
		doc.Tags = make(map[string]TagGroupDoc, len(set.Tags))
		for _, g := range set.Tags {
			gd := TagGroupDoc{Subtags: make(map[string][]TagItemDoc, len(g.Subtags))}
			for _, st := range g.Subtags {
				items := make([]TagItemDoc, 0, len(st.Items))
				for _, it := range st.Items {
					items = append(items, TagItemDoc{TraitType: it.Category, Value: it.Value})
				}
				gd.Subtags[st.Name] = items
			}
			doc.Tags[g.Name] = gd
		}
	}
	if len(set.Overrides) > 0 {
		doc.ContextOverrides = make(map[string]OverrideDoc, len(set.Overrides))
		for _, o := range set.Overrides {
			doc.ContextOverrides[o.Prefix.String()] = OverrideDoc{Parent: o.Parent, Skip: o.Skip}
		}
	}
	for _, p := range set.Global.PrimaryOnlyContexts {
		doc.Global.PrimaryOnlyContexts = append(doc.Global.PrimaryOnlyContexts, p.String())
	}
	return doc
}
