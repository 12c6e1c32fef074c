package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
)

// Builder manages the rule set construction.
type Builder struct {
	doc  rules.Document
	errs []error
}

// New creates a new rule set builder.
func New() *Builder {
	return &Builder{
		doc: rules.Document{
			Weights:          make(map[string]map[string]float64),
			ShowTo:           make(map[string]map[string][]string),
			Tags:             make(map[string]rules.TagGroupDoc),
			ContextOverrides: make(map[string]rules.OverrideDoc),
		},
	}
}

func (b *Builder) check(what string, names ...string) bool {
	for _, n := range names {
		if domain.Sanitize(strings.TrimSpace(n)) == "" {
			b.errs = append(b.errs, fmt.Errorf("%s: empty name in %q", what, names))
			return false
		}
	}
	return true
}

// Category starts configuring the options of a category.
func (b *Builder) Category(name string) *CategoryBuilder {
	b.check("category", name)
	return &CategoryBuilder{name: name, builder: b}
}

// Rule adds a constraint whose primary is (trait, value).
func (b *Builder) Rule(trait, value string) *RuleBuilder {
	b.check("rule", trait, value)
	b.doc.Specific = append(b.doc.Specific, rules.RuleDoc{Trait: trait, Value: value})
	return &RuleBuilder{idx: len(b.doc.Specific) - 1, builder: b}
}

// Tag adds items to a subtag of a tag group.
func (b *Builder) Tag(group, subtag string, items ...TagItem) *Builder {
	if !b.check("tag", group, subtag) {
		return b
	}
	g := b.doc.Tags[group]
	if g.Subtags == nil {
		g.Subtags = make(map[string][]rules.TagItemDoc)
	}
	for _, it := range items {
		g.Subtags[subtag] = append(g.Subtags[subtag], rules.TagItemDoc{TraitType: it.Trait, Value: it.Value})
	}
	b.doc.Tags[group] = g
	return b
}

// Override relocates the owner of a prefix-context option right after
// parent and suppresses the skipped categories.
func (b *Builder) Override(prefix, parent string, skip ...string) *Builder {
	if !b.check("override", prefix) {
		return b
	}
	b.doc.ContextOverrides[prefix] = rules.OverrideDoc{Parent: parent, Skip: skip}
	return b
}

// DynamicContext toggles context propagation between categories.
func (b *Builder) DynamicContext(enabled bool) *Builder {
	b.doc.Global.EnableDynamicContext = enabled
	return b
}

// ContextFacet names the metadata facet carrying an option's context.
func (b *Builder) ContextFacet(name string) *Builder {
	b.doc.Global.ContextFacet = name
	return b
}

// FacetFor overrides the context facet of one category.
func (b *Builder) FacetFor(category, facet string) *Builder {
	if b.doc.Global.ContextFacetByCategory == nil {
		b.doc.Global.ContextFacetByCategory = make(map[string]string)
	}
	b.doc.Global.ContextFacetByCategory[category] = facet
	return b
}

// PrimaryOnly lists context prefixes that never produce a context facet.
func (b *Builder) PrimaryOnly(prefixes ...string) *Builder {
	b.doc.Global.PrimaryOnlyContexts = append(b.doc.Global.PrimaryOnlyContexts, prefixes...)
	return b
}

// Document returns the raw rule document, e.g. to write it to disk.
func (b *Builder) Document() *rules.Document {
	return &b.doc
}

// Build compiles the rule set into a MemoryLoader.
// Builder misuse (empty names) is reported as an error; normalization
// warnings surface through the loader like those of a file.
func (b *Builder) Build() (*memory.Loader, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("invalid rule set: %w", errors.Join(b.errs...))
	}
	return memory.NewLoaderFromDocument(&b.doc), nil
}

// CategoryBuilder provides a fluent API for the options of one category.
type CategoryBuilder struct {
	name    string
	builder *Builder
}

// Weight sets the weight of value when drawn without context.
func (c *CategoryBuilder) Weight(value string, w float64) *CategoryBuilder {
	return c.WeightIn("", value, w)
}

// WeightIn sets the weight of value inside the context path ctx
// ("female" or "fullbody/robe").
func (c *CategoryBuilder) WeightIn(ctx, value string, w float64) *CategoryBuilder {
	if !c.builder.check("weight", value) {
		return c
	}
	key := rules.FormatBucket(domain.Bucket{Category: c.name, Context: strings.Trim(ctx, "/")})
	table := c.builder.doc.Weights[key]
	if table == nil {
		table = make(map[string]float64)
		c.builder.doc.Weights[key] = table
	}
	table[value] = w
	return c
}

// ShowTo restricts value to tokens whose active context holds one of tags.
func (c *CategoryBuilder) ShowTo(value string, tags ...string) *CategoryBuilder {
	if !c.builder.check("showTo", value) {
		return c
	}
	table := c.builder.doc.ShowTo[c.name]
	if table == nil {
		table = make(map[string][]string)
		c.builder.doc.ShowTo[c.name] = table
	}
	table[value] = append(table[value], tags...)
	return c
}

// RuleBuilder provides a fluent API for one constraint.
// It addresses the rule by index since later rules may grow the slice.
type RuleBuilder struct {
	idx     int
	builder *Builder
}

func (r *RuleBuilder) doc() *rules.RuleDoc {
	return &r.builder.doc.Specific[r.idx]
}

// In scopes the primary selector to a context path.
func (r *RuleBuilder) In(ctx string) *RuleBuilder {
	r.doc().Context = ctx
	return r
}

// Excludes forbids (trait, value) alongside the primary, in both directions.
func (r *RuleBuilder) Excludes(trait, value string) *RuleBuilder {
	return r.ExcludesIn(trait, value, "")
}

// ExcludesIn is Excludes with a context-scoped target.
func (r *RuleBuilder) ExcludesIn(trait, value, ctx string) *RuleBuilder {
	if r.builder.check("exclude_with", trait, value) {
		rule := r.doc()
		rule.ExcludeWith = append(rule.ExcludeWith, rules.SelectorDoc{Trait: trait, Value: value, Context: ctx})
	}
	return r
}

// Requires demands one of the required values of trait whenever the
// primary is selected. Targets never force the primary.
func (r *RuleBuilder) Requires(trait, value string) *RuleBuilder {
	return r.RequiresIn(trait, value, "")
}

// RequiresIn is Requires with a context-scoped target.
func (r *RuleBuilder) RequiresIn(trait, value, ctx string) *RuleBuilder {
	if r.builder.check("require_with", trait, value) {
		rule := r.doc()
		rule.RequireWith = append(rule.RequireWith, rules.SelectorDoc{Trait: trait, Value: value, Context: ctx})
	}
	return r
}

// TagItem is one (trait, value) member of a subtag.
type TagItem struct {
	Trait string
	Value string
}

// Item is shorthand for a TagItem.
func Item(trait, value string) TagItem {
	return TagItem{Trait: trait, Value: value}
}
