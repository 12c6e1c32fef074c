package rules

import (
	"fmt"

	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
)

// Store is the immutable rule snapshot used by one batch. Rules and tag items
// that reference options missing from the asset index are dropped and
// reported through Warnings.
type Store struct {
	set      *domain.RuleSet
	rules    []domain.Rule
	tags     []domain.TagGroup
	warnings []error
}

// NewStore validates set against idx. A nil set behaves as an empty one.
func NewStore(set *domain.RuleSet, idx *assets.Index) *Store {
	if set == nil {
		set = &domain.RuleSet{}
	}
	s := &Store{set: set}

	known := func(sel domain.Selector) bool {
		return idx == nil || idx.Has(sel.Category, sel.Value)
	}

	for i, r := range set.Rules {
		key := fmt.Sprintf("specific[%d]", i)
		ok := known(r.Primary)
		for _, t := range append(append([]domain.Selector{}, r.ExcludeWith...), r.RequireWith...) {
			if !known(t) {
				ok = false
				s.warnings = append(s.warnings, &schema.ValidationError{Key: key, Reason: "references unknown option " + t.String()})
			}
		}
		if !known(r.Primary) {
			s.warnings = append(s.warnings, &schema.ValidationError{Key: key, Reason: "references unknown option " + r.Primary.String()})
		}
		if ok {
			s.rules = append(s.rules, r)
		}
	}

	for _, g := range set.Tags {
		clean := domain.TagGroup{Name: g.Name}
		for _, st := range g.Subtags {
			cst := domain.Subtag{Name: st.Name}
			for _, it := range st.Items {
				if idx != nil && !idx.Has(it.Category, it.Value) {
					s.warnings = append(s.warnings, &schema.ValidationError{
						Key:    "tags." + g.Name + "." + st.Name,
						Reason: "references unknown option " + it.Category + "=" + it.Value,
					})
					continue
				}
				cst.Items = append(cst.Items, it)
			}
			clean.Subtags = append(clean.Subtags, cst)
		}
		s.tags = append(s.tags, clean)
	}

	if idx != nil {
		for b := range set.Weights {
			if !idx.HasCategory(b.Category) {
				s.warnings = append(s.warnings, &schema.ValidationError{Key: "weights." + FormatBucket(b), Reason: "unknown category"})
			}
		}
		for _, o := range set.Overrides {
			for _, c := range append([]string{o.Parent}, o.Skip...) {
				if c != "" && !idx.HasCategory(c) {
					s.warnings = append(s.warnings, &schema.ValidationError{Key: "contextOverrides." + o.Prefix.String(), Reason: "unknown category " + c})
				}
			}
		}
	}
	return s
}

// Weight resolves the sampling weight of an option.
func (s *Store) Weight(o domain.Option) float64 {
	if w, ok := s.set.Weight(o.Bucket(), o.Value); ok {
		return w
	}
	return domain.DefaultWeight
}

// ShowTo returns the context allow-list for an option value, if any.
func (s *Store) ShowTo(category, value string) []string {
	return s.set.ShowTo[category][value]
}

// DynamicContext reports whether context propagation is enabled.
func (s *Store) DynamicContext() bool { return s.set.Global.EnableDynamicContext }

// Global returns the rule-set wide switches.
func (s *Store) Global() domain.Global { return s.set.Global }

// Rules returns the validated rules.
func (s *Store) Rules() []domain.Rule { return s.rules }

// Tags returns the validated tag groups in name order.
func (s *Store) Tags() []domain.TagGroup { return s.tags }

// Overrides returns the context overrides, longest prefix first.
func (s *Store) Overrides() []domain.ContextOverride { return s.set.Overrides }

// OverrideFor returns the override triggered by an option's context.
func (s *Store) OverrideFor(o domain.Option) (domain.ContextOverride, bool) {
	if o.Context.IsZero() {
		return domain.ContextOverride{}, false
	}
	for _, ov := range s.set.Overrides {
		if o.Context.HasPrefix(ov.Prefix) {
			return ov, true
		}
	}
	return domain.ContextOverride{}, false
}

// RuleSet returns the underlying normalized configuration.
func (s *Store) RuleSet() *domain.RuleSet { return s.set }

// Warnings lists the configuration problems found while building the store.
func (s *Store) Warnings() []error { return s.warnings }

// Err aggregates Warnings, or returns nil when the configuration is clean.
func (s *Store) Err() error {
	if len(s.warnings) == 0 {
		return nil
	}
	return &schema.AggregateError{Errors: s.warnings}
}
