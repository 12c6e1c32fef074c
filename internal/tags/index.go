// Package tags indexes tag groups against the asset library and enforces
// group exclusivity during selection.
package tags

import (
	"sort"

	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/pkg/domain"
)

// Membership places an option value inside a group's subtag.
type Membership struct {
	Group  string
	Subtag string
}

type itemKey struct {
	category string
	value    string
}

// Index answers which groups govern a category and which subtags an option carries.
type Index struct {
	groups   []domain.TagGroup
	members  map[itemKey][]Membership
	complete map[string]map[string]bool // category -> group -> complete
	coverage []GroupCoverage
}

// GroupCoverage describes how well a group covers one category.
type GroupCoverage struct {
	Group    string   `json:"group"`
	Category string   `json:"trait"`
	Total    int      `json:"total"`
	Covered  int      `json:"coveredCount"`
	Missing  []string `json:"missing"`
	Complete bool     `json:"isComplete"`
}

// Build computes coverage of every group against idx. A group is complete for
// a category when its subtags cover exactly that category's non-empty value set.
func Build(groups []domain.TagGroup, idx *assets.Index) *Index {
	ti := &Index{
		groups:   groups,
		members:  make(map[itemKey][]Membership),
		complete: make(map[string]map[string]bool),
	}
	for _, g := range groups {
		covered := make(map[string]map[string]struct{})
		for _, st := range g.Subtags {
			for _, it := range st.Items {
				k := itemKey{it.Category, it.Value}
				if !hasMembership(ti.members[k], g.Name, st.Name) {
					ti.members[k] = append(ti.members[k], Membership{Group: g.Name, Subtag: st.Name})
				}
				if covered[it.Category] == nil {
					covered[it.Category] = make(map[string]struct{})
				}
				covered[it.Category][it.Value] = struct{}{}
			}
		}

		categories := make([]string, 0, len(covered))
		for c := range covered {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			all := idx.Values(c)
			cov := GroupCoverage{Group: g.Name, Category: c, Total: len(all)}
			for v := range all {
				if _, ok := covered[c][v]; ok {
					cov.Covered++
				} else {
					cov.Missing = append(cov.Missing, v)
				}
			}
			sort.Strings(cov.Missing)
			cov.Complete = cov.Total > 0 && cov.Covered == cov.Total && len(covered[c]) == cov.Total
			if cov.Complete {
				if ti.complete[c] == nil {
					ti.complete[c] = make(map[string]bool)
				}
				ti.complete[c][g.Name] = true
			}
			ti.coverage = append(ti.coverage, cov)
		}
	}
	return ti
}

func hasMembership(ms []Membership, group, subtag string) bool {
	for _, m := range ms {
		if m.Group == group && m.Subtag == subtag {
			return true
		}
	}
	return false
}

// Memberships returns the (group, subtag) pairs carried by an option value.
func (ti *Index) Memberships(category, value string) []Membership {
	return ti.members[itemKey{category, value}]
}

// Governs reports whether group is complete, and therefore exclusive, for category.
func (ti *Index) Governs(category, group string) bool {
	return ti.complete[category][group]
}

// Governed reports whether any group is complete for category.
func (ti *Index) Governed(category string) bool {
	return len(ti.complete[category]) > 0
}

// Coverage returns the per group and category coverage report.
func (ti *Index) Coverage() []GroupCoverage {
	return ti.coverage
}

// Groups returns the indexed groups.
func (ti *Index) Groups() []domain.TagGroup {
	return ti.groups
}

// Locks records the subtag chosen for each exclusive group during one attempt.
type Locks map[string]string

// Allowed reports whether an option of category may be chosen under locks.
// Only groups complete for the category are enforced.
func (ti *Index) Allowed(o domain.Option, locks Locks) bool {
	if !ti.Governed(o.Category) {
		return true
	}
	for _, m := range ti.Memberships(o.Category, o.Value) {
		if !ti.Governs(o.Category, m.Group) {
			continue
		}
		if locked, ok := locks[m.Group]; ok && locked != m.Subtag {
			return false
		}
	}
	return true
}

// Filter keeps the options allowed under locks.
func (ti *Index) Filter(opts []domain.Option, locks Locks) []domain.Option {
	if len(locks) == 0 || len(opts) == 0 || !ti.Governed(opts[0].Category) {
		return opts
	}
	out := make([]domain.Option, 0, len(opts))
	for _, o := range opts {
		if ti.Allowed(o, locks) {
			out = append(out, o)
		}
	}
	return out
}

// Lock records the subtags of an accepted option for every group complete for
// its category. Existing locks are kept.
func (ti *Index) Lock(o domain.Option, locks Locks) {
	for _, m := range ti.Memberships(o.Category, o.Value) {
		if !ti.Governs(o.Category, m.Group) {
			continue
		}
		if _, ok := locks[m.Group]; !ok {
			locks[m.Group] = m.Subtag
		}
	}
}

// Conflicts lists the groups for which governed categories of the assignment
// carry different subtags.
func (ti *Index) Conflicts(a *domain.Assignment) []string {
	seen := make(map[string]string)
	var out []string
	for _, o := range a.Options() {
		for _, m := range ti.Memberships(o.Category, o.Value) {
			if !ti.Governs(o.Category, m.Group) {
				continue
			}
			if prev, ok := seen[m.Group]; ok && prev != m.Subtag {
				out = append(out, m.Group)
				continue
			}
			seen[m.Group] = m.Subtag
		}
	}
	return out
}

// Facet is one (group, subtag) pair represented by an assignment.
type Facet struct {
	Group  string
	Subtag string
}

// Resolve lists, in group then subtag order, every subtag that contains at
// least one of the given options.
func (ti *Index) Resolve(opts []domain.Option) []Facet {
	var out []Facet
	for _, g := range ti.groups {
		for _, st := range g.Subtags {
			if containsAny(st.Items, opts) {
				out = append(out, Facet{Group: g.Name, Subtag: st.Name})
			}
		}
	}
	return out
}

func containsAny(items []domain.TagItem, opts []domain.Option) bool {
	for _, it := range items {
		for _, o := range opts {
			if it.Category == o.Category && it.Value == o.Value {
				return true
			}
		}
	}
	return false
}
