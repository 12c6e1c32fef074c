// Package constraint evaluates exclusion and requirement rules against a
// partially or fully built Assignment.
//
// Rules are compiled once into a canonical relation: every exclusion becomes an
// unordered pair of selectors and every requirement a primary selector with its
// admissible targets grouped by category. Each relation is then evaluated from
// whichever endpoint is being chosen, so rules never need to be mirrored.
package constraint

import (
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
)

// Kind classifies a violation.
type Kind string

const (
	KindExclude Kind = "exclude"
	KindRequire Kind = "require"
)

// Violation describes a rule broken by a pair of options.
type Violation struct {
	Kind    Kind
	Rule    int
	Subject domain.Option
	Other   domain.Option
}

func (v Violation) Error() string {
	verb := "excludes"
	if v.Kind == KindRequire {
		verb = "does not satisfy requirement of"
	}
	return fmt.Sprintf("rule %d: %s %s %s", v.Rule, v.Subject.Key(), verb, v.Other.Key())
}

type exclusion struct {
	a, b domain.Selector
	rule int
}

type requirement struct {
	primary domain.Selector
	targets map[string][]domain.Selector
	rule    int
}

// Engine holds the compiled relation.
type Engine struct {
	exclusions   []exclusion
	byCategory   map[string][]int
	requirements []requirement
	reqByTarget  map[string][]int
	reqByPrimary map[string][]int
}

// New compiles rules. Rule indexes in violations refer to positions in rules.
func New(rules []domain.Rule) *Engine {
	e := &Engine{
		byCategory:   make(map[string][]int),
		reqByTarget:  make(map[string][]int),
		reqByPrimary: make(map[string][]int),
	}
	for i, r := range rules {
		for _, t := range r.ExcludeWith {
			n := len(e.exclusions)
			e.exclusions = append(e.exclusions, exclusion{a: r.Primary, b: t, rule: i})
			e.byCategory[r.Primary.Category] = append(e.byCategory[r.Primary.Category], n)
			if t.Category != r.Primary.Category {
				e.byCategory[t.Category] = append(e.byCategory[t.Category], n)
			}
		}
		if len(r.RequireWith) == 0 {
			continue
		}
		req := requirement{primary: r.Primary, targets: make(map[string][]domain.Selector), rule: i}
		for _, t := range r.RequireWith {
			req.targets[t.Category] = append(req.targets[t.Category], t)
		}
		n := len(e.requirements)
		e.requirements = append(e.requirements, req)
		e.reqByPrimary[r.Primary.Category] = append(e.reqByPrimary[r.Primary.Category], n)
		for c := range req.targets {
			e.reqByTarget[c] = append(e.reqByTarget[c], n)
		}
	}
	return e
}

// Len is the number of compiled relations.
func (e *Engine) Len() int { return len(e.exclusions) + len(e.requirements) }

// Check evaluates a candidate against the selections already in a, in both
// directions. It returns nil when the candidate may be accepted.
func (e *Engine) Check(cand domain.Option, a *domain.Assignment) *Violation {
	active := a.Active
	for _, n := range e.byCategory[cand.Category] {
		ex := e.exclusions[n]
		if ex.a.Matches(cand, active) {
			if other, ok := a.Get(ex.b.Category); ok && ex.b.Matches(other, active) {
				return &Violation{Kind: KindExclude, Rule: ex.rule, Subject: cand, Other: other}
			}
		}
		if ex.b.Matches(cand, active) {
			if other, ok := a.Get(ex.a.Category); ok && ex.a.Matches(other, active) {
				return &Violation{Kind: KindExclude, Rule: ex.rule, Subject: other, Other: cand}
			}
		}
	}

	for _, n := range e.reqByPrimary[cand.Category] {
		req := e.requirements[n]
		if !req.primary.Matches(cand, active) {
			continue
		}
		if v := req.unmet(cand, a); v != nil {
			return v
		}
	}

	for _, n := range e.reqByTarget[cand.Category] {
		req := e.requirements[n]
		primary, ok := a.Get(req.primary.Category)
		if !ok || !req.primary.Matches(primary, active) {
			continue
		}
		if !anyMatch(req.targets[cand.Category], cand, active) {
			return &Violation{Kind: KindRequire, Rule: req.rule, Subject: primary, Other: cand}
		}
	}
	return nil
}

// unmet checks that every target category with a selection holds one of the
// admissible values. Categories without a selection are not evaluated.
func (r requirement) unmet(primary domain.Option, a *domain.Assignment) *Violation {
	for cat, alts := range r.targets {
		other, ok := a.Get(cat)
		if !ok {
			continue
		}
		if !anyMatch(alts, other, a.Active) {
			return &Violation{Kind: KindRequire, Rule: r.rule, Subject: primary, Other: other}
		}
	}
	return nil
}

func anyMatch(sels []domain.Selector, o domain.Option, active *domain.ActiveContext) bool {
	for _, s := range sels {
		if s.Matches(o, active) {
			return true
		}
	}
	return false
}

// Validate re-checks a finished assignment against every rule and returns
// all violations found.
func (e *Engine) Validate(a *domain.Assignment) []Violation {
	var out []Violation
	active := a.Active
	for _, pick := range a.Options() {
		for _, n := range e.byCategory[pick.Category] {
			ex := e.exclusions[n]
			if !ex.a.Matches(pick, active) {
				continue
			}
			if other, ok := a.Get(ex.b.Category); ok && ex.b.Matches(other, active) && other.Key() != pick.Key() {
				out = append(out, Violation{Kind: KindExclude, Rule: ex.rule, Subject: pick, Other: other})
			}
		}
		for _, n := range e.reqByPrimary[pick.Category] {
			req := e.requirements[n]
			if !req.primary.Matches(pick, active) {
				continue
			}
			if v := req.unmet(pick, a); v != nil {
				out = append(out, *v)
			}
		}
	}
	return out
}
