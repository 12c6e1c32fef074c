package domain

import "strings"

// ComboKey is the canonical identity of a finished Assignment.
// Two tokens are duplicates exactly when their keys are equal.
type ComboKey string

// Assignment maps categories to the options chosen during one generation attempt.
// It is owned by a single worker and discarded whenever the attempt is rerolled.
type Assignment struct {
	picks   map[string]Option
	order   []string
	skipped map[string]bool
	Active  *ActiveContext
}

// NewAssignment starts an empty attempt from the given active context.
func NewAssignment(active *ActiveContext) *Assignment {
	if active == nil {
		active = NewActiveContext()
	}
	return &Assignment{
		picks:   make(map[string]Option),
		skipped: make(map[string]bool),
		Active:  active,
	}
}

// Set records the option chosen for its category.
func (a *Assignment) Set(o Option) {
	if _, ok := a.picks[o.Category]; !ok {
		a.order = append(a.order, o.Category)
	}
	a.picks[o.Category] = o
}

// Get returns the option chosen for category.
func (a *Assignment) Get(category string) (Option, bool) {
	o, ok := a.picks[category]
	return o, ok
}

// Has reports whether category has a selection.
func (a *Assignment) Has(category string) bool {
	_, ok := a.picks[category]
	return ok
}

// Skip marks category as suppressed by a context override and drops any pick.
func (a *Assignment) Skip(category string) {
	a.skipped[category] = true
	if _, ok := a.picks[category]; !ok {
		return
	}
	delete(a.picks, category)
	for i, c := range a.order {
		if c == category {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Skipped reports whether category is suppressed.
func (a *Assignment) Skipped(category string) bool { return a.skipped[category] }

// Options returns the chosen options in the order they were accepted.
func (a *Assignment) Options() []Option {
	out := make([]Option, 0, len(a.order))
	for _, c := range a.order {
		out = append(out, a.picks[c])
	}
	return out
}

// Len is the number of resolved categories.
func (a *Assignment) Len() int { return len(a.picks) }

// Key builds the ComboKey over categories in paint order. Suppressed categories
// are left out entirely; unresolved ones contribute an empty slot.
func (a *Assignment) Key(paintOrder []string) ComboKey {
	parts := make([]string, 0, len(paintOrder))
	for _, c := range paintOrder {
		if a.skipped[c] {
			continue
		}
		o, ok := a.picks[c]
		switch {
		case !ok:
			parts = append(parts, c+"=")
		case o.Context.IsZero():
			parts = append(parts, c+"="+o.Value)
		default:
			parts = append(parts, c+"="+o.Context.String()+" - "+o.Value)
		}
	}
	return ComboKey(strings.Join(parts, "|"))
}

// Items parses the key back into the option keys it lists. Empty slots are
// left out.
func (k ComboKey) Items() []ItemKey {
	if k == "" {
		return nil
	}
	parts := strings.Split(string(k), "|")
	out := make([]ItemKey, 0, len(parts))
	for _, p := range parts {
		cat, rest, ok := strings.Cut(p, "=")
		if !ok || rest == "" {
			continue
		}
		item := ItemKey{Category: cat, Value: rest}
		if ctx, val, found := strings.Cut(rest, " - "); found {
			item.Context, item.Value = ctx, val
		}
		out = append(out, item)
	}
	return out
}
