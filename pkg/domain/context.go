package domain

import "strings"

// ContextSeparator joins context segments in their textual form ("male/noir").
const ContextSeparator = "/"

// ContextPath is the ordered list of context segments an option lives under.
// It mirrors the directories between a category folder and the asset file.
type ContextPath []string

// ParseContextPath splits a textual path and sanitizes each segment.
// Empty segments are dropped, so "" and "/" both yield an empty path.
func ParseContextPath(s string) ContextPath {
	if s == "" {
		return nil
	}
	var out ContextPath
	for _, seg := range strings.Split(s, ContextSeparator) {
		if seg = Sanitize(strings.TrimSpace(seg)); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// String returns the canonical textual form.
func (p ContextPath) String() string {
	return strings.Join(p, ContextSeparator)
}

// Depth is the number of segments.
func (p ContextPath) Depth() int { return len(p) }

// IsZero reports whether the path has no segments.
func (p ContextPath) IsZero() bool { return len(p) == 0 }

// HasPrefix reports whether prefix matches the leading segments of p.
// The empty prefix matches every path.
func (p ContextPath) HasPrefix(prefix ContextPath) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, seg := range prefix {
		if p[i] != seg {
			return false
		}
	}
	return true
}

// Contains reports whether seg is one of the segments.
func (p ContextPath) Contains(seg string) bool {
	for _, s := range p {
		if s == seg {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every segment of p is present in set.
func (p ContextPath) SubsetOf(set ContextPath) bool {
	for _, seg := range p {
		if !set.Contains(seg) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (p ContextPath) Clone() ContextPath {
	if p == nil {
		return nil
	}
	out := make(ContextPath, len(p))
	copy(out, p)
	return out
}

// ActiveContext is the set of context tags established during one generation
// attempt. Insertion order is kept so logs and facets stay reproducible.
type ActiveContext struct {
	tags ContextPath
}

// NewActiveContext seeds the set with the batch base context.
func NewActiveContext(base ...string) *ActiveContext {
	a := &ActiveContext{}
	for _, tag := range base {
		a.Add(ParseContextPath(tag)...)
	}
	return a
}

// Add appends tags that are not yet present.
func (a *ActiveContext) Add(tags ...string) {
	for _, t := range tags {
		if t != "" && !a.tags.Contains(t) {
			a.tags = append(a.tags, t)
		}
	}
}

// Has reports whether tag is active.
func (a *ActiveContext) Has(tag string) bool { return a.tags.Contains(tag) }

// Empty reports whether no context has been established.
func (a *ActiveContext) Empty() bool { return len(a.tags) == 0 }

// Tags returns a copy of the active tags in insertion order.
func (a *ActiveContext) Tags() ContextPath { return a.tags.Clone() }

// Clone returns an independent copy.
func (a *ActiveContext) Clone() *ActiveContext {
	return &ActiveContext{tags: a.tags.Clone()}
}

// HasAll reports whether every segment of p is active.
func (a *ActiveContext) HasAll(p ContextPath) bool { return p.SubsetOf(a.tags) }
