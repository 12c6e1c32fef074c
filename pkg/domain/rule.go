package domain

// Selector addresses options by category and value, optionally scoped to a context.
type Selector struct {
	Category string      `json:"trait"`
	Value    string      `json:"value"`
	Context  ContextPath `json:"context,omitempty"`
}

// Matches reports whether the option is addressed by the selector.
// A scoped selector matches when its context is a prefix of the option's own
// context, or when all of its segments are present in the active context.
func (s Selector) Matches(o Option, active *ActiveContext) bool {
	if s.Category != o.Category || s.Value != o.Value {
		return false
	}
	if s.Context.IsZero() || o.Context.HasPrefix(s.Context) {
		return true
	}
	return active != nil && active.HasAll(s.Context)
}

func (s Selector) String() string {
	return ItemKey{Category: s.Category, Value: s.Value, Context: s.Context.String()}.String()
}

// Rule relates a primary selector to the selectors it excludes or requires.
// Exclusion is symmetric. Requirement only binds while the primary is selected.
type Rule struct {
	Primary     Selector   `json:"primary"`
	ExcludeWith []Selector `json:"exclude_with,omitempty"`
	RequireWith []Selector `json:"require_with,omitempty"`
}

// TagItem is one (category, value) member of a subtag.
type TagItem struct {
	Category string `json:"trait_type"`
	Value    string `json:"value"`
}

// Subtag is one partition of a TagGroup.
type Subtag struct {
	Name  string    `json:"name"`
	Items []TagItem `json:"items"`
}

// TagGroup is a named partition of options into subtags.
type TagGroup struct {
	Name    string   `json:"name"`
	Subtags []Subtag `json:"subtags"`
}

// ContextOverride changes how a token is drawn once an option whose context
// starts with Prefix is chosen: categories in Skip are neither drawn nor
// attributed, and the owning category is painted right after Parent.
type ContextOverride struct {
	Prefix ContextPath `json:"prefix"`
	Parent string      `json:"parent,omitempty"`
	Skip   []string    `json:"skip,omitempty"`
}

// Global holds rule-set wide switches.
type Global struct {
	EnableDynamicContext bool `json:"enableDynamicContext"`
	// ContextFacet names the metadata facet carrying an option's context.
	ContextFacet string `json:"contextFacet,omitempty"`
	// ContextFacetByCategory overrides ContextFacet per category.
	ContextFacetByCategory map[string]string `json:"contextFacetByCategory,omitempty"`
	// PrimaryOnlyContexts lists context prefixes that never produce a context facet.
	PrimaryOnlyContexts []ContextPath `json:"primaryOnlyContexts,omitempty"`
}

// DefaultContextFacet is used when Global.ContextFacet is empty.
const DefaultContextFacet = "Type"

// RuleSet is the normalized rule configuration: every name sanitized and
// every key strongly typed.
type RuleSet struct {
	Weights   map[Bucket]map[string]float64 `json:"-"`
	ShowTo    map[string]map[string][]string `json:"showTo,omitempty"`
	Rules     []Rule                         `json:"specific,omitempty"`
	Tags      []TagGroup                     `json:"tags,omitempty"`
	Overrides []ContextOverride              `json:"contextOverrides,omitempty"`
	Global    Global                         `json:"global"`
}

// Weight returns the configured weight of value inside bucket.
func (rs *RuleSet) Weight(b Bucket, value string) (float64, bool) {
	if rs == nil || rs.Weights == nil {
		return 0, false
	}
	w, ok := rs.Weights[b][value]
	return w, ok
}
