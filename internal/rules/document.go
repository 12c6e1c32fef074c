// Package rules loads the rule configuration and exposes it as an immutable,
// normalized Store for the duration of a batch.
package rules

// Document is the on-disk shape of the rule configuration.
// Weight buckets are keyed "<category>__<context path>".
type Document struct {
	Weights          map[string]map[string]float64 `mapstructure:"weights" json:"weights,omitempty" yaml:"weights,omitempty"`
	ShowTo           map[string]map[string][]string `mapstructure:"showTo" json:"showTo,omitempty" yaml:"showTo,omitempty"`
	Specific         []RuleDoc                      `mapstructure:"specific" json:"specific,omitempty" yaml:"specific,omitempty"`
	Tags             map[string]TagGroupDoc         `mapstructure:"tags" json:"tags,omitempty" yaml:"tags,omitempty"`
	Global           GlobalDoc                      `mapstructure:"global" json:"global" yaml:"global"`
	ContextOverrides map[string]OverrideDoc         `mapstructure:"contextOverrides" json:"contextOverrides,omitempty" yaml:"contextOverrides,omitempty"`
}

// SelectorDoc addresses options inside a rule.
type SelectorDoc struct {
	Trait   string `mapstructure:"trait" json:"trait" yaml:"trait"`
	Value   string `mapstructure:"value" json:"value" yaml:"value"`
	Context string `mapstructure:"context" json:"context,omitempty" yaml:"context,omitempty"`
}

// RuleDoc is one entry of the "specific" list.
type RuleDoc struct {
	Trait       string        `mapstructure:"trait" json:"trait" yaml:"trait"`
	Value       string        `mapstructure:"value" json:"value" yaml:"value"`
	Context     string        `mapstructure:"context" json:"context,omitempty" yaml:"context,omitempty"`
	ExcludeWith []SelectorDoc `mapstructure:"exclude_with" json:"exclude_with,omitempty" yaml:"exclude_with,omitempty"`
	RequireWith []SelectorDoc `mapstructure:"require_with" json:"require_with,omitempty" yaml:"require_with,omitempty"`
}

// TagGroupDoc maps subtag names to their members.
type TagGroupDoc struct {
	Subtags map[string][]TagItemDoc `mapstructure:"subtags" json:"subtags" yaml:"subtags"`
}

// TagItemDoc is one subtag member.
type TagItemDoc struct {
	TraitType string `mapstructure:"trait_type" json:"trait_type" yaml:"trait_type"`
	Value     string `mapstructure:"value" json:"value" yaml:"value"`
}

// GlobalDoc holds rule-set wide switches.
type GlobalDoc struct {
	EnableDynamicContext   bool              `mapstructure:"enableDynamicContext" json:"enableDynamicContext" yaml:"enableDynamicContext"`
	ContextFacet           string            `mapstructure:"contextFacet" json:"contextFacet,omitempty" yaml:"contextFacet,omitempty"`
	ContextFacetByCategory map[string]string `mapstructure:"contextFacetByCategory" json:"contextFacetByCategory,omitempty" yaml:"contextFacetByCategory,omitempty"`
	PrimaryOnlyContexts    []string          `mapstructure:"primaryOnlyContexts" json:"primaryOnlyContexts,omitempty" yaml:"primaryOnlyContexts,omitempty"`
}

// OverrideDoc is one context override. The shorthand form, a plain list of
// category names, decodes into Skip.
type OverrideDoc struct {
	Parent string   `mapstructure:"parent" json:"parent,omitempty" yaml:"parent,omitempty"`
	Skip   []string `mapstructure:"skip" json:"skip,omitempty" yaml:"skip,omitempty"`
}
