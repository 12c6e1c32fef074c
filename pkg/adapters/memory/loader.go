package memory

import (
	"context"

	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/pkg/domain"
)

// Loader implements ports.RuleLoader over an in-memory rule set.
type Loader struct {
	set      *domain.RuleSet
	warnings []error
}

// NewLoader serves an already normalized rule set.
func NewLoader(set *domain.RuleSet) *Loader {
	if set == nil {
		set = &domain.RuleSet{}
	}
	return &Loader{set: set}
}

// NewLoaderFromBytes parses a raw JSON or YAML rule document.
// This handles normalization automatically, improving DX for tests.
func NewLoaderFromBytes(data []byte, format rules.Format) (*Loader, error) {
	doc, err := rules.Parse(data, format)
	if err != nil {
		return nil, err
	}
	return NewLoaderFromDocument(doc), nil
}

// NewLoaderFromDocument normalizes a rule document built in code.
// Normalization warnings are reported by LoadRules.
func NewLoaderFromDocument(doc *rules.Document) *Loader {
	set, warns := rules.Normalize(doc)
	return &Loader{set: set, warnings: warns}
}

// LoadRules returns the rule set.
func (l *Loader) LoadRules(ctx context.Context) (*domain.RuleSet, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return l.set, l.warnings, nil
}
