package ports

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// RuleLoader retrieves the rule configuration a batch generates with.
// Non-fatal configuration problems are returned as warnings alongside the set.
type RuleLoader interface {
	LoadRules(ctx context.Context) (*domain.RuleSet, []error, error)
}

// CustomTokenLoader retrieves the hand-made tokens a batch starts with.
// Only tokens flagged for inclusion are returned.
type CustomTokenLoader interface {
	LoadCustomTokens(ctx context.Context) ([]domain.CustomToken, error)
}

// Watchable is implemented by loaders that can notify about changes to the
// documents they read. The channel carries the id of the changed document
// and is closed when ctx ends.
type Watchable interface {
	Watch(ctx context.Context) (<-chan string, error)
}
