package runtime

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// DuplicateGuard claims ComboKeys in the batch scoped seen-set.
type DuplicateGuard struct {
	set     ports.SeenSet
	batchID string
}

// NewDuplicateGuard scopes set to one batch.
func NewDuplicateGuard(set ports.SeenSet, batchID string) *DuplicateGuard {
	return &DuplicateGuard{set: set, batchID: batchID}
}

// Claim atomically inserts key and reports whether it was unused.
func (g *DuplicateGuard) Claim(ctx context.Context, key domain.ComboKey) (bool, error) {
	return g.set.Add(ctx, g.batchID, key)
}

// Release drops every key of the batch.
func (g *DuplicateGuard) Release(ctx context.Context) error {
	return g.set.Clear(ctx, g.batchID)
}
