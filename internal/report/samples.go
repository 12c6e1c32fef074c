package report

import (
	"context"
	"fmt"

	"github.com/aretw0/strata/internal/metadata"
	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// FromLedger decodes the combination of every ledger entry.
func FromLedger(entries []ports.LedgerEntry) [][]domain.ItemKey {
	out := make([][]domain.ItemKey, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key.Items())
	}
	return out
}

// FromMetadata maps the attributes of every record back to options of p.
// Attributes that match no option (context facets, tags, custom tokens)
// are ignored. A value present under several contexts is resolved through
// the context facet the record carries.
func FromMetadata(p *runtime.Project, records []*domain.TokenMetadata) [][]domain.ItemKey {
	byName := make(map[string]string) // beautified category -> category
	for _, cat := range p.Index.Categories() {
		byName[domain.Beautify(cat)] = cat
	}

	out := make([][]domain.ItemKey, 0, len(records))
	for _, md := range records {
		facets := make(map[string]bool, len(md.Attributes))
		for _, a := range md.Attributes {
			facets[a.Value] = true
		}

		var items []domain.ItemKey
		for _, a := range md.Attributes {
			cat, ok := byName[a.TraitType]
			if !ok {
				continue
			}
			if key, ok := resolve(p, cat, domain.Sanitize(a.Value), facets); ok {
				items = append(items, key)
			}
		}
		if len(items) > 0 {
			out = append(out, items)
		}
	}
	return out
}

func resolve(p *runtime.Project, category, value string, facets map[string]bool) (domain.ItemKey, bool) {
	var found []domain.Option
	for _, o := range p.Index.Options(category) {
		if o.Value == value {
			found = append(found, o)
		}
	}
	switch len(found) {
	case 0:
		return domain.ItemKey{}, false
	case 1:
		return found[0].Key(), true
	}
	for _, o := range found {
		if !o.Context.IsZero() && facets[metadata.BeautifyContext(o.Context)] {
			return o.Key(), true
		}
	}
	return found[0].Key(), true
}

// Collect loads every persisted metadata record of store.
func Collect(ctx context.Context, store ports.ArtifactStore) ([]*domain.TokenMetadata, error) {
	ids, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	out := make([]*domain.TokenMetadata, 0, len(ids))
	for _, id := range ids {
		md, err := store.LoadMetadata(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load token %d: %w", id, err)
		}
		out = append(out, md)
	}
	return out, nil
}
