package report

import (
	"cmp"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

// Duplicate is a token whose attributes repeat an earlier one.
type Duplicate struct {
	TokenID     int64  `json:"token_id"`
	DuplicateOf int64  `json:"duplicate_of"`
	Signature   string `json:"signature"`
}

// Signature renders the attributes as a stable "trait=value|..." string.
func Signature(attrs []domain.Attribute) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.TraitType + "=" + a.Value
	}
	slices.Sort(parts)
	return strings.Join(parts, "|")
}

// Duplicates scans records in token id order. Each repeat is reported
// against the first token carrying the same signature.
func Duplicates(records []*domain.TokenMetadata) []Duplicate {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b *domain.TokenMetadata) int { return cmp.Compare(a.TokenID, b.TokenID) })

	first := make(map[string]int64, len(sorted))
	var out []Duplicate
	for _, md := range sorted {
		sig := Signature(md.Attributes)
		if id, ok := first[sig]; ok {
			out = append(out, Duplicate{TokenID: md.TokenID, DuplicateOf: id, Signature: sig})
			continue
		}
		first[sig] = md.TokenID
	}
	return out
}

// FromGroups flattens ledger duplicate groups into the same shape.
func FromGroups(groups []ports.DuplicateGroup) []Duplicate {
	var out []Duplicate
	for _, g := range groups {
		if len(g.TokenIDs) < 2 {
			continue
		}
		ids := slices.Clone(g.TokenIDs)
		slices.Sort(ids)
		for _, id := range ids[1:] {
			out = append(out, Duplicate{TokenID: id, DuplicateOf: ids[0], Signature: string(g.Key)})
		}
	}
	return out
}
