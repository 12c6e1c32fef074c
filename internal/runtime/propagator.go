package runtime

import (
	"sort"

	"github.com/aretw0/strata/internal/assets"
)

// SelectionOrder orders categories so that context is established before it
// is consumed: categories offering context options come first, shallowest
// context first, then the context-free ones. Ties keep paint order. Without
// dynamic context the paint order is used unchanged.
func SelectionOrder(idx *assets.Index, paint []string, dynamic bool) ([]string, map[string]bool) {
	sources := make(map[string]bool)
	if !dynamic {
		return append([]string(nil), paint...), sources
	}

	var withCtx, plain []string
	for _, c := range paint {
		if idx.HasContext(c) {
			withCtx = append(withCtx, c)
			sources[c] = true
		} else {
			plain = append(plain, c)
		}
	}
	sort.SliceStable(withCtx, func(i, j int) bool {
		return idx.MinContextDepth(withCtx[i]) < idx.MinContextDepth(withCtx[j])
	})
	return append(withCtx, plain...), sources
}
