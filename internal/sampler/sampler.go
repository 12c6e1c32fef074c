// Package sampler implements visibility filtering and weighted random choice
// over the options of a category.
package sampler

import (
	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/pkg/domain"
)

// Source supplies uniform floats in [0, 1). *math/rand/v2.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Sampler resolves candidate lists and draws from them.
type Sampler struct {
	index *assets.Index
	store *rules.Store
}

// New creates a Sampler over an asset index and rule store.
func New(index *assets.Index, store *rules.Store) *Sampler {
	return &Sampler{index: index, store: store}
}

// Candidates returns the options of category visible under the active context,
// with their weights resolved. isSource marks a category that establishes
// context, which lets its options through before any context exists.
func (s *Sampler) Candidates(category string, active *domain.ActiveContext, isSource bool) []domain.Option {
	all := s.index.Options(category)
	out := make([]domain.Option, 0, len(all))
	dynamic := s.store.DynamicContext()
	for _, o := range all {
		if !s.visible(o, active, dynamic, isSource) {
			continue
		}
		o.Weight = s.store.Weight(o)
		out = append(out, o)
	}
	return out
}

func (s *Sampler) visible(o domain.Option, active *domain.ActiveContext, dynamic, isSource bool) bool {
	if allowed := s.store.ShowTo(o.Category, o.Value); len(allowed) > 0 {
		for _, tag := range allowed {
			if active.Has(tag) {
				return true
			}
		}
		return false
	}
	if !dynamic || o.Context.IsZero() {
		return true
	}
	if active.Empty() && isSource {
		return true
	}
	return active.HasAll(o.Context)
}

// Probabilities normalizes the weights of opts. Negative weights count as
// zero; when nothing has positive weight the distribution is uniform.
func Probabilities(opts []domain.Option) []float64 {
	p := make([]float64, len(opts))
	if len(opts) == 0 {
		return p
	}
	total := 0.0
	for _, o := range opts {
		total += max(o.Weight, 0)
	}
	for i, o := range opts {
		if total <= 0 {
			p[i] = 1 / float64(len(opts))
		} else {
			p[i] = max(o.Weight, 0) / total
		}
	}
	return p
}

// Pick draws an index from opts by cumulative weight, or -1 when opts is empty.
func Pick(opts []domain.Option, src Source) int {
	if len(opts) == 0 {
		return -1
	}
	total := 0.0
	for _, o := range opts {
		total += max(o.Weight, 0)
	}
	if total <= 0 {
		return min(int(src.Float64()*float64(len(opts))), len(opts)-1)
	}
	r := src.Float64() * total
	last := -1
	for i, o := range opts {
		w := max(o.Weight, 0)
		if w == 0 {
			continue
		}
		last = i
		if r < w {
			return i
		}
		r -= w
	}
	return last
}
