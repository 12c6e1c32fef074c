// Package runtime drives the generation of a single token: context-aware
// selection in dependency order, rule validation, duplicate detection and
// composition.
package runtime

import (
	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/constraint"
	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/internal/sampler"
	"github.com/aretw0/strata/internal/tags"
	"github.com/aretw0/strata/pkg/domain"
)

// Project is the immutable snapshot a batch generates from. It is built once
// per batch and shared read-only by every worker.
type Project struct {
	Index       *assets.Index
	Rules       *rules.Store
	Tags        *tags.Index
	Constraints *constraint.Engine
	Sampler     *sampler.Sampler
	// Paint is the bottom to top draw order.
	Paint []string
	// Select is the order categories are chosen in.
	Select []string
	// Sources are the categories that establish context.
	Sources map[string]bool
	// Custom are hand-made tokens emitted before generated ones.
	Custom []domain.CustomToken

	loadWarnings []error
}

// NewProject derives every per-batch index from the asset index and rule set.
// The index categories are expected in layer order (top-most first).
// warnings are problems reported while loading set; they are kept alongside
// the ones found here.
func NewProject(idx *assets.Index, set *domain.RuleSet, warnings ...error) *Project {
	store := rules.NewStore(set, idx)
	paint := PaintOrder(idx.Categories())
	selectOrder, sources := SelectionOrder(idx, paint, store.DynamicContext())
	return &Project{
		Index:       idx,
		Rules:       store,
		Tags:        tags.Build(store.Tags(), idx),
		Constraints: constraint.New(store.Rules()),
		Sampler:     sampler.New(idx, store),
		Paint:       paint,
		Select:      selectOrder,
		Sources:     sources,

		loadWarnings: warnings,
	}
}

// Warnings lists configuration problems detected while building the project.
func (p *Project) Warnings() []error {
	out := append([]error(nil), p.loadWarnings...)
	return append(out, p.Rules.Warnings()...)
}

// PaintOrder reverses the layer order list: the list names top-most layers
// first, painting starts from the bottom.
func PaintOrder(layers []string) []string {
	out := make([]string, len(layers))
	for i, c := range layers {
		out[len(layers)-1-i] = c
	}
	return out
}
