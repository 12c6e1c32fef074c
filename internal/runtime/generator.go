package runtime

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/compositor"
	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/internal/metadata"
	"github.com/aretw0/strata/internal/sampler"
	"github.com/aretw0/strata/internal/tags"
	"github.com/aretw0/strata/pkg/domain"
)

// Defaults for the retry budgets.
const (
	DefaultCategoryRetries = 10
	DefaultMaxRerolls      = 200
)

// Generator runs the per-token pipeline. It holds no per-token state and is
// safe for concurrent use.
type Generator struct {
	project    *Project
	compositor *compositor.Compositor
	builder    *metadata.Builder
	retries    int
	maxRerolls int
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
}

// Option configures the Generator.
type Option func(*Generator)

// WithCategoryRetries caps candidate draws per category.
func WithCategoryRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.retries = n
		}
	}
}

// WithMaxRerolls caps generation attempts per token.
func WithMaxRerolls(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRerolls = n
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(g *Generator) {
		g.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator wires a Generator over a project snapshot.
func NewGenerator(p *Project, comp *compositor.Compositor, builder *metadata.Builder, opts ...Option) *Generator {
	g := &Generator{
		project:    p,
		compositor: comp,
		builder:    builder,
		retries:    DefaultCategoryRetries,
		maxRerolls: DefaultMaxRerolls,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Project returns the snapshot the generator works on.
func (g *Generator) Project() *Project { return g.project }

// Builder returns the metadata builder.
func (g *Generator) Builder() *metadata.Builder { return g.builder }

// Job describes one token to generate.
type Job struct {
	BatchID     string
	TokenID     int64
	BaseContext []string
	Output      image.Point
	Rand        sampler.Source
	// Guard enforces uniqueness; nil disables duplicate checking (previews).
	Guard *DuplicateGuard
}

// Attempt is the outcome of one selection pass.
type Attempt struct {
	Assignment  *domain.Assignment
	Relocations []compositor.Relocation

	// stale is set when an override dropped an option another pick relied on.
	stale bool
}

var errStaleSelection = errors.New("selection depends on a suppressed option")

// Layers resolves the draw list of the attempt.
func (at *Attempt) Layers(paint []string) []domain.Option {
	return compositor.Layers(paint, at.Assignment, at.Relocations)
}

// Assemble performs one selection pass in selection order. Categories without
// an acceptable candidate are left unresolved.
func (g *Generator) Assemble(ctx context.Context, rng sampler.Source, base []string) (*Attempt, error) {
	p := g.project
	a := domain.NewAssignment(domain.NewActiveContext(base...))
	at := &Attempt{Assignment: a}
	locks := tags.Locks{}

	for _, cat := range p.Select {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		if a.Skipped(cat) {
			continue
		}
		cands := p.Sampler.Candidates(cat, a.Active, p.Sources[cat])
		cands = p.Tags.Filter(cands, locks)
		picked, ok := g.choose(cands, a, rng)
		if !ok {
			g.logger.Debug("Category unresolved", "category", cat, "candidates", len(cands))
			continue
		}

		a.Set(picked)
		if p.Sources[cat] {
			a.Active.Add(picked.Context...)
		}
		p.Tags.Lock(picked, locks)
		if ov, ok := p.Rules.OverrideFor(picked); ok {
			dropped := false
			for _, s := range ov.Skip {
				if s != cat {
					dropped = dropped || a.Has(s)
					a.Skip(s)
				}
			}
			at.Relocations = append(at.Relocations, compositor.Relocation{Owner: cat, Parent: ov.Parent})
			if dropped {
				var ok bool
				if locks, ok = g.replay(a, base); !ok {
					at.stale = true
					return at, nil
				}
			}
		}
	}
	return at, nil
}

// replay rebuilds the active context and tag locks from the surviving picks,
// in the order they were accepted. It reports false when a surviving pick is
// no longer available without the suppressed options.
func (g *Generator) replay(a *domain.Assignment, base []string) (tags.Locks, bool) {
	p := g.project
	a.Active = domain.NewActiveContext(base...)
	locks := tags.Locks{}
	for _, o := range a.Options() {
		if !containsOption(p.Sampler.Candidates(o.Category, a.Active, p.Sources[o.Category]), o) || !p.Tags.Allowed(o, locks) {
			return locks, false
		}
		if p.Sources[o.Category] {
			a.Active.Add(o.Context...)
		}
		p.Tags.Lock(o, locks)
	}
	return locks, true
}

func containsOption(opts []domain.Option, o domain.Option) bool {
	k := o.Key()
	for _, c := range opts {
		if c.Key() == k {
			return true
		}
	}
	return false
}

// choose draws candidates until one passes the incremental rule check.
// Rejected candidates are removed from the pool for the remaining draws.
func (g *Generator) choose(cands []domain.Option, a *domain.Assignment, rng sampler.Source) (domain.Option, bool) {
	if len(cands) == 0 {
		return domain.Option{}, false
	}
	pool := append([]domain.Option(nil), cands...)
	weighted := totalWeight(pool) > 0
	for try := 0; try < g.retries && len(pool) > 0; try++ {
		if weighted && totalWeight(pool) <= 0 {
			break
		}
		i := sampler.Pick(pool, rng)
		cand := pool[i]
		if v := g.project.Constraints.Check(cand, a); v != nil {
			g.logger.Debug("Candidate rejected", "option", cand.Key().String(), "reason", v.Error())
			pool = append(pool[:i], pool[i+1:]...)
			continue
		}
		return cand, true
	}
	return domain.Option{}, false
}

func totalWeight(opts []domain.Option) float64 {
	t := 0.0
	for _, o := range opts {
		t += max(o.Weight, 0)
	}
	return t
}

// Validate re-checks a finished attempt against every rule and tag group.
func (g *Generator) Validate(at *Attempt) error {
	if at.stale {
		return errStaleSelection
	}
	if vs := g.project.Constraints.Validate(at.Assignment); len(vs) > 0 {
		return vs[0]
	}
	if groups := g.project.Tags.Conflicts(at.Assignment); len(groups) > 0 {
		return fmt.Errorf("tag group %q mixes subtags", groups[0])
	}
	return nil
}

// Generate runs the token state machine: selecting, global validation,
// duplicate check and composition, rerolling from the base context until the
// budget is exhausted. Persistence is left to the caller.
func (g *Generator) Generate(ctx context.Context, job Job) (*domain.Token, error) {
	p := g.project
	logger := g.logger.With("batch_id", job.BatchID, "token_id", job.TokenID)

	for attempt := 1; attempt <= g.maxRerolls; attempt++ {
		at, err := g.Assemble(ctx, job.Rand, job.BaseContext)
		if err != nil {
			return nil, err
		}

		if err := g.Validate(at); err != nil {
			logger.Debug("Attempt violates rules", "attempt", attempt, "err", err)
			g.emitReroll(ctx, job, attempt, domain.RerollRuleViolation, "")
			continue
		}

		key := at.Assignment.Key(p.Paint)
		if job.Guard != nil {
			if ctx.Err() != nil {
				return nil, domain.ErrCancelled
			}
			fresh, err := job.Guard.Claim(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("claim combo key: %w", err)
			}
			if !fresh {
				logger.Debug("Duplicate combination", "attempt", attempt, "combo_key", string(key))
				g.emitReroll(ctx, job, attempt, domain.RerollDuplicate, key)
				continue
			}
		}

		layers := at.Layers(p.Paint)
		img, err := g.compositor.Compose(ctx, layers, job.Output)
		if err != nil {
			if domain.IsCancelled(err) {
				return nil, domain.ErrCancelled
			}
			return nil, &domain.TokenError{TokenID: job.TokenID, Code: domain.CodeCompositionFailed, Attempts: attempt, Err: err}
		}
		return &domain.Token{
			ID:       job.TokenID,
			Key:      key,
			Layers:   layers,
			Image:    img,
			Attempts: attempt,
		}, nil
	}
	return nil, &domain.TokenError{
		TokenID:  job.TokenID,
		Code:     domain.CodeUniqueExhausted,
		Attempts: g.maxRerolls,
		Err:      domain.ErrUniqueExhausted,
	}
}

func (g *Generator) emitReroll(ctx context.Context, job Job, attempt int, reason domain.RerollReason, key domain.ComboKey) {
	if g.hooks.OnTokenReroll == nil {
		return
	}
	g.hooks.OnTokenReroll(ctx, &domain.TokenEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventTokenReroll, BatchID: job.BatchID},
		TokenID:   job.TokenID,
		Phase:     domain.PhaseSelecting,
		Attempt:   attempt,
		Reason:    reason,
		Key:       key,
	})
}
