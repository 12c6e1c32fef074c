package loam

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultRulesID is the document holding the rule configuration (rules.json or rules.yaml).
	DefaultRulesID = "rules"
	// DefaultCustomID is the document listing hand-made tokens.
	DefaultCustomID = "custom/tokens"
)

// Loader adapts the Loam library to the ports.RuleLoader interface.
// Documents are addressed by their path without extension.
type Loader struct {
	Repo     core.Repository
	root     string
	rulesID  string
	customID string
}

// Option configures the Loader.
type Option func(*Loader)

// WithRulesID overrides the rule document id.
func WithRulesID(id string) Option {
	return func(l *Loader) {
		l.rulesID = id
	}
}

// WithCustomID overrides the custom tokens document id.
func WithCustomID(id string) Option {
	return func(l *Loader) {
		l.customID = id
	}
}

// New creates a new Loam adapter over repo. root is the directory the
// repository was initialized on; it is used to tell absent documents apart
// from broken ones.
func New(repo core.Repository, root string, opts ...Option) *Loader {
	l := &Loader{
		Repo:     repo,
		root:     root,
		rulesID:  DefaultRulesID,
		customID: DefaultCustomID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only, strict Loam repository on dir.
// Strict mode keeps integers as json.Number so weights never lose precision.
func Open(dir string, opts ...Option) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(repo, absPath, opts...), nil
}

// LoadRules decodes and normalizes the rule document.
// An absent document yields an empty rule set.
func (l *Loader) LoadRules(ctx context.Context) (*domain.RuleSet, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	raw, err := l.metadata(ctx, l.rulesID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := rules.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("rule document %s: %w", l.rulesID, err)
	}
	set, warns := rules.Normalize(doc)
	return set, warns, nil
}

// LoadCustomTokens reads the hand-made token list ({"items": [...]}).
// Only items flagged include are returned. An absent document yields none.
func (l *Loader) LoadCustomTokens(ctx context.Context) ([]domain.CustomToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := l.metadata(ctx, l.customID)
	if err != nil || raw == nil {
		return nil, err
	}

	var list struct {
		Items []domain.CustomToken `mapstructure:"items"`
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &list,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: custom tokens: %v", domain.ErrMalformedConfiguration, err)
	}

	included := make([]domain.CustomToken, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Include {
			included = append(included, item)
		}
	}
	return included, nil
}

func (l *Loader) metadata(ctx context.Context, id string) (map[string]any, error) {
	if !l.exists(id) {
		return nil, nil
	}
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return doc.Metadata, nil
}

func (l *Loader) exists(id string) bool {
	if l.root == "" {
		return true
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		if matches, _ := filepath.Glob(filepath.Join(l.root, filepath.FromSlash(id)+ext)); len(matches) > 0 {
			return true
		}
	}
	return false
}

// Watch implements ports.Watchable over every rule document format.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- evt.ID:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}
