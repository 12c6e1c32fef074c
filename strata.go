package strata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/compositor"
	"github.com/aretw0/strata/internal/metadata"
	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/pkg/adapters/file"
	loamAdapter "github.com/aretw0/strata/pkg/adapters/loam"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/session"
)

// Default project layout, relative to the project directory.
const (
	DefaultLayersDir  = "layers"
	DefaultOutputDir  = "output"
	DefaultLayerOrder = "layerorder.json"
)

// Engine is the high-level entry point for the Strata library.
// It loads a project (layers, rules, custom tokens) and runs batches over it.
type Engine struct {
	Name string

	root        string
	layers      fs.FS
	files       fs.FS
	layerOrder  []string
	loader      ports.RuleLoader
	store       ports.ArtifactStore
	seen        ports.SeenSet
	ledger      ports.Ledger
	locker      ports.DistributedLocker
	concurrency int
	retries     int
	maxRerolls  int
	cacheSize   int
	canvas      image.Point
	collection  string
	description string
	hooks       domain.LifecycleHooks
	logger      *slog.Logger

	cache   *compositor.Cache
	manager *session.Manager
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom RuleLoader, bypassing the default Loam initialization.
func WithLoader(l ports.RuleLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithLayersFS reads the asset library from fsys instead of <project>/layers.
func WithLayersFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.layers = fsys
	}
}

// WithFiles sets where custom token files are resolved.
func WithFiles(fsys fs.FS) Option {
	return func(e *Engine) {
		e.files = fsys
	}
}

// WithLayerOrder sets the category list, top-most layer first.
func WithLayerOrder(categories ...string) Option {
	return func(e *Engine) {
		e.layerOrder = categories
	}
}

// WithStore sets where tokens are persisted (default: files under <project>/output).
func WithStore(store ports.ArtifactStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithSeenSet sets the batch seen-set (default: in memory).
func WithSeenSet(seen ports.SeenSet) Option {
	return func(e *Engine) {
		e.seen = seen
	}
}

// WithLedger records every emitted token.
func WithLedger(ledger ports.Ledger) Option {
	return func(e *Engine) {
		e.ledger = ledger
	}
}

// WithLocker keeps a single batch in flight across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithConcurrency bounds the tokens generated in parallel.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithBudgets sets the per-category draw cap and the per-token reroll cap.
func WithBudgets(categoryRetries, maxRerolls int) Option {
	return func(e *Engine) {
		e.retries = categoryRetries
		e.maxRerolls = maxRerolls
	}
}

// WithCacheSize bounds the decoded layer cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		e.cacheSize = n
	}
}

// WithCanvas sets the native drawing resolution of the layers.
func WithCanvas(size image.Point) Option {
	return func(e *Engine) {
		e.canvas = size
	}
}

// WithCollection sets the collection name and description used in metadata.
func WithCollection(name, description string) Option {
	return func(e *Engine) {
		e.collection = name
		e.description = description
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a new Strata Engine over a project directory.
// By default, rules and custom tokens are read through a Loam repository at
// projectDir, layers from <projectDir>/layers and tokens are written to
// <projectDir>/output. projectDir may be empty when every source is injected.
func New(projectDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		cacheSize: compositor.DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if projectDir != "" {
		absPath, err := filepath.Abs(projectDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.root = absPath
		eng.Name = filepath.Base(absPath)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("project", eng.Name)
	}

	if eng.loader == nil {
		if eng.root == "" {
			return nil, fmt.Errorf("projectDir is required when no custom loader is provided")
		}
		loader, err := loamAdapter.Open(eng.root)
		if err != nil {
			return nil, err
		}
		eng.loader = loader
	}
	if eng.layers == nil {
		if eng.root == "" {
			return nil, fmt.Errorf("projectDir is required when no layers filesystem is provided")
		}
		eng.layers = os.DirFS(filepath.Join(eng.root, DefaultLayersDir))
	}
	if eng.files == nil && eng.root != "" {
		eng.files = os.DirFS(eng.root)
	}
	if eng.store == nil {
		if eng.root == "" {
			eng.store = memory.NewStore()
		} else {
			eng.store = file.New(filepath.Join(eng.root, DefaultOutputDir))
		}
	}
	if eng.seen == nil {
		eng.seen = memory.NewSeenSet()
	}

	cache, err := compositor.NewCache(eng.layers, eng.cacheSize)
	if err != nil {
		return nil, err
	}
	eng.cache = cache

	mgrOpts := []session.Option{
		session.WithConcurrency(eng.concurrency),
		session.WithLifecycleHooks(eng.hooks),
		session.WithLogger(eng.logger),
	}
	if eng.files != nil {
		mgrOpts = append(mgrOpts, session.WithCustomFiles(eng.files))
	}
	if eng.ledger != nil {
		mgrOpts = append(mgrOpts, session.WithLedger(eng.ledger))
	}
	if eng.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(eng.locker))
	}
	eng.manager = session.NewManager(eng.store, eng.seen, mgrOpts...)

	return eng, nil
}

// LayerOrder resolves the category list, top-most first: the configured
// order, else <project>/layerorder.json, else the layer directories.
func (e *Engine) LayerOrder() ([]string, error) {
	if len(e.layerOrder) > 0 {
		return e.layerOrder, nil
	}
	if e.root != "" {
		data, err := os.ReadFile(filepath.Join(e.root, DefaultLayerOrder))
		switch {
		case err == nil:
			var order []string
			if err := json.Unmarshal(data, &order); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedConfiguration, DefaultLayerOrder, err)
			}
			if len(order) > 0 {
				return order, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read layer order: %w", err)
		}
	}
	return assets.DiscoverCategories(e.layers)
}

// LoadProject snapshots the asset library and the rules.
func (e *Engine) LoadProject(ctx context.Context) (*runtime.Project, error) {
	order, err := e.LayerOrder()
	if err != nil {
		return nil, err
	}
	idx, err := assets.Build(e.layers, order, assets.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	set, warns, err := e.loader.LoadRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	p := runtime.NewProject(idx, set, warns...)
	// Layer files may have changed since the previous snapshot.
	e.cache.Purge()

	if cl, ok := e.loader.(ports.CustomTokenLoader); ok {
		custom, err := cl.LoadCustomTokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("load custom tokens: %w", err)
		}
		p.Custom = custom
	}
	for _, w := range p.Warnings() {
		e.logger.Warn("Configuration warning", "err", w)
	}
	return p, nil
}

// Generator loads the project and wires a token generator over it.
func (e *Engine) Generator(ctx context.Context) (*runtime.Generator, error) {
	p, err := e.LoadProject(ctx)
	if err != nil {
		return nil, err
	}
	comp := compositor.New(e.cache, compositor.WithCanvas(e.canvas))
	builder := metadata.New(p.Rules.Global(), p.Tags,
		metadata.WithCollection(e.collection),
		metadata.WithDescription(e.description),
	)
	return runtime.NewGenerator(p, comp, builder,
		runtime.WithCategoryRetries(e.retries),
		runtime.WithMaxRerolls(e.maxRerolls),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	), nil
}

// Start loads the project and launches a batch in the background.
func (e *Engine) Start(ctx context.Context, req domain.BatchRequest) (*session.Session, error) {
	gen, err := e.Generator(ctx)
	if err != nil {
		return nil, err
	}
	return e.manager.Start(ctx, gen, req)
}

// Cancel stops the running batch.
func (e *Engine) Cancel() error {
	return e.manager.Cancel()
}

// Progress reports the state of the latest batch.
func (e *Engine) Progress() domain.Progress {
	return e.manager.Progress()
}

// Subscribe streams progress snapshots. Call the returned function to stop.
func (e *Engine) Subscribe() (<-chan domain.Progress, func()) {
	return e.manager.Subscribe()
}

// Wait blocks until the latest batch finishes.
func (e *Engine) Wait(ctx context.Context) (domain.Progress, error) {
	s := e.manager.Current()
	if s == nil {
		return domain.Progress{Status: domain.BatchIdle}, domain.ErrNoBatch
	}
	return s.Wait(ctx)
}

// Token returns the persisted metadata of a token.
func (e *Engine) Token(ctx context.Context, id int64) (*domain.TokenMetadata, error) {
	return e.store.LoadMetadata(ctx, id)
}

// Tokens lists the persisted token ids.
func (e *Engine) Tokens(ctx context.Context) ([]int64, error) {
	return e.store.List(ctx)
}

// Preview generates one token without persisting it or claiming its combination.
func (e *Engine) Preview(ctx context.Context, req domain.PreviewRequest) (*domain.Token, error) {
	gen, err := e.Generator(ctx)
	if err != nil {
		return nil, err
	}
	seed := req.Seed
	if seed == 0 {
		seed = rand.Int64()
	}
	size := domain.ClampOutputSize(req.Size)
	tok, err := gen.Generate(ctx, runtime.Job{
		BatchID:     "preview",
		BaseContext: req.BaseContext,
		Output:      image.Pt(size, size),
		Rand:        rand.New(rand.NewPCG(uint64(seed), 0)),
	})
	if err != nil {
		return nil, err
	}
	tok.Metadata = gen.Builder().Build(0, "", tok.Layers)
	return tok, nil
}

// Watch signals when a rule or custom token document changes. It fails when
// the configured loader cannot watch.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}

// Store returns the artifact store tokens are persisted to.
func (e *Engine) Store() ports.ArtifactStore {
	return e.store
}

// Ledger returns the configured ledger, or nil.
func (e *Engine) Ledger() ports.Ledger {
	return e.ledger
}

// CacheStats reports the decoded layer cache usage.
func (e *Engine) CacheStats() compositor.CacheStats {
	return e.cache.Stats()
}
