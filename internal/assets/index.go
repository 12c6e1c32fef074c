// Package assets builds the Asset Index: the catalogue of trait options found in
// a layered asset library laid out as <root>/<category>/[<context>/...]<value>.<ext>.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
)

// DefaultExtensions are the raster formats picked up by the walk.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// Index is the read-only catalogue of options per category.
// It is built once per batch and shared by all workers.
type Index struct {
	categories []string
	dirs       map[string]string
	options    map[string][]domain.Option
	values     map[string]map[string]struct{}
	byKey      map[domain.ItemKey]domain.Option
}

// Option configures Build.
type Option func(*builder)

type builder struct {
	exts   map[string]bool
	logger *slog.Logger
}

// WithExtensions replaces the accepted file extensions.
func WithExtensions(exts ...string) Option {
	return func(b *builder) {
		b.exts = make(map[string]bool, len(exts))
		for _, e := range exts {
			b.exts[strings.ToLower(e)] = true
		}
	}
}

// WithLogger configures a logger for walk diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

// Build walks every category directory of fsys. Categories are given by their
// directory names; a category without a directory yields an empty option list.
func Build(fsys fs.FS, categories []string, opts ...Option) (*Index, error) {
	b := &builder{logger: logging.NewNop()}
	WithExtensions(DefaultExtensions...)(b)
	for _, opt := range opts {
		opt(b)
	}

	if _, err := fs.Stat(fsys, "."); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAssetRootMissing, err)
	}

	idx := &Index{
		dirs:    make(map[string]string, len(categories)),
		options: make(map[string][]domain.Option, len(categories)),
		values:  make(map[string]map[string]struct{}, len(categories)),
		byKey:   make(map[domain.ItemKey]domain.Option),
	}
	for _, dir := range categories {
		category := domain.Sanitize(dir)
		if category == "" {
			continue
		}
		if _, seen := idx.dirs[category]; seen {
			b.logger.Warn("Duplicate category in layer order", "category", category)
			continue
		}
		idx.categories = append(idx.categories, category)
		idx.dirs[category] = dir
		idx.values[category] = make(map[string]struct{})
		if err := b.walk(fsys, idx, category, dir); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

type frame struct {
	dir string
	ctx domain.ContextPath
}

// walk uses an explicit stack so arbitrarily deep context trees cannot exhaust
// the goroutine stack.
func (b *builder) walk(fsys fs.FS, idx *Index, category, root string) error {
	stack := []frame{{dir: root}}
	var found []domain.Option
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := fs.ReadDir(fsys, top.dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && top.dir == root {
				b.logger.Debug("Category directory missing", "category", category, "dir", root)
				return nil
			}
			return fmt.Errorf("read %s: %w", top.dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}
			full := path.Join(top.dir, name)
			if e.IsDir() {
				seg := domain.Sanitize(name)
				if seg == "" {
					continue
				}
				ctx := append(top.ctx.Clone(), seg)
				stack = append(stack, frame{dir: full, ctx: ctx})
				continue
			}
			ext := strings.ToLower(path.Ext(name))
			if !b.exts[ext] {
				continue
			}
			value := domain.Sanitize(strings.TrimSuffix(name, path.Ext(name)))
			if value == "" {
				continue
			}
			found = append(found, domain.Option{
				Category: category,
				Value:    value,
				Context:  top.ctx,
				Asset:    full,
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		ci, cj := found[i].Context.String(), found[j].Context.String()
		if ci != cj {
			return ci < cj
		}
		return found[i].Value < found[j].Value
	})
	for _, o := range found {
		key := o.Key()
		if _, dup := idx.byKey[key]; dup {
			b.logger.Warn("Duplicate asset ignored", "option", key.String(), "asset", o.Asset)
			continue
		}
		idx.byKey[key] = o
		idx.values[category][o.Value] = struct{}{}
		idx.options[category] = append(idx.options[category], o)
	}
	return nil
}

// DiscoverCategories lists the top-level directories of fsys, sorted by name.
func DiscoverCategories(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrAssetRootMissing
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Categories returns the sanitized categories in layer order.
func (idx *Index) Categories() []string {
	out := make([]string, len(idx.categories))
	copy(out, idx.categories)
	return out
}

// Options returns the options of category. The slice must not be modified.
func (idx *Index) Options(category string) []domain.Option {
	return idx.options[category]
}

// Values returns the distinct values of category across all contexts.
func (idx *Index) Values(category string) map[string]struct{} {
	return idx.values[category]
}

// Has reports whether category offers value under any context.
func (idx *Index) Has(category, value string) bool {
	_, ok := idx.values[category][value]
	return ok
}

// HasCategory reports whether category is part of the layer order.
func (idx *Index) HasCategory(category string) bool {
	_, ok := idx.values[category]
	return ok
}

// Lookup returns the option with the exact composite key.
func (idx *Index) Lookup(key domain.ItemKey) (domain.Option, bool) {
	o, ok := idx.byKey[key]
	return o, ok
}

// HasContext reports whether any option of category lives under a context.
func (idx *Index) HasContext(category string) bool {
	return idx.MinContextDepth(category) > 0
}

// MinContextDepth is the shallowest non-empty context depth of category, or 0.
func (idx *Index) MinContextDepth(category string) int {
	depth := 0
	for _, o := range idx.options[category] {
		if d := o.Context.Depth(); d > 0 && (depth == 0 || d < depth) {
			depth = d
		}
	}
	return depth
}

// Len is the total number of options.
func (idx *Index) Len() int { return len(idx.byKey) }
