// Package compositor paints the chosen layers of a token onto a small pixel-art
// canvas and upscales the result without smoothing.
package compositor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io/fs"

	"github.com/aretw0/strata/pkg/domain"
	xdraw "golang.org/x/image/draw"
)

// DefaultCanvas is the native pixel-art resolution layers are drawn at.
var DefaultCanvas = image.Pt(36, 36)

// Relocation paints Owner immediately after Parent.
type Relocation struct {
	Owner  string
	Parent string
}

// Layers resolves the draw list: paint order with relocations applied, minus
// skipped and unresolved categories.
func Layers(paint []string, a *domain.Assignment, relocs []Relocation) []domain.Option {
	order := append([]string(nil), paint...)
	for _, r := range relocs {
		if r.Parent == "" || r.Owner == r.Parent || indexOf(order, r.Parent) < 0 {
			continue
		}
		if i := indexOf(order, r.Owner); i >= 0 {
			order = append(order[:i], order[i+1:]...)
		}
		p := indexOf(order, r.Parent)
		order = append(order[:p+1], append([]string{r.Owner}, order[p+1:]...)...)
	}

	out := make([]domain.Option, 0, len(order))
	for _, c := range order {
		if a.Skipped(c) {
			continue
		}
		if o, ok := a.Get(c); ok {
			out = append(out, o)
		}
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// Compositor renders layers read through a shared decode cache.
type Compositor struct {
	canvas image.Point
	cache  *Cache
}

// Option configures the Compositor.
type Option func(*Compositor)

// WithCanvas sets the native drawing resolution.
func WithCanvas(size image.Point) Option {
	return func(c *Compositor) {
		if size.X > 0 && size.Y > 0 {
			c.canvas = size
		}
	}
}

// New creates a Compositor reading assets from cache.
func New(cache *Cache, opts ...Option) *Compositor {
	c := &Compositor{canvas: DefaultCanvas, cache: cache}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Canvas returns the native drawing resolution.
func (c *Compositor) Canvas() image.Point { return c.canvas }

// Cache returns the shared decode cache.
func (c *Compositor) Cache() *Cache { return c.cache }

// Render draws layers bottom to top and scales the canvas to out.
// Cancellation is checked before every layer load.
func (c *Compositor) Render(ctx context.Context, layers []domain.Option, out image.Point) (image.Image, error) {
	canvas := image.NewNRGBA(image.Rectangle{Max: c.canvas})
	for _, l := range layers {
		if ctx.Err() != nil {
			return nil, domain.ErrCancelled
		}
		img, err := c.cache.Load(l.Asset)
		if err != nil {
			return nil, fmt.Errorf("load layer %s: %w", l.Key(), err)
		}
		xdraw.NearestNeighbor.Scale(canvas, canvas.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	}
	if out.X <= 0 || out.Y <= 0 || out == c.canvas {
		return canvas, nil
	}
	scaled := image.NewNRGBA(image.Rectangle{Max: out})
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), canvas, canvas.Bounds(), xdraw.Src, nil)
	return scaled, nil
}

// Compose renders layers and encodes the result as PNG.
func (c *Compositor) Compose(ctx context.Context, layers []domain.Option, out image.Point) ([]byte, error) {
	img, err := c.Render(ctx, layers, out)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// OpenFS is a convenience for callers that only hold a filesystem.
func OpenFS(fsys fs.FS, cacheSize int, opts ...Option) (*Compositor, error) {
	cache, err := NewCache(fsys, cacheSize)
	if err != nil {
		return nil, err
	}
	return New(cache, opts...), nil
}
