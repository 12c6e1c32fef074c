// Package metadata turns a composed token into its description record.
package metadata

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/internal/tags"
	"github.com/aretw0/strata/pkg/domain"
)

// DefaultCollection names tokens when no collection name is configured.
const DefaultCollection = "Strata"

// Builder renders attributes and metadata records. It is stateless and safe
// for concurrent use.
type Builder struct {
	global      domain.Global
	tags        *tags.Index
	collection  string
	description string
}

// Option configures the Builder.
type Option func(*Builder)

// WithCollection sets the token name prefix.
func WithCollection(name string) Option {
	return func(b *Builder) {
		if name != "" {
			b.collection = name
		}
	}
}

// WithDescription sets the description shared by every token.
func WithDescription(desc string) Option {
	return func(b *Builder) {
		b.description = desc
	}
}

// New creates a Builder. tagIndex may be nil when no tag groups exist.
func New(global domain.Global, tagIndex *tags.Index, opts ...Option) *Builder {
	b := &Builder{global: global, tags: tagIndex, collection: DefaultCollection}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attributes lists the facets of the drawn layers: one trait facet per layer
// in draw order, a deduplicated context facet for layers living under a
// context, then one facet per represented tag subtag.
func (b *Builder) Attributes(layers []domain.Option) []domain.Attribute {
	attrs := make([]domain.Attribute, 0, len(layers)*2)
	seen := make(map[domain.Attribute]bool)
	for _, l := range layers {
		attrs = append(attrs, domain.Attribute{TraitType: domain.Beautify(l.Category), Value: domain.Beautify(l.Value)})
		if l.Context.IsZero() || b.primaryOnly(l.Context) {
			continue
		}
		facet := domain.Attribute{TraitType: b.contextFacet(l.Category), Value: BeautifyContext(l.Context)}
		if !seen[facet] {
			seen[facet] = true
			attrs = append(attrs, facet)
		}
	}
	if b.tags != nil {
		for _, f := range b.tags.Resolve(layers) {
			attrs = append(attrs, domain.Attribute{TraitType: domain.Beautify(f.Group), Value: domain.Beautify(f.Subtag)})
		}
	}
	return attrs
}

func (b *Builder) primaryOnly(ctx domain.ContextPath) bool {
	for _, p := range b.global.PrimaryOnlyContexts {
		if ctx.HasPrefix(p) {
			return true
		}
	}
	return false
}

func (b *Builder) contextFacet(category string) string {
	if name := b.global.ContextFacetByCategory[category]; name != "" {
		return name
	}
	if b.global.ContextFacet != "" {
		return b.global.ContextFacet
	}
	return domain.DefaultContextFacet
}

// BeautifyContext renders a context path for display ("male/noir" -> "Male / Noir").
func BeautifyContext(ctx domain.ContextPath) string {
	parts := make([]string, len(ctx))
	for i, seg := range ctx {
		parts[i] = domain.Beautify(seg)
	}
	return strings.Join(parts, " / ")
}

// Name returns the display name of a token.
func (b *Builder) Name(tokenID int64) string {
	return fmt.Sprintf("%s #%d", b.collection, tokenID)
}

// Build assembles the metadata record. The same inputs always yield an equal record.
func (b *Builder) Build(tokenID int64, image string, layers []domain.Option) domain.TokenMetadata {
	return domain.TokenMetadata{
		Name:        b.Name(tokenID),
		Description: b.description,
		Image:       image,
		TokenID:     tokenID,
		Attributes:  b.Attributes(layers),
	}
}

// Custom builds the record of a hand-made token.
func (b *Builder) Custom(tokenID int64, image string, ct domain.CustomToken) domain.TokenMetadata {
	md := domain.TokenMetadata{
		Name:        ct.Name,
		Description: ct.Description,
		Image:       image,
		TokenID:     tokenID,
		Attributes:  ct.Attributes,
	}
	if md.Name == "" {
		md.Name = b.Name(tokenID)
	}
	if md.Description == "" {
		md.Description = b.description
	}
	if md.Attributes == nil {
		md.Attributes = []domain.Attribute{}
	}
	if strings.HasSuffix(strings.ToLower(ct.File), ".gif") {
		md.AnimationURL = image
	}
	return md
}
