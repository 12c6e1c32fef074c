package middleware

import (
	"context"
	"regexp"
	"slices"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

type hideAttributes struct {
	passthrough
	patterns []*regexp.Regexp
}

// NewHideAttributes creates a middleware that drops metadata facets whose
// trait type matches any of the patterns before they are persisted.
func NewHideAttributes(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ArtifactStore) ports.ArtifactStore {
		return &hideAttributes{passthrough: passthrough{next}, patterns: patterns}
	}
}

func (m *hideAttributes) SaveMetadata(ctx context.Context, md *domain.TokenMetadata) error {
	// Clone to avoid side effects on the record held by the caller.
	cloned := *md
	cloned.Attributes = slices.DeleteFunc(slices.Clone(md.Attributes), func(a domain.Attribute) bool {
		for _, p := range m.patterns {
			if p.MatchString(a.TraitType) {
				return true
			}
		}
		return false
	})
	return m.ArtifactStore.SaveMetadata(ctx, &cloned)
}
