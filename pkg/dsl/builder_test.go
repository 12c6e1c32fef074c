package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_RuleSet(t *testing.T) {
	b := New()

	b.Category("Background").
		Weight("Sky Blue", 80).
		Weight("Sunset", 0)
	b.Category("Skin").
		WeightIn("female", "Pale", 5).
		ShowTo("Tiara", "female", "royal")

	b.Rule("Hat", "Crown").
		Excludes("Hair", "Bald")
	b.Rule("Hat", "Helmet").
		In("soldier").
		Requires("Hair", "Short").
		Requires("Hair", "Buzz")

	b.Tag("element", "fire", Item("Skin", "Lava")).
		Tag("element", "water", Item("Skin", "Ocean"))
	b.Override("fullbody", "Outfit", "Top", "Bottom").
		DynamicContext(true).
		ContextFacet("Kind").
		FacetFor("Skin", "Body").
		PrimaryOnly("fullbody")

	loader, err := b.Build()
	require.NoError(t, err)

	set, warns, err := loader.LoadRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, warns)

	w, ok := set.Weight(domain.Bucket{Category: "background"}, "sky_blue")
	require.True(t, ok)
	assert.Equal(t, 80.0, w)
	w, ok = set.Weight(domain.Bucket{Category: "background"}, "sunset")
	require.True(t, ok)
	assert.Zero(t, w)
	w, ok = set.Weight(domain.Bucket{Category: "skin", Context: "female"}, "pale")
	require.True(t, ok)
	assert.Equal(t, 5.0, w)
	assert.Equal(t, []string{"female", "royal"}, set.ShowTo["skin"]["tiara"])

	require.Len(t, set.Rules, 2)
	assert.Equal(t, domain.Selector{Category: "hat", Value: "crown"}, set.Rules[0].Primary)
	assert.Equal(t, []domain.Selector{{Category: "hair", Value: "bald"}}, set.Rules[0].ExcludeWith)
	assert.Equal(t, domain.ContextPath{"soldier"}, set.Rules[1].Primary.Context)
	assert.Len(t, set.Rules[1].RequireWith, 2)

	require.Len(t, set.Tags, 1)
	assert.Equal(t, "element", set.Tags[0].Name)
	require.Len(t, set.Tags[0].Subtags, 2)
	assert.Equal(t, "fire", set.Tags[0].Subtags[0].Name)
	assert.Equal(t, []domain.TagItem{{Category: "skin", Value: "lava"}}, set.Tags[0].Subtags[0].Items)

	require.Len(t, set.Overrides, 1)
	assert.Equal(t, domain.ContextOverride{Prefix: domain.ContextPath{"fullbody"}, Parent: "outfit", Skip: []string{"top", "bottom"}}, set.Overrides[0])

	assert.True(t, set.Global.EnableDynamicContext)
	assert.Equal(t, "Kind", set.Global.ContextFacet)
	assert.Equal(t, "Body", set.Global.ContextFacetByCategory["skin"])
	assert.Equal(t, []domain.ContextPath{{"fullbody"}}, set.Global.PrimaryOnlyContexts)
}

func TestBuilder_ManyRulesKeepTheirTargets(t *testing.T) {
	b := New()
	first := b.Rule("Hat", "Crown")
	for i := 0; i < 20; i++ {
		b.Rule("Eyes", "Laser").Excludes("Mouth", "Pipe")
	}
	first.Excludes("Hair", "Bald")

	set, _, err := mustLoad(t, b)
	require.NoError(t, err)
	assert.Equal(t, "crown", set.Rules[0].Primary.Value)
	assert.Equal(t, "bald", set.Rules[0].ExcludeWith[0].Value)
}

func TestBuilder_RejectsEmptyNames(t *testing.T) {
	b := New()
	b.Category("Hat").Weight("  ", 3)
	b.Rule("", "Crown")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weight")
	assert.Contains(t, err.Error(), "rule")
}

func TestBuilder_Document(t *testing.T) {
	b := New()
	b.Category("Hat").WeightIn("/female/", "Tiara", 2)
	doc := b.Document()
	assert.Equal(t, map[string]float64{"Tiara": 2}, doc.Weights["Hat__female"])
}

func mustLoad(t *testing.T, b *Builder) (*domain.RuleSet, []error, error) {
	t.Helper()
	loader, err := b.Build()
	require.NoError(t, err)
	return loader.LoadRules(context.Background())
}
