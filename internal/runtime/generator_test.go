package runtime_test

import (
	"context"
	"image"
	"math/rand/v2"
	"testing"

	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/compositor"
	"github.com/aretw0/strata/internal/metadata"
	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/internal/runtime"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, categories []string, set *domain.RuleSet, paths []string, opts ...runtime.Option) *runtime.Generator {
	t.Helper()
	fsys := testutils.LayerFS(t, paths...)
	idx, err := assets.Build(fsys, categories)
	require.NoError(t, err)
	if set == nil {
		set = &domain.RuleSet{}
	}
	p := runtime.NewProject(idx, set)
	comp, err := compositor.OpenFS(fsys, 32, compositor.WithCanvas(image.Pt(2, 2)))
	require.NoError(t, err)
	return runtime.NewGenerator(p, comp, metadata.New(set.Global, p.Tags), opts...)
}

func sel(cat, value string) domain.Selector {
	return domain.Selector{Category: cat, Value: value}
}

func TestAssemble_ExclusionHoldsOverManyTokens(t *testing.T) {
	set := &domain.RuleSet{Rules: []domain.Rule{
		{Primary: sel("hat", "crown"), ExcludeWith: []domain.Selector{sel("hair", "bald")}},
	}}
	gen := setup(t, []string{"Hat", "Hair"}, set, []string{
		"Hat/crown.png", "Hat/cap.png",
		"Hair/bald.png", "Hair/short.png",
	})

	crowns := 0
	for i := range 500 {
		rng := rand.New(rand.NewPCG(7, uint64(i)))
		at, err := gen.Assemble(context.Background(), rng, nil)
		require.NoError(t, err)
		require.NoError(t, gen.Validate(at))

		hat, okHat := at.Assignment.Get("hat")
		hair, okHair := at.Assignment.Get("hair")
		require.True(t, okHat && okHair, "both categories resolve")
		if hat.Value == "crown" {
			crowns++
			assert.NotEqual(t, "bald", hair.Value, "token %d pairs crown with bald", i)
		}
	}
	assert.Positive(t, crowns)
}

func TestAssemble_RequirementIsDirectional(t *testing.T) {
	set := &domain.RuleSet{Rules: []domain.Rule{
		{Primary: sel("hat", "helmet"), RequireWith: []domain.Selector{sel("hair", "short")}},
	}}
	gen := setup(t, []string{"Hat", "Hair"}, set, []string{
		"Hat/helmet.png", "Hat/cap.png",
		"Hair/bald.png", "Hair/short.png",
	})

	sawShortWithoutHelmet := false
	for i := range 300 {
		at, err := gen.Assemble(context.Background(), rand.New(rand.NewPCG(3, uint64(i))), nil)
		require.NoError(t, err)
		hat, _ := at.Assignment.Get("hat")
		hair, _ := at.Assignment.Get("hair")
		if hat.Value == "helmet" {
			assert.Equal(t, "short", hair.Value)
		}
		if hair.Value == "short" && hat.Value == "cap" {
			sawShortWithoutHelmet = true
		}
	}
	assert.True(t, sawShortWithoutHelmet, "the target never forces the primary")
}

func TestAssemble_DynamicContextAndOverride(t *testing.T) {
	set := &domain.RuleSet{
		Weights: map[domain.Bucket]map[string]float64{
			{Category: "outfit", Context: "fullbody"}: {"robe": 100},
			{Category: "outfit", Context: "casual"}:   {"vest": 0},
		},
		Overrides: []domain.ContextOverride{
			{Prefix: domain.ContextPath{"fullbody"}, Parent: "hat", Skip: []string{"top"}},
		},
		Global: domain.Global{EnableDynamicContext: true},
	}
	gen := setup(t, []string{"Hat", "Top", "Shoes", "Outfit", "Body"}, set, []string{
		"Hat/cap.png",
		"Top/tee.png",
		"Shoes/fullbody/boots.png",
		"Shoes/casual/sandals.png",
		"Outfit/fullbody/robe.png",
		"Outfit/casual/vest.png",
		"Body/plain.png",
		"Body/tall.png",
	})
	p := gen.Project()
	assert.Equal(t, []string{"body", "outfit", "shoes", "top", "hat"}, p.Paint)
	assert.Equal(t, []string{"outfit", "shoes", "body", "top", "hat"}, p.Select)

	for i := range 20 {
		at, err := gen.Assemble(context.Background(), rand.New(rand.NewPCG(1, uint64(i))), nil)
		require.NoError(t, err)

		outfit, ok := at.Assignment.Get("outfit")
		require.True(t, ok)
		assert.Equal(t, "robe", outfit.Value, "zero weight is never drawn")
		assert.True(t, at.Assignment.Active.Has("fullbody"))

		shoes, ok := at.Assignment.Get("shoes")
		require.True(t, ok)
		assert.Equal(t, "boots", shoes.Value, "casual shoes are hidden under a fullbody context")

		assert.False(t, at.Assignment.Has("top"))
		assert.True(t, at.Assignment.Skipped("top"))

		var drawn []string
		for _, l := range at.Layers(p.Paint) {
			drawn = append(drawn, l.Category)
		}
		assert.Equal(t, []string{"body", "shoes", "hat", "outfit"}, drawn, "outfit is painted right after its parent")

		key := string(at.Assignment.Key(p.Paint))
		assert.NotContains(t, key, "top=")
		assert.Contains(t, key, "outfit=fullbody - robe|shoes=fullbody - boots")
	}
}

func TestGenerate_OverrideShorthandTakesSkippedSlot(t *testing.T) {
	doc, err := rules.Parse([]byte(`
global:
  enableDynamicContext: true
contextOverrides:
  fullbody: [outfit]
`), rules.FormatYAML)
	require.NoError(t, err)
	set, warns := rules.Normalize(doc)
	require.Empty(t, warns)

	gen := setup(t, []string{"Hat", "Outfit", "Eyes", "Skin", "Background"}, set, []string{
		"Hat/cap.png",
		"Outfit/shirt.png",
		"Eyes/round.png",
		"Skin/fullbody/noir/pale.png",
		"Background/red.png",
	})

	for id := int64(1); id <= 10; id++ {
		tok, err := gen.Generate(context.Background(), runtime.Job{
			TokenID: id,
			Output:  image.Pt(4, 4),
			Rand:    rand.New(rand.NewPCG(5, uint64(id))),
		})
		require.NoError(t, err)

		var drawn []string
		for _, l := range tok.Layers {
			drawn = append(drawn, l.Category)
		}
		assert.Equal(t, []string{"background", "eyes", "skin", "hat"}, drawn, "skin is painted in the outfit slot")
		assert.NotContains(t, string(tok.Key), "outfit=")

		var traits []string
		for _, a := range gen.Builder().Attributes(tok.Layers) {
			traits = append(traits, a.TraitType)
		}
		assert.Contains(t, traits, "Skin")
		assert.NotContains(t, traits, "Outfit")
	}
}

func TestAssemble_SkipReleasesTagLocks(t *testing.T) {
	set := &domain.RuleSet{
		Weights: map[domain.Bucket]map[string]float64{
			{Category: "outfit"}: {"vest": 100, "coat": 0},
			{Category: "hat"}:    {"sunhat": 0, "beanie": 100},
		},
		Tags: []domain.TagGroup{{Name: "mood", Subtags: []domain.Subtag{
			{Name: "warm", Items: []domain.TagItem{{Category: "outfit", Value: "vest"}, {Category: "hat", Value: "sunhat"}}},
			{Name: "cold", Items: []domain.TagItem{{Category: "outfit", Value: "coat"}, {Category: "hat", Value: "beanie"}}},
		}}},
		Overrides: []domain.ContextOverride{
			{Prefix: domain.ContextPath{"fullbody"}, Parent: "outfit", Skip: []string{"outfit"}},
		},
	}
	gen := setup(t, []string{"Hat", "Skin", "Outfit"}, set, []string{
		"Hat/sunhat.png", "Hat/beanie.png",
		"Skin/fullbody/pale.png",
		"Outfit/vest.png", "Outfit/coat.png",
	})
	require.Equal(t, []string{"outfit", "skin", "hat"}, gen.Project().Select)

	for i := range 100 {
		at, err := gen.Assemble(context.Background(), rand.New(rand.NewPCG(13, uint64(i))), nil)
		require.NoError(t, err)
		require.NoError(t, gen.Validate(at))

		assert.True(t, at.Assignment.Skipped("outfit"))
		hat, ok := at.Assignment.Get("hat")
		require.True(t, ok)
		assert.Equal(t, "beanie", hat.Value, "the dropped vest no longer locks the warm subtag")
	}
}

func TestAssemble_SkipInvalidatesDependentPicks(t *testing.T) {
	set := &domain.RuleSet{
		ShowTo: map[string]map[string][]string{"shoes": {"sandals": {"casual"}}},
		Overrides: []domain.ContextOverride{
			{Prefix: domain.ContextPath{"casual"}, Parent: "outfit", Skip: []string{"outfit"}},
		},
		Global: domain.Global{EnableDynamicContext: true},
	}
	gen := setup(t, []string{"Skin", "Shoes", "Outfit"}, set, []string{
		"Skin/casual/pale.png",
		"Shoes/beach/sandals.png",
		"Outfit/casual/vest.png",
	}, runtime.WithMaxRerolls(5))
	require.Equal(t, []string{"outfit", "shoes", "skin"}, gen.Project().Select)

	at, err := gen.Assemble(context.Background(), rand.New(rand.NewPCG(1, 1)), nil)
	require.NoError(t, err)
	assert.True(t, at.Assignment.Skipped("outfit"))
	assert.Error(t, gen.Validate(at), "sandals were only visible through the dropped outfit")

	_, err = gen.Generate(context.Background(), runtime.Job{TokenID: 1, Rand: rand.New(rand.NewPCG(1, 1))})
	assert.ErrorIs(t, err, domain.ErrUniqueExhausted)
}

func TestAssemble_TagGroupExclusivity(t *testing.T) {
	set := &domain.RuleSet{Tags: []domain.TagGroup{{Name: "element", Subtags: []domain.Subtag{
		{Name: "fire", Items: []domain.TagItem{{Category: "skin", Value: "lava"}, {Category: "eyes", Value: "fire"}, {Category: "hat", Value: "flame"}}},
		{Name: "water", Items: []domain.TagItem{{Category: "skin", Value: "ocean"}, {Category: "eyes", Value: "water"}}},
	}}}}
	gen := setup(t, []string{"Hat", "Eyes", "Skin"}, set, []string{
		"Skin/lava.png", "Skin/ocean.png",
		"Eyes/fire.png", "Eyes/water.png",
		"Hat/flame.png", "Hat/cap.png",
	})
	ti := gen.Project().Tags

	seen := map[string]int{}
	for i := range 400 {
		at, err := gen.Assemble(context.Background(), rand.New(rand.NewPCG(17, uint64(i))), nil)
		require.NoError(t, err)
		require.NoError(t, gen.Validate(at))

		subtags := map[string]bool{}
		for _, o := range at.Assignment.Options() {
			if !ti.Governs(o.Category, "element") {
				continue
			}
			for _, m := range ti.Memberships(o.Category, o.Value) {
				subtags[m.Subtag] = true
			}
		}
		require.LessOrEqual(t, len(subtags), 1, "token %d mixes subtags: %v", i, subtags)
		for st := range subtags {
			seen[st]++
		}
	}
	assert.Positive(t, seen["fire"])
	assert.Positive(t, seen["water"])
}

func TestAssemble_BaseContextFiltersOptions(t *testing.T) {
	set := &domain.RuleSet{Global: domain.Global{EnableDynamicContext: true}}
	gen := setup(t, []string{"Skin"}, set, []string{
		"Skin/male/pale.png",
		"Skin/female/dark.png",
	})
	for i := range 50 {
		at, err := gen.Assemble(context.Background(), rand.New(rand.NewPCG(9, uint64(i))), []string{"female"})
		require.NoError(t, err)
		skin, ok := at.Assignment.Get("skin")
		require.True(t, ok)
		assert.Equal(t, "dark", skin.Value)
	}
}

func TestGenerate_DistinctKeys(t *testing.T) {
	gen := setup(t, []string{"Hat", "Hair", "Background"}, nil, []string{
		"Hat/crown.png", "Hat/cap.png", "Hat/helmet.png",
		"Hair/bald.png", "Hair/short.png",
		"Background/red.png", "Background/blue.png",
	})
	guard := runtime.NewDuplicateGuard(memory.NewSeenSet(), "batch")
	keys := map[domain.ComboKey]bool{}
	for id := int64(1); id <= 12; id++ {
		tok, err := gen.Generate(context.Background(), runtime.Job{
			BatchID: "batch",
			TokenID: id,
			Output:  image.Pt(4, 4),
			Rand:    rand.New(rand.NewPCG(11, uint64(id))),
			Guard:   guard,
		})
		require.NoError(t, err)
		assert.False(t, keys[tok.Key], "duplicate key %s", tok.Key)
		keys[tok.Key] = true
		assert.NotEmpty(t, tok.Image)
		assert.Len(t, tok.Layers, 3)
	}
	assert.Len(t, keys, 12)
}

func TestGenerate_UniqueExhausted(t *testing.T) {
	var rerolls int
	gen := setup(t, []string{"Hat"}, nil, []string{"Hat/crown.png", "Hat/cap.png"},
		runtime.WithMaxRerolls(3),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnTokenReroll: func(_ context.Context, e *domain.TokenEvent) {
				if e.Reason == domain.RerollDuplicate {
					rerolls++
				}
			},
		}),
	)
	guard := runtime.NewDuplicateGuard(memory.NewSeenSet(), "b")

	// claim both combinations up front
	_, err := guard.Claim(context.Background(), "hat=crown")
	require.NoError(t, err)
	_, err = guard.Claim(context.Background(), "hat=cap")
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), runtime.Job{
		BatchID: "b",
		TokenID: 3,
		Rand:    rand.New(rand.NewPCG(1, 3)),
		Guard:   guard,
	})
	require.ErrorIs(t, err, domain.ErrUniqueExhausted)

	var te *domain.TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.CodeUniqueExhausted, te.Code)
	assert.Equal(t, 3, te.Attempts)
	assert.Equal(t, int64(3), te.TokenID)
	assert.Equal(t, 3, rerolls)
}

func TestGenerate_Cancelled(t *testing.T) {
	gen := setup(t, []string{"Hat"}, nil, []string{"Hat/crown.png"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, runtime.Job{TokenID: 1, Rand: rand.New(rand.NewPCG(1, 1))})
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestGenerate_PreviewWithoutGuard(t *testing.T) {
	gen := setup(t, []string{"Hat"}, nil, []string{"Hat/crown.png"})
	for i := range 3 {
		tok, err := gen.Generate(context.Background(), runtime.Job{TokenID: int64(i), Rand: rand.New(rand.NewPCG(1, 1))})
		require.NoError(t, err)
		assert.Equal(t, domain.ComboKey("hat=crown"), tok.Key)
	}
}

func TestSelectionOrder_WithoutDynamicContext(t *testing.T) {
	gen := setup(t, []string{"Hat", "Skin"}, nil, []string{"Hat/cap.png", "Skin/male/pale.png"})
	p := gen.Project()
	assert.Equal(t, p.Paint, p.Select)
	assert.Empty(t, p.Sources)
}
