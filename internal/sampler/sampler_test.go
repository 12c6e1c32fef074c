package sampler_test

import (
	"math/rand/v2"
	"testing"

	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/rules"
	"github.com/aretw0/strata/internal/sampler"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(opts []domain.Option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Value)
	}
	return out
}

func TestPick_ConvergesToWeights(t *testing.T) {
	opts := []domain.Option{
		{Value: "a", Weight: 10},
		{Value: "b", Weight: 20},
		{Value: "c", Weight: 30},
		{Value: "d", Weight: 40},
	}
	src := rand.New(rand.NewPCG(7, 11))
	const draws = 20000

	counts := make([]float64, len(opts))
	for i := 0; i < draws; i++ {
		counts[sampler.Pick(opts, src)]++
	}

	probs := sampler.Probabilities(opts)
	chi := 0.0
	var relErr stats.Float64Data
	for i, p := range probs {
		expected := p * draws
		chi += (counts[i] - expected) * (counts[i] - expected) / expected
		relErr = append(relErr, (counts[i]-expected)/expected)
	}
	// 3 degrees of freedom, p = 0.001
	assert.Less(t, chi, 16.27)

	worst, err := stats.Max(relErr)
	require.NoError(t, err)
	assert.Less(t, worst, 0.05)
}

func TestPick_ZeroWeightNeverDrawn(t *testing.T) {
	opts := []domain.Option{{Value: "red", Weight: 100}, {Value: "blue", Weight: 0}}
	src := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		require.Equal(t, 0, sampler.Pick(opts, src))
	}
}

func TestPick_AllZeroIsUniform(t *testing.T) {
	opts := []domain.Option{{Value: "a"}, {Value: "b"}}
	assert.Equal(t, []float64{0.5, 0.5}, sampler.Probabilities(opts))

	src := rand.New(rand.NewPCG(3, 4))
	seen := map[int]int{}
	for i := 0; i < 1000; i++ {
		seen[sampler.Pick(opts, src)]++
	}
	assert.Len(t, seen, 2)
	assert.Equal(t, -1, sampler.Pick(nil, src))
}

func newSampler(t *testing.T, set *domain.RuleSet, paths ...string) (*sampler.Sampler, *assets.Index) {
	t.Helper()
	idx, err := assets.Build(testutils.LayerFS(t, paths...), []string{"skin", "hat", "background"})
	require.NoError(t, err)
	return sampler.New(idx, rules.NewStore(set, idx)), idx
}

func TestCandidates_ShowToIsAllowList(t *testing.T) {
	set := &domain.RuleSet{ShowTo: map[string]map[string][]string{"hat": {"tiara": {"female"}}}}
	s, _ := newSampler(t, set, "hat/tiara.png", "hat/cap.png")

	assert.Equal(t, []string{"cap"}, values(s.Candidates("hat", domain.NewActiveContext(), false)))
	assert.Equal(t, []string{"cap"}, values(s.Candidates("hat", domain.NewActiveContext("male"), false)))
	assert.ElementsMatch(t, []string{"cap", "tiara"}, values(s.Candidates("hat", domain.NewActiveContext("female"), false)))
}

func TestCandidates_DynamicContext(t *testing.T) {
	set := &domain.RuleSet{Global: domain.Global{EnableDynamicContext: true}}
	s, _ := newSampler(t, set,
		"skin/male/pale.png", "skin/male/noir/dark.png", "skin/female/pale.png",
		"hat/male/crown.png", "hat/cap.png",
	)

	all := s.Candidates("skin", domain.NewActiveContext(), true)
	assert.Len(t, all, 3, "first mover sees every context")

	assert.Equal(t, []string{"cap"}, values(s.Candidates("hat", domain.NewActiveContext(), false)),
		"context options of a non-source category need an active context")

	male := s.Candidates("skin", domain.NewActiveContext("male"), true)
	assert.Equal(t, []string{"pale"}, values(male), "male/noir needs both segments")

	hats := s.Candidates("hat", domain.NewActiveContext("male"), false)
	assert.ElementsMatch(t, []string{"cap", "crown"}, values(hats))
	for _, h := range hats {
		assert.Equal(t, domain.DefaultWeight, h.Weight)
	}
}

func TestCandidates_DynamicContextDisabled(t *testing.T) {
	s, _ := newSampler(t, &domain.RuleSet{}, "skin/male/pale.png", "skin/female/pale.png")
	assert.Len(t, s.Candidates("skin", domain.NewActiveContext("male"), true), 2)
}
