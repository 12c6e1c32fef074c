package tags_test

import (
	"testing"

	"github.com/aretw0/strata/internal/assets"
	"github.com/aretw0/strata/internal/tags"
	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elementFixture(t *testing.T) (*assets.Index, *tags.Index) {
	t.Helper()
	idx, err := assets.Build(testutils.LayerFS(t,
		"skin/lava.png", "skin/ocean.png",
		"eyes/fire.png", "eyes/water.png",
		"hat/flame.png", "hat/cap.png",
	), []string{"skin", "eyes", "hat"})
	require.NoError(t, err)

	groups := []domain.TagGroup{{Name: "element", Subtags: []domain.Subtag{
		{Name: "fire", Items: []domain.TagItem{{Category: "skin", Value: "lava"}, {Category: "eyes", Value: "fire"}, {Category: "hat", Value: "flame"}}},
		{Name: "water", Items: []domain.TagItem{{Category: "skin", Value: "ocean"}, {Category: "eyes", Value: "water"}}},
	}}}
	return idx, tags.Build(groups, idx)
}

func TestBuild_Completeness(t *testing.T) {
	_, ti := elementFixture(t)

	assert.True(t, ti.Governs("skin", "element"))
	assert.True(t, ti.Governs("eyes", "element"))
	assert.False(t, ti.Governs("hat", "element"), "cap is not covered")
	assert.False(t, ti.Governed("hat"))

	cov := ti.Coverage()
	require.Len(t, cov, 3)
	assert.Equal(t, "eyes", cov[0].Category)
	hat := cov[1]
	assert.Equal(t, "hat", hat.Category)
	assert.Equal(t, 2, hat.Total)
	assert.Equal(t, 1, hat.Covered)
	assert.Equal(t, []string{"cap"}, hat.Missing)
	assert.False(t, hat.Complete)
}

func TestLocks_Exclusivity(t *testing.T) {
	_, ti := elementFixture(t)
	locks := tags.Locks{}

	lava := domain.Option{Category: "skin", Value: "lava"}
	ti.Lock(lava, locks)
	assert.Equal(t, "fire", locks["element"])

	eyes := []domain.Option{{Category: "eyes", Value: "fire"}, {Category: "eyes", Value: "water"}}
	assert.Equal(t, []domain.Option{{Category: "eyes", Value: "fire"}}, ti.Filter(eyes, locks))

	hats := []domain.Option{{Category: "hat", Value: "flame"}, {Category: "hat", Value: "cap"}}
	assert.Len(t, ti.Filter(hats, locks), 2, "partially covered categories are fail-open")
}

func TestLock_IgnoresUngovernedCategory(t *testing.T) {
	_, ti := elementFixture(t)
	locks := tags.Locks{}
	ti.Lock(domain.Option{Category: "hat", Value: "flame"}, locks)
	assert.Empty(t, locks)
}

func TestConflictsAndResolve(t *testing.T) {
	_, ti := elementFixture(t)

	a := domain.NewAssignment(nil)
	a.Set(domain.Option{Category: "skin", Value: "lava"})
	a.Set(domain.Option{Category: "eyes", Value: "water"})
	assert.Equal(t, []string{"element"}, ti.Conflicts(a))

	b := domain.NewAssignment(nil)
	b.Set(domain.Option{Category: "skin", Value: "ocean"})
	b.Set(domain.Option{Category: "eyes", Value: "water"})
	b.Set(domain.Option{Category: "hat", Value: "flame"})
	assert.Empty(t, ti.Conflicts(b))
	assert.Equal(t, []tags.Facet{{Group: "element", Subtag: "fire"}, {Group: "element", Subtag: "water"}}, ti.Resolve(b.Options()))
}
