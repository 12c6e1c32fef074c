package constraint_test

import (
	"testing"

	"github.com/aretw0/strata/internal/constraint"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opt(cat, val string, ctx ...string) domain.Option {
	return domain.Option{Category: cat, Value: val, Context: ctx}
}

func sel(cat, val string, ctx ...string) domain.Selector {
	return domain.Selector{Category: cat, Value: val, Context: ctx}
}

func TestCheck_ExclusionIsSymmetric(t *testing.T) {
	eng := constraint.New([]domain.Rule{
		{Primary: sel("hat", "crown"), ExcludeWith: []domain.Selector{sel("hair", "bald")}},
	})

	t.Run("primary chosen second", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		a.Set(opt("hair", "bald"))
		v := eng.Check(opt("hat", "crown"), a)
		require.NotNil(t, v)
		assert.Equal(t, constraint.KindExclude, v.Kind)
		assert.Nil(t, eng.Check(opt("hat", "cap"), a))
	})

	t.Run("target chosen second", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		a.Set(opt("hat", "crown"))
		require.NotNil(t, eng.Check(opt("hair", "bald"), a))
		assert.Nil(t, eng.Check(opt("hair", "long"), a))
	})
}

func TestCheck_ContextScopedSelector(t *testing.T) {
	eng := constraint.New([]domain.Rule{
		{Primary: sel("hat", "crown", "male"), ExcludeWith: []domain.Selector{sel("hair", "bald")}},
	})

	a := domain.NewAssignment(domain.NewActiveContext("female"))
	a.Set(opt("hair", "bald"))
	assert.Nil(t, eng.Check(opt("hat", "crown"), a), "rule scoped to another context")

	b := domain.NewAssignment(domain.NewActiveContext("male"))
	b.Set(opt("hair", "bald"))
	assert.NotNil(t, eng.Check(opt("hat", "crown"), b), "active context satisfies the scope")

	c := domain.NewAssignment(nil)
	c.Set(opt("hair", "bald"))
	assert.NotNil(t, eng.Check(opt("hat", "crown", "male", "noir"), c), "own context prefix satisfies the scope")
}

func TestCheck_Requirement(t *testing.T) {
	eng := constraint.New([]domain.Rule{
		{Primary: sel("hat", "helmet"), RequireWith: []domain.Selector{sel("hair", "short"), sel("hair", "bald")}},
	})

	t.Run("target category unresolved is not evaluated", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		assert.Nil(t, eng.Check(opt("hat", "helmet"), a))
	})

	t.Run("any admissible value satisfies", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		a.Set(opt("hair", "bald"))
		assert.Nil(t, eng.Check(opt("hat", "helmet"), a))
	})

	t.Run("wrong value rejects primary", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		a.Set(opt("hair", "long"))
		v := eng.Check(opt("hat", "helmet"), a)
		require.NotNil(t, v)
		assert.Equal(t, constraint.KindRequire, v.Kind)
	})

	t.Run("primary present restricts target category", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		a.Set(opt("hat", "helmet"))
		assert.NotNil(t, eng.Check(opt("hair", "long"), a))
		assert.Nil(t, eng.Check(opt("hair", "short"), a))
	})

	t.Run("requirement is directional", func(t *testing.T) {
		a := domain.NewAssignment(nil)
		a.Set(opt("hair", "short"))
		assert.Nil(t, eng.Check(opt("hat", "cap"), a), "targets never force the primary")
	})
}

func TestValidate(t *testing.T) {
	eng := constraint.New([]domain.Rule{
		{Primary: sel("hat", "crown"), ExcludeWith: []domain.Selector{sel("hair", "bald")}},
		{Primary: sel("hat", "helmet"), RequireWith: []domain.Selector{sel("hair", "short")}},
	})
	assert.Equal(t, 2, eng.Len())

	ok := domain.NewAssignment(nil)
	ok.Set(opt("hat", "crown"))
	ok.Set(opt("hair", "long"))
	assert.Empty(t, eng.Validate(ok))

	bad := domain.NewAssignment(nil)
	bad.Set(opt("hair", "bald"))
	bad.Set(opt("hat", "crown"))
	vs := eng.Validate(bad)
	require.Len(t, vs, 1)
	assert.Equal(t, 0, vs[0].Rule)
	assert.Contains(t, vs[0].Error(), "hat=crown excludes hair=bald")

	req := domain.NewAssignment(nil)
	req.Set(opt("hat", "helmet"))
	req.Set(opt("hair", "long"))
	vs = eng.Validate(req)
	require.Len(t, vs, 1)
	assert.Equal(t, constraint.KindRequire, vs[0].Kind)
}
