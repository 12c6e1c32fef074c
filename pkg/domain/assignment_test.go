package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignment_Key(t *testing.T) {
	a := NewAssignment(nil)
	a.Set(Option{Category: "skin", Value: "pale", Context: ContextPath{"male", "noir"}})
	a.Set(Option{Category: "background", Value: "red"})

	order := []string{"background", "skin", "hat"}
	assert.Equal(t, ComboKey("background=red|skin=male/noir - pale|hat="), a.Key(order))

	a.Skip("hat")
	assert.Equal(t, ComboKey("background=red|skin=male/noir - pale"), a.Key(order))
}

func TestAssignment_SkipDropsPick(t *testing.T) {
	a := NewAssignment(nil)
	a.Set(Option{Category: "outfit", Value: "suit"})
	a.Set(Option{Category: "skin", Value: "pale"})
	a.Skip("outfit")

	assert.False(t, a.Has("outfit"))
	assert.True(t, a.Skipped("outfit"))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, "skin", a.Options()[0].Category)
}

func TestClampOutputSize(t *testing.T) {
	assert.Equal(t, DefaultOutputSize, ClampOutputSize(0))
	assert.Equal(t, MinOutputSize, ClampOutputSize(10))
	assert.Equal(t, MaxOutputSize, ClampOutputSize(100000))
	assert.Equal(t, 512, ClampOutputSize(512))
}

func TestComboKey_Items(t *testing.T) {
	key := ComboKey("background=red|skin=male/noir - pale|hat=")
	assert.Equal(t, []ItemKey{
		{Category: "background", Value: "red"},
		{Category: "skin", Value: "pale", Context: "male/noir"},
	}, key.Items())
	assert.Nil(t, ComboKey("").Items())
}
