package strset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := New("b", "a", "b")
	assert.Equal(t, []string{"b", "a"}, s.Items())
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))

	assert.True(t, s.Add("c"))
	assert.False(t, s.Add("a"))
	assert.Equal(t, []string{"b", "a", "c"}, s.Items())
}

func TestSet_ZeroValue(t *testing.T) {
	var s Set
	assert.False(t, s.Has("a"))
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Items())

	s.Add("a")
	assert.True(t, s.Has("a"))
}

func TestSet_ItemsIsACopy(t *testing.T) {
	s := New("a")
	items := s.Items()
	items[0] = "z"
	assert.Equal(t, []string{"a"}, s.Items())
}
