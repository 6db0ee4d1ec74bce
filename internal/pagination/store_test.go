package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestOpenShortListNoCursor(t *testing.T) {
	s := NewStore[int]()
	page := s.Open(items(3), 50)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
	assert.Equal(t, items(3), page.Items)
	assert.Equal(t, 3, page.Total)
}

func TestCursorMonotonicity(t *testing.T) {
	s := NewStore[int]()
	all := items(120)

	p1 := s.Open(all, 50)
	require.True(t, p1.HasMore)
	require.Len(t, p1.Items, 50)
	assert.Equal(t, 120, p1.Total)

	p2, err := s.Next(p1.NextCursor, 50)
	require.NoError(t, err)
	require.True(t, p2.HasMore)
	require.Len(t, p2.Items, 50)
	assert.Equal(t, 120, p2.Total)

	p3, err := s.Next(p2.NextCursor, 50)
	require.NoError(t, err)
	assert.False(t, p3.HasMore)
	assert.Empty(t, p3.NextCursor)
	assert.Len(t, p3.Items, 20)
	assert.Equal(t, 120, p3.Total)

	union := append(append(p1.Items, p2.Items...), p3.Items...)
	assert.Equal(t, all, union)
}

func TestNextUnknownCursor(t *testing.T) {
	s := NewStore[int]()
	_, err := s.Next("does-not-exist", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCursorOneShot(t *testing.T) {
	s := NewStore[int]()
	p1 := s.Open(items(10), 5)
	_, err := s.Next(p1.NextCursor, 5)
	require.NoError(t, err)
	_, err = s.Next(p1.NextCursor, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}
