package buffers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateTextNoop(t *testing.T) {
	s, n, truncated := TruncateText("hello", 10)
	assert.Equal(t, "hello", s)
	assert.Equal(t, 5, n)
	assert.False(t, truncated)
}

func TestTruncateTextCuts(t *testing.T) {
	s, n, truncated := TruncateText("hello world", 5)
	require.True(t, truncated)
	assert.Equal(t, 11, n)
	assert.True(t, strings.HasPrefix(s, "hello"))
	assert.Contains(t, s, "original length: 11")
}

func TestTruncateTextIdempotent(t *testing.T) {
	first, _, _ := TruncateText("hello world, this is long", 5)
	second, _, truncated := TruncateText(first, 5)
	assert.True(t, truncated)
	assert.Equal(t, first, second)
}

func TestTruncateTextEmpty(t *testing.T) {
	s, n, truncated := TruncateText("", 10)
	assert.Equal(t, "", s)
	assert.Equal(t, 0, n)
	assert.False(t, truncated)
}

type fakeNode struct {
	name     string
	children []TreeNode
}

func (f *fakeNode) Children() []TreeNode { return f.children }

func TestTruncateTreeWithinBudget(t *testing.T) {
	root := &fakeNode{name: "root", children: []TreeNode{
		&fakeNode{name: "a"}, &fakeNode{name: "b"},
	}}
	var visited []string
	count, truncated := TruncateTree(root, 10,
		func(n TreeNode) { visited = append(visited, n.(*fakeNode).name) },
		func(parent TreeNode, remaining int) { t.Fatalf("unexpected truncation") },
	)
	assert.Equal(t, 3, count)
	assert.False(t, truncated)
	assert.Equal(t, []string{"root", "a", "b"}, visited)
}

func TestTruncateTreeExceedsBudget(t *testing.T) {
	root := &fakeNode{name: "root", children: []TreeNode{
		&fakeNode{name: "a"}, &fakeNode{name: "b"}, &fakeNode{name: "c"},
	}}
	var placeholders int
	count, truncated := TruncateTree(root, 2,
		func(n TreeNode) {},
		func(parent TreeNode, remaining int) { placeholders++ },
	)
	assert.True(t, truncated)
	assert.LessOrEqual(t, count, 2)
	assert.Equal(t, 1, placeholders)
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, len(`{"a":1}`), SizeOf(map[string]int{"a": 1}))
}
