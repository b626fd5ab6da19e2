package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countLeafMembers(n *HierarchicalNode) int {
	if len(n.Children) == 0 {
		return len(n.Members)
	}
	total := 0
	for _, c := range n.Children {
		total += countLeafMembers(c)
	}
	return total
}

func TestHierarchical_NoMemberLost(t *testing.T) {
	var points []Point
	for i := 0; i < 20; i++ {
		points = append(points, Point{ID: string(rune('a' + i)), Vector: unit([]float32{float32(i % 3), float32((i + 1) % 3), float32((i + 2) % 3)})})
	}

	root, err := Hierarchical(context.Background(), points, HierarchicalOptions{MaxDepth: 2, MinLeafSize: 2, BranchK: 3, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, 20, countLeafMembers(root))
}

func TestHierarchical_RespectsMinLeafSize(t *testing.T) {
	points := []Point{
		{ID: "1", Vector: unit([]float32{1, 0})},
		{ID: "2", Vector: unit([]float32{0, 1})},
		{ID: "3", Vector: unit([]float32{1, 1})},
	}
	root, err := Hierarchical(context.Background(), points, HierarchicalOptions{MaxDepth: 3, MinLeafSize: 2, BranchK: 3, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, countLeafMembers(root))
}

func TestHierarchical_ShallowInputStaysLeaf(t *testing.T) {
	points := []Point{{ID: "1", Vector: unit([]float32{1, 0})}}
	root, err := Hierarchical(context.Background(), points, HierarchicalOptions{MaxDepth: 3, MinLeafSize: 2})
	require.NoError(t, err)
	assert.Empty(t, root.Children)
	assert.Equal(t, []string{"1"}, root.Members)
}
