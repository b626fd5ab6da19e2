package cluster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(v []float32) []float32 {
	sum := make([]float64, len(v))
	for i, x := range v {
		sum[i] = float64(x)
	}
	return normalize(sum)
}

func TestSphericalKMeans_SeparatesObviousClusters(t *testing.T) {
	points := []Point{
		{ID: "a1", Vector: unit([]float32{1, 0, 0})},
		{ID: "a2", Vector: unit([]float32{0.9, 0.1, 0})},
		{ID: "b1", Vector: unit([]float32{0, 1, 0})},
		{ID: "b2", Vector: unit([]float32{0, 0.9, 0.1})},
	}

	res, err := SphericalKMeans(context.Background(), points, KMeansOptions{K: 2, Restarts: 4, Seed: 42})
	require.NoError(t, err)
	require.Len(t, res.Assignments, 4)

	byID := map[string]int{}
	for _, a := range res.Assignments {
		byID[a.PointID] = a.Cluster
	}
	assert.Equal(t, byID["a1"], byID["a2"])
	assert.Equal(t, byID["b1"], byID["b2"])
	assert.NotEqual(t, byID["a1"], byID["b1"])
}

func TestSphericalKMeans_ReproducibleWithSeed(t *testing.T) {
	points := []Point{
		{ID: "1", Vector: unit([]float32{1, 0})},
		{ID: "2", Vector: unit([]float32{0, 1})},
		{ID: "3", Vector: unit([]float32{1, 1})},
	}

	r1, err := SphericalKMeans(context.Background(), points, KMeansOptions{K: 2, Restarts: 3, Seed: 7})
	require.NoError(t, err)
	r2, err := SphericalKMeans(context.Background(), points, KMeansOptions{K: 2, Restarts: 3, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, r1.Assignments, r2.Assignments)
	assert.InDelta(t, r1.Inertia, r2.Inertia, 1e-9)
}

func TestSphericalKMeans_EmptyInput(t *testing.T) {
	res, err := SphericalKMeans(context.Background(), nil, KMeansOptions{K: 3})
	require.NoError(t, err)
	assert.Nil(t, res.Assignments)
}

func TestSphericalKMeans_CentroidsStayUnitNorm(t *testing.T) {
	points := []Point{
		{ID: "1", Vector: unit([]float32{1, 2, 3})},
		{ID: "2", Vector: unit([]float32{3, 1, 2})},
		{ID: "3", Vector: unit([]float32{2, 3, 1})},
	}
	res, err := SphericalKMeans(context.Background(), points, KMeansOptions{K: 2, Restarts: 2, Seed: 1})
	require.NoError(t, err)
	for _, c := range res.Centroids {
		var norm float64
		for _, x := range c {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-6)
	}
}

func TestElbow_PicksAReasonableK(t *testing.T) {
	var points []Point
	clusters := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	for ci, c := range clusters {
		for i := 0; i < 5; i++ {
			points = append(points, Point{ID: string(rune('a'+ci*5+i)), Vector: unit(c)})
		}
	}
	k, err := Elbow(context.Background(), points, 2, 5, 3)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, k, 2)
	assert.LessOrEqual(t, k, 5)
}
