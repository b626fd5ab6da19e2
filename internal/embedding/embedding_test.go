package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sortai/sortai/internal/obs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestLocalService_EmptyInputIsZeroVector(t *testing.T) {
	s := NewLocalService(16)
	v, err := s.EmbedText(context.Background(), "")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestLocalService_UnitMagnitude(t *testing.T) {
	s := NewLocalService(16)
	v, err := s.EmbedText(context.Background(), "invoice receipt march")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, magnitude(v), 1e-6)
}

func TestLocalService_Deterministic(t *testing.T) {
	s := NewLocalService(32)
	a, _ := s.EmbedFilename(context.Background(), []string{"budget", "2024"})
	b, _ := s.EmbedFilename(context.Background(), []string{"budget", "2024"})
	assert.Equal(t, a, b)
}

func TestLocalService_FixedDimension(t *testing.T) {
	s := NewLocalService(64)
	v, _ := s.EmbedText(context.Background(), "x")
	assert.Len(t, v, 64)
}

func TestCachedService_CachesAndSkipsEmpty(t *testing.T) {
	calls := 0
	inner := countingService{NewLocalService(8), &calls}
	cache := NewMemoryCache()
	svc := NewCachedService(inner, cache)

	_, err := svc.EmbedText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, calls, "empty string must never reach the backend or cache")

	_, err = svc.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = svc.EmbedText(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second call should hit the cache")
}

type countingService struct {
	*LocalService
	calls *int
}

func (c countingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	*c.calls++
	return c.LocalService.EmbedText(ctx, text)
}

func TestOllamaService_NormalizesProviderOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{3, 4}})
	}))
	defer server.Close()

	svc := NewOllamaService(server.URL, "test-model", 2, obs.Noop())
	v, err := svc.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, magnitude(v), 1e-6)
}

func TestOllamaService_EmptyInputShortCircuits(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	svc := NewOllamaService(server.URL, "test-model", 4, obs.Noop())
	v, err := svc.EmbedText(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, called)
	assert.Len(t, v, 4)
}
