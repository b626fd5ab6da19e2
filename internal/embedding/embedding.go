// Package embedding implements C2, the Embedding Service: it turns
// text and filename tokens into fixed-dimension unit vectors, backed
// by a content-addressed cache. Multiple implementations (local
// word-averaging, provider-backed) satisfy the same Service interface
// so callers never know which one they're talking to — the same
// dependency-inversion discipline the teacher's domain/ports package
// enforces for its own EmbeddingService port.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Service is the port every embedding backend implements (§4.2).
type Service interface {
	// EmbedText produces a unit vector for free text (e.g. extracted
	// media cues). Returns the zero vector iff text is empty.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedFilename produces a unit vector for a filename's token list.
	EmbedFilename(ctx context.Context, tokens []string) ([]float32, error)
	// Dimension reports the fixed output dimension D.
	Dimension() int
	// ModelID identifies the model for cache-key purposes.
	ModelID() string
}

// Cache is a content-addressed, persisted store keyed by (text hash,
// model id), read-through with single-writer semantics per key (§5).
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vec []float32) error
}

// CacheKey builds the (text hash, model id) cache key named in §4.2.
func CacheKey(modelID, text string) string {
	sum := sha256.Sum256([]byte(text))
	return modelID + ":" + hex.EncodeToString(sum[:])
}

// CachedService wraps a Service with a read-through Cache. The empty
// string never reaches the cache (§8: "Embedding of empty string ...
// is never added to the cache").
type CachedService struct {
	inner Service
	cache Cache
}

// NewCachedService builds a cache-wrapped embedding service.
func NewCachedService(inner Service, cache Cache) *CachedService {
	return &CachedService{inner: inner, cache: cache}
}

func (c *CachedService) Dimension() int  { return c.inner.Dimension() }
func (c *CachedService) ModelID() string { return c.inner.ModelID() }

func (c *CachedService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return zeroVector(c.inner.Dimension()), nil
	}
	key := CacheKey(c.inner.ModelID(), text)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}
	vec, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, key, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *CachedService) EmbedFilename(ctx context.Context, tokens []string) ([]float32, error) {
	if len(tokens) == 0 {
		return zeroVector(c.inner.Dimension()), nil
	}
	joined := joinTokens(tokens)
	key := CacheKey(c.inner.ModelID(), "filename:"+joined)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return v, nil
	}
	vec, err := c.inner.EmbedFilename(ctx, tokens)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Put(ctx, key, vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func zeroVector(d int) []float32 { return make([]float32, d) }

func joinTokens(tokens []string) string {
	out := make([]byte, 0, 32)
	for i, t := range tokens {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, t...)
	}
	return string(out)
}
