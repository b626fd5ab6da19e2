// Package prototype is SortAI's category prototype store (§4.5): one
// EMA-updated centroid per category, optionally shared across several
// categories via a shared_prototype_id, backed by the store package's
// learned_patterns table the same way embedding's SQLiteCache owns
// embedding_cache.
package prototype

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/sortai/sortai/internal/store"
)

// Prototype is one category's learned centroid.
type Prototype struct {
	CategoryID        string
	SharedPrototypeID string
	Centroid          []float32
	SampleCount       int
	LastUpdated       time.Time
	EMAAlpha          float64
}

// Match is a top-k lookup result.
type Match struct {
	CategoryID string
	Similarity float64
}

// Store owns the learned_patterns table.
type Store struct {
	db *store.DB
}

// New builds a prototype Store backed by db.
func New(db *store.DB) *Store {
	return &Store{db: db}
}

// Update folds newVector into categoryID's centroid using an
// exponential moving average:
//
//	centroid ← L2-normalize((1-α)·centroid + α·new_vector)
//
// (§4.5). A category seen for the first time adopts newVector
// outright (α=1 for the first sample, so the EMA formula degenerates
// to the new vector itself). sharedPrototypeID lets several categories
// point at the same learned centroid (§4.5 "shared-prototype
// references"); pass categoryID itself when no sharing is desired.
func (s *Store) Update(ctx context.Context, categoryID, sharedPrototypeID string, newVector []float32, alpha float64, now time.Time) (Prototype, error) {
	if alpha <= 0 {
		alpha = 0.1
	}
	existing, found, err := s.Get(ctx, categoryID)
	if err != nil {
		return Prototype{}, err
	}

	var centroid []float32
	sampleCount := 1
	if !found {
		centroid = cloneVec(newVector)
	} else {
		centroid = ema(existing.Centroid, newVector, alpha)
		sampleCount = existing.SampleCount + 1
	}

	p := Prototype{
		CategoryID:        categoryID,
		SharedPrototypeID: sharedPrototypeID,
		Centroid:          centroid,
		SampleCount:       sampleCount,
		LastUpdated:       now,
		EMAAlpha:          alpha,
	}
	if p.SharedPrototypeID == "" {
		p.SharedPrototypeID = categoryID
	}
	return p, s.put(ctx, p)
}

// Get fetches categoryID's prototype, if one exists.
func (s *Store) Get(ctx context.Context, categoryID string) (Prototype, bool, error) {
	row := s.db.Conn.QueryRowContext(ctx,
		`SELECT category_id, shared_prototype_id, centroid, sample_count, last_updated, ema_alpha
		 FROM learned_patterns WHERE category_id = ?`, categoryID)

	var p Prototype
	var blob []byte
	var lastUpdated string
	if err := row.Scan(&p.CategoryID, &p.SharedPrototypeID, &blob, &p.SampleCount, &lastUpdated, &p.EMAAlpha); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prototype{}, false, nil
		}
		return Prototype{}, false, err
	}
	if err := json.Unmarshal(blob, &p.Centroid); err != nil {
		return Prototype{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, lastUpdated)
	if err != nil {
		return Prototype{}, false, err
	}
	p.LastUpdated = t
	return p, true, nil
}

func (s *Store) put(ctx context.Context, p Prototype) error {
	blob, err := json.Marshal(p.Centroid)
	if err != nil {
		return err
	}
	_, err = s.db.Conn.ExecContext(ctx,
		`INSERT INTO learned_patterns(category_id, shared_prototype_id, centroid, sample_count, last_updated, ema_alpha)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(category_id) DO UPDATE SET
			shared_prototype_id=excluded.shared_prototype_id,
			centroid=excluded.centroid,
			sample_count=excluded.sample_count,
			last_updated=excluded.last_updated,
			ema_alpha=excluded.ema_alpha`,
		p.CategoryID, p.SharedPrototypeID, blob, p.SampleCount, p.LastUpdated.Format(time.RFC3339Nano), p.EMAAlpha)
	return err
}

// Delete removes categoryID's learned prototype, e.g. after a category
// is pruned from the taxonomy.
func (s *Store) Delete(ctx context.Context, categoryID string) error {
	_, err := s.db.Conn.ExecContext(ctx, `DELETE FROM learned_patterns WHERE category_id = ?`, categoryID)
	return err
}

// TopK returns the k categories whose prototype is most similar to
// query (cosine similarity, assuming unit-norm vectors), excluding any
// match below floor (§4.5's "floor" avoids forcing a match onto an
// unrelated prototype).
func (s *Store) TopK(ctx context.Context, query []float32, k int, floor float64) ([]Match, error) {
	rows, err := s.db.Conn.QueryContext(ctx, `SELECT category_id, centroid FROM learned_patterns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var categoryID string
		var blob []byte
		if err := rows.Scan(&categoryID, &blob); err != nil {
			return nil, err
		}
		var centroid []float32
		if err := json.Unmarshal(blob, &centroid); err != nil {
			return nil, err
		}
		sim := cosine(query, centroid)
		if sim < floor {
			continue
		}
		matches = append(matches, Match{CategoryID: categoryID, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Decay prunes learned prototypes that have fallen below minSamples
// and not been reinforced since cutoff, so stale one-off patterns
// don't linger forever (§4.5 "retention-based sample-count decay").
func (s *Store) Decay(ctx context.Context, cutoff time.Time, minSamples int) (int, error) {
	res, err := s.db.Conn.ExecContext(ctx,
		`DELETE FROM learned_patterns WHERE sample_count < ? AND last_updated < ?`,
		minSamples, cutoff.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func ema(old, next []float32, alpha float64) []float32 {
	dim := len(old)
	if len(next) > dim {
		dim = len(next)
	}
	sum := make([]float64, dim)
	for i := 0; i < dim; i++ {
		var o, nx float64
		if i < len(old) {
			o = float64(old[i])
		}
		if i < len(next) {
			nx = float64(next[i])
		}
		sum[i] = (1-alpha)*o + alpha*nx
	}
	return normalize(sum)
}

func normalize(v []float64) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	out := make([]float32, len(v))
	if sumSq == 0 {
		return out
	}
	norm := math.Sqrt(sumSq)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
