package cluster

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
)

// Point is one embedding to be clustered (§4.4).
type Point struct {
	ID     string
	Vector []float32
}

// Assignment maps a point to a cluster index.
type Assignment struct {
	PointID string
	Cluster int
}

// KMeansResult is one run's outcome.
type KMeansResult struct {
	Centroids   [][]float32
	Assignments []Assignment
	Inertia     float64 // total (1 - similarity) across points
	Iterations  int
}

// KMeansOptions configures a spherical k-means run (§4.4).
type KMeansOptions struct {
	K          int
	MaxIters   int
	Restarts   int
	Seed       int64 // 0 means "use a fresh seed per restart"
}

// rng is a tiny deterministic splitmix64 generator so that a
// supplied seed reproduces identical output without pulling in
// math/rand's global state (§4.4: "when a seed is supplied, identical
// inputs yield identical outputs").
type rng struct{ state uint64 }

func newRNG(seed int64) *rng {
	s := uint64(seed)
	if s == 0 {
		s = 0x9e3779b97f4a7c15
	}
	return &rng{state: s}
}

func (r *rng) next() uint64 {
	// splitmix64
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func (r *rng) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

func (r *rng) float64() float64 {
	return float64(r.next()%1_000_000_007) / 1_000_000_007.0
}

// SphericalKMeans runs k-means++ seeding followed by assign/update
// iterations on unit-norm embeddings, using cosine similarity (dot
// product) throughout. Multiple restarts run concurrently (one
// golang.org/x/sync/errgroup goroutine per restart, with no limit on
// how many run at once) and the run minimizing total inertia wins.
func SphericalKMeans(ctx context.Context, points []Point, opt KMeansOptions) (KMeansResult, error) {
	if len(points) == 0 {
		return KMeansResult{}, nil
	}
	if opt.K <= 0 {
		opt.K = 1
	}
	if opt.K > len(points) {
		opt.K = len(points)
	}
	if opt.MaxIters <= 0 {
		opt.MaxIters = 50
	}
	if opt.Restarts <= 0 {
		opt.Restarts = 1
	}

	results := make([]KMeansResult, opt.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < opt.Restarts; r++ {
		r := r
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			seed := opt.Seed
			if seed == 0 {
				seed = int64(r + 1)
			} else {
				seed = opt.Seed + int64(r)
			}
			results[r] = runOnce(points, opt.K, opt.MaxIters, seed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return KMeansResult{}, err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.Inertia < best.Inertia {
			best = r
		}
	}
	return best, nil
}

func runOnce(points []Point, k, maxIters int, seed int64) KMeansResult {
	r := newRNG(seed)
	centroids := seedPlusPlus(points, k, r)

	assignments := make([]int, len(points))
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, p := range points {
			c := nearestCentroid(p.Vector, centroids)
			if c != assignments[i] {
				changed = true
			}
			assignments[i] = c
		}

		newCentroids := updateCentroids(points, assignments, centroids, k)
		centroids = newCentroids

		if !changed && iter > 0 {
			break
		}
	}

	inertia := 0.0
	for i, p := range points {
		inertia += 1 - cosine(p.Vector, centroids[assignments[i]])
	}

	out := KMeansResult{Centroids: centroids, Inertia: inertia}
	for i, p := range points {
		out.Assignments = append(out.Assignments, Assignment{PointID: p.ID, Cluster: assignments[i]})
	}
	return out
}

func seedPlusPlus(points []Point, k int, r *rng) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := points[r.intn(len(points))]
	centroids = append(centroids, cloneVec(first.Vector))

	for len(centroids) < k {
		dists := make([]float64, len(points))
		var total float64
		for i, p := range points {
			minDist := math.MaxFloat64
			for _, c := range centroids {
				d := 1 - cosine(p.Vector, c)
				if d < minDist {
					minDist = d
				}
			}
			dists[i] = minDist * minDist
			total += dists[i]
		}
		if total == 0 {
			centroids = append(centroids, cloneVec(points[r.intn(len(points))].Vector))
			continue
		}
		target := r.float64() * total
		var acc float64
		chosen := len(points) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVec(points[chosen].Vector))
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best := 0
	bestSim := -2.0
	for i, c := range centroids {
		sim := cosine(v, c)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	return best
}

// updateCentroids recomputes cluster sums then projects each centroid
// back to the unit sphere; empty clusters retain their previous
// centroid (§4.4).
func updateCentroids(points []Point, assignments []int, prev [][]float32, k int) [][]float32 {
	if len(points) == 0 {
		return prev
	}
	dim := len(points[0].Vector)
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, p := range points {
		c := assignments[i]
		for d, x := range p.Vector {
			sums[c][d] += float64(x)
		}
		counts[c]++
	}

	out := make([][]float32, k)
	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			out[i] = cloneVec(prev[i])
			continue
		}
		out[i] = normalize(sums[i])
	}
	return out
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Elbow picks k in [kMin, kMax] by the maximum second difference of
// inertia across a sweep of single runs (§4.4's elbow-method helper).
func Elbow(ctx context.Context, points []Point, kMin, kMax int, seed int64) (int, error) {
	if kMax < kMin {
		kMin, kMax = kMax, kMin
	}
	if kMax > len(points) {
		kMax = len(points)
	}
	if kMin < 1 {
		kMin = 1
	}
	if kMax <= kMin {
		return kMin, nil
	}

	inertias := make([]float64, kMax-kMin+1)
	for k := kMin; k <= kMax; k++ {
		res, err := SphericalKMeans(ctx, points, KMeansOptions{K: k, Restarts: 1, Seed: seed})
		if err != nil {
			return 0, err
		}
		inertias[k-kMin] = res.Inertia
	}

	bestK := kMin
	bestDelta := math.Inf(-1)
	for i := 1; i < len(inertias)-1; i++ {
		delta := inertias[i-1] - 2*inertias[i] + inertias[i+1]
		if delta > bestDelta {
			bestDelta = delta
			bestK = kMin + i
		}
	}
	return bestK, nil
}
