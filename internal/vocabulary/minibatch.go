package vocabulary

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// MiniBatchKMeans clusters with mini-batch k-means. Each attempt seeds its
// centres with k-means++ on a random subset of the samples, then runs
// MaxIterations mini-batch updates with a per-centre learning rate of
// 1/count. The attempt with the lowest inertia on its subset wins.
type MiniBatchKMeans struct {
	BatchSize     int
	Attempts      int
	MaxIterations int
	// Seed fixes the random stream; nil seeds from the clock.
	Seed *int64
}

func (m MiniBatchKMeans) Cluster(ctx context.Context, samples *mat.Dense, k int) (*mat.Dense, error) {
	n, dim := samples.Dims()
	if k < 1 || n < k {
		return nil, fmt.Errorf("%w: %d samples for %d clusters", ErrTooFewSamples, n, k)
	}

	batch := max(m.BatchSize, 1)
	attempts := max(m.Attempts, 1)

	seed := uint64(time.Now().UnixNano())
	if m.Seed != nil {
		seed = uint64(*m.Seed)
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)

	initSize := min(n, max(3*batch, 3*k))

	var best *mat.Dense
	bestInertia := math.Inf(1)
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		subset := make([]int, initSize)
		sampleuv.WithoutReplacement(subset, n, src)

		centers := kMeansPlusPlus(samples, subset, k, src, rng)
		counts := make([]float64, k)
		diff := make([]float64, dim)
		for it := 0; it < m.MaxIterations; it++ {
			for b := 0; b < batch; b++ {
				x := samples.RawRowView(rng.IntN(n))
				c := nearestRow(centers, x)
				counts[c]++
				eta := 1 / counts[c]
				row := centers.RawRowView(c)
				// centre += eta*(x-centre) is exact when the centre already equals x.
				floats.SubTo(diff, x, row)
				floats.AddScaled(row, eta, diff)
			}
		}

		inertia := 0.0
		for _, i := range subset {
			x := samples.RawRowView(i)
			d := floats.Distance(centers.RawRowView(nearestRow(centers, x)), x, 2)
			inertia += d * d
		}
		if inertia < bestInertia {
			best, bestInertia = centers, inertia
		}
	}

	return best, nil
}

// kMeansPlusPlus picks k initial centres from the rows listed in subset,
// each with probability proportional to its squared distance from the
// nearest centre chosen so far.
func kMeansPlusPlus(samples *mat.Dense, subset []int, k int, src rand.Source, rng *rand.Rand) *mat.Dense {
	_, dim := samples.Dims()
	centers := mat.NewDense(k, dim, nil)

	first := subset[rng.IntN(len(subset))]
	centers.SetRow(0, samples.RawRowView(first))

	dist := make([]float64, len(subset))
	for i, idx := range subset {
		d := floats.Distance(samples.RawRowView(idx), centers.RawRowView(0), 2)
		dist[i] = d * d
	}

	for c := 1; c < k; c++ {
		var pick int
		if floats.Sum(dist) == 0 {
			// Every remaining sample coincides with a centre.
			pick = subset[rng.IntN(len(subset))]
		} else {
			i, _ := sampleuv.NewWeighted(dist, src).Take()
			pick = subset[i]
		}
		centers.SetRow(c, samples.RawRowView(pick))

		for i, idx := range subset {
			d := floats.Distance(samples.RawRowView(idx), centers.RawRowView(c), 2)
			dist[i] = math.Min(dist[i], d*d)
		}
	}
	return centers
}

func nearestRow(centers *mat.Dense, x []float64) int {
	k, _ := centers.Dims()
	best, bestDist := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		if d := floats.Distance(centers.RawRowView(c), x, 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
