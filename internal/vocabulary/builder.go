package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"bovw-classifier/internal/logger"
)

// ErrTooFewSamples is returned when fewer descriptors survive pooling than
// the vocabulary has centres.
var ErrTooFewSamples = errors.New("too few descriptor samples")

// Clusterer partitions the rows of samples into k clusters and returns the
// k x D centre matrix.
type Clusterer interface {
	Cluster(ctx context.Context, samples *mat.Dense, k int) (*mat.Dense, error)
}

// Pool concatenates the descriptor sets in order and keeps every stride-th
// row, starting with the first.
func Pool(sets [][][]float64, stride int) [][]float64 {
	if stride < 1 {
		stride = 1
	}
	var pooled [][]float64
	i := 0
	for _, set := range sets {
		for _, d := range set {
			if i%stride == 0 {
				pooled = append(pooled, d)
			}
			i++
		}
	}
	return pooled
}

// TargetSize is round(sqrt(n/2)), never below 1.
func TargetSize(n int) int {
	k := int(math.Round(math.Sqrt(float64(n) / 2)))
	if k < 1 {
		return 1
	}
	return k
}

// SizeRule decides K. A positive Size wins; otherwise K follows TargetSize
// of ExpectedCount, or of the pooled sample count when ExpectedCount is 0.
type SizeRule struct {
	Size          int
	ExpectedCount int
}

func (r SizeRule) K(pooled int) int {
	switch {
	case r.Size > 0:
		return r.Size
	case r.ExpectedCount > 0:
		return TargetSize(r.ExpectedCount)
	default:
		return TargetSize(pooled)
	}
}

// Builder fits a vocabulary on the training descriptor sets.
type Builder struct {
	Clusterer Clusterer
	Stride    int
	Rule      SizeRule
	Logger    logger.Logger
}

func (b *Builder) Fit(ctx context.Context, sets [][][]float64) (*Vocabulary, error) {
	log := b.Logger
	if log == nil {
		log = logger.NoOpLogger{}
	}

	var total int
	for _, set := range sets {
		total += len(set)
	}
	pooled := Pool(sets, b.Stride)
	k := b.Rule.K(len(pooled))

	log.Info("Vocabulary", "pooled descriptors", map[string]interface{}{
		"descriptors": total,
		"samples":     len(pooled),
		"clusters":    k,
	})

	if len(pooled) < k {
		return nil, fmt.Errorf("%w: %d samples for %d clusters", ErrTooFewSamples, len(pooled), k)
	}

	dim := len(pooled[0])
	if dim == 0 {
		return nil, errors.New("descriptors have dimension 0")
	}
	data := make([]float64, 0, len(pooled)*dim)
	for i, d := range pooled {
		if len(d) != dim {
			return nil, fmt.Errorf("pooled descriptor %d has dimension %d, want %d", i, len(d), dim)
		}
		data = append(data, d...)
	}

	centers, err := b.Clusterer.Cluster(ctx, mat.NewDense(len(pooled), dim, data), k)
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}
	if r, c := centers.Dims(); r != k || c != dim {
		return nil, fmt.Errorf("clusterer returned %dx%d centres, want %dx%d", r, c, k, dim)
	}
	return New(centers)
}
