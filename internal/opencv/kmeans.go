package opencv

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"bovw-classifier/internal/vocabulary"
)

// KMeans clusters with OpenCV's k-means and k-means++ seeding.
type KMeans struct {
	Attempts      int
	MaxIterations int
	Epsilon       float64
	// Seed fixes OpenCV's global random generator before clustering.
	Seed *int64
}

func (c KMeans) Cluster(ctx context.Context, samples *mat.Dense, k int) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, _ := samples.Dims()
	if k < 1 || n < k {
		return nil, fmt.Errorf("%w: %d samples for %d clusters", vocabulary.ErrTooFewSamples, n, k)
	}

	if c.Seed != nil {
		gocv.SetRNGSeed(int(*c.Seed))
	}

	data := DenseToMat(samples)
	defer data.Close()
	labels := gocv.NewMat()
	defer labels.Close()
	centers := gocv.NewMat()
	defer centers.Close()

	eps := c.Epsilon
	if eps <= 0 {
		eps = 1e-4
	}
	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, max(c.MaxIterations, 1), eps)
	gocv.KMeans(data, k, &labels, criteria, max(c.Attempts, 1), gocv.KMeansPPCenters, &centers)

	out, err := MatToDense(centers)
	if err != nil {
		return nil, fmt.Errorf("opencv kmeans returned no centres: %w", err)
	}
	return out, nil
}
