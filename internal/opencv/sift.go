package opencv

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"bovw-classifier/internal/features"
)

// SIFTLength is the dimension of SIFT descriptors.
const SIFTLength = 128

// DenseSIFT computes SIFT descriptors at the points of a regular grid
// instead of detected keypoints. Grid points start at Spacing/2 and
// advance by Spacing; each keypoint has diameter Spacing.
type DenseSIFT struct {
	spacing int

	mu   sync.Mutex
	sift gocv.SIFT
}

// NewDenseSIFT allocates the OpenCV extractor; Close releases it.
func NewDenseSIFT(spacing int) (*DenseSIFT, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("dense sift spacing must be positive, got %d", spacing)
	}
	return &DenseSIFT{spacing: spacing, sift: gocv.NewSIFT()}, nil
}

func (d *DenseSIFT) Dim() int {
	return SIFTLength
}

func (d *DenseSIFT) Describe(g *features.Grey) ([][]float64, error) {
	src, err := GreyToMat(g)
	if err != nil {
		return nil, fmt.Errorf("dense sift: %w", err)
	}
	defer src.Close()

	var kps []gocv.KeyPoint
	for y := d.spacing / 2; y < g.Height; y += d.spacing {
		for x := d.spacing / 2; x < g.Width; x += d.spacing {
			kps = append(kps, gocv.KeyPoint{X: float64(x), Y: float64(y), Size: float64(d.spacing), Angle: -1, Octave: 0, ClassID: -1})
		}
	}
	if len(kps) == 0 {
		return nil, nil
	}

	mask := gocv.NewMat()
	defer mask.Close()

	d.mu.Lock()
	_, desc := d.sift.Compute(src, mask, kps)
	d.mu.Unlock()
	defer desc.Close()

	if desc.Empty() {
		return nil, nil
	}
	dense, err := MatToDense(desc)
	if err != nil {
		return nil, fmt.Errorf("dense sift: %w", err)
	}

	rows, _ := dense.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = append([]float64(nil), dense.RawRowView(i)...)
	}
	return out, nil
}

func (d *DenseSIFT) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sift.Close()
}
