package features

import (
	"fmt"
	"math"
)

// LBP returns the histogram of rotation-invariant local binary pattern codes
// of g, following the mahotas definition. Each pixel is compared with points
// samples taken on a circle of the given radius, bilinearly interpolated with
// zeros outside the image; neighbour i sets bit i when it is strictly
// brighter than the centre. Codes are reduced to the minimum over all
// circular rotations and the histogram keeps one bin per rotation-invariant
// code, in increasing code order. A flat image lands entirely in bin 0.
func LBP(g *Grey, radius float64, points int) ([]float64, error) {
	if points <= 0 || points > 16 {
		return nil, fmt.Errorf("lbp points must be in [1, 16], got %d", points)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("lbp radius must be positive, got %g", radius)
	}

	bins := rotationInvariantBins(points)
	hist := make([]float64, len(bins.codes))

	dys := make([]float64, points)
	dxs := make([]float64, points)
	for i := 0; i < points; i++ {
		angle := 2 * math.Pi * float64(i) / float64(points)
		dys[i] = snap(-radius * math.Sin(angle))
		dxs[i] = snap(radius * math.Cos(angle))
	}

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			centre := float64(g.At(x, y))
			var code uint
			for i := 0; i < points; i++ {
				if sample(g, float64(y)+dys[i], float64(x)+dxs[i]) > centre {
					code |= 1 << uint(i)
				}
			}
			hist[bins.index[minRotation(code, points)]]++
		}
	}
	return hist, nil
}

// PatternLength is the number of rotation-invariant codes for the given
// number of points, i.e. the length of the LBP histogram.
func PatternLength(points int) int {
	return len(rotationInvariantBins(points).codes)
}

type lbpBins struct {
	codes []uint
	index map[uint]int
}

func rotationInvariantBins(points int) lbpBins {
	b := lbpBins{index: make(map[uint]int)}
	for code := uint(0); code < 1<<uint(points); code++ {
		if minRotation(code, points) == code {
			b.index[code] = len(b.codes)
			b.codes = append(b.codes, code)
		}
	}
	return b
}

func minRotation(code uint, points int) uint {
	mask := uint(1)<<uint(points) - 1
	best := code
	for r := 1; r < points; r++ {
		rotated := ((code >> uint(r)) | (code << uint(points-r))) & mask
		if rotated < best {
			best = rotated
		}
	}
	return best
}

// snap removes the rounding noise of sin and cos so on-grid neighbours are
// read without interpolation.
func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < 1e-9 {
		return r
	}
	return v
}

// sample reads g at a fractional position with bilinear interpolation.
// Pixels outside the image read as 0.
func sample(g *Grey, y, x float64) float64 {
	y0, x0 := int(math.Floor(y)), int(math.Floor(x))
	fy, fx := y-float64(y0), x-float64(x0)

	top := (1-fx)*pixelOrZero(g, x0, y0) + fx*pixelOrZero(g, x0+1, y0)
	bottom := (1-fx)*pixelOrZero(g, x0, y0+1) + fx*pixelOrZero(g, x0+1, y0+1)
	return (1-fy)*top + fy*bottom
}

func pixelOrZero(g *Grey, x, y int) float64 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return 0
	}
	return float64(g.At(x, y))
}
