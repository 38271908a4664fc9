package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Haralick statistics per co-occurrence direction.
const haralickFeatures = 13

// cooccurrenceDirections are the (dy, dx) offsets of the four 2-D
// directions: right, down-right, down, down-left.
var cooccurrenceDirections = [4][2]int{{0, 1}, {1, 1}, {1, 0}, {1, -1}}

// TextureLength is the length of the vector returned by Haralick.
const TextureLength = len(cooccurrenceDirections) * haralickFeatures

// Haralick computes the 13 Haralick texture statistics for each of the four
// co-occurrence directions, direction-major. The co-occurrence matrices are
// symmetric and span grey levels 0..max(g). A direction without any pixel
// pair contributes zeros.
func Haralick(g *Grey) []float64 {
	out := make([]float64, TextureLength)
	levels := int(g.Max()) + 1

	for d, dir := range cooccurrenceDirections {
		cmat := cooccurrence(g, levels, dir[0], dir[1])
		haralickInto(out[d*haralickFeatures:(d+1)*haralickFeatures], cmat, levels)
	}
	return out
}

// cooccurrence counts symmetric pixel pairs (p, p+(dy,dx)) into a
// levels x levels matrix.
func cooccurrence(g *Grey, levels, dy, dx int) []float64 {
	cmat := make([]float64, levels*levels)
	for y := 0; y < g.Height; y++ {
		ny := y + dy
		if ny < 0 || ny >= g.Height {
			continue
		}
		for x := 0; x < g.Width; x++ {
			nx := x + dx
			if nx < 0 || nx >= g.Width {
				continue
			}
			a, b := int(g.At(x, y)), int(g.At(nx, ny))
			cmat[a*levels+b]++
			cmat[b*levels+a]++
		}
	}
	return cmat
}

func haralickInto(feats []float64, cmat []float64, n int) {
	total := floats.Sum(cmat)
	if total == 0 {
		return
	}

	p := make([]float64, len(cmat))
	floats.ScaleTo(p, 1/total, cmat)

	px := make([]float64, n)
	py := make([]float64, n)
	pxPlusY := make([]float64, 2*n)
	pxMinusY := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := p[i*n+j]
			px[j] += v
			py[i] += v
			pxPlusY[i+j] += v
			pxMinusY[absInt(i-j)] += v
		}
	}

	var ux, uy, x2, y2 float64
	for k := 0; k < n; k++ {
		fk := float64(k)
		ux += fk * px[k]
		uy += fk * py[k]
		x2 += fk * fk * px[k]
		y2 += fk * fk * py[k]
	}
	vx := x2 - ux*ux
	vy := y2 - uy*uy
	sx, sy := math.Sqrt(math.Max(vx, 0)), math.Sqrt(math.Max(vy, 0))

	asm := floats.Dot(p, p)
	var ij, idm float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := p[i*n+j]
			ij += float64(i*j) * v
			d := float64(i - j)
			idm += v / (d*d + 1)
		}
	}

	var contrast float64
	for k, v := range pxMinusY {
		contrast += float64(k*k) * v
	}

	var sumAverage float64
	for k, v := range pxPlusY {
		sumAverage += float64(k) * v
	}
	var sumVariance float64
	for k, v := range pxPlusY {
		d := float64(k) - sumAverage
		sumVariance += d * d * v
	}

	hxy := entropy(p)
	hx, hy := entropy(px), entropy(py)

	var hxy1, hxy2 float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cross := px[i] * py[j]
			if cross == 0 {
				continue
			}
			hxy1 -= p[i*n+j] * math.Log2(cross)
			hxy2 -= cross * math.Log2(cross)
		}
	}

	feats[0] = asm
	feats[1] = contrast
	if sx == 0 || sy == 0 {
		feats[2] = 1
	} else {
		feats[2] = (ij - ux*uy) / (sx * sy)
	}
	feats[3] = vx
	feats[4] = idm
	feats[5] = sumAverage
	feats[6] = sumVariance
	feats[7] = entropy(pxPlusY)
	feats[8] = hxy
	feats[9] = stat.PopVariance(pxMinusY, nil)
	feats[10] = entropy(pxMinusY)
	if h := math.Max(hx, hy); h == 0 {
		feats[11] = hxy - hxy1
	} else {
		feats[11] = (hxy - hxy1) / h
	}
	feats[12] = math.Sqrt(math.Max(0, 1-math.Exp(-2*(hxy2-hxy))))
}

// entropy is the base-2 Shannon entropy; zero probabilities contribute nothing.
func entropy(p []float64) float64 {
	var h float64
	for _, v := range p {
		if v > 0 {
			h -= v * math.Log2(v)
		}
	}
	return h
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
