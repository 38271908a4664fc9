package features

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *Grey {
	g := NewGrey(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g.Set(x, y, uint8((x*7+y*13)%256))
		}
	}
	return g
}

func assertFinite(t *testing.T, v []float64) {
	t.Helper()
	for i, x := range v {
		assert.False(t, math.IsNaN(x) || math.IsInf(x, 0), "value %d is %v", i, x)
	}
}

func TestHaralickUniformImage(t *testing.T) {
	feats := Haralick(Uniform(5, 5, 128))
	require.Len(t, feats, TextureLength)
	assertFinite(t, feats)

	for d := 0; d < 4; d++ {
		f := feats[d*haralickFeatures:]
		assert.InDelta(t, 1.0, f[0], 1e-12, "asm")
		assert.Zero(t, f[1], "contrast")
		assert.Equal(t, 1.0, f[2], "correlation")
		assert.InDelta(t, 256.0, f[5], 1e-9, "sum average")
		assert.Zero(t, f[8], "entropy")
	}
}

func TestHaralickDeterministic(t *testing.T) {
	g := gradient(32, 24)
	a := Haralick(g)
	b := Haralick(g)
	assert.Equal(t, a, b)
	assertFinite(t, a)
}

func TestHaralickSinglePixel(t *testing.T) {
	feats := Haralick(Uniform(1, 1, 9))
	require.Len(t, feats, TextureLength)
	for _, v := range feats {
		assert.Zero(t, v)
	}
}

func TestCooccurrenceIsSymmetric(t *testing.T) {
	g := gradient(10, 10)
	levels := int(g.Max()) + 1
	for _, dir := range cooccurrenceDirections {
		cmat := cooccurrence(g, levels, dir[0], dir[1])
		for i := 0; i < levels; i++ {
			for j := 0; j < levels; j++ {
				require.Equal(t, cmat[i*levels+j], cmat[j*levels+i])
			}
		}
	}
}

func TestPatternLength(t *testing.T) {
	assert.Equal(t, 14, PatternLength(6))
	assert.Equal(t, 36, PatternLength(8))
	assert.Equal(t, 2, PatternLength(1))
}

func TestLBPUniformImage(t *testing.T) {
	hist, err := LBP(Uniform(5, 5, 40), 8, 6)
	require.NoError(t, err)
	require.Len(t, hist, 14)
	// No neighbour is brighter than the centre, so every pixel has code 0.
	assert.Equal(t, 25.0, hist[0])
	var sum float64
	for _, v := range hist {
		sum += v
	}
	assert.Equal(t, 25.0, sum)
}

func TestLBPDarkCentre(t *testing.T) {
	g := Uniform(5, 5, 200)
	g.Set(2, 2, 10)
	hist, err := LBP(g, 1, 4)
	require.NoError(t, err)
	// Codes 0, 1, 3, 5, 7, 15: only the dark pixel sees four brighter
	// neighbours, every other one sees equal, darker or padded samples.
	assert.Equal(t, []float64{24, 0, 0, 0, 0, 1}, hist)
}

func TestLBPCountsEveryPixel(t *testing.T) {
	g := gradient(20, 15)
	hist, err := LBP(g, 2, 6)
	require.NoError(t, err)
	var sum float64
	for _, v := range hist {
		sum += v
	}
	assert.Equal(t, float64(20*15), sum)
}

func TestLBPRejectsBadParameters(t *testing.T) {
	_, err := LBP(Uniform(3, 3, 0), 0, 6)
	assert.Error(t, err)
	_, err = LBP(Uniform(3, 3, 0), 1, 0)
	assert.Error(t, err)
}

func TestMinRotation(t *testing.T) {
	assert.Equal(t, uint(1), minRotation(0b100000, 6))
	assert.Equal(t, uint(0b000011), minRotation(0b110000, 6))
	assert.Equal(t, uint(0b000101), minRotation(0b101000, 6))
}

func TestDenseSURFGrid(t *testing.T) {
	d := DenseSURF{Spacing: 16}
	descs, err := d.Describe(gradient(64, 48))
	require.NoError(t, err)
	// x: 8, 24, 40, 56; y: 8, 24, 40
	require.Len(t, descs, 12)
	for _, v := range descs {
		require.Len(t, v, SURFLength)
		assertFinite(t, v)
		var norm float64
		for _, x := range v {
			norm += x * x
		}
		assert.InDelta(t, 1.0, norm, 1e-9)
	}
}

func TestDenseSURFUniformIsZero(t *testing.T) {
	descs, err := DenseSURF{Spacing: 2}.Describe(Uniform(5, 5, 200))
	require.NoError(t, err)
	require.Len(t, descs, 4)
	for _, v := range descs {
		require.Len(t, v, SURFLength)
		for _, x := range v {
			assert.Zero(t, x)
		}
	}
}

func TestDenseSURFErrors(t *testing.T) {
	_, err := DenseSURF{}.Describe(Uniform(5, 5, 0))
	assert.Error(t, err)
	_, err = DenseSURF{Spacing: 4}.Describe(&Grey{Width: 2, Height: 2})
	assert.Error(t, err)
}

func TestIntegralSum(t *testing.T) {
	g := gradient(6, 4)
	ii := newIntegral(g)
	var want float64
	for y := 1; y < 3; y++ {
		for x := 2; x < 5; x++ {
			want += float64(g.At(x, y))
		}
	}
	assert.Equal(t, want, ii.sum(1, 2, 3, 5))
	assert.Zero(t, ii.sum(3, 3, 3, 5))
	assert.Equal(t, ii.sum(0, 0, 4, 6), ii.sum(-5, -5, 10, 10))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestGoSourceLoadAndResize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	writePNG(t, path, img)

	src := GoSource{}
	g, err := src.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, g.Width)
	assert.Equal(t, 6, g.Height)
	assert.Equal(t, uint8(255), g.At(3, 3))

	r, err := src.Resize(g, 4, 12)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Width)
	assert.Equal(t, 12, r.Height)
	assert.Len(t, r.Pix, 48)
}

func TestGoSourceDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := GoSource{}.Load(path)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, path, decodeErr.Path)

	_, err = GoSource{}.Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorAs(t, err, &decodeErr)
}

func TestExtractorUniformImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.png")
	writePNG(t, path, Uniform(5, 5, 77).ToImage())

	ex, err := NewExtractor(GoSource{}, DenseSURF{Spacing: 16}, Options{Width: 45, Height: 60, LBPRadius: 8, LBPPoints: 6})
	require.NoError(t, err)

	s, err := ex.Extract(path)
	require.NoError(t, err)
	assert.Len(t, s.Texture, TextureLength)
	assert.Len(t, s.Pattern, 14)
	assertFinite(t, s.Texture)
	assertFinite(t, s.Pattern)
	// 45x60 with spacing 16: x 8,24,40; y 8,24,40,56
	assert.Len(t, s.Descriptors, 12)

	again, err := ex.Extract(path)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	tex, pat := ex.Dims()
	assert.Equal(t, TextureLength, tex)
	assert.Equal(t, 14, pat)
	assert.Equal(t, SURFLength, ex.DescriptorDim())
}

func TestNewExtractorValidates(t *testing.T) {
	_, err := NewExtractor(nil, DenseSURF{Spacing: 16}, Options{Width: 1, Height: 1, LBPRadius: 1, LBPPoints: 6})
	assert.Error(t, err)
	_, err = NewExtractor(GoSource{}, DenseSURF{Spacing: 16}, Options{LBPRadius: 1, LBPPoints: 6})
	assert.Error(t, err)
	_, err = NewExtractor(GoSource{}, DenseSURF{Spacing: 16}, Options{Width: 1, Height: 1, LBPRadius: 1, LBPPoints: 20})
	assert.Error(t, err)
}

func TestFromImageGray(t *testing.T) {
	src := gradient(7, 3).ToImage()
	sub := src.SubImage(image.Rect(2, 1, 6, 3))
	g := FromImage(sub)
	require.Equal(t, 4, g.Width)
	require.Equal(t, 2, g.Height)
	assert.Equal(t, src.GrayAt(2, 1).Y, g.At(0, 0))
	assert.Equal(t, src.GrayAt(5, 2).Y, g.At(3, 1))
}
