package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"bovw-classifier/internal/artifact"
	"bovw-classifier/internal/dataset"
	"bovw-classifier/internal/features"
	"bovw-classifier/internal/matrix"
	"bovw-classifier/internal/vocabulary"
)

// fakeExtractor derives features from the image index and counts decodes.
type fakeExtractor struct {
	index map[string]int
	fail  map[string]error
	calls int
}

func newFakeExtractor(images []dataset.Image) *fakeExtractor {
	f := &fakeExtractor{index: map[string]int{}, fail: map[string]error{}}
	for i, img := range images {
		f.index[img.Path] = i
	}
	return f
}

func (f *fakeExtractor) Extract(path string) (features.Sample, error) {
	f.calls++
	if err := f.fail[path]; err != nil {
		return features.Sample{}, err
	}
	i, ok := f.index[path]
	if !ok {
		return features.Sample{}, &features.DecodeError{Path: path, Err: errors.New("unknown image")}
	}
	x := float64(i)
	s := features.Sample{
		Texture: []float64{x, 2 * x, 3 * x},
		Pattern: []float64{x, 1},
	}
	for d := 0; d < i%3+1; d++ {
		s.Descriptors = append(s.Descriptors, []float64{float64(i%2) * 10, float64(d)})
	}
	return s, nil
}

func (f *fakeExtractor) Dims() (int, int) {
	return 3, 2
}

type countingFitter struct {
	inner VocabularyFitter
	calls int
}

func (c *countingFitter) Fit(ctx context.Context, sets [][][]float64) (*vocabulary.Vocabulary, error) {
	c.calls++
	return c.inner.Fit(ctx, sets)
}

func newFitter(k int) *countingFitter {
	seed := int64(3)
	return &countingFitter{inner: &vocabulary.Builder{
		Clusterer: vocabulary.MiniBatchKMeans{BatchSize: 8, Attempts: 2, MaxIterations: 10, Seed: &seed},
		Stride:    1,
		Rule:      vocabulary.SizeRule{Size: k},
	}}
}

func trainImages(n int) []dataset.Image {
	images := make([]dataset.Image, n)
	for i := range images {
		class := fmt.Sprintf("c%d", i%2)
		images[i] = dataset.Image{
			Path:  filepath.Join("imgs", "train", class, fmt.Sprintf("img_%02d.jpg", i)),
			Label: class,
		}
	}
	return images
}

func testImages(n int) []dataset.Image {
	images := make([]dataset.Image, n)
	for i := range images {
		images[i] = dataset.Image{Path: filepath.Join("imgs", "test", fmt.Sprintf("img_%02d.jpg", i))}
	}
	return images
}

type fixture struct {
	store   *artifact.Store
	train   []dataset.Image
	test    []dataset.Image
	extract *fakeExtractor
	fitter  *countingFitter
	p       *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  artifact.NewStore(t.TempDir(), nil),
		train:  trainImages(12),
		test:   testImages(5),
		fitter: newFitter(2),
	}
	f.extract = newFakeExtractor(append(append([]dataset.Image{}, f.train...), f.test...))
	f.p = New(f.store, f.extract, f.fitter, nil, nil)
	return f
}

func rowSum(m matrix.Matrix, i int) float64 {
	var s float64
	for _, v := range m.Row(i) {
		s += v
	}
	return s
}

func TestComputeTrainAlignsRows(t *testing.T) {
	f := newFixture(t)
	out, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)

	require.Equal(t, len(f.train), out.Rows())
	require.Len(t, out.Labels, len(f.train))
	assert.Equal(t, 2, out.Histograms.Cols)
	for i, img := range f.train {
		assert.Equal(t, dataset.LabelOf(img.Path), out.Labels[i])
		assert.Equal(t, []float64{float64(i), 2 * float64(i), 3 * float64(i)}, out.Texture.Row(i))
		assert.Equal(t, float64(i%3+1), rowSum(out.Histograms, i))
	}
	assert.Equal(t, len(f.train), f.extract.calls)
	assert.Equal(t, 1, f.fitter.calls)

	missing, err := f.store.Complete(dataset.Train, RequiredKinds(dataset.Train)...)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestComputeWarmCacheIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)
	decodes := f.extract.calls

	second, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)
	assert.Equal(t, decodes, f.extract.calls, "warm cache must not decode images")
	assert.Equal(t, 1, f.fitter.calls)

	assert.True(t, first.Texture.Equal(second.Texture))
	assert.True(t, first.Pattern.Equal(second.Pattern))
	assert.True(t, first.Histograms.Equal(second.Histograms))
	assert.Equal(t, first.Labels, second.Labels)
}

func TestComputeTestReusesTrainingVocabulary(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)

	out, err := f.p.Compute(context.Background(), dataset.Test, f.test)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fitter.calls, "vocabulary must not be refit for the test split")
	assert.Nil(t, out.Labels)
	assert.Equal(t, len(f.test), out.Histograms.Rows)

	var vocab vocabulary.Vocabulary
	found, err := f.store.Get(dataset.Train, artifact.Vocabulary, &vocab)
	require.NoError(t, err)
	require.True(t, found)
	fingerprint, err := vocab.Fingerprint()
	require.NoError(t, err)

	entry, ok, err := f.store.Entry(dataset.Test, artifact.Histograms)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fingerprint, entry.Vocabulary)

	for i := range f.test {
		d := f.extract.index[f.test[i].Path]
		want, err := vocab.Encode(mustSample(t, f.extract, f.test[i].Path).Descriptors)
		require.NoError(t, err)
		assert.Equal(t, want, out.Histograms.Row(i), "image %d", d)
	}
}

func mustSample(t *testing.T, f *fakeExtractor, path string) features.Sample {
	t.Helper()
	s, err := f.Extract(path)
	require.NoError(t, err)
	return s
}

func TestComputeTestWithoutVocabulary(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Compute(context.Background(), dataset.Test, f.test)
	assert.ErrorIs(t, err, ErrVocabularyMissing)
	assert.Zero(t, f.fitter.calls)

	missing, err := f.store.Complete(dataset.Test, RequiredKinds(dataset.Test)...)
	require.NoError(t, err)
	assert.Len(t, missing, 3, "nothing is stored when the split fails")
}

func TestComputeTestRecomputesAfterVocabularyChange(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)
	_, err = f.p.Compute(context.Background(), dataset.Test, f.test)
	require.NoError(t, err)

	replacement, err := vocabulary.New(mat.NewDense(2, 2, []float64{0, 0, 10, 2}))
	require.NoError(t, err)
	require.NoError(t, f.store.Put(dataset.Train, artifact.Vocabulary, replacement))

	before := f.extract.calls
	out, err := f.p.Compute(context.Background(), dataset.Test, f.test)
	require.NoError(t, err)
	assert.Equal(t, before+len(f.test), f.extract.calls)

	fingerprint, err := replacement.Fingerprint()
	require.NoError(t, err)
	entry, _, err := f.store.Entry(dataset.Test, artifact.Histograms)
	require.NoError(t, err)
	assert.Equal(t, fingerprint, entry.Vocabulary)
	assert.Equal(t, len(f.test), out.Histograms.Rows)
}

func TestComputeRecomputesOnRowMismatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Compute(context.Background(), dataset.Train, f.train[:6])
	require.NoError(t, err)

	out, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)
	assert.Equal(t, len(f.train), out.Rows())
	assert.Equal(t, 6+len(f.train), f.extract.calls)
	assert.Equal(t, 1, f.fitter.calls, "a stored vocabulary is resumed, not refit")
}

func TestComputePrepopulatedTrainCache(t *testing.T) {
	store := artifact.NewStore(t.TempDir(), nil)
	images := trainImages(3)

	texture, err := matrix.FromRows([][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, 3)
	require.NoError(t, err)
	pattern, err := matrix.FromRows([][]float64{{1, 0}, {0, 1}, {1, 1}}, 2)
	require.NoError(t, err)
	hist, err := matrix.FromRows([][]float64{{2, 0}, {0, 3}, {1, 1}}, 2)
	require.NoError(t, err)
	vocab, err := vocabulary.New(mat.NewDense(2, 2, []float64{0, 0, 1, 1}))
	require.NoError(t, err)

	require.NoError(t, store.Put(dataset.Train, artifact.Texture, texture))
	require.NoError(t, store.Put(dataset.Train, artifact.Pattern, pattern))
	require.NoError(t, store.Put(dataset.Train, artifact.Labels, artifact.LabelList{"c0", "c1", "c0"}))
	require.NoError(t, store.Put(dataset.Train, artifact.Histograms, hist))
	require.NoError(t, store.Put(dataset.Train, artifact.Vocabulary, vocab))

	extract := newFakeExtractor(nil)
	fitter := newFitter(2)
	out, err := New(store, extract, fitter, nil, nil).Compute(context.Background(), dataset.Train, images)
	require.NoError(t, err)

	assert.Zero(t, extract.calls)
	assert.Zero(t, fitter.calls)
	assert.True(t, texture.Equal(out.Texture))
	assert.True(t, pattern.Equal(out.Pattern))
	assert.True(t, hist.Equal(out.Histograms))
	assert.Equal(t, []string{"c0", "c1", "c0"}, out.Labels)
}

func TestComputeCorruptCacheFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(f.store.Path(dataset.Train, artifact.Pattern), []byte("x"), 0o644))

	_, err = f.p.Compute(context.Background(), dataset.Train, f.train)
	assert.ErrorIs(t, err, artifact.ErrCorrupt)
}

func TestComputeDecodeErrorAbortsSplit(t *testing.T) {
	f := newFixture(t)
	bad := f.train[4].Path
	f.extract.fail[bad] = &features.DecodeError{Path: bad, Err: errors.New("truncated")}

	_, err := f.p.Compute(context.Background(), dataset.Train, f.train)
	var decodeErr *features.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, bad, decodeErr.Path)
	assert.Equal(t, 5, f.extract.calls)
	assert.Zero(t, f.fitter.calls)
}

func TestComputeEmptyTestSplit(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Compute(context.Background(), dataset.Test, nil)
	assert.ErrorIs(t, err, ErrVocabularyMissing)

	_, err = f.p.Compute(context.Background(), dataset.Train, f.train)
	require.NoError(t, err)
	out, err := f.p.Compute(context.Background(), dataset.Test, nil)
	require.NoError(t, err)
	assert.Zero(t, out.Rows())
	assert.Equal(t, 2, out.Histograms.Cols)
}

func TestComputeHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.p.Compute(ctx, dataset.Train, f.train)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.extract.calls)
}

// Twenty 5x5 uniform images in two classes, real extraction, K = 2.
func TestComputeUniformImageScenario(t *testing.T) {
	root := t.TempDir()
	var images []dataset.Image
	for i := 0; i < 20; i++ {
		class := fmt.Sprintf("c%d", i/10)
		dir := filepath.Join(root, "train", class)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		path := filepath.Join(dir, fmt.Sprintf("img_%02d.png", i))
		file, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(file, features.Uniform(5, 5, uint8(20*(i/10)+10)).ToImage()))
		require.NoError(t, file.Close())
		images = append(images, dataset.Image{Path: path, Label: class})
	}

	extractor, err := features.NewExtractor(features.GoSource{}, features.DenseSURF{Spacing: 2},
		features.Options{Width: 5, Height: 5, LBPRadius: 8, LBPPoints: 6})
	require.NoError(t, err)

	seed := int64(11)
	builder := &vocabulary.Builder{
		Clusterer: vocabulary.MiniBatchKMeans{BatchSize: 10, Attempts: 1, MaxIterations: 5, Seed: &seed},
		Stride:    64,
		Rule:      vocabulary.SizeRule{Size: 2},
	}
	p := New(artifact.NewStore(t.TempDir(), nil), extractor, builder, nil, nil)

	out, err := p.Compute(context.Background(), dataset.Train, images)
	require.NoError(t, err)

	assert.Equal(t, 20, out.Texture.Rows)
	assert.Equal(t, features.TextureLength, out.Texture.Cols)
	assert.Equal(t, 14, out.Pattern.Cols)
	rows, cols := out.Histograms.Shape()
	assert.Equal(t, 20, rows)
	assert.Equal(t, 2, cols)
	for i := range images {
		// 5x5 with spacing 2 samples a 2x2 grid.
		assert.Equal(t, 4.0, rowSum(out.Histograms, i))
		assert.Equal(t, images[i].Label, out.Labels[i])
	}
}
