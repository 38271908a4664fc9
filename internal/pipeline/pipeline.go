// Package pipeline computes the aligned feature matrices of a split,
// reusing cached artifacts when a complete and consistent set exists.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"bovw-classifier/internal/artifact"
	"bovw-classifier/internal/dataset"
	"bovw-classifier/internal/logger"
	"bovw-classifier/internal/matrix"
	"bovw-classifier/internal/vocabulary"
)

// ErrVocabularyMissing is returned when the test split needs encoding but
// no training vocabulary has been stored.
var ErrVocabularyMissing = errors.New("training vocabulary not found")

// Features are the per-image feature matrices of one split. Row i of every
// matrix, and Labels[i] for the training split, belong to the i-th image.
type Features struct {
	Split      dataset.Split
	Texture    matrix.Matrix
	Pattern    matrix.Matrix
	Histograms matrix.Matrix
	Labels     []string
}

// Rows returns the number of images.
func (f *Features) Rows() int {
	return f.Texture.Rows
}

type Pipeline struct {
	store     *artifact.Store
	extractor Extractor
	fitter    VocabularyFitter
	logger    logger.Logger
	timing    TimingTracker
}

func New(store *artifact.Store, extractor Extractor, fitter VocabularyFitter, log logger.Logger, timing TimingTracker) *Pipeline {
	if log == nil {
		log = logger.NoOpLogger{}
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		fitter:    fitter,
		logger:    log,
		timing:    timing,
	}
}

// RequiredKinds lists the artifacts that make a split's cache complete.
func RequiredKinds(split dataset.Split) []artifact.Kind {
	if split == dataset.Train {
		return []artifact.Kind{artifact.Texture, artifact.Pattern, artifact.Labels, artifact.Histograms, artifact.Vocabulary}
	}
	return []artifact.Kind{artifact.Texture, artifact.Pattern, artifact.Histograms}
}

// Compute returns the features of images, which must be in the order the
// caller wants rows in. A complete cached set is returned without decoding
// any image; otherwise every image is extracted, histograms are encoded
// with the training vocabulary (fitted here for the training split when not
// cached) and all artifacts are stored.
func (p *Pipeline) Compute(ctx context.Context, split dataset.Split, images []dataset.Image) (*Features, error) {
	missing, err := p.store.Complete(split, RequiredKinds(split)...)
	if err != nil {
		return nil, err
	}

	if len(missing) == 0 {
		cached, ok, err := p.loadCached(split, len(images))
		if err != nil {
			return nil, err
		}
		if ok {
			p.logger.Info("Pipeline", "using cached features", map[string]interface{}{
				"split":  split.String(),
				"images": cached.Rows(),
			})
			return cached, nil
		}
	} else {
		p.logger.Info("Pipeline", "cache incomplete, extracting features", map[string]interface{}{
			"split":   split.String(),
			"missing": kindNames(missing),
		})
	}

	return p.compute(ctx, split, images)
}

func (p *Pipeline) compute(ctx context.Context, split dataset.Split, images []dataset.Image) (*Features, error) {
	texDim, patDim := p.extractor.Dims()
	out := &Features{
		Split:   split,
		Texture: matrix.New(len(images), texDim),
		Pattern: matrix.New(len(images), patDim),
	}
	if split == dataset.Train {
		out.Labels = dataset.Labels(images)
	}
	sets := make([][][]float64, len(images))

	tctx := p.startTiming("extract_" + split.String())
	total := 0
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample, err := p.extractor.Extract(img.Path)
		if err != nil {
			return nil, fmt.Errorf("%s split aborted at image %d: %w", split, i, err)
		}
		if err := out.Texture.SetRow(i, sample.Texture); err != nil {
			return nil, fmt.Errorf("texture of %s: %w", img.Path, err)
		}
		if err := out.Pattern.SetRow(i, sample.Pattern); err != nil {
			return nil, fmt.Errorf("pattern of %s: %w", img.Path, err)
		}
		sets[i] = sample.Descriptors
		total += len(sample.Descriptors)

		p.logger.Debug("Pipeline", "image extracted", map[string]interface{}{
			"index":       i,
			"path":        img.Path,
			"descriptors": len(sample.Descriptors),
		})
	}
	p.endTiming(tctx)

	p.logger.Info("Pipeline", "features extracted", map[string]interface{}{
		"split":       split.String(),
		"images":      len(images),
		"descriptors": total,
	})

	vocab, err := p.vocabulary(ctx, split, sets)
	if err != nil {
		return nil, err
	}
	fingerprint, err := vocab.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint vocabulary: %w", err)
	}

	tctx = p.startTiming("encode_" + split.String())
	out.Histograms = matrix.New(len(images), vocab.Size())
	for i, set := range sets {
		hist, err := vocab.Encode(set)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", images[i].Path, err)
		}
		if err := out.Histograms.SetRow(i, hist); err != nil {
			return nil, err
		}
	}
	p.endTiming(tctx)

	if err := p.store.Put(split, artifact.Histograms, out.Histograms, artifact.WithVocabulary(fingerprint)); err != nil {
		return nil, err
	}
	if err := p.store.Put(split, artifact.Texture, out.Texture); err != nil {
		return nil, err
	}
	if err := p.store.Put(split, artifact.Pattern, out.Pattern); err != nil {
		return nil, err
	}
	if split == dataset.Train {
		if err := p.store.Put(split, artifact.Labels, artifact.LabelList(out.Labels)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// vocabulary returns the training vocabulary, fitting and storing it when
// the training split has none. The test split only ever loads it.
func (p *Pipeline) vocabulary(ctx context.Context, split dataset.Split, sets [][][]float64) (*vocabulary.Vocabulary, error) {
	var vocab vocabulary.Vocabulary
	found, err := p.store.Get(dataset.Train, artifact.Vocabulary, &vocab)
	if err != nil {
		return nil, err
	}
	if found {
		p.logger.Info("Pipeline", "reusing stored vocabulary", map[string]interface{}{
			"split": split.String(),
			"size":  vocab.Size(),
		})
		return &vocab, nil
	}
	if split != dataset.Train {
		return nil, fmt.Errorf("cannot encode %s split: %w", split, ErrVocabularyMissing)
	}

	tctx := p.startTiming("cluster")
	fitted, err := p.fitter.Fit(ctx, sets)
	p.endTiming(tctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fit vocabulary: %w", err)
	}
	if err := p.store.Put(dataset.Train, artifact.Vocabulary, fitted); err != nil {
		return nil, err
	}
	return fitted, nil
}

// loadCached reads a complete cached set. It reports ok == false when the
// set is stale: a row count that differs from the image list, or
// histograms encoded with another vocabulary than the stored one.
func (p *Pipeline) loadCached(split dataset.Split, images int) (*Features, bool, error) {
	out := &Features{Split: split}

	loads := []struct {
		kind artifact.Kind
		into *matrix.Matrix
	}{
		{artifact.Texture, &out.Texture},
		{artifact.Pattern, &out.Pattern},
		{artifact.Histograms, &out.Histograms},
	}
	for _, l := range loads {
		if _, err := p.store.Get(split, l.kind, l.into); err != nil {
			return nil, false, err
		}
		if l.into.Rows != images {
			p.logger.Warning("Pipeline", "cached artifact does not match image list, recomputing", map[string]interface{}{
				"split":  split.String(),
				"kind":   l.kind.String(),
				"rows":   l.into.Rows,
				"images": images,
			})
			return nil, false, nil
		}
	}

	if split == dataset.Train {
		var labels artifact.LabelList
		if _, err := p.store.Get(split, artifact.Labels, &labels); err != nil {
			return nil, false, err
		}
		if len(labels) != images {
			p.logger.Warning("Pipeline", "cached labels do not match image list, recomputing", map[string]interface{}{
				"labels": len(labels),
				"images": images,
			})
			return nil, false, nil
		}
		out.Labels = labels
	}

	fresh, err := p.histogramsMatchVocabulary(split)
	if err != nil || !fresh {
		return nil, false, err
	}
	return out, true, nil
}

// histogramsMatchVocabulary compares the fingerprint recorded with the
// cached histograms against the stored training vocabulary. When either is
// unknown the histograms are accepted.
func (p *Pipeline) histogramsMatchVocabulary(split dataset.Split) (bool, error) {
	entry, ok, err := p.store.Entry(split, artifact.Histograms)
	if err != nil || !ok || entry.Vocabulary == "" {
		return ok, err
	}

	var vocab vocabulary.Vocabulary
	found, err := p.store.Get(dataset.Train, artifact.Vocabulary, &vocab)
	if err != nil {
		return false, err
	}
	if !found {
		p.logger.Warning("Pipeline", "no stored vocabulary to check cached histograms against", map[string]interface{}{
			"split": split.String(),
		})
		return true, nil
	}
	fingerprint, err := vocab.Fingerprint()
	if err != nil {
		return false, err
	}
	if fingerprint != entry.Vocabulary {
		p.logger.Warning("Pipeline", "cached histograms were encoded with another vocabulary, recomputing", map[string]interface{}{
			"split": split.String(),
		})
		return false, nil
	}
	return true, nil
}

func (p *Pipeline) startTiming(op string) context.Context {
	if p.timing == nil {
		return context.Background()
	}
	return p.timing.StartTiming(op)
}

func (p *Pipeline) endTiming(ctx context.Context) {
	if p.timing != nil {
		p.timing.EndTiming(ctx)
	}
}

func kindNames(kinds []artifact.Kind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
