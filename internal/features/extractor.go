package features

import (
	"fmt"
)

// Source loads greyscale images and resizes them.
type Source interface {
	// Load returns the image at path at native resolution. Failures are
	// reported as *DecodeError.
	Load(path string) (*Grey, error)
	Resize(g *Grey, width, height int) (*Grey, error)
}

// DescriptorExtractor computes the local descriptors of an image.
type DescriptorExtractor interface {
	Describe(g *Grey) ([][]float64, error)
	Dim() int
}

// Options controls per-image extraction.
type Options struct {
	// Width and Height of the image the descriptors are sampled from.
	Width  int
	Height int

	LBPRadius float64
	LBPPoints int
}

// Sample holds the features of one image.
type Sample struct {
	Texture     []float64
	Pattern     []float64
	Descriptors [][]float64
}

type Extractor struct {
	source      Source
	descriptors DescriptorExtractor
	opts        Options
}

func NewExtractor(source Source, descriptors DescriptorExtractor, opts Options) (*Extractor, error) {
	if source == nil || descriptors == nil {
		return nil, fmt.Errorf("extractor needs a source and a descriptor extractor")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid descriptor image size %dx%d", opts.Width, opts.Height)
	}
	if opts.LBPRadius <= 0 || opts.LBPPoints <= 0 || opts.LBPPoints > 16 {
		return nil, fmt.Errorf("invalid lbp parameters radius=%g points=%d", opts.LBPRadius, opts.LBPPoints)
	}
	return &Extractor{source: source, descriptors: descriptors, opts: opts}, nil
}

// Dims returns the texture and pattern vector lengths.
func (e *Extractor) Dims() (texture, pattern int) {
	return TextureLength, PatternLength(e.opts.LBPPoints)
}

// DescriptorDim returns the local descriptor dimension.
func (e *Extractor) DescriptorDim() int {
	return e.descriptors.Dim()
}

// Extract decodes the image at path once and computes all three feature
// families. Texture and pattern use the native resolution; descriptors use
// the image resized to Options.Width x Options.Height.
func (e *Extractor) Extract(path string) (Sample, error) {
	g, err := e.source.Load(path)
	if err != nil {
		return Sample{}, err
	}

	pattern, err := LBP(g, e.opts.LBPRadius, e.opts.LBPPoints)
	if err != nil {
		return Sample{}, fmt.Errorf("pattern features for %s: %w", path, err)
	}

	resized, err := e.source.Resize(g, e.opts.Width, e.opts.Height)
	if err != nil {
		return Sample{}, fmt.Errorf("failed to resize %s: %w", path, err)
	}
	descs, err := e.descriptors.Describe(resized)
	if err != nil {
		return Sample{}, fmt.Errorf("descriptors for %s: %w", path, err)
	}

	return Sample{
		Texture:     Haralick(g),
		Pattern:     pattern,
		Descriptors: descs,
	}, nil
}
