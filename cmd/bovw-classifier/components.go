package main

import (
	"fmt"
	"io"

	"bovw-classifier/internal/config"
	"bovw-classifier/internal/features"
	"bovw-classifier/internal/logger"
	"bovw-classifier/internal/opencv"
	"bovw-classifier/internal/vocabulary"
)

const kmeansEpsilon = 1e-4

// components are the configured backends of one run.
type components struct {
	extractor *features.Extractor
	fitter    *vocabulary.Builder
	// closers release native resources on shutdown.
	closers map[string]io.Closer
}

func buildComponents(cfg config.Config, log logger.Logger) (*components, error) {
	c := &components{closers: make(map[string]io.Closer)}

	var source features.Source
	switch cfg.Extraction.Decoder {
	case "opencv":
		source = opencv.Source{}
	case "go":
		source = features.GoSource{}
	default:
		return nil, fmt.Errorf("unknown decoder %q", cfg.Extraction.Decoder)
	}

	var descriptors features.DescriptorExtractor
	switch cfg.Extraction.Descriptor {
	case "surf":
		descriptors = features.DenseSURF{Spacing: cfg.Extraction.Spacing}
	case "sift":
		sift, err := opencv.NewDenseSIFT(cfg.Extraction.Spacing)
		if err != nil {
			return nil, err
		}
		c.closers["dense_sift"] = sift
		descriptors = sift
	default:
		return nil, fmt.Errorf("unknown descriptor %q", cfg.Extraction.Descriptor)
	}

	extractor, err := features.NewExtractor(source, descriptors, features.Options{
		Width:     cfg.Extraction.Width,
		Height:    cfg.Extraction.Height,
		LBPRadius: cfg.Extraction.LBPRadius,
		LBPPoints: cfg.Extraction.LBPPoints,
	})
	if err != nil {
		return nil, err
	}
	c.extractor = extractor

	v := cfg.Vocabulary
	var clusterer vocabulary.Clusterer
	switch v.Clusterer {
	case "minibatch":
		clusterer = vocabulary.MiniBatchKMeans{
			BatchSize:     v.BatchSize,
			Attempts:      v.Attempts,
			MaxIterations: v.MaxIterations,
			Seed:          v.Seed,
		}
	case "opencv":
		clusterer = opencv.KMeans{
			Attempts:      v.Attempts,
			MaxIterations: v.MaxIterations,
			Epsilon:       kmeansEpsilon,
			Seed:          v.Seed,
		}
	default:
		return nil, fmt.Errorf("unknown clusterer %q", v.Clusterer)
	}
	c.fitter = &vocabulary.Builder{
		Clusterer: clusterer,
		Stride:    v.SampleStride,
		Rule:      vocabulary.SizeRule{Size: v.Size, ExpectedCount: v.ExpectedCount},
		Logger:    log,
	}

	log.Info("Main", "components configured", map[string]interface{}{
		"decoder":    cfg.Extraction.Decoder,
		"descriptor": cfg.Extraction.Descriptor,
		"dim":        extractor.DescriptorDim(),
		"clusterer":  v.Clusterer,
	})
	return c, nil
}
