package pipeline

import (
	"context"
	"time"

	"bovw-classifier/internal/features"
	"bovw-classifier/internal/vocabulary"
)

// Extractor computes the per-image features.
type Extractor interface {
	Extract(path string) (features.Sample, error)
	Dims() (texture, pattern int)
}

// VocabularyFitter fits a vocabulary on the descriptor sets of the
// training split.
type VocabularyFitter interface {
	Fit(ctx context.Context, sets [][][]float64) (*vocabulary.Vocabulary, error)
}

type TimingTracker interface {
	StartTiming(operation string) context.Context
	EndTiming(ctx context.Context) time.Duration
}
