// Package vocabulary builds the visual vocabulary from pooled training
// descriptors and encodes descriptor sets as bag-of-visual-words histograms.
package vocabulary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Vocabulary is a fitted set of K cluster centres of dimension D.
type Vocabulary struct {
	centers *mat.Dense
}

// New wraps a K x D centre matrix.
func New(centers *mat.Dense) (*Vocabulary, error) {
	if centers == nil || centers.IsEmpty() {
		return nil, errors.New("vocabulary needs at least one centre")
	}
	return &Vocabulary{centers: centers}, nil
}

// Size returns K.
func (v *Vocabulary) Size() int {
	r, _ := v.centers.Dims()
	return r
}

// Dim returns the descriptor dimension D.
func (v *Vocabulary) Dim() int {
	_, c := v.centers.Dims()
	return c
}

// Center returns a copy of centre k.
func (v *Vocabulary) Center(k int) []float64 {
	return append([]float64(nil), v.centers.RawRowView(k)...)
}

// Nearest returns the index of the centre closest to d in Euclidean
// distance. Ties go to the lowest index.
func (v *Vocabulary) Nearest(d []float64) int {
	return nearestRow(v.centers, d)
}

// Encode counts how many descriptors fall nearest to each centre. The
// result always has Size() entries; an empty descriptor set encodes to zeros.
func (v *Vocabulary) Encode(descriptors [][]float64) ([]float64, error) {
	hist := make([]float64, v.Size())
	for i, d := range descriptors {
		if len(d) != v.Dim() {
			return nil, fmt.Errorf("descriptor %d has dimension %d, vocabulary has %d", i, len(d), v.Dim())
		}
		hist[v.Nearest(d)]++
	}
	return hist, nil
}

// MarshalBinary uses gonum's dense matrix encoding.
func (v *Vocabulary) MarshalBinary() ([]byte, error) {
	if v.centers == nil {
		return nil, errors.New("empty vocabulary")
	}
	return v.centers.MarshalBinary()
}

func (v *Vocabulary) UnmarshalBinary(data []byte) error {
	var centers mat.Dense
	if err := centers.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("failed to decode vocabulary: %w", err)
	}
	if centers.IsEmpty() {
		return errors.New("decoded vocabulary has no centres")
	}
	v.centers = &centers
	return nil
}

// Fingerprint identifies the vocabulary by the SHA-256 of its encoding.
// Histograms record it so they can be matched to the vocabulary that
// produced them.
func (v *Vocabulary) Fingerprint() (string, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Shape reports K x D.
func (v *Vocabulary) Shape() (rows, cols int) {
	return v.centers.Dims()
}
