// Package classifier selects and fits the linear model of each feature
// variant: features are standardised, the regularisation strength is
// chosen by k-fold cross-validated accuracy, and the best setting is
// refitted on all training rows.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"bovw-classifier/internal/logger"
	"bovw-classifier/internal/matrix"
)

var (
	// ErrSingleClass is returned when the training labels hold one class.
	ErrSingleClass = errors.New("training data has a single class")
	// ErrTooFewSamples is returned when there are fewer rows than folds.
	ErrTooFewSamples = errors.New("too few training samples")
)

type GridSearch struct {
	C             []float64
	Folds         int
	MaxIterations int
	Tolerance     float64
	Logger        logger.Logger
}

// Score is the cross-validated accuracy of one grid point.
type Score struct {
	C        float64
	Accuracy float64
}

// Model is a fitted scaler and classifier.
type Model struct {
	Scaler     StandardScaler
	Classifier LogisticRegression
	BestC      float64
	// BestScore is the cross-validated accuracy of BestC.
	BestScore float64
	Scores    []Score
}

// Fit scales x, evaluates every C on the folds and refits the best one on
// all rows. Accuracy is pooled over folds (correct predictions over all
// held-out rows); ties keep the earlier C.
func (g *GridSearch) Fit(ctx context.Context, x matrix.Matrix, y []string) (*Model, error) {
	log := g.Logger
	if log == nil {
		log = logger.NoOpLogger{}
	}
	if x.Rows != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", matrix.ErrShapeMismatch, x.Rows, len(y))
	}
	if len(g.C) == 0 {
		return nil, errors.New("empty regularisation grid")
	}
	if len(uniqueSorted(y)) < 2 {
		return nil, ErrSingleClass
	}
	folds, err := KFold(x.Rows, g.Folds)
	if err != nil {
		return nil, err
	}

	m := &Model{}
	m.Scaler.Fit(x)
	scaled := m.Scaler.Transform(x)

	best := -1
	for ci, c := range g.C {
		var correct, total int
		for _, fold := range folds {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			lr := g.newRegression(c)
			if err := lr.Fit(rows(scaled, fold.Train), pick(y, fold.Train)); err != nil {
				return nil, fmt.Errorf("fold fit with C=%g: %w", c, err)
			}
			if lr.Warning != "" {
				log.Debug("GridSearch", "fold fit did not converge", map[string]interface{}{
					"c":      c,
					"reason": lr.Warning,
				})
			}
			pred := lr.Predict(rows(scaled, fold.Test))
			for i, idx := range fold.Test {
				if pred[i] == y[idx] {
					correct++
				}
			}
			total += len(fold.Test)
		}

		acc := float64(correct) / float64(total)
		m.Scores = append(m.Scores, Score{C: c, Accuracy: acc})
		log.Debug("GridSearch", "grid point evaluated", map[string]interface{}{
			"c":        c,
			"accuracy": acc,
		})
		if best < 0 || acc > m.Scores[best].Accuracy {
			best = ci
		}
	}

	m.BestC = m.Scores[best].C
	m.BestScore = m.Scores[best].Accuracy
	m.Classifier = *g.newRegression(m.BestC)
	if err := m.Classifier.Fit(scaled, y); err != nil {
		return nil, fmt.Errorf("final fit with C=%g: %w", m.BestC, err)
	}
	if m.Classifier.Warning != "" {
		log.Warning("GridSearch", "final fit did not converge", map[string]interface{}{
			"c":      m.BestC,
			"reason": m.Classifier.Warning,
		})
	}
	return m, nil
}

func (g *GridSearch) newRegression(c float64) *LogisticRegression {
	return &LogisticRegression{C: c, MaxIterations: g.MaxIterations, Tolerance: g.Tolerance}
}

// Classes returns the labels of the PredictProba columns.
func (m *Model) Classes() []string {
	return m.Classifier.Classes
}

// PredictProba scales x with the training statistics and returns class
// probabilities.
func (m *Model) PredictProba(x matrix.Matrix) (matrix.Matrix, error) {
	if x.Cols != len(m.Scaler.Mean) {
		return matrix.Matrix{}, fmt.Errorf("%w: %d features, model was fitted on %d", matrix.ErrShapeMismatch, x.Cols, len(m.Scaler.Mean))
	}
	return m.Classifier.PredictProba(m.Scaler.Transform(x)), nil
}

func rows(x matrix.Matrix, idx []int) matrix.Matrix {
	out := matrix.New(len(idx), x.Cols)
	for i, r := range idx {
		copy(out.Row(i), x.Row(r))
	}
	return out
}

func pick(y []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
