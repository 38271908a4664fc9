package classifier

import "fmt"

// Fold is one train/test partition of sample indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n samples into k consecutive folds without shuffling. The
// first n%k folds hold one extra sample.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least two folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d samples for %d folds", ErrTooFewSamples, n, k)
	}

	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				folds[f].Test = append(folds[f].Test, i)
			} else {
				folds[f].Train = append(folds[f].Train, i)
			}
		}
		start = end
	}
	return folds, nil
}
