package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"bovw-classifier/internal/matrix"
)

// LogisticRegression is L2-regularised multinomial logistic regression. It
// minimises C * sum of per-sample cross-entropy + 0.5 * ||W||^2 with
// L-BFGS; intercepts are not penalised.
type LogisticRegression struct {
	C             float64
	MaxIterations int
	Tolerance     float64

	// Classes are the sorted distinct training labels; column k of
	// PredictProba belongs to Classes[k].
	Classes []string
	// Weights holds one row of Dim coefficients per class.
	Weights [][]float64
	Bias    []float64

	// Warning describes an optimisation that stopped before converging.
	Warning string
}

func (lr *LogisticRegression) Fit(x matrix.Matrix, y []string) error {
	if x.Rows != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", matrix.ErrShapeMismatch, x.Rows, len(y))
	}
	if x.Rows == 0 {
		return errors.New("no training samples")
	}
	if lr.C <= 0 {
		return fmt.Errorf("regularisation strength must be positive, got %g", lr.C)
	}

	lr.Classes = uniqueSorted(y)
	index := make(map[string]int, len(lr.Classes))
	for k, c := range lr.Classes {
		index[c] = k
	}
	target := make([]int, len(y))
	for i, label := range y {
		target[i] = index[label]
	}

	k, d := len(lr.Classes), x.Cols
	lr.Weights = make([][]float64, k)
	for c := range lr.Weights {
		lr.Weights[c] = make([]float64, d)
	}
	lr.Bias = make([]float64, k)
	lr.Warning = ""
	if k == 1 {
		return nil
	}

	obj := &objective{x: x, target: target, classes: k, c: lr.C}
	problem := optimize.Problem{
		Func: obj.value,
		Grad: obj.gradient,
	}
	settings := &optimize.Settings{
		GradientThreshold: lr.Tolerance,
		MajorIterations:   lr.MaxIterations,
	}

	result, err := optimize.Minimize(problem, make([]float64, k*(d+1)), settings, &optimize.LBFGS{})
	if result == nil {
		return fmt.Errorf("logistic regression optimisation failed: %w", err)
	}
	if err != nil {
		lr.Warning = err.Error()
	} else if result.Status == optimize.IterationLimit {
		lr.Warning = "iteration limit reached before convergence"
	}

	for c := 0; c < k; c++ {
		copy(lr.Weights[c], result.X[c*d:(c+1)*d])
		lr.Bias[c] = result.X[k*d+c]
	}
	return nil
}

// PredictProba returns one row of class probabilities per sample.
func (lr *LogisticRegression) PredictProba(x matrix.Matrix) matrix.Matrix {
	k := len(lr.Classes)
	out := matrix.New(x.Rows, k)
	scores := make([]float64, k)
	for i := 0; i < x.Rows; i++ {
		row := x.Row(i)
		for c := 0; c < k; c++ {
			scores[c] = floats.Dot(lr.Weights[c], row) + lr.Bias[c]
		}
		softmax(out.Row(i), scores)
	}
	return out
}

// Predict returns the most probable class of every sample; ties go to the
// first class in sorted order.
func (lr *LogisticRegression) Predict(x matrix.Matrix) []string {
	proba := lr.PredictProba(x)
	out := make([]string, x.Rows)
	for i := range out {
		out[i] = lr.Classes[floats.MaxIdx(proba.Row(i))]
	}
	return out
}

type objective struct {
	x       matrix.Matrix
	target  []int
	classes int
	c       float64
}

// logits writes W x_i + b for sample i into dst.
func (o *objective) logits(dst, params []float64, i int) {
	d := o.x.Cols
	row := o.x.Row(i)
	for c := 0; c < o.classes; c++ {
		dst[c] = floats.Dot(params[c*d:(c+1)*d], row) + params[o.classes*d+c]
	}
}

func (o *objective) value(params []float64) float64 {
	d := o.x.Cols
	z := make([]float64, o.classes)
	var loss float64
	for i := 0; i < o.x.Rows; i++ {
		o.logits(z, params, i)
		loss += floats.LogSumExp(z) - z[o.target[i]]
	}
	w := params[:o.classes*d]
	return o.c*loss + 0.5*floats.Dot(w, w)
}

func (o *objective) gradient(grad, params []float64) {
	d := o.x.Cols
	for j := range grad {
		grad[j] = 0
	}
	z := make([]float64, o.classes)
	p := make([]float64, o.classes)
	for i := 0; i < o.x.Rows; i++ {
		o.logits(z, params, i)
		softmax(p, z)
		p[o.target[i]]--
		row := o.x.Row(i)
		for c := 0; c < o.classes; c++ {
			floats.AddScaled(grad[c*d:(c+1)*d], o.c*p[c], row)
			grad[o.classes*d+c] += o.c * p[c]
		}
	}
	floats.Add(grad[:o.classes*d], params[:o.classes*d])
}

func softmax(dst, z []float64) {
	lse := floats.LogSumExp(z)
	for c, v := range z {
		dst[c] = math.Exp(v - lse)
	}
}

func uniqueSorted(labels []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
