package classifier

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"bovw-classifier/internal/matrix"
)

// StandardScaler centres every column and scales it to unit population
// standard deviation. Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Fit(x matrix.Matrix) {
	s.Mean = make([]float64, x.Cols)
	s.Scale = make([]float64, x.Cols)

	if x.Rows == 0 {
		for j := range s.Scale {
			s.Scale[j] = 1
		}
		return
	}

	dense := x.Dense()
	col := make([]float64, x.Rows)
	for j := 0; j < x.Cols; j++ {
		mat.Col(col, j, dense)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x matrix.Matrix) matrix.Matrix {
	out := matrix.New(x.Rows, x.Cols)
	for i := 0; i < x.Rows; i++ {
		src, dst := x.Row(i), out.Row(i)
		for j, v := range src {
			dst[j] = (v - s.Mean[j]) / s.Scale[j]
		}
	}
	return out
}
