// Package submission writes the per-variant probability CSVs and appends
// the accuracy report.
package submission

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"bovw-classifier/internal/matrix"
)

// Predictions are class probabilities for a list of images. Column k of
// Proba belongs to Classes[k].
type Predictions struct {
	Images  []string
	Classes []string
	Proba   matrix.Matrix
}

// FileName is the CSV name of a variant.
func FileName(variant string) string {
	return variant + "_submission.csv"
}

// WriteCSV writes the header img followed by columns, then one row per
// image. Columns missing from p.Classes are written as 0.
func WriteCSV(w io.Writer, columns []string, p Predictions) error {
	if p.Proba.Rows != len(p.Images) {
		return fmt.Errorf("%w: %d probability rows for %d images", matrix.ErrShapeMismatch, p.Proba.Rows, len(p.Images))
	}
	if p.Proba.Rows > 0 && p.Proba.Cols != len(p.Classes) {
		return fmt.Errorf("%w: %d probability columns for %d classes", matrix.ErrShapeMismatch, p.Proba.Cols, len(p.Classes))
	}

	source := make([]int, len(columns))
	for j, col := range columns {
		source[j] = -1
		for k, c := range p.Classes {
			if c == col {
				source[j] = k
				break
			}
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"img"}, columns...)); err != nil {
		return err
	}
	record := make([]string, len(columns)+1)
	for i, name := range p.Images {
		record[0] = name
		row := p.Proba.Row(i)
		for j, k := range source {
			v := 0.0
			if k >= 0 {
				v = row[k]
			}
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write creates dir/<variant>_submission.csv and returns its path.
func Write(dir, variant string, columns []string, p Predictions) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, FileName(variant))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create submission: %w", err)
	}
	if err := WriteCSV(f, columns, p); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}
