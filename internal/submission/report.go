package submission

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Result is the model selection outcome of one variant.
type Result struct {
	Variant  string
	Accuracy float64
	BestC    float64
}

// WriteReport writes two lines per result:
//
//	Accuracy with Logistic Regression [base]: 41.3%
//	 Best parameters: {'C': 0.1}
func WriteReport(w io.Writer, results []Result) error {
	for _, r := range results {
		_, err := fmt.Fprintf(w, "Accuracy with Logistic Regression [%s]: %.1f%%\n Best parameters: {'C': %s}\n",
			r.Variant, 100*r.Accuracy, strconv.FormatFloat(r.BestC, 'g', -1, 64))
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendReport appends results to the report at path, creating it and its
// directory when needed.
func AppendReport(path string, results []Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open report: %w", err)
	}
	if err := WriteReport(f, results); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
