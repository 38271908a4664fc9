// Package config holds the explicit run configuration of an experiment:
// paths, class list, extraction parameters, vocabulary size rule and the
// classifier search grid. Defaults reproduce the reference experiment setup.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Paths      Paths      `yaml:"paths"`
	Classes    []string   `yaml:"classes"`
	Extraction Extraction `yaml:"extraction"`
	Vocabulary Vocabulary `yaml:"vocabulary"`
	Classifier Classifier `yaml:"classifier"`
	Variants   []Variant  `yaml:"variants"`
	Log        Log        `yaml:"log"`
}

type Paths struct {
	Images     string `yaml:"images"`
	TrainDir   string `yaml:"train_dir"`
	TestDir    string `yaml:"test_dir"`
	Extension  string `yaml:"extension"`
	Cache      string `yaml:"cache"`
	Output     string `yaml:"output"`
	ReportFile string `yaml:"report_file"`
}

type Extraction struct {
	// Decoder is "opencv" or "go".
	Decoder string `yaml:"decoder"`
	// Descriptor is "surf" (Go dense SURF-style) or "sift" (OpenCV).
	Descriptor string `yaml:"descriptor"`
	// Target resolution of the descriptor path.
	Width   int `yaml:"width"`
	Height  int `yaml:"height"`
	Spacing int `yaml:"spacing"`

	LBPRadius float64 `yaml:"lbp_radius"`
	LBPPoints int     `yaml:"lbp_points"`
}

type Vocabulary struct {
	// Size fixes K directly. When zero, K = round(sqrt(ExpectedCount/2)),
	// and when ExpectedCount is zero too, the pooled sample count is used.
	Size          int `yaml:"size"`
	ExpectedCount int `yaml:"expected_count"`
	SampleStride  int `yaml:"sample_stride"`

	// Clusterer is "minibatch" or "opencv".
	Clusterer     string `yaml:"clusterer"`
	BatchSize     int    `yaml:"batch_size"`
	Attempts      int    `yaml:"attempts"`
	MaxIterations int    `yaml:"max_iterations"`
	// Seed makes clustering reproducible; nil leaves it time-seeded.
	Seed *int64 `yaml:"seed"`
}

type Classifier struct {
	Folds         int       `yaml:"folds"`
	C             []float64 `yaml:"c"`
	MaxIterations int       `yaml:"max_iterations"`
	Tolerance     float64   `yaml:"tolerance"`
}

// Variant names one feature-set combination; Features lists blocks among
// "texture", "pattern" and "histogram", concatenated in the listed order.
type Variant struct {
	Name     string   `yaml:"name"`
	Features []string `yaml:"features"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	FeatureTexture   = "texture"
	FeaturePattern   = "pattern"
	FeatureHistogram = "histogram"
)

func Default() Config {
	return Config{
		Paths: Paths{
			Images:     "imgs",
			TrainDir:   "train",
			TestDir:    "test",
			Extension:  ".jpg",
			Cache:      "objects",
			Output:     "submissions",
			ReportFile: "results_LR.image.txt",
		},
		Classes: []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6", "c7", "c8", "c9"},
		Extraction: Extraction{
			Decoder:    "opencv",
			Descriptor: "surf",
			Width:      450,
			Height:     600,
			Spacing:    16,
			LBPRadius:  8,
			LBPPoints:  6,
		},
		Vocabulary: Vocabulary{
			ExpectedCount: 22425,
			SampleStride:  64,
			Clusterer:     "minibatch",
			BatchSize:     1000,
			Attempts:      30,
			MaxIterations: 100,
		},
		Classifier: Classifier{
			Folds:         10,
			C:             []float64{0.001, 0.01, 0.1, 1, 10, 100, 1000},
			MaxIterations: 100,
			Tolerance:     1e-4,
		},
		Variants: []Variant{
			{Name: "base", Features: []string{FeatureTexture}},
			{Name: "lbps", Features: []string{FeaturePattern}},
			{Name: "surf", Features: []string{FeatureHistogram}},
			{Name: "combined", Features: []string{FeaturePattern, FeatureTexture}},
			{Name: "combined_all", Features: []string{FeatureTexture, FeaturePattern, FeatureHistogram}},
		},
		Log: Log{Level: "info", Format: "console"},
	}
}

// Load returns the defaults overlaid with the YAML file at path. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	if len(c.Classes) < 2 {
		errs = append(errs, fmt.Errorf("need at least two classes, got %d", len(c.Classes)))
	}
	seen := make(map[string]bool, len(c.Classes))
	for _, class := range c.Classes {
		if seen[class] {
			errs = append(errs, fmt.Errorf("duplicate class %q", class))
		}
		seen[class] = true
	}

	switch c.Extraction.Decoder {
	case "opencv", "go":
	default:
		errs = append(errs, fmt.Errorf("unknown decoder %q", c.Extraction.Decoder))
	}
	switch c.Extraction.Descriptor {
	case "surf", "sift":
	default:
		errs = append(errs, fmt.Errorf("unknown descriptor %q", c.Extraction.Descriptor))
	}
	if c.Extraction.Width <= 0 || c.Extraction.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid descriptor resolution %dx%d", c.Extraction.Width, c.Extraction.Height))
	}
	if c.Extraction.Spacing <= 0 {
		errs = append(errs, fmt.Errorf("spacing must be positive, got %d", c.Extraction.Spacing))
	}
	if c.Extraction.LBPRadius <= 0 || c.Extraction.LBPPoints <= 0 || c.Extraction.LBPPoints > 16 {
		errs = append(errs, fmt.Errorf("invalid lbp parameters radius=%g points=%d", c.Extraction.LBPRadius, c.Extraction.LBPPoints))
	}

	v := c.Vocabulary
	if v.Size < 0 || v.ExpectedCount < 0 {
		errs = append(errs, errors.New("vocabulary size and expected count must not be negative"))
	}
	if v.SampleStride <= 0 {
		errs = append(errs, fmt.Errorf("sample stride must be positive, got %d", v.SampleStride))
	}
	switch v.Clusterer {
	case "minibatch", "opencv":
	default:
		errs = append(errs, fmt.Errorf("unknown clusterer %q", v.Clusterer))
	}
	if v.BatchSize <= 0 || v.Attempts <= 0 || v.MaxIterations <= 0 {
		errs = append(errs, errors.New("batch size, attempts and max iterations must be positive"))
	}

	if c.Classifier.Folds < 2 {
		errs = append(errs, fmt.Errorf("need at least two folds, got %d", c.Classifier.Folds))
	}
	if len(c.Classifier.C) == 0 {
		errs = append(errs, errors.New("empty regularisation grid"))
	}
	for _, C := range c.Classifier.C {
		if C <= 0 {
			errs = append(errs, fmt.Errorf("regularisation strength must be positive, got %g", C))
		}
	}

	names := make(map[string]bool, len(c.Variants))
	for _, variant := range c.Variants {
		if variant.Name == "" || names[variant.Name] {
			errs = append(errs, fmt.Errorf("variant names must be unique and non-empty, got %q", variant.Name))
		}
		names[variant.Name] = true
		if len(variant.Features) == 0 {
			errs = append(errs, fmt.Errorf("variant %q has no features", variant.Name))
		}
		for _, f := range variant.Features {
			switch f {
			case FeatureTexture, FeaturePattern, FeatureHistogram:
			default:
				errs = append(errs, fmt.Errorf("variant %q: unknown feature %q", variant.Name, f))
			}
		}
	}

	return errors.Join(errs...)
}
