// Package experiment runs the whole classification experiment: features for
// both splits, one cross-validated model per variant, a submission per
// variant and the appended accuracy report.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"bovw-classifier/internal/artifact"
	"bovw-classifier/internal/classifier"
	"bovw-classifier/internal/config"
	"bovw-classifier/internal/dataset"
	"bovw-classifier/internal/logger"
	"bovw-classifier/internal/matrix"
	"bovw-classifier/internal/pipeline"
	"bovw-classifier/internal/submission"
	"bovw-classifier/internal/timing"
)

// Deps are the pluggable parts of a run.
type Deps struct {
	Extractor pipeline.Extractor
	Fitter    pipeline.VocabularyFitter
	Logger    logger.Logger
	Timing    *timing.Tracker
}

type Experiment struct {
	cfg      config.Config
	layout   dataset.Layout
	store    *artifact.Store
	pipeline *pipeline.Pipeline
	logger   logger.Logger
	timing   *timing.Tracker
}

func New(cfg config.Config, deps Deps) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if deps.Extractor == nil || deps.Fitter == nil {
		return nil, errors.New("experiment needs an extractor and a vocabulary fitter")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NoOpLogger{}
	}
	tracker := deps.Timing
	if tracker == nil {
		tracker = timing.NewTracker(log)
	}

	store := artifact.NewStore(cfg.Paths.Cache, log)
	return &Experiment{
		cfg: cfg,
		layout: dataset.Layout{
			Root:      cfg.Paths.Images,
			TrainDir:  cfg.Paths.TrainDir,
			TestDir:   cfg.Paths.TestDir,
			Extension: cfg.Paths.Extension,
			Classes:   cfg.Classes,
		},
		store:    store,
		pipeline: pipeline.New(store, deps.Extractor, deps.Fitter, log, tracker),
		logger:   log,
		timing:   tracker,
	}, nil
}

// Run builds an experiment from cfg and deps and runs it.
func Run(ctx context.Context, cfg config.Config, deps Deps) ([]submission.Result, error) {
	e, err := New(cfg, deps)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx)
}

// Store exposes the artifact cache of the run.
func (e *Experiment) Store() *artifact.Store {
	return e.store
}

// Features lists the images of split and computes or loads their features.
func (e *Experiment) Features(ctx context.Context, split dataset.Split) (*pipeline.Features, []dataset.Image, error) {
	images, err := e.layout.List(split)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("Experiment", "images listed", map[string]interface{}{
		"split":  split.String(),
		"images": len(images),
	})

	f, err := e.pipeline.Compute(ctx, split, images)
	if err != nil {
		return nil, nil, fmt.Errorf("%s features: %w", split, err)
	}
	return f, images, nil
}

// Run computes the features of both splits, then fits, predicts and writes
// a submission for every variant, and finally appends the report.
func (e *Experiment) Run(ctx context.Context) ([]submission.Result, error) {
	train, _, err := e.Features(ctx, dataset.Train)
	if err != nil {
		return nil, err
	}
	test, testImages, err := e.Features(ctx, dataset.Test)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(testImages))
	for i, img := range testImages {
		names[i] = img.Name()
	}

	search := &classifier.GridSearch{
		C:             e.cfg.Classifier.C,
		Folds:         e.cfg.Classifier.Folds,
		MaxIterations: e.cfg.Classifier.MaxIterations,
		Tolerance:     e.cfg.Classifier.Tolerance,
		Logger:        e.logger,
	}

	var results []submission.Result
	for _, variant := range e.cfg.Variants {
		result, err := e.runVariant(ctx, search, variant, train, test, names)
		if err != nil {
			return results, fmt.Errorf("variant %s: %w", variant.Name, err)
		}
		results = append(results, result)
	}

	reportPath := filepath.Join(e.cfg.Paths.Output, e.cfg.Paths.ReportFile)
	if err := submission.AppendReport(reportPath, results); err != nil {
		return results, err
	}
	e.logger.Info("Experiment", "report appended", map[string]interface{}{
		"path":     reportPath,
		"variants": len(results),
	})
	return results, nil
}

func (e *Experiment) runVariant(ctx context.Context, search *classifier.GridSearch, variant config.Variant,
	train, test *pipeline.Features, names []string) (submission.Result, error) {
	x, err := Assemble(train, variant.Features)
	if err != nil {
		return submission.Result{}, err
	}
	xt, err := Assemble(test, variant.Features)
	if err != nil {
		return submission.Result{}, err
	}

	tctx := e.timing.StartTiming("grid_search_" + variant.Name)
	model, err := search.Fit(ctx, x, train.Labels)
	e.timing.EndTiming(tctx)
	if err != nil {
		return submission.Result{}, err
	}

	proba, err := model.PredictProba(xt)
	if err != nil {
		return submission.Result{}, err
	}
	path, err := submission.Write(e.cfg.Paths.Output, variant.Name, e.cfg.Classes, submission.Predictions{
		Images:  names,
		Classes: model.Classes(),
		Proba:   proba,
	})
	if err != nil {
		return submission.Result{}, err
	}

	e.logger.Info("Experiment", "variant evaluated", map[string]interface{}{
		"variant":    variant.Name,
		"accuracy":   model.BestScore,
		"best_c":     model.BestC,
		"submission": path,
	})
	return submission.Result{Variant: variant.Name, Accuracy: model.BestScore, BestC: model.BestC}, nil
}

// Assemble concatenates the named feature blocks of f column-wise, in the
// order given.
func Assemble(f *pipeline.Features, blocks []string) (matrix.Matrix, error) {
	ms := make([]matrix.Matrix, 0, len(blocks))
	for _, b := range blocks {
		switch b {
		case config.FeatureTexture:
			ms = append(ms, f.Texture)
		case config.FeaturePattern:
			ms = append(ms, f.Pattern)
		case config.FeatureHistogram:
			ms = append(ms, f.Histograms)
		default:
			return matrix.Matrix{}, fmt.Errorf("unknown feature block %q", b)
		}
	}
	return matrix.HStack(ms...)
}
