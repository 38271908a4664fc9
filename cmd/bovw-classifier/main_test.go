package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bovw-classifier/internal/config"
	"bovw-classifier/internal/dataset"
	"bovw-classifier/internal/features"
	"bovw-classifier/internal/logger"
	"bovw-classifier/internal/opencv"
)

func TestBuildComponentsGoBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.Decoder = "go"
	cfg.Extraction.Descriptor = "surf"

	c, err := buildComponents(cfg, logger.NoOpLogger{})
	require.NoError(t, err)
	assert.Equal(t, features.SURFLength, c.extractor.DescriptorDim())
	texture, pattern := c.extractor.Dims()
	assert.Equal(t, features.TextureLength, texture)
	assert.Equal(t, 14, pattern)
	assert.Empty(t, c.closers)
	assert.Equal(t, 64, c.fitter.Stride)
}

func TestBuildComponentsOpenCVBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.Descriptor = "sift"
	cfg.Vocabulary.Clusterer = "opencv"

	c, err := buildComponents(cfg, logger.NoOpLogger{})
	require.NoError(t, err)
	assert.Equal(t, opencv.SIFTLength, c.extractor.DescriptorDim())
	require.Contains(t, c.closers, "dense_sift")
	assert.NoError(t, c.closers["dense_sift"].Close())
}

func TestBuildComponentsRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Extraction.Decoder = "libvips"
	_, err := buildComponents(cfg, logger.NoOpLogger{})
	assert.Error(t, err)
}

func TestParseSplits(t *testing.T) {
	splits, err := parseSplits("ALL")
	require.NoError(t, err)
	assert.Equal(t, []dataset.Split{dataset.Train, dataset.Test}, splits)

	splits, err = parseSplits("test")
	require.NoError(t, err)
	assert.Equal(t, []dataset.Split{dataset.Test}, splits)

	_, err = parseSplits("validation")
	assert.Error(t, err)
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  cache: from-file\n  output: from-file\n"), 0o644))

	cmd := runCommand()
	require.NoError(t, cmd.Flag.Parse([]string{"-config", path, "-out", "from-flag"}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Paths.Cache)
	assert.Equal(t, "from-flag", cfg.Paths.Output)
	assert.Equal(t, "imgs", cfg.Paths.Images)
}

func TestCacheClearNeedsSplit(t *testing.T) {
	cmd := cacheClearCommand()
	require.NoError(t, cmd.Flag.Parse(nil))
	assert.Error(t, cacheClear(cmd, nil))
}
