package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const manifestName = "manifest.yaml"

// manifestKind marks corruption of the manifest itself.
const manifestKind Kind = -1

// Entry describes one stored artifact.
type Entry struct {
	File    string    `yaml:"file"`
	Rows    int       `yaml:"rows"`
	Cols    int       `yaml:"cols"`
	Bytes   int64     `yaml:"bytes"`
	SHA256  string    `yaml:"sha256"`
	Written time.Time `yaml:"written"`
	// Vocabulary is the fingerprint of the vocabulary that encoded a
	// histogram artifact.
	Vocabulary string `yaml:"vocabulary,omitempty"`
}

type manifest struct {
	Split   string           `yaml:"split"`
	Entries map[string]Entry `yaml:"entries"`
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &manifest{Entries: map[string]Entry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &CorruptionError{Path: path, Kind: manifestKind, Err: err}
	}
	if m.Entries == nil {
		m.Entries = map[string]Entry{}
	}
	return &m, nil
}

func writeManifest(path string, m *manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return writeAtomic(path, data)
}
