// Package dataset lists the images of a split in a stable order and derives
// training labels from the class directory that holds each file.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Split is one partition of the image collection.
type Split int

const (
	Train Split = iota
	Test
)

func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Test:
		return "test"
	default:
		return fmt.Sprintf("split(%d)", int(s))
	}
}

func ParseSplit(name string) (Split, error) {
	switch strings.ToLower(name) {
	case "train":
		return Train, nil
	case "test":
		return Test, nil
	default:
		return 0, fmt.Errorf("unknown split %q", name)
	}
}

// Image is one input file. Label is empty for test images.
type Image struct {
	Path  string
	Label string
}

// Name is the file name written to the submission's img column.
func (im Image) Name() string {
	return filepath.Base(im.Path)
}

// Layout describes where the splits live on disk.
type Layout struct {
	Root      string
	TrainDir  string
	TestDir   string
	Extension string
	Classes   []string
}

// List returns the images of a split sorted by path. Training images are
// looked up under <root>/<train>/<class>/ for every configured class, test
// images under <root>/<test>/. A missing directory contributes no images.
func (l Layout) List(split Split) ([]Image, error) {
	var images []Image
	switch split {
	case Train:
		for _, class := range l.Classes {
			dir := filepath.Join(l.Root, l.TrainDir, class)
			paths, err := l.glob(dir)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				images = append(images, Image{Path: p, Label: LabelOf(p)})
			}
		}
	case Test:
		paths, err := l.glob(filepath.Join(l.Root, l.TestDir))
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			images = append(images, Image{Path: p})
		}
	default:
		return nil, fmt.Errorf("unknown split %v", split)
	}

	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, nil
}

func (l Layout) glob(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	ext := l.Extension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := paths[:0]
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
		}
	}
	return files, nil
}

// LabelOf returns the class encoded by the directory containing path.
func LabelOf(path string) string {
	return filepath.Base(filepath.Dir(path))
}

func Labels(images []Image) []string {
	labels := make([]string, len(images))
	for i, im := range images {
		labels[i] = im.Label
	}
	return labels
}
