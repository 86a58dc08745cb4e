package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hypnosd/internal/common/fsutil"
)

// Artifact is a model file found on disk.
type Artifact struct {
	// Name is the file name including extension.
	Name string
	// Path is the absolute file path.
	Path string
	Size int64
}

// LoadDir scans a directory for *.gguf files, sorted by name.
func LoadDir(dir string) ([]Artifact, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Artifact
	for _, e := range entries {
		if e.IsDir() { continue }
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") { continue }
		a := Artifact{Name: name, Path: filepath.Join(abs, name)}
		if fi, err := e.Info(); err == nil {
			a.Size = fi.Size()
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Pick returns the first model artifact in dir.
func Pick(dir string) (Artifact, error) {
	arts, err := LoadDir(dir)
	if err != nil {
		return Artifact{}, err
	}
	if len(arts) == 0 {
		return Artifact{}, fmt.Errorf("no .gguf model in %s", dir)
	}
	return arts[0], nil
}
