package registry

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"llamad/internal/common/fsutil"
)

// ErrNoModel is returned when a directory holds no *.gguf file.
var ErrNoModel = errors.New("no .gguf model found")

// LoadDir scans a directory for *.gguf files and returns their absolute
// paths, sorted by name.
func LoadDir(dir string) ([]string, error) {
	base, err := fsutil.ExpandPath(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, errors.Wrap(err, "abs path")
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, errors.Wrap(err, "read dir")
	}
	var models []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, filepath.Join(abs, name))
	}
	sort.Strings(models)
	return models, nil
}

// Resolve turns a configured model path into the file to load. A file path
// is returned as an absolute path; a directory must contain exactly one
// *.gguf file. Nonexistent paths are returned unchanged so loading reports
// them with the path the user gave.
func Resolve(path string) (string, error) {
	p, err := fsutil.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if p == "" || !fsutil.PathExists(p) {
		return p, nil
	}
	fi, err := os.Stat(p)
	if err != nil || !fi.IsDir() {
		abs, aerr := filepath.Abs(p)
		if aerr != nil {
			return p, nil
		}
		return abs, nil
	}
	models, err := LoadDir(p)
	if err != nil {
		return "", err
	}
	switch len(models) {
	case 0:
		return "", errors.Wrapf(ErrNoModel, "in %s", p)
	case 1:
		return models[0], nil
	default:
		names := make([]string, len(models))
		for i, m := range models {
			names[i] = filepath.Base(m)
		}
		return "", errors.Errorf("%s holds %d models (%s); set model_path to one file", p, len(models), strings.Join(names, ", "))
	}
}
