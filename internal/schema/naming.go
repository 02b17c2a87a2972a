package schema

import (
	"path/filepath"
	"strings"

	"bemekit/internal/errs"
)

// OutputDir is the directory, below the experiment folder, that holds the
// experiment and island result files.
const OutputDir = "output"

// Convention is one historical way of naming result files.
type Convention struct {
	Name   string
	Prefix string
	// Suffix sits between the logical name and the file extension.
	Suffix string
}

var (
	// ExperimentConventions are tried in order; the first match wins.
	ExperimentConventions = []Convention{
		{Name: "bemeopt", Prefix: "bemeopt__", Suffix: "__exp"},
		{Name: "bemeexp", Prefix: "bemeexp__"},
	}

	// IslandPrefixes are stripped from island file names before taking the
	// final "__" token as the island name.
	IslandPrefixes = []string{"bemeisl__", "bemeopt__", "bemeexp__", "opt__"}
)

// ExperimentName derives an experiment's logical name from its file path.
func ExperimentName(path string) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, c := range ExperimentConventions {
		if !strings.HasPrefix(stem, c.Prefix) {
			continue
		}
		name := strings.TrimPrefix(stem, c.Prefix)
		if c.Suffix != "" {
			if !strings.HasSuffix(name, c.Suffix) {
				continue
			}
			name = strings.TrimSuffix(name, c.Suffix)
		}
		if name == "" {
			break
		}
		return name, nil
	}
	return "", errs.New(errs.CodeSchemaMismatch, "experiment name", "file name %q matches no experiment naming convention", base).WithPath(path)
}

// IsExperimentFile reports whether name (a base name) is an experiment file
// under one of the known conventions.
func IsExperimentFile(name string) bool {
	if filepath.Ext(name) != ".json" {
		return false
	}
	_, err := ExperimentName(name)
	return err == nil
}

// ExperimentFolder returns the experiment folder for an experiment file: the
// parent of the output directory holding it.
func ExperimentFolder(path string) string {
	return filepath.Dir(filepath.Dir(path))
}

// IslandName derives an island's logical name from an island file reference.
func IslandName(ref string) (string, error) {
	base := filepath.Base(ref)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, prefix := range IslandPrefixes {
		if !strings.HasPrefix(stem, prefix) {
			continue
		}
		tokens := strings.Split(strings.TrimPrefix(stem, prefix), "__")
		name := tokens[len(tokens)-1]
		if name == "" {
			break
		}
		return name, nil
	}
	return "", errs.New(errs.CodeSchemaMismatch, "island name", "file name %q matches no island naming convention", base).WithPath(ref)
}

// ResolveIslandPath turns an island reference into a loadable path. Relative
// references are relative to the experiment's output directory.
func ResolveIslandPath(folder, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(folder, OutputDir, ref)
}
