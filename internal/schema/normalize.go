// Package schema reconciles the historical on-disk layouts of experiment and
// island files into the canonical model.
//
// Decoding runs in three steps: the raw JSON tree is read with numbers kept
// exact, its revision is detected from key markers, and the adapter chain
// upgrades it one revision at a time until it reaches RevCanonical. Only then
// is it decoded into the model types.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"bemekit/internal/errs"
	"bemekit/internal/model"
)

// DecodeExperiment decodes an experiment file of any known revision.
func DecodeExperiment(path string, data []byte) (model.ExperimentFile, Revision, error) {
	tree, err := decodeTree(path, data)
	if err != nil {
		return model.ExperimentFile{}, 0, err
	}
	rev := Detect(tree)
	Upgrade(tree, rev)

	var exp model.ExperimentFile
	if err := toCanonical(path, tree, &exp); err != nil {
		return model.ExperimentFile{}, rev, err
	}
	if exp.Software.BemelibVersion == "" {
		exp.Software.BemelibVersion = model.DefaultSoftwareVersion
	}
	return exp, rev, nil
}

// DecodeIsland decodes an island file of any known revision. fallback, if not
// nil, replaces a missing or null problem.
func DecodeIsland(path string, data []byte, fallback *model.Problem) (model.Island, Revision, error) {
	tree, err := decodeTree(path, data)
	if err != nil {
		return model.Island{}, 0, err
	}
	rev := Detect(tree)
	Upgrade(tree, rev)
	if err := normalizeTimestamps(path, tree); err != nil {
		return model.Island{}, rev, err
	}

	var isl model.Island
	if err := toCanonical(path, tree, &isl); err != nil {
		return model.Island{}, rev, err
	}
	if isl.Problem == nil {
		if fallback == nil {
			return model.Island{}, rev, errs.New(errs.CodeSchemaMismatch, "decode island", "island has no problem and no fallback problem was given").WithPath(path)
		}
		isl.Problem = fallback.Clone()
	}
	return isl, rev, nil
}

func decodeTree(path string, data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, errs.Wrap(errs.CodeSchemaMismatch, "decode json", path, err)
	}
	if tree == nil {
		return nil, errs.New(errs.CodeSchemaMismatch, "decode json", "top level value is not an object").WithPath(path)
	}
	return tree, nil
}

func toCanonical(path string, tree map[string]any, out any) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode canonical tree %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return errs.Wrap(errs.CodeSchemaMismatch, "decode canonical", path, err)
	}
	return nil
}
