// Package simulation reads and writes re-simulation requests and drives the
// external simulator that evaluates them.
package simulation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"bemekit/internal/errs"
	"bemekit/internal/model"
)

const (
	RequestPrefix = "bemesim__"
	RequestExt    = ".json"
	// FitnessExt is appended to the request id by the simulator's --savefv flag.
	FitnessExt = ".fv.json"
)

// Request is everything the simulator needs to evaluate one decision vector.
// LookupPaths are searched, in order, for input files named relative in the
// problem parameters.
type Request struct {
	ID             uint64        `json:"id"`
	DecisionVector []float64     `json:"decision_vector"`
	Problem        model.Problem `json:"problem"`
	FitnessVector  []float64     `json:"fitness_vector"`
	Print          string        `json:"print"`
	BemelibVersion string        `json:"bemelib_version"`
	LookupPaths    []string      `json:"lookup_paths"`
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	out := r
	out.DecisionVector = append([]float64(nil), r.DecisionVector...)
	if r.FitnessVector != nil {
		out.FitnessVector = append([]float64(nil), r.FitnessVector...)
	}
	out.Problem = *r.Problem.Clone()
	out.LookupPaths = append([]string(nil), r.LookupPaths...)
	return out
}

// FileName is the deterministic request file name for an individual id.
func FileName(id uint64) string {
	return RequestPrefix + strconv.FormatUint(id, 10) + RequestExt
}

// Write stores req as dir/bemesim__<id>.json, creating dir if needed. An
// existing request for the same id is overwritten.
func Write(fs billy.Filesystem, dir string, req Request) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create request dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode request %d: %w", req.ID, err)
	}
	path := filepath.Join(dir, FileName(req.ID))
	if err := util.WriteFile(fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write request %s: %w", path, err)
	}
	return path, nil
}

// Read loads a request file written by Write.
func Read(fs billy.Filesystem, path string) (Request, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Request{}, errs.Wrap(errs.CodeResourceNotFound, "read request", path, err)
		}
		return Request{}, fmt.Errorf("read request %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, errs.Wrap(errs.CodeSchemaMismatch, "decode request", path, err)
	}
	return req, nil
}
