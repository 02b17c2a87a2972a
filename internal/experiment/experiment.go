// Package experiment loads experiment result trees and serves addressable,
// lazily derived views over them.
//
// An Experiment is immutable once Load returns. Derived views are computed on
// first access, exactly once, and shared by every later caller; the slices
// they hold alias the loaded data and must not be modified.
package experiment

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bemekit/internal/errs"
	"bemekit/internal/model"
	"bemekit/internal/simulation"
)

// Island is a loaded island file.
type Island struct {
	// Name is derived from the island file name.
	Name string
	Path string
	// Cadence is the number of generations between two reports.
	Cadence int
	model.Island
}

// ReportCount is the number of recorded reports.
func (i *Island) ReportCount() int { return len(i.Generations) }

// AbsoluteGeneration converts a report index to a generation number.
func (i *Island) AbsoluteGeneration(report int) int { return i.Cadence * report }

type Experiment struct {
	name    string
	path    string
	folder  string
	file    model.ExperimentFile
	islands []*Island
	index   map[string]int
	hv      HypervolumeEngine

	views cache
}

func (e *Experiment) Name() string { return e.name }

// Path is the absolute path of the experiment file.
func (e *Experiment) Path() string { return e.path }

// Folder is the absolute experiment folder, the parent of its output directory.
func (e *Experiment) Folder() string { return e.folder }

// DisplayFolder is Folder with the user's home directory contracted to "~".
func (e *Experiment) DisplayFolder() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return e.folder
	}
	if e.folder == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(e.folder, home+string(filepath.Separator)); ok {
		return "~" + string(filepath.Separator) + rest
	}
	return e.folder
}

func (e *Experiment) SoftwareVersion() string { return e.file.Software.BemelibVersion }

// File returns the decoded experiment file. Its Islands field keeps the
// on-disk references.
func (e *Experiment) File() model.ExperimentFile {
	out := e.file
	out.Archipelago.Islands = append([]string(nil), e.file.Archipelago.Islands...)
	return out
}

// Islands returns the islands in file order.
func (e *Experiment) Islands() []*Island {
	return append([]*Island(nil), e.islands...)
}

func (e *Experiment) NumIslands() int { return len(e.islands) }

func (e *Experiment) IslandAt(i int) (*Island, error) {
	if i < 0 || i >= len(e.islands) {
		return nil, errs.New(errs.CodeIndexOutOfRange, "island at", "island index %d outside [0, %d)", i, len(e.islands))
	}
	return e.islands[i], nil
}

func (e *Experiment) Island(name string) (*Island, error) {
	i, ok := e.index[name]
	if !ok {
		return nil, errs.New(errs.CodeNotFound, "island", "experiment %q has no island %q", e.name, name)
	}
	return e.islands[i], nil
}

// GenerationRef addresses a report either directly or through the absolute
// generation number it was recorded at.
type GenerationRef struct {
	absolute bool
	n        int
}

// ByReport addresses the report at index k.
func ByReport(k int) GenerationRef { return GenerationRef{n: k} }

// ByGeneration addresses the report recorded at absolute generation g.
func ByGeneration(g int) GenerationRef { return GenerationRef{absolute: true, n: g} }

func (r GenerationRef) String() string {
	if r.absolute {
		return "generation " + strconv.Itoa(r.n)
	}
	return "report " + strconv.Itoa(r.n)
}

// ReportIndex resolves ref to a report index of island. Absolute generations
// are looked up through the Generations view and fail if no report was
// recorded at that generation.
func (e *Experiment) ReportIndex(island string, ref GenerationRef) (int, error) {
	isl, err := e.Island(island)
	if err != nil {
		return 0, err
	}
	if !ref.absolute {
		if ref.n < 0 || ref.n >= isl.ReportCount() {
			return 0, errs.New(errs.CodeIndexOutOfRange, "report index", "island %q has %d reports, %s requested", island, isl.ReportCount(), ref)
		}
		return ref.n, nil
	}
	k, ok := e.reportIndex()[GenerationKey{Island: island, Generation: ref.n}]
	if !ok {
		return 0, errs.New(errs.CodeIndexOutOfRange, "report index", "island %q recorded no report at %s", island, ref)
	}
	return k, nil
}

// Individual returns a copy of one individual.
func (e *Experiment) Individual(island string, individual int, ref GenerationRef) (model.Individual, error) {
	k, err := e.ReportIndex(island, ref)
	if err != nil {
		return model.Individual{}, err
	}
	isl, _ := e.Island(island)
	inds := isl.Generations[k].Individuals
	if individual < 0 || individual >= len(inds) {
		return model.Individual{}, errs.New(errs.CodeIndexOutOfRange, "individual", "island %q %s has %d individuals, index %d requested", island, ref, len(inds), individual)
	}
	ind := inds[individual]
	return model.Individual{
		ID:             ind.ID,
		DecisionVector: append([]float64(nil), ind.DecisionVector...),
		FitnessVector:  append([]float64(nil), ind.FitnessVector...),
	}, nil
}

// SimulationRequest builds the re-simulation request of one individual. The
// experiment folder is the only lookup path.
func (e *Experiment) SimulationRequest(island string, individual int, ref GenerationRef) (simulation.Request, error) {
	ind, err := e.Individual(island, individual, ref)
	if err != nil {
		return simulation.Request{}, err
	}
	isl, _ := e.Island(island)
	return simulation.Request{
		ID:             ind.ID,
		DecisionVector: ind.DecisionVector,
		Problem:        *isl.Problem.Clone(),
		FitnessVector:  ind.FitnessVector,
		BemelibVersion: e.SoftwareVersion(),
		LookupPaths:    []string{e.folder},
	}, nil
}
