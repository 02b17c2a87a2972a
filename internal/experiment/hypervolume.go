package experiment

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"bemekit/internal/errs"
)

// HypervolumeEngine computes the volume dominated by points and bounded by
// ref. Every point handed to Compute is dominated by ref and the set is never
// empty.
type HypervolumeEngine interface {
	Compute(points [][]float64, ref []float64) (float64, error)
}

// PlanarHypervolume is an exact engine for two objectives.
type PlanarHypervolume struct{}

func (PlanarHypervolume) Compute(points [][]float64, ref []float64) (float64, error) {
	if len(ref) != 2 {
		return 0, errs.New(errs.CodeCapabilityUnavailable, "hypervolume", "planar engine needs 2 objectives, got %d", len(ref))
	}
	pts := make([][]float64, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
	volume, bound := 0.0, ref[1]
	for _, p := range pts {
		if p[1] >= bound {
			continue
		}
		volume += (ref[0] - p[0]) * (bound - p[1])
		bound = p[1]
	}
	return volume, nil
}

// dominatedBy keeps the points no worse than ref in every component.
func dominatedBy(points [][]float64, ref []float64) [][]float64 {
	var out [][]float64
	diff := make([]float64, len(ref))
	for _, p := range points {
		if len(p) != len(ref) {
			continue
		}
		floats.SubTo(diff, ref, p)
		if floats.Min(diff) >= 0 {
			out = append(out, p)
		}
	}
	return out
}

// Hypervolumes computes, for every (island, generation), the hypervolume of
// the report's fitness vectors against the island's reference point. A nil
// refs uses the nadir points, and islands that recorded no fitness vector
// produce no entries. With explicit refs every island with reports needs one.
// It needs a HypervolumeEngine (WithHypervolume).
func (e *Experiment) Hypervolumes(refs map[string][]float64) (*Series[GenerationKey, float64], error) {
	if e.hv == nil {
		return nil, errs.New(errs.CodeCapabilityUnavailable, "hypervolumes", "no hypervolume engine was configured")
	}
	nadirs := refs == nil
	if nadirs {
		refs = make(map[string][]float64)
		for name, n := range e.NadirPoints().All() {
			refs[name] = n
		}
	}
	s := newSeries[GenerationKey, float64](e.reportCount())
	for _, isl := range e.islands {
		if isl.ReportCount() == 0 {
			continue
		}
		ref, ok := refs[isl.Name]
		if !ok && nadirs {
			continue
		}
		if !ok {
			return nil, errs.New(errs.CodeNotFound, "hypervolumes", "no reference point for island %q", isl.Name)
		}
		for k, g := range isl.Generations {
			points := make([][]float64, 0, len(g.Individuals))
			for _, ind := range g.Individuals {
				points = append(points, ind.FitnessVector)
			}
			points = dominatedBy(points, ref)
			hv := 0.0
			if len(points) > 0 {
				var err error
				if hv, err = e.hv.Compute(points, ref); err != nil {
					return nil, err
				}
			}
			s.add(GenerationKey{Island: isl.Name, Generation: isl.AbsoluteGeneration(k)}, hv)
		}
	}
	return s, nil
}
