package formulation

import (
	"math"
	"slices"

	"bemekit/internal/errs"
	"bemekit/internal/model"
)

const AnytownFamily = "bevarmejo::anytown"

// Anytown formulation tags. f1 encodes each existing pipe with a selector and
// an alternative, f2 to f4 fold both into one component and differ only in
// the reliability objective, f5 replaces each tank slot with a sized tank.
const (
	TagF1 = "f1"
	TagF2 = "f2"
	TagF3 = "f3"
	TagF4 = "f4"
	TagF5 = "f5"
	TagF6 = "f6"
)

// Existing pipe actions in the f1 selector.
const (
	PipeDoNothing = 0
	PipeClean     = 1
	PipeDuplicate = 2
)

const (
	mPerFt   = 0.3048
	m3PerGal = 0.003785411784

	// A sized tank replacing a legacy slot sits 215 ft above datum, keeps a
	// 10 ft safety margin and is fed by a 16 in riser.
	tankElevationFt = 215.0
	tankSafetyFt    = 10.0
	riserDiameterIn = 16.0
)

// AnytownLayout holds the cardinalities of the Anytown network.
type AnytownLayout struct {
	ExistingPipes  int
	PipeOptions    int
	NewPipes       int
	TankOptions    int
	TankLocations  int
	TankSlots      int
	Operations     int
	PipeDiameters  []float64 // in, one per pipe option
	TankVolumesGal []float64 // one per tank option
}

var DefaultAnytownLayout = AnytownLayout{
	ExistingPipes:  35,
	PipeOptions:    10,
	NewPipes:       6,
	TankOptions:    5,
	TankLocations:  17,
	TankSlots:      2,
	Operations:     24,
	PipeDiameters:  []float64{6, 8, 10, 12, 14, 16, 18, 20, 24, 30},
	TankVolumesGal: []float64{50000, 100000, 250000, 500000, 1000000},
}

// Anytown converts between the rehab and mixed formulations of the Anytown
// design problem.
type Anytown struct {
	Layout AnytownLayout
}

func NewAnytown() Anytown {
	return Anytown{Layout: DefaultAnytownLayout}
}

func (Anytown) Family() string { return AnytownFamily }

func (a Anytown) Convert(p Pair, target string) (Pair, error) {
	const op = "convert anytown"
	src, err := Parse(p.Problem.Type)
	if err != nil {
		return Pair{}, err
	}
	if src.Family() != AnytownFamily {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "problem %q is not in family %s", p.Problem.Type, AnytownFamily)
	}
	if len(src.Segments) != 4 || (src.Variant() != "rehab" && src.Variant() != "mixed") {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "problem %q has no convertible variant", p.Problem.Type)
	}
	from := src.Tag()
	if !isAnytownTag(from) {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "unknown source formulation %q", from)
	}
	if !isAnytownTag(target) {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "unknown target formulation %q", target)
	}
	if from == target {
		return p.Clone(), nil
	}
	if from == TagF6 || target == TagF6 {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "no conversion between %s and %s", from, target)
	}
	if from == TagF5 {
		return Pair{}, errs.New(errs.CodeIrreversibleConversion, op, "%s has sized tanks that %s cannot represent", from, target)
	}

	out := p.Clone()
	switch {
	case from == TagF1:
		if out.DecisionVector, err = a.fold(out.Problem, out.DecisionVector); err != nil {
			return Pair{}, err
		}
	case target == TagF1:
		if out.DecisionVector, err = a.unfold(out.Problem, out.DecisionVector); err != nil {
			return Pair{}, err
		}
	}
	if target == TagF5 {
		if out.DecisionVector, err = a.expandTanks(out.DecisionVector); err != nil {
			return Pair{}, err
		}
	}
	out.Problem.Type = src.WithTag(target)
	return out, nil
}

func isAnytownTag(tag string) bool {
	switch tag {
	case TagF1, TagF2, TagF3, TagF4, TagF5, TagF6:
		return true
	}
	return false
}

// checkExistingPipes asserts the problem lists exactly the expected number of
// existing pipes. Folding a vector with another count would shift every
// component after the pipes.
func (a Anytown) checkExistingPipes(p model.Problem) error {
	subnets, _ := p.Parameters["at_subnets"].(map[string]any)
	pipes, ok := subnets["existing_pipes"].([]any)
	if !ok {
		return errs.New(errs.CodeInvariantViolation, "check existing pipes", "parameters.at_subnets.existing_pipes is missing")
	}
	if len(pipes) != a.Layout.ExistingPipes {
		return errs.New(errs.CodeInvariantViolation, "check existing pipes", "%d existing pipes, want %d", len(pipes), a.Layout.ExistingPipes)
	}
	return nil
}

// fold rewrites the f1 pipe pairs into single components.
func (a Anytown) fold(p model.Problem, dv []float64) ([]float64, error) {
	const op = "fold existing pipes"
	if err := a.checkExistingPipes(p); err != nil {
		return nil, err
	}
	n := a.Layout.ExistingPipes
	if len(dv) < 2*n+a.Layout.NewPipes+2*a.Layout.TankSlots {
		return nil, errs.New(errs.CodeInvariantViolation, op, "f1 vector has %d components", len(dv))
	}
	out := make([]float64, 0, len(dv)-n)
	for i := range n {
		sel, ok := integral(dv[2*i], PipeDoNothing, PipeDuplicate)
		if !ok {
			return nil, errs.New(errs.CodeInvariantViolation, op, "pipe %d has action %v", i, dv[2*i])
		}
		if sel < PipeDuplicate {
			out = append(out, float64(sel))
			continue
		}
		alt, ok := integral(dv[2*i+1], 0, a.Layout.PipeOptions-1)
		if !ok {
			return nil, errs.New(errs.CodeInvariantViolation, op, "pipe %d has alternative %v", i, dv[2*i+1])
		}
		out = append(out, float64(alt+PipeDuplicate))
	}
	return append(out, dv[2*n:]...), nil
}

// unfold is the inverse of fold.
func (a Anytown) unfold(p model.Problem, dv []float64) ([]float64, error) {
	const op = "unfold existing pipes"
	if err := a.checkExistingPipes(p); err != nil {
		return nil, err
	}
	n := a.Layout.ExistingPipes
	if len(dv) < n+a.Layout.NewPipes+2*a.Layout.TankSlots {
		return nil, errs.New(errs.CodeInvariantViolation, op, "vector has %d components", len(dv))
	}
	out := make([]float64, 0, len(dv)+n)
	for i := range n {
		v, ok := integral(dv[i], 0, PipeDuplicate+a.Layout.PipeOptions-1)
		if !ok {
			return nil, errs.New(errs.CodeInvariantViolation, op, "pipe %d has value %v", i, dv[i])
		}
		if v < PipeDuplicate {
			out = append(out, float64(v), 0)
		} else {
			out = append(out, PipeDuplicate, float64(v-PipeDuplicate))
		}
	}
	return append(out, dv[n:]...), nil
}

// expandTanks replaces the trailing (location, volume) slots with sized
// tanks and returns the vector in continuous-first order.
//
// An installed slot becomes six components and a do-nothing slot only its
// two discrete ones, so the f5 vector length depends on how many tanks are
// installed. The bevarmejo f5 problem always reads six components per slot
// and rejects a request with any do-nothing slot; such vectors are meant for
// inspection here, not for re-simulation.
func (a Anytown) expandTanks(dv []float64) ([]float64, error) {
	const op = "expand tanks"
	tail := 2 * a.Layout.TankSlots
	if len(dv) < tail {
		return nil, errs.New(errs.CodeInvariantViolation, op, "vector has %d components", len(dv))
	}
	riser := slices.Index(a.Layout.PipeDiameters, riserDiameterIn)
	if riser < 0 {
		return nil, errs.New(errs.CodeInvariantViolation, op, "riser diameter %v in is not a pipe option", riserDiameterIn)
	}

	lead := len(dv) - tail
	natural := append([]float64(nil), dv[:lead]...)
	mask := make([]bool, lead, len(dv)+4*a.Layout.TankSlots)
	for s := range a.Layout.TankSlots {
		loc, ok := integral(dv[lead+2*s], 0, a.Layout.TankLocations)
		if !ok {
			return nil, errs.New(errs.CodeInvariantViolation, op, "tank slot %d has location %v", s, dv[lead+2*s])
		}
		if loc == 0 {
			natural = append(natural, 0, 0)
			mask = append(mask, false, false)
			continue
		}
		vol, ok := integral(dv[lead+2*s+1], 0, a.Layout.TankOptions-1)
		if !ok {
			return nil, errs.New(errs.CodeInvariantViolation, op, "tank slot %d has volume option %v", s, dv[lead+2*s+1])
		}
		diam := cylinderDiameter(a.Layout.TankVolumesGal[vol] * m3PerGal)
		natural = append(natural,
			float64(riser+1),
			float64(loc-1),
			diam,
			tankElevationFt*mPerFt+diam,
			(tankElevationFt+tankSafetyFt)*mPerFt,
			tankSafetyFt*mPerFt,
		)
		mask = append(mask, false, false, true, true, true, true)
	}
	return NewContinuousFirst(mask).ToSolver(natural)
}

// cylinderDiameter is the diameter of a cylinder of the given volume whose
// height equals its diameter.
func cylinderDiameter(volume float64) float64 {
	return math.Cbrt(4 * volume / math.Pi)
}
