package formulation

import (
	"bemekit/internal/errs"
)

const SysTol25Family = "bevarmejo::anytown_systol25"

// SysTol25 variants. Only hyd_rel optimises the pump schedule, so only its
// decision vector carries the operations.
const (
	VariantHydRel  = "hyd_rel"
	VariantMecRel  = "mec_rel"
	VariantFireRel = "fire_rel"
)

const (
	paramOperations = "pump_group_operations"
	paramFireFlow   = "anytown_ff_inp"

	DefaultFireFlowInput = "anytown_ff.inp"
)

// DefaultPumpGroupOperations is the hourly number of running pumps used when
// a problem carries no schedule.
var DefaultPumpGroupOperations = []float64{
	3, 2, 2, 2, 2, 2,
	2, 2, 2, 2, 2, 2,
	2, 2, 3, 3, 3, 3,
	3, 3, 3, 3, 3, 3,
}

// SysTol25 converts between the reliability variants of the system tolerance
// study on Anytown.
type SysTol25 struct {
	operations int
	fireFlow   string
}

func NewSysTol25() SysTol25 {
	return SysTol25{operations: DefaultAnytownLayout.Operations, fireFlow: DefaultFireFlowInput}
}

// WithAuxiliaryInput returns a copy that references path as the fire flow
// network of fire_rel problems.
func (s SysTol25) WithAuxiliaryInput(path string) SysTol25 {
	s.fireFlow = path
	return s
}

func (SysTol25) Family() string { return SysTol25Family }

func isSysTol25Variant(v string) bool {
	return v == VariantHydRel || v == VariantMecRel || v == VariantFireRel
}

func (s SysTol25) Convert(p Pair, target string) (Pair, error) {
	const op = "convert systol25"
	src, err := Parse(p.Problem.Type)
	if err != nil {
		return Pair{}, err
	}
	if src.Family() != SysTol25Family || len(src.Segments) != 3 {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "problem %q is not in family %s", p.Problem.Type, SysTol25Family)
	}
	from := src.Tag()
	if !isSysTol25Variant(from) {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "unknown source variant %q", from)
	}
	if !isSysTol25Variant(target) {
		return Pair{}, errs.New(errs.CodeFormulationMismatch, op, "unknown target variant %q", target)
	}
	if from == target {
		return p.Clone(), nil
	}

	out := p.Clone()
	if out.Problem.Parameters == nil {
		out.Problem.Parameters = make(map[string]any)
	}
	params := out.Problem.Parameters
	switch {
	case from == VariantHydRel:
		n := len(out.DecisionVector)
		if n < s.operations {
			return Pair{}, errs.New(errs.CodeInvariantViolation, op, "%s vector has %d components, fewer than %d operations", from, n, s.operations)
		}
		params[paramOperations] = anySlice(out.DecisionVector[n-s.operations:])
		out.DecisionVector = out.DecisionVector[:n-s.operations:n-s.operations]
	case target == VariantHydRel:
		ops := DefaultPumpGroupOperations
		if raw, present := params[paramOperations]; present {
			var ok bool
			if ops, ok = floatsOf(raw); !ok || len(ops) != s.operations {
				return Pair{}, errs.New(errs.CodeInvariantViolation, op, "parameters.%s must hold %d numbers", paramOperations, s.operations)
			}
		}
		out.DecisionVector = append(out.DecisionVector, ops...)
		delete(params, paramOperations)
	}

	if target == VariantFireRel {
		if _, present := params[paramFireFlow]; !present {
			params[paramFireFlow] = s.fireFlow
		}
	} else {
		delete(params, paramFireFlow)
	}
	out.Problem.Type = src.WithTag(target)
	return out, nil
}
