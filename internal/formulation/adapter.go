package formulation

import "bemekit/internal/errs"

// ContinuousFirst reorders a decision vector so that its continuous
// components precede its discrete ones, keeping the relative order inside
// each group. Solvers that split a vector into a continuous and an integer
// part expect this layout.
type ContinuousFirst struct {
	perm       []int // perm[i] is the natural index of solver component i
	continuous int
}

// NewContinuousFirst builds the adapter for a natural-order mask in which
// true marks a continuous component.
func NewContinuousFirst(mask []bool) ContinuousFirst {
	a := ContinuousFirst{perm: make([]int, 0, len(mask))}
	for i, c := range mask {
		if c {
			a.perm = append(a.perm, i)
		}
	}
	a.continuous = len(a.perm)
	for i, c := range mask {
		if !c {
			a.perm = append(a.perm, i)
		}
	}
	return a
}

// Continuous is the number of continuous components.
func (a ContinuousFirst) Continuous() int { return a.continuous }

func (a ContinuousFirst) Len() int { return len(a.perm) }

func (a ContinuousFirst) check(op string, dv []float64) error {
	if len(dv) != len(a.perm) {
		return errs.New(errs.CodeInvariantViolation, op, "vector has %d components, mask has %d", len(dv), len(a.perm))
	}
	return nil
}

// ToSolver maps a natural-order vector to the continuous-first layout.
func (a ContinuousFirst) ToSolver(dv []float64) ([]float64, error) {
	if err := a.check("to solver order", dv); err != nil {
		return nil, err
	}
	out := make([]float64, len(dv))
	for i, src := range a.perm {
		out[i] = dv[src]
	}
	return out, nil
}

// FromSolver is the inverse of ToSolver.
func (a ContinuousFirst) FromSolver(dv []float64) ([]float64, error) {
	if err := a.check("from solver order", dv); err != nil {
		return nil, err
	}
	out := make([]float64, len(dv))
	for i, dst := range a.perm {
		out[dst] = dv[i]
	}
	return out, nil
}
