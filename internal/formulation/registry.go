package formulation

import (
	"sort"

	"bemekit/internal/errs"
	"bemekit/internal/metrics"
	"bemekit/internal/simulation"
)

// Registry dispatches conversions to the converter of the problem's family.
type Registry struct {
	converters map[string]Converter
	metrics    *metrics.Recorder
}

type Option func(*Registry)

// WithConverter registers c, replacing any converter of the same family.
func WithConverter(c Converter) Option {
	return func(r *Registry) { r.converters[c.Family()] = c }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry returns a registry holding the Anytown and SysTol25 families
// plus whatever opts add.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{converters: make(map[string]Converter)}
	for _, c := range []Converter{NewAnytown(), NewSysTol25()} {
		r.converters[c.Family()] = c
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Families lists the registered families in sorted order.
func (r *Registry) Families() []string {
	out := make([]string, 0, len(r.converters))
	for f := range r.converters {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Convert rewrites p into the formulation tagged target. p is never modified.
func (r *Registry) Convert(p Pair, target string) (Pair, error) {
	desc, err := Parse(p.Problem.Type)
	if err != nil {
		r.metrics.ObserveConversion("unknown", err)
		return Pair{}, err
	}
	family := desc.Family()
	c, ok := r.converters[family]
	if !ok {
		err := errs.New(errs.CodeFormulationMismatch, "convert", "no converter for family %s", family)
		r.metrics.ObserveConversion(family, err)
		return Pair{}, err
	}
	out, err := c.Convert(p, target)
	r.metrics.ObserveConversion(family, err)
	return out, err
}

// ConvertRequest converts the individual of a re-simulation request. The
// recorded fitness belongs to the source formulation and is dropped.
func (r *Registry) ConvertRequest(req simulation.Request, target string) (simulation.Request, error) {
	out, err := r.Convert(Pair{DecisionVector: req.DecisionVector, Problem: req.Problem}, target)
	if err != nil {
		return simulation.Request{}, err
	}
	conv := req.Clone()
	conv.DecisionVector = out.DecisionVector
	conv.Problem = out.Problem
	conv.FitnessVector = nil
	return conv, nil
}

// ConvertRequest converts req with the default registry.
func ConvertRequest(req simulation.Request, target string) (simulation.Request, error) {
	return NewRegistry().ConvertRequest(req, target)
}
