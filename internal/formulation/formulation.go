// Package formulation re-encodes decision vectors between the formulations of
// a problem family.
//
// A problem type is a "::" separated identifier such as
// "bevarmejo::anytown::mixed::f1". Its first two segments name the family and
// its last segment the formulation tag a Converter switches between. A
// conversion never modifies its input: it returns a new Pair or an error.
package formulation

import (
	"strings"

	"bemekit/internal/errs"
	"bemekit/internal/model"
)

const separator = "::"

// Descriptor is a parsed problem type.
type Descriptor struct {
	Segments []string
}

// Parse splits a problem type. At least three segments are required.
func Parse(typ string) (Descriptor, error) {
	segs := strings.Split(typ, separator)
	if len(segs) < 3 {
		return Descriptor{}, errs.New(errs.CodeFormulationMismatch, "parse problem type", "%q has no family and formulation", typ)
	}
	for _, s := range segs {
		if s == "" {
			return Descriptor{}, errs.New(errs.CodeFormulationMismatch, "parse problem type", "%q has an empty segment", typ)
		}
	}
	return Descriptor{Segments: segs}, nil
}

// Family is the namespace and family, e.g. "bevarmejo::anytown".
func (d Descriptor) Family() string {
	return strings.Join(d.Segments[:2], separator)
}

// Tag is the last segment, e.g. "f1" or "hyd_rel".
func (d Descriptor) Tag() string {
	return d.Segments[len(d.Segments)-1]
}

// Variant is the segment before the tag, or "" when the type has no variant.
func (d Descriptor) Variant() string {
	if len(d.Segments) < 4 {
		return ""
	}
	return d.Segments[len(d.Segments)-2]
}

// WithTag returns the type string with its tag replaced.
func (d Descriptor) WithTag(tag string) string {
	segs := append([]string(nil), d.Segments...)
	segs[len(segs)-1] = tag
	return strings.Join(segs, separator)
}

func (d Descriptor) String() string {
	return strings.Join(d.Segments, separator)
}

// Pair is a decision vector together with the problem that gives it meaning.
type Pair struct {
	DecisionVector []float64
	Problem        model.Problem
}

// Clone returns a deep copy of p.
func (p Pair) Clone() Pair {
	return Pair{
		DecisionVector: append([]float64(nil), p.DecisionVector...),
		Problem:        *p.Problem.Clone(),
	}
}

// Converter rewrites pairs between the formulations of one family.
type Converter interface {
	// Family is the family prefix this converter handles.
	Family() string
	// Convert rewrites p into the formulation tagged target.
	Convert(p Pair, target string) (Pair, error)
}

func integral(v float64, lo, hi int) (int, bool) {
	n := int(v)
	if float64(n) != v || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func floatsOf(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return append([]float64(nil), t...), true
	case []any:
		out := make([]float64, len(t))
		for i := range t {
			f, ok := model.AsFloat(t[i])
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

func anySlice(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}
