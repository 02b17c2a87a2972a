package model

import (
	"encoding/json"
	"time"
)

// DefaultSoftwareVersion is assumed for experiment files that do not record
// the library version that produced them.
const DefaultSoftwareVersion = "v25.06.02"

// ExperimentFile is the canonical form of an experiment file once every
// legacy revision has been upgraded. Islands holds the on-disk references;
// the loaded islands live on experiment.Experiment.
type ExperimentFile struct {
	Archipelago ArchipelagoFile `json:"archipelago"`
	Software    Software        `json:"software"`
	TimeStart   string          `json:"time_start,omitempty"`
	TimeEnd     string          `json:"time_end,omitempty"`
	Errors      json.RawMessage `json:"errors,omitempty"`
	System      json.RawMessage `json:"system,omitempty"`
}

type ArchipelagoFile struct {
	Islands  []string  `json:"islands"`
	Topology Container `json:"topology"`
}

type Software struct {
	BemelibVersion string `json:"bemelib_version,omitempty"`
}

// Container is a typed, parameterised pagmo object (algorithm, island,
// replacement and selection policies, topology).
type Container struct {
	Type       string         `json:"type,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Problem describes the user defined problem of an island. Type is a
// namespaced formulation identifier such as "bevarmejo::anytown::mixed::f1";
// the shape of Parameters depends on it.
type Problem struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

// Island is one population/algorithm instance of a run.
type Island struct {
	Algorithm         Container    `json:"algorithm"`
	Island            Container    `json:"island"`
	ReplacementPolicy Container    `json:"replacement_policy"`
	SelectionPolicy   Container    `json:"selection_policy"`
	Problem           *Problem     `json:"problem"`
	Generations       []Generation `json:"generations"`
}

// Generation is one report of an island's population. Its position in
// Island.Generations is the report index, not the absolute generation.
type Generation struct {
	CurrentTime         time.Time    `json:"current_time"`
	FitnessEvaluations  int64        `json:"fitness_evaluations"`
	GradientEvaluations int64        `json:"gradient_evaluations,omitempty"`
	HessianEvaluations  int64        `json:"hessian_evaluations,omitempty"`
	Individuals         []Individual `json:"individuals"`
}

// Individual is one candidate solution. ID is unique within the run only.
type Individual struct {
	ID             uint64    `json:"id"`
	DecisionVector []float64 `json:"decision_vector"`
	FitnessVector  []float64 `json:"fitness_vector"`
}

// GenerationsPerReport reads the reporting cadence from the algorithm
// parameters. It returns false when the parameter is absent or not a
// positive integer.
func (i Island) GenerationsPerReport() (int, bool) {
	v, ok := i.Algorithm.Parameters["generations"]
	if !ok {
		return 0, false
	}
	n, ok := AsInt(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// AsInt converts a decoded JSON scalar to int.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// AsFloat converts a decoded JSON scalar to float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Clone returns a deep copy of p.
func (p *Problem) Clone() *Problem {
	if p == nil {
		return nil
	}
	return &Problem{Type: p.Type, Parameters: CloneMap(p.Parameters)}
}

// CloneMap deep copies a decoded JSON object.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep copies a decoded JSON value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = CloneValue(t[i])
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
