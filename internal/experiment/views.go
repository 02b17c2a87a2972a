package experiment

import (
	"iter"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bemekit/internal/model"
)

// ReportKey addresses a report by its index.
type ReportKey struct {
	Island string
	Report int
}

// GenerationKey addresses a report by its absolute generation number.
type GenerationKey struct {
	Island     string
	Generation int
}

// IndividualKey addresses an individual through its absolute generation.
type IndividualKey struct {
	Island     string
	Generation int
	Individual int
}

// ReportIndividualKey addresses an individual through its report index.
type ReportIndividualKey struct {
	Island     string
	Report     int
	Individual int
}

// FinalKey addresses an individual of an island's last report.
type FinalKey struct {
	Island     string
	Individual int
}

// Series is an ordered, keyed table. Keys follow island order, then report
// order, then individual order.
type Series[K comparable, V any] struct {
	keys   []K
	values []V
	index  map[K]int
}

func newSeries[K comparable, V any](capacity int) *Series[K, V] {
	return &Series[K, V]{
		keys:   make([]K, 0, capacity),
		values: make([]V, 0, capacity),
		index:  make(map[K]int, capacity),
	}
}

func (s *Series[K, V]) add(k K, v V) {
	s.index[k] = len(s.keys)
	s.keys = append(s.keys, k)
	s.values = append(s.values, v)
}

func (s *Series[K, V]) Len() int { return len(s.keys) }

// Keys returns a copy of the keys in order.
func (s *Series[K, V]) Keys() []K { return append([]K(nil), s.keys...) }

func (s *Series[K, V]) At(i int) (K, V) { return s.keys[i], s.values[i] }

func (s *Series[K, V]) Get(k K) (V, bool) {
	i, ok := s.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return s.values[i], true
}

// All iterates the series in order.
func (s *Series[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range s.keys {
			if !yield(s.keys[i], s.values[i]) {
				return
			}
		}
	}
}

type lazy[T any] struct {
	once sync.Once
	v    T
}

func (l *lazy[T]) get(build func() T) T {
	l.once.Do(func() { l.v = build() })
	return l.v
}

type cache struct {
	generations    lazy[*Series[ReportKey, int]]
	reports        lazy[map[GenerationKey]int]
	timestamps     lazy[*Series[ReportKey, time.Time]]
	fevals         lazy[*Series[ReportKey, int64]]
	fitness        lazy[*Series[IndividualKey, []float64]]
	decisions      lazy[*Series[IndividualKey, []float64]]
	ids            lazy[*Series[ReportIndividualKey, uint64]]
	nadirs         lazy[*Series[string, []float64]]
	finalFitness   lazy[*Series[FinalKey, []float64]]
	finalDecisions lazy[*Series[FinalKey, []float64]]
	summary        lazy[model.ExperimentSummary]
}

func (e *Experiment) reportCount() int {
	n := 0
	for _, isl := range e.islands {
		n += isl.ReportCount()
	}
	return n
}

func (e *Experiment) individualCount() int {
	n := 0
	for _, isl := range e.islands {
		for _, g := range isl.Generations {
			n += len(g.Individuals)
		}
	}
	return n
}

// Generations maps every (island, report index) to its absolute generation.
func (e *Experiment) Generations() *Series[ReportKey, int] {
	return e.views.generations.get(func() *Series[ReportKey, int] {
		s := newSeries[ReportKey, int](e.reportCount())
		for _, isl := range e.islands {
			for k := range isl.Generations {
				s.add(ReportKey{Island: isl.Name, Report: k}, isl.AbsoluteGeneration(k))
			}
		}
		return s
	})
}

// reportIndex inverts Generations.
func (e *Experiment) reportIndex() map[GenerationKey]int {
	return e.views.reports.get(func() map[GenerationKey]int {
		gens := e.Generations()
		out := make(map[GenerationKey]int, gens.Len())
		for k, g := range gens.All() {
			out[GenerationKey{Island: k.Island, Generation: g}] = k.Report
		}
		return out
	})
}

// reportSeries builds a view keyed like Generations from one field of each report.
func reportSeries[V any](e *Experiment, pick func(*model.Generation) V) *Series[ReportKey, V] {
	s := newSeries[ReportKey, V](e.reportCount())
	for _, isl := range e.islands {
		for k := range isl.Generations {
			s.add(ReportKey{Island: isl.Name, Report: k}, pick(&isl.Generations[k]))
		}
	}
	return s
}

// Timestamps maps every (island, report index) to its report time.
func (e *Experiment) Timestamps() *Series[ReportKey, time.Time] {
	return e.views.timestamps.get(func() *Series[ReportKey, time.Time] {
		return reportSeries(e, func(g *model.Generation) time.Time { return g.CurrentTime })
	})
}

// FitnessEvaluations maps every (island, report index) to its evaluation count.
func (e *Experiment) FitnessEvaluations() *Series[ReportKey, int64] {
	return e.views.fevals.get(func() *Series[ReportKey, int64] {
		return reportSeries(e, func(g *model.Generation) int64 { return g.FitnessEvaluations })
	})
}

func (e *Experiment) individualSeries(pick func(model.Individual) []float64) *Series[IndividualKey, []float64] {
	s := newSeries[IndividualKey, []float64](e.individualCount())
	for _, isl := range e.islands {
		for k, g := range isl.Generations {
			gen := isl.AbsoluteGeneration(k)
			for i, ind := range g.Individuals {
				s.add(IndividualKey{Island: isl.Name, Generation: gen, Individual: i}, pick(ind))
			}
		}
	}
	return s
}

// FitnessVectors maps every (island, generation, individual) to its fitness.
func (e *Experiment) FitnessVectors() *Series[IndividualKey, []float64] {
	return e.views.fitness.get(func() *Series[IndividualKey, []float64] {
		return e.individualSeries(func(ind model.Individual) []float64 { return ind.FitnessVector })
	})
}

// DecisionVectors maps every (island, generation, individual) to its decision vector.
func (e *Experiment) DecisionVectors() *Series[IndividualKey, []float64] {
	return e.views.decisions.get(func() *Series[IndividualKey, []float64] {
		return e.individualSeries(func(ind model.Individual) []float64 { return ind.DecisionVector })
	})
}

// IDs maps every (island, report, individual) to the individual id.
func (e *Experiment) IDs() *Series[ReportIndividualKey, uint64] {
	return e.views.ids.get(func() *Series[ReportIndividualKey, uint64] {
		s := newSeries[ReportIndividualKey, uint64](e.individualCount())
		for _, isl := range e.islands {
			for k, g := range isl.Generations {
				for i, ind := range g.Individuals {
					s.add(ReportIndividualKey{Island: isl.Name, Report: k, Individual: i}, ind.ID)
				}
			}
		}
		return s
	})
}

// NadirPoints maps every island that recorded at least one fitness vector to
// the component-wise maximum of all of them.
func (e *Experiment) NadirPoints() *Series[string, []float64] {
	return e.views.nadirs.get(func() *Series[string, []float64] {
		s := newSeries[string, []float64](len(e.islands))
		for _, isl := range e.islands {
			if n := nadir(isl); n != nil {
				s.add(isl.Name, n)
			}
		}
		return s
	})
}

func nadir(isl *Island) []float64 {
	var flat []float64
	rows, arity := 0, 0
	for _, g := range isl.Generations {
		for _, ind := range g.Individuals {
			arity = len(ind.FitnessVector)
			flat = append(flat, ind.FitnessVector...)
			rows++
		}
	}
	if rows == 0 || arity == 0 {
		return nil
	}
	m := mat.NewDense(rows, arity, flat)
	out := make([]float64, arity)
	col := make([]float64, rows)
	for j := range arity {
		mat.Col(col, j, m)
		out[j] = floats.Max(col)
	}
	return out
}

func (e *Experiment) finalSeries(pick func(model.Individual) []float64) *Series[FinalKey, []float64] {
	s := newSeries[FinalKey, []float64](0)
	for _, isl := range e.islands {
		if isl.ReportCount() == 0 {
			continue
		}
		for i, ind := range isl.Generations[isl.ReportCount()-1].Individuals {
			s.add(FinalKey{Island: isl.Name, Individual: i}, pick(ind))
		}
	}
	return s
}

// FinalFitnessVectors holds the fitness vectors of each island's last report.
func (e *Experiment) FinalFitnessVectors() *Series[FinalKey, []float64] {
	return e.views.finalFitness.get(func() *Series[FinalKey, []float64] {
		return e.finalSeries(func(ind model.Individual) []float64 { return ind.FitnessVector })
	})
}

// FinalDecisionVectors holds the decision vectors of each island's last report.
func (e *Experiment) FinalDecisionVectors() *Series[FinalKey, []float64] {
	return e.views.finalDecisions.get(func() *Series[FinalKey, []float64] {
		return e.finalSeries(func(ind model.Individual) []float64 { return ind.DecisionVector })
	})
}

// Summary condenses the experiment into its catalog record.
func (e *Experiment) Summary() model.ExperimentSummary {
	return e.views.summary.get(func() model.ExperimentSummary {
		nadirs := e.NadirPoints()
		sum := model.ExperimentSummary{
			Name:            e.name,
			Path:            e.path,
			Folder:          e.folder,
			SoftwareVersion: e.SoftwareVersion(),
			TimeStart:       e.file.TimeStart,
			TimeEnd:         e.file.TimeEnd,
			Islands:         make([]model.IslandSummary, 0, len(e.islands)),
		}
		for _, isl := range e.islands {
			is := model.IslandSummary{
				Name:      isl.Name,
				Problem:   isl.Problem.Type,
				Algorithm: isl.Algorithm.Type,
				Reports:   isl.ReportCount(),
			}
			for _, g := range isl.Generations {
				is.Individuals += len(g.Individuals)
				for _, ind := range g.Individuals {
					is.Objectives = len(ind.FitnessVector)
				}
			}
			if n := isl.ReportCount(); n > 0 {
				last := isl.Generations[n-1]
				is.Population = len(last.Individuals)
				is.LastGeneration = isl.AbsoluteGeneration(n - 1)
				is.FitnessEvaluations = last.FitnessEvaluations
			}
			if nd, ok := nadirs.Get(isl.Name); ok {
				is.Nadir = append([]float64(nil), nd...)
			}
			sum.Islands = append(sum.Islands, is)
		}
		return sum
	})
}
