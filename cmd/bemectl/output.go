package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"bemekit/internal/model"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table prints tab separated rows aligned in columns.
type table struct {
	w *tabwriter.Writer
}

func (a *app) table(header ...string) *table {
	t := &table{w: tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)}
	if len(header) > 0 {
		t.row(toAny(header)...)
	}
	return t
}

func (t *table) row(cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(t.w, strings.Join(parts, "\t"))
}

func (t *table) flush() error { return t.w.Flush() }

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (a *app) printSummaries(sums []model.ExperimentSummary) error {
	if a.cfg.JSON {
		return a.printJSON(sums)
	}
	t := a.table("EXPERIMENT", "ISLAND", "PROBLEM", "REPORTS", "INDIVIDUALS", "LAST GEN", "FEVALS", "NADIR")
	for _, s := range sums {
		if len(s.Islands) == 0 {
			t.row(s.Name, "-", "-", 0, 0, 0, 0, "-")
		}
		for _, isl := range s.Islands {
			t.row(s.Name, isl.Name, isl.Problem, isl.Reports, isl.Individuals, isl.LastGeneration, isl.FitnessEvaluations, formatVector(isl.Nadir))
		}
	}
	return t.flush()
}
