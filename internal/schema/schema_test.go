package schema

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bemekit/internal/errs"
	"bemekit/internal/model"
)

func TestExperimentName(t *testing.T) {
	cases := map[string]string{
		"/runs/a/output/bemeexp__hyd_rel.json":     "hyd_rel",
		"output/bemeexp__my.run.json":              "my.run",
		"/runs/b/output/bemeopt__legacy__exp.json": "legacy",
		"bemeopt__with__parts__exp.json":           "with__parts",
	}
	for in, want := range cases {
		got, err := ExperimentName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"results.json", "bemeexp__.json", "bemeopt__noexp.json"} {
		_, err := ExperimentName(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, errs.ErrSchemaMismatch), in)
	}
}

func TestIsExperimentFile(t *testing.T) {
	assert.True(t, IsExperimentFile("bemeexp__a.json"))
	assert.True(t, IsExperimentFile("bemeopt__a__exp.json"))
	assert.False(t, IsExperimentFile("bemeexp__a.yaml"))
	assert.False(t, IsExperimentFile("bemeisl__a__1.json"))
}

func TestIslandName(t *testing.T) {
	cases := map[string]string{
		"bemeisl__hyd_rel__42.json":   "42",
		"/abs/bemeexp__run__7.json":   "7",
		"bemeopt__legacy__exp_3.json": "exp_3",
	}
	for in, want := range cases {
		got, err := IslandName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := IslandName("island_42.json")
	assert.True(t, errors.Is(err, errs.ErrSchemaMismatch))
	_, err = IslandName("bemeisl__run__.json")
	assert.True(t, errors.Is(err, errs.ErrSchemaMismatch))
}

func TestFolderAndIslandPaths(t *testing.T) {
	assert.Equal(t, "/runs/a", ExperimentFolder("/runs/a/output/bemeexp__x.json"))
	assert.Equal(t, "/runs/a/output/bemeisl__x__1.json", ResolveIslandPath("/runs/a", "bemeisl__x__1.json"))
	assert.Equal(t, "/elsewhere/bemeisl__x__1.json", ResolveIslandPath("/runs/a", "/elsewhere/../elsewhere/bemeisl__x__1.json"))
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		tree map[string]any
		want Revision
	}{
		{"sentence", map[string]any{"Generations": []any{}}, RevSentenceCase},
		{"kebab", map[string]any{"replacement-policy": map[string]any{}}, RevKebabCase},
		{"named", map[string]any{"algorithm": map[string]any{"name": "nsga2"}}, RevNamedContainers},
		{"nested", map[string]any{"problem": map[string]any{"parameters": map[string]any{"wds": map[string]any{}}}}, RevNestedProblem},
		{"aliased", map[string]any{"generations": []any{map[string]any{"fevals": 1}}}, RevAliasedKeys},
		{"canonical", map[string]any{"generations": []any{map[string]any{"fitness_evaluations": 1}}}, RevCanonical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Detect(tc.tree), tc.name)
	}
}

const sentenceCaseIsland = `{
  "Algorithm": {"Type": "pagmo::nsga2", "Parameters": {"Generations": 10}},
  "Island": {"Type": "pagmo::thread_island"},
  "Replacement policy": {"Type": "pagmo::fair_replace"},
  "Selection policy": {"Type": "pagmo::select_best"},
  "UDP": {"Type": "bevarmejo::anytown::mixed::f1", "Parameters": {"AT inp": "anytown.inp", "Tank options": [1, 2]}},
  "Generations": [
    {"Current time": "Thu Aug 22 10:00:00 2024", "Fitness evaluations": 100,
     "Individuals": [{"ID": 18446744073709551615, "DV": [1, 2], "FV": [0.5, 3]}]}
  ]
}`

func TestDecodeSentenceCaseIsland(t *testing.T) {
	isl, rev, err := DecodeIsland("output/bemeisl__run__1.json", []byte(sentenceCaseIsland), nil)
	require.NoError(t, err)
	assert.Equal(t, RevSentenceCase, rev)

	assert.Equal(t, "pagmo::nsga2", isl.Algorithm.Type)
	gpr, ok := isl.GenerationsPerReport()
	require.True(t, ok)
	assert.Equal(t, 10, gpr)
	require.NotNil(t, isl.Problem)
	assert.Equal(t, "bevarmejo::anytown::mixed::f1", isl.Problem.Type)
	assert.Equal(t, "anytown.inp", isl.Problem.Parameters["at_inp"])
	assert.Contains(t, isl.Problem.Parameters, "tank_options")

	require.Len(t, isl.Generations, 1)
	gen := isl.Generations[0]
	assert.True(t, time.Date(2024, time.August, 22, 10, 0, 0, 0, time.UTC).Equal(gen.CurrentTime))
	assert.EqualValues(t, 100, gen.FitnessEvaluations)
	require.Len(t, gen.Individuals, 1)
	assert.Equal(t, uint64(18446744073709551615), gen.Individuals[0].ID)
	assert.Equal(t, []float64{1, 2}, gen.Individuals[0].DecisionVector)
	assert.Equal(t, []float64{0.5, 3}, gen.Individuals[0].FitnessVector)
}

const kebabIsland = `{
  "algorithm": {"name": "NSGA II", "extra-info": "Generations: 5\nVerbosity: 1\nNote: free text"},
  "island": {"name": "thread island"},
  "replacement-policy": {"name": "fair replace"},
  "selection-policy": {"name": "select best"},
  "problem": {"type": "bevarmejo::anytown::rehab::f1",
              "parameters": {"wds": {"inp": "anytown.inp", "udegs": {"existing_pipes": []}}, "available-diameters": [1], "tank-costs": [3]}},
  "generations": [
    {"current-time": "2024-06-01 12:30:00", "fevals": 10,
     "individuals": [{"id": 1, "dv": [0], "fv": [1]}]}
  ]
}`

func TestDecodeKebabCaseIslandRunsWholeChain(t *testing.T) {
	isl, rev, err := DecodeIsland("bemeopt__run__2.json", []byte(kebabIsland), nil)
	require.NoError(t, err)
	assert.Equal(t, RevKebabCase, rev)

	assert.Equal(t, "pagmo::nsga2", isl.Algorithm.Type)
	assert.Equal(t, "pagmo::thread_island", isl.Island.Type)
	assert.Equal(t, "pagmo::fair_replace", isl.ReplacementPolicy.Type)
	assert.Equal(t, "pagmo::select_best", isl.SelectionPolicy.Type)

	gpr, ok := isl.GenerationsPerReport()
	require.True(t, ok)
	assert.Equal(t, 5, gpr)
	assert.Equal(t, "free text", isl.Algorithm.Parameters["note"])

	params := isl.Problem.Parameters
	assert.Equal(t, "anytown.inp", params["at_inp"])
	assert.Contains(t, params, "at_subnets")
	assert.Contains(t, params, "tank_options")
	assert.NotContains(t, params, "wds")
	assert.NotContains(t, params, "available_diameters")

	gen := isl.Generations[0]
	assert.EqualValues(t, 10, gen.FitnessEvaluations)
	assert.True(t, time.Date(2024, time.June, 1, 12, 30, 0, 0, time.UTC).Equal(gen.CurrentTime))
	assert.Equal(t, []float64{0}, gen.Individuals[0].DecisionVector)
}

const nullProblemIsland = `{
  "algorithm": {"type": "pagmo::nsga2", "parameters": {"generations": 1}},
  "problem": null,
  "generations": []
}`

func TestNullProblemNeedsFallback(t *testing.T) {
	_, _, err := DecodeIsland("bemeisl__r__0.json", []byte(nullProblemIsland), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSchemaMismatch))

	fallback := &model.Problem{Type: "bevarmejo::anytown::rehab::f1", Parameters: map[string]any{"at_inp": "a.inp"}}
	isl, _, err := DecodeIsland("bemeisl__r__0.json", []byte(nullProblemIsland), fallback)
	require.NoError(t, err)
	require.NotNil(t, isl.Problem)
	assert.Equal(t, fallback.Type, isl.Problem.Type)

	isl.Problem.Parameters["at_inp"] = "changed"
	assert.Equal(t, "a.inp", fallback.Parameters["at_inp"])
}

func TestBadTimestampIsSchemaMismatch(t *testing.T) {
	data := `{"algorithm": {"type": "x", "parameters": {"generations": 1}}, "problem": {"type": "p"},
	  "generations": [{"current_time": "yesterday", "fitness_evaluations": 1, "individuals": []}]}`
	_, _, err := DecodeIsland("bemeisl__r__0.json", []byte(data), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSchemaMismatch))
	assert.Contains(t, err.Error(), "report 0")
	assert.Contains(t, err.Error(), "bemeisl__r__0.json")
}

func TestMalformedJSONKeepsCause(t *testing.T) {
	_, _, err := DecodeIsland("bemeisl__r__0.json", []byte(`{"generations": [`), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSchemaMismatch))
	var coded *errs.Error
	require.True(t, errors.As(err, &coded))
	assert.Equal(t, "bemeisl__r__0.json", coded.Path)
	assert.NotNil(t, coded.Err)
}

func TestDecodeExperiment(t *testing.T) {
	legacy := `{"archipelago": {"islands": ["bemeisl__r__1.json", "/abs/bemeisl__r__2.json"],
	  "topology": {"name": "unconnected"}}, "bemelib-version": "v24.07.15", "time-start": "x"}`
	exp, rev, err := DecodeExperiment("output/bemeopt__r__exp.json", []byte(legacy))
	require.NoError(t, err)
	assert.Equal(t, RevKebabCase, rev)
	assert.Equal(t, []string{"bemeisl__r__1.json", "/abs/bemeisl__r__2.json"}, exp.Archipelago.Islands)
	assert.Equal(t, "pagmo::unconnected", exp.Archipelago.Topology.Type)
	assert.Equal(t, "v24.07.15", exp.Software.BemelibVersion)
	assert.Equal(t, "x", exp.TimeStart)

	current := `{"Islands": ["bemeisl__r__1.json"], "Software": {"Bemelib version": "v25.02.00"}, "System": {"os": "linux"}}`
	exp, rev, err = DecodeExperiment("output/bemeexp__r.json", []byte(current))
	require.NoError(t, err)
	assert.Equal(t, RevSentenceCase, rev)
	assert.Equal(t, []string{"bemeisl__r__1.json"}, exp.Archipelago.Islands)
	assert.Equal(t, "v25.02.00", exp.Software.BemelibVersion)
	assert.JSONEq(t, `{"os": "linux"}`, string(exp.System))

	bare := `{"archipelago": {"islands": []}}`
	exp, rev, err = DecodeExperiment("output/bemeexp__r.json", []byte(bare))
	require.NoError(t, err)
	assert.Equal(t, RevCanonical, rev)
	assert.Equal(t, model.DefaultSoftwareVersion, exp.Software.BemelibVersion)
}

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2025, time.March, 4, 5, 6, 7, 0, time.UTC)
	for _, in := range []string{
		"2025-03-04T05:06:07Z",
		"Tue Mar  4 05:06:07 2025",
		"2025-03-04 05:06:07",
		"2025-03-04T05:06:07",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}
}
