package bemekit

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bemekit/internal/errs"
	"bemekit/internal/experiment"
	"bemekit/internal/metrics"
	"bemekit/internal/simulation"
)

func writeJSON(t *testing.T, fs billy.Filesystem, path string, doc any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, path, data, 0o644))
}

// anytownF1 is a rehab f1 vector duplicating pipe 0 with alternative k.
func anytownF1(k float64) []float64 {
	dv := make([]float64, 2*35+6+4)
	dv[0], dv[1] = 2, k
	return dv
}

func writeAnytownRun(t *testing.T, fs billy.Filesystem, root, name string) string {
	t.Helper()
	pipes := make([]any, 35)
	for i := range pipes {
		pipes[i] = i + 1
	}
	island := map[string]any{
		"algorithm": map[string]any{"type": "pagmo::nsga2", "parameters": map[string]any{"generations": 50}},
		"problem": map[string]any{
			"type": "bevarmejo::anytown::rehab::f1",
			"parameters": map[string]any{
				"at_inp":     "anytown.inp",
				"at_subnets": map[string]any{"existing_pipes": pipes},
			},
		},
		"generations": []any{
			map[string]any{
				"current_time":        "2024-08-22T10:00:00Z",
				"fitness_evaluations": 10,
				"individuals": []any{
					map[string]any{"id": 7, "decision_vector": anytownF1(3), "fitness_vector": []float64{1.5e6, 0.2}},
					map[string]any{"id": 8, "decision_vector": anytownF1(1), "fitness_vector": []float64{1.1e6, 0.4}},
				},
			},
			map[string]any{
				"current_time":        "2024-08-22T11:00:00Z",
				"fitness_evaluations": 20,
				"individuals": []any{
					map[string]any{"id": 9, "decision_vector": anytownF1(4), "fitness_vector": []float64{1.2e6, 0.1}},
				},
			},
		},
	}
	out := filepath.Join(root, "output")
	ref := "bemeisl__" + name + "__0.json"
	writeJSON(t, fs, filepath.Join(out, ref), island)
	path := filepath.Join(out, "bemeexp__"+name+".json")
	writeJSON(t, fs, path, map[string]any{
		"archipelago": map[string]any{"islands": []string{ref}},
		"software":    map[string]any{"bemelib_version": "v24.07.15"},
	})
	return path
}

func newTestClient(t *testing.T, fs billy.Filesystem, opts Options) *Client {
	t.Helper()
	opts.StoreKind = "memory"
	opts.FS = fs
	client, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, client.Init(context.Background()))
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientOpenFileAndDirectory(t *testing.T) {
	fs := memfs.New()
	path := writeAnytownRun(t, fs, "/runs/group/beta", "beta")
	writeAnytownRun(t, fs, "/runs/alpha", "alpha")
	client := newTestClient(t, fs, Options{})

	exps, err := client.Open(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, "beta", exps[0].Name())

	exps, err = client.Open(context.Background(), "/runs")
	require.NoError(t, err)
	require.Len(t, exps, 2)
	assert.Equal(t, "alpha", exps[0].Name())
	assert.Equal(t, "beta", exps[1].Name())

	_, err = client.Open(context.Background(), "/nowhere")
	assert.ErrorIs(t, err, errs.ErrResourceNotFound)
}

func TestClientCatalog(t *testing.T) {
	fs := memfs.New()
	writeAnytownRun(t, fs, "/runs/alpha", "alpha")
	writeAnytownRun(t, fs, "/runs/beta", "beta")
	client := newTestClient(t, fs, Options{})
	indexedAt := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	client.now = func() time.Time { return indexedAt }
	ctx := context.Background()

	sums, err := client.Index(ctx, "/runs")
	require.NoError(t, err)
	require.Len(t, sums, 2)

	entry, err := client.CatalogEntry(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, indexedAt.Equal(entry.IndexedAt))
	require.Len(t, entry.Islands, 1)
	isl := entry.Islands[0]
	assert.Equal(t, 2, isl.Reports)
	assert.Equal(t, 3, isl.Individuals)
	assert.Equal(t, 50, isl.LastGeneration)
	assert.Equal(t, []float64{1.5e6, 0.4}, isl.Nadir)

	require.NoError(t, client.Forget(ctx, "alpha"))
	_, err = client.CatalogEntry(ctx, "alpha")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, client.Forget(ctx, "alpha"), errs.ErrNotFound)

	list, err := client.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "beta", list[0].Name)
}

func TestClientWriteAndConvertRequests(t *testing.T) {
	fs := memfs.New()
	path := writeAnytownRun(t, fs, "/runs/alpha", "alpha")
	rec := metrics.NewRecorder()
	client := newTestClient(t, fs, Options{RequestDir: "/requests", Metrics: rec})
	ctx := context.Background()

	exp, err := client.Load(ctx, path)
	require.NoError(t, err)

	paths, err := client.WriteRequests(exp, []IndividualRef{
		{Island: "0", Generation: experiment.ByReport(0), Index: 0},
		{Island: "0", Generation: experiment.ByGeneration(50), Index: 0},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/requests/bemesim__7.json", "/requests/bemesim__9.json"}, paths)

	req, err := client.ReadRequest(paths[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(7), req.ID)
	assert.Equal(t, []string{"/runs/alpha"}, req.LookupPaths)

	converted, err := client.ConvertFile(paths[0], "f2", "/converted")
	require.NoError(t, err)
	assert.Equal(t, "/converted/bemesim__7.json", converted)

	out, err := client.ReadRequest(converted)
	require.NoError(t, err)
	assert.Equal(t, "bevarmejo::anytown::rehab::f2", out.Problem.Type)
	require.Len(t, out.DecisionVector, 35+6+4)
	assert.Equal(t, 5.0, out.DecisionVector[0])

	_, err = client.ConvertFile(paths[0], "f6", "/converted")
	assert.ErrorIs(t, err, errs.ErrFormulationMismatch)

	_, err = client.WriteRequests(exp, []IndividualRef{{Island: "0", Generation: experiment.ByGeneration(7)}}, "")
	assert.ErrorIs(t, err, errs.ErrIndexOutOfRange)
}

func TestClientRelease(t *testing.T) {
	client := newTestClient(t, memfs.New(), Options{})
	a, err := client.Release("v24.07.15")
	require.NoError(t, err)
	b, err := client.Release("240715")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = client.Release("220101")
	assert.ErrorIs(t, err, errs.ErrVersionIncompatible)
}

type stubSimulator struct {
	got simulation.Request
}

func (s *stubSimulator) Run(_ context.Context, req simulation.Request, _ ...string) ([]float64, error) {
	s.got = req
	if req.ID == 0 {
		return nil, errors.New("no id")
	}
	return []float64{1, 2}, nil
}

func TestClientSimulate(t *testing.T) {
	bare := newTestClient(t, memfs.New(), Options{})
	_, err := bare.Simulate(context.Background(), simulation.Request{ID: 1})
	assert.ErrorIs(t, err, errs.ErrCapabilityUnavailable)

	stub := &stubSimulator{}
	client := newTestClient(t, memfs.New(), Options{Simulator: stub})
	fv, err := client.Simulate(context.Background(), simulation.Request{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, fv)
	assert.Equal(t, uint64(3), stub.got.ID)
}

type savingSimulator struct {
	stubSimulator
}

func (s *savingSimulator) SaveInputs(_ context.Context, req simulation.Request, outDir string) ([]string, error) {
	s.got = req
	return []string{filepath.Join(outDir, "3.inp")}, nil
}

func TestClientSaveInputs(t *testing.T) {
	plain := newTestClient(t, memfs.New(), Options{Simulator: &stubSimulator{}})
	_, err := plain.SaveInputs(context.Background(), simulation.Request{ID: 3}, "/inputs")
	assert.ErrorIs(t, err, errs.ErrCapabilityUnavailable)

	saver := &savingSimulator{}
	client := newTestClient(t, memfs.New(), Options{Simulator: saver})
	paths, err := client.SaveInputs(context.Background(), simulation.Request{ID: 3}, "/inputs")
	require.NoError(t, err)
	assert.Equal(t, []string{"/inputs/3.inp"}, paths)
	assert.Equal(t, uint64(3), saver.got.ID)
}
