// Package bemekit is the embedding API over experiment loading, derived views,
// formulation conversion, re-simulation requests and the experiment catalog.
package bemekit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-logr/logr"

	"bemekit/internal/errs"
	"bemekit/internal/experiment"
	"bemekit/internal/formulation"
	"bemekit/internal/metrics"
	"bemekit/internal/model"
	"bemekit/internal/simulation"
	"bemekit/internal/storage"
	"bemekit/internal/version"
)

const (
	defaultDBPath     = "bemekit.db"
	defaultRequestDir = "requests"
)

type Options struct {
	StoreKind   string
	DBPath      string
	BuildsDir   string
	RequestDir  string
	LoadWorkers int
	// FireFlowInput overrides the fire flow network referenced by converted
	// fire_rel problems.
	FireFlowInput string

	Logger  logr.Logger
	Metrics *metrics.Recorder
	// FS defaults to the host filesystem.
	FS billy.Filesystem
	// Simulator defaults to a CommandSimulator over BuildsDir when BuildsDir is set.
	Simulator simulation.Simulator
	// Hypervolume defaults to the planar engine.
	Hypervolume experiment.HypervolumeEngine
	// FallbackProblem is used for islands that record no problem.
	FallbackProblem *model.Problem
}

type Client struct {
	store      storage.Store
	loader     *experiment.Loader
	registry   *formulation.Registry
	sim        simulation.Simulator
	fs         billy.Filesystem
	log        logr.Logger
	metrics    *metrics.Recorder
	requestDir string
	now        func() time.Time
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	requestDir := opts.RequestDir
	if requestDir == "" {
		requestDir = defaultRequestDir
	}
	fs := opts.FS
	if fs == nil {
		fs = osfs.New("/")
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	hv := opts.Hypervolume
	if hv == nil {
		hv = experiment.PlanarHypervolume{}
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	loaderOpts := []experiment.Option{
		experiment.WithFS(fs),
		experiment.WithLogger(log.WithName("loader")),
		experiment.WithMetrics(opts.Metrics),
		experiment.WithHypervolume(hv),
		experiment.WithWorkers(opts.LoadWorkers),
	}
	if opts.FallbackProblem != nil {
		loaderOpts = append(loaderOpts, experiment.WithFallbackProblem(opts.FallbackProblem))
	}

	sysTol := formulation.NewSysTol25()
	if opts.FireFlowInput != "" {
		sysTol = sysTol.WithAuxiliaryInput(opts.FireFlowInput)
	}

	sim := opts.Simulator
	if sim == nil && opts.BuildsDir != "" {
		sim = simulation.NewCommandSimulator(opts.BuildsDir, requestDir,
			simulation.WithLogger(log.WithName("simulator")),
			simulation.WithMetrics(opts.Metrics),
		)
	}

	return &Client{
		store:      store,
		loader:     experiment.NewLoader(loaderOpts...),
		registry:   formulation.NewRegistry(formulation.WithConverter(sysTol), formulation.WithMetrics(opts.Metrics)),
		sim:        sim,
		fs:         fs,
		log:        log,
		metrics:    opts.Metrics,
		requestDir: requestDir,
		now:        time.Now,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Init prepares the catalog store.
func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Metrics() *metrics.Recorder { return c.metrics }

// Load reads one experiment file.
func (c *Client) Load(ctx context.Context, path string) (*experiment.Experiment, error) {
	return c.loader.Load(ctx, path)
}

// LoadAll discovers every experiment below dir.
func (c *Client) LoadAll(ctx context.Context, dir string) (map[string]*experiment.Experiment, error) {
	return c.loader.LoadAll(ctx, dir)
}

// Open loads path as a single experiment file or, for a directory, every
// experiment below it, sorted by name.
func (c *Client) Open(ctx context.Context, path string) ([]*experiment.Experiment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := c.fs.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.CodeResourceNotFound, "open", abs, err)
		}
		return nil, fmt.Errorf("open %s: %w", abs, err)
	}
	if !info.IsDir() {
		exp, err := c.Load(ctx, abs)
		if err != nil {
			return nil, err
		}
		return []*experiment.Experiment{exp}, nil
	}
	found, err := c.LoadAll(ctx, abs)
	if err != nil {
		return nil, err
	}
	out := make([]*experiment.Experiment, 0, len(found))
	for _, exp := range found {
		out = append(out, exp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// Release resolves a software version to the simulator release that runs it.
func (c *Client) Release(v string) (string, error) {
	return version.Release(v)
}

// Index loads path (see Open) and records every experiment in the catalog.
func (c *Client) Index(ctx context.Context, path string) ([]model.ExperimentSummary, error) {
	exps, err := c.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExperimentSummary, 0, len(exps))
	for _, exp := range exps {
		sum := exp.Summary()
		sum.IndexedAt = c.now().UTC()
		if err := c.store.SaveExperiment(ctx, sum); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", sum.Name, err)
		}
		c.log.V(1).Info("indexed experiment", "name", sum.Name, "islands", len(sum.Islands))
		out = append(out, sum)
	}
	return out, nil
}

func (c *Client) Catalog(ctx context.Context) ([]model.ExperimentSummary, error) {
	return c.store.ListExperiments(ctx)
}

// CatalogEntry returns the summary recorded under name, or NotFound.
func (c *Client) CatalogEntry(ctx context.Context, name string) (model.ExperimentSummary, error) {
	sum, ok, err := c.store.GetExperiment(ctx, name)
	if err != nil {
		return model.ExperimentSummary{}, err
	}
	if !ok {
		return model.ExperimentSummary{}, errs.New(errs.CodeNotFound, "catalog", "no experiment named %q", name)
	}
	return sum, nil
}

// Forget removes name from the catalog, failing with NotFound if it is absent.
func (c *Client) Forget(ctx context.Context, name string) error {
	if _, err := c.CatalogEntry(ctx, name); err != nil {
		return err
	}
	return c.store.DeleteExperiment(ctx, name)
}

// IndividualRef addresses one individual of a loaded experiment.
type IndividualRef struct {
	Island     string
	Generation experiment.GenerationRef
	Index      int
}

// WriteRequests writes one re-simulation request per ref into outDir
// (RequestDir when empty) and returns the written paths in ref order.
func (c *Client) WriteRequests(exp *experiment.Experiment, refs []IndividualRef, outDir string) ([]string, error) {
	if outDir == "" {
		outDir = c.requestDir
	}
	dir, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve request dir: %w", err)
	}
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		req, err := exp.SimulationRequest(ref.Island, ref.Index, ref.Generation)
		if err != nil {
			return nil, err
		}
		path, err := simulation.Write(c.fs, dir, req)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadRequest reads a request file.
func (c *Client) ReadRequest(path string) (simulation.Request, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return simulation.Request{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	return simulation.Read(c.fs, abs)
}

// Convert rewrites a request into the formulation tagged target.
func (c *Client) Convert(req simulation.Request, target string) (simulation.Request, error) {
	return c.registry.ConvertRequest(req, target)
}

// ConvertFile converts the request at path and writes the result into outDir
// (RequestDir when empty).
func (c *Client) ConvertFile(path, target, outDir string) (string, error) {
	req, err := c.ReadRequest(path)
	if err != nil {
		return "", err
	}
	conv, err := c.Convert(req, target)
	if err != nil {
		return "", err
	}
	if outDir == "" {
		outDir = c.requestDir
	}
	dir, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("resolve request dir: %w", err)
	}
	return simulation.Write(c.fs, dir, conv)
}

// Simulate evaluates req with the configured simulator.
func (c *Client) Simulate(ctx context.Context, req simulation.Request, flags ...string) ([]float64, error) {
	if c.sim == nil {
		return nil, errs.New(errs.CodeCapabilityUnavailable, "simulate", "no simulator configured; set a builds directory")
	}
	return c.sim.Run(ctx, req, flags...)
}

// SaveInputs exports the network input files of req into outDir.
func (c *Client) SaveInputs(ctx context.Context, req simulation.Request, outDir string) ([]string, error) {
	saver, ok := c.sim.(simulation.InputSaver)
	if !ok {
		return nil, errs.New(errs.CodeCapabilityUnavailable, "save inputs", "the configured simulator cannot export network inputs")
	}
	return saver.SaveInputs(ctx, req, outDir)
}
