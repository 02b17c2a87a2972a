package experiment

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
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"bemekit/internal/errs"
	"bemekit/internal/metrics"
	"bemekit/internal/model"
	"bemekit/internal/schema"
)

const DefaultWorkers = 4

// Loader reads experiments through a billy filesystem. The zero value is not
// usable; construct one with NewLoader.
type Loader struct {
	fs       billy.Filesystem
	log      logr.Logger
	metrics  *metrics.Recorder
	hv       HypervolumeEngine
	fallback *model.Problem
	workers  int
}

type Option func(*Loader)

// WithFS replaces the host filesystem. Paths are resolved to absolute paths
// before they reach fs.
func WithFS(fs billy.Filesystem) Option {
	return func(l *Loader) { l.fs = fs }
}

func WithLogger(log logr.Logger) Option {
	return func(l *Loader) { l.log = log }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithHypervolume enables Experiment.Hypervolumes.
func WithHypervolume(engine HypervolumeEngine) Option {
	return func(l *Loader) { l.hv = engine }
}

// WithFallbackProblem supplies the problem of islands whose file records none.
func WithFallbackProblem(p *model.Problem) Option {
	return func(l *Loader) { l.fallback = p.Clone() }
}

// WithWorkers bounds how many island files of one experiment are read at once.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		fs:      osfs.New("/"),
		log:     logr.Discard(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) readFile(op, path string) ([]byte, error) {
	data, err := util.ReadFile(l.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.CodeResourceNotFound, op, path, err)
		}
		return nil, fmt.Errorf("%s %s: %w", op, path, err)
	}
	return data, nil
}

// Load reads an experiment file and every island it references. Either the
// whole experiment loads or an error is returned.
func (l *Loader) Load(ctx context.Context, path string) (*Experiment, error) {
	start := time.Now()
	exp, err := l.load(ctx, path)
	islands := 0
	if exp != nil {
		islands = exp.NumIslands()
	}
	l.metrics.ObserveLoad(time.Since(start), islands, err)
	return exp, err
}

func (l *Loader) load(ctx context.Context, path string) (*Experiment, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve experiment path: %w", err)
	}
	name, err := schema.ExperimentName(path)
	if err != nil {
		return nil, err
	}
	data, err := l.readFile("read experiment", path)
	if err != nil {
		return nil, err
	}
	file, rev, err := schema.DecodeExperiment(path, data)
	if err != nil {
		return nil, err
	}
	folder := schema.ExperimentFolder(path)
	l.log.Info("loading experiment", "name", name, "path", path, "revision", rev.String(), "islands", len(file.Archipelago.Islands))

	refs := file.Archipelago.Islands
	islands := make([]*Island, len(refs))
	index := make(map[string]int, len(refs))
	for i, ref := range refs {
		islName, err := schema.IslandName(ref)
		if err != nil {
			return nil, err
		}
		if prev, dup := index[islName]; dup {
			return nil, errs.New(errs.CodeSchemaMismatch, "load experiment", "islands %q and %q share the name %q", refs[prev], ref, islName).WithPath(path)
		}
		index[islName] = i
		islands[i] = &Island{Name: islName, Path: schema.ResolveIslandPath(folder, ref)}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for _, isl := range islands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return l.loadIsland(isl)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.log.Info("loaded experiment", "name", name, "islands", len(islands))
	return &Experiment{
		name:    name,
		path:    path,
		folder:  folder,
		file:    file,
		islands: islands,
		index:   index,
		hv:      l.hv,
	}, nil
}

func (l *Loader) loadIsland(isl *Island) error {
	data, err := l.readFile("read island", isl.Path)
	if err != nil {
		return err
	}
	decoded, rev, err := schema.DecodeIsland(isl.Path, data, l.fallback)
	if err != nil {
		return err
	}
	isl.Island = decoded
	if err := validateIsland(isl); err != nil {
		return err
	}
	l.log.V(1).Info("loaded island", "name", isl.Name, "path", isl.Path, "revision", rev.String(), "reports", isl.ReportCount())
	return nil
}

// validateIsland checks the load time invariants and sets the report cadence.
func validateIsland(isl *Island) error {
	cadence, ok := isl.GenerationsPerReport()
	if !ok {
		return errs.New(errs.CodeSchemaMismatch, "validate island", "algorithm parameter generations must be a positive integer").WithPath(isl.Path)
	}
	isl.Cadence = cadence

	arity := -1
	for k, g := range isl.Generations {
		if k > 0 && g.FitnessEvaluations < isl.Generations[k-1].FitnessEvaluations {
			return errs.New(errs.CodeInvariantViolation, "validate island",
				"fitness evaluations decrease from %d to %d at report %d", isl.Generations[k-1].FitnessEvaluations, g.FitnessEvaluations, k).WithPath(isl.Path)
		}
		for i, ind := range g.Individuals {
			if arity < 0 {
				arity = len(ind.FitnessVector)
				continue
			}
			if len(ind.FitnessVector) != arity {
				return errs.New(errs.CodeInvariantViolation, "validate island",
					"report %d individual %d has %d objectives, want %d", k, i, len(ind.FitnessVector), arity).WithPath(isl.Path)
			}
		}
	}
	return nil
}

// LoadAll discovers and loads every experiment below dir. A directory holding
// an output subdirectory is an experiment root; any other directory is
// searched recursively. Experiments that fail to load and subdirectories that
// cannot be listed are logged and skipped. When two experiments share a name
// the one found last wins.
func (l *Loader) LoadAll(ctx context.Context, dir string) (map[string]*Experiment, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := l.fs.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.CodeResourceNotFound, "scan experiments", dir, err)
		}
		return nil, fmt.Errorf("scan experiments %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, errs.New(errs.CodeResourceNotFound, "scan experiments", "not a directory").WithPath(dir)
	}

	entries, err := l.readDir(dir)
	if err != nil {
		return nil, err
	}
	found := make(map[string]*Experiment)
	if err := l.scanEntries(ctx, dir, entries, found); err != nil {
		return nil, err
	}
	return found, nil
}

func (l *Loader) readDir(dir string) ([]os.FileInfo, error) {
	entries, err := l.fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// skip logs a scan failure that does not stop the scan.
func (l *Loader) skip(err error, msg, path string) {
	l.log.Error(err, msg, "path", path)
	l.metrics.ScanSkipped()
}

func (l *Loader) scan(ctx context.Context, dir string, found map[string]*Experiment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := l.readDir(dir)
	if err != nil {
		l.skip(err, "skipping directory", dir)
		return nil
	}
	return l.scanEntries(ctx, dir, entries, found)
}

func (l *Loader) scanEntries(ctx context.Context, dir string, entries []os.FileInfo, found map[string]*Experiment) error {
	for _, e := range entries {
		if e.IsDir() && e.Name() == schema.OutputDir {
			return l.loadRoot(ctx, dir, found)
		}
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := l.scan(ctx, filepath.Join(dir, e.Name()), found); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) loadRoot(ctx context.Context, root string, found map[string]*Experiment) error {
	out := filepath.Join(root, schema.OutputDir)
	entries, err := l.readDir(out)
	if err != nil {
		l.skip(err, "skipping experiment root", root)
		return nil
	}
	for _, e := range entries {
		if e.IsDir() || !schema.IsExperimentFile(e.Name()) {
			continue
		}
		path := filepath.Join(out, e.Name())
		exp, err := l.Load(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			l.skip(err, "skipping experiment", path)
			continue
		}
		if prev, dup := found[exp.Name()]; dup {
			l.log.Info("duplicate experiment name, keeping the last one", "name", exp.Name(), "previous", prev.Path(), "path", path)
		}
		found[exp.Name()] = exp
	}
	return nil
}
