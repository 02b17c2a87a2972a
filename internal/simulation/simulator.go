package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-logr/logr"

	"bemekit/internal/errs"
	"bemekit/internal/metrics"
	"bemekit/internal/version"
)

// Simulator evaluates a request and returns its fitness vector.
type Simulator interface {
	Run(ctx context.Context, req Request, flags ...string) ([]float64, error)
}

// InputSaver is implemented by simulators that can export the network input
// files built for a request.
type InputSaver interface {
	SaveInputs(ctx context.Context, req Request, outDir string) ([]string, error)
}

// Runner executes name with args in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// BinaryPath is the simulator executable below a release directory.
const BinaryPath = "cli/beme-sim"

// CommandSimulator runs the beme-sim binary of the release matching the
// request's library version. Requests are written to, and the simulator run
// in, the work dir; fitness files it leaves behind are read and removed.
type CommandSimulator struct {
	buildsDir string
	workDir   string
	fs        billy.Filesystem
	run       Runner
	log       logr.Logger
	metrics   *metrics.Recorder
}

type Option func(*CommandSimulator)

func WithRunner(r Runner) Option {
	return func(s *CommandSimulator) { s.run = r }
}

func WithLogger(log logr.Logger) Option {
	return func(s *CommandSimulator) { s.log = log }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *CommandSimulator) { s.metrics = m }
}

// NewCommandSimulator returns a simulator looking for releases under
// buildsDir and working in workDir (created on first run).
func NewCommandSimulator(buildsDir, workDir string, opts ...Option) *CommandSimulator {
	if abs, err := filepath.Abs(workDir); err == nil {
		workDir = abs
	}
	s := &CommandSimulator{
		buildsDir: buildsDir,
		workDir:   workDir,
		fs:        osfs.New("/"),
		run:       execRunner,
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Binary resolves the simulator executable able to run problems written by
// library version v.
func (s *CommandSimulator) Binary(v string) (string, error) {
	release, err := version.Release(v)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.buildsDir, filepath.FromSlash(release), filepath.FromSlash(BinaryPath)), nil
}

func (s *CommandSimulator) invoke(ctx context.Context, req Request, flags []string) error {
	bin, err := s.Binary(req.BemelibVersion)
	if err != nil {
		return err
	}
	reqPath, err := Write(s.fs, s.workDir, req)
	if err != nil {
		return err
	}
	args := append([]string{reqPath}, flags...)
	s.log.V(1).Info("running simulator", "binary", bin, "args", args)
	out, runErr := s.run(ctx, s.workDir, bin, args...)
	if len(out) > 0 {
		s.log.V(1).Info("simulator output", "id", req.ID, "output", string(out))
	}
	if runErr != nil {
		s.log.Error(runErr, "simulator exited with an error", "id", req.ID, "binary", bin)
	}
	return nil
}

// Run evaluates req. A non-zero exit is only an error if the simulator left
// no fitness file behind.
func (s *CommandSimulator) Run(ctx context.Context, req Request, flags ...string) (fv []float64, err error) {
	defer func() { s.metrics.ObserveSimulation(err) }()

	if err := s.invoke(ctx, req, append(append([]string(nil), flags...), "--savefv")); err != nil {
		return nil, err
	}

	fvPath := filepath.Join(s.workDir, strconv.FormatUint(req.ID, 10)+FitnessExt)
	data, err := util.ReadFile(s.fs, fvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.CodeResourceNotFound, "read fitness", fvPath, err)
		}
		return nil, fmt.Errorf("read fitness %s: %w", fvPath, err)
	}
	if err := json.Unmarshal(data, &fv); err != nil {
		return nil, errs.Wrap(errs.CodeSchemaMismatch, "decode fitness", fvPath, err)
	}
	if err := s.fs.Remove(fvPath); err != nil {
		s.log.Error(err, "cannot remove fitness file", "path", fvPath)
	}
	return fv, nil
}

// SaveInputs runs req with --saveinp and moves the network input files the
// simulator writes for it into outDir, returning their new paths sorted.
func (s *CommandSimulator) SaveInputs(ctx context.Context, req Request, outDir string) (paths []string, err error) {
	defer func() { s.metrics.ObserveSimulation(err) }()

	if err := s.invoke(ctx, req, []string{"--saveinp"}); err != nil {
		return nil, err
	}
	if outDir, err = filepath.Abs(outDir); err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	entries, err := s.fs.ReadDir(s.workDir)
	if err != nil {
		return nil, fmt.Errorf("list work dir %s: %w", s.workDir, err)
	}
	if err := s.fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outDir, err)
	}
	prefix := strconv.FormatUint(req.ID, 10)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !inputFor(name, prefix) {
			continue
		}
		dst := filepath.Join(outDir, name)
		if err := s.fs.Rename(filepath.Join(s.workDir, name), dst); err != nil {
			return nil, fmt.Errorf("move network input %s: %w", name, err)
		}
		paths = append(paths, dst)
	}
	if len(paths) == 0 {
		return nil, errs.New(errs.CodeResourceNotFound, "save inputs", "simulator wrote no network input for id %d", req.ID).WithPath(s.workDir)
	}
	sort.Strings(paths)
	return paths, nil
}

// inputFor reports whether name is a network input written for the request id
// prefix: the id must not run on into further digits, so 7 never claims 71.
func inputFor(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || filepath.Ext(name) != ".inp" || rest == "" {
		return false
	}
	return rest[0] < '0' || rest[0] > '9'
}
