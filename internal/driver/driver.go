package driver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qtgen/internal/fsys"
	"qtgen/internal/proc"
	"qtgen/internal/report"
	"qtgen/internal/tool"
	"qtgen/internal/trace"
)

// Failure reason codes carried by trace events.
const (
	ReasonLaunchFailure   = "LaunchFailure"
	ReasonGeneratorExit   = "GeneratorExit"
	ReasonTimeout         = "Timeout"
	ReasonCancelled       = "Cancelled"
	ReasonOutputCollision = "OutputCollision"
	ReasonOrphan          = "Orphan"
	ReasonStale           = "Stale"
	ReasonUpToDate        = "UpToDate"
)

// Config is the immutable input of one run.
type Config struct {
	InputDir  string
	OutputDir string
	Tools     tool.Set
	FS        fsys.FS

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Sink receives one trace event per output decision. Optional.
	Sink trace.Sink
}

// Driver performs a single reconciliation of OutputDir against InputDir.
// A Driver is not reusable; build a new one per run.
type Driver struct {
	inputDir  string
	outputDir string
	tools     tool.Set
	fs        fsys.FS
	logger    *zap.Logger
	sink      trace.Sink

	phase Phase
}

// New validates cfg. Any problem is reported as *ConfigurationError and no
// file is touched.
func New(cfg Config) (*Driver, error) {
	if cfg.FS == nil {
		return nil, configErrorf("NoFilesystem", "filesystem is required")
	}
	if strings.TrimSpace(cfg.InputDir) == "" {
		return nil, configErrorf("MissingInputDir", "input directory is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, configErrorf("MissingOutputDir", "output directory is required")
	}
	in := filepath.Clean(cfg.InputDir)
	if !cfg.FS.IsDir(in) {
		return nil, configErrorf("InvalidInputDir", "input directory %s does not exist or is not a directory", in)
	}
	out := filepath.Clean(cfg.OutputDir)
	if cfg.FS.Exists(out) && !cfg.FS.IsDir(out) {
		return nil, configErrorf("InvalidOutputDir", "output path %s exists and is not a directory", out)
	}
	if sameDir(in, absOrEmpty(out)) {
		return nil, configErrorf("OverlappingDirs", "output directory %s must differ from the input directory", out)
	}
	if len(cfg.Tools) == 0 {
		return nil, configErrorf("NoTools", "no generator configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		inputDir:  in,
		outputDir: out,
		tools:     cfg.Tools,
		fs:        cfg.FS,
		logger:    logger,
		sink:      cfg.Sink,
		phase:     PhaseInit,
	}, nil
}

// Run builds a Driver from cfg and runs it.
func Run(ctx context.Context, cfg Config) (*report.Report, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx)
}

// Phase returns the current lifecycle phase.
func (d *Driver) Phase() Phase { return d.phase }

// runState is the mutable bookkeeping of one walk.
type runState struct {
	prior    []string
	expected map[string]struct{}
	owners   map[string]string
	class    *classification

	// incomplete is set when part of the input tree could not be read.
	// Prior outputs are then kept, since their inputs may be in that part.
	incomplete bool
}

// Run performs the reconciliation. A non-nil error means the run was
// aborted before reconciliation and nothing was deleted; per-file failures
// are carried in the report instead.
func (d *Driver) Run(ctx context.Context) (*report.Report, error) {
	if d.phase != PhaseInit {
		return nil, fmt.Errorf("driver already ran (phase %s)", d.phase)
	}
	d.logger = d.logger.With(zap.String("run_id", uuid.New().String()))
	d.logger.Info("reconciliation started",
		zap.String("input_dir", d.inputDir), zap.String("output_dir", d.outputDir))

	if err := d.fs.MkdirAll(d.outputDir); err != nil {
		d.abort()
		return nil, &OutputWriteFailure{Path: d.outputDir, Message: "cannot create output directory", Cause: err}
	}

	if err := d.transition(PhaseInit, PhaseEnumeratePriorOutputs); err != nil {
		return nil, err
	}
	names, err := d.fs.ListFiles(d.outputDir)
	if err != nil {
		d.abort()
		return nil, &OutputWriteFailure{Path: d.outputDir, Message: "cannot list output directory", Cause: err}
	}
	run := &runState{
		prior:    make([]string, 0, len(names)),
		expected: make(map[string]struct{}),
		owners:   make(map[string]string),
		class:    newClassification(d.logger),
	}
	for _, name := range names {
		run.prior = append(run.prior, filepath.Join(d.outputDir, name))
	}
	d.logger.Debug("prior outputs", zap.Int("count", len(run.prior)))

	if err := d.transition(PhaseEnumeratePriorOutputs, PhaseWalking); err != nil {
		return nil, err
	}
	if err := d.walk(ctx, run); err != nil {
		d.abort()
		return nil, err
	}

	if err := d.transition(PhaseWalking, PhaseReconciling); err != nil {
		return nil, err
	}
	d.reconcile(run)

	if err := d.transition(PhaseReconciling, PhaseReported); err != nil {
		return nil, err
	}
	r := run.class.report(d.inputDir, d.outputDir)
	d.logger.Info("reconciliation finished",
		zap.Int("generated", len(r.Generated)),
		zap.Int("updated", len(r.Updated)),
		zap.Int("untouched", len(r.Untouched)),
		zap.Int("deleted", len(r.Deleted)),
		zap.Int("errors", len(r.Errors)))
	return r, nil
}

func (d *Driver) walk(ctx context.Context, run *runState) error {
	skip := d.nestedOutputDir()
	err := d.fs.Walk(d.inputDir, func(dir, name string, isDir bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if isDir {
			if skip != "" && sameDir(filepath.Join(dir, name), skip) {
				d.logger.Debug("skipping output directory inside input tree", zap.String("dir", skip))
				return fsys.SkipDir
			}
			return nil
		}
		d.dispatch(ctx, run, dir, name)
		return nil
	}, func(dir string, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(d.inputDir, dir)
		if relErr != nil {
			rel = dir
		}
		d.logger.Warn("skipping unreadable directory", zap.String("dir", dir), zap.Error(err))
		run.class.fail("", filepath.ToSlash(rel), fmt.Sprintf("cannot read directory: %v", err))
		run.incomplete = true
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("walk cancelled: %w", err)
		}
		return fmt.Errorf("walk %s: %w", d.inputDir, err)
	}
	// A cancellation that landed during the last invocation still aborts,
	// so a half-finished walk never drives orphan deletion.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("walk cancelled: %w", err)
	}
	return nil
}

func (d *Driver) dispatch(ctx context.Context, run *runState, dir, name string) {
	in := filepath.Join(dir, name)
	t := d.tools.Match(in)
	if t == nil {
		return
	}
	out := filepath.Join(d.outputDir, t.OutputName(name))
	log := d.logger.With(zap.String("tool", string(t.Kind)), zap.String("input", in), zap.String("output", out))

	if owner, taken := run.owners[out]; taken {
		msg := fmt.Sprintf("output %s is already produced from %s", out, owner)
		log.Warn("output collision", zap.String("owner", owner))
		run.class.fail("", name, msg)
		d.record(trace.Event{Kind: trace.EventFileFailed, Output: out, Input: in, Tool: string(t.Kind), Reason: ReasonOutputCollision})
		return
	}
	run.owners[out] = in
	run.expected[out] = struct{}{}

	existed := d.fs.IsFile(out)
	if !t.NeedsRegeneration(in, out) {
		log.Debug("output up to date")
		run.class.place(out, outcomeUntouched)
		d.record(trace.Event{Kind: trace.EventFileUntouched, Output: out, Input: in, Tool: string(t.Kind), Reason: ReasonUpToDate})
		return
	}

	if err := t.Invoke(ctx, in, out); err != nil {
		log.Warn("generation failed", zap.Error(err))
		run.class.fail(out, name, err.Error())
		d.record(trace.Event{Kind: trace.EventFileFailed, Output: out, Input: in, Tool: string(t.Kind), Reason: failureReason(err)})
		return
	}

	if existed {
		log.Info("output updated")
		run.class.place(out, outcomeUpdated)
		d.record(trace.Event{Kind: trace.EventFileUpdated, Output: out, Input: in, Tool: string(t.Kind), Reason: ReasonStale})
		return
	}
	log.Info("output generated")
	run.class.place(out, outcomeGenerated)
	d.record(trace.Event{Kind: trace.EventFileGenerated, Output: out, Input: in, Tool: string(t.Kind), Reason: ReasonStale})
}

func (d *Driver) reconcile(run *runState) {
	if run.incomplete {
		d.logger.Warn("input tree was not fully read, keeping prior outputs",
			zap.Int("prior", len(run.prior)))
		return
	}
	for _, p := range run.prior {
		if _, live := run.expected[p]; live {
			continue
		}
		if err := d.fs.Remove(p); err != nil {
			d.logger.Warn("cannot delete orphan output", zap.String("output", p), zap.Error(err))
			d.record(trace.Event{Kind: trace.EventDeleteFailed, Output: p, Reason: ReasonOrphan})
			continue
		}
		d.logger.Info("orphan output deleted", zap.String("output", p))
		run.class.place(p, outcomeDeleted)
		d.record(trace.Event{Kind: trace.EventFileDeleted, Output: p, Reason: ReasonOrphan})
	}
}

func (d *Driver) record(e trace.Event) {
	trace.SafeRecord(d.sink, e)
}

// nestedOutputDir returns the output directory when it lies inside the
// input tree, so the walk does not treat generated files as inputs.
func (d *Driver) nestedOutputDir() string {
	in, err := filepath.Abs(d.inputDir)
	if err != nil {
		return ""
	}
	out, err := filepath.Abs(d.outputDir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(in, out)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return out
}

func absOrEmpty(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	return p
}

func sameDir(path, abs string) bool {
	p, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return p == abs
}

func failureReason(err error) string {
	var launch *proc.LaunchError
	var exit *proc.ExitError
	switch {
	case errors.Is(err, proc.ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.As(err, &launch):
		return ReasonLaunchFailure
	case errors.As(err, &exit):
		return ReasonGeneratorExit
	default:
		return ReasonLaunchFailure
	}
}
