// Package orchestrator runs one merge request end to end: it orders and
// checks the requested files, turns images into single-page PDFs, merges the
// result into the source folder and reports per-file failures.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lesonky/invoice-merge-tool/builder"
	"github.com/lesonky/invoice-merge-tool/folder"
	"github.com/lesonky/invoice-merge-tool/merge"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/raster"
)

// Config holds the run settings. The zero value converts sequentially and
// merges with merge defaults.
type Config struct {
	// Workers > 1 converts images concurrently with at most that many in
	// flight. Output order is unaffected.
	Workers int
	Merge   merge.Config
	Builder builder.Config
	// TempDir is the parent of the per-run scratch directory; empty means
	// os.TempDir.
	TempDir  string
	Logger   observability.Logger
	Progress ProgressFunc
	Reporter *ProgressReporter
	// Now is used for the default output name.
	Now func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Config)

func WithWorkers(n int) Option { return func(c *Config) { c.Workers = n } }
func WithMergeConfig(m merge.Config) Option { return func(c *Config) { c.Merge = m } }
func WithBuilderConfig(b builder.Config) Option {
	return func(c *Config) { c.Builder = b }
}
func WithTempDir(dir string) Option { return func(c *Config) { c.TempDir = dir } }
func WithLogger(l observability.Logger) Option { return func(c *Config) { c.Logger = l } }
func WithProgress(fn ProgressFunc) Option { return func(c *Config) { c.Progress = fn } }
func WithReporter(r *ProgressReporter) Option { return func(c *Config) { c.Reporter = r } }
func WithClock(now func() time.Time) Option { return func(c *Config) { c.Now = now } }
func WithConfig(cfg Config) Option { return func(c *Config) { *c = cfg } }

type Orchestrator struct {
	cfg Config
	log observability.Logger
}

func New(opts ...Option) *Orchestrator {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// slot is the per-file state of a run, indexed in processing order.
type slot struct {
	entry  folder.Entry
	path   string // canonical path once resolved
	source string // PDF handed to the merger
	failed bool
}

// Run executes req. Per-file problems are recorded in Outcome.FailedFiles;
// the returned error is reserved for conditions that end the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	runID := uuid.NewString()
	log := o.log.With(observability.String("run_id", runID))
	start := time.Now()

	root, err := canonicalFolder(req.FolderPath)
	if err != nil {
		return nil, err
	}

	files := append([]folder.Entry(nil), req.Files...)
	sortEntries(files, req.SortMode)
	total := len(files)
	if total == 0 {
		return nil, mergeerr.New(mergeerr.NoFiles, "run", req.FolderPath, nil)
	}
	output, err := outputPath(root, OutputName(req.OutputFileName, o.cfg.Now()))
	if err != nil {
		return nil, err
	}
	log.Info("merge run started",
		observability.String("folder", root),
		observability.Int("files", total),
		observability.String("sort", string(req.SortMode)),
	)

	scope, err := newTempScope(o.cfg.TempDir, log)
	if err != nil {
		return nil, mergeerr.New(mergeerr.Io, "create temp dir", o.cfg.TempDir, err)
	}
	defer scope.Close()

	slots := make([]slot, total)
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o.emit(ProgressEvent{Current: i, Total: total, Phase: PhaseEnumerate})
		slots[i] = o.resolve(log, root, f)
	}
	if err := checkNotInput(output, slots); err != nil {
		return nil, err
	}

	if err := o.convertAll(ctx, log, scope, slots); err != nil {
		return nil, err
	}

	var (
		sources []string
		failed  []string
	)
	for _, s := range slots {
		if s.failed {
			failed = append(failed, s.entry.Name)
			continue
		}
		sources = append(sources, s.source)
	}
	if failed == nil {
		failed = []string{}
	}
	if len(sources) == 0 {
		log.Warn("no file could be converted", observability.Strings("failed", failed))
		return nil, mergeerr.New(mergeerr.NoFiles, "run", root, nil)
	}

	mcfg := o.cfg.Merge
	onSource := mcfg.OnSource
	mcfg.OnSource = func(index, n int, path string) {
		o.emit(ProgressEvent{Current: index, Total: n, Phase: PhaseMerge})
		if onSource != nil {
			onSource(index, n, path)
		}
	}
	res, err := merge.New(mcfg, log).Merge(ctx, sources, output)
	if err != nil {
		return nil, err
	}
	o.emit(ProgressEvent{Current: total, Total: total, Phase: PhaseWrite})

	log.Info("merge run finished",
		observability.String("output", res.OutputPath),
		observability.Int("pages", res.Pages),
		observability.Int("failed", len(failed)),
		observability.Duration("elapsed", time.Since(start)),
	)
	return &Outcome{
		Success:     len(failed) < total,
		OutputPath:  res.OutputPath,
		FailedFiles: failed,
		Message:     failureMessage(len(failed)),
	}, nil
}

func (o *Orchestrator) emit(e ProgressEvent) {
	if o.cfg.Progress != nil {
		o.cfg.Progress(e)
	}
	if o.cfg.Reporter != nil {
		o.cfg.Reporter.Emit(e)
	}
}

// canonicalFolder checks that dir is an existing directory and returns it
// absolute with symlinks resolved.
func canonicalFolder(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", mergeerr.New(mergeerr.InvalidFolder, "run", dir, nil)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return "", mergeerr.New(mergeerr.InvalidFolder, "run", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", mergeerr.New(mergeerr.InvalidFolder, "run", dir, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", mergeerr.New(mergeerr.InvalidFolder, "run", dir, err)
	}
	return root, nil
}

// outputPath places name directly inside root.
func outputPath(root, name string) (string, error) {
	if err := checkOutputName(name); err != nil {
		return "", mergeerr.New(mergeerr.InvalidOutput, "run", name, err)
	}
	p := filepath.Join(root, name)
	if filepath.Dir(p) != root {
		return "", mergeerr.New(mergeerr.InvalidOutput, "run", name, errOutputPath)
	}
	return p, nil
}

// checkNotInput refuses an output path that is, or links to, one of the
// resolved inputs.
func checkNotInput(output string, slots []slot) error {
	targets := []string{output}
	if t, err := filepath.EvalSymlinks(output); err == nil && t != output {
		targets = append(targets, t)
	}
	for _, s := range slots {
		if s.failed {
			continue
		}
		for _, t := range targets {
			if s.path == t {
				return mergeerr.New(mergeerr.InvalidOutput, "run", output, errOutputOverwrite)
			}
		}
	}
	return nil
}

// resolve checks that f exists and lives inside root once symlinks are
// resolved. Relative paths are taken relative to root.
func (o *Orchestrator) resolve(log observability.Logger, root string, f folder.Entry) slot {
	s := slot{entry: f}
	if s.entry.Name == "" {
		s.entry.Name = filepath.Base(f.Path)
	}
	if s.entry.Ext == "" {
		s.entry.Ext = folder.Ext(f.Path)
	}
	fail := func(reason string, err error) slot {
		fields := []observability.Field{
			observability.String("file", s.entry.Name),
			observability.String("reason", reason),
		}
		if err != nil {
			fields = append(fields, observability.Error("error", err))
		}
		log.Warn("file skipped", fields...)
		s.failed = true
		return s
	}

	path := f.Path
	if path == "" {
		return fail("empty path", nil)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if _, err := os.Stat(path); err != nil {
		return fail("not found", err)
	}
	canon, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fail("resolve", err)
	}
	if !within(root, canon) {
		return fail("outside folder", nil)
	}
	if !s.entry.IsPDF() && !s.entry.IsImage() {
		return fail("unsupported extension", nil)
	}
	s.path = canon
	return s
}

// within reports whether p is strictly below root.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// convertAll fills in slot sources. PDFs pass through; images are decoded
// and written to scope as single-page documents.
func (o *Orchestrator) convertAll(ctx context.Context, log observability.Logger, scope *tempScope, slots []slot) error {
	total := len(slots)
	var done atomic.Int64
	convert := func(ctx context.Context, s *slot) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.failed {
			o.convert(ctx, log, scope, s)
		}
		o.emit(ProgressEvent{Current: int(done.Add(1)), Total: total, Phase: PhaseConvert})
		return nil
	}

	if o.cfg.Workers <= 1 {
		for i := range slots {
			if err := convert(ctx, &slots[i]); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i := range slots {
		s := &slots[i]
		g.Go(func() error { return convert(gctx, s) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (o *Orchestrator) convert(ctx context.Context, log observability.Logger, scope *tempScope, s *slot) {
	if s.entry.IsPDF() {
		s.source = s.path
		return
	}
	start := time.Now()
	r, err := raster.Decode(s.path, s.entry.Ext)
	if err != nil {
		o.recordFailure(log, s, "decode", mergeerr.New(mergeerr.Decode, "decode", s.path, err))
		return
	}
	page, err := builder.WriteImagePage(ctx, r, scope.dir, o.builderConfig(log))
	if err != nil {
		o.recordFailure(log, s, "convert", err)
		return
	}
	log.Debug("image converted",
		observability.String("file", s.entry.Name),
		observability.String("format", string(r.Source)),
		observability.Duration(observability.MetricConvertTime, time.Since(start)),
	)
	s.source = page
}

func (o *Orchestrator) builderConfig(log observability.Logger) builder.Config {
	cfg := o.cfg.Builder
	if cfg.Logger == nil {
		cfg.Logger = log
	}
	return cfg
}

func (o *Orchestrator) recordFailure(log observability.Logger, s *slot, reason string, err error) {
	var de *raster.DecodeError
	fields := []observability.Field{
		observability.String("file", s.entry.Name),
		observability.String("reason", reason),
		observability.Error("error", err),
	}
	if errors.As(err, &de) && de.Format != "" {
		fields = append(fields, observability.String("format", string(de.Format)))
	}
	log.Warn("file skipped", fields...)
	s.failed = true
}
