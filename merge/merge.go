// Package merge combines the object graphs of several PDFs into one document
// with a single catalog and page tree.
package merge

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/optimize"
	"github.com/lesonky/invoice-merge-tool/parser"
	"github.com/lesonky/invoice-merge-tool/recovery"
	"github.com/lesonky/invoice-merge-tool/security"
	"github.com/lesonky/invoice-merge-tool/writer"
)

// Config controls a merge. The zero value parses leniently, keeps every
// non-structural object and writes a PDF 1.5 file.
type Config struct {
	Limits security.Limits
	// Strict fails on malformed input instead of recovering.
	Strict bool
	// DedupeStreams folds identical streams across sources.
	DedupeStreams bool
	// Compression Flate-encodes unfiltered streams at this zlib level.
	// Zero leaves them as they are.
	Compression int
	// PruneUnreachable drops objects no longer reachable from the catalog,
	// such as source information dictionaries.
	PruneUnreachable bool
	Version          writer.PDFVersion
	Deterministic    bool
	// OnSource is called before each source is parsed with its index.
	OnSource func(index, total int, path string)
	Tracer   observability.Tracer
}

// Result summarizes a written merge.
type Result struct {
	OutputPath      string
	Sources         int
	Pages           int
	Objects         int
	Bytes           int64
	StreamsCombined int
	// Encrypted lists sources merged without being decrypted.
	Encrypted []string
}

type Merger struct {
	cfg    Config
	log    observability.Logger
	tracer observability.Tracer
}

func New(cfg Config, logger observability.Logger) *Merger {
	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.Version == "" {
		cfg.Version = writer.PDF15
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	return &Merger{cfg: cfg, log: observability.OrNop(logger), tracer: tracer}
}

// Merge parses sources in order, combines them and writes the result to
// output, which is fsynced before Merge returns.
func (m *Merger) Merge(ctx context.Context, sources []string, output string) (*Result, error) {
	if len(sources) == 0 {
		return nil, mergeerr.New(mergeerr.NoFiles, "merge", "", nil)
	}
	ctx, span := m.tracer.StartSpan(ctx, "merge")
	defer span.Finish()
	span.SetTag("sources", len(sources))

	res := &Result{OutputPath: output, Sources: len(sources)}
	acc := newAccumulator(m.log)
	wm := InitialWatermark
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if m.cfg.OnSource != nil {
			m.cfg.OnSource(i, len(sources), src)
		}
		doc, err := m.parse(ctx, src)
		if err != nil {
			span.SetError(err)
			kind := mergeerr.Pdf
			var pe *fs.PathError
			if errors.As(err, &pe) {
				kind = mergeerr.Io
			}
			return nil, mergeerr.New(kind, "parse", src, err)
		}
		if doc.Encrypted && !doc.Decrypted {
			res.Encrypted = append(res.Encrypted, src)
		}
		wm = renumber(doc, wm)
		acc.add(doc, src)
	}

	out, err := acc.finish(string(m.cfg.Version))
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	res.Pages = len(acc.pages)

	stats, err := optimize.New(optimize.Config{
		CombineDuplicateStreams: m.cfg.DedupeStreams,
		CompressStreams:         m.cfg.Compression != 0,
		CompressionLevel:        m.cfg.Compression,
		CleanUnreachable:        m.cfg.PruneUnreachable,
		Logger:                  m.log,
	}).Optimize(ctx, out)
	if err != nil {
		return nil, mergeerr.New(mergeerr.Pdf, "optimize", output, err)
	}
	res.StreamsCombined = stats.StreamsCombined
	out.Compact()
	res.Objects = len(out.Objects)

	start := time.Now()
	w := writer.New(writer.Config{
		Version:       m.cfg.Version,
		Deterministic: m.cfg.Deterministic,
		Logger:        m.log,
	})
	if err := w.WriteFile(ctx, out, output); err != nil {
		span.SetError(err)
		return nil, mergeerr.New(mergeerr.Io, "write", output, err)
	}
	if fi, err := os.Stat(output); err == nil {
		res.Bytes = fi.Size()
	}
	m.log.Info("merged documents",
		observability.String("output", output),
		observability.Int("sources", res.Sources),
		observability.Int("pages", res.Pages),
		observability.Int("objects", res.Objects),
		observability.Duration(observability.MetricWriteTime, time.Since(start)),
	)
	span.SetTag("pages", res.Pages)
	return res, nil
}

func (m *Merger) parse(ctx context.Context, path string) (*raw.Document, error) {
	ctx, span := m.tracer.StartSpan(ctx, "merge.parse")
	defer span.Finish()
	span.SetTag("path", path)

	var rec recovery.Strategy = recovery.NewLenientStrategy(m.log)
	if m.cfg.Strict {
		rec = recovery.NewStrictStrategy()
	}
	p := parser.NewDocumentParser(parser.Config{
		Recovery: rec,
		Limits:   m.cfg.Limits,
		Logger:   m.log.With(observability.String("source", path)),
	})
	start := time.Now()
	doc, err := p.ParseFile(ctx, path)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if doc.Encrypted && !doc.Decrypted {
		// Best effort only: content stays as read and may render as garbage.
		m.log.Debug("encrypted source kept without decryption", observability.String("source", path))
	}
	m.log.Debug("parsed source",
		observability.String("source", path),
		observability.Int(observability.MetricObjectCount, len(doc.Objects)),
		observability.Duration(observability.MetricParseTime, time.Since(start)),
	)
	return doc, nil
}
