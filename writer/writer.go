package writer

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/observability"
)

// PDFVersion is the header version written to the output file.
type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF15 PDFVersion = "1.5"
	PDF17 PDFVersion = "1.7"
)

// Config controls serialization.
type Config struct {
	// Version overrides the header version. Empty keeps doc.Version, or 1.5
	// when the document has none.
	Version PDFVersion
	// Compression is the Flate level applied to streams that carry no
	// /Filter. Zero leaves streams untouched.
	Compression int
	// Deterministic derives /ID from the document content instead of random
	// bytes so repeated writes are byte-identical.
	Deterministic bool
	Logger        observability.Logger
}

// Writer serializes raw documents with a classic cross-reference table.
type Writer struct {
	cfg Config
	log observability.Logger
}

func New(cfg Config) *Writer {
	return &Writer{cfg: cfg, log: observability.OrNop(cfg.Logger)}
}

// WriteFile writes doc to path and fsyncs it before returning. A partially
// written file is removed on failure.
func (w *Writer) WriteFile(ctx context.Context, doc *raw.Document, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(path)
		}
	}()
	if _, err = w.Write(ctx, doc, f); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	return f.Close()
}

// Write serializes doc to out and returns the number of bytes written.
// Objects are emitted in reference order; the trailer keeps /Root and /Info
// from doc.Trailer and gets a fresh /Size and /ID.
func (w *Writer) Write(ctx context.Context, doc *raw.Document, out io.Writer) (int64, error) {
	root, ok := doc.Root()
	if !ok {
		return 0, fmt.Errorf("document has no /Root")
	}
	cw := &countingWriter{w: bufio.NewWriterSize(out, 64*1024)}
	fmt.Fprintf(cw, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", w.version(doc))

	refs := doc.Refs()
	offsets := make(map[int]int64, len(refs))
	gens := make(map[int]int, len(refs))
	for i, ref := range refs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return cw.n, err
			}
		}
		obj, err := w.prepare(doc.Objects[ref])
		if err != nil {
			return cw.n, fmt.Errorf("object %s: %w", ref, err)
		}
		offsets[ref.Num] = cw.n
		gens[ref.Num] = ref.Gen
		writeIndirect(cw, ref, obj)
	}

	size := doc.MaxNum() + 1
	xrefAt := cw.n
	fmt.Fprintf(cw, "xref\n0 %d\n0000000000 65535 f \n", size)
	for num := 1; num < size; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(cw, "%010d %05d n \n", off, gens[num])
		} else {
			cw.WriteString("0000000000 00000 f \n")
		}
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(size)))
	trailer.Set("Root", raw.RefObj{R: root})
	if info, ok := doc.Trailer.Get("Info").(raw.RefObj); ok {
		if _, exists := doc.Objects[info.R]; exists {
			trailer.Set("Info", info)
		}
	}
	id := w.fileID(doc, refs)
	trailer.Set("ID", raw.NewArray(raw.HexStr(id), raw.HexStr(id)))
	cw.WriteString("trailer\n")
	writeObject(cw, trailer)
	fmt.Fprintf(cw, "\nstartxref\n%d\n%%%%EOF\n", xrefAt)

	if cw.err != nil {
		return cw.n, cw.err
	}
	if err := cw.w.Flush(); err != nil {
		return cw.n, err
	}
	w.log.Debug("document serialized",
		observability.Int("objects", len(refs)),
		observability.Int64("bytes", cw.n),
	)
	return cw.n, nil
}

func (w *Writer) version(doc *raw.Document) PDFVersion {
	if w.cfg.Version != "" {
		return w.cfg.Version
	}
	if doc.Version != "" {
		return PDFVersion(doc.Version)
	}
	return PDF15
}

// prepare compresses unfiltered streams when configured and fixes /Length.
func (w *Writer) prepare(obj raw.Object) (raw.Object, error) {
	st, ok := obj.(*raw.StreamObj)
	if !ok {
		return obj, nil
	}
	dict := raw.Dict()
	for _, k := range st.Dictionary().Keys() {
		dict.Set(k, st.Dict.Get(k))
	}
	data := st.Data
	if w.cfg.Compression != 0 && dict.Get("Filter") == nil && len(data) > 0 {
		enc, err := filters.FlateEncode(data, w.cfg.Compression)
		if err != nil {
			return nil, fmt.Errorf("compress stream: %w", err)
		}
		if len(enc) < len(data) {
			data = enc
			dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		}
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(dict, data), nil
}

func (w *Writer) fileID(doc *raw.Document, refs []raw.ObjectRef) []byte {
	if !w.cfg.Deterministic {
		id := make([]byte, 16)
		if _, err := rand.Read(id); err == nil {
			return id
		}
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d", w.version(doc), len(refs))
	for _, ref := range refs {
		fmt.Fprintf(h, "|%s|", ref)
		writeObject(h, doc.Objects[ref])
	}
	return h.Sum(nil)[:16]
}

type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}

func (c *countingWriter) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}
