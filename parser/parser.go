package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/recovery"
	"github.com/lesonky/invoice-merge-tool/security"
	"github.com/lesonky/invoice-merge-tool/xref"
)

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery recovery.Strategy
	Limits   security.Limits
	Logger   observability.Logger
	// Password is tried against encrypted documents. The empty string opens
	// documents that only carry an owner password.
	Password string
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	cfg.Limits = cfg.Limits.WithDefaults()
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg}
}

// SetPassword updates the password for decryption when parsing encrypted PDFs.
func (p *DocumentParser) SetPassword(pwd string) {
	p.cfg.Password = pwd
}

// ParseFile reads path fully and parses it.
func (p *DocumentParser) ParseFile(ctx context.Context, path string) (*raw.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(ctx, f)
}

func (p *DocumentParser) Parse(ctx context.Context, r io.Reader) (*raw.Document, error) {
	lr := r
	if max := p.cfg.Limits.MaxFileSize; max > 0 {
		lr = io.LimitReader(r, max+1)
	}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if max := p.cfg.Limits.MaxFileSize; max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("document exceeds %d bytes", max)
	}
	return p.ParseBytes(ctx, data)
}

// ParseBytes loads every object of the document held in data. Encrypted
// documents are opened with the configured password on a best-effort basis:
// when authentication fails the objects are kept as read, Encrypted is set
// and Decrypted stays false.
func (p *DocumentParser) ParseBytes(ctx context.Context, data []byte) (*raw.Document, error) {
	version, ok := detectHeaderVersion(data)
	if !ok {
		return nil, errors.New("missing %PDF header")
	}
	resolver := xref.NewResolver(xref.ResolverConfig{
		MaxXRefDepth: p.cfg.Limits.MaxXRefDepth,
		Recovery:     p.cfg.Recovery,
		Limits:       p.filterLimits(),
	})
	table, err := resolver.Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if table.Repaired {
		p.cfg.Logger.Debug("xref rebuilt by scanning the file")
	}

	l := newLoader(data, table, p.cfg, p.filterLimits())
	doc := raw.NewDocument(version)
	doc.Trailer = raw.MapRefs(table.Trailer, func(r raw.ObjectRef) raw.ObjectRef { return r }).(*raw.DictObj)

	if err := l.loadDirect(ctx, doc); err != nil {
		return nil, err
	}

	encryptRef, encrypt := p.encryptDict(doc)
	if encrypt != nil {
		doc.Encrypted = true
		h, err := security.OpenWithEmptyPassword(encrypt, doc.Trailer)
		if err != nil && p.cfg.Password != "" {
			h, err = security.OpenWithPassword(encrypt, doc.Trailer, p.cfg.Password)
		}
		if err != nil {
			p.cfg.Logger.Debug("document stays encrypted", observability.Error("error", err))
		} else {
			if err := decryptAll(h, doc, encryptRef); err != nil {
				p.cfg.Logger.Debug("decryption failed", observability.Error("error", err))
			} else {
				doc.Decrypted = true
			}
		}
		if encryptRef != nil {
			delete(doc.Objects, *encryptRef)
		}
		doc.Trailer.Delete("Encrypt")
	}

	if err := l.loadCompressed(ctx, doc); err != nil {
		return nil, err
	}
	dropXRefMachinery(doc)
	ensureRoot(doc)
	return doc, nil
}

func (p *DocumentParser) filterLimits() filters.Limits {
	return filters.Limits{
		MaxDecompressedSize: p.cfg.Limits.MaxDecompressedSize,
		MaxDecodeTime:       p.cfg.Limits.MaxDecodeTime,
	}
}

func (p *DocumentParser) encryptDict(doc *raw.Document) (*raw.ObjectRef, *raw.DictObj) {
	switch v := doc.Trailer.Get("Encrypt").(type) {
	case raw.RefObj:
		d, _ := doc.Objects[v.R].(*raw.DictObj)
		if d == nil {
			return &v.R, raw.Dict()
		}
		return &v.R, d
	case *raw.DictObj:
		return nil, v
	}
	return nil, nil
}

// decryptAll replaces the object table only when every object decrypts, so a
// failure leaves the document exactly as read.
func decryptAll(h security.Handler, doc *raw.Document, skip *raw.ObjectRef) error {
	out := make(map[raw.ObjectRef]raw.Object, len(doc.Objects))
	for ref, obj := range doc.Objects {
		if skip != nil && ref == *skip {
			out[ref] = obj
			continue
		}
		dec, err := security.DecryptObject(h, ref, obj)
		if err != nil {
			return fmt.Errorf("decrypt %s: %w", ref, err)
		}
		out[ref] = dec
	}
	doc.Objects = out
	return nil
}

// dropXRefMachinery removes cross-reference and object streams; their
// content now lives in the object table.
func dropXRefMachinery(doc *raw.Document) {
	for ref, obj := range doc.Objects {
		if st, ok := obj.(*raw.StreamObj); ok {
			switch st.Dict.Name("Type") {
			case "XRef", "ObjStm":
				delete(doc.Objects, ref)
			}
		}
	}
}

// ensureRoot points the trailer at a catalog when /Root is missing or
// dangling, which happens with repaired files.
func ensureRoot(doc *raw.Document) {
	if root, ok := doc.Root(); ok {
		if raw.RoleOf(doc.Objects[root]) == raw.RoleCatalog {
			return
		}
	}
	for _, ref := range doc.Refs() {
		if raw.RoleOf(doc.Objects[ref]) == raw.RoleCatalog {
			doc.Trailer.Set("Root", raw.RefObj{R: ref})
			return
		}
	}
}

func detectHeaderVersion(data []byte) (string, bool) {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return "", false
	}
	line := string(head[idx+5:])
	if i := strings.IndexAny(line, "\r\n \t%"); i >= 0 {
		line = line[:i]
	}
	if line == "" {
		line = "1.4"
	}
	return line, true
}
