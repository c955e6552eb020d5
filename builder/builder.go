// Package builder synthesizes single-page PDFs that show one raster image
// centred on an A4 page.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"strconv"

	"github.com/lesonky/invoice-merge-tool/coords"
	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/observability"
	"github.com/lesonky/invoice-merge-tool/raster"
	"github.com/lesonky/invoice-merge-tool/writer"
)

// TempPattern names the synthesized files inside the caller's temp dir.
const TempPattern = "mc-image-*.pdf"

// Config controls image page synthesis.
type Config struct {
	// JPEGQuality > 0 embeds pixels as DCTDecode at that quality instead of
	// lossless Flate.
	JPEGQuality int
	// Compression is the zlib level for pixel data; zero means default.
	Compression int
	// Title goes into the document information dictionary.
	Title  string
	Logger observability.Logger
}

const imageName = "Im0"

// ImagePage builds an in-memory document holding r on one page.
func ImagePage(r *raster.Raster, cfg Config) (*raw.Document, error) {
	if r == nil || r.Width <= 0 || r.Height <= 0 || len(r.Pix) != r.Width*r.Height*3 {
		return nil, fmt.Errorf("raster is empty or inconsistent")
	}
	xobj, err := imageXObject(r, cfg)
	if err != nil {
		return nil, err
	}

	place := PlaceImage(r.Width, r.Height)
	m := place.Matrix()
	content := fmt.Sprintf("q %s %s %s %s %s %s cm /%s Do Q\n",
		num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]), imageName)

	doc := raw.NewDocument(string(writer.PDF15))
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.Ref(2, 0))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog

	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray(raw.Ref(3, 0)))
	pages.Set("Count", raw.NumberInt(1))
	doc.Objects[raw.ObjectRef{Num: 2}] = pages

	xobjects := raw.Dict()
	xobjects.Set(imageName, raw.Ref(5, 0))
	resources := raw.Dict()
	resources.Set("XObject", xobjects)
	resources.Set("ProcSet", raw.NewArray(raw.NameLiteral("PDF"), raw.NameLiteral("ImageC")))

	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", raw.Ref(2, 0))
	page.Set("MediaBox", raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0),
		raw.NumberFloat(coords.MMToPt(PageWidthMM)), raw.NumberFloat(coords.MMToPt(PageHeightMM)),
	))
	page.Set("Resources", resources)
	page.Set("Contents", raw.Ref(4, 0))
	doc.Objects[raw.ObjectRef{Num: 3}] = page

	doc.Objects[raw.ObjectRef{Num: 4}] = raw.NewStream(raw.Dict(), []byte(content))
	doc.Objects[raw.ObjectRef{Num: 5}] = xobj

	info := raw.Dict()
	title := cfg.Title
	if title == "" {
		title = "Invoice Image"
	}
	info.Set("Title", raw.Str([]byte(title)))
	info.Set("Producer", raw.Str([]byte("invoice-merge")))
	doc.Objects[raw.ObjectRef{Num: 6}] = info

	doc.Trailer.Set("Root", raw.Ref(1, 0))
	doc.Trailer.Set("Info", raw.Ref(6, 0))
	return doc, nil
}

func imageXObject(r *raster.Raster, cfg Config) (*raw.StreamObj, error) {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("XObject"))
	d.Set("Subtype", raw.NameLiteral("Image"))
	d.Set("Width", raw.NumberInt(int64(r.Width)))
	d.Set("Height", raw.NumberInt(int64(r.Height)))
	d.Set("ColorSpace", raw.NameLiteral("DeviceRGB"))
	d.Set("BitsPerComponent", raw.NumberInt(8))

	var data []byte
	if cfg.JPEGQuality > 0 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, r.Image(), &jpeg.Options{Quality: min(cfg.JPEGQuality, 100)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		data = buf.Bytes()
		d.Set("Filter", raw.NameLiteral("DCTDecode"))
	} else {
		level := cfg.Compression
		if level == 0 {
			level = -1
		}
		enc, err := filters.FlateEncode(r.Pix, level)
		if err != nil {
			return nil, fmt.Errorf("compress pixels: %w", err)
		}
		data = enc
		d.Set("Filter", raw.NameLiteral("FlateDecode"))
	}
	d.Set("Length", raw.NumberInt(int64(len(data))))
	return raw.NewStream(d, data), nil
}

// WriteImagePage synthesizes the page for r and saves it as a new uniquely
// named file inside dir. Encoding failures are mergeerr.Pdf, filesystem
// failures mergeerr.Io.
func WriteImagePage(ctx context.Context, r *raster.Raster, dir string, cfg Config) (string, error) {
	doc, err := ImagePage(r, cfg)
	if err != nil {
		return "", mergeerr.New(mergeerr.Pdf, "synthesize page", "", err)
	}
	f, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return "", mergeerr.New(mergeerr.Io, "create temp file", dir, err)
	}
	path := f.Name()
	if _, err := writer.New(writer.Config{Logger: cfg.Logger}).Write(ctx, doc, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", mergeerr.New(mergeerr.Pdf, "write page", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return "", mergeerr.New(mergeerr.Io, "sync page", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", mergeerr.New(mergeerr.Io, "close page", path, err)
	}
	observability.OrNop(cfg.Logger).Debug("image page written",
		observability.String("path", path),
		observability.Int("width", r.Width),
		observability.Int("height", r.Height),
	)
	return path, nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}
