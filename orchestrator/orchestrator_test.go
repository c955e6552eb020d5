package orchestrator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lesonky/invoice-merge-tool/filters"
	"github.com/lesonky/invoice-merge-tool/folder"
	"github.com/lesonky/invoice-merge-tool/ir/raw"
	"github.com/lesonky/invoice-merge-tool/mergeerr"
	"github.com/lesonky/invoice-merge-tool/parser"
	"github.com/lesonky/invoice-merge-tool/writer"
)

// writePDF writes an n-page document whose pages carry a content stream
// naming label.
func writePDF(t *testing.T, path, label string, n int) {
	t.Helper()
	doc := raw.NewDocument("1.7")
	kids := raw.NewArray()
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.Ref(2, 0))
	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", kids)
	pages.Set("Count", raw.NumberInt(int64(n)))
	pages.Set("MediaBox", raw.NewArray(raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
	doc.Objects[raw.ObjectRef{Num: 1}] = catalog
	doc.Objects[raw.ObjectRef{Num: 2}] = pages
	for i := 0; i < n; i++ {
		pageNum, contentNum := 3+2*i, 4+2*i
		kids.Append(raw.Ref(pageNum, 0))
		page := raw.Dict()
		page.Set("Type", raw.NameLiteral("Page"))
		page.Set("Parent", raw.Ref(2, 0))
		page.Set("Contents", raw.Ref(contentNum, 0))
		doc.Objects[raw.ObjectRef{Num: pageNum}] = page
		doc.Objects[raw.ObjectRef{Num: contentNum}] = raw.NewStream(raw.Dict(), []byte(fmt.Sprintf("%% %s %d", label, i+1)))
	}
	doc.Trailer.Set("Root", raw.Ref(1, 0))
	require.NoError(t, writer.New(writer.Config{}).WriteFile(context.Background(), doc, path))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 128})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, img, nil))
}

// pageSummary describes each output page: the content label for PDF pages
// and "image WxH" for synthesized ones.
func pageSummary(t *testing.T, path string) []string {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).ParseFile(context.Background(), path)
	require.NoError(t, err)
	roles := doc.Classify()
	var out []string
	for _, ref := range doc.PageOrder(roles) {
		page := doc.Objects[ref].(*raw.DictObj)
		if res, ok := doc.ResolveDict(page.Get("Resources")); ok {
			if xo, ok := doc.ResolveDict(res.Get("XObject")); ok {
				if im, ok := doc.Resolve(xo.Get("Im0")).(*raw.StreamObj); ok {
					w, _ := im.Dict.Int("Width")
					h, _ := im.Dict.Int("Height")
					out = append(out, fmt.Sprintf("image %dx%d", w, h))
					continue
				}
			}
		}
		st, ok := doc.Resolve(page.Get("Contents")).(*raw.StreamObj)
		require.True(t, ok, "page %s has no content", ref)
		out = append(out, string(st.Data))
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recorder) record(e ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) phases() map[Phase]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Phase]int)
	for _, e := range r.events {
		out[e.Phase]++
	}
	return out
}

func fixedClock() time.Time { return time.Date(2026, 3, 4, 9, 7, 0, 0, time.Local) }

func writeTransparentPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))))
}

// firstImagePixels returns the decoded pixel data of the image on the first
// page.
func firstImagePixels(t *testing.T, path string) []byte {
	t.Helper()
	doc, err := parser.NewDocumentParser(parser.Config{}).ParseFile(context.Background(), path)
	require.NoError(t, err)
	pages := doc.PageOrder(doc.Classify())
	require.NotEmpty(t, pages)
	page := doc.Objects[pages[0]].(*raw.DictObj)
	res, ok := doc.ResolveDict(page.Get("Resources"))
	require.True(t, ok)
	xo, ok := doc.ResolveDict(res.Get("XObject"))
	require.True(t, ok)
	im, ok := doc.Resolve(xo.Get("Im0")).(*raw.StreamObj)
	require.True(t, ok)
	data, err := filters.DefaultPipeline(filters.Limits{}).DecodeStream(context.Background(), im)
	require.NoError(t, err)
	return data
}

func TestRunMergesPDFsAndImages(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	writeTransparentPNG(t, filepath.Join(dir, "a.png"), 800, 600)
	writePDF(t, filepath.Join(dir, "b.pdf"), "b", 2)
	writeJPEG(t, filepath.Join(dir, "c.jpg"), 120, 120)

	files, err := folder.Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	rec := &recorder{}
	o := New(WithProgress(rec.record), WithTempDir(scratch), WithClock(fixedClock))
	out, err := o.Run(context.Background(), Request{FolderPath: dir, Files: files, SortMode: SortByName})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Empty(t, out.FailedFiles)
	assert.NotNil(t, out.FailedFiles)
	assert.Nil(t, out.Message)

	canon, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(canon, "merged_invoices_20260304_0907.pdf"), out.OutputPath)

	pages := pageSummary(t, out.OutputPath)
	assert.Equal(t, []string{"image 800x600", "% b 1", "% b 2", "image 120x120"}, pages)

	pix := firstImagePixels(t, out.OutputPath)
	require.Len(t, pix, 800*600*3)
	assert.Equal(t, []byte{255, 255, 255}, pix[:3], "transparent pixels flatten to white")

	phases := rec.phases()
	assert.Equal(t, 3, phases[PhaseEnumerate])
	assert.Equal(t, 3, phases[PhaseConvert])
	assert.Equal(t, 3, phases[PhaseMerge])
	assert.Equal(t, 1, phases[PhaseWrite])
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, ProgressEvent{Current: 3, Total: 3, Phase: PhaseWrite}, last)

	left, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, left, "temp artifacts must be removed")
}

func TestRunPageOrderIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "b.pdf"), "b", 1)
	writePDF(t, filepath.Join(dir, "A.pdf"), "A", 1)
	writePNG(t, filepath.Join(dir, "c.png"), 8, 8)
	files, err := folder.Scan(dir)
	require.NoError(t, err)

	o := New()
	first, err := o.Run(context.Background(), Request{FolderPath: dir, Files: files, OutputFileName: strPtr("one")})
	require.NoError(t, err)
	second, err := o.Run(context.Background(), Request{FolderPath: dir, Files: files, OutputFileName: strPtr("two.PDF")})
	require.NoError(t, err)

	assert.Equal(t, "one.pdf", filepath.Base(first.OutputPath))
	assert.Equal(t, "two.PDF", filepath.Base(second.OutputPath))
	want := []string{"% A 1", "% b 1", "image 8x8"}
	assert.Equal(t, want, pageSummary(t, first.OutputPath))
	assert.Equal(t, want, pageSummary(t, second.OutputPath))
}

func TestRunCustomOrderAndParallelConversion(t *testing.T) {
	dir := t.TempDir()
	var files []folder.Entry
	for i, w := range []int{30, 10, 50, 20, 40} {
		p := filepath.Join(dir, fmt.Sprintf("img%d.png", i))
		writePNG(t, p, w, 10)
		e, err := folder.Stat(p)
		require.NoError(t, err)
		files = append([]folder.Entry{e}, files...)
	}

	rec := &recorder{}
	o := New(WithWorkers(3), WithProgress(rec.record))
	out, err := o.Run(context.Background(), Request{FolderPath: dir, Files: files, SortMode: SortCustom})
	require.NoError(t, err)

	assert.Equal(t, []string{"image 40x10", "image 20x10", "image 50x10", "image 10x10", "image 30x10"},
		pageSummary(t, out.OutputPath))
	assert.Equal(t, 5, rec.phases()[PhaseConvert])
}

func TestRunRecordsFailures(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "a", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0o644))
	files, err := folder.Scan(dir)
	require.NoError(t, err)
	files = append(files, folder.Entry{Path: filepath.Join(dir, "gone.jpg"), Name: "gone.jpg", Ext: "jpg"})

	out, err := New().Run(context.Background(), Request{FolderPath: dir, Files: files})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, []string{"broken.png", "gone.jpg"}, out.FailedFiles)
	require.NotNil(t, out.Message)
	assert.Equal(t, "2 file(s) failed to process", *out.Message)
	assert.Equal(t, []string{"% a 1"}, pageSummary(t, out.OutputPath))
}

func TestRunSymlinkOutsideFolderIsRecorded(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	writePDF(t, filepath.Join(dir, "inside.pdf"), "in", 1)
	writePDF(t, filepath.Join(outside, "secret.pdf"), "secret", 1)
	link := filepath.Join(dir, "link.pdf")
	if err := os.Symlink(filepath.Join(outside, "secret.pdf"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files := []folder.Entry{
		{Path: filepath.Join(dir, "inside.pdf"), Name: "inside.pdf", Ext: "pdf"},
		{Path: link, Name: "link.pdf", Ext: "pdf"},
	}
	out, err := New().Run(context.Background(), Request{FolderPath: dir, Files: files})
	require.NoError(t, err)

	assert.Equal(t, []string{"link.pdf"}, out.FailedFiles)
	assert.Equal(t, []string{"% in 1"}, pageSummary(t, out.OutputPath))
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	notDir := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(notDir, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("x"), 0o644))

	tests := []struct {
		name string
		req  Request
		kind mergeerr.Kind
	}{
		{"missing folder", Request{FolderPath: filepath.Join(dir, "nope")}, mergeerr.InvalidFolder},
		{"not a directory", Request{FolderPath: notDir}, mergeerr.InvalidFolder},
		{"empty folder path", Request{}, mergeerr.InvalidFolder},
		{"no files", Request{FolderPath: dir}, mergeerr.NoFiles},
		{"all failed", Request{FolderPath: dir, Files: []folder.Entry{
			{Path: filepath.Join(dir, "bad.png"), Name: "bad.png", Ext: "png"},
			{Path: notDir, Name: "file.txt", Ext: "txt"},
		}}, mergeerr.NoFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := New().Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.kind, mergeerr.KindOf(err))
		})
	}
	assert.ErrorIs(t, func() error {
		_, err := New().Run(context.Background(), Request{FolderPath: dir})
		return err
	}(), mergeerr.ErrNoFiles)
}

func TestRunRejectsOutputOutsideFolder(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "invoices")
	require.NoError(t, os.Mkdir(dir, 0o755))
	writePDF(t, filepath.Join(dir, "a.pdf"), "a", 1)
	files, err := folder.Scan(dir)
	require.NoError(t, err)

	for _, name := range []string{"../escaped", "nested/out", "../invoices/a"} {
		out, err := New().Run(context.Background(), Request{FolderPath: dir, Files: files, OutputFileName: strPtr(name)})
		require.Error(t, err, name)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, mergeerr.ErrInvalidOutput, name)
	}
	_, err = os.Stat(filepath.Join(parent, "escaped.pdf"))
	assert.True(t, os.IsNotExist(err), "nothing written next to the folder")
}

func TestRunRefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "a", 1)
	writePDF(t, filepath.Join(dir, "b.pdf"), "b", 2)
	before, err := os.ReadFile(filepath.Join(dir, "b.pdf"))
	require.NoError(t, err)
	files, err := folder.Scan(dir)
	require.NoError(t, err)

	_, err = New().Run(context.Background(), Request{FolderPath: dir, Files: files, OutputFileName: strPtr("b")})
	assert.Equal(t, mergeerr.InvalidOutput, mergeerr.KindOf(err))

	after, err := os.ReadFile(filepath.Join(dir, "b.pdf"))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// A name matching a file that is not part of the run is fine.
	out, err := New().Run(context.Background(), Request{FolderPath: dir, Files: files[:1], OutputFileName: strPtr("b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"% a 1"}, pageSummary(t, out.OutputPath))
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "a", 1)
	files, err := folder.Scan(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Run(ctx, Request{FolderPath: dir, Files: files})
	assert.ErrorIs(t, err, context.Canceled)
}

func strPtr(s string) *string { return &s }
