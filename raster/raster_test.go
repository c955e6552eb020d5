package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestBlendOpaqueIsIdentity(t *testing.T) {
	for c := 0; c < 256; c++ {
		if got := Blend(byte(c), 255); got != byte(c) {
			t.Fatalf("Blend(%d, 255) = %d", c, got)
		}
	}
}

func TestBlendTransparentIsWhite(t *testing.T) {
	for c := 0; c < 256; c++ {
		if got := Blend(byte(c), 0); got != 255 {
			t.Fatalf("Blend(%d, 0) = %d", c, got)
		}
	}
}

func TestBlendHalfAlpha(t *testing.T) {
	// 0*128/255 + 255*(127/255) = 127
	if got := Blend(0, 128); got != 127 {
		t.Fatalf("Blend(0, 128) = %d", got)
	}
	if got := Blend(200, 128); got != 227 {
		t.Fatalf("Blend(200, 128) = %d", got)
	}
}

func TestRepackDropsPadding(t *testing.T) {
	const w, h, ch, stride = 3, 2, 3, 12
	data := make([]byte, stride*h)
	for row := 0; row < h; row++ {
		for i := 0; i < w*ch; i++ {
			data[row*stride+i] = byte(row*100 + i)
		}
		for i := w * ch; i < stride; i++ {
			data[row*stride+i] = 0xEE
		}
	}
	out, err := Repack(data, w, h, stride, ch)
	if err != nil {
		t.Fatalf("repack: %v", err)
	}
	if len(out) != w*h*ch {
		t.Fatalf("len %d, want %d", len(out), w*h*ch)
	}
	if bytes.IndexByte(out, 0xEE) >= 0 {
		t.Fatalf("padding leaked into packed buffer: %v", out)
	}
	if out[w*ch] != 100 {
		t.Fatalf("second row misaligned: %v", out)
	}
}

func TestRepackLengthIndependentOfStride(t *testing.T) {
	for _, stride := range []int{12, 13, 16, 64} {
		out, err := Repack(make([]byte, stride*5), 4, 5, stride, 3)
		if err != nil {
			t.Fatalf("stride %d: %v", stride, err)
		}
		if len(out) != 4*5*3 {
			t.Fatalf("stride %d: len %d", stride, len(out))
		}
	}
}

func TestRepackStrideTooSmall(t *testing.T) {
	_, err := Repack(make([]byte, 100), 10, 2, 20, 3)
	if !errors.Is(err, ErrStrideTooSmall) {
		t.Fatalf("expected ErrStrideTooSmall, got %v", err)
	}
}

func TestFromPlaneFlattensAlpha(t *testing.T) {
	// 2x1 RGBA with 4 bytes of row padding.
	p := Plane{
		Width: 2, Height: 1, Channels: 4, Stride: 12,
		Data: []byte{10, 20, 30, 255, 99, 99, 99, 0, 1, 2, 3, 4},
	}
	r, err := FromPlane(p)
	if err != nil {
		t.Fatalf("from plane: %v", err)
	}
	want := []byte{10, 20, 30, 255, 255, 255}
	if !bytes.Equal(r.Pix, want) {
		t.Fatalf("pix %v, want %v", r.Pix, want)
	}
}

func TestFromPlaneRejectsMissingData(t *testing.T) {
	if _, err := FromPlane(Plane{Width: 1, Height: 1, Channels: 3, Stride: 3}); !errors.Is(err, ErrMissingPlane) {
		t.Fatalf("expected ErrMissingPlane, got %v", err)
	}
}

func writeImage(t *testing.T, name string, enc func(*os.File) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := enc(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodePNGWithAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
		}
	}
	img.SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	path := writeImage(t, "a.png", func(f *os.File) error { return png.Encode(f, img) })

	r, err := Decode(path, "png")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Width != 4 || r.Height != 3 || len(r.Pix) != 4*3*3 {
		t.Fatalf("unexpected raster %dx%d len %d", r.Width, r.Height, len(r.Pix))
	}
	if r.Source != FormatPNG {
		t.Fatalf("source %q", r.Source)
	}
	if r.Pix[0] != 255 || r.Pix[1] != 255 || r.Pix[2] != 255 {
		t.Fatalf("transparent pixel not white: %v", r.Pix[:3])
	}
	i := (1*4 + 1) * 3
	if r.Pix[i] != 10 || r.Pix[i+1] != 20 || r.Pix[i+2] != 30 {
		t.Fatalf("opaque pixel changed: %v", r.Pix[i:i+3])
	}
}

func TestDecodeSixteenBitPNG(t *testing.T) {
	img := image.NewNRGBA64(image.Rect(0, 0, 1, 1))
	img.SetNRGBA64(0, 0, color.NRGBA64{R: 0xffff, G: 0x8080, B: 0, A: 0xffff})
	path := writeImage(t, "deep.png", func(f *os.File) error { return png.Encode(f, img) })

	r, err := Decode(path, "png")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(r.Pix, []byte{0xff, 0x80, 0x00}) {
		t.Fatalf("pix %v", r.Pix)
	}
}

func TestDecodeOtherFormats(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}
	cases := map[string]func(*os.File) error{
		"jpg":  func(f *os.File) error { return jpeg.Encode(f, src, nil) },
		"bmp":  func(f *os.File) error { return bmp.Encode(f, src) },
		"tiff": func(f *os.File) error { return tiff.Encode(f, src, nil) },
	}
	for ext, enc := range cases {
		path := writeImage(t, "img."+ext, enc)
		r, err := Decode(path, ext)
		if err != nil {
			t.Fatalf("%s: %v", ext, err)
		}
		if r.Width != 8 || r.Height != 6 || len(r.Pix) != 8*6*3 {
			t.Fatalf("%s: unexpected raster %dx%d", ext, r.Width, r.Height)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	path := writeImage(t, "broken.png", func(f *os.File) error {
		_, err := f.WriteString("not a png")
		return err
	})
	_, err := Decode(path, "png")
	var de *DecodeError
	if !errors.As(err, &de) || de.Format != FormatPNG {
		t.Fatalf("expected DecodeError for png, got %v", err)
	}

	_, err = Decode(path, "txt")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCheckBounds(t *testing.T) {
	if err := CheckBounds(800, 600); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	for _, c := range [][2]int{{0, 10}, {10, -1}, {MaxDimension + 1, 1}, {20000, 20000}} {
		if err := CheckBounds(c[0], c[1]); !errors.Is(err, ErrBounds) {
			t.Fatalf("%v: expected ErrBounds, got %v", c, err)
		}
	}
}

func TestRasterImage(t *testing.T) {
	r := &Raster{Width: 1, Height: 1, Pix: []byte{1, 2, 3}}
	img := r.Image()
	if got := img.RGBAAt(0, 0); got != (color.RGBA{1, 2, 3, 255}) {
		t.Fatalf("got %v", got)
	}
}
