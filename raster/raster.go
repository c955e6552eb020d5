// Package raster decodes still images into opaque 8-bit RGB buffers ready to
// be embedded as PDF image XObjects.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Format names the container a raster was decoded from.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatWebP Format = "webp"
	FormatHEIC Format = "heic"
)

const (
	// MaxDimension caps width and height.
	MaxDimension = 32768
	// MaxPixels bounds width*height (64M pixels).
	MaxPixels int64 = 64 * 1024 * 1024
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrStrideTooSmall    = errors.New("plane stride smaller than row width")
	ErrMissingPlane      = errors.New("image has no interleaved plane")
	ErrBounds            = errors.New("image bounds out of range")
)

// DecodeError reports a failure to turn a file into a Raster.
type DecodeError struct {
	Path   string
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s image %s: %v", e.Format, e.Path, e.Err)
	}
	return fmt.Sprintf("decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Raster is a tightly packed, row-major RGB buffer with no alpha.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
	Source Format
}

// Image exposes the raster as an opaque image.RGBA, for re-encoding.
func (r *Raster) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for i, j := 0, 0; i+2 < len(r.Pix); i, j = i+3, j+4 {
		img.Pix[j] = r.Pix[i]
		img.Pix[j+1] = r.Pix[i+1]
		img.Pix[j+2] = r.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FormatFromExt maps a lower-case extension without the dot to a Format.
func FormatFromExt(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	case "gif":
		return FormatGIF, true
	case "bmp":
		return FormatBMP, true
	case "tif", "tiff":
		return FormatTIFF, true
	case "webp":
		return FormatWebP, true
	case "heic", "heif":
		return FormatHEIC, true
	}
	return "", false
}

// Decode reads the image at path, choosing the decoder from the declared
// extension. Alpha is flattened onto white.
func Decode(path, ext string) (*Raster, error) {
	format, ok := FormatFromExt(ext)
	if !ok {
		return nil, &DecodeError{Path: path, Err: ErrUnsupportedFormat}
	}
	var (
		r   *Raster
		err error
	)
	if format == FormatHEIC {
		r, err = decodeHEIC(path)
	} else {
		r, err = decodeFile(path, format)
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Format: format, Err: err}
	}
	r.Source = format
	return r, nil
}

type decodeFunc func(io.Reader) (image.Image, error)
type configFunc func(io.Reader) (image.Config, error)

var decoders = map[Format]struct {
	decode decodeFunc
	config configFunc
}{
	FormatJPEG: {jpeg.Decode, jpeg.DecodeConfig},
	FormatPNG:  {png.Decode, png.DecodeConfig},
	FormatGIF:  {gif.Decode, gif.DecodeConfig},
	FormatBMP:  {bmp.Decode, bmp.DecodeConfig},
	FormatTIFF: {tiff.Decode, tiff.DecodeConfig},
	FormatWebP: {webp.Decode, webp.DecodeConfig},
}

func decodeFile(path string, format Format) (*Raster, error) {
	d, ok := decoders[format]
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := d.config(f)
	if err != nil {
		return nil, err
	}
	if err := CheckBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := d.decode(f)
	if err != nil {
		return nil, err
	}
	return FromImage(img)
}

// FromImage converts any decoded image into a Raster. Sources with more than
// 8 bits per channel are reduced first; alpha is flattened onto white.
func FromImage(img image.Image) (*Raster, error) {
	b := img.Bounds()
	if err := CheckBounds(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 0, w*h*3)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		pix = FlattenRGBA(pix, row)
	}
	return &Raster{Width: w, Height: h, Pix: pix}, nil
}

// CheckBounds rejects empty or oversized images before pixels are allocated.
func CheckBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %d x %d", ErrBounds, width, height)
	}
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: dimension exceeds %d (%d x %d)", ErrBounds, MaxDimension, width, height)
	}
	if pixels := int64(width) * int64(height); pixels > MaxPixels {
		return fmt.Errorf("%w: pixel count %d exceeds %d", ErrBounds, pixels, MaxPixels)
	}
	return nil
}
