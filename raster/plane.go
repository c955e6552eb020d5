package raster

import "fmt"

// Plane is an interleaved pixel plane as handed out by planar decoders.
// Rows start every Stride bytes; bytes past Width*Channels in a row are
// padding.
type Plane struct {
	Width    int
	Height   int
	Channels int
	Stride   int
	Data     []byte
}

// Repack copies the rows of a strided buffer into a tightly packed one of
// exactly width*height*channels bytes.
func Repack(data []byte, width, height, stride, channels int) ([]byte, error) {
	rowBytes := width * channels
	if stride < rowBytes {
		return nil, fmt.Errorf("%w: stride %d, row %d", ErrStrideTooSmall, stride, rowBytes)
	}
	if height > 0 && len(data) < (height-1)*stride+rowBytes {
		return nil, fmt.Errorf("plane holds %d bytes, need %d", len(data), (height-1)*stride+rowBytes)
	}
	out := make([]byte, rowBytes*height)
	for row := 0; row < height; row++ {
		copy(out[row*rowBytes:(row+1)*rowBytes], data[row*stride:row*stride+rowBytes])
	}
	return out, nil
}

// FromPlane repacks p and flattens it when it carries alpha. Only 3 (RGB) and
// 4 (RGBA) channel planes are accepted.
func FromPlane(p Plane) (*Raster, error) {
	if p.Data == nil {
		return nil, ErrMissingPlane
	}
	if p.Channels != 3 && p.Channels != 4 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, p.Channels)
	}
	if err := CheckBounds(p.Width, p.Height); err != nil {
		return nil, err
	}
	packed, err := Repack(p.Data, p.Width, p.Height, p.Stride, p.Channels)
	if err != nil {
		return nil, err
	}
	if p.Channels == 3 {
		return &Raster{Width: p.Width, Height: p.Height, Pix: packed}, nil
	}
	pix := FlattenRGBA(make([]byte, 0, p.Width*p.Height*3), packed)
	return &Raster{Width: p.Width, Height: p.Height, Pix: pix}, nil
}
