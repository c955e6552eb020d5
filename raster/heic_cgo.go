//go:build cgo

package raster

import (
	"github.com/strukturag/libheif/go/heif"
)

// decodeHEIC decodes the primary image through libheif into an interleaved
// RGB or RGBA plane, then repacks it row by row.
func decodeHEIC(path string) (*Raster, error) {
	ctx, err := heif.NewContext()
	if err != nil {
		return nil, err
	}
	if err := ctx.ReadFromFile(path); err != nil {
		return nil, err
	}
	handle, err := ctx.GetPrimaryImageHandle()
	if err != nil {
		return nil, err
	}
	if err := CheckBounds(handle.GetWidth(), handle.GetHeight()); err != nil {
		return nil, err
	}

	chroma, channels := heif.ChromaInterleavedRGB, 3
	if handle.HasAlphaChannel() {
		chroma, channels = heif.ChromaInterleavedRGBA, 4
	}
	img, err := handle.DecodeImage(heif.ColorspaceRGB, chroma, nil)
	if err != nil {
		return nil, err
	}
	plane, err := img.GetPlane(heif.ChannelInterleaved)
	if err != nil || plane == nil {
		return nil, ErrMissingPlane
	}
	return FromPlane(Plane{
		Width:    img.GetWidth(heif.ChannelInterleaved),
		Height:   img.GetHeight(heif.ChannelInterleaved),
		Channels: channels,
		Stride:   plane.Stride,
		Data:     plane.Plane,
	})
}
