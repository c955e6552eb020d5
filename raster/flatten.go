package raster

import "math"

// Blend composites one 8-bit channel with straight alpha onto white:
// round(clamp(c*a + 255*(1-a), 0, 255)) with a = alpha/255.
func Blend(c, alpha byte) byte {
	a := float64(alpha) / 255
	v := float64(c)*a + 255*(1-a)
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// FlattenRGBA appends the RGB flattening of non-premultiplied RGBA pixels in
// src to dst.
func FlattenRGBA(dst, src []byte) []byte {
	for i := 0; i+3 < len(src); i += 4 {
		a := src[i+3]
		if a == 0xff {
			dst = append(dst, src[i], src[i+1], src[i+2])
			continue
		}
		dst = append(dst, Blend(src[i], a), Blend(src[i+1], a), Blend(src[i+2], a))
	}
	return dst
}
