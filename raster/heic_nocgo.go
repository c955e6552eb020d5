//go:build !cgo

package raster

import "fmt"

func decodeHEIC(path string) (*Raster, error) {
	return nil, fmt.Errorf("%w: heic support requires cgo and libheif", ErrUnsupportedFormat)
}
