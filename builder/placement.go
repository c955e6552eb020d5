package builder

import "github.com/lesonky/invoice-merge-tool/coords"

const (
	// PageWidthMM and PageHeightMM are the A4 canvas every image page uses.
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
	// ImageDPI is the density at which a pixel maps to page units before
	// scaling.
	ImageDPI = 150.0
)

// Placement positions an image on the page. Offsets and display sizes are in
// millimetres from the bottom-left corner.
type Placement struct {
	OffsetX  float64
	OffsetY  float64
	DisplayW float64
	DisplayH float64
	ScaleX   float64
	ScaleY   float64
	// BaseW and BaseH are the image size in points at ImageDPI.
	BaseW float64
	BaseH float64
}

// PlaceImage fits a width x height pixel image inside the page keeping its
// aspect ratio, centred, with one side touching the page edge.
func PlaceImage(width, height int) Placement {
	w, h := float64(max(width, 1)), float64(max(height, 1))
	aspect := w / h
	displayW := PageWidthMM
	displayH := displayW / aspect
	if displayH > PageHeightMM {
		displayH = PageHeightMM
		displayW = displayH * aspect
	}
	p := Placement{
		OffsetX:  (PageWidthMM - displayW) / 2,
		OffsetY:  (PageHeightMM - displayH) / 2,
		DisplayW: displayW,
		DisplayH: displayH,
		BaseW:    coords.PxToPt(w, ImageDPI),
		BaseH:    coords.PxToPt(h, ImageDPI),
		ScaleX:   1,
		ScaleY:   1,
	}
	if p.BaseW != 0 {
		p.ScaleX = coords.MMToPt(displayW) / p.BaseW
	}
	if p.BaseH != 0 {
		p.ScaleY = coords.MMToPt(displayH) / p.BaseH
	}
	return p
}

// Matrix returns the cm operands that map the unit image square onto the
// placement, in points.
func (p Placement) Matrix() coords.Matrix {
	return coords.Scale(p.BaseW*p.ScaleX, p.BaseH*p.ScaleY).
		Multiply(coords.Translate(coords.MMToPt(p.OffsetX), coords.MMToPt(p.OffsetY)))
}
