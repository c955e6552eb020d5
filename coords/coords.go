// Package coords holds the affine matrices and unit conversions used to
// place content on a page.
package coords

const (
	PointsPerInch = 72.0
	MMPerInch     = 25.4
)

// MMToPt converts millimetres to PDF points.
func MMToPt(mm float64) float64 { return mm / MMPerInch * PointsPerInch }

// PxToPt converts a pixel length at the given density to points.
func PxToPt(px, dpi float64) float64 { return px / dpi * PointsPerInch }

// Matrix is a PDF transformation matrix [a b c d e f], applied to row
// vectors as in the cm operator.
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply returns m followed by o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}
