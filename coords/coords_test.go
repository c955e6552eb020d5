package coords

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestUnits(t *testing.T) {
	if !near(MMToPt(25.4), 72) {
		t.Fatalf("25.4mm = %v pt", MMToPt(25.4))
	}
	if !near(MMToPt(210), 595.2755905511812) {
		t.Fatalf("A4 width = %v pt", MMToPt(210))
	}
	if !near(PxToPt(150, 150), 72) {
		t.Fatalf("150px at 150dpi = %v pt", PxToPt(150, 150))
	}
}

func TestScaleThenTranslate(t *testing.T) {
	m := Scale(200, 100).Multiply(Translate(10, 20))
	if m != (Matrix{200, 0, 0, 100, 10, 20}) {
		t.Fatalf("matrix = %v", m)
	}
	p := m.Transform(Point{1, 1})
	if !near(p.X, 210) || !near(p.Y, 120) {
		t.Fatalf("unit corner maps to %v", p)
	}
	if Identity().Multiply(m) != m {
		t.Fatalf("identity must be neutral")
	}
}
