package security

import (
	"testing"
	"time"
)

func TestLimitsWithDefaultsKeepsOverrides(t *testing.T) {
	l := Limits{MaxFileSize: 16, MaxDecodeTime: time.Second}.WithDefaults()
	if l.MaxFileSize != 16 {
		t.Fatalf("MaxFileSize = %d, want 16", l.MaxFileSize)
	}
	if l.MaxDecodeTime != time.Second {
		t.Fatalf("MaxDecodeTime = %v, want 1s", l.MaxDecodeTime)
	}
	d := DefaultLimits()
	if l.MaxXRefDepth != d.MaxXRefDepth || l.MaxStreamLength != d.MaxStreamLength {
		t.Fatalf("unset fields not defaulted: %+v", l)
	}
}

func TestDefaultLimitsArePositive(t *testing.T) {
	d := DefaultLimits()
	if d.MaxFileSize <= 0 || d.MaxXRefDepth <= 0 || d.MaxIndirectDepth <= 0 ||
		d.MaxStringLength <= 0 || d.MaxStreamLength <= 0 ||
		d.MaxDecompressedSize <= 0 || d.MaxDecodeTime <= 0 {
		t.Fatalf("zero default in %+v", d)
	}
}
