package security

import "time"

// Limits caps what a single source document may cost to open. A zero field
// means "use the default"; see WithDefaults.
type Limits struct {
	MaxFileSize         int64         // bytes read from disk per source
	MaxXRefDepth        int           // length of the /Prev chain
	MaxIndirectDepth    int           // array/dict nesting while parsing objects
	MaxStringLength     int64         // literal and hex strings
	MaxStreamLength     int64         // encoded stream payload
	MaxDecompressedSize int64         // output of a filter chain
	MaxDecodeTime       time.Duration // per stream
}

const (
	defaultMaxFileSize         = 512 << 20
	defaultMaxXRefDepth        = 50
	defaultMaxIndirectDepth    = 100
	defaultMaxStringLength     = 10 << 20
	defaultMaxStreamLength     = 50 << 20
	defaultMaxDecompressedSize = 100 << 20
	defaultMaxDecodeTime       = 30 * time.Second
)

// DefaultLimits sizes limits for scanned invoices and receipts: large
// embedded photos are fine, multi-gigabyte archives are not.
func DefaultLimits() Limits {
	return Limits{}.WithDefaults()
}

// WithDefaults fills every non-positive field with its default and keeps
// the rest, so callers can override a single limit.
func (l Limits) WithDefaults() Limits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = defaultMaxFileSize
	}
	if l.MaxXRefDepth <= 0 {
		l.MaxXRefDepth = defaultMaxXRefDepth
	}
	if l.MaxIndirectDepth <= 0 {
		l.MaxIndirectDepth = defaultMaxIndirectDepth
	}
	if l.MaxStringLength <= 0 {
		l.MaxStringLength = defaultMaxStringLength
	}
	if l.MaxStreamLength <= 0 {
		l.MaxStreamLength = defaultMaxStreamLength
	}
	if l.MaxDecompressedSize <= 0 {
		l.MaxDecompressedSize = defaultMaxDecompressedSize
	}
	if l.MaxDecodeTime <= 0 {
		l.MaxDecodeTime = defaultMaxDecodeTime
	}
	return l
}
