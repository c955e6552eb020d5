package merge

import "errors"

var (
	errNoPages     = errors.New("no pages collected from any source")
	errNoCatalog   = errors.New("no catalog found in any source")
	errNoPagesRoot = errors.New("no page tree root found in any source")
)
