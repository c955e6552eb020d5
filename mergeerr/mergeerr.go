// Package mergeerr classifies the failures a merge run can surface.
package mergeerr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	// NoFiles: nothing eligible to merge, initially or after per-file failures.
	NoFiles
	// InvalidFolder: the root folder is missing or not a directory.
	InvalidFolder
	// Io: filesystem read or write failure.
	Io
	// Decode: raster decode failure, including stride and format violations.
	Decode
	// Pdf: a document could not be parsed or serialized.
	Pdf
	// Structural: the merged graph lacks a Catalog or Pages root.
	Structural
	// InvalidOutput: the output name leaves the folder or names an input.
	InvalidOutput
)

func (k Kind) String() string {
	switch k {
	case NoFiles:
		return "no_files"
	case InvalidFolder:
		return "invalid_folder"
	case Io:
		return "io"
	case Decode:
		return "decode"
	case Pdf:
		return "pdf"
	case Structural:
		return "structural"
	case InvalidOutput:
		return "invalid_output"
	}
	return "unknown"
}

// Error carries a Kind plus the operation and path that failed.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

var (
	ErrNoFiles       = &Error{Kind: NoFiles}
	ErrInvalidFolder = &Error{Kind: InvalidFolder}
	ErrStructural    = &Error{Kind: Structural}
	ErrInvalidOutput = &Error{Kind: InvalidOutput}
)

func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.message()
	switch {
	case e.Op != "" && e.Path != "":
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	case e.Op != "":
		msg = e.Op + ": " + msg
	case e.Path != "":
		msg = e.Path + ": " + msg
	}
	return msg
}

func (e *Error) message() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	switch e.Kind {
	case NoFiles:
		return "no files to merge"
	case InvalidFolder:
		return "folder does not exist or is not a directory"
	case Structural:
		return "document structure is incomplete"
	case InvalidOutput:
		return "output file name is not usable"
	}
	return e.Kind.String() + " error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNoFiles)
// works regardless of Op, Path or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
