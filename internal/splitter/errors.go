package splitter

import "errors"

var (
	// ErrNotFound means the path given to SplitFile does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidPath means the path refers to a directory rather than a file.
	ErrInvalidPath = errors.New("path is a directory")
	// ErrIO covers any other failure while reading the file.
	ErrIO = errors.New("read failed")

	errNotUTF8 = errors.New("content is not valid UTF-8")
)

// PathError attaches the source path to a SplitFile failure. It unwraps to
// both the kind (ErrNotFound, ErrInvalidPath, ErrIO) and the underlying cause.
type PathError struct {
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	if e.Err == nil {
		return e.Kind.Error() + ": " + e.Path
	}
	return e.Kind.Error() + ": " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
