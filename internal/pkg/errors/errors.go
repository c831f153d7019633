package errors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalid     = errors.New("invalid")
	ErrConflict    = errors.New("conflict")
	ErrTooMany     = errors.New("too many requests")
	ErrInternal    = errors.New("internal")
	ErrEmptyText   = errors.New("document yields no text")
	ErrNoChunks    = errors.New("document produced zero chunks")
	ErrUnsupported = errors.New("unsupported document type")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPermanent reports whether an error belongs to the input/validation
// class that retrying can never fix. The job engine fails such jobs
// immediately instead of burning attempts on them.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrInvalid) ||
		errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrNoChunks) ||
		errors.Is(err, ErrUnsupported)
}
