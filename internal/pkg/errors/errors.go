package errors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrTooMany      = errors.New("too many requests")
	ErrInternal     = errors.New("internal")
	// ErrInvalidSource marks a drive URL that does not resolve to a folder.
	ErrInvalidSource = errors.New("invalid drive source")
	// ErrSourceListing marks a remote enumeration failure.
	ErrSourceListing = errors.New("drive listing failed")
	// ErrCourseLocked means another import currently holds the course lock.
	ErrCourseLocked = errors.New("course locked by another import")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
