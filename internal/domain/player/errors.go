package player

import "github.com/cockroachdb/errors"

// Provider error classes. Adapters wrap their failures with one of these so
// callers can branch with errors.Is.
var (
	// ErrUnauthorized means no valid credential could be obtained. Callers
	// must not retry; the owner has to re-authorize.
	ErrUnauthorized = errors.New("provider unauthorized")
	// ErrTransient means the provider or network failed in a way that the
	// next scheduled cycle may recover from.
	ErrTransient = errors.New("provider transient failure")
	// ErrNotFound means the provider does not know the requested item.
	ErrNotFound = errors.New("provider item not found")
)

// IsUnauthorized reports whether err is classified as unauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether err is classified as not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Unauthorized marks err as an unauthorized provider failure.
func Unauthorized(err error, msg string) error {
	if err == nil {
		return errors.Mark(errors.New(msg), ErrUnauthorized)
	}
	return errors.Mark(errors.Wrap(err, msg), ErrUnauthorized)
}

// Transient marks err as a transient provider failure.
func Transient(err error, msg string) error {
	if err == nil {
		return errors.Mark(errors.New(msg), ErrTransient)
	}
	return errors.Mark(errors.Wrap(err, msg), ErrTransient)
}

// NotFound marks err as a missing provider item.
func NotFound(err error, msg string) error {
	if err == nil {
		return errors.Mark(errors.New(msg), ErrNotFound)
	}
	return errors.Mark(errors.Wrap(err, msg), ErrNotFound)
}
