package session

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidInput marks malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState means an authorization callback carried an unknown or expired state.
	ErrInvalidState = errors.New("invalid authorization state")
	// ErrUnknownDevice means the requested output device is not known to the provider.
	ErrUnknownDevice = errors.New("unknown device")
)

func invalidInput(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInvalidInput)
}
