package bodydecomposition

import (
	"github.com/pkg/errors"
)

var (
	// ErrGeometry is the root of every error about a body's geometry or its absence.
	ErrGeometry = errors.New("geometry error")

	// ErrUnknownBody is returned when a decomposition is requested for a name that was never
	// loaded or has been removed. It is also an ErrGeometry.
	ErrUnknownBody = errors.Wrap(ErrGeometry, "unknown body")
)

// NewUnknownBodyError returns an ErrUnknownBody naming the body.
func NewUnknownBodyError(name string) error {
	return errors.Wrapf(ErrUnknownBody, "%q", name)
}

// NewBadGeometryError wraps a geometry failure for a named body as an ErrGeometry.
func NewBadGeometryError(name string, err error) error {
	return errors.Wrapf(ErrGeometry, "body %q: %v", name, err)
}

var (
	errNilGeometry   = errors.New("no geometry")
	errBadParameters = errors.New("resolution must be positive and padding non-negative")
)
