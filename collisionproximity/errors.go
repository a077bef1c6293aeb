package collisionproximity

import (
	"github.com/pkg/errors"

	"go.viam.com/proximity/bodydecomposition"
)

var (
	// ErrConfiguration is returned when a session cannot be configured, for instance for an
	// unknown group. No session is created and the session lock is not held.
	ErrConfiguration = errors.New("collision space configuration error")

	// ErrSessionState is returned when a session is used after it was reverted.
	ErrSessionState = errors.New("no group is configured for queries")

	// ErrGeometry is returned for bodies whose decomposition is missing or could not be built.
	ErrGeometry = bodydecomposition.ErrGeometry

	// ErrUnknownObject is returned by events naming an object the space does not hold.
	ErrUnknownObject = errors.New("unknown object")
)

// NewUnknownGroupError returns an ErrConfiguration for a group the model does not define.
func NewUnknownGroupError(group string) error {
	return errors.Wrapf(ErrConfiguration, "unknown group %q", group)
}

// NewUnknownObjectError returns an ErrUnknownObject for the named object.
func NewUnknownObjectError(name string) error {
	return errors.Wrapf(ErrUnknownObject, "%q", name)
}

// NewObjectNameConflictError is returned when an object would shadow a link or another object.
func NewObjectNameConflictError(name, holder string) error {
	return errors.Errorf("object name %q is already used by %s", name, holder)
}

func newRevertedSessionError(id string) error {
	return errors.Wrapf(ErrSessionState, "session %s was reverted", id)
}
