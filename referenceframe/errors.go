package referenceframe

import (
	"github.com/pkg/errors"
)

// OOBErrString is a string that all OOB errors should contain, so that they can be checked for distinct from other errors.
const OOBErrString = "input out of bounds"

var (
	// ErrNoModelInformation is used when there is no model information.
	ErrNoModelInformation = errors.New("no model information")

	// ErrCircularReference is returned when the link/joint tree has a cycle.
	ErrCircularReference = errors.New("infinite loop finding path from world to frame")

	// ErrGroupNotFound is returned when a planning group is not defined on the model.
	ErrGroupNotFound = errors.New("group not found")

	// ErrUnknownJoint is returned when a joint value names a joint the model does not have.
	ErrUnknownJoint = errors.New("unknown joint")

	// ErrUnknownLink is returned when a link name is not part of the model.
	ErrUnknownLink = errors.New("unknown link")
)

// NewReservedWordError returns an error indicating that the name of a link or joint is reserved.
func NewReservedWordError(configType, reservedWord string) error {
	return errors.Errorf("reserved word: cannot name a %s '%s'", configType, reservedWord)
}

// NewDuplicateNameError returns an error indicating two frames share a name.
func NewDuplicateNameError(name string) error {
	return errors.Errorf("duplicate link or joint name %q", name)
}

// NewParentNotFoundError returns an error indicating a frame names a parent that does not exist.
func NewParentNotFoundError(frame, parent string) error {
	return errors.Errorf("frame %q has parent %q which is neither world nor a link or joint of the model", frame, parent)
}

// NewUnknownGroupError wraps ErrGroupNotFound with the group name.
func NewUnknownGroupError(group string) error {
	return errors.Wrapf(ErrGroupNotFound, "%q", group)
}

// NewUnknownJointError wraps ErrUnknownJoint with the joint name.
func NewUnknownJointError(joint string) error {
	return errors.Wrapf(ErrUnknownJoint, "%q", joint)
}

// NewUnknownLinkError wraps ErrUnknownLink with the link name.
func NewUnknownLinkError(link string) error {
	return errors.Wrapf(ErrUnknownLink, "%q", link)
}

// NewJointOutOfBoundsError returns an error for a joint value outside its limits.
func NewJointOutOfBoundsError(joint string, value float64, limit Limit) error {
	return errors.Errorf("%s: joint %q value %.4f not in [%.4f, %.4f]", OOBErrString, joint, value, limit.Min, limit.Max)
}
