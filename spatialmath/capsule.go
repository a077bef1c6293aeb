package spatialmath

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"go.viam.com/proximity/utils"
)

// capsule is a collision geometry that represents a capsule, it has a pose and a radius that fully define it.
//
// ....___________________
// .../                   \
// .x|  |-------O-------|  |x
// ...\___________________/
//
// Length is the distance between the x's, or internal segment length + 2*radius. The capsule
// axis is the local Z axis and the pose sits at its center.
type capsule struct {
	pose   Pose
	radius float64
	length float64
	label  string
}

// NewCapsule instantiates a new capsule Geometry.
func NewCapsule(offset Pose, radius, length float64, label string) (Geometry, error) {
	if radius <= 0 || length <= 0 {
		return nil, newBadGeometryDimensionsError(&capsule{})
	}
	if length < radius*2 {
		return nil, newBadCapsuleLengthError(length, radius)
	}
	if length == radius*2 {
		return NewSphere(offset, radius, label)
	}
	return &capsule{pose: offset, radius: radius, length: length, label: label}, nil
}

// String returns a human readable string that represents the capsule.
func (c *capsule) String() string {
	pt := c.pose.Point()
	return fmt.Sprintf("Type: Capsule | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f, Length: %.3f",
		pt.X, pt.Y, pt.Z, c.radius, c.length)
}

// Label returns the label of this capsule.
func (c *capsule) Label() string {
	return c.label
}

// SetLabel sets the label of this capsule.
func (c *capsule) SetLabel(label string) {
	c.label = label
}

// Pose returns the pose of the capsule.
func (c *capsule) Pose() Pose {
	return c.pose
}

// AlmostEqual compares the capsule with another geometry and checks if they are equivalent.
func (c *capsule) AlmostEqual(g Geometry) bool {
	other, ok := g.(*capsule)
	if !ok {
		return false
	}
	return PoseAlmostEqualEps(c.pose, other.pose, 1e-6) &&
		utils.Float64AlmostEqual(c.radius, other.radius, 1e-8) &&
		utils.Float64AlmostEqual(c.length, other.length, 1e-8)
}

// Transform premultiplies the capsule pose with a transform, allowing the capsule to be moved in space.
func (c *capsule) Transform(toPremultiply Pose) Geometry {
	return &capsule{pose: Compose(toPremultiply, c.pose), radius: c.radius, length: c.length, label: c.label}
}

func (c *capsule) Padded(padding float64) (Geometry, error) {
	return NewCapsule(c.pose, c.radius+padding, c.length+2*padding, c.label)
}

// BoundingCylinder covers the straight segment; the spherical caps are reached by the
// decomposition's sphere radius.
func (c *capsule) BoundingCylinder() (Pose, float64, float64) {
	return NewZeroPose(), c.radius, c.length
}

// SDF unions a cylinder over the straight segment with a sphere at each end.
func (c *capsule) SDF() (sdf.SDF3, error) {
	segment := c.length - 2*c.radius
	body, err := sdf.Cylinder3D(segment, c.radius, 0)
	if err != nil {
		return nil, err
	}
	cap0, err := sdf.Sphere3D(c.radius)
	if err != nil {
		return nil, err
	}
	return sdf.Union3D(
		body,
		sdf.Transform3D(cap0, sdf.Translate3d(v3.Vec{Z: segment / 2})),
		sdf.Transform3D(cap0, sdf.Translate3d(v3.Vec{Z: -segment / 2})),
	), nil
}
