package spatialmath

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"

	"go.viam.com/proximity/utils"
)

type sphere struct {
	pose   Pose
	radius float64
	label  string
}

// NewSphere instantiates a new sphere Geometry.
func NewSphere(offset Pose, radius float64, label string) (Geometry, error) {
	if radius <= 0 {
		return nil, newBadGeometryDimensionsError(&sphere{})
	}
	return &sphere{pose: offset, radius: radius, label: label}, nil
}

// String returns a human readable string that represents the sphere.
func (s *sphere) String() string {
	pt := s.pose.Point()
	return fmt.Sprintf("Type: Sphere | Position: X:%.3f, Y:%.3f, Z:%.3f | Radius: %.3f", pt.X, pt.Y, pt.Z, s.radius)
}

// Label returns the label of this sphere.
func (s *sphere) Label() string {
	return s.label
}

// SetLabel sets the label of this sphere.
func (s *sphere) SetLabel(label string) {
	s.label = label
}

// Pose returns the pose of the sphere.
func (s *sphere) Pose() Pose {
	return s.pose
}

// AlmostEqual compares the sphere with another geometry and checks if they are equivalent.
func (s *sphere) AlmostEqual(g Geometry) bool {
	other, ok := g.(*sphere)
	if !ok {
		return false
	}
	return PoseAlmostEqualEps(s.pose, other.pose, 1e-6) && utils.Float64AlmostEqual(s.radius, other.radius, 1e-8)
}

// Transform premultiplies the sphere pose with a transform, allowing the sphere to be moved in space.
func (s *sphere) Transform(toPremultiply Pose) Geometry {
	return &sphere{pose: Compose(toPremultiply, s.pose), radius: s.radius, label: s.label}
}

func (s *sphere) Padded(padding float64) (Geometry, error) {
	return NewSphere(s.pose, s.radius+padding, s.label)
}

// BoundingCylinder of a sphere has zero length so it decomposes to a single sphere.
func (s *sphere) BoundingCylinder() (Pose, float64, float64) {
	return NewZeroPose(), s.radius, 0
}

func (s *sphere) SDF() (sdf.SDF3, error) {
	return sdf.Sphere3D(s.radius)
}

// Radius returns the sphere radius.
func (s *sphere) Radius() float64 {
	return s.radius
}
