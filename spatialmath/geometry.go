package spatialmath

import (
	"fmt"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// GeometryType defines what geometry creator representations are known.
type GeometryType string

// The set of allowed representations for geometry.
const (
	UnknownType = GeometryType("")
	BoxType     = GeometryType("box")
	SphereType  = GeometryType("sphere")
	CapsuleType = GeometryType("capsule")
)

// Geometry is an entry point with which to access all types of collision geometries.
type Geometry interface {
	Pose() Pose
	Transform(Pose) Geometry
	Label() string
	SetLabel(string)
	String() string
	AlmostEqual(Geometry) bool

	// Padded returns a copy of the geometry inflated by padding on every surface.
	Padded(padding float64) (Geometry, error)
	// BoundingCylinder returns the pose (relative to the geometry's own frame, axis along +Z),
	// radius and length of a cylinder enclosing the geometry.
	BoundingCylinder() (Pose, float64, float64)
	// SDF returns the signed distance function of the geometry in its own frame.
	SDF() (sdf.SDF3, error)
}

// ErrGeometryTypeUnsupported is returned when a geometry config names an unknown type.
var ErrGeometryTypeUnsupported = errors.New("unsupported Geometry type")

func newBadGeometryDimensionsError(g Geometry) error {
	return fmt.Errorf("invalid dimension(s) for Geometry type %T", g)
}

func newBadCapsuleLengthError(l, r float64) error {
	return fmt.Errorf("capsule given length %f, must be at least twice the radius of %f", l, r)
}

// DistanceFromPoint evaluates the geometry's signed distance at a point given in the geometry's
// parent frame. Negative values are inside.
func DistanceFromPoint(g Geometry, s sdf.SDF3, pt r3.Vector) float64 {
	local := TransformPoint(PoseInverse(g.Pose()), pt)
	return s.Evaluate(v3.Vec{X: local.X, Y: local.Y, Z: local.Z})
}

// LocalBoundingBox returns the axis aligned bounding box of an SDF in its own frame.
func LocalBoundingBox(s sdf.SDF3) (r3.Vector, r3.Vector) {
	bb := s.BoundingBox()
	return r3.Vector{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z}, r3.Vector{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z}
}
