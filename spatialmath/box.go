package spatialmath

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
)

// box is a collision geometry that represents a 3D rectangular prism, it has a pose and half size that fully define it.
type box struct {
	pose     Pose
	halfSize r3.Vector
	label    string
}

// NewBox instantiates a new box Geometry. Dimensions are full side lengths.
func NewBox(pose Pose, dims r3.Vector, label string) (Geometry, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return nil, newBadGeometryDimensionsError(&box{})
	}
	return &box{pose: pose, halfSize: dims.Mul(0.5), label: label}, nil
}

// String returns a human readable string that represents the box.
func (b *box) String() string {
	pt := b.pose.Point()
	return fmt.Sprintf("Type: Box | Position: X:%.3f, Y:%.3f, Z:%.3f | Dims: X:%.3f, Y:%.3f, Z:%.3f",
		pt.X, pt.Y, pt.Z, 2*b.halfSize.X, 2*b.halfSize.Y, 2*b.halfSize.Z)
}

// Label returns the label of this box.
func (b *box) Label() string {
	return b.label
}

// SetLabel sets the label of this box.
func (b *box) SetLabel(label string) {
	b.label = label
}

// Pose returns the pose of the box.
func (b *box) Pose() Pose {
	return b.pose
}

// AlmostEqual compares the box with another geometry and checks if they are equivalent.
func (b *box) AlmostEqual(g Geometry) bool {
	other, ok := g.(*box)
	if !ok {
		return false
	}
	return PoseAlmostEqualEps(b.pose, other.pose, 1e-6) && R3VectorAlmostEqual(b.halfSize, other.halfSize, 1e-8)
}

// Transform premultiplies the box pose with a transform, allowing the box to be moved in space.
func (b *box) Transform(toPremultiply Pose) Geometry {
	return &box{pose: Compose(toPremultiply, b.pose), halfSize: b.halfSize, label: b.label}
}

func (b *box) Padded(padding float64) (Geometry, error) {
	return NewBox(b.pose, b.halfSize.Add(r3.Vector{X: padding, Y: padding, Z: padding}).Mul(2), b.label)
}

// BoundingCylinder aligns the cylinder with the longest side; the radius covers the cross
// section diagonal.
func (b *box) BoundingCylinder() (Pose, float64, float64) {
	h := b.halfSize
	switch {
	case h.X >= h.Y && h.X >= h.Z:
		return NewPoseFromOrientation(&R4AA{Theta: math.Pi / 2, RY: 1}), math.Hypot(h.Y, h.Z), 2 * h.X
	case h.Y >= h.Z:
		return NewPoseFromOrientation(&R4AA{Theta: -math.Pi / 2, RX: 1}), math.Hypot(h.X, h.Z), 2 * h.Y
	default:
		return NewZeroPose(), math.Hypot(h.X, h.Y), 2 * h.Z
	}
}

func (b *box) SDF() (sdf.SDF3, error) {
	return sdf.Box3D(v3.Vec{X: 2 * b.halfSize.X, Y: 2 * b.halfSize.Y, Z: 2 * b.halfSize.Z}, 0)
}

// Dims returns the full side lengths.
func (b *box) Dims() r3.Vector {
	return b.halfSize.Mul(2)
}
