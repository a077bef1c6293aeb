package spatialmath

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNewGeometryErrors(t *testing.T) {
	_, err := NewBox(NewZeroPose(), r3.Vector{X: 1, Y: 0, Z: 1}, "")
	test.That(t, err, test.ShouldBeError, newBadGeometryDimensionsError(&box{}))

	_, err = NewSphere(NewZeroPose(), -1, "")
	test.That(t, err, test.ShouldBeError, newBadGeometryDimensionsError(&sphere{}))

	_, err = NewCapsule(NewZeroPose(), 1, 1, "")
	test.That(t, err, test.ShouldBeError, newBadCapsuleLengthError(1, 1))

	g, err := NewCapsule(NewZeroPose(), 1, 2, "degenerate")
	test.That(t, err, test.ShouldBeNil)
	_, isSphere := g.(*sphere)
	test.That(t, isSphere, test.ShouldBeTrue)
}

func TestGeometrySDF(t *testing.T) {
	offset := NewPose(r3.Vector{X: 1}, &R4AA{Theta: math.Pi / 2, RY: 1})
	b, err := NewBox(offset, r3.Vector{X: 0.2, Y: 0.4, Z: 0.6}, "box")
	test.That(t, err, test.ShouldBeNil)
	s, err := NewSphere(offset, 0.1, "sphere")
	test.That(t, err, test.ShouldBeNil)
	c, err := NewCapsule(offset, 0.1, 0.6, "capsule")
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		geom     Geometry
		pt       r3.Vector
		expected float64
	}{
		{b, r3.Vector{X: 1}, -0.1},
		// The box is rotated so its local Z (0.6 long) lies along parent X.
		{b, r3.Vector{X: 1.5}, 0.2},
		{b, r3.Vector{X: 1, Y: 0.5}, 0.3},
		{s, r3.Vector{X: 1, Z: 0.3}, 0.2},
		{c, r3.Vector{X: 1, Y: 0.3}, 0.2},
		{c, r3.Vector{X: 1.5}, 0.2},
	} {
		t.Run(tc.geom.Label(), func(t *testing.T) {
			field, err := tc.geom.SDF()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, DistanceFromPoint(tc.geom, field, tc.pt), test.ShouldAlmostEqual, tc.expected, 1e-9)
		})
	}
}

func TestTransformAndPadded(t *testing.T) {
	b, err := NewBox(NewPoseFromPoint(r3.Vector{X: 1}), r3.Vector{X: 1, Y: 1, Z: 1}, "b")
	test.That(t, err, test.ShouldBeNil)
	moved := b.Transform(NewPoseFromPoint(r3.Vector{Y: 2}))
	test.That(t, R3VectorAlmostEqual(moved.Pose().Point(), r3.Vector{X: 1, Y: 2}, 1e-9), test.ShouldBeTrue)
	test.That(t, moved.Label(), test.ShouldEqual, "b")
	test.That(t, moved.AlmostEqual(b), test.ShouldBeFalse)
	test.That(t, moved.Transform(NewPoseFromPoint(r3.Vector{Y: -2})).AlmostEqual(b), test.ShouldBeTrue)

	padded, err := b.Padded(0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, R3VectorAlmostEqual(padded.(*box).Dims(), r3.Vector{X: 1.2, Y: 1.2, Z: 1.2}, 1e-12), test.ShouldBeTrue)

	c, err := NewCapsule(NewZeroPose(), 0.1, 1, "c")
	test.That(t, err, test.ShouldBeNil)
	paddedCapsule, err := c.Padded(0.05)
	test.That(t, err, test.ShouldBeNil)
	_, r, l := paddedCapsule.BoundingCylinder()
	test.That(t, r, test.ShouldAlmostEqual, 0.15)
	test.That(t, l, test.ShouldAlmostEqual, 1.1)
}

func TestBoxBoundingCylinder(t *testing.T) {
	for _, dims := range []r3.Vector{{X: 1, Y: 0.2, Z: 0.3}, {X: 0.2, Y: 1, Z: 0.3}, {X: 0.2, Y: 0.3, Z: 1}} {
		b, err := NewBox(NewZeroPose(), dims, "")
		test.That(t, err, test.ShouldBeNil)
		pose, radius, length := b.BoundingCylinder()
		test.That(t, length, test.ShouldAlmostEqual, 1.0)
		test.That(t, radius, test.ShouldAlmostEqual, math.Hypot(0.1, 0.15))
		axis := TransformPoint(pose, r3.Vector{Z: 1})
		// The axis follows the longest side.
		test.That(t, math.Abs(axis.Dot(dims)), test.ShouldAlmostEqual, 1.0, 1e-9)
	}
}

func TestGeometryConfig(t *testing.T) {
	for _, tc := range []struct {
		name   string
		config string
		kind   GeometryType
	}{
		{"box", `{"type":"box","x":0.1,"y":0.2,"z":0.3,"translation":{"x":1,"y":0,"z":0}}`, BoxType},
		{"sphere", `{"type":"sphere","r":0.1}`, SphereType},
		{"capsule", `{"type":"capsule","r":0.1,"l":0.5,"orientation":{"type":"axis_angles","value":{"th":1,"x":1,"y":0,"z":0}}}`, CapsuleType},
		{"inferred", `{"r":0.1}`, SphereType},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var config GeometryConfig
			test.That(t, json.Unmarshal([]byte(tc.config), &config), test.ShouldBeNil)
			g, err := config.ParseConfig()
			test.That(t, err, test.ShouldBeNil)

			roundTrip, err := NewGeometryConfig(g)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, roundTrip.Type, test.ShouldEqual, tc.kind)
			again, err := roundTrip.ParseConfig()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, again.AlmostEqual(g), test.ShouldBeTrue)
		})
	}

	_, err := (&GeometryConfig{Type: "mesh"}).ParseConfig()
	test.That(t, err, test.ShouldNotBeNil)
}
