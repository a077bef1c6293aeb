package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestComposeAndInverse(t *testing.T) {
	p1 := NewPose(r3.Vector{X: 1, Y: 2, Z: 3}, &R4AA{Theta: math.Pi / 2, RZ: 1})
	p2 := NewPoseFromPoint(r3.Vector{X: 1})

	composed := Compose(p1, p2)
	test.That(t, R3VectorAlmostEqual(composed.Point(), r3.Vector{X: 1, Y: 3, Z: 3}, 1e-9), test.ShouldBeTrue)
	test.That(t, OrientationAlmostEqual(composed.Orientation(), p1.Orientation()), test.ShouldBeTrue)

	test.That(t, PoseAlmostEqual(Compose(p1, PoseInverse(p1)), NewZeroPose()), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(PoseInverse(p1), p1), NewZeroPose()), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(Compose(p1, PoseBetween(p1, p2)), p2), test.ShouldBeTrue)
}

func TestTransformPoint(t *testing.T) {
	p := NewPose(r3.Vector{Z: 1}, &EulerAngles{Roll: math.Pi / 2})
	// Roll about X takes +Y to +Z.
	pt := TransformPoint(p, r3.Vector{Y: 1})
	test.That(t, R3VectorAlmostEqual(pt, r3.Vector{Z: 2}, 1e-9), test.ShouldBeTrue)

	back := TransformPoint(PoseInverse(p), pt)
	test.That(t, R3VectorAlmostEqual(back, r3.Vector{Y: 1}, 1e-9), test.ShouldBeTrue)
}

func TestPoseAlmostEqual(t *testing.T) {
	a := NewPoseFromPoint(r3.Vector{X: 1})
	test.That(t, PoseAlmostEqual(a, NewPoseFromPoint(r3.Vector{X: 1 + 1e-10})), test.ShouldBeTrue)
	test.That(t, PoseAlmostEqual(a, NewPoseFromPoint(r3.Vector{X: 1.1})), test.ShouldBeFalse)
	test.That(t, PoseAlmostEqual(a, NewPose(r3.Vector{X: 1}, &R4AA{Theta: 0.1, RX: 1})), test.ShouldBeFalse)
	test.That(t, PrettyPrint(a), test.ShouldContainSubstring, "X:1.0000")
}
