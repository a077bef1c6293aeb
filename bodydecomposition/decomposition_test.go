package bodydecomposition

import (
	"math"
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/spatialmath"
)

func makeCapsule(t *testing.T, center r3.Vector, radius, length float64) spatialmath.Geometry {
	t.Helper()
	g, err := spatialmath.NewCapsule(spatialmath.NewPoseFromPoint(center), radius, length, "")
	test.That(t, err, test.ShouldBeNil)
	return g
}

func TestSpherePlacement(t *testing.T) {
	bd, err := NewBodyDecomposition("c", makeCapsule(t, r3.Vector{Z: 0.2}, 0.05, 0.3), 0, 0.02)
	test.That(t, err, test.ShouldBeNil)
	spheres := bd.Spheres()
	test.That(t, len(spheres), test.ShouldEqual, 10)
	for i, s := range spheres {
		test.That(t, s.Radius, test.ShouldEqual, 0.05)
		test.That(t, s.Center.X, test.ShouldAlmostEqual, 0)
		// Symmetric about the capsule center, strictly inside the segment ends.
		mirror := spheres[len(spheres)-1-i]
		test.That(t, s.Center.Z+mirror.Center.Z, test.ShouldAlmostEqual, 0.4)
		test.That(t, math.Abs(s.Center.Z-0.2), test.ShouldBeLessThan, 0.15)
	}
	// Consecutive spheres overlap by at least half a radius.
	test.That(t, spheres[1].Center.Z-spheres[0].Center.Z, test.ShouldBeLessThanOrEqualTo, 0.025+1e-12)

	padded, err := NewBodyDecomposition("c", makeCapsule(t, r3.Vector{Z: 0.2}, 0.05, 0.3), 0.01, 0.02)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, padded.Spheres()[0].Radius, test.ShouldAlmostEqual, 0.06)
	test.That(t, padded.Padding(), test.ShouldEqual, 0.01)

	s, err := spatialmath.NewSphere(spatialmath.NewPoseFromPoint(r3.Vector{X: 1}), 0.1, "")
	test.That(t, err, test.ShouldBeNil)
	bd, err = NewBodyDecomposition("s", s, 0, 0.02)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(bd.Spheres()), test.ShouldEqual, 1)
	test.That(t, spatialmath.R3VectorAlmostEqual(bd.Spheres()[0].Center, r3.Vector{X: 1}, 1e-12), test.ShouldBeTrue)
	test.That(t, bd.Spheres()[0].Radius, test.ShouldEqual, 0.1)
}

func TestCollisionPoints(t *testing.T) {
	b, err := spatialmath.NewBox(spatialmath.NewPoseFromPoint(r3.Vector{Y: 1}), r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, "")
	test.That(t, err, test.ShouldBeNil)
	bd, err := NewBodyDecomposition("b", b, 0, 0.02)
	test.That(t, err, test.ShouldBeNil)

	// -0.04..0.04 in steps of 0.02 is five samples per side; the face samples at 0.05 fall
	// outside the grid of multiples of the resolution.
	pts := bd.CollisionPoints()
	test.That(t, len(pts), test.ShouldEqual, 125)
	for _, pt := range pts {
		test.That(t, math.Abs(pt.Y-1), test.ShouldBeLessThanOrEqualTo, 0.05)
	}
	test.That(t, spatialmath.R3VectorAlmostEqual(pts[0], r3.Vector{Y: 1}, 1e-12), test.ShouldBeTrue)
}

func TestBadDecompositions(t *testing.T) {
	_, err := NewBodyDecomposition("none", nil, 0, 0.02)
	test.That(t, errors.Is(err, ErrGeometry), test.ShouldBeTrue)

	_, err = NewBodyDecomposition("res", makeCapsule(t, r3.Vector{}, 0.05, 0.3), 0, 0)
	test.That(t, errors.Is(err, ErrGeometry), test.ShouldBeTrue)
}

func TestBodyDecompositionVector(t *testing.T) {
	a, err := NewBodyDecomposition("a", makeCapsule(t, r3.Vector{}, 0.05, 0.3), 0, 0.05)
	test.That(t, err, test.ShouldBeNil)
	b, err := NewBodyDecomposition("b", makeCapsule(t, r3.Vector{}, 0.05, 0.3), 0, 0.05)
	test.That(t, err, test.ShouldBeNil)

	v := NewBodyDecompositionVector(a, b)
	test.That(t, v.Size(), test.ShouldEqual, 2)
	test.That(t, len(v.Spheres()), test.ShouldEqual, len(a.Spheres())+len(b.Spheres()))

	err = v.UpdatePoses(spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldNotBeNil)

	shift := spatialmath.NewPoseFromPoint(r3.Vector{X: 2})
	test.That(t, v.UpdatePoses(spatialmath.NewZeroPose(), shift), test.ShouldBeNil)
	for i, s := range v.PartSpheres(1) {
		test.That(t, s.Center.X, test.ShouldAlmostEqual, 2)
		test.That(t, s.Center.Z, test.ShouldAlmostEqual, b.Spheres()[i].Center.Z)
	}
	// The shared decomposition is untouched.
	test.That(t, b.Spheres()[0].Center.X, test.ShouldEqual, 0.0)

	pts := v.CollisionPoints()
	test.That(t, len(pts), test.ShouldEqual, len(a.CollisionPoints())+len(b.CollisionPoints()))
	test.That(t, pts[len(a.CollisionPoints())].X, test.ShouldAlmostEqual, 2)

	test.That(t, v.SetPose(0, shift), test.ShouldBeNil)
	test.That(t, v.PartSpheres(0)[0].Center.X, test.ShouldAlmostEqual, 2)
	test.That(t, v.SetPose(2, shift), test.ShouldNotBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(v.Pose(0), shift), test.ShouldBeTrue)
	test.That(t, v.Valid(), test.ShouldBeTrue)
}

func TestStore(t *testing.T) {
	store := NewStore(0.02, logging.NewTestLogger(t))
	g := makeCapsule(t, r3.Vector{}, 0.05, 0.3)

	first, err := store.LoadDecomposition("link", g, 0)
	test.That(t, err, test.ShouldBeNil)
	again, err := store.LoadDecomposition("link", makeCapsule(t, r3.Vector{}, 0.05, 0.3), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, first)

	looked, err := store.Decomposition("link")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, looked, test.ShouldEqual, first)

	replaced, err := store.LoadDecomposition("link", makeCapsule(t, r3.Vector{}, 0.05, 0.4), 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, replaced, test.ShouldNotEqual, first)
	test.That(t, first.Valid(), test.ShouldBeFalse)
	test.That(t, replaced.Valid(), test.ShouldBeTrue)

	_, err = store.Decomposition("missing")
	test.That(t, errors.Is(err, ErrUnknownBody), test.ShouldBeTrue)
	test.That(t, errors.Is(err, ErrGeometry), test.ShouldBeTrue)

	_, err = store.LoadDecomposition("bad", nil, 0)
	test.That(t, errors.Is(err, ErrGeometry), test.ShouldBeTrue)
	test.That(t, store.Len(), test.ShouldEqual, 1)

	v := NewBodyDecompositionVector(replaced)
	test.That(t, store.Remove("link"), test.ShouldBeTrue)
	test.That(t, store.Remove("link"), test.ShouldBeFalse)
	test.That(t, v.Valid(), test.ShouldBeFalse)
	test.That(t, store.Names(), test.ShouldBeEmpty)
}

func TestStoreConcurrentLoads(t *testing.T) {
	store := NewStore(0.05, logging.NewTestLogger(t))
	g := makeCapsule(t, r3.Vector{}, 0.05, 0.3)
	var wg sync.WaitGroup
	results := make([]*BodyDecomposition, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bd, err := store.LoadDecomposition("shared", g, 0)
			if err == nil {
				results[i] = bd
			}
		}(i)
	}
	wg.Wait()
	test.That(t, store.Names(), test.ShouldResemble, []string{"shared"})
	current, err := store.Decomposition("shared")
	test.That(t, err, test.ShouldBeNil)
	for _, bd := range results {
		test.That(t, bd, test.ShouldEqual, current)
	}
}
