package distancefield

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/proximity/logging"
)

const testResolution = 0.02

func newTestField(t *testing.T, maxDistance float64) *PropagationDistanceField {
	t.Helper()
	f, err := NewPropagationDistanceField(Config{
		Size:        r3.Vector{X: 0.6, Y: 0.6, Z: 0.6},
		Origin:      r3.Vector{X: -0.3, Y: -0.3, Z: -0.3},
		Resolution:  testResolution,
		MaxDistance: maxDistance,
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return f
}

// bruteForce returns the capped distance from a voxel to the nearest obstacle voxel.
func bruteForce(f *PropagationDistanceField, obstacles []VoxelCoords, c VoxelCoords) float64 {
	best := math.Inf(1)
	for _, o := range obstacles {
		best = math.Min(best, math.Sqrt(float64(c.DistSq(o)))*f.Resolution())
	}
	return math.Min(best, f.MaxDistance())
}

func assertMatchesBruteForce(t *testing.T, f *PropagationDistanceField) {
	t.Helper()
	dims := f.Dims()
	obstacles := f.OccupiedVoxels()
	worst := 0.0
	for i := 0; i < dims.I; i++ {
		for j := 0; j < dims.J; j++ {
			for k := 0; k < dims.K; k++ {
				c := VoxelCoords{i, j, k}
				got := f.DistanceAt(c)
				want := bruteForce(f, obstacles, c)
				// The stored distance always belongs to a real obstacle voxel, so it never undershoots.
				test.That(t, got, test.ShouldBeGreaterThanOrEqualTo, want-1e-9)
				worst = math.Max(worst, got-want)
			}
		}
	}
	test.That(t, worst, test.ShouldBeLessThanOrEqualTo, f.Resolution())
}

func TestConfigValidate(t *testing.T) {
	good := Config{Size: r3.Vector{X: 1, Y: 1, Z: 1}, Resolution: 0.1, MaxDistance: 0.5}
	test.That(t, good.Validate(), test.ShouldBeNil)

	bad := good
	bad.Resolution = 0
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = good
	bad.Size.Z = 0.05
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = good
	bad.MaxDistance = 200
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
	bad = good
	bad.MaxDistance = -1
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	_, err := NewPropagationDistanceField(bad, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGridConversions(t *testing.T) {
	f := newTestField(t, 0.1)
	test.That(t, f.Dims(), test.ShouldResemble, VoxelCoords{30, 30, 30})

	c, ok := f.WorldToGrid(r3.Vector{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, c, test.ShouldResemble, VoxelCoords{15, 15, 15})
	pt := f.GridToWorld(c)
	test.That(t, pt.Norm(), test.ShouldAlmostEqual, 0, 1e-12)

	// Anything within half a cell maps to the same voxel.
	c2, _ := f.WorldToGrid(r3.Vector{X: 0.009, Y: -0.009})
	test.That(t, c2.IsEqual(c), test.ShouldBeTrue)

	_, ok = f.WorldToGrid(r3.Vector{X: 0.5})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestLookupSingleObstacle(t *testing.T) {
	f := newTestField(t, 0.2)
	test.That(t, f.AddPoints([]r3.Vector{{}}), test.ShouldEqual, 1)
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 1)

	d, grad, inBounds := f.Lookup(r3.Vector{})
	test.That(t, inBounds, test.ShouldBeTrue)
	test.That(t, d, test.ShouldAlmostEqual, 0)
	test.That(t, grad, test.ShouldResemble, r3.Vector{})

	d, grad, _ = f.Lookup(r3.Vector{X: 0.10})
	test.That(t, d, test.ShouldAlmostEqual, 0.10)
	test.That(t, grad.X, test.ShouldAlmostEqual, 1)

	// A 3-4-5 triangle is exact on the grid.
	d, grad, _ = f.Lookup(r3.Vector{X: -0.06, Y: 0.08})
	test.That(t, d, test.ShouldAlmostEqual, 0.10)
	test.That(t, grad.X, test.ShouldAlmostEqual, -0.6)
	test.That(t, grad.Y, test.ShouldAlmostEqual, 0.8)

	closest, ok := f.ClosestObstacle(r3.Vector{X: 0.1, Z: 0.1})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, closest.Norm(), test.ShouldAlmostEqual, 0, 1e-12)

	// Beyond max distance the field reports exactly max distance.
	d, grad, inBounds = f.Lookup(r3.Vector{X: 0.26, Y: 0.2})
	test.That(t, inBounds, test.ShouldBeTrue)
	test.That(t, d, test.ShouldEqual, 0.2)
	test.That(t, grad, test.ShouldResemble, r3.Vector{})
	_, ok = f.ClosestObstacle(r3.Vector{X: 0.26, Y: 0.2})
	test.That(t, ok, test.ShouldBeFalse)

	// Out of bounds is tolerated.
	d, grad, inBounds = f.Lookup(r3.Vector{X: 5})
	test.That(t, inBounds, test.ShouldBeFalse)
	test.That(t, d, test.ShouldEqual, 0.2)
	test.That(t, grad, test.ShouldResemble, r3.Vector{})
	test.That(t, f.Distance(r3.Vector{X: 5}), test.ShouldEqual, 0.2)
	test.That(t, f.DistanceAt(VoxelCoords{-1, 0, 0}), test.ShouldEqual, 0.2)
}

func TestEmptyField(t *testing.T) {
	f := newTestField(t, 0.1)
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 0)
	test.That(t, f.Distance(r3.Vector{}), test.ShouldEqual, 0.1)
	test.That(t, f.AddPoints([]r3.Vector{{X: 4}}), test.ShouldEqual, 0)
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 0)
}

func randomPoints(r *rand.Rand, n int, extent float64) []r3.Vector {
	pts := make([]r3.Vector, n)
	for i := range pts {
		pts[i] = r3.Vector{
			X: (r.Float64()*2 - 1) * extent,
			Y: (r.Float64()*2 - 1) * extent,
			Z: (r.Float64()*2 - 1) * extent,
		}
	}
	return pts
}

func TestBuildMatchesBruteForce(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	f := newTestField(t, 0.12)
	f.Build(randomPoints(r, 20, 0.25))
	test.That(t, f.OccupiedCount(), test.ShouldBeGreaterThan, 0)

	for _, o := range f.OccupiedVoxels() {
		test.That(t, f.Distance(f.GridToWorld(o)), test.ShouldAlmostEqual, 0)
	}
	assertMatchesBruteForce(t, f)
}

func TestIncrementalUpdates(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(11))
	f := newTestField(t, 0.12)
	keep := randomPoints(r, 10, 0.25)
	drop := randomPoints(r, 10, 0.25)

	f.AddPoints(keep)
	f.AddPoints(drop)
	assertMatchesBruteForce(t, f)

	f.RemovePoints(drop)
	assertMatchesBruteForce(t, f)

	fresh := newTestField(t, 0.12)
	fresh.Build(keep)
	test.That(t, f.OccupiedVoxels(), test.ShouldResemble, fresh.OccupiedVoxels())

	f.RemovePoints(keep)
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 0)
	test.That(t, f.Distance(keep[0]), test.ShouldEqual, 0.12)
}

func TestReferenceCountedOccupancy(t *testing.T) {
	f := newTestField(t, 0.1)
	pt := r3.Vector{X: 0.04}
	f.AddPoints([]r3.Vector{pt, pt})
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 1)

	test.That(t, f.RemovePoints([]r3.Vector{pt}), test.ShouldEqual, 1)
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 1)
	test.That(t, f.Distance(pt), test.ShouldAlmostEqual, 0)

	f.RemovePoints([]r3.Vector{pt})
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 0)
	test.That(t, f.Distance(pt), test.ShouldEqual, 0.1)

	// Removing a free voxel is a no-op.
	test.That(t, f.RemovePoints([]r3.Vector{pt}), test.ShouldEqual, 0)

	f.AddPoints([]r3.Vector{pt})
	f.Reset()
	test.That(t, f.OccupiedCount(), test.ShouldEqual, 0)
	test.That(t, f.Distance(pt), test.ShouldEqual, 0.1)
}

func TestRemovalRegionIsLocal(t *testing.T) {
	f := newTestField(t, 0.07)
	dims := f.Dims()

	center := VoxelCoords{15, 15, 15}
	lo, hi := f.affectedRegion(map[int32]bool{int32(f.grid.index(center)): true})
	test.That(t, lo, test.ShouldResemble, VoxelCoords{11, 11, 11})
	test.That(t, hi, test.ShouldResemble, VoxelCoords{19, 19, 19})

	corner := VoxelCoords{1, 0, dims.K - 1}
	lo, hi = f.affectedRegion(map[int32]bool{
		int32(f.grid.index(corner)): true,
		int32(f.grid.index(center)): true,
	})
	test.That(t, lo, test.ShouldResemble, VoxelCoords{0, 0, 11})
	test.That(t, hi, test.ShouldResemble, VoxelCoords{19, 19, dims.K - 1})

	// a far obstacle keeps its distances while a near one is removed
	near, far := f.GridToWorld(center), f.GridToWorld(VoxelCoords{2, 2, 2})
	f.AddPoints([]r3.Vector{near, far})
	sample := f.GridToWorld(VoxelCoords{4, 2, 2})
	before := f.Distance(sample)
	f.RemovePoints([]r3.Vector{near})
	test.That(t, f.Distance(sample), test.ShouldEqual, before)
	test.That(t, f.Distance(near), test.ShouldEqual, 0.07)
	assertMatchesBruteForce(t, f)
}
