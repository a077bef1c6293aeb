// Package bodydecomposition approximates rigid bodies with sets of spheres and surface points
// so that they can be tested against a distance field and against each other cheaply.
package bodydecomposition

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/golang/geo/r3"
	"go.uber.org/atomic"

	"go.viam.com/proximity/spatialmath"
)

// CollisionSphere is a sphere approximating part of a body.
type CollisionSphere struct {
	Center r3.Vector
	Radius float64
}

// BodyDecomposition is the immutable approximation of one body: spheres placed along the
// bounding cylinder of its padded geometry and the voxel centers filling that geometry.
// Spheres and points are expressed in the body frame, the frame the geometry's pose is
// relative to.
type BodyDecomposition struct {
	name     string
	geometry spatialmath.Geometry
	padding  float64

	spheres         []CollisionSphere
	collisionPoints []r3.Vector

	valid *atomic.Bool
}

// NewBodyDecomposition computes the decomposition of a geometry. resolution is the spacing of the
// collision points and should match the distance field the points are inserted into.
func NewBodyDecomposition(name string, geometry spatialmath.Geometry, padding, resolution float64) (*BodyDecomposition, error) {
	if geometry == nil {
		return nil, NewBadGeometryError(name, errNilGeometry)
	}
	if resolution <= 0 || padding < 0 {
		return nil, NewBadGeometryError(name, errBadParameters)
	}
	padded := geometry
	if padding > 0 {
		var err error
		if padded, err = geometry.Padded(padding); err != nil {
			return nil, NewBadGeometryError(name, err)
		}
	}
	points, err := collisionPoints(padded, resolution)
	if err != nil {
		return nil, NewBadGeometryError(name, err)
	}
	return &BodyDecomposition{
		name:            name,
		geometry:        geometry,
		padding:         padding,
		spheres:         placeSpheres(padded),
		collisionPoints: points,
		valid:           atomic.NewBool(true),
	}, nil
}

// placeSpheres lays spheres of the bounding cylinder's radius along its axis, no further than
// half a radius apart. Endpoints are skipped; a short body gets a single sphere at its center.
func placeSpheres(g spatialmath.Geometry) []CollisionSphere {
	cylPose, radius, length := g.BoundingCylinder()
	toBody := spatialmath.Compose(g.Pose(), cylPose)

	spacing := radius / 2
	numPoints := int(math.Ceil(length / spacing))
	if numPoints < 3 {
		return []CollisionSphere{{Center: toBody.Point(), Radius: radius}}
	}
	spacing = length / float64(numPoints-1)

	spheres := make([]CollisionSphere, 0, numPoints-2)
	for i := 1; i < numPoints-1; i++ {
		z := -length/2 + float64(i)*spacing
		spheres = append(spheres, CollisionSphere{
			Center: spatialmath.TransformPoint(toBody, r3.Vector{Z: z}),
			Radius: radius,
		})
	}
	return spheres
}

// collisionPoints samples the geometry's SDF on a grid of the given resolution aligned with the
// geometry frame and keeps the samples inside it. The geometry center is always kept.
func collisionPoints(g spatialmath.Geometry, resolution float64) ([]r3.Vector, error) {
	field, err := g.SDF()
	if err != nil {
		return nil, err
	}
	lo, hi := spatialmath.LocalBoundingBox(field)
	steps := func(a, b float64) (int, int) {
		return int(math.Ceil(a / resolution)), int(math.Floor(b / resolution))
	}
	i0, i1 := steps(lo.X, hi.X)
	j0, j1 := steps(lo.Y, hi.Y)
	k0, k1 := steps(lo.Z, hi.Z)

	pose := g.Pose()
	points := []r3.Vector{pose.Point()}
	for i := i0; i <= i1; i++ {
		for j := j0; j <= j1; j++ {
			for k := k0; k <= k1; k++ {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				local := r3.Vector{X: float64(i) * resolution, Y: float64(j) * resolution, Z: float64(k) * resolution}
				if field.Evaluate(v3.Vec{X: local.X, Y: local.Y, Z: local.Z}) > 0 {
					continue
				}
				points = append(points, spatialmath.TransformPoint(pose, local))
			}
		}
	}
	return points, nil
}

// Name returns the key the decomposition is stored under.
func (bd *BodyDecomposition) Name() string {
	return bd.name
}

// Geometry returns the unpadded geometry.
func (bd *BodyDecomposition) Geometry() spatialmath.Geometry {
	return bd.geometry
}

// Padding returns the padding the spheres and points were inflated by.
func (bd *BodyDecomposition) Padding() float64 {
	return bd.padding
}

// Spheres returns the body-frame spheres. The slice must not be modified.
func (bd *BodyDecomposition) Spheres() []CollisionSphere {
	return bd.spheres
}

// CollisionPoints returns the body-frame collision points. The slice must not be modified.
func (bd *BodyDecomposition) CollisionPoints() []r3.Vector {
	return bd.collisionPoints
}

// Valid is false once the decomposition has been removed from or replaced in its store.
func (bd *BodyDecomposition) Valid() bool {
	return bd.valid.Load()
}

func (bd *BodyDecomposition) invalidate() {
	bd.valid.Store(false)
}
