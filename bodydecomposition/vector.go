package bodydecomposition

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/proximity/spatialmath"
)

// BodyDecompositionVector is an ordered set of decompositions that move together, such as the
// shapes of one attached object, each with its own current world pose. The decompositions are
// shared; only the poses and the world-frame caches belong to the vector.
//
//nolint:revive
type BodyDecompositionVector struct {
	parts []*BodyDecomposition
	poses []spatialmath.Pose

	worldSpheres [][]CollisionSphere
}

// NewBodyDecompositionVector returns a vector with every part at the identity pose.
func NewBodyDecompositionVector(parts ...*BodyDecomposition) *BodyDecompositionVector {
	v := &BodyDecompositionVector{
		parts:        parts,
		poses:        make([]spatialmath.Pose, len(parts)),
		worldSpheres: make([][]CollisionSphere, len(parts)),
	}
	for i := range parts {
		v.setPose(i, spatialmath.NewZeroPose())
	}
	return v
}

// Size returns the number of parts.
func (v *BodyDecompositionVector) Size() int {
	return len(v.parts)
}

// Part returns the i-th decomposition.
func (v *BodyDecompositionVector) Part(i int) *BodyDecomposition {
	return v.parts[i]
}

// Parts returns the decompositions in order.
func (v *BodyDecompositionVector) Parts() []*BodyDecomposition {
	return append([]*BodyDecomposition(nil), v.parts...)
}

// UpdatePoses sets the world pose of every part, in order. Nothing is changed on a length mismatch.
func (v *BodyDecompositionVector) UpdatePoses(poses ...spatialmath.Pose) error {
	if len(poses) != len(v.parts) {
		return errors.Errorf("got %d poses for %d body decompositions", len(poses), len(v.parts))
	}
	for i, p := range poses {
		v.setPose(i, p)
	}
	return nil
}

// SetPose sets the world pose of one part.
func (v *BodyDecompositionVector) SetPose(i int, pose spatialmath.Pose) error {
	if i < 0 || i >= len(v.parts) {
		return errors.Errorf("index %d out of range for %d body decompositions", i, len(v.parts))
	}
	v.setPose(i, pose)
	return nil
}

func (v *BodyDecompositionVector) setPose(i int, pose spatialmath.Pose) {
	v.poses[i] = pose
	local := v.parts[i].spheres
	world := v.worldSpheres[i][:0]
	for _, s := range local {
		world = append(world, CollisionSphere{Center: spatialmath.TransformPoint(pose, s.Center), Radius: s.Radius})
	}
	v.worldSpheres[i] = world
}

// Pose returns the current world pose of one part.
func (v *BodyDecompositionVector) Pose(i int) spatialmath.Pose {
	return v.poses[i]
}

// PartSpheres returns the world spheres of one part. The slice is reused by the next pose update.
func (v *BodyDecompositionVector) PartSpheres(i int) []CollisionSphere {
	return v.worldSpheres[i]
}

// Spheres returns the world spheres of every part, flattened in part order.
func (v *BodyDecompositionVector) Spheres() []CollisionSphere {
	var out []CollisionSphere
	for _, s := range v.worldSpheres {
		out = append(out, s...)
	}
	return out
}

// CollisionPoints returns the world collision points of every part, flattened in part order.
func (v *BodyDecompositionVector) CollisionPoints() []r3.Vector {
	var out []r3.Vector
	for i, part := range v.parts {
		for _, pt := range part.collisionPoints {
			out = append(out, spatialmath.TransformPoint(v.poses[i], pt))
		}
	}
	return out
}

// Valid reports whether every part is still held by its store.
func (v *BodyDecompositionVector) Valid() bool {
	for _, p := range v.parts {
		if !p.Valid() {
			return false
		}
	}
	return true
}
