package collisionproximity

import (
	"math"
	"strings"

	"github.com/golang/geo/r3"
)

// CollisionType classifies what a body collides with. A body can collide with several kinds of
// things at once, so the values are bit flags.
type CollisionType uint8

// The collision kinds.
const (
	NoCollision CollisionType = 0
	// SelfCollision is contact with a robot link outside the configured group.
	SelfCollision CollisionType = 1 << (iota - 1)
	// IntraGroupCollision is contact between two links of the group.
	IntraGroupCollision
	// AttachedBodyCollision is contact involving an object attached to a link of the group.
	AttachedBodyCollision
	// EnvironmentCollision is contact with a static object or an object attached outside the group.
	EnvironmentCollision
)

var collisionTypeNames = []struct {
	t    CollisionType
	name string
}{
	{SelfCollision, "self"},
	{IntraGroupCollision, "intra_group"},
	{AttachedBodyCollision, "attached_body"},
	{EnvironmentCollision, "environment"},
}

// Has reports whether every flag of other is set.
func (t CollisionType) Has(other CollisionType) bool {
	return t&other == other
}

func (t CollisionType) String() string {
	if t == NoCollision {
		return "none"
	}
	var names []string
	for _, n := range collisionTypeNames {
		if t.Has(n.t) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// CollisionRecord is the collision classification of one link or attached object.
type CollisionRecord struct {
	Name     string
	Attached bool
	Type     CollisionType
	// Partners names the bodies in contact, sorted.
	Partners []string
}

// InCollision reports whether the body touches anything.
func (r CollisionRecord) InCollision() bool {
	return r.Type != NoCollision
}

// CollisionResult holds one record per link of the group and per object attached to it, in the
// session's order.
type CollisionResult struct {
	InCollision    bool
	Links          []CollisionRecord
	AttachedBodies []CollisionRecord
}

// Record returns the record of the named body.
func (r *CollisionResult) Record(name string) (CollisionRecord, bool) {
	for _, recs := range [][]CollisionRecord{r.Links, r.AttachedBodies} {
		for _, rec := range recs {
			if rec.Name == name {
				return rec, true
			}
		}
	}
	return CollisionRecord{}, false
}

// SphereGradient is the proximity of one collision sphere. Gradient points away from the closest
// thing and is zero when nothing is in range.
type SphereGradient struct {
	Center   r3.Vector
	Radius   float64
	Distance float64
	Gradient r3.Vector
	// Partner is the closest body, or empty when the closest thing is unknown or out of range.
	Partner string
}

// BodyGradients holds the sphere gradients of one link or attached object.
type BodyGradients struct {
	Name            string
	Attached        bool
	ClosestDistance float64
	Spheres         []SphereGradient
}

// GradientResult holds the gradients of every link of the group and every object attached to
// it, in the session's order.
type GradientResult struct {
	SubtractRadii   bool
	ClosestDistance float64
	Links           []BodyGradients
	AttachedBodies  []BodyGradients
}

// LinkClosestDistances returns the closest distance of every link by name.
func (r *GradientResult) LinkClosestDistances() map[string]float64 {
	out := make(map[string]float64, len(r.Links))
	for _, l := range r.Links {
		out[l.Name] = l.ClosestDistance
	}
	return out
}

// Bodies returns the link gradients followed by the attached object gradients.
func (r *GradientResult) Bodies() []BodyGradients {
	return append(append([]BodyGradients(nil), r.Links...), r.AttachedBodies...)
}

// EnvironmentProximity is the closest approach of the group to the environment.
type EnvironmentProximity struct {
	Name     string
	Sphere   int
	Distance float64
	Gradient r3.Vector
}

func newEnvironmentProximity() EnvironmentProximity {
	return EnvironmentProximity{Sphere: -1, Distance: math.Inf(1)}
}
