// Package referenceframe describes the kinematic model of a robot: links carrying collision
// geometry, joints moving them, named planning groups, and the states that place every link
// in the world.
package referenceframe

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/proximity/spatialmath"
)

// World is the name of the root frame every model hangs from.
const World = "world"

// JointType is the kind of motion a joint allows.
type JointType string

// The supported joint types.
const (
	FixedJoint     = JointType("fixed")
	RevoluteJoint  = JointType("revolute")
	PrismaticJoint = JointType("prismatic")
)

// Limit represents the limits of motion for a joint.
type Limit struct {
	Min float64
	Max float64
}

// Link is a rigid body of the model. Geometry is expressed in the link frame and may be nil.
type Link struct {
	Name     string
	Parent   string
	Offset   spatialmath.Pose
	Geometry spatialmath.Geometry
}

// Joint moves its child frames relative to its parent. Revolute values are radians about Axis,
// prismatic values are meters along Axis.
type Joint struct {
	Name   string
	Type   JointType
	Parent string
	Offset spatialmath.Pose
	Axis   r3.Vector
	Limit  Limit
}

// transform returns the pose the joint contributes at the given value.
func (j *Joint) transform(value float64) spatialmath.Pose {
	switch j.Type {
	case RevoluteJoint:
		rot := spatialmath.NewPoseFromOrientation(&spatialmath.R4AA{Theta: value, RX: j.Axis.X, RY: j.Axis.Y, RZ: j.Axis.Z})
		return spatialmath.Compose(j.Offset, rot)
	case PrismaticJoint:
		axis := j.Axis
		if n := axis.Norm(); n > 0 {
			axis = axis.Mul(1 / n)
		}
		return spatialmath.Compose(j.Offset, spatialmath.NewPoseFromPoint(axis.Mul(value)))
	default:
		return j.Offset
	}
}

// InLimits returns whether value is inside the joint limits. Fixed joints and joints without
// limits accept anything.
func (j *Joint) InLimits(value float64) bool {
	if j.Type == FixedJoint || (j.Limit.Min == 0 && j.Limit.Max == 0) {
		return true
	}
	return value >= j.Limit.Min && value <= j.Limit.Max
}

// frameNode is one entry of the topologically ordered frame tree.
type frameNode struct {
	name   string
	parent string
	link   *Link
	joint  *Joint
}

// Model is an immutable kinematic model.
type Model struct {
	name   string
	frames []frameNode // parents always precede children

	links      map[string]*Link
	linkOrder  []string
	joints     map[string]*Joint
	jointOrder []string

	// parentLink is the closest ancestor link of each link, or "" for root links.
	parentLink map[string]string

	groups     map[string][]string
	groupOrder []string

	disabledCollisions map[[2]string]bool
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// LinkNames returns the link names in tree order, parents first.
func (m *Model) LinkNames() []string {
	return append([]string(nil), m.linkOrder...)
}

// Link looks up a link by name.
func (m *Model) Link(name string) (*Link, bool) {
	l, ok := m.links[name]
	return l, ok
}

// JointNames returns the joint names in tree order.
func (m *Model) JointNames() []string {
	return append([]string(nil), m.jointOrder...)
}

// Joint looks up a joint by name.
func (m *Model) Joint(name string) (*Joint, bool) {
	j, ok := m.joints[name]
	return j, ok
}

// GroupNames returns the defined group names, sorted.
func (m *Model) GroupNames() []string {
	return append([]string(nil), m.groupOrder...)
}

// Group returns the links of a group, in tree order.
func (m *Model) Group(name string) ([]string, error) {
	links, ok := m.groups[name]
	if !ok {
		return nil, NewUnknownGroupError(name)
	}
	return append([]string(nil), links...), nil
}

// ParentLink returns the closest ancestor link of a link, or "" when the link hangs from world.
func (m *Model) ParentLink(link string) string {
	return m.parentLink[link]
}

// AdjacentLinks reports whether one link is the other's closest ancestor link.
func (m *Model) AdjacentLinks(a, b string) bool {
	return (m.parentLink[a] == b && b != "") || (m.parentLink[b] == a && a != "")
}

// CollisionDisabled reports whether the model's default rules ignore collisions between two links.
func (m *Model) CollisionDisabled(a, b string) bool {
	return m.disabledCollisions[pairKey(a, b)]
}

// DisabledCollisions returns the disabled pairs, each sorted, in sorted order.
func (m *Model) DisabledCollisions() [][2]string {
	pairs := lo.Keys(m.disabledCollisions)
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}

// NewKinematicState returns a state with every joint at zero.
func (m *Model) NewKinematicState() *KinematicState {
	values := make(map[string]float64, len(m.joints))
	for _, name := range m.jointOrder {
		values[name] = 0
	}
	return &KinematicState{model: m, values: values}
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}
