package referenceframe

import (
	"sort"

	"go.viam.com/proximity/spatialmath"
)

// KinematicState holds a value for every joint of a model and places its links in the world.
// It is not safe for concurrent mutation.
type KinematicState struct {
	model  *Model
	values map[string]float64
}

// Model returns the model the state belongs to.
func (s *KinematicState) Model() *Model {
	return s.model
}

// SetJointValues updates the named joints. Unknown joints and out of limit values are errors, in
// which case the state is left unchanged.
func (s *KinematicState) SetJointValues(values map[string]float64) error {
	for name, v := range values {
		joint, ok := s.model.joints[name]
		if !ok {
			return NewUnknownJointError(name)
		}
		if !joint.InLimits(v) {
			return NewJointOutOfBoundsError(name, v, joint.Limit)
		}
	}
	for name, v := range values {
		s.values[name] = v
	}
	return nil
}

// JointValue returns the current value of a joint.
func (s *KinematicState) JointValue(name string) (float64, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, NewUnknownJointError(name)
	}
	return v, nil
}

// JointValues returns a copy of all joint values.
func (s *KinematicState) JointValues() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy of the state.
func (s *KinematicState) Clone() *KinematicState {
	return &KinematicState{model: s.model, values: s.JointValues()}
}

// LinkPoses returns the world pose of every link.
func (s *KinematicState) LinkPoses() map[string]spatialmath.Pose {
	poses := make(map[string]spatialmath.Pose, len(s.model.frames)+1)
	poses[World] = spatialmath.NewZeroPose()
	for _, node := range s.model.frames {
		var local spatialmath.Pose
		if node.link != nil {
			local = node.link.Offset
		} else {
			local = node.joint.transform(s.values[node.name])
		}
		poses[node.name] = spatialmath.Compose(poses[node.parent], local)
	}

	linkPoses := make(map[string]spatialmath.Pose, len(s.model.links))
	for name := range s.model.links {
		linkPoses[name] = poses[name]
	}
	return linkPoses
}

// LinkPose returns the world pose of one link.
func (s *KinematicState) LinkPose(name string) (spatialmath.Pose, error) {
	if _, ok := s.model.links[name]; !ok {
		return nil, NewUnknownLinkError(name)
	}
	return s.LinkPoses()[name], nil
}

// JointNamesSorted returns the joint names in lexical order.
func (s *KinematicState) JointNamesSorted() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
