package referenceframe

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/proximity/spatialmath"
)

// ModelConfigJSON represents all supported fields in a kinematics JSON file.
type ModelConfigJSON struct {
	Name               string        `json:"name"`
	Links              []LinkConfig  `json:"links,omitempty"`
	Joints             []JointConfig `json:"joints,omitempty"`
	Groups             []GroupConfig `json:"groups,omitempty"`
	DisabledCollisions [][2]string   `json:"disabled_collisions,omitempty"`
}

// LinkConfig is a link in a kinematics JSON file. Parent is world, a joint or another link.
type LinkConfig struct {
	ID          string                         `json:"id"`
	Parent      string                         `json:"parent,omitempty"`
	Translation r3.Vector                      `json:"translation"`
	Orientation *spatialmath.OrientationConfig `json:"orientation,omitempty"`
	Geometry    *spatialmath.GeometryConfig    `json:"geometry,omitempty"`
}

// JointConfig is a joint in a kinematics JSON file. Parent is world, a link or another joint.
type JointConfig struct {
	ID          string                         `json:"id"`
	Type        JointType                      `json:"type"`
	Parent      string                         `json:"parent"`
	Translation r3.Vector                      `json:"translation"`
	Orientation *spatialmath.OrientationConfig `json:"orientation,omitempty"`
	Axis        r3.Vector                      `json:"axis"`
	Min         float64                        `json:"min"`
	Max         float64                        `json:"max"`
}

// GroupConfig names a set of links that are queried together.
type GroupConfig struct {
	Name  string   `json:"name"`
	Links []string `json:"links"`
}

// UnmarshalModelJSON will parse the given JSON data into a kinematics model. modelName sets the name of the model,
// will use the name from the JSON if string is empty.
func UnmarshalModelJSON(jsonData []byte, modelName string) (*Model, error) {
	// empty data probably means that the robot has no model information
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}

	m := &ModelConfigJSON{}
	if err := json.Unmarshal(jsonData, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}
	return m.ParseConfig(modelName)
}

// ParseModelJSONFile will read a given file and then parse the contained JSON data.
func ParseModelJSONFile(filename, modelName string) (*Model, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalModelJSON(jsonData, modelName)
}

func offsetPose(translation r3.Vector, orientation *spatialmath.OrientationConfig) (spatialmath.Pose, error) {
	if orientation == nil {
		return spatialmath.NewPoseFromPoint(translation), nil
	}
	o, err := orientation.ParseConfig()
	if err != nil {
		return nil, err
	}
	return spatialmath.NewPose(translation, o), nil
}

// ParseConfig converts the ModelConfigJSON struct into a full Model with the name modelName.
func (cfg *ModelConfigJSON) ParseConfig(modelName string) (*Model, error) {
	if modelName == "" {
		modelName = cfg.Name
	}
	model := &Model{
		name:               modelName,
		links:              map[string]*Link{},
		joints:             map[string]*Joint{},
		parentLink:         map[string]string{},
		groups:             map[string][]string{},
		disabledCollisions: map[[2]string]bool{},
	}

	nodes := map[string]frameNode{}
	addNode := func(node frameNode) error {
		if node.name == World {
			return NewReservedWordError(lo.Ternary(node.link != nil, "link", "joint"), World)
		}
		if _, ok := nodes[node.name]; ok {
			return NewDuplicateNameError(node.name)
		}
		if node.parent == "" {
			node.parent = World
		}
		nodes[node.name] = node
		return nil
	}

	for _, lc := range cfg.Links {
		offset, err := offsetPose(lc.Translation, lc.Orientation)
		if err != nil {
			return nil, errors.Wrapf(err, "link %q", lc.ID)
		}
		link := &Link{Name: lc.ID, Parent: lc.Parent, Offset: offset}
		if lc.Geometry != nil {
			if link.Geometry, err = lc.Geometry.ParseConfig(); err != nil {
				return nil, errors.Wrapf(err, "link %q geometry", lc.ID)
			}
			link.Geometry.SetLabel(lc.ID)
		}
		if err := addNode(frameNode{name: lc.ID, parent: lc.Parent, link: link}); err != nil {
			return nil, err
		}
	}
	for _, jc := range cfg.Joints {
		offset, err := offsetPose(jc.Translation, jc.Orientation)
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", jc.ID)
		}
		switch jc.Type {
		case FixedJoint, RevoluteJoint, PrismaticJoint:
		default:
			return nil, errors.Errorf("joint %q has unsupported type %q", jc.ID, jc.Type)
		}
		joint := &Joint{
			Name:   jc.ID,
			Type:   jc.Type,
			Parent: jc.Parent,
			Offset: offset,
			Axis:   jc.Axis,
			Limit:  Limit{Min: jc.Min, Max: jc.Max},
		}
		if err := addNode(frameNode{name: jc.ID, parent: jc.Parent, joint: joint}); err != nil {
			return nil, err
		}
	}

	ordered, err := sortFrames(nodes)
	if err != nil {
		return nil, err
	}
	model.frames = ordered

	// closest ancestor link per frame, carried down the tree
	ancestorLink := map[string]string{World: ""}
	for _, node := range ordered {
		above := ancestorLink[node.parent]
		if node.link != nil {
			model.links[node.name] = node.link
			model.linkOrder = append(model.linkOrder, node.name)
			model.parentLink[node.name] = above
			ancestorLink[node.name] = node.name
			continue
		}
		model.joints[node.name] = node.joint
		model.jointOrder = append(model.jointOrder, node.name)
		ancestorLink[node.name] = above
	}

	linkPosition := map[string]int{}
	for i, name := range model.linkOrder {
		linkPosition[name] = i
	}
	for _, gc := range cfg.Groups {
		if gc.Name == "" {
			return nil, errors.New("group with empty name")
		}
		for _, l := range gc.Links {
			if _, ok := model.links[l]; !ok {
				return nil, errors.Wrapf(NewUnknownLinkError(l), "group %q", gc.Name)
			}
		}
		links := lo.Uniq(gc.Links)
		sort.SliceStable(links, func(i, j int) bool { return linkPosition[links[i]] < linkPosition[links[j]] })
		model.groups[gc.Name] = links
		model.groupOrder = append(model.groupOrder, gc.Name)
	}
	sort.Strings(model.groupOrder)

	for _, pair := range cfg.DisabledCollisions {
		for _, l := range pair {
			if _, ok := model.links[l]; !ok {
				return nil, errors.Wrap(NewUnknownLinkError(l), "disabled collision pair")
			}
		}
		model.disabledCollisions[pairKey(pair[0], pair[1])] = true
	}

	return model, nil
}

// sortFrames orders frames so every parent precedes its children. Siblings keep name order so
// the result is deterministic.
func sortFrames(nodes map[string]frameNode) ([]frameNode, error) {
	children := map[string][]string{}
	for name, node := range nodes {
		if node.parent != World {
			if _, ok := nodes[node.parent]; !ok {
				return nil, NewParentNotFoundError(name, node.parent)
			}
		}
		children[node.parent] = append(children[node.parent], name)
	}
	for _, c := range children {
		sort.Strings(c)
	}

	ordered := make([]frameNode, 0, len(nodes))
	queue := []string{World}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, child := range children[curr] {
			ordered = append(ordered, nodes[child])
			queue = append(queue, child)
		}
	}
	// Anything unreachable from world sits on a cycle.
	if len(ordered) != len(nodes) {
		return nil, ErrCircularReference
	}
	return ordered, nil
}
