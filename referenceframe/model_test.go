package referenceframe

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/proximity/spatialmath"
)

func loadArm(t *testing.T) *Model {
	t.Helper()
	m, err := ParseModelJSONFile("testdata/arm7.json", "")
	test.That(t, err, test.ShouldBeNil)
	return m
}

func TestParseModelJSONFile(t *testing.T) {
	m := loadArm(t)
	test.That(t, m.Name(), test.ShouldEqual, "arm7")
	test.That(t, cmp.Diff(m.LinkNames(), []string{"base", "l1", "l2", "l3", "l4", "l5", "l6", "l7", "tool"}), test.ShouldBeEmpty)
	test.That(t, len(m.JointNames()), test.ShouldEqual, 7)
	test.That(t, m.GroupNames(), test.ShouldResemble, []string{"arm", "upper", "wrist"})

	upper, err := m.Group("upper")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, upper, test.ShouldResemble, []string{"l4", "l5", "l6", "l7"})

	_, err = m.Group("legs")
	test.That(t, errors.Is(err, ErrGroupNotFound), test.ShouldBeTrue)

	base, ok := m.Link("base")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, base.Geometry, test.ShouldBeNil)
	l1, _ := m.Link("l1")
	test.That(t, l1.Geometry, test.ShouldNotBeNil)
	test.That(t, l1.Geometry.Label(), test.ShouldEqual, "l1")

	test.That(t, m.ParentLink("l1"), test.ShouldEqual, "base")
	test.That(t, m.ParentLink("base"), test.ShouldEqual, "")
	test.That(t, m.AdjacentLinks("l2", "l3"), test.ShouldBeTrue)
	test.That(t, m.AdjacentLinks("l3", "l2"), test.ShouldBeTrue)
	test.That(t, m.AdjacentLinks("l2", "l4"), test.ShouldBeFalse)
	test.That(t, m.CollisionDisabled("l1", "l3"), test.ShouldBeTrue)
	test.That(t, m.DisabledCollisions(), test.ShouldResemble, [][2]string{{"l1", "l3"}})
}

func TestBadModels(t *testing.T) {
	for _, tc := range []struct {
		name     string
		json     string
		expected string
	}{
		{"world link", `{"links":[{"id":"world"}]}`, "reserved word"},
		{"duplicate", `{"links":[{"id":"a"}],"joints":[{"id":"a","type":"fixed"}]}`, "duplicate"},
		{"missing parent", `{"links":[{"id":"a","parent":"b"}]}`, "neither world"},
		{"cycle", `{"links":[{"id":"a","parent":"j"}],"joints":[{"id":"j","type":"fixed","parent":"a"}]}`, "infinite loop"},
		{"joint type", `{"joints":[{"id":"j","type":"spherical"}]}`, "unsupported type"},
		{"group link", `{"links":[{"id":"a"}],"groups":[{"name":"g","links":["b"]}]}`, "unknown link"},
		{"pair link", `{"links":[{"id":"a"}],"disabled_collisions":[["a","b"]]}`, "unknown link"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnmarshalModelJSON([]byte(tc.json), "")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
		})
	}
	_, err := UnmarshalModelJSON(nil, "")
	test.That(t, err, test.ShouldEqual, ErrNoModelInformation)
}

func TestKinematicState(t *testing.T) {
	m := loadArm(t)
	state := m.NewKinematicState()

	pose, err := state.LinkPose("l3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(pose.Point(), r3.Vector{Z: 0.8}, 1e-9), test.ShouldBeTrue)
	tool, err := state.LinkPose("tool")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(tool.Point(), r3.Vector{Z: 2.8}, 1e-9), test.ShouldBeTrue)

	// Bending j2 by 90 degrees about Y swings everything above it towards +X.
	test.That(t, state.SetJointValues(map[string]float64{"j2": math.Pi / 2}), test.ShouldBeNil)
	pose, err = state.LinkPose("l3")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.R3VectorAlmostEqual(pose.Point(), r3.Vector{X: 0.4, Z: 0.4}, 1e-9), test.ShouldBeTrue)

	clone := state.Clone()
	test.That(t, clone.SetJointValues(map[string]float64{"j2": 0}), test.ShouldBeNil)
	v, err := state.JointValue("j2")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldAlmostEqual, math.Pi/2)

	err = state.SetJointValues(map[string]float64{"j2": 0, "nope": 1})
	test.That(t, errors.Is(err, ErrUnknownJoint), test.ShouldBeTrue)
	v, _ = state.JointValue("j2")
	test.That(t, v, test.ShouldAlmostEqual, math.Pi/2)

	err = state.SetJointValues(map[string]float64{"j3": 4})
	test.That(t, err.Error(), test.ShouldContainSubstring, OOBErrString)

	_, err = state.LinkPose("j3")
	test.That(t, errors.Is(err, ErrUnknownLink), test.ShouldBeTrue)
	test.That(t, len(state.LinkPoses()), test.ShouldEqual, 9)
	test.That(t, state.JointNamesSorted()[0], test.ShouldEqual, "j1")
}

func TestParseJointValues(t *testing.T) {
	values, err := ParseJointValues(" j1=0.5, j2 = -1 ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldResemble, map[string]float64{"j1": 0.5, "j2": -1})

	values, err = ParseJointValues("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldBeEmpty)

	_, err = ParseJointValues("j1")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ParseJointValues("j1=abc")
	test.That(t, err, test.ShouldNotBeNil)
}
