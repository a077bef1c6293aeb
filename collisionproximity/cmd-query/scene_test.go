package main

import (
	"context"
	"testing"

	"go.viam.com/test"

	"go.viam.com/proximity/collisionproximity"
	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/referenceframe"
)

func TestReadScene(t *testing.T) {
	t.Setenv("CUP_PADDING", "0.01")
	sc, err := readScene("testdata/scene.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(sc.Objects), test.ShouldEqual, 2)
	test.That(t, sc.Objects[1].Name, test.ShouldEqual, "cup")
	test.That(t, sc.Objects[1].Padding, test.ShouldEqual, 0.01)
	test.That(t, sc.Attached[0].TouchLinks, test.ShouldResemble, []string{"l6"})

	_, err = readScene("testdata/missing.json")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestApplyScene(t *testing.T) {
	t.Setenv("CUP_PADDING", "0")
	model, err := referenceframe.ParseModelJSONFile("../../referenceframe/testdata/arm7.json", "")
	test.That(t, err, test.ShouldBeNil)
	cfg := collisionproximity.NewDefaultConfig()
	cfg.Resolution = 0.05
	space, err := collisionproximity.NewSpace(model, cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	sc, err := readScene("testdata/scene.json")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sc.apply(context.Background(), space, model.NewKinematicState()), test.ShouldBeNil)
	test.That(t, space.StaticObjectNames(), test.ShouldResemble, []string{"cup", "table"})
	test.That(t, space.AttachedObjectNames(), test.ShouldResemble, []string{"gripper"})
	test.That(t, space.DistanceField().OccupiedCount(), test.ShouldBeGreaterThan, 0)

	sc.Objects[0].Geometries[0].X = -1
	err = sc.apply(context.Background(), space, model.NewKinematicState())
	test.That(t, err, test.ShouldNotBeNil)
}
