package main

import (
	"context"
	"encoding/json"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"

	"go.viam.com/proximity/collisionproximity"
	"go.viam.com/proximity/referenceframe"
	"go.viam.com/proximity/spatialmath"
)

// sceneObject is a static object given in world frame geometries.
type sceneObject struct {
	Name       string                       `json:"name"`
	Padding    float64                      `json:"padding,omitempty"`
	Geometries []spatialmath.GeometryConfig `json:"geometries"`
}

// attachedSceneObject is an object carried by a link, its geometries in the link frame.
type attachedSceneObject struct {
	Name       string                       `json:"name"`
	Link       string                       `json:"link"`
	TouchLinks []string                     `json:"touch_links,omitempty"`
	Padding    float64                      `json:"padding,omitempty"`
	Geometries []spatialmath.GeometryConfig `json:"geometries"`
}

type scene struct {
	Objects  []sceneObject         `json:"objects"`
	Attached []attachedSceneObject `json:"attached,omitempty"`
}

func parseGeometries(name string, configs []spatialmath.GeometryConfig) ([]spatialmath.Geometry, error) {
	geometries := make([]spatialmath.Geometry, 0, len(configs))
	for i := range configs {
		g, err := configs[i].ParseConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "object %q geometry %d", name, i)
		}
		geometries = append(geometries, g)
	}
	return geometries, nil
}

// readScene reads a scene file, substituting environment variables first.
func readScene(filename string) (*scene, error) {
	data, err := envsubst.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scene file")
	}
	sc := &scene{}
	if err := json.Unmarshal(data, sc); err != nil {
		return nil, errors.Wrap(err, "failed to parse scene file")
	}
	return sc, nil
}

// apply adds the scene's objects to the space. Attached objects without geometries convert the
// static object of the same name, placed on their link at the given state.
func (sc *scene) apply(ctx context.Context, space *collisionproximity.Space, state *referenceframe.KinematicState) error {
	for _, obj := range sc.Objects {
		geometries, err := parseGeometries(obj.Name, obj.Geometries)
		if err != nil {
			return err
		}
		if err := space.AddStaticObject(ctx, obj.Name, geometries, obj.Padding); err != nil {
			return err
		}
	}
	for _, obj := range sc.Attached {
		geometries, err := parseGeometries(obj.Name, obj.Geometries)
		if err != nil {
			return err
		}
		attached := collisionproximity.AttachedObject{
			Name:       obj.Name,
			Link:       obj.Link,
			TouchLinks: obj.TouchLinks,
			Geometries: geometries,
			Padding:    obj.Padding,
		}
		if err := space.AttachObject(ctx, attached, state); err != nil {
			return err
		}
	}
	return nil
}
