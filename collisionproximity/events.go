package collisionproximity

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/proximity/bodydecomposition"
	"go.viam.com/proximity/referenceframe"
	"go.viam.com/proximity/spatialmath"
	"go.viam.com/proximity/utils"
)

// AttachedObject is an object carried by a robot link. Geometries are expressed in the link's
// frame. The object is never checked against its link or the links named in TouchLinks.
type AttachedObject struct {
	Name       string
	Link       string
	TouchLinks []string
	Geometries []spatialmath.Geometry
	Padding    float64
}

type attachedObject struct {
	AttachedObject
	keys []string
}

type staticObject struct {
	name       string
	geometries []spatialmath.Geometry
	padding    float64
	keys       []string
}

// Decomposition keys carry a generation so an object can be loaded again before its earlier
// parts are removed.
func staticKey(name string, gen uint64, i int) string {
	return fmt.Sprintf("static/%s/%d/%d", name, gen, i)
}

func attachedKey(name string, gen uint64, i int) string {
	return fmt.Sprintf("attached/%s/%d/%d", name, gen, i)
}

// nextGeneration must be called with objectsMu held.
func (s *Space) nextGeneration() uint64 {
	s.objectGen++
	return s.objectGen
}

// loadParts decomposes every geometry under its key, removing what was loaded on failure.
func (s *Space) loadParts(
	geometries []spatialmath.Geometry,
	padding float64,
	key func(int) string,
) ([]string, *bodydecomposition.BodyDecompositionVector, error) {
	keys := make([]string, 0, len(geometries))
	parts := make([]*bodydecomposition.BodyDecomposition, 0, len(geometries))
	for i, g := range geometries {
		bd, err := s.store.LoadDecomposition(key(i), g, padding)
		if err != nil {
			s.removeParts(keys)
			return nil, nil, err
		}
		keys = append(keys, key(i))
		parts = append(parts, bd)
	}
	return keys, bodydecomposition.NewBodyDecompositionVector(parts...), nil
}

func (s *Space) removeParts(keys []string) {
	for _, k := range keys {
		s.store.Remove(k)
	}
}

// attachedVector looks up the decompositions of an attached object.
func (s *Space) attachedVector(obj *attachedObject) (*bodydecomposition.BodyDecompositionVector, error) {
	parts := make([]*bodydecomposition.BodyDecomposition, 0, len(obj.keys))
	for _, k := range obj.keys {
		bd, err := s.store.Decomposition(k)
		if err != nil {
			return nil, err
		}
		parts = append(parts, bd)
	}
	return bodydecomposition.NewBodyDecompositionVector(parts...), nil
}

// checkObjectName rejects names that are invalid or already used by a link, or by an object
// of the other kind.
func (s *Space) checkObjectName(name string, attached bool) error {
	if err := utils.ValidateName(name); err != nil {
		return err
	}
	if _, ok := s.model.Link(name); ok {
		return NewObjectNameConflictError(name, "a robot link")
	}
	if _, ok := s.attachedObjects[name]; ok && !attached {
		return NewObjectNameConflictError(name, "an attached object")
	}
	return nil
}

func (s *Space) updateObjectMetrics() {
	s.metrics.staticObjects.Set(float64(len(s.staticObjects)))
	s.metrics.attachedObjects.Set(float64(len(s.attachedObjects)))
	s.metrics.occupiedVoxels.Set(float64(s.field.OccupiedCount()))
}

// AddStaticObject places an object in the environment, given by world frame geometries, and
// inserts it into the distance field. An object of the same name is replaced, and kept when the
// new geometries cannot be decomposed. It waits for the active session to be reverted.
func (s *Space) AddStaticObject(ctx context.Context, name string, geometries []spatialmath.Geometry, padding float64) error {
	if len(geometries) == 0 {
		return errors.Errorf("static object %q has no geometries", name)
	}
	if padding < 0 {
		return errors.Errorf("static object %q has negative padding %.4f", name, padding)
	}
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.objectsMu.Lock()
	defer s.objectsMu.Unlock()

	if err := s.checkObjectName(name, false); err != nil {
		return err
	}

	gen := s.nextGeneration()
	keys, vector, err := s.loadParts(geometries, padding, func(i int) string { return staticKey(name, gen, i) })
	if err != nil {
		return err
	}
	s.removeStaticObject(name)
	inserted := s.obstacles.add(name, vector.CollisionPoints())
	s.staticObjects[name] = &staticObject{
		name:       name,
		geometries: append([]spatialmath.Geometry(nil), geometries...),
		padding:    padding,
		keys:       keys,
	}
	s.updateObjectMetrics()
	s.logger.CDebugw(ctx, "added static object", "name", name, "geometries", len(geometries), "points", inserted)
	return nil
}

// RemoveStaticObject takes an object out of the environment and the distance field.
func (s *Space) RemoveStaticObject(ctx context.Context, name string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.objectsMu.Lock()
	defer s.objectsMu.Unlock()

	if !s.removeStaticObject(name) {
		return NewUnknownObjectError(name)
	}
	s.updateObjectMetrics()
	s.logger.CDebugw(ctx, "removed static object", "name", name)
	return nil
}

func (s *Space) removeStaticObject(name string) bool {
	obj, ok := s.staticObjects[name]
	if !ok {
		return false
	}
	s.obstacles.remove(name)
	s.removeParts(obj.keys)
	delete(s.staticObjects, name)
	return true
}

// AttachObject attaches an object to a robot link, replacing an attached object of the same name.
// The earlier object is kept when the new one cannot be decomposed.
//
// A static object of the same name is converted: it leaves the environment and, when obj has no
// geometries of its own, its geometries are re-expressed in the link frame at the given state.
// state may be nil otherwise.
func (s *Space) AttachObject(ctx context.Context, obj AttachedObject, state *referenceframe.KinematicState) error {
	if _, ok := s.model.Link(obj.Link); !ok {
		return referenceframe.NewUnknownLinkError(obj.Link)
	}
	for _, l := range obj.TouchLinks {
		if _, ok := s.model.Link(l); !ok {
			return referenceframe.NewUnknownLinkError(l)
		}
	}
	if obj.Padding < 0 {
		return errors.Errorf("attached object %q has negative padding %.4f", obj.Name, obj.Padding)
	}
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.objectsMu.Lock()
	defer s.objectsMu.Unlock()

	if err := s.checkObjectName(obj.Name, true); err != nil {
		return err
	}

	geometries := obj.Geometries
	padding := obj.Padding
	static, converting := s.staticObjects[obj.Name]
	if len(geometries) == 0 {
		if !converting {
			return errors.Errorf("attached object %q has no geometries", obj.Name)
		}
		if state == nil {
			return errors.Errorf("a kinematic state is needed to attach static object %q to %q", obj.Name, obj.Link)
		}
		linkPose, err := state.LinkPose(obj.Link)
		if err != nil {
			return err
		}
		toLink := spatialmath.PoseInverse(linkPose)
		geometries = lo.Map(static.geometries, func(g spatialmath.Geometry, _ int) spatialmath.Geometry {
			return g.Transform(toLink)
		})
		if padding == 0 {
			padding = static.padding
		}
	}

	gen := s.nextGeneration()
	keys, _, err := s.loadParts(geometries, padding, func(i int) string { return attachedKey(obj.Name, gen, i) })
	if err != nil {
		return err
	}
	if existing, ok := s.attachedObjects[obj.Name]; ok {
		s.removeParts(existing.keys)
	}
	if converting {
		s.removeStaticObject(obj.Name)
	}

	stored := obj
	stored.TouchLinks = append([]string(nil), obj.TouchLinks...)
	stored.Geometries = geometries
	stored.Padding = padding
	s.attachedObjects[obj.Name] = &attachedObject{AttachedObject: stored, keys: keys}
	s.updateObjectMetrics()
	s.logger.CDebugw(ctx, "attached object", "name", obj.Name, "link", obj.Link, "converted", converting)
	return nil
}

// DetachObject removes an attached object.
func (s *Space) DetachObject(ctx context.Context, name string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()
	s.objectsMu.Lock()
	defer s.objectsMu.Unlock()

	obj, ok := s.attachedObjects[name]
	if !ok {
		return NewUnknownObjectError(name)
	}
	s.removeParts(obj.keys)
	delete(s.attachedObjects, name)
	s.updateObjectMetrics()
	s.logger.CDebugw(ctx, "detached object", "name", name, "link", obj.Link)
	return nil
}

// StaticObjectNames returns the names of the static objects, sorted.
func (s *Space) StaticObjectNames() []string {
	s.objectsMu.RLock()
	defer s.objectsMu.RUnlock()
	names := lo.Keys(s.staticObjects)
	sort.Strings(names)
	return names
}

// AttachedObjectNames returns the names of the attached objects, sorted.
func (s *Space) AttachedObjectNames() []string {
	s.objectsMu.RLock()
	defer s.objectsMu.RUnlock()
	names := lo.Keys(s.attachedObjects)
	sort.Strings(names)
	return names
}

// AttachedObject returns a copy of an attached object as stored, with geometries in its link frame.
func (s *Space) AttachedObject(name string) (AttachedObject, error) {
	s.objectsMu.RLock()
	defer s.objectsMu.RUnlock()
	obj, ok := s.attachedObjects[name]
	if !ok {
		return AttachedObject{}, NewUnknownObjectError(name)
	}
	out := obj.AttachedObject
	out.TouchLinks = append([]string(nil), obj.TouchLinks...)
	out.Geometries = append([]spatialmath.Geometry(nil), obj.Geometries...)
	return out, nil
}
