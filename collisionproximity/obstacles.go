package collisionproximity

import (
	"sort"

	"github.com/golang/geo/r3"

	"go.viam.com/proximity/distancefield"
)

type obstacleSource struct {
	name   string
	points []r3.Vector
}

// obstacleMap inserts named point sets into the distance field and remembers which sources own
// each obstacle voxel, so a contact found through the field can be traced back to a body.
type obstacleMap struct {
	field   *distancefield.PropagationDistanceField
	sources map[string]*obstacleSource
	owners  map[distancefield.VoxelCoords]map[string]int
}

func newObstacleMap(field *distancefield.PropagationDistanceField) *obstacleMap {
	return &obstacleMap{
		field:   field,
		sources: map[string]*obstacleSource{},
		owners:  map[distancefield.VoxelCoords]map[string]int{},
	}
}

// add inserts the points of a source, replacing any earlier points under the same name.
func (m *obstacleMap) add(name string, points []r3.Vector) int {
	m.remove(name)
	src := &obstacleSource{name: name, points: points}
	m.sources[name] = src
	for _, pt := range points {
		c, ok := m.field.WorldToGrid(pt)
		if !ok {
			continue
		}
		owners, ok := m.owners[c]
		if !ok {
			owners = map[string]int{}
			m.owners[c] = owners
		}
		owners[name]++
	}
	return m.field.AddPoints(points)
}

// remove deletes the points of a source. It returns false when the name is unknown.
func (m *obstacleMap) remove(name string) bool {
	src, ok := m.sources[name]
	if !ok {
		return false
	}
	delete(m.sources, name)
	for _, pt := range src.points {
		c, ok := m.field.WorldToGrid(pt)
		if !ok {
			continue
		}
		owners := m.owners[c]
		owners[name]--
		if owners[name] <= 0 {
			delete(owners, name)
		}
		if len(owners) == 0 {
			delete(m.owners, c)
		}
	}
	m.field.RemovePoints(src.points)
	return true
}

func (m *obstacleMap) has(name string) bool {
	_, ok := m.sources[name]
	return ok
}

// ownersNear returns the sources owning the obstacle voxel closest to pt, sorted by name.
func (m *obstacleMap) ownersNear(pt r3.Vector) []*obstacleSource {
	closest, ok := m.field.ClosestObstacle(pt)
	if !ok {
		return nil
	}
	c, _ := m.field.WorldToGrid(closest)
	names := make([]string, 0, len(m.owners[c]))
	for name := range m.owners[c] {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*obstacleSource, 0, len(names))
	for _, name := range names {
		out = append(out, m.sources[name])
	}
	return out
}
