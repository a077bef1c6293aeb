package collisionproximity

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/proximity/bodydecomposition"
)

// query is a snapshot of a configured group for one read-only query.
type query struct {
	space   *Space
	gc      *groupConfig
	spheres [][]bodydecomposition.CollisionSphere
	outer   [][]bodydecomposition.CollisionSphere
}

// beginQuery read-locks the session and gathers the world spheres of every entity. The returned
// function releases the lock.
func (sess *Session) beginQuery(kind string) (*query, func(), error) {
	sess.mu.RLock()
	gc, err := sess.configured()
	if err != nil {
		sess.mu.RUnlock()
		return nil, nil, err
	}
	sess.space.metrics.observeQuery(kind)
	q := &query{space: sess.space, gc: gc, spheres: make([][]bodydecomposition.CollisionSphere, len(gc.entities))}
	for i, e := range gc.entities {
		q.spheres[i] = e.vector.Spheres()
	}
	q.outer = make([][]bodydecomposition.CollisionSphere, len(gc.outer))
	for k, o := range gc.outer {
		q.outer[k] = o.vector.Spheres()
	}
	return q, sess.mu.RUnlock, nil
}

func (q *query) tolerance() float64 {
	return q.space.cfg.Tolerance
}

// environmentContact returns the first sphere of entity i closer to the environment than allowed.
func (q *query) environmentContact(i int) (int, bool) {
	e := q.gc.entities[i]
	if e.envExcluded {
		return -1, false
	}
	threshold := q.tolerance() - e.allowed
	for k, s := range q.spheres[i] {
		if q.space.field.Distance(s.Center)-s.Radius < threshold {
			return k, true
		}
	}
	return -1, false
}

// pairContact reports whether entities i and j interpenetrate more than allowed.
func (q *query) pairContact(i, j int) bool {
	return spheresContact(q.spheres[i], q.spheres[j], q.tolerance()-q.gc.pairAllowed[i][j])
}

// outerContact reports whether entity i and outer body k interpenetrate more than allowed.
func (q *query) outerContact(i, k int) bool {
	return spheresContact(q.spheres[i], q.outer[k], q.tolerance()-q.gc.outerAllowed[i][k])
}

func spheresContact(as, bs []bodydecomposition.CollisionSphere, threshold float64) bool {
	for _, a := range as {
		for _, b := range bs {
			if a.Center.Distance(b.Center)-a.Radius-b.Radius < threshold {
				return true
			}
		}
	}
	return false
}

func (q *query) anyEnvironmentContact() bool {
	for i := range q.gc.entities {
		if _, hit := q.environmentContact(i); hit {
			return true
		}
	}
	return q.anyOuterContact()
}

func (q *query) anyOuterContact() bool {
	for i := range q.gc.entities {
		for k := range q.gc.outer {
			if q.gc.outerMatrix[i][k] && q.outerContact(i, k) {
				return true
			}
		}
	}
	return false
}

func (q *query) anyIntraContact() bool {
	for i := range q.gc.entities {
		for j := i + 1; j < len(q.gc.entities); j++ {
			if q.gc.matrix[i][j] && q.pairContact(i, j) {
				return true
			}
		}
	}
	return false
}

// IsStateInCollision returns whether the group collides with itself, its attached objects or the
// environment at the current state. It stops at the first contact found.
func (sess *Session) IsStateInCollision() (bool, error) {
	q, done, err := sess.beginQuery(queryInCollision)
	if err != nil {
		return false, err
	}
	defer done()
	return q.anyIntraContact() || q.anyEnvironmentContact(), nil
}

// IsIntraGroupCollision returns whether two bodies of the group, links or attached objects,
// collide with each other.
func (sess *Session) IsIntraGroupCollision() (bool, error) {
	q, done, err := sess.beginQuery(queryIntraGroup)
	if err != nil {
		return false, err
	}
	defer done()
	return q.anyIntraContact(), nil
}

// IsEnvironmentCollision returns whether a body of the group collides with anything outside the
// group: static objects, the robot links outside the group and the objects attached to them.
func (sess *Session) IsEnvironmentCollision() (bool, error) {
	q, done, err := sess.beginQuery(queryEnvironment)
	if err != nil {
		return false, err
	}
	defer done()
	return q.anyEnvironmentContact(), nil
}

// GetStateCollisions classifies every link and attached object of the group at the current state.
func (sess *Session) GetStateCollisions() (*CollisionResult, error) {
	q, done, err := sess.beginQuery(queryCollisions)
	if err != nil {
		return nil, err
	}
	defer done()

	n := len(q.gc.entities)
	types := make([]CollisionType, n)
	partners := make([][]string, n)

	for i := range q.gc.entities {
		for j := i + 1; j < n; j++ {
			if !q.gc.matrix[i][j] || !q.pairContact(i, j) {
				continue
			}
			t := IntraGroupCollision
			if q.gc.entities[i].attached || q.gc.entities[j].attached {
				t = AttachedBodyCollision
			}
			types[i] |= t
			types[j] |= t
			partners[i] = append(partners[i], q.gc.entities[j].name)
			partners[j] = append(partners[j], q.gc.entities[i].name)
		}
	}

	for i, e := range q.gc.entities {
		if e.envExcluded {
			continue
		}
		threshold := q.tolerance() - e.allowed
		for _, s := range q.spheres[i] {
			if q.space.field.Distance(s.Center)-s.Radius >= threshold {
				continue
			}
			types[i] |= EnvironmentCollision
			for _, src := range q.space.obstacles.ownersNear(s.Center) {
				partners[i] = append(partners[i], src.name)
			}
		}
	}

	for i := range q.gc.entities {
		for k, o := range q.gc.outer {
			if !q.gc.outerMatrix[i][k] || !q.outerContact(i, k) {
				continue
			}
			if o.attached {
				types[i] |= EnvironmentCollision
			} else {
				types[i] |= SelfCollision
			}
			partners[i] = append(partners[i], o.name)
		}
	}

	res := &CollisionResult{}
	for i, e := range q.gc.entities {
		names := lo.Uniq(partners[i])
		sort.Strings(names)
		rec := CollisionRecord{Name: e.name, Attached: e.attached, Type: types[i], Partners: names}
		if rec.InCollision() {
			res.InCollision = true
		}
		if e.attached {
			res.AttachedBodies = append(res.AttachedBodies, rec)
		} else {
			res.Links = append(res.Links, rec)
		}
	}
	sess.space.metrics.observeCollisions(res.Links...)
	sess.space.metrics.observeCollisions(res.AttachedBodies...)
	return res, nil
}

// GetStateGradients returns, for every sphere of the group, the distance to the closest thing it
// may collide with and the direction away from it. The environment term is the field distance at
// the sphere's center; the term for another body of the group is the distance from the center to
// that body's closest sphere surface. Distances never exceed the field's max distance. With
// subtractRadii every distance is reduced by the sphere's own radius.
func (sess *Session) GetStateGradients(subtractRadii bool) (*GradientResult, error) {
	q, done, err := sess.beginQuery(queryGradients)
	if err != nil {
		return nil, err
	}
	defer done()

	maxDistance := q.space.field.MaxDistance()
	res := &GradientResult{SubtractRadii: subtractRadii, ClosestDistance: maxDistance}
	for i, e := range q.gc.entities {
		body := BodyGradients{
			Name:            e.name,
			Attached:        e.attached,
			ClosestDistance: math.Inf(1),
			Spheres:         make([]SphereGradient, len(q.spheres[i])),
		}
		for k, s := range q.spheres[i] {
			g := q.sphereGradient(i, s, maxDistance)
			if subtractRadii {
				g.Distance -= s.Radius
			}
			body.Spheres[k] = g
			body.ClosestDistance = math.Min(body.ClosestDistance, g.Distance)
		}
		if len(body.Spheres) == 0 {
			body.ClosestDistance = maxDistance
		}
		res.ClosestDistance = math.Min(res.ClosestDistance, body.ClosestDistance)
		if e.attached {
			res.AttachedBodies = append(res.AttachedBodies, body)
		} else {
			res.Links = append(res.Links, body)
		}
	}
	return res, nil
}

// sphereGradient takes the minimum of the environment term and the terms of every body, inside
// or outside the group, entity i is checked against.
func (q *query) sphereGradient(i int, s bodydecomposition.CollisionSphere, maxDistance float64) SphereGradient {
	best := SphereGradient{Center: s.Center, Radius: s.Radius, Distance: maxDistance}
	if !q.gc.entities[i].envExcluded {
		d, grad, _ := q.space.field.Lookup(s.Center)
		if d < best.Distance {
			best.Distance = d
			best.Gradient = grad
			if owners := q.space.obstacles.ownersNear(s.Center); len(owners) > 0 {
				best.Partner = owners[0].name
			}
		}
	}
	for j, other := range q.gc.entities {
		if q.gc.matrix[i][j] {
			best.closerTo(other.name, q.spheres[j])
		}
	}
	for k, o := range q.gc.outer {
		if q.gc.outerMatrix[i][k] {
			best.closerTo(o.name, q.outer[k])
		}
	}
	return best
}

// closerTo moves g to the closest surface of the named body's spheres when it is nearer.
func (g *SphereGradient) closerTo(name string, spheres []bodydecomposition.CollisionSphere) {
	for _, t := range spheres {
		diff := g.Center.Sub(t.Center)
		n := diff.Norm()
		if d := n - t.Radius; d < g.Distance {
			g.Distance = d
			g.Gradient = r3.Vector{}
			if n > 0 {
				g.Gradient = diff.Mul(1 / n)
			}
			g.Partner = name
		}
	}
}

// GetEnvironmentProximity returns the sphere of the group closest to the environment, with its
// distance net of the sphere radius. When every body is excluded from environment checks the
// distance is the field's max distance and Name is empty.
func (sess *Session) GetEnvironmentProximity() (EnvironmentProximity, error) {
	q, done, err := sess.beginQuery(queryProximity)
	if err != nil {
		return EnvironmentProximity{}, err
	}
	defer done()

	best := newEnvironmentProximity()
	for i, e := range q.gc.entities {
		if e.envExcluded {
			continue
		}
		for k, s := range q.spheres[i] {
			d, grad, _ := q.space.field.Lookup(s.Center)
			if d-s.Radius < best.Distance {
				best = EnvironmentProximity{Name: e.name, Sphere: k, Distance: d - s.Radius, Gradient: grad}
			}
		}
	}
	if best.Sphere < 0 {
		best.Distance = q.space.field.MaxDistance()
	}
	return best, nil
}
