package collisionproximity

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/proximity/bodydecomposition"
	"go.viam.com/proximity/referenceframe"
	"go.viam.com/proximity/spatialmath"
)

// entity is a link of the group or an object attached to one.
type entity struct {
	name     string
	attached bool
	// link is the link the entity moves with: itself, or the link an object is attached to.
	link  string
	touch map[string]bool

	vector      *bodydecomposition.BodyDecompositionVector
	envExcluded bool
	allowed     float64
}

func (s *Space) linkEntity(name string, vector *bodydecomposition.BodyDecompositionVector) *entity {
	return &entity{
		name:        name,
		link:        name,
		vector:      vector,
		envExcluded: s.cfg.EnvironmentExcluded(name),
		allowed:     s.cfg.AllowedDepth(name),
	}
}

func (s *Space) attachedEntity(obj *attachedObject, vector *bodydecomposition.BodyDecompositionVector) *entity {
	touch := make(map[string]bool, len(obj.TouchLinks))
	for _, l := range obj.TouchLinks {
		touch[l] = true
	}
	return &entity{
		name:        obj.Name,
		attached:    true,
		link:        obj.Link,
		touch:       touch,
		vector:      vector,
		envExcluded: s.cfg.EnvironmentExcluded(obj.Name),
		allowed:     s.cfg.AllowedDepth(obj.Name),
	}
}

// collisionEnabled combines the static self collision rules with the attachment topology.
func (s *Space) collisionEnabled(a, b *entity) bool {
	switch {
	case !a.attached && !b.attached:
		return s.linksCollisionEnabled(a.name, b.name)
	case a.attached && b.attached:
		return a.link != b.link
	case a.attached:
		return b.name != a.link && !a.touch[b.name]
	default:
		return a.name != b.link && !b.touch[a.name]
	}
}

// groupConfig is everything resolved for one group: the bodies queried, which pairs of them are
// checked, the bodies outside the group they are checked against and the obstacles inserted on
// their behalf.
type groupConfig struct {
	group      string
	setupState *referenceframe.KinematicState

	linkNames           []string
	linkIndices         []int
	attachedNames       []string
	attachedLinkIndices []int

	// entities holds the links followed by the attached objects.
	entities []*entity
	// matrix[i][j] is whether entities i and j are checked against each other.
	matrix [][]bool
	// pairAllowed[i][j] is how deep entities i and j may penetrate each other.
	pairAllowed [][]float64

	// outer holds the robot links outside the group, and the objects attached to them, that some
	// entity is checked against sphere by sphere. They keep the pose they had at setup.
	outer []*entity
	// outerMatrix[i][k] is whether entity i is checked against outer body k.
	outerMatrix [][]bool
	// outerAllowed[i][k] is how deep entity i and outer body k may penetrate each other.
	outerAllowed [][]float64

	// obstacles names the sources inserted into the field for this configuration.
	obstacles []string
}

func (gc *groupConfig) add(e *entity, linkIndex int) {
	gc.entities = append(gc.entities, e)
	if e.attached {
		gc.attachedNames = append(gc.attachedNames, e.name)
		gc.attachedLinkIndices = append(gc.attachedLinkIndices, linkIndex)
		return
	}
	gc.linkNames = append(gc.linkNames, e.name)
	gc.linkIndices = append(gc.linkIndices, linkIndex)
}

func (gc *groupConfig) buildMatrix(s *Space) {
	n := len(gc.entities)
	gc.matrix = make([][]bool, n)
	gc.pairAllowed = make([][]float64, n)
	gc.outerMatrix = make([][]bool, n)
	gc.outerAllowed = make([][]float64, n)
	for i := range gc.entities {
		gc.matrix[i] = make([]bool, n)
		gc.pairAllowed[i] = make([]float64, n)
	}
	for i, a := range gc.entities {
		for j := i + 1; j < n; j++ {
			b := gc.entities[j]
			enabled := s.collisionEnabled(a, b)
			gc.matrix[i][j], gc.matrix[j][i] = enabled, enabled
			depth := s.cfg.AllowedPairDepth(a.name, b.name)
			gc.pairAllowed[i][j], gc.pairAllowed[j][i] = depth, depth
		}
	}
}

// enabledWith reports whether any entity of the group may collide with other.
func (gc *groupConfig) enabledWith(s *Space, other *entity) bool {
	for _, e := range gc.entities {
		if s.collisionEnabled(e, other) {
			return true
		}
	}
	return false
}

// enabledWithAll reports whether every entity of the group may collide with other.
func (gc *groupConfig) enabledWithAll(s *Space, other *entity) bool {
	for _, e := range gc.entities {
		if !s.collisionEnabled(e, other) {
			return false
		}
	}
	return true
}

// addOuter extends the enable matrix with a body outside the group. An object attached outside
// the group is part of the environment, so environment excludes and allowances apply to it.
func (gc *groupConfig) addOuter(s *Space, o *entity) {
	gc.outer = append(gc.outer, o)
	for i, e := range gc.entities {
		enabled := s.collisionEnabled(e, o)
		depth := s.cfg.AllowedPairDepth(e.name, o.name)
		if o.attached {
			enabled = enabled && !e.envExcluded
			depth = math.Max(depth, e.allowed)
		}
		gc.outerMatrix[i] = append(gc.outerMatrix[i], enabled)
		gc.outerAllowed[i] = append(gc.outerAllowed[i], depth)
	}
}

func (gc *groupConfig) outerNames() []string {
	names := make([]string, 0, len(gc.outer))
	for _, o := range gc.outer {
		names = append(names, o.name)
	}
	return names
}

func (gc *groupConfig) updatePoses(poses map[string]spatialmath.Pose) error {
	for _, e := range gc.entities {
		pose, ok := poses[e.link]
		if !ok {
			return referenceframe.NewUnknownLinkError(e.link)
		}
		if err := e.vector.UpdatePoses(repeatPose(pose, e.vector.Size())...); err != nil {
			return err
		}
	}
	return nil
}

func repeatPose(p spatialmath.Pose, n int) []spatialmath.Pose {
	poses := make([]spatialmath.Pose, n)
	for i := range poses {
		poses[i] = p
	}
	return poses
}

// Session is a space configured for queries about one group. It is returned by
// SetupForGroupQueries and holds the space's session lock until Revert.
//
// Queries may run concurrently with each other; SetCurrentGroupState, Regroup and Revert wait for
// running queries.
type Session struct {
	id    uuid.UUID
	space *Space

	mu     sync.RWMutex
	config *groupConfig
}

// ID returns the unique id of the session.
func (sess *Session) ID() uuid.UUID {
	return sess.id
}

// Space returns the space the session belongs to.
func (sess *Session) Space() *Space {
	return sess.space
}

// configured returns the group config or ErrSessionState. sess.mu must be held.
func (sess *Session) configured() (*groupConfig, error) {
	if sess.config == nil {
		return nil, newRevertedSessionError(sess.id.String())
	}
	return sess.config, nil
}

// Active reports whether the session has not been reverted.
func (sess *Session) Active() bool {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return sess.config != nil
}

// GroupName returns the configured group, or "" after Revert.
func (sess *Session) GroupName() string {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return ""
	}
	return sess.config.group
}

// LinkNames returns the links of the group that are queried, in model order. Links without
// geometry or without a decomposition are left out.
func (sess *Session) LinkNames() []string {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	return append([]string(nil), sess.config.linkNames...)
}

// LinkIndices returns the model index of every entry of LinkNames.
func (sess *Session) LinkIndices() []int {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	return append([]int(nil), sess.config.linkIndices...)
}

// AttachedBodyNames returns the objects attached to links of the group, sorted.
func (sess *Session) AttachedBodyNames() []string {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	return append([]string(nil), sess.config.attachedNames...)
}

// AttachedBodyLinkIndices returns the model index of the link each attached body moves with.
func (sess *Session) AttachedBodyLinkIndices() []int {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	return append([]int(nil), sess.config.attachedLinkIndices...)
}

// LinkDecompositions returns the decomposition of every entry of LinkNames.
func (sess *Session) LinkDecompositions() []*bodydecomposition.BodyDecomposition {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	out := make([]*bodydecomposition.BodyDecomposition, 0, len(sess.config.linkNames))
	for _, e := range sess.config.entities {
		if !e.attached {
			out = append(out, e.vector.Part(0))
		}
	}
	return out
}

// AttachedBodyDecompositions returns the decompositions of every entry of AttachedBodyNames.
func (sess *Session) AttachedBodyDecompositions() []*bodydecomposition.BodyDecompositionVector {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	out := make([]*bodydecomposition.BodyDecompositionVector, 0, len(sess.config.attachedNames))
	for _, e := range sess.config.entities {
		if e.attached {
			out = append(out, e.vector)
		}
	}
	return out
}

// IntraGroupCollisionMatrix returns, for the links followed by the attached bodies, whether each
// pair is checked against each other.
func (sess *Session) IntraGroupCollisionMatrix() [][]bool {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	out := make([][]bool, len(sess.config.matrix))
	for i, row := range sess.config.matrix {
		out[i] = append([]bool(nil), row...)
	}
	return out
}

// EnvironmentExcludes returns, for the links followed by the attached bodies, whether each is
// left out of environment checks.
func (sess *Session) EnvironmentExcludes() []bool {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if sess.config == nil {
		return nil
	}
	out := make([]bool, len(sess.config.entities))
	for i, e := range sess.config.entities {
		out[i] = e.envExcluded
	}
	return out
}

// SetCurrentGroupState moves the bodies of the group to a new state. Obstacles inserted at setup
// keep the pose they had then.
func (sess *Session) SetCurrentGroupState(state *referenceframe.KinematicState) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	gc, err := sess.configured()
	if err != nil {
		return err
	}
	if state == nil || state.Model() != sess.space.model {
		return errors.Wrap(ErrConfiguration, "state does not belong to the space's model")
	}
	return gc.updatePoses(state.LinkPoses())
}

// Regroup reconfigures the session for another group without releasing the session lock. On
// failure the session stays configured for its previous group, at the state it was set up with.
func (sess *Session) Regroup(ctx context.Context, group string, state *referenceframe.KinematicState) error {
	ctx, span := trace.StartSpan(ctx, "collisionproximity::Regroup")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("group", group))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	old, err := sess.configured()
	if err != nil {
		return err
	}

	space := sess.space
	space.unconfigure(old)
	start := space.clock.Now()
	gc, err := space.configure(ctx, group, state)
	space.metrics.observeSetup(err, space.clock.Since(start))
	if err != nil {
		restored, restoreErr := space.configure(ctx, old.group, old.setupState)
		if restoreErr != nil {
			// Nothing usable is left, so the session ends here.
			sess.config = nil
			space.setCurrent(nil)
			space.unlock()
			return errors.Wrapf(restoreErr, "could not restore group %q after %v", old.group, err)
		}
		sess.config = restored
		return err
	}
	sess.config = gc
	space.logger.CDebugw(ctx, "regrouped session", "session", sess.id.String(), "from", old.group, "to", group)
	return nil
}

// Revert removes the session's obstacles from the field and releases the session lock. Every
// other method fails with ErrSessionState afterwards.
func (sess *Session) Revert() error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	gc, err := sess.configured()
	if err != nil {
		return err
	}
	space := sess.space
	space.unconfigure(gc)
	sess.config = nil
	space.setCurrent(nil)
	space.unlock()
	space.logger.Debugw("reverted group queries", "session", sess.id.String(), "group", gc.group)
	return nil
}
