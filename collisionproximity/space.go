// Package collisionproximity answers collision and proximity queries for groups of robot links
// against each other, against objects attached to them, and against a distance field of the
// environment.
//
// A Space owns the distance field and the sphere decompositions of every body. Queries are made
// through a Session configured for one group at a time:
//
//	sess, err := space.SetupForGroupQueries(ctx, "arm", state)
//	if err != nil {
//		return err
//	}
//	defer sess.Revert()
//	for _, s := range trajectory {
//		if err := sess.SetCurrentGroupState(s); err != nil {
//			return err
//		}
//		gradients, err := sess.GetStateGradients(true)
//		...
//	}
package collisionproximity

import (
	"context"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/proximity/bodydecomposition"
	"go.viam.com/proximity/distancefield"
	"go.viam.com/proximity/logging"
	"go.viam.com/proximity/referenceframe"
	"go.viam.com/proximity/utils"
)

// SessionState is whether a space currently has a configured session.
type SessionState int

// The session states.
const (
	Idle SessionState = iota
	Configured
)

func (s SessionState) String() string {
	if s == Configured {
		return "configured"
	}
	return "idle"
}

// SpaceOption configures optional parts of a Space.
type SpaceOption func(*Space)

// WithRegisterer registers the space's metrics with reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) SpaceOption {
	return func(s *Space) {
		s.registerer = reg
	}
}

// WithClock sets the clock used to time session setup.
func WithClock(c clock.Clock) SpaceOption {
	return func(s *Space) {
		s.clock = c
	}
}

// WithParallelism bounds how many bodies are decomposed at once.
func WithParallelism(n int) SpaceOption {
	return func(s *Space) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// Space holds the collision state of one robot model and its environment.
//
// Sessions and events (static and attached object changes) are serialized by the session lock:
// an event waits for the active session to be reverted, and must not be issued by the goroutine
// holding that session.
type Space struct {
	model  *referenceframe.Model
	cfg    Config
	logger logging.Logger

	store     *bodydecomposition.Store
	field     *distancefield.PropagationDistanceField
	obstacles *obstacleMap

	registerer  prometheus.Registerer
	metrics     *spaceMetrics
	clock       clock.Clock
	parallelism int

	// sessionLock holds a token while a session is configured or an event is applied.
	sessionLock chan struct{}

	stateMu sync.Mutex
	current *Session

	objectsMu       sync.RWMutex
	objectGen       uint64
	staticObjects   map[string]*staticObject
	attachedObjects map[string]*attachedObject
}

// NewSpace builds the distance field described by cfg and decomposes every link of the model
// that carries geometry. Links whose geometry cannot be decomposed are logged and left out of
// every query. A nil cfg uses NewDefaultConfig.
func NewSpace(
	model *referenceframe.Model,
	cfg *Config,
	logger logging.Logger,
	opts ...SpaceOption,
) (*Space, error) {
	if model == nil {
		return nil, errors.Wrap(ErrConfiguration, referenceframe.ErrNoModelInformation.Error())
	}
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Space{
		model:           model,
		cfg:             *cfg,
		logger:          logger,
		clock:           clock.New(),
		parallelism:     utils.ParallelFactor,
		sessionLock:     make(chan struct{}, 1),
		staticObjects:   map[string]*staticObject{},
		attachedObjects: map[string]*attachedObject{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registerer == nil {
		s.registerer = prometheus.NewRegistry()
	}
	s.metrics = newSpaceMetrics(s.registerer)

	field, err := distancefield.NewPropagationDistanceField(cfg.FieldConfig(), logger.Sublogger("field"))
	if err != nil {
		return nil, errors.Wrap(ErrConfiguration, err.Error())
	}
	s.field = field
	s.obstacles = newObstacleMap(field)
	s.store = bodydecomposition.NewStore(cfg.Resolution, logger.Sublogger("decomposition"))

	s.loadLinkDecompositions()
	return s, nil
}

func (s *Space) loadLinkDecompositions() {
	names := lo.Filter(s.model.LinkNames(), func(name string, _ int) bool {
		link, _ := s.model.Link(name)
		if link.Geometry == nil {
			s.logger.Debugw("link has no geometry, skipping", "link", name)
			return false
		}
		return true
	})

	errs := make([]error, len(names))
	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, name := range names {
		link, _ := s.model.Link(name)
		g.Go(func() error {
			_, errs[i] = s.store.LoadDecomposition(name, link.Geometry, s.cfg.Padding(name))
			return nil
		})
	}
	//nolint:errcheck
	g.Wait()

	if err := multierr.Combine(errs...); err != nil {
		s.logger.Warnw("some links could not be decomposed and are left out of collision checks", "error", err)
	}
	s.logger.Debugw("decomposed robot links", "model", s.model.Name(), "links", s.store.Len())
}

// Model returns the kinematic model the space checks.
func (s *Space) Model() *referenceframe.Model {
	return s.model
}

// Config returns a copy of the space's config.
func (s *Space) Config() Config {
	return s.cfg
}

// DistanceField returns the environment distance field. It must only be read, and only while no
// event is being applied.
func (s *Space) DistanceField() *distancefield.PropagationDistanceField {
	return s.field
}

// State returns whether a session is configured.
func (s *Space) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.current == nil {
		return Idle
	}
	return Configured
}

// CurrentSession returns the configured session, or nil when the space is idle.
func (s *Space) CurrentSession() *Session {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.current
}

func (s *Space) setCurrent(sess *Session) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.current = sess
}

// lock waits for the session lock. Only waiting can be canceled.
func (s *Space) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.sessionLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Space) unlock() {
	<-s.sessionLock
}

// SetupForGroupQueries configures a session for the named group at the given state, waiting for
// any other session to be reverted first. The returned session must be reverted exactly once.
//
// The session lock is not reentrant: the goroutine holding a session blocks forever if it calls
// SetupForGroupQueries or applies an event before reverting. Use Session.Regroup to switch groups.
func (s *Space) SetupForGroupQueries(
	ctx context.Context,
	group string,
	state *referenceframe.KinematicState,
) (*Session, error) {
	ctx, span := trace.StartSpan(ctx, "collisionproximity::SetupForGroupQueries")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("group", group))

	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	guard := utils.NewGuard(s.unlock)
	defer guard.OnFail()

	start := s.clock.Now()
	gc, err := s.configure(ctx, group, state)
	s.metrics.observeSetup(err, s.clock.Since(start))
	if err != nil {
		return nil, err
	}

	sess := &Session{id: uuid.New(), space: s, config: gc}
	s.setCurrent(sess)
	s.logger.CDebugw(ctx, "configured group queries",
		"session", sess.id.String(),
		"group", group,
		"links", len(gc.linkNames),
		"attached", len(gc.attachedNames),
		"outer", gc.outerNames(),
		"obstacles", len(gc.obstacles),
	)
	guard.Success()
	return sess, nil
}

// WithGroupQueries configures a session, runs fn with it and reverts it however fn returns.
func (s *Space) WithGroupQueries(
	ctx context.Context,
	group string,
	state *referenceframe.KinematicState,
	fn func(*Session) error,
) (err error) {
	sess, err := s.SetupForGroupQueries(ctx, group, state)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sess.Revert())
	}()
	return fn(sess)
}

// configure resolves a group and inserts the obstacles it is checked against. It must be called
// with the session lock held.
func (s *Space) configure(
	ctx context.Context,
	group string,
	state *referenceframe.KinematicState,
) (*groupConfig, error) {
	if state == nil {
		return nil, errors.Wrap(ErrConfiguration, "no kinematic state given")
	}
	if state.Model() != s.model {
		return nil, errors.Wrapf(ErrConfiguration, "state belongs to model %q, not %q", state.Model().Name(), s.model.Name())
	}
	groupLinks, err := s.model.Group(group)
	if err != nil {
		return nil, NewUnknownGroupError(group)
	}
	inGroup := lo.SliceToMap(groupLinks, func(name string) (string, bool) { return name, true })
	linkIndex := map[string]int{}
	for i, name := range s.model.LinkNames() {
		linkIndex[name] = i
	}

	gc := &groupConfig{group: group, setupState: state.Clone()}
	for _, name := range groupLinks {
		link, _ := s.model.Link(name)
		if link.Geometry == nil {
			continue
		}
		bd, err := s.store.Decomposition(name)
		if err != nil {
			s.logger.Warnw("leaving link out of group queries", "group", group, "link", name, "error", err)
			continue
		}
		gc.add(s.linkEntity(name, bodydecomposition.NewBodyDecompositionVector(bd)), linkIndex[name])
	}

	s.objectsMu.RLock()
	var foreign []*attachedObject
	attachedNames := lo.Keys(s.attachedObjects)
	sort.Strings(attachedNames)
	for _, name := range attachedNames {
		obj := s.attachedObjects[name]
		if !inGroup[obj.Link] {
			foreign = append(foreign, obj)
			continue
		}
		vector, err := s.attachedVector(obj)
		if err != nil {
			s.logger.Warnw("leaving attached object out of group queries", "group", group, "object", name, "error", err)
			continue
		}
		gc.add(s.attachedEntity(obj, vector), linkIndex[obj.Link])
	}
	s.objectsMu.RUnlock()

	gc.buildMatrix(s)

	poses := state.LinkPoses()
	if err := gc.updatePoses(poses); err != nil {
		return nil, err
	}

	// Robot links outside the group are checked sphere by sphere against the group bodies the
	// static rules enable them with. Objects attached to them go into the field when every group
	// body may touch them, and are checked like the links otherwise.
	for _, name := range s.model.LinkNames() {
		link, _ := s.model.Link(name)
		if inGroup[name] || link.Geometry == nil {
			continue
		}
		o := s.linkEntity(name, nil)
		if !gc.enabledWith(s, o) {
			continue
		}
		bd, err := s.store.Decomposition(name)
		if err != nil {
			s.logger.Warnw("robot link left out of self collision checks", "group", group, "link", name, "error", err)
			continue
		}
		o.vector = bodydecomposition.NewBodyDecompositionVector(bd)
		if err := o.vector.UpdatePoses(poses[name]); err != nil {
			return nil, err
		}
		gc.addOuter(s, o)
	}
	for _, obj := range foreign {
		o := s.attachedEntity(obj, nil)
		if !gc.enabledWith(s, o) {
			continue
		}
		vector, err := s.attachedVector(obj)
		if err != nil {
			s.logger.Warnw("attached object left out of group queries", "group", group, "object", obj.Name, "error", err)
			continue
		}
		if err := vector.UpdatePoses(repeatPose(poses[obj.Link], vector.Size())...); err != nil {
			s.unconfigure(gc)
			return nil, err
		}
		if !gc.enabledWithAll(s, o) {
			o.vector = vector
			gc.addOuter(s, o)
			continue
		}
		s.obstacles.add(obj.Name, vector.CollisionPoints())
		gc.obstacles = append(gc.obstacles, obj.Name)
	}
	s.metrics.occupiedVoxels.Set(float64(s.field.OccupiedCount()))
	return gc, nil
}

// unconfigure removes the obstacles a configuration inserted.
func (s *Space) unconfigure(gc *groupConfig) {
	for _, name := range gc.obstacles {
		s.obstacles.remove(name)
	}
	gc.obstacles = nil
	s.metrics.occupiedVoxels.Set(float64(s.field.OccupiedCount()))
}

// linksCollisionEnabled applies the model's static self collision rules to two links.
func (s *Space) linksCollisionEnabled(a, b string) bool {
	if a == b || s.model.CollisionDisabled(a, b) {
		return false
	}
	return !(s.cfg.IgnoreAdjacentLinks && s.model.AdjacentLinks(a, b))
}
