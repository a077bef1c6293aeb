package collisionproximity

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// query kinds used as metric labels.
const (
	queryInCollision  = "in_collision"
	queryIntraGroup   = "intra_group"
	queryEnvironment  = "environment"
	queryCollisions   = "collisions"
	queryGradients    = "gradients"
	queryProximity    = "environment_proximity"
	setupResultOK     = "ok"
	setupResultFailed = "failed"
)

type spaceMetrics struct {
	setups          *prometheus.CounterVec
	setupDuration   prometheus.Histogram
	queries         *prometheus.CounterVec
	collisions      *prometheus.CounterVec
	occupiedVoxels  prometheus.Gauge
	staticObjects   prometheus.Gauge
	attachedObjects prometheus.Gauge
}

func newSpaceMetrics(reg prometheus.Registerer) *spaceMetrics {
	factory := promauto.With(reg)
	return &spaceMetrics{
		setups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collision_space_setups_total",
			Help: "Group query sessions set up, by result",
		}, []string{"result"}),
		setupDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "collision_space_setup_duration_seconds",
			Help:    "Time to configure a group query session",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collision_space_queries_total",
			Help: "Queries answered by group query sessions, by kind",
		}, []string{"kind"}),
		collisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collision_space_collisions_total",
			Help: "Bodies reported in collision by GetStateCollisions, by collision type",
		}, []string{"type"}),
		occupiedVoxels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collision_space_occupied_voxels",
			Help: "Obstacle voxels currently in the distance field",
		}),
		staticObjects: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collision_space_static_objects",
			Help: "Static objects in the environment",
		}),
		attachedObjects: factory.NewGauge(prometheus.GaugeOpts{
			Name: "collision_space_attached_objects",
			Help: "Objects attached to robot links",
		}),
	}
}

func (m *spaceMetrics) observeSetup(err error, elapsed time.Duration) {
	if err != nil {
		m.setups.WithLabelValues(setupResultFailed).Inc()
		return
	}
	m.setups.WithLabelValues(setupResultOK).Inc()
	m.setupDuration.Observe(elapsed.Seconds())
}

func (m *spaceMetrics) observeQuery(kind string) {
	m.queries.WithLabelValues(kind).Inc()
}

func (m *spaceMetrics) observeCollisions(records ...CollisionRecord) {
	for _, rec := range records {
		for _, n := range collisionTypeNames {
			if rec.Type.Has(n.t) {
				m.collisions.WithLabelValues(n.name).Inc()
			}
		}
	}
}
