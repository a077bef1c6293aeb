// Package distancefield implements a voxelized distance field: every cell of a regular 3-D grid
// knows how far it is from the nearest occupied voxel, up to a configured maximum distance.
package distancefield

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/proximity/logging"
)

// Config defines the extent and precision of a distance field. Size and Origin are in meters;
// Origin is the center of the (0, 0, 0) cell.
type Config struct {
	Size        r3.Vector `json:"size"`
	Origin      r3.Vector `json:"origin"`
	Resolution  float64   `json:"resolution"`
	MaxDistance float64   `json:"max_distance"`
}

// maxReach bounds MaxDistance/Resolution; the bucket queue holds one bucket per squared cell
// distance up to it.
const maxReach = 1024

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	if cfg.Resolution <= 0 {
		return errors.Errorf("invalid resolution (%.4f), must be positive", cfg.Resolution)
	}
	if cfg.Size.X < cfg.Resolution || cfg.Size.Y < cfg.Resolution || cfg.Size.Z < cfg.Resolution {
		return errors.Errorf("invalid size (%.3f, %.3f, %.3f), every side must hold at least one cell of %.4f",
			cfg.Size.X, cfg.Size.Y, cfg.Size.Z, cfg.Resolution)
	}
	if cfg.MaxDistance <= 0 {
		return errors.Errorf("invalid max distance (%.4f), must be positive", cfg.MaxDistance)
	}
	if reach := math.Ceil(cfg.MaxDistance / cfg.Resolution); reach > maxReach {
		return errors.Errorf("max distance (%.4f) spans %.0f cells of %.4f, at most %d are supported",
			cfg.MaxDistance, reach, cfg.Resolution, maxReach)
	}
	return nil
}

// cell stores the squared distance, in cells, to the closest obstacle voxel and that voxel's
// flat index (-1 when no obstacle is within range).
type cell struct {
	distSq  int32
	closest int32
}

// PropagationDistanceField is a distance field maintained by wavefront propagation from
// obstacle voxels. It supports incremental insertion and removal of obstacle points.
//
// It is not safe for concurrent mutation; concurrent Lookups with no writer are fine.
type PropagationDistanceField struct {
	cfg    Config
	grid   grid
	logger logging.Logger

	cells     []cell
	reach     int
	maxDistSq int32
	unreached int32

	// occupancy counts how many inserted points fall in each obstacle voxel.
	occupancy map[int]int

	buckets [][]queueEntry
}

type queueEntry struct {
	idx    int32
	distSq int32
}

// NewPropagationDistanceField returns an empty field.
func NewPropagationDistanceField(cfg Config, logger logging.Logger) (*PropagationDistanceField, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := newGrid(cfg.Origin, cfg.Size, cfg.Resolution)
	if g.numCells() > math.MaxInt32 {
		return nil, errors.Errorf("field of %v cells is too large", g.dims)
	}
	maxCells := int32(math.Ceil(cfg.MaxDistance / cfg.Resolution))
	f := &PropagationDistanceField{
		cfg:       cfg,
		grid:      g,
		logger:    logger,
		cells:     make([]cell, g.numCells()),
		reach:     int(maxCells),
		maxDistSq: maxCells * maxCells,
		unreached: maxCells*maxCells + 1,
		occupancy: map[int]int{},
	}
	f.buckets = make([][]queueEntry, f.maxDistSq+1)
	f.Reset()
	logger.Debugw("created distance field", "dims", g.dims.String(), "resolution", cfg.Resolution,
		"max_distance", cfg.MaxDistance)
	return f, nil
}

// Reset clears every obstacle.
func (f *PropagationDistanceField) Reset() {
	for i := range f.cells {
		f.cells[i] = cell{distSq: f.unreached, closest: -1}
	}
	f.occupancy = map[int]int{}
}

// Build resets the field and populates it from the given obstacle points.
func (f *PropagationDistanceField) Build(points []r3.Vector) int {
	f.Reset()
	return f.AddPoints(points)
}

// AddPoints marks the voxels containing the points as occupied and propagates distances outward.
// Points outside the grid are ignored. It returns the number of points that landed in the grid.
func (f *PropagationDistanceField) AddPoints(points []r3.Vector) int {
	added := 0
	for _, pt := range points {
		c, ok := f.grid.worldToGrid(pt)
		if !ok {
			continue
		}
		added++
		idx := f.grid.index(c)
		f.occupancy[idx]++
		if f.occupancy[idx] > 1 {
			continue
		}
		f.cells[idx] = cell{distSq: 0, closest: int32(idx)}
		f.push(int32(idx), 0, 0)
	}
	if skipped := len(points) - added; skipped > 0 {
		f.logger.Debugf("ignored %d obstacle points outside the distance field", skipped)
	}
	f.propagate()
	return added
}

// RemovePoints releases one occupancy reference per point. Voxels that become free are cleared
// along with every cell they were closest to, then the cleared region is refilled from its
// still-valid boundary. Only cells within MaxDistance of a freed voxel are visited.
func (f *PropagationDistanceField) RemovePoints(points []r3.Vector) int {
	removed := map[int32]bool{}
	matched := 0
	for _, pt := range points {
		c, ok := f.grid.worldToGrid(pt)
		if !ok {
			continue
		}
		idx := f.grid.index(c)
		count, ok := f.occupancy[idx]
		if !ok {
			continue
		}
		matched++
		if count > 1 {
			f.occupancy[idx] = count - 1
			continue
		}
		delete(f.occupancy, idx)
		removed[int32(idx)] = true
	}
	if len(removed) == 0 {
		return matched
	}

	var cleared []int
	lo, hi := f.affectedRegion(removed)
	for i := lo.I; i <= hi.I; i++ {
		for j := lo.J; j <= hi.J; j++ {
			for k := lo.K; k <= hi.K; k++ {
				idx := f.grid.index(VoxelCoords{i, j, k})
				if removed[f.cells[idx].closest] {
					f.cells[idx] = cell{distSq: f.unreached, closest: -1}
					cleared = append(cleared, idx)
				}
			}
		}
	}

	seeded := map[int]bool{}
	for _, idx := range cleared {
		c := f.grid.coords(idx)
		for _, off := range neighborOffsets {
			n := c.Add(off)
			if !f.grid.inBounds(n) {
				continue
			}
			nIdx := f.grid.index(n)
			if f.cells[nIdx].closest < 0 || seeded[nIdx] {
				continue
			}
			seeded[nIdx] = true
			f.push(int32(nIdx), f.cells[nIdx].distSq, 0)
		}
	}
	f.propagate()
	return matched
}

// affectedRegion returns the inclusive bounds of the cells that can hold one of the voxels as
// their closest obstacle: the voxels' bounding box grown by the propagation reach, clipped to the
// grid.
func (f *PropagationDistanceField) affectedRegion(voxels map[int32]bool) (lo, hi VoxelCoords) {
	dims := f.grid.dims
	lo, hi = dims, VoxelCoords{-1, -1, -1}
	for idx := range voxels {
		c := f.grid.coords(int(idx))
		lo = VoxelCoords{min(lo.I, c.I), min(lo.J, c.J), min(lo.K, c.K)}
		hi = VoxelCoords{max(hi.I, c.I), max(hi.J, c.J), max(hi.K, c.K)}
	}
	lo = VoxelCoords{max(lo.I-f.reach, 0), max(lo.J-f.reach, 0), max(lo.K-f.reach, 0)}
	hi = VoxelCoords{min(hi.I+f.reach, dims.I-1), min(hi.J+f.reach, dims.J-1), min(hi.K+f.reach, dims.K-1)}
	return lo, hi
}

// push queues a cell at its squared distance, or at the bucket being drained if that is larger.
func (f *PropagationDistanceField) push(idx, distSq, current int32) {
	bucket := distSq
	if bucket < current {
		bucket = current
	}
	f.buckets[bucket] = append(f.buckets[bucket], queueEntry{idx: idx, distSq: distSq})
}

// propagate drains the bucket queue in increasing distance. Each popped cell offers its closest
// obstacle to its 26 neighbours; a neighbour takes it when that is nearer than what it holds.
func (f *PropagationDistanceField) propagate() {
	for d := int32(0); d <= f.maxDistSq; d++ {
		for i := 0; i < len(f.buckets[d]); i++ {
			entry := f.buckets[d][i]
			curr := f.cells[entry.idx]
			if curr.distSq != entry.distSq || curr.closest < 0 {
				continue
			}
			obstacle := f.grid.coords(int(curr.closest))
			c := f.grid.coords(int(entry.idx))
			for _, off := range neighborOffsets {
				n := c.Add(off)
				if !f.grid.inBounds(n) {
					continue
				}
				newDistSq := int32(n.DistSq(obstacle))
				if newDistSq > f.maxDistSq {
					continue
				}
				nIdx := int32(f.grid.index(n))
				if newDistSq >= f.cells[nIdx].distSq {
					continue
				}
				f.cells[nIdx] = cell{distSq: newDistSq, closest: curr.closest}
				f.push(nIdx, newDistSq, d)
			}
		}
		f.buckets[d] = f.buckets[d][:0]
	}
}

// Lookup returns the distance to the closest obstacle and the unit gradient pointing away from
// it. Points outside the grid report MaxDistance, a zero gradient and inBounds false. Obstacle
// voxels and cells with nothing in range have a zero gradient.
func (f *PropagationDistanceField) Lookup(pt r3.Vector) (dist float64, grad r3.Vector, inBounds bool) {
	c, ok := f.grid.worldToGrid(pt)
	if !ok {
		return f.cfg.MaxDistance, r3.Vector{}, false
	}
	curr := f.cells[f.grid.index(c)]
	if curr.closest < 0 {
		return f.cfg.MaxDistance, r3.Vector{}, true
	}
	dist = f.cellDistance(curr)
	if curr.distSq > 0 {
		away := f.grid.gridToWorld(c).Sub(f.grid.gridToWorld(f.grid.coords(int(curr.closest))))
		grad = away.Normalize()
	}
	return dist, grad, true
}

// Distance returns only the distance part of Lookup.
func (f *PropagationDistanceField) Distance(pt r3.Vector) float64 {
	d, _, _ := f.Lookup(pt)
	return d
}

// DistanceAt returns the distance stored at a voxel; out of bounds voxels report MaxDistance.
func (f *PropagationDistanceField) DistanceAt(c VoxelCoords) float64 {
	if !f.grid.inBounds(c) {
		return f.cfg.MaxDistance
	}
	return f.cellDistance(f.cells[f.grid.index(c)])
}

func (f *PropagationDistanceField) cellDistance(c cell) float64 {
	if c.closest < 0 {
		return f.cfg.MaxDistance
	}
	return math.Min(math.Sqrt(float64(c.distSq))*f.cfg.Resolution, f.cfg.MaxDistance)
}

// ClosestObstacle returns the center of the obstacle voxel nearest to the point, if any is in range.
func (f *PropagationDistanceField) ClosestObstacle(pt r3.Vector) (r3.Vector, bool) {
	c, ok := f.grid.worldToGrid(pt)
	if !ok {
		return r3.Vector{}, false
	}
	closest := f.cells[f.grid.index(c)].closest
	if closest < 0 {
		return r3.Vector{}, false
	}
	return f.grid.gridToWorld(f.grid.coords(int(closest))), true
}

// WorldToGrid returns the voxel containing a point and whether it lies inside the grid.
func (f *PropagationDistanceField) WorldToGrid(pt r3.Vector) (VoxelCoords, bool) {
	return f.grid.worldToGrid(pt)
}

// GridToWorld returns the center of a voxel.
func (f *PropagationDistanceField) GridToWorld(c VoxelCoords) r3.Vector {
	return f.grid.gridToWorld(c)
}

// Dims returns the number of cells along each axis.
func (f *PropagationDistanceField) Dims() VoxelCoords {
	return f.grid.dims
}

// OccupiedCount returns the number of obstacle voxels.
func (f *PropagationDistanceField) OccupiedCount() int {
	return len(f.occupancy)
}

// OccupiedVoxels returns the obstacle voxels in index order.
func (f *PropagationDistanceField) OccupiedVoxels() []VoxelCoords {
	idxs := make([]int, 0, len(f.occupancy))
	for idx := range f.occupancy {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	out := make([]VoxelCoords, len(idxs))
	for i, idx := range idxs {
		out[i] = f.grid.coords(idx)
	}
	return out
}

// Resolution returns the voxel side length in meters.
func (f *PropagationDistanceField) Resolution() float64 {
	return f.cfg.Resolution
}

// MaxDistance returns the distance reported for cells with no obstacle in range.
func (f *PropagationDistanceField) MaxDistance() float64 {
	return f.cfg.MaxDistance
}

// Config returns the field's configuration.
func (f *PropagationDistanceField) Config() Config {
	return f.cfg
}
