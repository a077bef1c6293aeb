package distancefield

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// VoxelCoords stores voxel coordinates in grid axes.
type VoxelCoords struct {
	I, J, K int
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// Add returns the componentwise sum.
func (c VoxelCoords) Add(c2 VoxelCoords) VoxelCoords {
	return VoxelCoords{c.I + c2.I, c.J + c2.J, c.K + c2.K}
}

// DistSq returns the squared distance between two voxels, in cells.
func (c VoxelCoords) DistSq(c2 VoxelCoords) int {
	di, dj, dk := c.I-c2.I, c.J-c2.J, c.K-c2.K
	return di*di + dj*dj + dk*dk
}

func (c VoxelCoords) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.I, c.J, c.K)
}

// neighborOffsets are the 26 voxels sharing a face, edge or corner with the origin voxel.
var neighborOffsets = func() []VoxelCoords {
	offsets := make([]VoxelCoords, 0, 26)
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				if i == 0 && j == 0 && k == 0 {
					continue
				}
				offsets = append(offsets, VoxelCoords{i, j, k})
			}
		}
	}
	return offsets
}()

// grid maps between world coordinates and a dense, flat-indexed voxel array. Cell centers sit
// at origin + index*resolution.
type grid struct {
	origin     r3.Vector
	resolution float64
	dims       VoxelCoords
}

func newGrid(origin, size r3.Vector, resolution float64) grid {
	cells := func(extent float64) int {
		return int(math.Floor(extent/resolution + 1e-9))
	}
	return grid{
		origin:     origin,
		resolution: resolution,
		dims:       VoxelCoords{cells(size.X), cells(size.Y), cells(size.Z)},
	}
}

func (g grid) numCells() int {
	return g.dims.I * g.dims.J * g.dims.K
}

func (g grid) inBounds(c VoxelCoords) bool {
	return c.I >= 0 && c.J >= 0 && c.K >= 0 && c.I < g.dims.I && c.J < g.dims.J && c.K < g.dims.K
}

func (g grid) index(c VoxelCoords) int {
	return (c.I*g.dims.J+c.J)*g.dims.K + c.K
}

func (g grid) coords(idx int) VoxelCoords {
	k := idx % g.dims.K
	idx /= g.dims.K
	return VoxelCoords{idx / g.dims.J, idx % g.dims.J, k}
}

func (g grid) worldToGrid(pt r3.Vector) (VoxelCoords, bool) {
	c := VoxelCoords{
		int(math.Round((pt.X - g.origin.X) / g.resolution)),
		int(math.Round((pt.Y - g.origin.Y) / g.resolution)),
		int(math.Round((pt.Z - g.origin.Z) / g.resolution)),
	}
	return c, g.inBounds(c)
}

func (g grid) gridToWorld(c VoxelCoords) r3.Vector {
	return r3.Vector{
		X: g.origin.X + float64(c.I)*g.resolution,
		Y: g.origin.Y + float64(c.J)*g.resolution,
		Z: g.origin.Z + float64(c.K)*g.resolution,
	}
}
