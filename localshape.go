package dtensor

import (
	"github.com/gomlx/dtensor/meshes"
	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/pkg/errors"
)

// LocalShapeOf computes the shape of the local shard held by the participant with
// the given rank, for a distributed tensor of the given global shape laid out on the
// mesh with the given placements.
//
// The placements apply left to right, one per mesh axis: Replicate and Partial leave
// every dimension unchanged, Shard(d) splits dimension d with the ceiling-division
// chunk rule. A dimension sharded on two mesh axes is reduced twice, sequentially.
// Trailing participants of a sharded axis may end up with a dimension of size 0.
//
// It is a pure function: no communication happens, and every participant is expected
// to call it with the same global shape, mesh and placements.
func LocalShapeOf(global shapes.Shape, mesh *meshes.DeviceMesh, placs []placements.Placement, rank int) (shapes.Shape, error) {
	local, _, err := localBlock(global, mesh, placs, rank)
	return local, err
}

// localBlock computes both the local shard shape and the offsets (per tensor
// dimension) of the shard within the global tensor, for the participant with the
// given rank.
func localBlock(global shapes.Shape, mesh *meshes.DeviceMesh, placs []placements.Placement, rank int) (local shapes.Shape, offsets []int, err error) {
	if !global.Ok() {
		err = errors.Wrap(ErrInvalidArgument, "invalid global shape")
		return
	}
	if mesh == nil {
		err = errors.Wrap(ErrInvalidArgument, "nil device mesh")
		return
	}
	if checkErr := placements.Check(placs, mesh.NumAxes(), global.Rank()); checkErr != nil {
		err = errors.Wrapf(ErrInvalidArgument, "%v", checkErr)
		return
	}
	coords, coordErr := mesh.CoordinateOf(rank)
	if coordErr != nil {
		err = errors.Wrapf(ErrInvalidArgument, "%v", coordErr)
		return
	}

	local = global.Clone()
	offsets = make([]int, global.Rank())
	for axis, p := range placs {
		switch p := p.(type) {
		case placements.Shard:
			// Offsets compose: a dimension already sharded by an earlier mesh axis is
			// split again within the current block.
			extent := local.Dimensions[p.Dim]
			offsets[p.Dim] += p.LocalOffset(extent, mesh.AxisSize(axis), coords[axis])
			local.Dimensions[p.Dim] = p.LocalExtent(extent, mesh.AxisSize(axis), coords[axis])
		case placements.Replicate, placements.Partial:
			// Dimensions unchanged on this participant.
		}
	}
	return
}
