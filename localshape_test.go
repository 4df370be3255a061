package dtensor

import (
	"testing"

	"github.com/gomlx/dtensor/meshes"
	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalShapeOfReplicate(t *testing.T) {
	mesh := must.M1(meshes.New("m", []int{2, 3}, nil))
	global := shapes.Make(dtypes.Float32, 10, 3)

	// All-Replicate: every participant's local shape equals the global shape.
	for rank := 0; rank < mesh.NumDevices(); rank++ {
		local, err := LocalShapeOf(global, mesh, placements.ReplicateAll(2), rank)
		require.NoError(t, err)
		assert.True(t, global.Equal(local), "rank %d", rank)
	}
}

func TestLocalShapeOfShard(t *testing.T) {
	// Mesh axis extent 4, global [10, 3], Shard(0): ranks 0..3 get [3, 3, 3, 1].
	mesh := must.M1(meshes.New("m", []int{4}, []string{"data"}))
	global := shapes.Make(dtypes.Float32, 10, 3)
	want := []int{3, 3, 3, 1}
	for rank := 0; rank < 4; rank++ {
		local, err := LocalShapeOf(global, mesh, []placements.Placement{placements.Shard{Dim: 0}}, rank)
		require.NoError(t, err)
		assert.Equalf(t, want[rank], local.Dimensions[0], "rank %d", rank)
		assert.Equal(t, 3, local.Dimensions[1])
	}
}

func TestLocalShapeOfShardProperties(t *testing.T) {
	// Local extents sum to the global extent, are non-increasing in the coordinate,
	// and only trailing participants may be smaller (possibly zero).
	for _, extent := range []int{0, 1, 2, 7, 10, 64} {
		for _, axisSize := range []int{1, 2, 4, 5, 12} {
			mesh := must.M1(meshes.New("m", []int{axisSize}, nil))
			global := shapes.Make(dtypes.Float32, extent)
			sum, prev := 0, extent+1
			for rank := 0; rank < axisSize; rank++ {
				local, err := LocalShapeOf(global, mesh, []placements.Placement{placements.Shard{Dim: 0}}, rank)
				require.NoError(t, err)
				dim := local.Dimensions[0]
				assert.LessOrEqualf(t, dim, prev, "extent=%d axisSize=%d rank=%d", extent, axisSize, rank)
				sum += dim
				prev = dim
			}
			assert.Equalf(t, extent, sum, "extent=%d axisSize=%d", extent, axisSize)
		}
	}
}

func TestLocalShapeOfPartial(t *testing.T) {
	// Partial behaves like Replicate for local shapes.
	mesh := must.M1(meshes.New("m", []int{3}, nil))
	global := shapes.Make(dtypes.Float64, 5, 2)
	for rank := 0; rank < 3; rank++ {
		local, err := LocalShapeOf(global, mesh, []placements.Placement{placements.Partial{Op: placements.ReduceOpSum}}, rank)
		require.NoError(t, err)
		assert.True(t, global.Equal(local))
	}
}

func TestLocalShapeOfDoubleSharding(t *testing.T) {
	// The same tensor dimension sharded on two mesh axes is reduced twice, left to
	// right: 12 elements over a 2x3 mesh -> 12/2=6, then 6/3=2 everywhere.
	mesh := must.M1(meshes.New("m", []int{2, 3}, []string{"a", "b"}))
	global := shapes.Make(dtypes.Float32, 12)
	placs := []placements.Placement{placements.Shard{Dim: 0}, placements.Shard{Dim: 0}}
	for rank := 0; rank < 6; rank++ {
		local, err := LocalShapeOf(global, mesh, placs, rank)
		require.NoError(t, err)
		assert.Equalf(t, 2, local.Dimensions[0], "rank %d", rank)
	}

	// Uneven double sharding: 10 over axis of 2 -> [5, 5]; 5 over axis of 3 ->
	// [2, 2, 1] within each half.
	global = shapes.Make(dtypes.Float32, 10)
	wantByCoord := map[[2]int]int{
		{0, 0}: 2, {0, 1}: 2, {0, 2}: 1,
		{1, 0}: 2, {1, 1}: 2, {1, 2}: 1,
	}
	for coord, want := range wantByCoord {
		rank := mesh.RankAt(coord[0], coord[1])
		local, err := LocalShapeOf(global, mesh, placs, rank)
		require.NoError(t, err)
		assert.Equalf(t, want, local.Dimensions[0], "coord %v", coord)
	}
}

func TestLocalShapeOfZeroShards(t *testing.T) {
	// More participants than elements: trailing participants get zero-size shards.
	mesh := must.M1(meshes.New("m", []int{4}, nil))
	global := shapes.Make(dtypes.Float32, 2, 3)
	wantDim0 := []int{1, 1, 0, 0}
	for rank := 0; rank < 4; rank++ {
		local, err := LocalShapeOf(global, mesh, []placements.Placement{placements.Shard{Dim: 0}}, rank)
		require.NoError(t, err)
		assert.Equal(t, wantDim0[rank], local.Dimensions[0], "rank %d", rank)
	}
}

func TestLocalShapeOfScalar(t *testing.T) {
	// Rank-0 global shape: rank-0 local shape, no error, for any placements.
	mesh := must.M1(meshes.New("m", []int{2, 2}, nil))
	global := shapes.Make(dtypes.Float32)
	local, err := LocalShapeOf(global, mesh, placements.ReplicateAll(2), 3)
	require.NoError(t, err)
	assert.True(t, local.IsScalar())
}

func TestLocalShapeOfErrors(t *testing.T) {
	mesh := must.M1(meshes.New("m", []int{2, 2}, nil))
	global := shapes.Make(dtypes.Float32, 4)

	// Placements length must match mesh dimensionality.
	_, err := LocalShapeOf(global, mesh, placements.ReplicateAll(1), 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Shard dimension out of range.
	_, err = LocalShapeOf(global, mesh, []placements.Placement{placements.Shard{Dim: 1}, placements.Replicate{}}, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Rank not in mesh.
	_, err = LocalShapeOf(global, mesh, placements.ReplicateAll(2), 7)
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Nil mesh.
	_, err = LocalShapeOf(global, nil, nil, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestLocalShapeOfCustomRankLayout(t *testing.T) {
	// Shard assignment follows the mesh coordinate, not the raw rank value.
	mesh := must.M1(meshes.NewWithRanks("reversed", []int{4}, nil, []int{3, 2, 1, 0}))
	global := shapes.Make(dtypes.Float32, 10)
	// Rank 3 sits at coordinate 0, so it gets the first (full) chunk; rank 0 sits
	// at coordinate 3 and gets the remainder.
	local := must.M1(LocalShapeOf(global, mesh, []placements.Placement{placements.Shard{Dim: 0}}, 3))
	assert.Equal(t, 3, local.Dimensions[0])
	local = must.M1(LocalShapeOf(global, mesh, []placements.Placement{placements.Shard{Dim: 0}}, 0))
	assert.Equal(t, 1, local.Dimensions[0])
}
