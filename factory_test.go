package dtensor

import (
	"testing"

	"github.com/gomlx/dtensor/meshes"
	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcess(t *testing.T, dims []int, rank int) *Process {
	t.Helper()
	mesh := must.M1(meshes.New("test", dims, nil))
	proc, err := NewProcess(mesh, rank)
	require.NoError(t, err)
	return proc
}

func TestOnesReplicated(t *testing.T) {
	// Defaults: Float32, all-Replicate on the Process's default mesh.
	for rank := 0; rank < 4; rank++ {
		proc := newTestProcess(t, []int{4}, rank)
		dt, err := Ones(proc, []int{2, 3})
		require.NoError(t, err)
		require.NoError(t, dt.LocalShape().Check(dtypes.Float32, 2, 3))
		require.NoError(t, dt.GlobalShape().Check(dtypes.Float32, 2, 3))
		assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, tensors.CopyFlatData[float32](dt.LocalTensor()))
		assert.Equal(t, placements.ReplicateAll(1), dt.Placements())
	}
}

func TestZerosSharded(t *testing.T) {
	// Mesh axis extent 4, global [10, 3], Shard(0): local dim-0 sizes are [3,3,3,1].
	wantDim0 := []int{3, 3, 3, 1}
	for rank := 0; rank < 4; rank++ {
		proc := newTestProcess(t, []int{4}, rank)
		dt, err := Zeros(proc, []int{10, 3}, WithPlacements(placements.Shard{Dim: 0}))
		require.NoError(t, err)
		assert.Equal(t, wantDim0[rank], dt.LocalShape().Dimensions[0], "rank %d", rank)
		assert.Equal(t, 3, dt.LocalShape().Dimensions[1])
		// Global metadata is rank-independent.
		require.NoError(t, dt.GlobalShape().Check(dtypes.Float32, 10, 3))
		assert.Equal(t, []int{3, 1}, dt.GlobalStrides())
		assert.Equal(t, 30, dt.Size())
		if dt.LocalShape().Size() > 0 {
			flat := tensors.CopyFlatData[float32](dt.LocalTensor())
			for _, v := range flat {
				assert.Zero(t, v)
			}
		}
	}
}

func TestGlobalStridesIndependentOfPlacements(t *testing.T) {
	proc := newTestProcess(t, []int{2, 2}, 1)
	for _, placs := range [][]placements.Placement{
		{placements.Replicate{}, placements.Replicate{}},
		{placements.Shard{Dim: 0}, placements.Replicate{}},
		{placements.Shard{Dim: 0}, placements.Shard{Dim: 1}},
		{placements.Partial{}, placements.Shard{Dim: 2}},
	} {
		dt, err := Ones(proc, []int{4, 6, 2}, WithPlacements(placs...))
		require.NoError(t, err)
		assert.Equal(t, []int{12, 2, 1}, dt.GlobalStrides(), "placements %v", placs)
	}
}

func TestFullOptions(t *testing.T) {
	proc := newTestProcess(t, []int{2}, 0)
	dt, err := Full(proc, []int{3}, 2.5,
		WithDType(dtypes.Float64),
		OnDevice("cuda"),
		WithRequiresGrad(true))
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, dt.DType())
	assert.Equal(t, "cuda", dt.Device())
	assert.True(t, dt.RequiresGrad())
	assert.Equal(t, []float64{2.5, 2.5, 2.5}, tensors.CopyFlatData[float64](dt.LocalTensor()))
}

func TestFactoryDTypes(t *testing.T) {
	proc := newTestProcess(t, []int{2}, 1)
	for _, dtype := range []dtypes.DType{
		dtypes.Bool, dtypes.Int8, dtypes.Int32, dtypes.Int64,
		dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
		dtypes.Complex64, dtypes.Complex128,
	} {
		dt, err := Ones(proc, []int{2, 2}, WithDType(dtype))
		require.NoErrorf(t, err, "dtype %s", dtype)
		assert.Equal(t, dtype, dt.DType())
		assert.Equal(t, 4, dt.LocalShape().Size())
	}
}

func TestOnMeshOverride(t *testing.T) {
	defaultMesh := must.M1(meshes.New("default", []int{2}, nil))
	otherMesh := must.M1(meshes.New("other", []int{2, 1}, nil))
	proc, err := NewProcess(defaultMesh, 1)
	require.NoError(t, err)

	dt, err := Ones(proc, []int{4}, OnMesh(otherMesh))
	require.NoError(t, err)
	assert.True(t, otherMesh.Equal(dt.Mesh()))
	assert.Len(t, dt.Placements(), 2)
}

func TestScalarFactory(t *testing.T) {
	// Rank-0 global shape: a rank-0 local buffer, without error, for any placements.
	proc := newTestProcess(t, []int{2, 2}, 2)
	dt, err := Ones(proc, nil, WithPlacements(placements.Replicate{}, placements.Partial{}))
	require.NoError(t, err)
	assert.True(t, dt.LocalShape().IsScalar())
	assert.Nil(t, dt.GlobalStrides())
	assert.Equal(t, float32(1), tensors.ToScalar[float32](dt.LocalTensor()))
}

func TestIdempotence(t *testing.T) {
	// Same arguments on the same participant: buffers of identical shape and fill.
	proc := newTestProcess(t, []int{3}, 1)
	opts := []FactoryOption{WithPlacements(placements.Shard{Dim: 0}), WithDType(dtypes.Int32)}
	dt0, err := Ones(proc, []int{7}, opts...)
	require.NoError(t, err)
	dt1, err := Ones(proc, []int{7}, opts...)
	require.NoError(t, err)
	assert.True(t, dt0.LocalShape().Equal(dt1.LocalShape()))
	assert.True(t, dt0.LocalTensor().Equal(dt1.LocalTensor()))
}

func TestFactoryErrors(t *testing.T) {
	proc := newTestProcess(t, []int{2, 2}, 0)

	// Placements length mismatch with mesh dimensionality.
	_, err := Ones(proc, []int{4}, WithPlacements(placements.Replicate{}))
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Unsupported layout for Zeros...
	_, err = Zeros(proc, []int{2, 2}, WithLayout(tensors.LayoutCOO))
	require.ErrorIs(t, err, ErrInvalidArgument)
	// ...and for Ones/Full too, since only strided buffers can be materialized.
	_, err = Ones(proc, []int{2, 2}, WithLayout(tensors.LayoutCOO))
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Negative global dimension.
	_, err = Ones(proc, []int{2, -1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Shard dimension out of range, including negative (rejected, not normalized).
	_, err = Ones(proc, []int{4}, WithPlacements(placements.Shard{Dim: 1}, placements.Replicate{}))
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Ones(proc, []int{4}, WithPlacements(placements.Shard{Dim: -1}, placements.Replicate{}))
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Rank not part of the override mesh.
	tiny := must.M1(meshes.NewWithRanks("tiny", []int{1}, nil, []int{7}))
	_, err = Ones(proc, []int{4}, OnMesh(tiny))
	require.ErrorIs(t, err, ErrInvalidArgument)

	// Nil process.
	_, err = Ones(nil, []int{4})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDTensorString(t *testing.T) {
	proc := newTestProcess(t, []int{4}, 0)
	dt, err := Ones(proc, []int{10, 3}, WithPlacements(placements.Shard{Dim: 0}))
	require.NoError(t, err)
	assert.Equal(t, `DTensor(global=(Float32)[10 3], local=(Float32)[3 3], mesh="test", placements=[Shard(0)])`, dt.String())
}

func TestFinalize(t *testing.T) {
	proc := newTestProcess(t, []int{2}, 0)
	dt, err := Ones(proc, []int{2})
	require.NoError(t, err)
	dt.Finalize()
	assert.False(t, dt.LocalTensor().Ok())
}
