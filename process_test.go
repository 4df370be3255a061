package dtensor

import (
	"testing"

	"github.com/gomlx/dtensor/meshes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcess(t *testing.T) {
	mesh := must.M1(meshes.New("job", []int{2, 3}, []string{"data", "model"}))

	proc, err := NewProcess(mesh, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, proc.Rank())
	assert.True(t, mesh.Equal(proc.DefaultMesh()))
	assert.Equal(t, []int{1, 1}, proc.Coordinate())
	assert.Equal(t, `Process(rank=4, mesh="job")`, proc.String())

	_, err = NewProcess(mesh, 6)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewProcess(mesh, -1)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewProcess(nil, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestProcessCustomRanks(t *testing.T) {
	mesh := must.M1(meshes.NewWithRanks("job", []int{2}, nil, []int{10, 20}))
	proc := must.M1(NewProcess(mesh, 20))
	assert.Equal(t, []int{1}, proc.Coordinate())
}
