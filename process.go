package dtensor

import (
	"fmt"

	"github.com/gomlx/dtensor/meshes"
	"github.com/pkg/errors"
)

// Process is the explicit per-participant handle: the default device mesh shared by
// every participant of the job, plus this participant's own global rank.
//
// It replaces the hidden "process-wide default mesh" global of other distributed
// tensor systems: by making every factory call take the Process explicitly, the
// requirement that all participants agree on the mesh is auditable at the call site
// instead of being ambient state.
//
// Construct one per participant process during job initialization and treat it as
// read-only afterwards. It is safe for concurrent use.
type Process struct {
	defaultMesh *meshes.DeviceMesh
	rank        int
}

// NewProcess creates the participant handle for the participant with the given
// global rank, using defaultMesh as the mesh factories fall back to when no OnMesh
// option is given.
//
// It fails with ErrInvalidArgument if the mesh is nil or the rank is not part of it.
func NewProcess(defaultMesh *meshes.DeviceMesh, rank int) (*Process, error) {
	if defaultMesh == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "NewProcess requires a non-nil default mesh")
	}
	if !defaultMesh.Contains(rank) {
		return nil, errors.Wrapf(ErrInvalidArgument, "participant rank %d is not part of the default mesh %s", rank, defaultMesh)
	}
	return &Process{defaultMesh: defaultMesh, rank: rank}, nil
}

// DefaultMesh returns the mesh factories use when the OnMesh option is not given.
func (p *Process) DefaultMesh() *meshes.DeviceMesh { return p.defaultMesh }

// Rank returns this participant's global rank.
func (p *Process) Rank() int { return p.rank }

// Coordinate returns this participant's coordinates on the default mesh, one per
// mesh axis.
func (p *Process) Coordinate() []int {
	coords, err := p.defaultMesh.CoordinateOf(p.rank)
	if err != nil {
		// NewProcess validated membership; the mesh is immutable.
		panic(err)
	}
	return coords
}

// String implements fmt.Stringer.
func (p *Process) String() string {
	return fmt.Sprintf("Process(rank=%d, mesh=%q)", p.rank, p.defaultMesh.Name())
}
