package dtensor

import (
	"slices"

	"github.com/gomlx/dtensor/meshes"
	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/dtensor/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// FactoryOption configures the factories (Ones, Zeros, Full) and Distribute.
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	mesh         *meshes.DeviceMesh
	placs        []placements.Placement
	dtype        dtypes.DType
	device       string
	layout       tensors.Layout
	requiresGrad bool
}

// WithDType overrides the element type of the new tensor. Defaults to Float32.
func WithDType(dtype dtypes.DType) FactoryOption {
	return func(o *factoryOptions) { o.dtype = dtype }
}

// OnMesh lays the new tensor out on the given mesh instead of the Process's default
// mesh. The calling participant's rank must be part of it.
func OnMesh(mesh *meshes.DeviceMesh) FactoryOption {
	return func(o *factoryOptions) { o.mesh = mesh }
}

// WithPlacements sets the layout of the new tensor over the mesh axes: one placement
// per mesh axis. Defaults to Replicate on every axis.
func WithPlacements(placs ...placements.Placement) FactoryOption {
	return func(o *factoryOptions) { o.placs = slices.Clone(placs) }
}

// OnDevice overrides the device tag of the local shard. Defaults to the mesh's
// device type.
func OnDevice(device string) FactoryOption {
	return func(o *factoryOptions) { o.device = device }
}

// WithLayout requests a memory layout for the local shard. Only
// tensors.LayoutStrided can be materialized; anything else fails with
// ErrInvalidArgument.
func WithLayout(layout tensors.Layout) FactoryOption {
	return func(o *factoryOptions) { o.layout = layout }
}

// WithRequiresGrad marks the new tensor for gradient tracking.
func WithRequiresGrad(requiresGrad bool) FactoryOption {
	return func(o *factoryOptions) { o.requiresGrad = requiresGrad }
}

// Ones creates a distributed tensor of the given global dimensions filled with ones.
//
// See Full for the semantics and the errors; Ones(proc, dims, opts...) is
// Full(proc, dims, 1, opts...).
func Ones(proc *Process, dims []int, opts ...FactoryOption) (*DTensor, error) {
	return Full(proc, dims, 1, opts...)
}

// Zeros creates a distributed tensor of the given global dimensions filled with
// zeros.
//
// See Full for the semantics and the errors; Zeros(proc, dims, opts...) is
// Full(proc, dims, 0, opts...).
func Zeros(proc *Process, dims []int, opts ...FactoryOption) (*DTensor, error) {
	return Full(proc, dims, 0, opts...)
}

// Full creates a distributed tensor of the given global dimensions with every
// element set to value (converted to the tensor's dtype).
//
// dims is the *global* logical shape; `[]int{}` (or nil) is a valid scalar shape.
// The calling participant's local shard shape is computed with LocalShapeOf from the
// mesh (the Process's default mesh, unless OnMesh is given) and the placements
// (all-Replicate, unless WithPlacements is given), and only that shard is allocated
// and filled. No communication happens; every participant must call with identical
// arguments.
//
// The resulting DTensor records the global shape as requested and the row-major
// contiguous strides of that global shape -- not of the local buffer.
//
// Errors wrap ErrInvalidArgument (placements/mesh mismatch, non-strided layout,
// negative dimension, rank not in mesh) or ErrAllocation (the local buffer could not
// be materialized).
func Full(proc *Process, dims []int, value float64, opts ...FactoryOption) (*DTensor, error) {
	if proc == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil Process")
	}
	options := factoryOptions{
		mesh:   proc.DefaultMesh(),
		dtype:  dtypes.Float32,
		layout: tensors.LayoutStrided,
	}
	for _, opt := range opts {
		opt(&options)
	}

	// All preconditions are checked before any allocation.
	if options.layout != tensors.LayoutStrided {
		return nil, errors.Wrapf(ErrInvalidArgument, "layout %s requested, only %s local buffers can be materialized",
			options.layout, tensors.LayoutStrided)
	}
	for _, dim := range dims {
		if dim < 0 {
			return nil, errors.Wrapf(ErrInvalidArgument, "global shape %v has a negative dimension", dims)
		}
	}
	mesh := options.mesh
	if mesh == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil device mesh")
	}
	placs := options.placs
	if placs == nil {
		placs = placements.ReplicateAll(mesh.NumAxes())
	}

	global := shapes.Make(options.dtype, dims...)
	localShape, err := LocalShapeOf(global, mesh, placs, proc.Rank())
	if err != nil {
		return nil, err
	}

	local, err := allocateFilled(localShape, value)
	if err != nil {
		return nil, err
	}

	device := options.device
	if device == "" {
		device = mesh.DeviceType()
	}
	return &DTensor{
		local:         local,
		globalShape:   global,
		globalStrides: global.Strides(),
		mesh:          mesh,
		placs:         slices.Clone(placs),
		device:        device,
		requiresGrad:  options.requiresGrad,
	}, nil
}

// allocateFilled materializes a host buffer of the given shape filled with value,
// bridging the buffer engine's panic-style errors into ErrAllocation.
func allocateFilled(shape shapes.Shape, value float64) (*tensors.Tensor, error) {
	var local *tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		local = tensors.FromShape(shape)
		if value != 0 {
			tensors.FillConstant(local, value)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(ErrAllocation, "allocating local shard %s: %v", shape, err)
	}
	return local, nil
}
