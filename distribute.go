package dtensor

import (
	"reflect"
	"slices"

	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/tensors"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Distribute takes a host tensor every participant holds in full -- structurally
// identical on all of them -- and turns it into a DTensor by keeping only the
// calling participant's block of it.
//
// Like the factories it is a pure local computation: no communication happens, the
// participant narrows its own copy of the global tensor down to the shard the
// placements assign to it. Replicated mesh axes keep the full dimensions; sharded
// axes keep the ceiling-division chunk of the participant's coordinate.
//
// Partial placements are rejected with ErrInvalidArgument: a Partial state describes
// pending reduction contributions, which cannot be derived from a materialized
// global tensor. The WithDType option is also rejected -- the dtype comes from the
// input tensor.
//
// The input tensor is not modified nor retained; the local shard is a copy.
func Distribute(proc *Process, global *tensors.Tensor, opts ...FactoryOption) (*DTensor, error) {
	if proc == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil Process")
	}
	if global == nil || !global.Ok() {
		return nil, errors.Wrap(ErrInvalidArgument, "Distribute requires a valid global tensor")
	}
	options := factoryOptions{
		mesh:   proc.DefaultMesh(),
		dtype:  dtypes.InvalidDType,
		layout: tensors.LayoutStrided,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.layout != tensors.LayoutStrided {
		return nil, errors.Wrapf(ErrInvalidArgument, "layout %s requested, only %s local buffers can be materialized",
			options.layout, tensors.LayoutStrided)
	}
	if options.dtype != dtypes.InvalidDType && options.dtype != global.DType() {
		return nil, errors.Wrapf(ErrInvalidArgument, "Distribute takes the dtype from the tensor (%s), cannot override it to %s",
			global.DType(), options.dtype)
	}
	mesh := options.mesh
	if mesh == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "nil device mesh")
	}
	placs := options.placs
	if placs == nil {
		placs = placements.ReplicateAll(mesh.NumAxes())
	}
	for _, p := range placs {
		if _, ok := p.(placements.Partial); ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "Distribute cannot construct a %s tensor from materialized values", p)
		}
	}

	globalShape := global.Shape()
	localShape, offsets, err := localBlock(globalShape, mesh, placs, proc.Rank())
	if err != nil {
		return nil, err
	}

	local, err := allocateFilled(localShape, 0)
	if err != nil {
		return nil, err
	}
	err = exceptions.TryCatch[error](func() {
		copyBlock(local, global, offsets)
	})
	if err != nil {
		return nil, errors.Wrapf(ErrAllocation, "copying local shard %s: %v", localShape, err)
	}

	device := options.device
	if device == "" {
		device = mesh.DeviceType()
	}
	return &DTensor{
		local:         local,
		globalShape:   globalShape.Clone(),
		globalStrides: globalShape.Strides(),
		mesh:          mesh,
		placs:         slices.Clone(placs),
		device:        device,
		requiresGrad:  options.requiresGrad,
	}, nil
}

// copyBlock copies the block of the global tensor starting at offsets (one per
// dimension) and with the local tensor's dimensions into the local tensor.
//
// Row-major on both sides: the innermost (last) dimension of the block is a
// contiguous run in the global flat data, so it is copied run by run.
func copyBlock(local, global *tensors.Tensor, offsets []int) {
	localShape := local.Shape()
	if localShape.IsScalar() || localShape.Size() == 0 {
		if localShape.IsScalar() {
			// Scalar: single element, no strides involved.
			global.ConstFlatData(func(src any) {
				local.MutableFlatData(func(dst any) {
					reflect.ValueOf(dst).Index(0).Set(reflect.ValueOf(src).Index(0))
				})
			})
		}
		return
	}

	globalStrides := global.Shape().Strides()
	rank := localShape.Rank()
	runLen := localShape.Dimensions[rank-1]

	// Iterate over the block rows: all indices but the last dimension.
	rowShape := localShape.Clone()
	rowShape.Dimensions = rowShape.Dimensions[:rank-1]

	global.ConstFlatData(func(src any) {
		local.MutableFlatData(func(dst any) {
			srcV := reflect.ValueOf(src)
			dstV := reflect.ValueOf(dst)
			dstPos := 0
			for rowIdx := range rowShape.Iter() {
				srcPos := offsets[rank-1] * globalStrides[rank-1]
				for dim, idx := range rowIdx {
					srcPos += (offsets[dim] + idx) * globalStrides[dim]
				}
				reflect.Copy(dstV.Slice(dstPos, dstPos+runLen), srcV.Slice(srcPos, srcPos+runLen))
				dstPos += runLen
			}
		})
	})
}
