/*
 *	Copyright 2025 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package dtensor constructs distributed tensors without communication.
//
// A distributed tensor (DTensor) is one logical tensor laid out over a grid of
// participant processes (a meshes.DeviceMesh): each participant holds only a local
// shard, and the placement of the tensor over the mesh axes (placements.Placement:
// Replicate, Shard or Partial, one per mesh axis) determines deterministically what
// each shard looks like.
//
// Everything in this package is a pure per-participant local computation: the
// factories (Ones, Zeros, Full), LocalShapeOf and Distribute never talk to other
// participants. Each of the N participant processes runs the identical call
// independently, and correctness relies on all of them supplying structurally
// identical arguments (same global shape, same mesh, same placements) -- there is
// deliberately no cross-participant validation, so divergent arguments silently
// produce inconsistent shards. Agreement is owned by the surrounding distributed
// runtime, typically by deriving the arguments from the same job configuration the
// Process handle was built from.
//
// Typical use, identical on every participant:
//
//	mesh := must.M1(meshes.New("training", []int{4}, []string{"data"}))
//	proc := must.M1(dtensor.NewProcess(mesh, myRank))
//	weights := must.M1(dtensor.Ones(proc, []int{10, 3},
//		dtensor.WithPlacements(placements.Shard{Dim: 0})))
//	// weights.LocalShape() is (Float32)[3 3] on ranks 0..2 and (Float32)[1 3] on rank 3.
package dtensor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/dtensor/meshes"
	"github.com/gomlx/dtensor/placements"
	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/dtensor/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// DTensor is one participant's view of a distributed tensor: the local shard it
// holds, plus the global metadata (shape, strides, mesh and placements) shared by
// all participants.
//
// The local tensor is owned by the DTensor (Finalize releases it); the mesh is
// referenced, not owned -- it is typically shared by many tensors. The placements
// sequence is copied at construction and on return, so neither the caller nor the
// DTensor can mutate the other's copy.
//
// Create DTensors with the factories (Ones, Zeros, Full) or with Distribute.
type DTensor struct {
	local *tensors.Tensor

	globalShape   shapes.Shape
	globalStrides []int

	mesh  *meshes.DeviceMesh
	placs []placements.Placement

	device       string
	requiresGrad bool
}

// LocalTensor returns the local shard held by this participant. The tensor is owned
// by the DTensor.
func (d *DTensor) LocalTensor() *tensors.Tensor { return d.local }

// LocalShape returns the shape of the local shard held by this participant.
func (d *DTensor) LocalShape() shapes.Shape { return d.local.Shape() }

// GlobalShape returns the global (logical) shape of the distributed tensor, the same
// on every participant.
func (d *DTensor) GlobalShape() shapes.Shape { return d.globalShape }

// Shape returns the global shape; it implements shapes.HasShape.
func (d *DTensor) Shape() shapes.Shape { return d.globalShape }

// GlobalStrides returns the row-major contiguous strides of the *global* shape --
// not of the local shard's buffer -- regardless of placements.
func (d *DTensor) GlobalStrides() []int { return slices.Clone(d.globalStrides) }

// Mesh returns the device mesh the tensor is laid out on. Shared, not owned.
func (d *DTensor) Mesh() *meshes.DeviceMesh { return d.mesh }

// Placements returns a copy of the tensor's placements, one per mesh axis.
func (d *DTensor) Placements() []placements.Placement { return slices.Clone(d.placs) }

// DType returns the element type of the tensor.
func (d *DTensor) DType() dtypes.DType { return d.globalShape.DType }

// Rank returns the rank of the global shape.
func (d *DTensor) Rank() int { return d.globalShape.Rank() }

// Size returns the number of elements of the *global* tensor.
func (d *DTensor) Size() int { return d.globalShape.Size() }

// Device returns the device tag the local shard is placed on.
func (d *DTensor) Device() string { return d.device }

// RequiresGrad returns whether gradient tracking was requested for the tensor.
func (d *DTensor) RequiresGrad() bool { return d.requiresGrad }

// Finalize releases the local shard and leaves the DTensor invalid. The mesh is not
// touched: it may be shared with other tensors.
func (d *DTensor) Finalize() {
	d.local.Finalize()
}

// String implements fmt.Stringer.
func (d *DTensor) String() string {
	placStrs := make([]string, len(d.placs))
	for ii, p := range d.placs {
		placStrs[ii] = p.String()
	}
	return fmt.Sprintf("DTensor(global=%s, local=%s, mesh=%q, placements=[%s])",
		d.globalShape, d.LocalShape(), d.mesh.Name(), strings.Join(placStrs, ", "))
}
