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

// Package placements defines how a distributed tensor is laid out over the axes of
// a device mesh (see the meshes package).
//
// A Placement describes the layout along one mesh axis, and is one of:
//
//   - Replicate: every participant along the mesh axis holds an identical full copy.
//   - Shard: one dimension of the global tensor is partitioned across the
//     participants along the mesh axis.
//   - Partial: every participant holds a partial contribution, pending a reduction
//     (e.g. a sum) across the mesh axis.
//
// A tensor's full layout is an ordered sequence of placements, one per mesh axis,
// composed left to right: a tensor dimension sharded on two mesh axes is split
// twice, sequentially.
//
// The set is closed: the local-shape computation does an exhaustive type switch on
// these three types, so the Placement interface is sealed.
package placements

import (
	"fmt"

	"github.com/pkg/errors"
)

// Placement describes the layout of a distributed tensor along one mesh axis.
//
// It is a sealed interface: the only implementations are Replicate, Shard and
// Partial, and consumers dispatch on them with an exhaustive type switch.
type Placement interface {
	fmt.Stringer

	// isPlacement seals the interface.
	isPlacement()
}

// Replicate places an identical full copy of the tensor on every participant along
// the mesh axis.
//
// It is the default placement: a tensor whose placements are all Replicate is an
// ordinary, fully replicated tensor.
type Replicate struct{}

func (Replicate) isPlacement() {}

// String implements fmt.Stringer.
func (Replicate) String() string { return "Replicate" }

// Shard partitions dimension Dim of the global tensor across the participants along
// the mesh axis.
//
// The partition follows the ceiling-division chunk rule: with a global extent `e`
// split over an axis of size `k`, every participant gets a chunk of
// `ceil(e/k)` elements, except the trailing participant(s), which get what remains
// -- possibly zero. Chunk sizes are therefore non-increasing in the participant's
// coordinate, and they always sum back to `e`.
type Shard struct {
	// Dim is the dimension (axis) of the *global tensor* being partitioned -- not a
	// mesh axis.
	Dim int
}

func (Shard) isPlacement() {}

// String implements fmt.Stringer.
func (s Shard) String() string { return fmt.Sprintf("Shard(%d)", s.Dim) }

// LocalExtent returns the number of elements of a global dimension of extent
// globalExtent that the participant at position coord along a mesh axis of size
// axisSize holds. It may be zero for trailing participants.
func (s Shard) LocalExtent(globalExtent, axisSize, coord int) int {
	chunk := ceilDiv(globalExtent, axisSize)
	start := min(chunk*coord, globalExtent)
	end := min(chunk*(coord+1), globalExtent)
	return end - start
}

// LocalOffset returns the offset within the global dimension of extent globalExtent
// where the local chunk of the participant at position coord starts.
func (s Shard) LocalOffset(globalExtent, axisSize, coord int) int {
	chunk := ceilDiv(globalExtent, axisSize)
	return min(chunk*coord, globalExtent)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Partial marks that every participant along the mesh axis holds a partial
// contribution of the tensor, pending a reduction (Op) across the axis.
//
// For local-shape purposes a Partial tensor looks exactly like a Replicate one: the
// full dimensions are present on every participant, only the values are not final.
type Partial struct {
	// Op is the pending reduction. The zero value stands for a sum.
	Op ReduceOpType
}

func (Partial) isPlacement() {}

// String implements fmt.Stringer.
func (p Partial) String() string { return fmt.Sprintf("Partial(%s)", p.Reduce()) }

// Reduce returns the reduction pending across the mesh axis. The zero value of
// Partial defaults to ReduceOpSum.
func (p Partial) Reduce() ReduceOpType {
	if p.Op == ReduceOpUndefined {
		return ReduceOpSum
	}
	return p.Op
}

// ReplicateAll returns a placements sequence that replicates the tensor on every one
// of the numAxes mesh axes.
func ReplicateAll(numAxes int) []Placement {
	seq := make([]Placement, numAxes)
	for ii := range seq {
		seq[ii] = Replicate{}
	}
	return seq
}

// Check validates a placements sequence against a mesh with numMeshAxes axes and a
// tensor of rank tensorRank: the sequence must have exactly one entry per mesh axis,
// and every Shard must name a valid tensor dimension.
func Check(seq []Placement, numMeshAxes, tensorRank int) error {
	if len(seq) != numMeshAxes {
		return errors.Errorf("placements sequence has %d entries, but the mesh has %d axes -- one placement per mesh axis is required",
			len(seq), numMeshAxes)
	}
	for axis, p := range seq {
		switch p := p.(type) {
		case Shard:
			if p.Dim < 0 || p.Dim >= tensorRank {
				return errors.Errorf("placement %s for mesh axis %d shards tensor dimension out of range [0, %d)",
					p, axis, tensorRank)
			}
		case Replicate, Partial:
			// Always valid.
		case nil:
			return errors.Errorf("placement for mesh axis %d is nil", axis)
		default:
			return errors.Errorf("unknown placement type %T for mesh axis %d", p, axis)
		}
	}
	return nil
}
