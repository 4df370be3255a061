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

package tensors

import (
	"path"
	"testing"

	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromShape(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	require.True(t, tensor.Ok())
	assert.Equal(t, 2, tensor.Rank())
	assert.Equal(t, 6, tensor.Size())
	assert.Equal(t, dtypes.Float32, tensor.DType())
	ConstFlatData(tensor, func(flat []float32) {
		assert.Equal(t, make([]float32, 6), flat)
	})

	require.Panics(t, func() { FromShape(shapes.Invalid()) })
}

func TestFromShapeZeroSize(t *testing.T) {
	// An empty shard is a valid tensor with no data.
	tensor := FromShape(shapes.Make(dtypes.Float64, 0, 3))
	require.True(t, tensor.Ok())
	assert.Equal(t, 0, tensor.Size())
	tensor.ConstBytes(func(data []byte) {
		assert.Empty(t, data)
	})
}

func TestFromScalarAndDimensions(t *testing.T) {
	tensor := FromScalarAndDimensions(float32(7), 2, 2)
	assert.Equal(t, [][]float32{{7, 7}, {7, 7}}, tensor.Value())

	scalar := FromScalar(int32(3))
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, int32(3), ToScalar[int32](scalar))
}

func TestFromFlatDataAndDimensions(t *testing.T) {
	tensor := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2)
	assert.Equal(t, [][]int8{{1, 2}, {3, 4}}, tensor.Value())
	assert.Equal(t, []int8{1, 2, 3, 4}, CopyFlatData[int8](tensor))

	require.Panics(t, func() { FromFlatDataAndDimensions([]int8{1, 2, 3}, 2, 2) })
}

func TestFromValue(t *testing.T) {
	tensor := FromValue([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, tensor.Shape().Check(dtypes.Float64, 3, 2))
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, tensor.Value())

	// Irregular sub-slices must panic.
	require.Panics(t, func() { FromAnyValue([][]float64{{1, 2}, {3}}) })
}

func TestMutableAndConstAccess(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Int64, 3))
	MutableFlatData(tensor, func(flat []int64) {
		for ii := range flat {
			flat[ii] = int64(ii) * 10
		}
	})
	ConstFlatData(tensor, func(flat []int64) {
		assert.Equal(t, []int64{0, 10, 20}, flat)
	})

	// Generic access with the wrong dtype panics.
	require.Panics(t, func() { ConstFlatData(tensor, func(flat []float32) {}) })
}

func TestLayoutStrides(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Float32, 4, 3, 2))
	assert.Equal(t, []int{6, 2, 1}, tensor.LayoutStrides())
}

func TestEqualAndInDelta(t *testing.T) {
	t0 := FromValue([]float32{1, 2, 3})
	t1 := FromValue([]float32{1, 2, 3})
	t2 := FromValue([]float32{1, 2, 4})
	assert.True(t, t0.Equal(t1))
	assert.False(t, t0.Equal(t2))
	assert.True(t, t0.InDelta(t2, 1.5))
	assert.False(t, t0.InDelta(t2, 0.5))

	// Zero-size tensors compare equal by shape alone.
	z0 := FromShape(shapes.Make(dtypes.Float32, 0))
	z1 := FromShape(shapes.Make(dtypes.Float32, 0))
	assert.True(t, z0.Equal(z1))
	assert.True(t, z0.InDelta(z1, 0))
}

func TestClone(t *testing.T) {
	t0 := FromValue([]int32{1, 2, 3})
	t1 := t0.Clone()
	require.True(t, t0.Equal(t1))
	MutableFlatData(t1, func(flat []int32) { flat[0] = 7 })
	assert.Equal(t, int32(1), CopyFlatData[int32](t0)[0])
}

func TestFinalize(t *testing.T) {
	tensor := FromValue([]float32{1, 2})
	tensor.Finalize()
	assert.False(t, tensor.Ok())
	require.Panics(t, func() { tensor.ConstFlatData(func(flat any) {}) })
}

func TestSaveAndLoad(t *testing.T) {
	tensor := FromValue([][]int64{{1, 2}, {3, 4}})
	filePath := path.Join(t.TempDir(), "tensor.bin")
	require.NoError(t, tensor.Save(filePath))
	loaded, err := Load(filePath)
	require.NoError(t, err)
	require.True(t, tensor.Equal(loaded))
}
