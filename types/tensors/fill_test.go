package tensors

import (
	"testing"

	"github.com/gomlx/dtensor/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestFillConstant(t *testing.T) {
	for _, dtype := range []dtypes.DType{
		dtypes.Bool, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
		dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
		dtypes.Complex64, dtypes.Complex128,
	} {
		tensor := FromShape(shapes.Make(dtype, 2, 3))
		FillConstant(tensor, 1)
		require.Truef(t, tensor.Ok(), "dtype %s", dtype)
		switch dtype {
		case dtypes.Bool:
			assert.Equal(t, []bool{true, true, true, true, true, true}, CopyFlatData[bool](tensor))
		case dtypes.Float16:
			assert.Equal(t, float16.Fromfloat32(1), CopyFlatData[float16.Float16](tensor)[0])
		case dtypes.BFloat16:
			assert.Equal(t, bfloat16.FromFloat32(1), CopyFlatData[bfloat16.BFloat16](tensor)[0])
		case dtypes.Float32:
			assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, CopyFlatData[float32](tensor))
		case dtypes.Complex64:
			assert.Equal(t, complex64(1), CopyFlatData[complex64](tensor)[0])
		case dtypes.Complex128:
			assert.Equal(t, complex128(1), CopyFlatData[complex128](tensor)[0])
		}
	}
}

func TestFillConstantZeroAndBool(t *testing.T) {
	tensor := FromShape(shapes.Make(dtypes.Bool, 3))
	FillConstant(tensor, 0)
	assert.Equal(t, []bool{false, false, false}, CopyFlatData[bool](tensor))

	// Filling an empty shard is a no-op, not an error.
	empty := FromShape(shapes.Make(dtypes.Float32, 0, 2))
	require.NotPanics(t, func() { FillConstant(empty, 1) })
}

func TestLayoutEnum(t *testing.T) {
	assert.Equal(t, "Strided", LayoutStrided.String())
	assert.Equal(t, "COO", LayoutCOO.String())
	layout, err := LayoutString("strided")
	require.NoError(t, err)
	assert.Equal(t, LayoutStrided, layout)
	_, err = LayoutString("banana")
	require.Error(t, err)
	assert.True(t, LayoutCOO.IsALayout())
	assert.False(t, Layout(7).IsALayout())
}
