package tensors

import (
	"github.com/gomlx/dtensor/types/xslices"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// FillConstant sets every element of the tensor to the given value, converted to the
// tensor's dtype. Booleans are set to `value != 0`; complex dtypes get the value as
// their real part.
//
// It panics (exceptions-style) if the tensor's dtype has no Go representation to fill.
func FillConstant(t *Tensor, value float64) {
	t.MutableFlatData(func(flat any) {
		fillFlat(flat, value)
	})
}

func fillFlat(flat any, value float64) {
	switch data := flat.(type) {
	case []bool:
		xslices.FillSlice(data, value != 0)
	case []int8:
		xslices.FillSlice(data, int8(value))
	case []int16:
		xslices.FillSlice(data, int16(value))
	case []int32:
		xslices.FillSlice(data, int32(value))
	case []int64:
		xslices.FillSlice(data, int64(value))
	case []uint8:
		xslices.FillSlice(data, uint8(value))
	case []uint16:
		xslices.FillSlice(data, uint16(value))
	case []uint32:
		xslices.FillSlice(data, uint32(value))
	case []uint64:
		xslices.FillSlice(data, uint64(value))
	case []float16.Float16:
		xslices.FillSlice(data, float16.Fromfloat32(float32(value)))
	case []bfloat16.BFloat16:
		xslices.FillSlice(data, bfloat16.FromFloat32(float32(value)))
	case []float32:
		xslices.FillSlice(data, float32(value))
	case []float64:
		xslices.FillSlice(data, value)
	case []complex64:
		xslices.FillSlice(data, complex(float32(value), 0))
	case []complex128:
		xslices.FillSlice(data, complex(value, 0))
	default:
		exceptions.Panicf("tensors.FillConstant: flat data type %T not supported", flat)
	}
}
