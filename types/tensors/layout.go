package tensors

// Layout is the memory-layout tag of a Tensor buffer.
//
// Only LayoutStrided (densely packed, row-major) buffers can be materialized by this
// package; the other values exist so callers can request -- and be told apart from --
// layouts a different buffer engine might support.
type Layout int

const (
	// LayoutStrided is a densely packed buffer addressed with row-major strides.
	// It is the default, and the only layout this package materializes.
	LayoutStrided Layout = iota

	// LayoutCOO is a sparse coordinate-list layout. Not materializable here.
	LayoutCOO
)

//go:generate go tool enumer -type Layout -trimprefix=Layout -output=gen_layout_enumer.go layout.go
