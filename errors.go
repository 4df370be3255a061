package dtensor

import "github.com/pkg/errors"

// Sentinel errors of the package. Every error returned by the factories wraps one of
// them, so callers can match with errors.Is while still getting a message (and stack
// trace) describing the specific failure.
var (
	// ErrInvalidArgument indicates a precondition violation detected before any
	// allocation: a placements sequence whose length doesn't match the mesh
	// dimensionality, an unsupported layout, a shard dimension out of range, or a
	// rank that is not part of the mesh.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAllocation indicates the local buffer for the computed shard shape could
	// not be materialized. It is propagated, never recovered.
	ErrAllocation = errors.New("local buffer allocation failed")
)
