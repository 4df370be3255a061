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

// Package meshes defines DeviceMesh, an N-dimensional grid of participant ranks over
// which distributed tensors are laid out.
//
// A mesh axis is one dimension of the grid, optionally named ("data", "model", ...).
// Each cell of the grid holds the global rank of one participant process; the
// assignment is row-major (the last axis varies fastest) unless an explicit rank
// layout is given with NewWithRanks.
//
// A DeviceMesh is immutable after construction: its dimensionality and per-axis
// extents never change, so it can safely be shared by many tensors, and across
// goroutines, without synchronization.
package meshes

import (
	"encoding/gob"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultDeviceType is the device tag of meshes that don't set one with WithDeviceType.
const DefaultDeviceType = "cpu"

// DeviceMesh is an N-dimensional grid of participant ranks, with optionally named axes.
//
// Create it with New or NewWithRanks. It is immutable after construction.
type DeviceMesh struct {
	name       string
	deviceType string
	dims       []int
	axisNames  []string
	nameToAxis map[string]int

	// ranks holds the participant rank in each mesh cell, flattened row-major.
	ranks []int

	// rankToIndex maps a participant rank back to its flat cell index.
	rankToIndex map[int]int
}

// New creates a DeviceMesh of the given per-axis extents, with participant ranks
// assigned row-major: `0 .. NumDevices()-1`, the last axis varying fastest.
//
// name may be empty, in which case a unique one is generated. axisNames may be nil
// (unnamed axes) or have one unique, non-empty name per axis.
func New(name string, dims []int, axisNames []string) (*DeviceMesh, error) {
	numDevices := 1
	for _, dim := range dims {
		numDevices *= dim
	}
	ranks := make([]int, numDevices)
	for ii := range ranks {
		ranks[ii] = ii
	}
	return NewWithRanks(name, dims, axisNames, ranks)
}

// NewWithRanks is like New, but takes an explicit assignment of participant ranks to
// mesh cells: ranks must hold one unique rank per cell, flattened row-major.
func NewWithRanks(name string, dims []int, axisNames []string, ranks []int) (*DeviceMesh, error) {
	if len(dims) == 0 {
		return nil, errors.Errorf("device mesh requires at least one axis, got dims=%v", dims)
	}
	numDevices := 1
	for axis, dim := range dims {
		if dim < 1 {
			return nil, errors.Errorf("device mesh axis %d has extent %d, every axis requires at least one participant", axis, dim)
		}
		numDevices *= dim
	}
	if axisNames != nil && len(axisNames) != len(dims) {
		return nil, errors.Errorf("device mesh has %d axes, but %d axis names given", len(dims), len(axisNames))
	}
	nameToAxis := make(map[string]int, len(axisNames))
	for axis, axisName := range axisNames {
		if axisName == "" {
			return nil, errors.Errorf("device mesh axis %d has an empty name", axis)
		}
		if _, found := nameToAxis[axisName]; found {
			return nil, errors.Errorf("device mesh axis name %q is duplicated", axisName)
		}
		nameToAxis[axisName] = axis
	}
	if len(ranks) != numDevices {
		return nil, errors.Errorf("device mesh with dims %v requires %d participant ranks, got %d", dims, numDevices, len(ranks))
	}
	rankToIndex := make(map[int]int, len(ranks))
	for index, rank := range ranks {
		if _, found := rankToIndex[rank]; found {
			return nil, errors.Errorf("participant rank %d appears more than once in the device mesh", rank)
		}
		rankToIndex[rank] = index
	}
	if name == "" {
		name = fmt.Sprintf("mesh-%s", uuid.NewString()[:8])
	}
	m := &DeviceMesh{
		name:        name,
		deviceType:  DefaultDeviceType,
		dims:        slices.Clone(dims),
		axisNames:   slices.Clone(axisNames),
		nameToAxis:  nameToAxis,
		ranks:       slices.Clone(ranks),
		rankToIndex: rankToIndex,
	}
	klog.V(1).Infof("meshes.New: created %s", m)
	return m, nil
}

// WithDeviceType sets the device tag ("cpu", "cuda", ...) of the mesh.
// It returns the mesh, so calls can be chained after New.
func (m *DeviceMesh) WithDeviceType(deviceType string) *DeviceMesh {
	m.deviceType = deviceType
	return m
}

// Name of the mesh.
func (m *DeviceMesh) Name() string { return m.name }

// DeviceType returns the device tag of the mesh, DefaultDeviceType if never set.
func (m *DeviceMesh) DeviceType() string { return m.deviceType }

// NumAxes returns the dimensionality of the mesh: the number of mesh axes.
func (m *DeviceMesh) NumAxes() int { return len(m.dims) }

// AxisSize returns the number of participants along the given mesh axis.
func (m *DeviceMesh) AxisSize(axis int) int { return m.dims[axis] }

// Dims returns a copy of the per-axis extents of the mesh.
func (m *DeviceMesh) Dims() []int { return slices.Clone(m.dims) }

// NumDevices returns the total number of participants in the mesh.
func (m *DeviceMesh) NumDevices() int { return len(m.ranks) }

// Ranks returns a copy of the participant ranks in row-major cell order.
func (m *DeviceMesh) Ranks() []int { return slices.Clone(m.ranks) }

// LogicalDeviceAssignment is an alias of Ranks: the flat rank-per-cell assignment
// handed to runtimes that take one.
func (m *DeviceMesh) LogicalDeviceAssignment() []int { return m.Ranks() }

// AxisName returns the name of the given mesh axis, or "" if axes are unnamed.
func (m *DeviceMesh) AxisName(axis int) string {
	if m.axisNames == nil {
		return ""
	}
	return m.axisNames[axis]
}

// AxisByName returns the mesh axis with the given name, and whether it exists.
func (m *DeviceMesh) AxisByName(name string) (axis int, found bool) {
	axis, found = m.nameToAxis[name]
	return
}

// Contains returns whether the given participant rank is part of the mesh.
func (m *DeviceMesh) Contains(rank int) bool {
	_, found := m.rankToIndex[rank]
	return found
}

// RankAt returns the participant rank at the given mesh coordinates, one per axis.
// It panics on out-of-bounds coordinates.
func (m *DeviceMesh) RankAt(coords ...int) int {
	if len(coords) != m.NumAxes() {
		panic(errors.Errorf("DeviceMesh.RankAt: mesh %q has %d axes, got %d coordinates", m.name, m.NumAxes(), len(coords)))
	}
	index := 0
	for axis, coord := range coords {
		if coord < 0 || coord >= m.dims[axis] {
			panic(errors.Errorf("DeviceMesh.RankAt: coordinate %d out-of-bounds for mesh axis %d (extent %d)", coord, axis, m.dims[axis]))
		}
		index = index*m.dims[axis] + coord
	}
	return m.ranks[index]
}

// CoordinateOf returns the mesh coordinates (one per axis) of the given participant
// rank, or an error if the rank is not part of the mesh.
func (m *DeviceMesh) CoordinateOf(rank int) ([]int, error) {
	index, found := m.rankToIndex[rank]
	if !found {
		return nil, errors.Errorf("participant rank %d is not part of device mesh %q (ranks=%v)", rank, m.name, m.ranks)
	}
	coords := make([]int, m.NumAxes())
	for axis := m.NumAxes() - 1; axis >= 0; axis-- {
		coords[axis] = index % m.dims[axis]
		index /= m.dims[axis]
	}
	return coords, nil
}

// Equal compares two meshes: name, device type, axes (extents and names) and rank
// assignment must all match.
func (m *DeviceMesh) Equal(other *DeviceMesh) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil {
		return false
	}
	return m.name == other.name &&
		m.deviceType == other.deviceType &&
		slices.Equal(m.dims, other.dims) &&
		slices.Equal(m.axisNames, other.axisNames) &&
		slices.Equal(m.ranks, other.ranks)
}

// String implements fmt.Stringer.
func (m *DeviceMesh) String() string {
	var axes strings.Builder
	for axis, dim := range m.dims {
		if axis > 0 {
			axes.WriteString(", ")
		}
		if name := m.AxisName(axis); name != "" {
			fmt.Fprintf(&axes, "%q=%d", name, dim)
		} else {
			fmt.Fprintf(&axes, "%d", dim)
		}
	}
	return fmt.Sprintf("DeviceMesh(%q, device=%s, [%s], %d participants)", m.name, m.deviceType, axes.String(), m.NumDevices())
}

// meshGob is the gob wire form of a DeviceMesh.
type meshGob struct {
	Name       string
	DeviceType string
	Dims       []int
	AxisNames  []string
	Ranks      []int
}

// GobSerialize mesh metadata in binary format.
func (m *DeviceMesh) GobSerialize(encoder *gob.Encoder) error {
	err := encoder.Encode(meshGob{
		Name:       m.name,
		DeviceType: m.deviceType,
		Dims:       m.dims,
		AxisNames:  m.axisNames,
		Ranks:      m.ranks,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to serialize %s", m)
	}
	return nil
}

// GobDeserialize a DeviceMesh. Returns a new mesh or an error.
func GobDeserialize(decoder *gob.Decoder) (*DeviceMesh, error) {
	var wire meshGob
	if err := decoder.Decode(&wire); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize DeviceMesh")
	}
	m, err := NewWithRanks(wire.Name, wire.Dims, wire.AxisNames, wire.Ranks)
	if err != nil {
		return nil, err
	}
	return m.WithDeviceType(wire.DeviceType), nil
}
