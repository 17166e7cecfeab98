package halo

import (
	"github.com/notargets/NSHalo/parameters"
	"github.com/notargets/NSHalo/stencils"
)

// BufferSizes are the values per ghost plane exchanged across each face
// pair. Pressure carries one value per cell, velocity one per component.
// FrontBack sizes are zero in 2D.
type BufferSizes struct {
	PressureLeftRight int
	PressureBottomTop int
	PressureFrontBack int
	VelocityLeftRight int
	VelocityBottomTop int
	VelocityFrontBack int
	ComponentsPerCell int
}

// ComputeBufferSizes returns the layer sizes for a subdomain of localSize
// interior cells. In 2D localSize[2] is ignored.
func ComputeBufferSizes(localSize [3]int, dim int) BufferSizes {
	nx, ny, nz := localSize[0]+2, localSize[1]+2, localSize[2]+2
	s := BufferSizes{ComponentsPerCell: dim}
	if dim == 2 {
		s.PressureLeftRight = ny
		s.PressureBottomTop = nx
	} else {
		s.PressureLeftRight = ny * nz
		s.PressureBottomTop = nx * nz
		s.PressureFrontBack = nx * ny
	}
	s.VelocityLeftRight = dim * s.PressureLeftRight
	s.VelocityBottomTop = dim * s.PressureBottomTop
	s.VelocityFrontBack = dim * s.PressureFrontBack
	return s
}

// Pressure returns the pressure layer size of the faces normal to axis
func (s BufferSizes) Pressure(axis int) int {
	switch axis {
	case 0:
		return s.PressureLeftRight
	case 1:
		return s.PressureBottomTop
	default:
		return s.PressureFrontBack
	}
}

// Velocity returns the velocity layer size of the faces normal to axis
func (s BufferSizes) Velocity(axis int) int {
	return s.ComponentsPerCell * s.Pressure(axis)
}

func (s BufferSizes) sendLen(face parameters.Face, comps int) int {
	return s.Pressure(face.Axis()) * comps * stencils.LayersSent(face)
}

func (s BufferSizes) recvLen(face parameters.Face, comps int) int {
	return s.Pressure(face.Axis()) * comps * stencils.LayersReceived(face)
}
