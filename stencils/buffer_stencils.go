package stencils

import (
	"github.com/notargets/NSHalo/parameters"
)

// PressureBufferFillStencil packs boundary pressures into the send buffers.
// Lower faces pack one layer, upper faces pack the cell and the next one
// along the normal.
type PressureBufferFillStencil struct {
	walls
	faceIndexer
	buffers FaceBuffers
}

func NewPressureBufferFillStencil(p *parameters.Parameters, send FaceBuffers) *PressureBufferFillStencil {
	s := &PressureBufferFillStencil{faceIndexer: newFaceIndexer(p), buffers: send}
	s.walls = walls{s}
	return s
}

func (s *PressureBufferFillStencil) applyFace(face parameters.Face, f Field, i, j, k int) {
	buf, e := s.buffers[face], s.entry(face, i, j, k)
	if face.IsLower() {
		buf[e] = *f.Pressure(i, j, k)
		return
	}
	buf[2*e] = *f.Pressure(i, j, k)
	buf[2*e+1] = *f.Pressure(stepNormal(face, i, j, k))
}

// PressureBufferReadStencil unpacks received pressures into the ghost layers.
// Lower faces fill the ghost cell and the next one along the normal (slots
// 2e and 2e+1), upper faces fill the single ghost cell (slot e).
type PressureBufferReadStencil struct {
	walls
	faceIndexer
	buffers FaceBuffers
}

func NewPressureBufferReadStencil(p *parameters.Parameters, recv FaceBuffers) *PressureBufferReadStencil {
	s := &PressureBufferReadStencil{faceIndexer: newFaceIndexer(p), buffers: recv}
	s.walls = walls{s}
	return s
}

func (s *PressureBufferReadStencil) applyFace(face parameters.Face, f Field, i, j, k int) {
	buf, e := s.buffers[face], s.entry(face, i, j, k)
	if face.IsLower() {
		*f.Pressure(i, j, k) = buf[2*e]
		*f.Pressure(stepNormal(face, i, j, k)) = buf[2*e+1]
		return
	}
	*f.Pressure(i, j, k) = buf[e]
}

// VelocityBufferFillStencil packs all velocity components of the boundary
// cells, entry e of a layer occupying slots e*dim .. e*dim+dim-1
type VelocityBufferFillStencil struct {
	walls
	faceIndexer
	buffers FaceBuffers
}

func NewVelocityBufferFillStencil(p *parameters.Parameters, send FaceBuffers) *VelocityBufferFillStencil {
	s := &VelocityBufferFillStencil{faceIndexer: newFaceIndexer(p), buffers: send}
	s.walls = walls{s}
	return s
}

func (s *VelocityBufferFillStencil) applyFace(face parameters.Face, f Field, i, j, k int) {
	buf, e := s.buffers[face], s.entry(face, i, j, k)
	if face.IsLower() {
		s.pack(buf, e, f.Velocity(i, j, k))
		return
	}
	s.pack(buf, 2*e, f.Velocity(i, j, k))
	s.pack(buf, 2*e+1, f.Velocity(stepNormal(face, i, j, k)))
}

func (s *VelocityBufferFillStencil) pack(buf []float64, slot int, vel []float64) {
	copy(buf[slot*s.dim:(slot+1)*s.dim], vel[:s.dim])
}

// VelocityBufferReadStencil unpacks velocity components into the ghost
// layers with the same lower/upper depth split as the pressure variant
type VelocityBufferReadStencil struct {
	walls
	faceIndexer
	buffers FaceBuffers
}

func NewVelocityBufferReadStencil(p *parameters.Parameters, recv FaceBuffers) *VelocityBufferReadStencil {
	s := &VelocityBufferReadStencil{faceIndexer: newFaceIndexer(p), buffers: recv}
	s.walls = walls{s}
	return s
}

func (s *VelocityBufferReadStencil) applyFace(face parameters.Face, f Field, i, j, k int) {
	buf, e := s.buffers[face], s.entry(face, i, j, k)
	if face.IsLower() {
		s.unpack(buf, 2*e, f.Velocity(i, j, k))
		s.unpack(buf, 2*e+1, f.Velocity(stepNormal(face, i, j, k)))
		return
	}
	s.unpack(buf, e, f.Velocity(i, j, k))
}

func (s *VelocityBufferReadStencil) unpack(buf []float64, slot int, vel []float64) {
	copy(vel[:s.dim], buf[slot*s.dim:(slot+1)*s.dim])
}
