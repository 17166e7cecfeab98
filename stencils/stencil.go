// Package stencils implements the boundary stencils that pack a subdomain's
// boundary cells into flat face buffers and unpack received buffers into the
// ghost layers.
//
// Buffer layout. Each face enumerates its in-plane cells from index 1 to
// N+2 along both transverse axes, i.e. the transverse interior plus one ghost
// cell on each end. The in-plane entry of a cell is
//
//	2D: left/right  e = j-1
//	    bottom/top  e = i-1
//	3D: left/right  e = (j-1)*(Nz+2) + (k-1)
//	    bottom/top  e = (i-1)*(Nz+2) + (k-1)
//	    front/back  e = (i-1)*(Ny+2) + (j-1)
//
// and entry e occupies components-per-cell consecutive slots. Data crossing a
// face toward the upper neighbor feeds its two lower ghost layers, so those
// buffers interleave two layers per entry: slot 2e holds the outer layer and
// slot 2e+1 the inner one. Data crossing toward the lower neighbor feeds a
// single upper ghost layer, slot e.
package stencils

import (
	"github.com/notargets/NSHalo/parameters"
)

// Field is the view of a flow field the buffer stencils work on
type Field interface {
	Pressure(i, j, k int) *float64
	Velocity(i, j, k int) []float64
}

// BoundaryStencil is applied once per boundary cell of each face
type BoundaryStencil interface {
	ApplyLeftWall(f Field, i, j, k int)
	ApplyRightWall(f Field, i, j, k int)
	ApplyBottomWall(f Field, i, j, k int)
	ApplyTopWall(f Field, i, j, k int)
	ApplyFrontWall(f Field, i, j, k int)
	ApplyBackWall(f Field, i, j, k int)
}

// FaceBuffers holds one flat buffer per face, nil for faces that do not exist
type FaceBuffers [parameters.NumFaces][]float64

// faceApplier handles a boundary cell of any face
type faceApplier interface {
	applyFace(face parameters.Face, f Field, i, j, k int)
}

// walls turns a faceApplier into the per-face capability set
type walls struct {
	faceApplier
}

func (w walls) ApplyLeftWall(f Field, i, j, k int)   { w.applyFace(parameters.Left, f, i, j, k) }
func (w walls) ApplyRightWall(f Field, i, j, k int)  { w.applyFace(parameters.Right, f, i, j, k) }
func (w walls) ApplyBottomWall(f Field, i, j, k int) { w.applyFace(parameters.Bottom, f, i, j, k) }
func (w walls) ApplyTopWall(f Field, i, j, k int)    { w.applyFace(parameters.Top, f, i, j, k) }
func (w walls) ApplyFrontWall(f Field, i, j, k int)  { w.applyFace(parameters.Front, f, i, j, k) }
func (w walls) ApplyBackWall(f Field, i, j, k int)   { w.applyFace(parameters.Back, f, i, j, k) }

// faceIndexer maps boundary cells to in-plane buffer entries
type faceIndexer struct {
	dim       int
	localSize [3]int
}

func newFaceIndexer(p *parameters.Parameters) faceIndexer {
	return faceIndexer{dim: p.Dim, localSize: p.LocalSize}
}

// entry returns the in-plane entry of cell (i,j,k) on face
func (fi faceIndexer) entry(face parameters.Face, i, j, k int) int {
	if fi.dim == 2 {
		if face.Axis() == 0 {
			return j - 1
		}
		return i - 1
	}
	switch face.Axis() {
	case 0:
		return (j-1)*(fi.localSize[2]+2) + (k - 1)
	case 1:
		return (i-1)*(fi.localSize[2]+2) + (k - 1)
	default:
		return (i-1)*(fi.localSize[1]+2) + (j - 1)
	}
}

// EntriesPerFace returns the number of in-plane entries of face, the layer
// size of a scalar field
func EntriesPerFace(p *parameters.Parameters, face parameters.Face) int {
	n := 1
	for axis := 0; axis < p.Dim; axis++ {
		if axis != face.Axis() {
			n *= p.LocalSize[axis] + 2
		}
	}
	return n
}

// LayersSent returns how many ghost layers travel in the buffer sent across
// face: two across upper faces, one across lower faces
func LayersSent(face parameters.Face) int {
	if face.IsLower() {
		return parameters.UpperGhostLayers
	}
	return parameters.LowerGhostLayers
}

// LayersReceived returns how many ghost layers are filled from the buffer
// received across face
func LayersReceived(face parameters.Face) int {
	if face.IsLower() {
		return parameters.LowerGhostLayers
	}
	return parameters.UpperGhostLayers
}

// stepNormal advances one cell along the face normal toward the upper side
func stepNormal(face parameters.Face, i, j, k int) (int, int, int) {
	switch face.Axis() {
	case 0:
		return i + 1, j, k
	case 1:
		return i, j + 1, k
	default:
		return i, j, k + 1
	}
}
