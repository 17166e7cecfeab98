package iterators

import (
	"github.com/notargets/NSHalo/parameters"
	"github.com/notargets/NSHalo/stencils"
)

// ParallelBoundaryIterator visits the boundary cells of every face shared
// with another rank and applies a stencil to them. Faces on the physical
// domain boundary are skipped.
//
// The plane visited on a lower face is lowOffset, on an upper face it is
// N+2+highOffset, so (0, 0) visits the outermost ghost planes and (2, -2)
// the first interior plane on lower faces and the second to last interior
// plane on upper faces. Traversal order is fixed:
//
//	2D: j = 1..Ny+2: left, right
//	    i = 1..Nx+2: bottom, top
//	3D: j = 1..Ny+2, k = 1..Nz+2: left, right
//	    i = 1..Nx+2, k = 1..Nz+2: bottom, top
//	    i = 1..Nx+2, j = 1..Ny+2: front, back
type ParallelBoundaryIterator struct {
	field      stencils.Field
	params     *parameters.Parameters
	stencil    stencils.BoundaryStencil
	lowOffset  int
	highOffset int
}

func NewParallelBoundaryIterator(field stencils.Field, params *parameters.Parameters,
	stencil stencils.BoundaryStencil, lowOffset, highOffset int) *ParallelBoundaryIterator {
	return &ParallelBoundaryIterator{
		field:      field,
		params:     params,
		stencil:    stencil,
		lowOffset:  lowOffset,
		highOffset: highOffset,
	}
}

// Iterate runs one full pass over all faces with a neighbor
func (it *ParallelBoundaryIterator) Iterate() {
	if it.params.Dim == 2 {
		it.iterate2D()
		return
	}
	it.iterate3D()
}

func (it *ParallelBoundaryIterator) upper(axis int) int {
	return it.params.LocalSize[axis] + 2 + it.highOffset
}

func (it *ParallelBoundaryIterator) iterate2D() {
	var (
		p      = it.params
		s      = it.stencil
		nx, ny = p.LocalSize[0], p.LocalSize[1]
	)
	left, right := p.HasNeighbor(parameters.Left), p.HasNeighbor(parameters.Right)
	if left || right {
		for j := 1; j <= ny+2; j++ {
			if left {
				s.ApplyLeftWall(it.field, it.lowOffset, j, 0)
			}
			if right {
				s.ApplyRightWall(it.field, it.upper(0), j, 0)
			}
		}
	}
	bottom, top := p.HasNeighbor(parameters.Bottom), p.HasNeighbor(parameters.Top)
	if bottom || top {
		for i := 1; i <= nx+2; i++ {
			if bottom {
				s.ApplyBottomWall(it.field, i, it.lowOffset, 0)
			}
			if top {
				s.ApplyTopWall(it.field, i, it.upper(1), 0)
			}
		}
	}
}

func (it *ParallelBoundaryIterator) iterate3D() {
	var (
		p          = it.params
		s          = it.stencil
		nx, ny, nz = p.LocalSize[0], p.LocalSize[1], p.LocalSize[2]
	)
	left, right := p.HasNeighbor(parameters.Left), p.HasNeighbor(parameters.Right)
	if left || right {
		for j := 1; j <= ny+2; j++ {
			for k := 1; k <= nz+2; k++ {
				if left {
					s.ApplyLeftWall(it.field, it.lowOffset, j, k)
				}
				if right {
					s.ApplyRightWall(it.field, it.upper(0), j, k)
				}
			}
		}
	}
	bottom, top := p.HasNeighbor(parameters.Bottom), p.HasNeighbor(parameters.Top)
	if bottom || top {
		for i := 1; i <= nx+2; i++ {
			for k := 1; k <= nz+2; k++ {
				if bottom {
					s.ApplyBottomWall(it.field, i, it.lowOffset, k)
				}
				if top {
					s.ApplyTopWall(it.field, i, it.upper(1), k)
				}
			}
		}
	}
	front, back := p.HasNeighbor(parameters.Front), p.HasNeighbor(parameters.Back)
	if front || back {
		for i := 1; i <= nx+2; i++ {
			for j := 1; j <= ny+2; j++ {
				if front {
					s.ApplyFrontWall(it.field, i, j, it.lowOffset)
				}
				if back {
					s.ApplyBackWall(it.field, i, j, it.upper(2))
				}
			}
		}
	}
}
