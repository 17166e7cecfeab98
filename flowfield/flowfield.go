package flowfield

import (
	"fmt"

	"github.com/notargets/NSHalo/parameters"
	"github.com/notargets/gocfd/utils"
	"gonum.org/v1/gonum/floats"
)

// FlowField holds the pressure and velocity of one subdomain on the
// staggered grid, including the ghost margin. Along every axis indices 0 and
// 1 are lower ghost cells, 2..N+1 are interior and N+2 is the upper ghost
// cell. In 2D there is a single Z plane, k = 0.
type FlowField struct {
	dim    int
	cellsX int
	cellsY int
	cellsZ int

	// Pressure is stored as [cellsZ*cellsY x cellsX], velocity as [cells x dim]
	pressure utils.Matrix
	velocity utils.Matrix
}

// NewFlowField allocates a zeroed field sized for the subdomain of p
func NewFlowField(p *parameters.Parameters) (*FlowField, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("flow field: %w", err)
	}
	ff := &FlowField{
		dim:    p.Dim,
		cellsX: p.Cells(0),
		cellsY: p.Cells(1),
		cellsZ: p.Cells(2),
	}
	ff.pressure = utils.NewMatrix(ff.cellsZ*ff.cellsY, ff.cellsX)
	ff.velocity = utils.NewMatrix(ff.NumCells(), ff.dim)
	return ff, nil
}

func (ff *FlowField) Dim() int { return ff.dim }

// CellsX, CellsY and CellsZ are the stored extents including ghost layers
func (ff *FlowField) CellsX() int { return ff.cellsX }
func (ff *FlowField) CellsY() int { return ff.cellsY }
func (ff *FlowField) CellsZ() int { return ff.cellsZ }

// NumCells returns the number of stored cells including ghost layers
func (ff *FlowField) NumCells() int {
	return ff.cellsX * ff.cellsY * ff.cellsZ
}

// Index linearizes a cell index, X fastest
func (ff *FlowField) Index(i, j, k int) int {
	if i < 0 || i >= ff.cellsX || j < 0 || j >= ff.cellsY || k < 0 || k >= ff.cellsZ {
		panic(fmt.Sprintf("cell (%d,%d,%d) outside field of %dx%dx%d cells",
			i, j, k, ff.cellsX, ff.cellsY, ff.cellsZ))
	}
	return i + ff.cellsX*(j+ff.cellsY*k)
}

// Pressure returns a pointer to the pressure of cell (i,j,k)
func (ff *FlowField) Pressure(i, j, k int) *float64 {
	return &ff.pressure.Data()[ff.Index(i, j, k)]
}

// Velocity returns the velocity components of cell (i,j,k). The slice
// aliases field storage.
func (ff *FlowField) Velocity(i, j, k int) []float64 {
	n := ff.Index(i, j, k) * ff.dim
	return ff.velocity.Data()[n : n+ff.dim : n+ff.dim]
}

// PressureData exposes the flat pressure storage in Index order
func (ff *FlowField) PressureData() []float64 {
	return ff.pressure.Data()
}

// VelocityData exposes the flat velocity storage, dim values per cell
func (ff *FlowField) VelocityData() []float64 {
	return ff.velocity.Data()
}

// IsGhost reports whether a cell lies in the ghost margin
func (ff *FlowField) IsGhost(i, j, k int) bool {
	ghost := func(idx, cells int) bool {
		return idx < parameters.LowerGhostLayers || idx >= cells-parameters.UpperGhostLayers
	}
	if ghost(i, ff.cellsX) || ghost(j, ff.cellsY) {
		return true
	}
	return ff.dim == 3 && ghost(k, ff.cellsZ)
}

// ForEachCell calls fn for every stored cell, X fastest
func (ff *FlowField) ForEachCell(fn func(i, j, k int)) {
	for k := 0; k < ff.cellsZ; k++ {
		for j := 0; j < ff.cellsY; j++ {
			for i := 0; i < ff.cellsX; i++ {
				fn(i, j, k)
			}
		}
	}
}

// ForEachInterior calls fn for every interior cell
func (ff *FlowField) ForEachInterior(fn func(i, j, k int)) {
	ff.ForEachCell(func(i, j, k int) {
		if !ff.IsGhost(i, j, k) {
			fn(i, j, k)
		}
	})
}

// Clone returns a deep copy of the field
func (ff *FlowField) Clone() *FlowField {
	c := &FlowField{
		dim:    ff.dim,
		cellsX: ff.cellsX,
		cellsY: ff.cellsY,
		cellsZ: ff.cellsZ,
	}
	c.pressure = utils.NewMatrix(ff.cellsZ*ff.cellsY, ff.cellsX)
	c.velocity = utils.NewMatrix(ff.NumCells(), ff.dim)
	copy(c.pressure.Data(), ff.pressure.Data())
	copy(c.velocity.Data(), ff.velocity.Data())
	return c
}

// PressureNorm returns the L2 norm of the stored pressure
func (ff *FlowField) PressureNorm() float64 {
	return floats.Norm(ff.pressure.Data(), 2)
}

// VelocityMaxAbs returns the largest absolute velocity component
func (ff *FlowField) VelocityMaxAbs() float64 {
	data := ff.velocity.Data()
	return max(floats.Max(data), -floats.Min(data))
}
