package parameters

import (
	"fmt"
)

// NoNeighbor marks a face that lies on the physical domain boundary
const NoNeighbor = -1

// Ghost layer depths of the staggered storage. The lower faces need two
// layers because velocity components live on the upper cell faces.
const (
	LowerGhostLayers = 2
	UpperGhostLayers = 1
)

// Face identifies one of the planar boundaries of a subdomain
type Face uint8

const (
	Left   Face = iota // -X
	Right              // +X
	Bottom             // -Y
	Top                // +Y
	Front              // -Z
	Back               // +Z

	NumFaces = 6
)

// Faces lists the faces in traversal order
var Faces = [NumFaces]Face{Left, Right, Bottom, Top, Front, Back}

func (f Face) String() string {
	switch f {
	case Left:
		return "left"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Top:
		return "top"
	case Front:
		return "front"
	case Back:
		return "back"
	default:
		return fmt.Sprintf("Face(%d)", uint8(f))
	}
}

// Axis returns the spatial axis normal to the face (0=X, 1=Y, 2=Z)
func (f Face) Axis() int {
	return int(f) / 2
}

// IsLower reports whether the face is on the low-index side of its axis
func (f Face) IsLower() bool {
	return f%2 == 0
}

// Opposite returns the face across the subdomain on the same axis
func (f Face) Opposite() Face {
	if f.IsLower() {
		return f + 1
	}
	return f - 1
}

// AxisFaces returns the (lower, upper) faces normal to axis
func AxisFaces(axis int) (lower, upper Face) {
	return Face(2 * axis), Face(2*axis + 1)
}

// Parameters carries everything the ghost-layer subsystem needs to know
// about a rank's place in the process grid. It is built once after the
// domain decomposition and never changes afterwards.
type Parameters struct {
	Dim  int // 2 or 3
	Rank int

	LocalSize   [3]int // Interior cells per axis, LocalSize[2] == 1 in 2D
	FirstCorner [3]int // Global index of the first interior cell
	ProcIndices [3]int // Position of this rank in the process grid

	Neighbors [NumFaces]int // Rank per face, NoNeighbor at the domain boundary
}

// NewSingleRank builds parameters for a run without decomposition, all
// faces lie on the domain boundary
func NewSingleRank(dim, nx, ny, nz int) (*Parameters, error) {
	p := &Parameters{
		Dim:       dim,
		LocalSize: [3]int{nx, ny, nz},
	}
	for i := range p.Neighbors {
		p.Neighbors[i] = NoNeighbor
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Neighbor returns the rank across face f
func (p *Parameters) Neighbor(f Face) int {
	return p.Neighbors[f]
}

// HasNeighbor reports whether face f is shared with another rank
func (p *Parameters) HasNeighbor(f Face) bool {
	return p.Neighbors[f] != NoNeighbor
}

// ComponentsPerCell is the number of velocity components stored per cell
func (p *Parameters) ComponentsPerCell() int {
	return p.Dim
}

// ActiveFaces returns the faces that exist for the dimensionality
func (p *Parameters) ActiveFaces() []Face {
	return Faces[:2*p.Dim]
}

// Cells returns the number of stored cells along axis, ghost layers included
func (p *Parameters) Cells(axis int) int {
	if axis == 2 && p.Dim == 2 {
		return 1
	}
	return p.LocalSize[axis] + LowerGhostLayers + UpperGhostLayers
}

// Validate checks the parameters for internal consistency
func (p *Parameters) Validate() error {
	if p.Dim != 2 && p.Dim != 3 {
		return fmt.Errorf("dimension must be 2 or 3, got %d", p.Dim)
	}
	for axis := 0; axis < p.Dim; axis++ {
		if p.LocalSize[axis] <= 0 {
			return fmt.Errorf("local size along axis %d must be positive, got %d",
				axis, p.LocalSize[axis])
		}
	}
	if p.Dim == 2 {
		if p.LocalSize[2] != 1 {
			return fmt.Errorf("2D subdomain must have LocalSize[2]=1, got %d", p.LocalSize[2])
		}
		if p.HasNeighbor(Front) || p.HasNeighbor(Back) {
			return fmt.Errorf("2D subdomain cannot have front/back neighbors (%d, %d)",
				p.Neighbors[Front], p.Neighbors[Back])
		}
	}
	for _, f := range Faces {
		if nb := p.Neighbors[f]; nb < NoNeighbor {
			return fmt.Errorf("invalid %s neighbor rank %d", f, nb)
		}
		if p.Neighbors[f] == p.Rank && p.HasNeighbor(f) {
			return fmt.Errorf("rank %d lists itself as %s neighbor", p.Rank, f)
		}
	}
	return nil
}

func (p *Parameters) String() string {
	return fmt.Sprintf("rank %d at %v: local size %v, first corner %v, neighbors L=%d R=%d B=%d T=%d F=%d K=%d",
		p.Rank, p.ProcIndices, p.LocalSize, p.FirstCorner,
		p.Neighbors[Left], p.Neighbors[Right], p.Neighbors[Bottom],
		p.Neighbors[Top], p.Neighbors[Front], p.Neighbors[Back])
}
