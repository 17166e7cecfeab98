package decomposition

import (
	"fmt"
	"math"

	"github.com/notargets/NSHalo/config"
	"github.com/notargets/NSHalo/parameters"
)

// Subdomain is the block of the global grid owned by one rank
type Subdomain struct {
	Rank        int
	ProcIndices [3]int
	LocalSize   [3]int
	FirstCorner [3]int
	Neighbors   [parameters.NumFaces]int
}

// NumCells returns the number of interior cells of the subdomain
func (s *Subdomain) NumCells() int {
	return s.LocalSize[0] * s.LocalSize[1] * s.LocalSize[2]
}

// Layout manages the complete Cartesian decomposition of the domain
type Layout struct {
	Dim           int
	GlobalSize    [3]int
	NumProcessors [3]int

	// Subdomains[rank] is the block owned by rank
	Subdomains []Subdomain

	// Cells per process column along each axis, shared by all ranks in the column
	AxisSizes   [3][]int
	AxisCorners [3][]int
}

// NewLayout decomposes the global grid over the process grid. Rank order is
// X fastest: rank = i + j*px + k*px*py.
func NewLayout(dim int, globalSize, numProcessors [3]int) (*Layout, error) {
	if dim != 2 && dim != 3 {
		return nil, fmt.Errorf("dimension must be 2 or 3, got %d", dim)
	}
	if dim == 2 && (globalSize[2] != 1 || numProcessors[2] != 1) {
		return nil, fmt.Errorf("2D layout needs one cell and one processor along Z, got %d and %d",
			globalSize[2], numProcessors[2])
	}

	l := &Layout{
		Dim:           dim,
		GlobalSize:    globalSize,
		NumProcessors: numProcessors,
	}
	for axis := 0; axis < 3; axis++ {
		sizes, corners, err := splitAxis(globalSize[axis], numProcessors[axis])
		if err != nil {
			return nil, fmt.Errorf("axis %d: %w", axis, err)
		}
		l.AxisSizes[axis] = sizes
		l.AxisCorners[axis] = corners
	}

	px, py, pz := numProcessors[0], numProcessors[1], numProcessors[2]
	l.Subdomains = make([]Subdomain, px*py*pz)
	for rank := range l.Subdomains {
		idx := l.ProcIndices(rank)
		sd := Subdomain{Rank: rank, ProcIndices: idx}
		for axis := 0; axis < 3; axis++ {
			sd.LocalSize[axis] = l.AxisSizes[axis][idx[axis]]
			sd.FirstCorner[axis] = l.AxisCorners[axis][idx[axis]]
		}
		for _, f := range parameters.Faces {
			sd.Neighbors[f] = l.neighborRank(idx, f)
		}
		l.Subdomains[rank] = sd
	}

	if err := l.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid decomposition: %w", err)
	}
	return l, nil
}

// NewLayoutFromConfig decomposes the grid described by a configuration
func NewLayoutFromConfig(cfg *config.Config) (*Layout, error) {
	return NewLayout(cfg.Geometry.Dim, cfg.Sizes(), cfg.NumProcessors())
}

// splitAxis distributes n cells over p processors, the first n%p get one extra
func splitAxis(n, p int) (sizes, corners []int, err error) {
	if p <= 0 || n < p {
		return nil, nil, fmt.Errorf("cannot split %d cells over %d processors", n, p)
	}
	sizes = make([]int, p)
	corners = make([]int, p)
	base, rem := n/p, n%p
	offset := 0
	for i := 0; i < p; i++ {
		sizes[i] = base
		if i < rem {
			sizes[i]++
		}
		corners[i] = offset
		offset += sizes[i]
	}
	return sizes, corners, nil
}

// NumRanks returns the number of subdomains
func (l *Layout) NumRanks() int {
	return len(l.Subdomains)
}

// ProcIndices returns the process grid position of rank
func (l *Layout) ProcIndices(rank int) [3]int {
	px, py := l.NumProcessors[0], l.NumProcessors[1]
	return [3]int{rank % px, (rank / px) % py, rank / (px * py)}
}

// RankOf returns the rank at a process grid position, NoNeighbor outside the grid
func (l *Layout) RankOf(idx [3]int) int {
	for axis := 0; axis < 3; axis++ {
		if idx[axis] < 0 || idx[axis] >= l.NumProcessors[axis] {
			return parameters.NoNeighbor
		}
	}
	px, py := l.NumProcessors[0], l.NumProcessors[1]
	return idx[0] + idx[1]*px + idx[2]*px*py
}

func (l *Layout) neighborRank(idx [3]int, f parameters.Face) int {
	if f.Axis() >= l.Dim {
		return parameters.NoNeighbor
	}
	nb := idx
	if f.IsLower() {
		nb[f.Axis()]--
	} else {
		nb[f.Axis()]++
	}
	return l.RankOf(nb)
}

// Parameters returns the exchange parameters of rank
func (l *Layout) Parameters(rank int) (*parameters.Parameters, error) {
	if rank < 0 || rank >= len(l.Subdomains) {
		return nil, fmt.Errorf("rank %d outside layout of %d ranks", rank, len(l.Subdomains))
	}
	sd := l.Subdomains[rank]
	p := &parameters.Parameters{
		Dim:         l.Dim,
		Rank:        rank,
		LocalSize:   sd.LocalSize,
		FirstCorner: sd.FirstCorner,
		ProcIndices: sd.ProcIndices,
		Neighbors:   sd.Neighbors,
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	return p, nil
}

// ValidateLayout checks that the decomposition covers the grid exactly and
// that every neighbor link is reciprocal with matching face extents
func (l *Layout) ValidateLayout() error {
	total := 0
	for _, sd := range l.Subdomains {
		total += sd.NumCells()
	}
	want := l.GlobalSize[0] * l.GlobalSize[1] * l.GlobalSize[2]
	if total != want {
		return fmt.Errorf("subdomains cover %d cells, grid has %d", total, want)
	}
	return validateNeighborSymmetry(l.Dim, l.Subdomains)
}

// validateNeighborSymmetry verifies that if rank A lists B across face f,
// then B lists A across the opposite face and both see the same face extents
func validateNeighborSymmetry(dim int, subdomains []Subdomain) error {
	for _, a := range subdomains {
		for _, f := range parameters.Faces {
			nb := a.Neighbors[f]
			if nb == parameters.NoNeighbor {
				continue
			}
			if f.Axis() >= dim {
				return fmt.Errorf("rank %d has a %s neighbor in a %dD layout", a.Rank, f, dim)
			}
			if nb < 0 || nb >= len(subdomains) {
				return fmt.Errorf("rank %d: %s neighbor %d does not exist", a.Rank, f, nb)
			}
			b := subdomains[nb]
			if back := b.Neighbors[f.Opposite()]; back != a.Rank {
				return fmt.Errorf("rank %d lists %d as %s neighbor, but %d lists %d as %s neighbor",
					a.Rank, nb, f, nb, back, f.Opposite())
			}
			for axis := 0; axis < dim; axis++ {
				if axis == f.Axis() {
					continue
				}
				if a.LocalSize[axis] != b.LocalSize[axis] {
					return fmt.Errorf("face extent mismatch across %s of rank %d: axis %d has %d cells, neighbor %d has %d",
						f, a.Rank, axis, a.LocalSize[axis], nb, b.LocalSize[axis])
				}
			}
		}
	}
	return nil
}

// Statistics computes load balance metrics of the decomposition
func (l *Layout) Statistics() Stats {
	stats := Stats{
		NumRanks: len(l.Subdomains),
		MinCells: math.MaxInt32,
	}
	total := 0
	for _, sd := range l.Subdomains {
		n := sd.NumCells()
		total += n
		if n < stats.MinCells {
			stats.MinCells = n
		}
		if n > stats.MaxCells {
			stats.MaxCells = n
		}
		for _, f := range parameters.Faces {
			if sd.Neighbors[f] != parameters.NoNeighbor {
				stats.NumLinks++
			}
		}
	}
	stats.AvgCells = float64(total) / float64(stats.NumRanks)
	stats.Imbalance = float64(stats.MaxCells) / stats.AvgCells
	// Each link is counted from both ends
	stats.NumLinks /= 2
	return stats
}

type Stats struct {
	NumRanks  int
	MinCells  int
	MaxCells  int
	AvgCells  float64
	Imbalance float64 // MaxCells / AvgCells
	NumLinks  int     // Shared faces between ranks
}
