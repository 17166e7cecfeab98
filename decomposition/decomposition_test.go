package decomposition

import (
	"strings"
	"testing"

	"github.com/notargets/NSHalo/config"
	"github.com/notargets/NSHalo/parameters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAxis(t *testing.T) {
	sizes, corners, err := splitAxis(10, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3, 3}, sizes)
	assert.Equal(t, []int{0, 4, 7}, corners)

	sizes, corners, err = splitAxis(8, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, sizes)
	assert.Equal(t, []int{0, 4}, corners)

	_, _, err = splitAxis(2, 3)
	assert.Error(t, err)
}

func TestLayout2DRow(t *testing.T) {
	// Two ranks side by side along X
	l, err := NewLayout(2, [3]int{8, 4, 1}, [3]int{2, 1, 1})
	require.NoError(t, err)
	require.Equal(t, 2, l.NumRanks())

	p0, err := l.Parameters(0)
	require.NoError(t, err)
	p1, err := l.Parameters(1)
	require.NoError(t, err)

	assert.Equal(t, [3]int{4, 4, 1}, p0.LocalSize)
	assert.Equal(t, [3]int{0, 0, 0}, p0.FirstCorner)
	assert.Equal(t, [3]int{4, 0, 0}, p1.FirstCorner)

	assert.Equal(t, parameters.NoNeighbor, p0.Neighbor(parameters.Left))
	assert.Equal(t, 1, p0.Neighbor(parameters.Right))
	assert.Equal(t, 0, p1.Neighbor(parameters.Left))
	assert.Equal(t, parameters.NoNeighbor, p1.Neighbor(parameters.Right))
	for _, p := range []*parameters.Parameters{p0, p1} {
		assert.False(t, p.HasNeighbor(parameters.Bottom))
		assert.False(t, p.HasNeighbor(parameters.Top))
		assert.False(t, p.HasNeighbor(parameters.Front))
		assert.False(t, p.HasNeighbor(parameters.Back))
	}
}

func TestLayout3DCube(t *testing.T) {
	l, err := NewLayout(3, [3]int{8, 8, 8}, [3]int{2, 2, 2})
	require.NoError(t, err)
	require.Equal(t, 8, l.NumRanks())

	for rank := 0; rank < l.NumRanks(); rank++ {
		idx := l.ProcIndices(rank)
		assert.Equal(t, rank, l.RankOf(idx))
		p, err := l.Parameters(rank)
		require.NoError(t, err)
		assert.Equal(t, [3]int{4, 4, 4}, p.LocalSize)
		for axis := 0; axis < 3; axis++ {
			lower, upper := parameters.AxisFaces(axis)
			// In a 2-wide grid each rank has exactly one neighbor per axis
			assert.NotEqual(t, p.HasNeighbor(lower), p.HasNeighbor(upper),
				"rank %d axis %d", rank, axis)
			assert.Equal(t, 4*idx[axis], p.FirstCorner[axis])
		}
	}

	// rank 0 at (0,0,0): right=1, top=2, back=4
	p0, err := l.Parameters(0)
	require.NoError(t, err)
	assert.Equal(t, 1, p0.Neighbor(parameters.Right))
	assert.Equal(t, 2, p0.Neighbor(parameters.Top))
	assert.Equal(t, 4, p0.Neighbor(parameters.Back))

	stats := l.Statistics()
	assert.Equal(t, 8, stats.NumRanks)
	assert.Equal(t, 64, stats.MinCells)
	assert.Equal(t, 64, stats.MaxCells)
	assert.InDelta(t, 1.0, stats.Imbalance, 1e-12)
	// 4 links per axis in a 2x2x2 cube
	assert.Equal(t, 12, stats.NumLinks)
}

func TestLayoutUneven(t *testing.T) {
	l, err := NewLayout(2, [3]int{7, 5, 1}, [3]int{3, 2, 1})
	require.NoError(t, err)
	stats := l.Statistics()
	assert.Equal(t, 6, stats.NumRanks)
	assert.Equal(t, 2*2, stats.MinCells)
	assert.Equal(t, 3*3, stats.MaxCells)
	assert.Greater(t, stats.Imbalance, 1.0)
	assert.NoError(t, l.ValidateLayout())
}

func TestValidateNeighborSymmetry(t *testing.T) {
	l, err := NewLayout(2, [3]int{8, 8, 1}, [3]int{2, 2, 1})
	require.NoError(t, err)

	broken := append([]Subdomain(nil), l.Subdomains...)
	broken[1].Neighbors[parameters.Left] = parameters.NoNeighbor
	err = validateNeighborSymmetry(2, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lists")

	mismatch := append([]Subdomain(nil), l.Subdomains...)
	mismatch[1].LocalSize[1] = 3
	err = validateNeighborSymmetry(2, mismatch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extent mismatch")
}

func TestLayoutRejects(t *testing.T) {
	_, err := NewLayout(4, [3]int{4, 4, 4}, [3]int{1, 1, 1})
	assert.Error(t, err)
	_, err = NewLayout(2, [3]int{4, 4, 2}, [3]int{1, 1, 1})
	assert.Error(t, err)
	_, err = NewLayout(3, [3]int{4, 4, 4}, [3]int{5, 1, 1})
	assert.Error(t, err)

	l, err := NewLayout(2, [3]int{4, 4, 1}, [3]int{1, 1, 1})
	require.NoError(t, err)
	_, err = l.Parameters(1)
	assert.Error(t, err)
}

func TestLayoutFromConfig(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(`
[geometry]
dim = 2
sizeX = 6
sizeY = 6
[parallel]
numProcessorsX = 3
`))
	require.NoError(t, err)
	l, err := NewLayoutFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumRanks())
	assert.Equal(t, []int{2, 2, 2}, l.AxisSizes[0])
}
