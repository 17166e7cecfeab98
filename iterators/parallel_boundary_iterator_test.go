package iterators

import (
	"fmt"
	"testing"

	"github.com/notargets/NSHalo/flowfield"
	"github.com/notargets/NSHalo/parameters"
	"github.com/notargets/NSHalo/stencils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visit struct {
	face    parameters.Face
	i, j, k int
}

func (v visit) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", v.face, v.i, v.j, v.k)
}

type recorder struct {
	visits []visit
}

func (r *recorder) add(f parameters.Face, i, j, k int) {
	r.visits = append(r.visits, visit{f, i, j, k})
}

func (r *recorder) ApplyLeftWall(_ stencils.Field, i, j, k int)   { r.add(parameters.Left, i, j, k) }
func (r *recorder) ApplyRightWall(_ stencils.Field, i, j, k int)  { r.add(parameters.Right, i, j, k) }
func (r *recorder) ApplyBottomWall(_ stencils.Field, i, j, k int) { r.add(parameters.Bottom, i, j, k) }
func (r *recorder) ApplyTopWall(_ stencils.Field, i, j, k int)    { r.add(parameters.Top, i, j, k) }
func (r *recorder) ApplyFrontWall(_ stencils.Field, i, j, k int)  { r.add(parameters.Front, i, j, k) }
func (r *recorder) ApplyBackWall(_ stencils.Field, i, j, k int)   { r.add(parameters.Back, i, j, k) }

func params(dim int, size [3]int, neighbors [parameters.NumFaces]int) *parameters.Parameters {
	return &parameters.Parameters{Dim: dim, Rank: 0, LocalSize: size, Neighbors: neighbors}
}

const none = parameters.NoNeighbor

func TestIterateOrder2D(t *testing.T) {
	p := params(2, [3]int{2, 3, 1}, [6]int{1, 2, 3, 4, none, none})
	rec := &recorder{}
	NewParallelBoundaryIterator(nil, p, rec, 2, -2).Iterate()

	var want []visit
	for j := 1; j <= 5; j++ {
		want = append(want, visit{parameters.Left, 2, j, 0}, visit{parameters.Right, 2, j, 0})
	}
	for i := 1; i <= 4; i++ {
		want = append(want, visit{parameters.Bottom, i, 2, 0}, visit{parameters.Top, i, 3, 0})
	}
	assert.Equal(t, want, rec.visits)
}

func TestIterateGhostPlanes(t *testing.T) {
	p := params(2, [3]int{4, 4, 1}, [6]int{1, 2, none, none, none, none})
	rec := &recorder{}
	NewParallelBoundaryIterator(nil, p, rec, 0, 0).Iterate()

	require.Len(t, rec.visits, 12)
	for _, v := range rec.visits {
		switch v.face {
		case parameters.Left:
			assert.Equal(t, 0, v.i)
		case parameters.Right:
			assert.Equal(t, 6, v.i)
		default:
			t.Fatalf("unexpected visit %s", v)
		}
	}
}

func TestIterateSkipsBoundaryFaces(t *testing.T) {
	p := params(3, [3]int{2, 2, 2}, [6]int{none, 5, none, none, 7, none})
	rec := &recorder{}
	NewParallelBoundaryIterator(nil, p, rec, 2, -2).Iterate()

	counts := map[parameters.Face]int{}
	for _, v := range rec.visits {
		counts[v.face]++
	}
	assert.Equal(t, map[parameters.Face]int{parameters.Right: 16, parameters.Front: 16}, counts)

	// Single rank, nothing to visit
	single, err := parameters.NewSingleRank(3, 2, 2, 2)
	require.NoError(t, err)
	rec = &recorder{}
	NewParallelBoundaryIterator(nil, single, rec, 0, 0).Iterate()
	assert.Empty(t, rec.visits)
}

func TestIterateOrder3D(t *testing.T) {
	all := [6]int{1, 2, 3, 4, 5, 6}
	p := params(3, [3]int{2, 3, 4}, all)
	rec := &recorder{}
	NewParallelBoundaryIterator(nil, p, rec, 0, 0).Iterate()

	nLR, nBT, nFB := 5*6, 4*6, 4*5
	require.Len(t, rec.visits, 2*(nLR+nBT+nFB))

	assert.Equal(t, visit{parameters.Left, 0, 1, 1}, rec.visits[0])
	assert.Equal(t, visit{parameters.Right, 4, 1, 1}, rec.visits[1])
	assert.Equal(t, visit{parameters.Left, 0, 1, 2}, rec.visits[2])
	assert.Equal(t, visit{parameters.Bottom, 1, 0, 1}, rec.visits[2*nLR])
	assert.Equal(t, visit{parameters.Top, 1, 5, 1}, rec.visits[2*nLR+1])
	assert.Equal(t, visit{parameters.Front, 1, 1, 0}, rec.visits[2*(nLR+nBT)])
	assert.Equal(t, visit{parameters.Back, 4, 5, 6}, rec.visits[len(rec.visits)-1])
}

// Running the fill and read stencils through the iterator keeps every
// access inside the field and the buffers
func TestIterateWithBufferStencils(t *testing.T) {
	for _, dim := range []int{2, 3} {
		size := [3]int{3, 4, 1}
		neighbors := [6]int{1, 2, 3, 4, none, none}
		if dim == 3 {
			size[2] = 2
			neighbors[parameters.Front], neighbors[parameters.Back] = 5, 6
		}
		p := params(dim, size, neighbors)
		ff, err := flowfield.NewFlowField(p)
		require.NoError(t, err)

		var send, recv stencils.FaceBuffers
		for _, f := range p.ActiveFaces() {
			n := stencils.EntriesPerFace(p, f) * p.ComponentsPerCell()
			send[f] = make([]float64, n*stencils.LayersSent(f))
			recv[f] = make([]float64, n*stencils.LayersReceived(f))
		}
		assert.NotPanics(t, func() {
			NewParallelBoundaryIterator(ff, p, stencils.NewPressureBufferFillStencil(p, send), 2, -2).Iterate()
			NewParallelBoundaryIterator(ff, p, stencils.NewVelocityBufferFillStencil(p, send), 2, -2).Iterate()
			NewParallelBoundaryIterator(ff, p, stencils.NewPressureBufferReadStencil(p, recv), 0, 0).Iterate()
			NewParallelBoundaryIterator(ff, p, stencils.NewVelocityBufferReadStencil(p, recv), 0, 0).Iterate()
		}, "dim %d", dim)
	}
}

// Distinct sentinels in every cell and every buffer slot show which ghost
// planes each face's read writes: two on lower faces, one on upper faces
func TestReadDepthPerFace(t *testing.T) {
	for _, dim := range []int{2, 3} {
		size := [3]int{4, 4, 1}
		neighbors := [6]int{1, 2, 3, 4, none, none}
		if dim == 3 {
			size[2] = 4
			neighbors[parameters.Front], neighbors[parameters.Back] = 5, 6
		}
		p := params(dim, size, neighbors)
		ff, err := flowfield.NewFlowField(p)
		require.NoError(t, err)
		ff.ForEachCell(func(i, j, k int) { *ff.Pressure(i, j, k) = -float64(ff.Index(i, j, k) + 1) })

		var recv stencils.FaceBuffers
		for _, f := range p.ActiveFaces() {
			recv[f] = make([]float64, stencils.EntriesPerFace(p, f)*stencils.LayersReceived(f))
			for n := range recv[f] {
				recv[f][n] = float64(1000*(int(f)+1) + n)
			}
		}
		NewParallelBoundaryIterator(ff, p, stencils.NewPressureBufferReadStencil(p, recv), 0, 0).Iterate()

		planes := map[parameters.Face]map[int]bool{}
		ff.ForEachCell(func(i, j, k int) {
			v := *ff.Pressure(i, j, k)
			if v < 0 {
				assert.True(t, ff.IsGhost(i, j, k) || v == -float64(ff.Index(i, j, k)+1))
				return
			}
			require.True(t, ff.IsGhost(i, j, k), "interior cell (%d,%d,%d) written", i, j, k)
			f := parameters.Face(int(v)/1000 - 1)
			if planes[f] == nil {
				planes[f] = map[int]bool{}
			}
			planes[f][[3]int{i, j, k}[f.Axis()]] = true
		})
		for _, f := range p.ActiveFaces() {
			if f.IsLower() {
				assert.Equal(t, map[int]bool{0: true, 1: true}, planes[f], "%dD face %s", dim, f)
			} else {
				assert.Equal(t, map[int]bool{6: true}, planes[f], "%dD face %s", dim, f)
			}
		}
	}
}
