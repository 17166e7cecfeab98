package parameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaceGeometry(t *testing.T) {
	tests := []struct {
		face     Face
		axis     int
		lower    bool
		opposite Face
		name     string
	}{
		{Left, 0, true, Right, "left"},
		{Right, 0, false, Left, "right"},
		{Bottom, 1, true, Top, "bottom"},
		{Top, 1, false, Bottom, "top"},
		{Front, 2, true, Back, "front"},
		{Back, 2, false, Front, "back"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.axis, tt.face.Axis())
			assert.Equal(t, tt.lower, tt.face.IsLower())
			assert.Equal(t, tt.opposite, tt.face.Opposite())
			assert.Equal(t, tt.name, tt.face.String())
		})
	}

	for axis := 0; axis < 3; axis++ {
		lower, upper := AxisFaces(axis)
		assert.True(t, lower.IsLower())
		assert.False(t, upper.IsLower())
		assert.Equal(t, axis, lower.Axis())
		assert.Equal(t, axis, upper.Axis())
	}
}

func TestNewSingleRank(t *testing.T) {
	p, err := NewSingleRank(3, 4, 5, 6)
	require.NoError(t, err)
	for _, f := range Faces {
		assert.False(t, p.HasNeighbor(f), "face %s", f)
	}
	assert.Equal(t, 7, p.Cells(0))
	assert.Equal(t, 8, p.Cells(1))
	assert.Equal(t, 9, p.Cells(2))
	assert.Len(t, p.ActiveFaces(), 6)
	assert.Equal(t, 3, p.ComponentsPerCell())

	p2, err := NewSingleRank(2, 4, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, p2.Cells(2))
	assert.Len(t, p2.ActiveFaces(), 4)
	assert.Equal(t, 2, p2.ComponentsPerCell())
}

func TestValidate(t *testing.T) {
	base := func() *Parameters {
		p, err := NewSingleRank(2, 4, 4, 1)
		require.NoError(t, err)
		return p
	}

	p := base()
	p.Dim = 4
	assert.Error(t, p.Validate())

	p = base()
	p.LocalSize[1] = 0
	assert.Error(t, p.Validate())

	p = base()
	p.LocalSize[2] = 3
	assert.Error(t, p.Validate())

	p = base()
	p.Neighbors[Back] = 1
	assert.Error(t, p.Validate())

	p = base()
	p.Neighbors[Left] = -7
	assert.Error(t, p.Validate())

	p = base()
	p.Rank = 2
	p.Neighbors[Right] = 2
	assert.Error(t, p.Validate())

	p = base()
	p.Rank = 0
	p.Neighbors[Right] = 1
	assert.NoError(t, p.Validate())
}
