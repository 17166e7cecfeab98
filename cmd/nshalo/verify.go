package main

import (
	"fmt"
	"log/slog"

	"github.com/notargets/NSHalo/flowfield"
	"github.com/notargets/NSHalo/halo"
	"github.com/notargets/NSHalo/parameters"
	"github.com/notargets/NSHalo/transport"
)

// untouched marks ghost cells on the physical boundary, which no exchange
// may overwrite
const untouched = -1.0

type rankReport struct {
	Rank         int
	Stats        halo.Stats
	Mismatches   int
	PressureNorm float64
	VelocityMax  float64
}

// runRank drives one rank through the exchange cycles and checks every ghost
// cell that has a single neighbor as its source
func runRank(p *parameters.Parameters, comm transport.Communicator, iterations int,
	logger *slog.Logger) (rankReport, error) {
	report := rankReport{Rank: p.Rank}
	ff, err := flowfield.NewFlowField(p)
	if err != nil {
		return report, err
	}
	m, err := halo.NewManager(p, ff, comm, logger)
	if err != nil {
		return report, err
	}
	defer m.Close()

	for it := 0; it < iterations; it++ {
		initialize(ff, p, it)
		if err := m.CommunicatePressure(); err != nil {
			return report, fmt.Errorf("iteration %d: %w", it, err)
		}
		if err := m.CommunicateVelocities(); err != nil {
			return report, fmt.Errorf("iteration %d: %w", it, err)
		}
		report.Mismatches += verify(ff, p, it, logger)
	}
	report.Stats = m.Stats()
	report.PressureNorm = ff.PressureNorm()
	report.VelocityMax = ff.VelocityMaxAbs()
	return report, nil
}

func global(p *parameters.Parameters, i, j, k int) [3]int {
	g := [3]int{p.FirstCorner[0] + i - 2, p.FirstCorner[1] + j - 2}
	if p.Dim == 3 {
		g[2] = p.FirstCorner[2] + k - 2
	}
	return g
}

// Values are unique per global cell and iteration so a misplaced copy shows
func pressureAt(g [3]int, it int) float64 {
	return float64(it) + 1e-3*float64(g[0]) + 1e-6*float64(g[1]) + 1e-9*float64(g[2])
}

func velocityAt(g [3]int, it, comp int) float64 {
	return pressureAt(g, it) + float64(10*(comp+1))
}

func initialize(ff *flowfield.FlowField, p *parameters.Parameters, it int) {
	ff.ForEachCell(func(i, j, k int) {
		vel := ff.Velocity(i, j, k)
		if ff.IsGhost(i, j, k) {
			*ff.Pressure(i, j, k) = untouched
			for c := range vel {
				vel[c] = untouched
			}
			return
		}
		g := global(p, i, j, k)
		*ff.Pressure(i, j, k) = pressureAt(g, it)
		for c := range vel {
			vel[c] = velocityAt(g, it, c)
		}
	})
}

// ghostFace returns the face a ghost cell belongs to. Cells in the ghost
// margin of more than one axis are not fed by a single neighbor.
func ghostFace(p *parameters.Parameters, i, j, k int) (parameters.Face, bool) {
	idx := [3]int{i, j, k}
	var (
		face  parameters.Face
		count int
	)
	for axis := 0; axis < p.Dim; axis++ {
		lower, upper := parameters.AxisFaces(axis)
		switch {
		case idx[axis] < parameters.LowerGhostLayers:
			face, count = lower, count+1
		case idx[axis] > p.LocalSize[axis]+1:
			face, count = upper, count+1
		}
	}
	return face, count == 1
}

func verify(ff *flowfield.FlowField, p *parameters.Parameters, it int, logger *slog.Logger) int {
	bad := 0
	report := func(face parameters.Face, i, j, k int, what string, got, want float64) {
		bad++
		if bad <= 5 {
			logger.Warn("ghost mismatch", "iteration", it, "face", face.String(),
				"cell", [3]int{i, j, k}, "field", what, "got", got, "want", want)
		}
	}
	ff.ForEachCell(func(i, j, k int) {
		face, ok := ghostFace(p, i, j, k)
		if !ok {
			return
		}
		g := global(p, i, j, k)
		wantP := untouched
		if p.HasNeighbor(face) {
			wantP = pressureAt(g, it)
		}
		if got := *ff.Pressure(i, j, k); got != wantP {
			report(face, i, j, k, "pressure", got, wantP)
		}
		for c, got := range ff.Velocity(i, j, k) {
			wantV := untouched
			if p.HasNeighbor(face) {
				wantV = velocityAt(g, it, c)
			}
			if got != wantV {
				report(face, i, j, k, fmt.Sprintf("velocity[%d]", c), got, wantV)
			}
		}
	})
	return bad
}
