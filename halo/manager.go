// Package halo keeps the ghost layers of a decomposed flow field consistent
// with the neighboring subdomains. A Manager owns the send and receive
// buffers of one rank and runs the exchange protocol: pack every shared
// face, swap buffers with the neighbors one axis at a time, unpack into the
// ghost layers.
package halo

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/notargets/NSHalo/iterators"
	"github.com/notargets/NSHalo/parameters"
	"github.com/notargets/NSHalo/stencils"
	"github.com/notargets/NSHalo/transport"
)

var ErrClosed = errors.New("halo manager closed")

// Message tags are tagBase + 2*axis + direction, direction 0 toward the
// upper neighbor and 1 toward the lower one
const (
	pressureTagBase = 0
	velocityTagBase = 8
)

func messageTag(base, axis int, upward bool) int {
	if upward {
		return base + 2*axis
	}
	return base + 2*axis + 1
}

var axisNames = [3]string{"x", "y", "z"}

// Stats counts the work done by a Manager
type Stats struct {
	PressureExchanges int
	VelocityExchanges int
	ValuesSent        int64
	ValuesReceived    int64
}

type exchange struct {
	name    string
	tagBase int
	send    stencils.FaceBuffers
	recv    stencils.FaceBuffers
	fill    *iterators.ParallelBoundaryIterator
	read    *iterators.ParallelBoundaryIterator
	count   *int
}

// Manager performs the ghost-layer exchange of pressure and velocity for one
// rank. It is not safe for concurrent use; each rank drives its own Manager.
type Manager struct {
	params *parameters.Parameters
	comm   transport.Communicator
	logger *slog.Logger
	sizes  BufferSizes

	pressure exchange
	velocity exchange
	stats    Stats
	closed   bool
}

// NewManager sizes and allocates the exchange buffers of the rank described
// by params and builds the stencils and iterators that move data between
// field and buffers. A nil logger discards output.
func NewManager(params *parameters.Parameters, field stencils.Field, comm transport.Communicator,
	logger *slog.Logger) (*Manager, error) {
	if params == nil || field == nil || comm == nil {
		return nil, errors.New("halo manager needs parameters, a field and a communicator")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("halo manager: %w", err)
	}
	if comm.Rank() != params.Rank {
		return nil, fmt.Errorf("halo manager: communicator rank %d does not match parameters rank %d",
			comm.Rank(), params.Rank)
	}
	for _, f := range params.ActiveFaces() {
		if err := transport.CheckRank(params.Neighbor(f), comm.Size()); err != nil {
			return nil, fmt.Errorf("halo manager: %s neighbor: %w", f, err)
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{
		params: params,
		comm:   comm,
		logger: logger.With("rank", params.Rank),
		sizes:  ComputeBufferSizes(params.LocalSize, params.Dim),
	}

	comps := params.ComponentsPerCell()
	m.pressure = exchange{name: "pressure", tagBase: pressureTagBase, count: &m.stats.PressureExchanges}
	m.velocity = exchange{name: "velocity", tagBase: velocityTagBase, count: &m.stats.VelocityExchanges}
	for _, f := range params.ActiveFaces() {
		m.pressure.send[f] = make([]float64, m.sizes.sendLen(f, 1))
		m.pressure.recv[f] = make([]float64, m.sizes.recvLen(f, 1))
		m.velocity.send[f] = make([]float64, m.sizes.sendLen(f, comps))
		m.velocity.recv[f] = make([]float64, m.sizes.recvLen(f, comps))
	}

	const (
		fillLow, fillHigh = 2, -2
		readLow, readHigh = 0, 0
	)
	m.pressure.fill = iterators.NewParallelBoundaryIterator(field, params,
		stencils.NewPressureBufferFillStencil(params, m.pressure.send), fillLow, fillHigh)
	m.pressure.read = iterators.NewParallelBoundaryIterator(field, params,
		stencils.NewPressureBufferReadStencil(params, m.pressure.recv), readLow, readHigh)
	m.velocity.fill = iterators.NewParallelBoundaryIterator(field, params,
		stencils.NewVelocityBufferFillStencil(params, m.velocity.send), fillLow, fillHigh)
	m.velocity.read = iterators.NewParallelBoundaryIterator(field, params,
		stencils.NewVelocityBufferReadStencil(params, m.velocity.recv), readLow, readHigh)

	m.logger.Debug("halo manager ready",
		"dim", params.Dim,
		"localSize", params.LocalSize,
		"neighbors", params.Neighbors,
		"sizes", m.sizes)
	return m, nil
}

// BufferSizes returns the per-layer buffer sizes of this rank
func (m *Manager) BufferSizes() BufferSizes { return m.sizes }

func (m *Manager) Stats() Stats { return m.stats }

// CommunicatePressure refreshes the pressure ghost layers from the
// neighbors. It blocks until every neighbor has taken part.
func (m *Manager) CommunicatePressure() error {
	return m.communicate(&m.pressure)
}

// CommunicateVelocities refreshes all velocity components in the ghost
// layers from the neighbors
func (m *Manager) CommunicateVelocities() error {
	return m.communicate(&m.velocity)
}

func (m *Manager) communicate(x *exchange) error {
	if m.closed {
		return ErrClosed
	}
	x.fill.Iterate()
	p := m.params
	for axis := 0; axis < p.Dim; axis++ {
		lower, upper := parameters.AxisFaces(axis)
		lowerRank, upperRank := p.Neighbor(lower), p.Neighbor(upper)

		up := messageTag(x.tagBase, axis, true)
		if err := m.comm.Sendrecv(x.send[upper], upperRank, up, x.recv[lower], lowerRank, up); err != nil {
			return fmt.Errorf("%s exchange along %s toward upper neighbor: %w", x.name, axisNames[axis], err)
		}
		down := messageTag(x.tagBase, axis, false)
		if err := m.comm.Sendrecv(x.send[lower], lowerRank, down, x.recv[upper], upperRank, down); err != nil {
			return fmt.Errorf("%s exchange along %s toward lower neighbor: %w", x.name, axisNames[axis], err)
		}
		m.account(x, lower)
		m.account(x, upper)
	}
	x.read.Iterate()
	*x.count++
	m.logger.Debug("ghost layers exchanged", "field", x.name, "cycle", *x.count)
	return nil
}

func (m *Manager) account(x *exchange, f parameters.Face) {
	if m.params.HasNeighbor(f) {
		m.stats.ValuesSent += int64(len(x.send[f]))
		m.stats.ValuesReceived += int64(len(x.recv[f]))
	}
}

// Close releases the exchange buffers. Later exchanges return ErrClosed.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	for _, x := range []*exchange{&m.pressure, &m.velocity} {
		x.send = stencils.FaceBuffers{}
		x.recv = stencils.FaceBuffers{}
		x.fill, x.read = nil, nil
	}
	m.logger.Debug("halo manager closed", "stats", m.stats)
}
