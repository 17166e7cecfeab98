// Package transport provides the point-to-point message passing used by the
// halo exchange. A Communicator offers a single blocking operation, the
// paired send-receive, with ProcNull disabling either half of the pair.
package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/notargets/NSHalo/parameters"
)

// ProcNull is the rank of a neighbor that does not exist. Sends to it and
// receives from it complete immediately without touching the buffers.
const ProcNull = parameters.NoNeighbor

var (
	ErrSizeMismatch   = errors.New("message size does not match receive buffer")
	ErrRankOutOfRange = errors.New("rank out of range")
	ErrClosed         = errors.New("communicator closed")
)

// Communicator is the message passing view of one rank
type Communicator interface {
	Rank() int
	Size() int
	// Sendrecv sends send to dest with sendTag and receives into recv from
	// source with recvTag. It returns once the send has been handed off and
	// the receive has completed.
	Sendrecv(send []float64, dest, sendTag int, recv []float64, source, recvTag int) error
}

// CheckRank returns an error unless rank is ProcNull or inside [0, size)
func CheckRank(rank, size int) error {
	if rank == ProcNull || (rank >= 0 && rank < size) {
		return nil
	}
	return fmt.Errorf("%w: %d not in [0,%d)", ErrRankOutOfRange, rank, size)
}

type mailboxKey struct {
	source, dest, tag int
}

// Mailboxes holds the undelivered messages of a set of ranks, one FIFO per
// (source, dest, tag)
type Mailboxes struct {
	mu     sync.Mutex
	boxes  map[mailboxKey]chan []float64
	depth  int
	done   chan struct{}
	closed bool
}

// DefaultMailboxDepth is the number of messages a mailbox holds before Post
// blocks
const DefaultMailboxDepth = 8

func NewMailboxes(depth int) *Mailboxes {
	if depth < 1 {
		depth = DefaultMailboxDepth
	}
	return &Mailboxes{
		boxes: make(map[mailboxKey]chan []float64),
		depth: depth,
		done:  make(chan struct{}),
	}
}

func (m *Mailboxes) box(source, dest, tag int) chan []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := mailboxKey{source, dest, tag}
	b, ok := m.boxes[k]
	if !ok {
		b = make(chan []float64, m.depth)
		m.boxes[k] = b
	}
	return b
}

// Post queues data for dest. The caller hands over ownership of data.
func (m *Mailboxes) Post(source, dest, tag int, data []float64) error {
	select {
	case m.box(source, dest, tag) <- data:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// Take blocks until a message from source with tag arrives for dest and
// copies it into recv
func (m *Mailboxes) Take(source, dest, tag int, recv []float64) error {
	var data []float64
	select {
	case data = <-m.box(source, dest, tag):
	case <-m.done:
		return ErrClosed
	}
	if len(data) != len(recv) {
		return fmt.Errorf("%w: got %d values from rank %d tag %d, buffer holds %d",
			ErrSizeMismatch, len(data), source, tag, len(recv))
	}
	copy(recv, data)
	return nil
}

// Close wakes every blocked Post and Take with ErrClosed
func (m *Mailboxes) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}
