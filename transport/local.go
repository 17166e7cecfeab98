package transport

import (
	"fmt"
)

// LocalWorld connects a fixed number of ranks living in one process, each
// rank typically driven by its own goroutine
type LocalWorld struct {
	size  int
	boxes *Mailboxes
	comms []*LocalComm
}

func NewLocalWorld(size int) (*LocalWorld, error) {
	if size < 1 {
		return nil, fmt.Errorf("local world needs at least one rank, got %d", size)
	}
	w := &LocalWorld{size: size, boxes: NewMailboxes(DefaultMailboxDepth)}
	w.comms = make([]*LocalComm, size)
	for r := range w.comms {
		w.comms[r] = &LocalComm{world: w, rank: r}
	}
	return w, nil
}

func (w *LocalWorld) Size() int { return w.size }

// Comm returns the communicator of rank
func (w *LocalWorld) Comm(rank int) *LocalComm {
	return w.comms[rank]
}

// Close releases every rank still blocked in Sendrecv
func (w *LocalWorld) Close() {
	w.boxes.Close()
}

// LocalComm is the Communicator of one rank of a LocalWorld
type LocalComm struct {
	world *LocalWorld
	rank  int
}

func (c *LocalComm) Rank() int { return c.rank }
func (c *LocalComm) Size() int { return c.world.size }

func (c *LocalComm) Sendrecv(send []float64, dest, sendTag int, recv []float64, source, recvTag int) error {
	if err := CheckRank(dest, c.world.size); err != nil {
		return fmt.Errorf("rank %d send: %w", c.rank, err)
	}
	if err := CheckRank(source, c.world.size); err != nil {
		return fmt.Errorf("rank %d receive: %w", c.rank, err)
	}
	if dest != ProcNull {
		msg := make([]float64, len(send))
		copy(msg, send)
		if err := c.world.boxes.Post(c.rank, dest, sendTag, msg); err != nil {
			return fmt.Errorf("rank %d send to %d: %w", c.rank, dest, err)
		}
	}
	if source != ProcNull {
		if err := c.world.boxes.Take(source, c.rank, recvTag, recv); err != nil {
			return fmt.Errorf("rank %d receive from %d: %w", c.rank, source, err)
		}
	}
	return nil
}
