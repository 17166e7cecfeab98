// Package wsnet runs the halo transport across processes. Every rank serves
// a websocket endpoint and dials its neighbors on first use; messages travel
// as binary frames and land in the receiving rank's mailboxes.
package wsnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/notargets/NSHalo/transport"
)

// Path is the endpoint every peer serves
const Path = "/halo"

// DefaultDialTimeout bounds how long a peer keeps retrying to reach a
// neighbor that has not started yet
const DefaultDialTimeout = 30 * time.Second

// Peer is the Communicator of one rank in a multi-process run.
// addresses[i] is the host:port of the peer with rank i.
type Peer struct {
	rank        int
	addresses   map[int]string
	dialTimeout time.Duration
	logger      *slog.Logger

	server   *http.Server
	upgrader websocket.Upgrader
	boxes    *transport.Mailboxes

	mu       sync.Mutex
	outbound map[int]*conn
	inbound  map[*websocket.Conn]struct{}
	readers  sync.WaitGroup
	closed   bool
}

type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

// NewPeer starts serving on l. A nil logger discards output.
func NewPeer(rank int, addresses map[int]string, l net.Listener, logger *slog.Logger) (*Peer, error) {
	if _, ok := addresses[rank]; !ok {
		return nil, fmt.Errorf("%w: no address for rank %d", transport.ErrRankOutOfRange, rank)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Peer{
		rank:        rank,
		addresses:   copyMap(addresses),
		dialTimeout: DefaultDialTimeout,
		logger:      logger.With("rank", rank),
		boxes:       transport.NewMailboxes(transport.DefaultMailboxDepth),
		outbound:    make(map[int]*conn),
		inbound:     make(map[*websocket.Conn]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, p.serveHalo)
	p.server = &http.Server{Addr: addresses[rank], Handler: mux}
	go func() {
		if err := p.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("halo server stopped", "err", err)
		}
	}()
	return p, nil
}

// SetDialTimeout changes how long Sendrecv retries to connect to a neighbor
func (p *Peer) SetDialTimeout(d time.Duration) {
	p.dialTimeout = d
}

func (p *Peer) Rank() int { return p.rank }
func (p *Peer) Size() int { return len(p.addresses) }

func (p *Peer) Sendrecv(send []float64, dest, sendTag int, recv []float64, source, recvTag int) error {
	if err := transport.CheckRank(dest, p.Size()); err != nil {
		return fmt.Errorf("rank %d send: %w", p.rank, err)
	}
	if err := transport.CheckRank(source, p.Size()); err != nil {
		return fmt.Errorf("rank %d receive: %w", p.rank, err)
	}
	if dest != transport.ProcNull {
		if err := p.send(send, dest, sendTag); err != nil {
			return fmt.Errorf("rank %d send to %d: %w", p.rank, dest, err)
		}
	}
	if source != transport.ProcNull {
		if err := p.boxes.Take(source, p.rank, recvTag, recv); err != nil {
			return fmt.Errorf("rank %d receive from %d: %w", p.rank, source, err)
		}
	}
	return nil
}

func (p *Peer) send(data []float64, dest, tag int) error {
	if dest == p.rank {
		msg := make([]float64, len(data))
		copy(msg, data)
		return p.boxes.Post(p.rank, p.rank, tag, msg)
	}
	c, err := p.connection(dest)
	if err != nil {
		return err
	}
	frame := encodeFrame(p.rank, tag, data)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// connection returns the outbound connection to dest, dialing it on first use
func (p *Peer) connection(dest int) (*conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if c, ok := p.outbound[dest]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	url := "ws://" + p.addresses[dest] + Path
	start := time.Now()
	for {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			p.mu.Lock()
			defer p.mu.Unlock()
			if p.closed {
				ws.Close()
				return nil, transport.ErrClosed
			}
			c := &conn{ws: ws}
			p.outbound[dest] = c
			p.logger.Debug("connected", "peer", dest, "url", url)
			return c, nil
		}
		if time.Since(start) > p.dialTimeout {
			return nil, fmt.Errorf("dial %s timed out: %w", url, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (p *Peer) serveHalo(rw http.ResponseWriter, req *http.Request) {
	ws, err := p.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		p.logger.Warn("upgrade failed", "remote", req.RemoteAddr, "err", err)
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		ws.Close()
		return
	}
	p.inbound[ws] = struct{}{}
	p.readers.Add(1)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inbound, ws)
		p.mu.Unlock()
		ws.Close()
		p.readers.Done()
	}()
	for {
		typ, msg, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				p.logger.Debug("inbound connection ended", "remote", req.RemoteAddr, "err", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		source, tag, data, err := decodeFrame(msg)
		if err != nil {
			p.logger.Error("dropping malformed frame", "remote", req.RemoteAddr, "err", err)
			continue
		}
		if err := p.boxes.Post(source, p.rank, tag, data); err != nil {
			return
		}
	}
}

// Close stops the server, closes all connections and releases blocked
// receives. It is safe to call more than once.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	outbound := p.outbound
	p.outbound = nil
	inbound := make([]*websocket.Conn, 0, len(p.inbound))
	for ws := range p.inbound {
		inbound = append(inbound, ws)
	}
	p.mu.Unlock()

	p.boxes.Close()
	var errs []error
	for _, c := range outbound {
		c.mu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		errs = append(errs, c.ws.Close())
		c.mu.Unlock()
	}
	for _, ws := range inbound {
		_ = ws.Close()
	}
	errs = append(errs, p.server.Shutdown(context.Background()))
	p.readers.Wait()
	return errors.Join(errs...)
}

// CreateListeners opens n loopback listeners and returns them with their
// addresses, keyed by rank
func CreateListeners(n int) (map[int]net.Listener, map[int]string, error) {
	listeners := make(map[int]net.Listener)
	addresses := make(map[int]string)
	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", "localhost:0")
		if err != nil {
			for _, open := range listeners {
				open.Close()
			}
			return nil, nil, err
		}
		listeners[i] = l
		addresses[i] = l.Addr().String()
	}
	return listeners, addresses, nil
}

func copyMap(original map[int]string) map[int]string {
	copied := make(map[int]string, len(original))
	for k, v := range original {
		copied[k] = v
	}
	return copied
}
