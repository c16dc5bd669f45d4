package hub

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Connection is one live client channel of an authenticated user. Outbound
// frames are queued on a bounded buffer that a transport drains; the buffer
// is never closed, Done signals the end instead.
type Connection struct {
	ID     string
	UserID string

	state   atomic.Int32
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func newConnection(id string, buffer int, limiter *rate.Limiter) *Connection {
	return &Connection{
		ID:      id,
		send:    make(chan []byte, buffer),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

func (c *Connection) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// Outbound yields frames queued for the client.
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Done is closed once the connection reaches StateClosed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// enqueue queues frame without blocking. It fails when the connection is not
// active or its buffer is full.
func (c *Connection) enqueue(frame []byte) bool {
	if c.State() != StateActive {
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close moves the connection to StateClosed and reports the state it left.
// Only the first call has an effect.
func (c *Connection) close() (prev State, first bool) {
	c.once.Do(func() {
		prev = State(c.state.Swap(int32(StateClosed)))
		close(c.done)
		first = true
	})
	return prev, first
}
