package core

import "github.com/astercade/chatrelay/internal/proto"

type connState int

const (
	stateAwaitingInit connState = iota
	stateActive
)

// Client is one live connection as seen by the hub. The transport creates it,
// consumes Events, and feeds inbound frames through the hub; SCID, cid and
// state are owned by the hub goroutine and must not be touched elsewhere.
type Client struct {
	TraceID string
	Events  chan proto.Frame

	// hub-owned
	SCID  int64
	cid   int64
	state connState
}

// Outbound queue per connection. Sends beyond this are dropped rather than
// awaited so one stalled reader cannot hold up a broadcast.
const sendQueueSize = 64

// NewClient constructs a client with a bounded outbound queue.
func NewClient(traceID string) *Client {
	return &Client{
		TraceID: traceID,
		Events:  make(chan proto.Frame, sendQueueSize),
	}
}

// deliver enqueues a frame without blocking. Returns false if the queue was
// full and the frame was dropped.
func (c *Client) deliver(f proto.Frame) bool {
	select {
	case c.Events <- f:
		return true
	default:
		return false
	}
}
