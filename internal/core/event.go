package core

import "github.com/astercade/chatrelay/internal/proto"

// eventKind discriminates entries on the hub's single inbound queue.
type eventKind int

const (
	// eventConnect announces a freshly accepted connection.
	eventConnect eventKind = iota
	// eventFrame carries one decoded inbound frame from a connection.
	eventFrame
	// eventClose announces that a connection has gone away.
	eventClose
)

// event is one unit of work for the hub loop. All connections funnel into the
// same queue, which is what serializes every registry, history and allocator
// mutation without locks.
type event struct {
	kind   eventKind
	client *Client
	frame  proto.Frame
}
