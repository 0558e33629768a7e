package core

import "github.com/astercade/chatrelay/internal/proto"

// History is the append-only log of every frame broadcast during this
// process's lifetime. It is replayed verbatim to each client on handshake.
// There is no eviction; unbounded growth is accepted for this server's scope.
//
// Hub goroutine only.
type History struct {
	frames []proto.Frame
}

// NewHistory builds an empty log.
func NewHistory() *History {
	return &History{}
}

// Append records a broadcast frame. Appended frames are immutable.
func (h *History) Append(f proto.Frame) {
	h.frames = append(h.frames, f)
}

// Snapshot returns all retained frames, oldest first. The returned slice is
// a copy and safe to hand to an outbound frame.
func (h *History) Snapshot() []proto.Frame {
	out := make([]proto.Frame, len(h.frames))
	copy(out, h.frames)
	return out
}

// Len reports the number of retained frames.
func (h *History) Len() int {
	return len(h.frames)
}
