package client

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/astercade/chatrelay/internal/proto"
)

// Ledger is the client's rendered transcript plus the optimistic entries
// awaiting their server echo. A submitted message is appended immediately
// with srvAck unset; when the server's broadcast copy arrives bearing the
// same cid and an srvAckMid equal to the pending entry's mid, the pending
// entry is replaced by the authoritative copy.
//
// The mid stamped at submit time is the transcript length, not a dedicated
// counter. Two local sends racing ahead of any server echo can therefore
// mis-pair; the wire protocol pins this behavior.
type Ledger struct {
	mu      sync.Mutex
	entries []proto.Frame
}

// NewLedger builds an empty transcript.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Submit appends a pending entry for locally authored text and returns the
// frame to transmit.
func (l *Ledger) Submit(cid int64, user, text string) proto.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := proto.Frame{
		Cid:      cid,
		Color:    proto.Palette[rand.IntN(len(proto.Palette))+1],
		Mid:      int64(len(l.entries)),
		RxDate:   time.Now(),
		Text:     text,
		ThisIsMe: true,
		Type:     proto.TypeChat,
		User:     user,
	}
	l.entries = append(l.entries, f)
	return f
}

// Reconcile removes the pending entry the incoming frame acknowledges, then
// appends the incoming frame. Receiving the same authoritative echo twice
// neither reintroduces the placeholder nor appends a second copy. System
// frames carry no acknowledgement and only append.
func (l *Ledger) Reconcile(in proto.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in.SrvAck && !in.SystemMessage {
		for _, e := range l.entries {
			if e.SrvAck && !e.SystemMessage && e.Cid == in.Cid && e.SrvAckMid == in.SrvAckMid {
				// Already hold this authoritative copy.
				return
			}
		}

		kept := l.entries[:0]
		for _, e := range l.entries {
			if !e.SrvAck && e.Cid == in.Cid && e.Mid == in.SrvAckMid {
				continue
			}
			kept = append(kept, e)
		}
		l.entries = kept
	}

	in.Mid = int64(len(l.entries))
	l.entries = append(l.entries, in)
}

// Replace resets the transcript to the server's replayed history. Applied on
// every handshake so a reconnect resynchronizes without duplicating entries;
// pending optimistic entries are discarded, they are not resent.
func (l *Ledger) Replace(history []proto.Frame) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]proto.Frame, len(history))
	copy(l.entries, history)
}

// Transcript returns a copy of the rendered list, oldest first.
func (l *Ledger) Transcript() []proto.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]proto.Frame, len(l.entries))
	copy(out, l.entries)
	return out
}

// Pending reports how many entries still await their server echo.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if !e.SrvAck {
			n++
		}
	}
	return n
}
