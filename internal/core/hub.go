package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/astercade/chatrelay/internal/metrics"
	"github.com/astercade/chatrelay/internal/proto"
)

const (
	joinedText  = "<joined the chat>"
	leftText    = "<Logged out>"
	welcomeText = "Welcome back "

	eventQueueSize = 256
)

// Hub is the broadcast engine. It consumes a single queue of connection
// events (connect, frame, close) so that every allocator, registry and
// history mutation is serialized: fan-out for one event completes before the
// next event is dequeued, and all recipients observe the same relative order.
//
// Per connection the hub runs a two-state machine. A connection starts in
// AwaitingInit; the first handshake frame (clientInit or haveCookieCid)
// moves it to Active. Chat frames are accepted in either state — a chat sent
// before any handshake is broadcast with whatever cid the frame carries,
// possibly none.
type Hub struct {
	events   chan event
	ids      *Allocator
	registry *Registry
	history  *History
	name     string
	log      *zerolog.Logger
	metrics  *metrics.Set
}

// NewHub builds a hub. serverName is the display name stamped on system
// frames. metrics may be shared with the HTTP layer's registry.
func NewHub(serverName string, registry *Registry, m *metrics.Set, logger *zerolog.Logger) *Hub {
	return &Hub{
		events:   make(chan event, eventQueueSize),
		ids:      NewAllocator(),
		registry: registry,
		history:  NewHistory(),
		name:     serverName,
		log:      logger,
		metrics:  m,
	}
}

// Registry exposes the hub's registry for presence reads.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect enqueues a freshly accepted connection. The hub assigns its session
// id and sends the welcome replay before any inbound frame is processed.
func (h *Hub) Connect(c *Client) {
	h.events <- event{kind: eventConnect, client: c}
}

// Inbound enqueues one decoded frame from a connection.
func (h *Hub) Inbound(c *Client, f proto.Frame) {
	h.events <- event{kind: eventFrame, client: c, frame: f}
}

// Disconnect enqueues a connection-close notification. Graceful and abrupt
// closure are treated identically.
func (h *Hub) Disconnect(c *Client) {
	h.events <- event{kind: eventClose, client: c}
}

// Run processes events until the context is cancelled. Each handler runs to
// completion, including its fan-out loop, before the next event is dequeued.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.events:
			switch ev.kind {
			case eventConnect:
				h.handleConnect(ev.client)
			case eventFrame:
				h.handleFrame(ev.client, ev.frame)
			case eventClose:
				h.handleClose(ev.client)
			}
		}
	}
}

func (h *Hub) handleConnect(c *Client) {
	c.SCID = h.ids.NextSessionID()

	// Welcome replay goes out immediately, before the client has said
	// anything at all.
	c.deliver(proto.Frame{
		SystemMessage:  true,
		RxDate:         time.Now(),
		Text:           welcomeText,
		User:           h.name,
		SrvAck:         true,
		InitMessage:    true,
		Scid:           c.SCID,
		MessageHistory: h.history.Snapshot(),
	})

	h.log.Info().Int64("scid", c.SCID).Str("trace_id", c.TraceID).Msg("connection established")
}

func (h *Hub) handleFrame(c *Client, f proto.Frame) {
	switch {
	case f.ClientInit:
		h.handleClientInit(c)
	case f.HaveCookieCid:
		h.handleResume(c, f.Cid)
	default:
		h.handleChat(c, f)
	}
}

// handleClientInit serves a client with no prior identity: mint a cid, reply
// to it alone with the assignment plus full history, then announce the join
// to everyone else.
func (h *Hub) handleClientInit(c *Client) {
	cid := h.ids.NextClientID()
	c.cid = cid
	c.state = stateActive

	c.deliver(proto.Frame{
		SystemMessage:  true,
		RxDate:         time.Now(),
		CidResponse:    true,
		CidOption:      cid,
		Text:           fmt.Sprintf("Welcome! You got the name: Player %d", cid),
		Scid:           c.SCID,
		User:           h.name,
		SrvAck:         true,
		Color:          proto.Palette[colorTag()],
		MessageHistory: h.history.Snapshot(),
	})

	h.register(c, cid)
}

// handleResume registers a previously issued identity without minting a new
// one. No check is made that the cid is not already live on another session;
// the registry logs the duplicate and both sessions receive broadcasts.
func (h *Hub) handleResume(c *Client, cid int64) {
	c.cid = cid
	c.state = stateActive
	h.log.Info().Int64("cid", cid).Int64("scid", c.SCID).Msg("resuming existing identity")
	h.register(c, cid)
}

func (h *Hub) register(c *Client, cid int64) {
	user := &ConnectedUser{
		CID:      cid,
		SCID:     c.SCID,
		Name:     displayName(cid),
		JoinedAt: time.Now(),
		Client:   c,
	}
	if err := h.registry.Register(user); err != nil {
		h.log.Error().Err(err).Int64("cid", cid).Int64("scid", c.SCID).Msg("register user")
		return
	}
	if h.metrics != nil {
		h.metrics.ConnectedUsers.Set(float64(h.registry.Len()))
	}

	h.broadcast(proto.Frame{
		SystemMessage: true,
		RxDate:        time.Now(),
		SrvAck:        true,
		User:          user.Name,
		Text:          joinedText,
		UserJoined:    true,
		Cid:           cid,
		Scid:          c.SCID,
	}, cid)
}

// handleChat stamps and echoes a chat frame to every connected user,
// including the sender: the echo carries srvAckMid so the sender can replace
// its optimistic copy.
func (h *Hub) handleChat(c *Client, f proto.Frame) {
	if f.Cid != 0 {
		// Remember the sender's claimed identity for leave attribution.
		c.cid = f.Cid
	}

	f.RxDate = time.Now()
	f.SrvAckMid = f.Mid
	f.SrvAck = true
	f.User = h.senderName(f.Cid)

	h.broadcast(f, 0)
}

func (h *Hub) handleClose(c *Client) {
	h.broadcast(proto.Frame{
		SystemMessage: true,
		RxDate:        time.Now(),
		SrvAck:        true,
		User:          displayName(c.cid),
		Text:          leftText,
		UserLeft:      true,
		Cid:           c.cid,
		Scid:          c.SCID,
	}, 0)

	if err := h.registry.Unregister(c.SCID); err != nil {
		h.log.Error().Err(err).Int64("scid", c.SCID).Msg("unregister session")
		return
	}
	if h.metrics != nil {
		h.metrics.ConnectedUsers.Set(float64(h.registry.Len()))
	}
	h.log.Info().Int64("scid", c.SCID).Int64("cid", c.cid).Msg("user left the chat")
}

// broadcast appends the frame to history and fans it out. skipCID excludes
// every session registered under that cid (join notices skip the subject);
// zero means no exclusion. Delivery is fire-and-forget: a full recipient
// queue drops the frame rather than stalling the loop.
func (h *Hub) broadcast(f proto.Frame, skipCID int64) {
	h.history.Append(f)
	if h.metrics != nil {
		h.metrics.HistoryLength.Set(float64(h.history.Len()))
		h.metrics.BroadcastsTotal.Inc()
	}

	users := h.registry.snapshot()
	if len(users) == 0 {
		h.log.Debug().Msg("no users connected")
		return
	}

	for _, u := range users {
		if skipCID != 0 && u.CID == skipCID {
			continue
		}
		if !u.Client.deliver(f) {
			if h.metrics != nil {
				h.metrics.DroppedSends.Inc()
			}
			h.log.Warn().Int64("cid", u.CID).Int64("scid", u.SCID).Msg("recipient queue full, frame dropped")
		}
	}
}

// senderName resolves the display name stamped onto a chat echo. Registered
// identities win; an unregistered or absent cid still gets the generic form
// rather than being rejected.
func (h *Hub) senderName(cid int64) string {
	if u := h.registry.byCID(cid); u != nil {
		return u.Name
	}
	return displayName(cid)
}

func displayName(cid int64) string {
	return fmt.Sprintf("User #%d", cid)
}

func colorTag() int {
	return rand.IntN(len(proto.Palette)) + 1
}
