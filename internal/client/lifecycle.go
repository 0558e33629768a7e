package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/astercade/chatrelay/internal/proto"
	"github.com/astercade/chatrelay/internal/store"
)

const (
	dialTimeout = 10 * time.Second
	redialWait  = 2 * time.Second
)

// Controller owns the client's connection lifecycle: it dials, runs a session
// until the socket is lost, then re-establishes from scratch. The ledger and
// identity store survive reconnects; the handshake restarts each time.
// Pending optimistic entries are not resent on reconnect.
type Controller struct {
	addr   string
	name   string
	ids    store.IdentityStore
	ledger *Ledger
	log    *zerolog.Logger
	out    io.Writer
}

// NewController builds a controller dialing addr. name is an optional display
// name; out receives the rendered transcript lines and may be nil.
func NewController(addr, name string, ids store.IdentityStore, logger *zerolog.Logger, out io.Writer) *Controller {
	return &Controller{
		addr:   addr,
		name:   name,
		ids:    ids,
		ledger: NewLedger(),
		log:    logger,
		out:    out,
	}
}

// Ledger exposes the transcript shared across reconnects.
func (c *Controller) Ledger() *Ledger {
	return c.ledger
}

// Run connects and reconnects until the context is cancelled. Lines received
// on input are submitted as chat messages; closing input ends the run after
// the current connection drops.
func (c *Controller) Run(ctx context.Context, input <-chan string) error {
	for {
		err := c.runConn(ctx, input)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errInputClosed) {
			return nil
		}
		c.log.Warn().Err(err).Str("addr", c.addr).Msg("connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(redialWait):
		}
	}
}

var errInputClosed = errors.New("input closed")

// runConn performs one full connection attempt: dial, handshake (driven by
// the server's welcome), then pump frames until the socket errors.
func (c *Controller) runConn(ctx context.Context, input <-chan string) error {
	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.addr, nil)
	cancelDial()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	send := func(ctx context.Context, f proto.Frame) error {
		return wsjson.Write(ctx, conn, f)
	}
	sess := NewSession(c.ids, c.ledger, send, c.name, c.log)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(connCtx, conn, sess)
	}()

	for {
		select {
		case err := <-readErr:
			cancel()
			return err
		case line, ok := <-input:
			if !ok {
				cancel()
				<-readErr
				return errInputClosed
			}
			if err := sess.Submit(connCtx, line); err != nil {
				cancel()
				<-readErr
				return err
			}
		}
	}
}

func (c *Controller) readLoop(ctx context.Context, conn *websocket.Conn, sess *Session) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var f proto.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		if err := sess.HandleFrame(ctx, f); err != nil {
			return err
		}
		c.render(f)
	}
}

// render prints a frame (and any bundled history) as transcript lines.
func (c *Controller) render(f proto.Frame) {
	if c.out == nil {
		return
	}
	for _, m := range f.MessageHistory {
		c.renderLine(m)
	}
	c.renderLine(f)
}

func (c *Controller) renderLine(f proto.Frame) {
	switch {
	case f.Text == "":
	case f.SystemMessage:
		fmt.Fprintf(c.out, "* %s %s\n", f.User, f.Text)
	default:
		fmt.Fprintf(c.out, "[%s] %s\n", f.User, f.Text)
	}
}
