package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/astercade/chatrelay/internal/proto"
	"github.com/astercade/chatrelay/internal/store"
)

// SendFunc transmits one frame to the server. It returns an error when the
// transport is not open; the frame is then dropped, never queued.
type SendFunc func(ctx context.Context, f proto.Frame) error

// Session drives one connection's view of the protocol: it resolves whether
// this client already holds an issued identity, performs the three-way
// handshake, and routes every inbound frame through the ledger. A new
// Session is created per connection; the ledger and identity store persist
// across reconnects.
type Session struct {
	ids    store.IdentityStore
	ledger *Ledger
	send   SendFunc
	log    *zerolog.Logger

	// name overrides the generated display name when non-empty.
	name string

	cid       int64
	announced bool
}

// NewSession binds a session to a transport send function.
func NewSession(ids store.IdentityStore, ledger *Ledger, send SendFunc, name string, logger *zerolog.Logger) *Session {
	return &Session{
		ids:    ids,
		ledger: ledger,
		send:   send,
		log:    logger,
		name:   name,
	}
}

// CID returns the identity this session is operating under, zero if none yet.
func (s *Session) CID() int64 {
	return s.cid
}

// HandleFrame processes one inbound frame:
//
//   - an identity assignment is persisted and its bundled history replayed;
//   - with no identity yet, a clientInit request is sent and processing stops
//     until the server's reply;
//   - a welcome frame replays its history and triggers the haveCookieCid
//     announcement, once;
//   - everything else is reconciled into the transcript.
func (s *Session) HandleFrame(ctx context.Context, f proto.Frame) error {
	if f.CidResponse {
		if err := s.ids.Save(ctx, f.CidOption); err != nil {
			s.log.Warn().Err(err).Int64("cid", f.CidOption).Msg("persist issued identity")
		}
		s.cid = f.CidOption
		s.log.Info().Int64("cid", s.cid).Msg("identity assigned")
		s.ledger.Replace(f.MessageHistory)
	}

	if s.cid == 0 {
		cid, ok, err := s.ids.Load(ctx)
		if err != nil {
			return fmt.Errorf("load identity: %w", err)
		}
		if ok {
			s.cid = cid
		}
	}

	if s.cid == 0 {
		if err := s.send(ctx, proto.Frame{ClientInit: true}); err != nil {
			return fmt.Errorf("send clientInit: %w", err)
		}
		return nil
	}

	if f.InitMessage {
		s.ledger.Replace(f.MessageHistory)
		if !s.announced {
			s.announced = true
			if err := s.send(ctx, proto.Frame{Cid: s.cid, HaveCookieCid: true}); err != nil {
				return fmt.Errorf("send haveCookieCid: %w", err)
			}
		}
	}

	s.ledger.Reconcile(f)
	return nil
}

// Submit appends an optimistic entry and transmits it. A send failure leaves
// the pending entry in place; it is not retried.
func (s *Session) Submit(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	user := s.name
	if user == "" {
		user = fmt.Sprintf("Player #%d", s.cid)
	}

	f := s.ledger.Submit(s.cid, user, text)
	if err := s.send(ctx, f); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}
