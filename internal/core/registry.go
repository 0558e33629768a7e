package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnectedUser is one registered participant. Created when a handshake
// completes, destroyed when the connection closes. The registry owns it; the
// hub only reads it during fan-out.
type ConnectedUser struct {
	CID      int64
	SCID     int64
	Name     string
	JoinedAt time.Time
	Client   *Client
}

// PublicUser is the presence view exposed outside the core.
type PublicUser struct {
	Name       string    `json:"name"`
	JoinedDate time.Time `json:"joinedDate"`
}

// Registry tracks currently connected users in join order. All mutations
// happen on the hub goroutine; the lock exists only for read-only snapshots
// taken by the HTTP layer.
type Registry struct {
	mu    sync.RWMutex
	users []*ConnectedUser
	log   *zerolog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{log: logger}
}

// Register adds a user. A duplicate session id is a programming error and is
// rejected; a duplicate client id (same identity presented by two live
// connections) is tolerated and logged.
func (r *Registry) Register(u *ConnectedUser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.SCID == u.SCID {
			return fmt.Errorf("register scid %d: %w", u.SCID, ErrSessionExists)
		}
		if existing.CID == u.CID {
			r.log.Warn().
				Int64("cid", u.CID).
				Int64("scid", existing.SCID).
				Int64("new_scid", u.SCID).
				Msg("cid already registered under another session")
		}
	}

	r.users = append(r.users, u)
	return nil
}

// Unregister removes the entry for the given session id. An absent or
// sentinel id is rejected with ErrInvalidSession; an unknown id is a logged
// no-op since close events can race a failed handshake.
func (r *Registry) Unregister(scid int64) error {
	if scid <= 0 {
		return fmt.Errorf("unregister scid %d: %w", scid, ErrInvalidSession)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, u := range r.users {
		if u.SCID == scid {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}

	r.log.Debug().Int64("scid", scid).Msg("unregister: session not found")
	return nil
}

// Len reports the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ListPublic returns a presence snapshot in join order.
func (r *Registry) ListPublic() []PublicUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PublicUser, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, PublicUser{Name: u.Name, JoinedDate: u.JoinedAt})
	}
	return out
}

// byCID returns the first registered user with the given client id, or nil.
func (r *Registry) byCID(cid int64) *ConnectedUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.CID == cid {
			return u
		}
	}
	return nil
}

// snapshot returns the users slice for fan-out. Hub goroutine only.
func (r *Registry) snapshot() []*ConnectedUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ConnectedUser, len(r.users))
	copy(out, r.users)
	return out
}
