package core

import "errors"

var (
	// ErrInvalidSession rejects unregister calls with an absent or
	// nonsensical session id instead of silently ignoring them.
	ErrInvalidSession = errors.New("invalid session id")

	// ErrSessionExists means a session id was registered twice. Session ids
	// are minted once per connection, so this is a programming error.
	ErrSessionExists = errors.New("session already registered")
)
