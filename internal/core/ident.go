package core

// Allocator mints client and session identifiers. Both counters are strictly
// increasing, start at 1 and are never reused. Nothing is persisted; a server
// restart starts both sequences over.
//
// Single-writer: only the hub goroutine may call these.
type Allocator struct {
	lastCID  int64
	lastSCID int64
}

// NewAllocator returns an allocator with both sequences at zero.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// NextClientID returns the next stable client identifier.
func (a *Allocator) NextClientID() int64 {
	a.lastCID++
	return a.lastCID
}

// NextSessionID returns the next per-connection session identifier.
func (a *Allocator) NextSessionID() int64 {
	a.lastSCID++
	return a.lastSCID
}
