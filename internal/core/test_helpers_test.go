package core

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/astercade/chatrelay/internal/proto"
)

func testHub() (*Hub, *Registry) {
	logger := zerolog.Nop()
	registry := NewRegistry(&logger)
	return NewHub("test_server", registry, nil, &logger), registry
}

// mustFrame drains ch until a frame matching the predicate arrives.
func mustFrame(t *testing.T, ch <-chan proto.Frame, desc string, match func(proto.Frame) bool) proto.Frame {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-ch:
			if match(f) {
				return f
			}
		case <-deadline:
			t.Fatalf("expected frame (%s) not received", desc)
		}
	}
}

// expectNoFrame asserts that no frame matching the predicate arrives within a
// short window.
func expectNoFrame(t *testing.T, ch <-chan proto.Frame, desc string, match func(proto.Frame) bool) {
	t.Helper()

	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case f := <-ch:
			if match(f) {
				t.Fatalf("unexpected frame (%s): %+v", desc, f)
			}
		case <-deadline:
			return
		}
	}
}

func isWelcome(f proto.Frame) bool     { return f.InitMessage }
func isCidResponse(f proto.Frame) bool { return f.CidResponse }
func isJoin(f proto.Frame) bool        { return f.UserJoined }
func isLeave(f proto.Frame) bool       { return f.UserLeft }
func isChat(f proto.Frame) bool        { return !f.SystemMessage && f.Text != "" }
