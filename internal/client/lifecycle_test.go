package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/astercade/chatrelay/internal/config"
	"github.com/astercade/chatrelay/internal/core"
	transporthttp "github.com/astercade/chatrelay/internal/transport/http"
)

func startServer(t *testing.T) (ts *httptest.Server, wsURL string, registry *core.Registry) {
	t.Helper()

	logger := zerolog.Nop()
	registry = core.NewRegistry(&logger)
	hub := core.NewHub("test_server", registry, nil, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := transporthttp.NewServer(hub, prometheus.NewRegistry(), config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts = httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, strings.Replace(ts.URL, "http", "ws", 1) + "/ws", registry
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestControllerHandshakeAndChat(t *testing.T) {
	_, wsURL, registry := startServer(t)

	ids := &memStore{}
	logger := zerolog.Nop()
	ctrl := NewController(wsURL, "", ids, &logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx, input)
	}()

	// The fresh client acquires an identity and registers.
	waitFor(t, "identity assignment", func() bool { return ids.ok })
	if ids.cid != 1 {
		t.Fatalf("expected first issued cid 1, got %d", ids.cid)
	}
	waitFor(t, "registration", func() bool { return registry.Len() == 1 })

	// A submitted line comes back server-acked, replacing the optimistic entry.
	input <- "hello"
	waitFor(t, "acked echo", func() bool {
		for _, f := range ctrl.Ledger().Transcript() {
			if f.Text == "hello" && f.SrvAck {
				return true
			}
		}
		return false
	})
	if ctrl.Ledger().Pending() != 0 {
		t.Fatalf("optimistic entry survived the echo")
	}
	for _, f := range ctrl.Ledger().Transcript() {
		if f.Text == "hello" && !f.SrvAck {
			t.Fatalf("optimistic duplicate alongside the echo")
		}
	}

	cancel()
	<-done
}

func TestControllerReconnectsWithSameIdentity(t *testing.T) {
	ts, wsURL, registry := startServer(t)

	ids := &memStore{}
	logger := zerolog.Nop()
	ctrl := NewController(wsURL, "", ids, &logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan string)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.Run(ctx, input)
	}()

	waitFor(t, "identity assignment", func() bool { return ids.ok })
	waitFor(t, "registration", func() bool { return registry.Len() == 1 })

	// Drop the socket out from under the client; it must come back under
	// the same identity without a fresh assignment.
	ts.CloseClientConnections()
	waitFor(t, "deregistration", func() bool { return registry.Len() == 0 })
	waitFor(t, "re-registration", func() bool { return registry.Len() == 1 })

	if ids.saves != 1 {
		t.Fatalf("resume must not reissue an identity (saves=%d)", ids.saves)
	}

	if ids.cid != 1 {
		t.Fatalf("identity changed across reconnect: %d", ids.cid)
	}

	cancel()
	<-done
}

func TestControllerStopsWhenInputCloses(t *testing.T) {
	_, wsURL, _ := startServer(t)

	ids := &memStore{}
	logger := zerolog.Nop()
	ctrl := NewController(wsURL, "", ids, &logger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := make(chan string)
	done := make(chan error, 1)
	go func() {
		done <- ctrl.Run(ctx, input)
	}()

	waitFor(t, "identity assignment", func() bool { return ids.ok })
	close(input)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error on closed input: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("controller did not stop after input closed")
	}
}
