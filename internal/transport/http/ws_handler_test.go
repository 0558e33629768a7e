package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/astercade/chatrelay/internal/config"
	"github.com/astercade/chatrelay/internal/core"
	"github.com/astercade/chatrelay/internal/proto"
)

func startTestServer(t *testing.T) (*httptest.Server, context.CancelFunc) {
	t.Helper()

	logger := zerolog.Nop()
	registry := core.NewRegistry(&logger)
	hub := core.NewHub("test_server", registry, nil, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := NewServer(hub, prometheus.NewRegistry(), config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, cancel
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Frame {
	t.Helper()

	var f proto.Frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func TestHealthEndpoint(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestUsersEndpointReflectsPresence(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	conn := dialWS(t, ctx, ts)
	readFrame(t, ctx, conn) // welcome

	if err := wsjson.Write(ctx, conn, proto.Frame{ClientInit: true}); err != nil {
		t.Fatalf("write clientInit: %v", err)
	}
	readFrame(t, ctx, conn) // cidResponse

	resp, err := ts.Client().Get(ts.URL + "/api/users")
	if err != nil {
		t.Fatalf("users request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var users []core.PublicUser
	if err := json.Unmarshal(body, &users); err != nil {
		t.Fatalf("decode users: %v (%s)", err, body)
	}
	if len(users) != 1 || users[0].Name != "User #1" {
		t.Fatalf("unexpected presence list: %+v", users)
	}
}

func TestWebSocketHandshakeAndChat(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	conn := dialWS(t, ctx, ts)

	welcome := readFrame(t, ctx, conn)
	if !welcome.InitMessage || welcome.Scid == 0 {
		t.Fatalf("expected welcome replay first, got %+v", welcome)
	}

	if err := wsjson.Write(ctx, conn, proto.Frame{ClientInit: true}); err != nil {
		t.Fatalf("write clientInit: %v", err)
	}
	assign := readFrame(t, ctx, conn)
	if !assign.CidResponse || assign.CidOption != 1 {
		t.Fatalf("expected identity assignment, got %+v", assign)
	}

	chat := proto.Frame{Cid: assign.CidOption, Mid: 0, Text: "hi", Type: proto.TypeChat, User: "Player #1"}
	if err := wsjson.Write(ctx, conn, chat); err != nil {
		t.Fatalf("write chat: %v", err)
	}

	echo := readFrame(t, ctx, conn)
	if !echo.SrvAck || echo.SrvAckMid != 0 || echo.Text != "hi" {
		t.Fatalf("expected own chat echo, got %+v", echo)
	}
	if echo.User != "User #1" {
		t.Fatalf("server did not rewrite the display name: %q", echo.User)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	ts, cancel := startTestServer(t)
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCtx()

	conn := dialWS(t, ctx, ts)
	readFrame(t, ctx, conn) // welcome

	if err := conn.Write(ctx, websocket.MessageText, []byte("this is not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	// The connection survives and the handshake still works.
	if err := wsjson.Write(ctx, conn, proto.Frame{ClientInit: true}); err != nil {
		t.Fatalf("write clientInit: %v", err)
	}
	assign := readFrame(t, ctx, conn)
	if !assign.CidResponse {
		t.Fatalf("expected identity assignment after dropped frame, got %+v", assign)
	}
}
