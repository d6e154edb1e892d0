package kick

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kicklab/kickchat/internal/model"
	"github.com/kicklab/kickchat/internal/resolver"
)

const establishedFrame = `{"event":"pusher:connection_established","data":"{\"socket_id\":\"1234.5678\",\"activity_timeout\":120}"}`
const succeededFrame = `{"event":"pusher_internal:subscription_succeeded","data":"{}"}`

// mockChatServer runs a WebSocket server speaking enough of the pub/sub
// protocol for the client handshake: it announces the connection, consumes
// the subscribe frame, confirms the subscription, then hands the connection
// to the per-test script.
func mockChatServer(t *testing.T, script func(id int32, conn *websocket.Conn, subscribed string)) (*httptest.Server, *atomic.Int32) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		id := conns.Add(1)

		conn.WriteMessage(websocket.TextMessage, []byte(establishedFrame))

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub struct {
			Event string `json:"event"`
			Data  struct {
				Auth    string `json:"auth"`
				Channel string `json:"channel"`
			} `json:"data"`
		}
		if err := json.Unmarshal(frame, &sub); err != nil || sub.Event != "pusher:subscribe" {
			t.Errorf("first frame = %s, want pusher:subscribe envelope", frame)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(succeededFrame))

		script(id, conn, sub.Data.Channel)
	}))

	return server, &conns
}

func chatWSURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// blockUntilClosed keeps the server side open until the client goes away.
func blockUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func staticResolver(id int64) resolver.Resolver {
	return resolver.Func(func(ctx context.Context, channel string) (int64, error) {
		return id, nil
	})
}

func testConfig(wsURL string) Config {
	cfg := DefaultConfig()
	cfg.Channel = "somechannel"
	cfg.WSURL = wsURL
	cfg.HeartbeatInterval = 0
	cfg.ReconnectInterval = 20 * time.Millisecond
	cfg.MaxReconnectInterval = 40 * time.Millisecond
	return cfg
}

func TestClient_ConnectReady(t *testing.T) {
	subscribedCh := make(chan string, 1)
	server, conns := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		subscribedCh <- subscribed
		blockUntilClosed(conn)
	})
	defer server.Close()

	c, err := New(testConfig(chatWSURL(server)), staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	readyCh := make(chan *model.Channel, 1)
	c.On(EventReady, func(p any) {
		if ch, ok := p.(*model.Channel); ok {
			readyCh <- ch
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !c.IsConnected() {
		t.Error("IsConnected = false after Connect")
	}
	if c.State() != StateConnected {
		t.Errorf("State = %s, want connected", c.State())
	}

	ch, ok := c.Channel()
	if !ok || ch.Name != "somechannel" || ch.ChatroomID != 12345 {
		t.Errorf("Channel = %+v (ok=%v), want somechannel/12345", ch, ok)
	}

	select {
	case got := <-subscribedCh:
		if got != "chatrooms.12345.v2" {
			t.Errorf("subscribe channel = %q, want chatrooms.12345.v2", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the subscribe frame")
	}

	select {
	case ch := <-readyCh:
		if ch.ChatroomID != 12345 {
			t.Errorf("ready payload chatroom = %d, want 12345", ch.ChatroomID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ready event never fired")
	}

	if n := conns.Load(); n != 1 {
		t.Errorf("server connections = %d, want 1", n)
	}
}

func TestClient_ConnectIdempotent(t *testing.T) {
	server, conns := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		blockUntilClosed(conn)
	})
	defer server.Close()

	c, err := New(testConfig(chatWSURL(server)), staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("first Connect failed: %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect failed: %v", err)
	}

	if n := conns.Load(); n != 1 {
		t.Errorf("server connections = %d, want 1 (no duplicate socket)", n)
	}
}

func TestClient_ResolutionFailure(t *testing.T) {
	cfg := testConfig("ws://127.0.0.1:1")
	failing := resolver.Func(func(ctx context.Context, channel string) (int64, error) {
		return 0, errors.New("lookup blew up")
	})

	c, err := New(cfg, failing, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	err = c.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect succeeded with failing resolver")
	}

	var cerr *ClientError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ClientError", err)
	}
	if cerr.Kind != ErrKindConnection {
		t.Errorf("Kind = %s, want connection", cerr.Kind)
	}
	if cerr.Channel != "somechannel" {
		t.Errorf("Channel = %q, want somechannel", cerr.Channel)
	}
	if c.State() != StateError {
		t.Errorf("State = %s, want error", c.State())
	}
}

func TestClient_ChatMessagePlainEmote(t *testing.T) {
	const chatFrame = `{"event":"App\\Events\\ChatMessageEvent","data":"{\"id\":\"b2b5c87e-635c-4b3c-8b6e-56f0c3d0a8a1\",\"chatroom_id\":12345,\"content\":\"hi [emote:5:Kappa]\",\"type\":\"message\",\"sender\":{\"id\":7,\"username\":\"viewer\",\"slug\":\"viewer\"}}"}`

	server, _ := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		conn.WriteMessage(websocket.TextMessage, []byte(chatFrame))
		blockUntilClosed(conn)
	})
	defer server.Close()

	cfg := testConfig(chatWSURL(server))
	cfg.PlainEmote = true

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	msgCh := make(chan *model.ChatMessage, 1)
	c.On(EventChatMessage, func(p any) {
		if msg, ok := p.(*model.ChatMessage); ok {
			msgCh <- msg
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case msg := <-msgCh:
		if msg.Content != "hi Kappa" {
			t.Errorf("Content = %q, want %q", msg.Content, "hi Kappa")
		}
		if msg.Sender.Username != "viewer" {
			t.Errorf("Sender = %q, want viewer", msg.Sender.Username)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat message never dispatched")
	}
}

func TestClient_UnexpectedCloseReconnects(t *testing.T) {
	server, conns := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		if id == 1 {
			conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restarting"),
			)
			return
		}
		blockUntilClosed(conn)
	})
	defer server.Close()

	var sawReconnecting atomic.Bool
	cfg := testConfig(chatWSURL(server))
	cfg.OnStateChange = func(old, new ConnectionState) {
		if new == StateReconnecting {
			sawReconnecting.Store(true)
		}
	}

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	disconnected := make(chan struct{}, 1)
	c.On(EventDisconnect, func(any) {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect event never fired")
	}

	deadline := time.After(2 * time.Second)
	for conns.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("no reconnection attempt, connections = %d", conns.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if !sawReconnecting.Load() {
		t.Error("state never passed through reconnecting")
	}
}

func TestClient_DisconnectCancelsReconnect(t *testing.T) {
	server, conns := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		)
	})
	defer server.Close()

	cfg := testConfig(chatWSURL(server))
	cfg.ReconnectInterval = 100 * time.Millisecond
	cfg.MaxReconnectInterval = 100 * time.Millisecond

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan struct{})
	c.On(EventDisconnect, func(any) {
		// Disconnecting from inside a handler must be safe and must beat
		// the pending backoff timer.
		c.Disconnect()
		close(done)
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect event never fired")
	}

	time.Sleep(300 * time.Millisecond)
	if n := conns.Load(); n != 1 {
		t.Errorf("connections = %d after explicit disconnect, want 1", n)
	}
	if c.State() != StateDisconnected {
		t.Errorf("State = %s, want disconnected", c.State())
	}
}

func TestClient_DisconnectIsTerminal(t *testing.T) {
	server, _ := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		blockUntilClosed(conn)
	})
	defer server.Close()

	c, err := New(testConfig(chatWSURL(server)), staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.On(EventChatMessage, func(any) {})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	c.Disconnect()
	c.Disconnect() // Safe to repeat

	if c.IsConnected() {
		t.Error("IsConnected = true after Disconnect")
	}
	if _, ok := c.Channel(); ok {
		t.Error("Channel still set after Disconnect")
	}
	if got := c.events.Count(EventChatMessage); got != 0 {
		t.Errorf("subscriptions remaining = %d, want 0", got)
	}

	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded after terminal Disconnect")
	}
}

func TestClient_DisconnectFromStateChange(t *testing.T) {
	server, conns := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		blockUntilClosed(conn)
	})
	defer server.Close()

	cfg := testConfig(chatWSURL(server))
	cfg.HeartbeatInterval = 20 * time.Millisecond

	var c *Client
	cfg.OnStateChange = func(old, new ConnectionState) {
		// Tearing down from inside the callback must leave no timers
		// behind.
		if new == StateConnected {
			c.Disconnect()
		}
	}

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect succeeded despite teardown from the state callback")
	}

	if c.IsConnected() {
		t.Error("IsConnected = true after Disconnect")
	}
	if c.State() != StateDisconnected {
		t.Errorf("State = %s, want disconnected", c.State())
	}

	time.Sleep(60 * time.Millisecond)
	c.heartbeat.mu.Lock()
	running := c.heartbeat.running
	c.heartbeat.mu.Unlock()
	if running {
		t.Error("heartbeat still running after terminal Disconnect")
	}

	if n := conns.Load(); n != 1 {
		t.Errorf("connections = %d, want 1", n)
	}
}

func TestClient_ReconnectingPrecedesRetry(t *testing.T) {
	server, conns := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		if id == 1 {
			conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			)
			return
		}
		blockUntilClosed(conn)
	})
	defer server.Close()

	var mu sync.Mutex
	var transitions []ConnectionState

	cfg := testConfig(chatWSURL(server))
	cfg.ReconnectInterval = time.Millisecond
	cfg.MaxReconnectInterval = time.Millisecond
	cfg.OnStateChange = func(old, new ConnectionState) {
		mu.Lock()
		transitions = append(transitions, new)
		mu.Unlock()
	}

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for conns.Load() < 2 || c.State() != StateConnected {
		select {
		case <-deadline:
			t.Fatalf("no reconnection, connections = %d", conns.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The backoff wait must be reported before the retry's own
	// connecting transition, even with a near-zero delay.
	mu.Lock()
	defer mu.Unlock()
	reconnecting, connectingSeen, secondConnecting := -1, 0, -1
	for i, st := range transitions {
		switch st {
		case StateReconnecting:
			if reconnecting == -1 {
				reconnecting = i
			}
		case StateConnecting:
			connectingSeen++
			if connectingSeen == 2 {
				secondConnecting = i
			}
		}
	}
	if reconnecting == -1 {
		t.Fatalf("no reconnecting transition observed: %v", transitions)
	}
	if secondConnecting != -1 && secondConnecting < reconnecting {
		t.Errorf("retry reported before reconnecting state: %v", transitions)
	}
}

func TestClient_ServerPingGetsPong(t *testing.T) {
	pongCh := make(chan string, 1)
	server, _ := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"pusher:ping","data":"{}"}`))
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env struct {
				Event string `json:"event"`
			}
			if json.Unmarshal(frame, &env) == nil && env.Event == "pusher:pong" {
				select {
				case pongCh <- env.Event:
				default:
				}
			}
		}
	})
	defer server.Close()

	c, err := New(testConfig(chatWSURL(server)), staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case <-pongCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received pong reply")
	}
}

func TestClient_HeartbeatSendsPings(t *testing.T) {
	pingCh := make(chan struct{}, 8)
	server, _ := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env struct {
				Event string `json:"event"`
			}
			if json.Unmarshal(frame, &env) == nil && env.Event == "pusher:ping" {
				select {
				case pingCh <- struct{}{}:
				default:
				}
			}
		}
	})
	defer server.Close()

	cfg := testConfig(chatWSURL(server))
	cfg.HeartbeatInterval = 20 * time.Millisecond

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case <-pingCh:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat ping observed")
	}
}

func TestClient_DecodeFailureKeepsConnection(t *testing.T) {
	const chatFrame = `{"event":"App\\Events\\ChatMessageEvent","data":"{\"id\":\"b2b5c87e-635c-4b3c-8b6e-56f0c3d0a8a1\",\"chatroom_id\":12345,\"content\":\"still here\",\"type\":\"message\",\"sender\":{\"id\":7,\"username\":\"viewer\",\"slug\":\"viewer\"}}"}`

	server, _ := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		conn.WriteMessage(websocket.TextMessage, []byte(`this is not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(chatFrame))
		blockUntilClosed(conn)
	})
	defer server.Close()

	c, err := New(testConfig(chatWSURL(server)), staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	msgCh := make(chan *model.ChatMessage, 1)
	c.On(EventChatMessage, func(p any) {
		if msg, ok := p.(*model.ChatMessage); ok {
			msgCh <- msg
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case msg := <-msgCh:
		if msg.Content != "still here" {
			t.Errorf("Content = %q, want %q", msg.Content, "still here")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message after bad frame never dispatched")
	}

	if c.Stats().DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", c.Stats().DecodeErrors)
	}
	if !c.IsConnected() {
		t.Error("decode failure tore down the connection")
	}
}

func TestClient_PusherErrorSurfaced(t *testing.T) {
	server, _ := mockChatServer(t, func(id int32, conn *websocket.Conn, subscribed string) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"pusher:error","data":{"code":4201,"message":"Pong reply not received"}}`))
		blockUntilClosed(conn)
	})
	defer server.Close()

	errCh := make(chan *ClientError, 1)
	cfg := testConfig(chatWSURL(server))
	cfg.OnError = func(e *ClientError) {
		select {
		case errCh <- e:
		default:
		}
	}

	c, err := New(cfg, staticResolver(12345), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	var mu sync.Mutex
	var emitted *ClientError
	c.On(EventError, func(p any) {
		if e, ok := p.(*ClientError); ok {
			mu.Lock()
			emitted = e
			mu.Unlock()
		}
	})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case e := <-errCh:
		if e.Kind != ErrKindWebsocket {
			t.Errorf("Kind = %s, want websocket", e.Kind)
		}
		if e.Message != "Pong reply not received" {
			t.Errorf("Message = %q, want protocol message", e.Message)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error callback never invoked")
	}

	// Delivered on the event surface too.
	deadline := time.After(time.Second)
	for {
		mu.Lock()
		got := emitted
		mu.Unlock()
		if got != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("error event never emitted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, staticResolver(1), nil)
	if err == nil {
		t.Fatal("New accepted empty channel")
	}

	var cerr *ClientError
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *ClientError", err)
	}
	if cerr.Kind != ErrKindValidation {
		t.Errorf("Kind = %s, want validation", cerr.Kind)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{Channel: "somechannel"}
	cfg.applyDefaults()

	if cfg.MaxReconnectAttempts != 10 {
		t.Errorf("MaxReconnectAttempts = %d, want 10", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectInterval != time.Second {
		t.Errorf("ReconnectInterval = %s, want 1s", cfg.ReconnectInterval)
	}
	if cfg.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %s, want 30s", cfg.MaxReconnectInterval)
	}
	// Zero heartbeat stays zero: disabled.
	if cfg.HeartbeatInterval != 0 {
		t.Errorf("HeartbeatInterval = %s, want 0 (disabled)", cfg.HeartbeatInterval)
	}

	wantURL := "wss://ws-us2.pusher.com/app/32cbd69e4b950bf97679?protocol=7&client=js&version=8.4.0-rc2&flash=false"
	if got := cfg.endpoint(); got != wantURL {
		t.Errorf("endpoint = %s, want %s", got, wantURL)
	}
}
