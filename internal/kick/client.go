package kick

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kicklab/kickchat/internal/emitter"
	"github.com/kicklab/kickchat/internal/model"
	"github.com/kicklab/kickchat/internal/protocol"
	"github.com/kicklab/kickchat/internal/resolver"
	"github.com/kicklab/kickchat/internal/socket"
)

// reconnectDialTimeout bounds resolution plus handshake for attempts fired
// by the backoff scheduler, which have no caller-supplied context.
const reconnectDialTimeout = 30 * time.Second

var errNotOpen = errors.New("transport not open")

// Stats is a snapshot of client counters.
type Stats struct {
	FramesReceived   int64
	EventsDispatched int64
	DecodeErrors     int64
	UnknownFrames    int64
	Reconnects       int64
}

// Client maintains a long-lived chat session for one channel: it resolves
// the chatroom id, opens and subscribes the WebSocket, decodes frames into
// typed events for subscribers, heartbeats the connection, and re-establishes
// the session with exponential backoff after unexpected closes.
//
// A Client owns its listener registry, so multiple independent clients never
// share subscribers. Disconnect is terminal; a new Client is needed to
// rejoin a channel afterwards.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	resolver resolver.Resolver
	events   *emitter.Registry

	heartbeat *heartbeat
	reconnect *reconnectScheduler

	// connectMu serializes connection attempts so overlapping Connect
	// calls cannot race resolution against each other.
	connectMu sync.Mutex

	mu      sync.Mutex
	state   ConnectionState
	sock    socket.Socket
	quit    chan struct{} // Stops the read pump of the current connection
	channel *model.Channel
	closed  bool // Explicit disconnect; suppresses all future reconnects

	statsMu sync.Mutex
	stats   Stats
}

// New creates a client for one channel. A nil res falls back to the HTTP
// channels API resolver.
func New(cfg Config, res resolver.Resolver, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("channel", cfg.Channel)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, &ClientError{
			Kind:    ErrKindValidation,
			Message: "invalid configuration",
			Cause:   err,
			Channel: cfg.Channel,
		}
	}

	if res == nil {
		res = resolver.NewHTTP("", resolver.WithLogger(logger))
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		resolver: res,
		events:   emitter.New(logger),
		state:    StateDisconnected,
	}
	c.heartbeat = newHeartbeat(c.sendPing, logger)
	c.reconnect = newReconnectScheduler(cfg, logger)

	return c, nil
}

// Connect resolves the channel, opens the transport, and subscribes to the
// chatroom. It is idempotent: when the transport is already open it returns
// immediately. On success the reconnect counter resets, the heartbeat
// starts, and a "ready" event fires with the channel identity.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	return c.connect(ctx)
}

// connect runs one connection attempt. Callers hold connectMu.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.connectError("client is disconnected", nil)
	}
	if c.sock != nil && c.sock.IsOpen() {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting)

	chatroomID, err := c.resolver.Resolve(ctx, c.cfg.Channel)
	if err != nil {
		return c.failConnect("resolve channel", err)
	}

	sockCfg := socket.DefaultConfig()
	sockCfg.URL = c.cfg.endpoint()
	sockCfg.Header = c.cfg.Header
	sockCfg.BufferSize = DefaultSocketBufferSize

	s := socket.New(sockCfg, c.logger)
	if err := s.Connect(ctx); err != nil {
		return c.failConnect("open transport", err)
	}

	frame, err := protocol.SubscribeFrame(chatroomID)
	if err == nil {
		err = s.Send(frame)
	}
	if err != nil {
		s.Close()
		return c.failConnect("send subscribe frame", err)
	}

	quit := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		// Disconnected mid-handshake; tear the fresh socket down.
		c.mu.Unlock()
		s.Close()
		return c.connectError("client is disconnected", nil)
	}
	c.sock = s
	c.quit = quit
	c.channel = &model.Channel{Name: c.cfg.Channel, ChatroomID: chatroomID}
	c.mu.Unlock()

	c.setState(StateConnected)

	// The state-change callback may call Disconnect. Re-check under c.mu
	// before arming timers so terminal teardown is never followed by a
	// live heartbeat.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.Close()
		return c.connectError("client is disconnected", nil)
	}
	c.reconnect.Reset()
	c.heartbeat.Start(c.cfg.HeartbeatInterval)
	c.mu.Unlock()

	go c.readPump(s, quit)

	c.logger.Info("connected",
		"chatroom_id", chatroomID,
		"heartbeat", c.cfg.HeartbeatInterval,
	)

	c.events.Emit(EventReady, &model.Channel{Name: c.cfg.Channel, ChatroomID: chatroomID})

	return nil
}

// failConnect reports a failed connection attempt and moves to StateError.
func (c *Client) failConnect(op string, cause error) error {
	e := c.connectError(op+" failed", cause)
	c.setState(StateError)
	c.reportError(e)
	return e
}

func (c *Client) connectError(msg string, cause error) *ClientError {
	return &ClientError{
		Kind:    ErrKindConnection,
		Message: msg,
		Cause:   cause,
		Channel: c.cfg.Channel,
		State:   c.State(),
	}
}

// Disconnect is the single point of terminal teardown: it suppresses any
// future auto-reconnect, cancels pending reconnection and heartbeat timers,
// closes the transport, clears the channel identity, and removes every
// subscription. Safe to call repeatedly, and safe to call from inside an
// event handler.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	s := c.sock
	quit := c.quit
	c.sock = nil
	c.quit = nil
	c.channel = nil
	c.mu.Unlock()

	c.reconnect.Cancel()
	c.heartbeat.Stop()

	if quit != nil {
		close(quit)
	}
	if s != nil {
		s.Close()
	}

	c.setState(StateDisconnected)
	c.events.RemoveAll()

	c.logger.Info("disconnected")
}

// IsConnected reports whether a transport handle exists and is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil && c.sock.IsOpen()
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Channel returns the resolved channel identity. ok is false unless the
// client is connected.
func (c *Client) Channel() (model.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return model.Channel{}, false
	}
	return *c.channel, true
}

// Stats returns a snapshot of client counters.
func (c *Client) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// On registers a persistent handler for an event name.
func (c *Client) On(event string, fn emitter.Handler) emitter.Token {
	return c.events.On(event, fn)
}

// Once registers a handler removed after its first invocation.
func (c *Client) Once(event string, fn emitter.Handler) emitter.Token {
	return c.events.Once(event, fn)
}

// Off removes one registration.
func (c *Client) Off(event string, token emitter.Token) bool {
	return c.events.Off(event, token)
}

// RemoveAllListeners clears the named events, or everything when called
// with no arguments.
func (c *Client) RemoveAllListeners(events ...string) {
	c.events.RemoveAll(events...)
}

// sendPing is the heartbeat probe. Skips without error noise when the
// transport is not open at send time.
func (c *Client) sendPing() error {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()

	if s == nil || !s.IsOpen() {
		return errNotOpen
	}

	c.logger.Debug("heartbeat ping sent")
	return s.Send(protocol.PingFrame())
}

// readPump drives one connection: frames are processed one at a time in
// arrival order until the transport fails or the client tears down.
func (c *Client) readPump(s socket.Socket, quit chan struct{}) {
	for {
		select {
		case <-quit:
			return

		case err := <-s.Errors():
			c.handleTransportFailure(s, err)
			return

		case f := <-s.Frames():
			c.handleFrame(s, f.Data)
		}
	}
}

// handleTransportFailure runs cleanup and reconnect scheduling after the
// transport closes or errors. Failures from a superseded socket are ignored.
func (c *Client) handleTransportFailure(s socket.Socket, err error) {
	c.mu.Lock()
	if c.closed || c.sock != s {
		c.mu.Unlock()
		return
	}
	c.sock = nil
	c.quit = nil
	c.channel = nil
	c.mu.Unlock()

	c.heartbeat.Stop()
	s.Close()

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		// Peer-initiated close.
		c.logger.Warn("connection closed by peer", "code", closeErr.Code)
		c.setState(StateDisconnected)
		c.events.Emit(EventDisconnect, nil)
	} else {
		c.logger.Warn("transport error", "error", err)
		c.setState(StateError)
		c.reportError(&ClientError{
			Kind:    ErrKindWebsocket,
			Message: "transport error",
			Cause:   err,
			Channel: c.cfg.Channel,
			State:   StateError,
		})
	}

	c.scheduleReconnect()
}

// scheduleReconnect asks the scheduler for the next attempt. The
// reconnecting state is reported before the timer is armed, so the fired
// attempt's own transitions can never be observed ahead of it. When the
// scheduler refuses (cap reached, auto-reconnect off, or disconnected) the
// client settles in StateDisconnected with no further automatic attempts.
func (c *Client) scheduleReconnect() {
	delay, ok := c.reconnect.reserve()
	if !ok {
		c.setState(StateDisconnected)
		return
	}
	c.setState(StateReconnecting)
	c.reconnect.arm(delay, c.retryConnect)
}

// retryConnect is the scheduler's onFire: one attempt, then recursive
// backoff when the attempt itself fails.
func (c *Client) retryConnect() {
	c.statsMu.Lock()
	c.stats.Reconnects++
	c.statsMu.Unlock()

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectDialTimeout)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Warn("reconnect attempt failed",
			"attempt", c.reconnect.Attempts(),
			"error", err,
		)
		c.scheduleReconnect()
	}
}

// handleFrame decodes and routes one frame. Decode failures are logged at
// error level and never tear down the connection.
func (c *Client) handleFrame(s socket.Socket, data []byte) {
	c.statsMu.Lock()
	c.stats.FramesReceived++
	c.statsMu.Unlock()

	ev, err := protocol.Decode(data)
	if err != nil {
		c.statsMu.Lock()
		c.stats.DecodeErrors++
		c.statsMu.Unlock()
		c.logger.Error("frame decode failed", "error", err)
		return
	}

	if ev.Kind.IsApplication() {
		c.dispatch(ev)
		return
	}

	switch ev.Kind {
	case protocol.KindConnectionEstablished:
		if est, ok := ev.Payload.(*protocol.ConnectionEstablished); ok {
			c.logger.Info("connection established",
				"socket_id", est.SocketID,
				"activity_timeout", est.ActivityTimeout,
			)
		}

	case protocol.KindSubscriptionSucceeded:
		c.logger.Info("chatroom subscription confirmed")

	case protocol.KindPing:
		// The server probes us; answer immediately.
		if err := s.Send(protocol.PongFrame()); err != nil {
			c.logger.Debug("pong reply failed", "error", err)
		}

	case protocol.KindPong:
		// Logged only; the heartbeat schedule is not reset by pongs.
		c.logger.Debug("heartbeat pong received")

	case protocol.KindPusherError:
		pe, _ := ev.Payload.(*protocol.PusherError)
		e := &ClientError{
			Kind:    ErrKindWebsocket,
			Message: "protocol error",
			Channel: c.cfg.Channel,
			State:   c.State(),
		}
		if pe != nil {
			e.Message = pe.Message
		}
		c.reportError(e)

	case protocol.KindUnknown:
		c.statsMu.Lock()
		c.stats.UnknownFrames++
		c.statsMu.Unlock()
		c.logger.Debug("unrecognized event tag", "tag", ev.Tag)
	}
}

// dispatch emits one application event, rewriting emote markup first when
// plain-emote mode is on.
func (c *Client) dispatch(ev protocol.DecodedEvent) {
	if c.cfg.PlainEmote {
		switch p := ev.Payload.(type) {
		case *model.ChatMessage:
			p.Content = protocol.RewriteEmotes(p.Content)
		case *model.PinnedMessage:
			p.Message.Content = protocol.RewriteEmotes(p.Message.Content)
		}
	}

	c.statsMu.Lock()
	c.stats.EventsDispatched++
	c.statsMu.Unlock()

	c.events.Emit(ev.Kind.String(), ev.Payload)
}

// reportError delivers an error through both the dedicated callback and the
// event surface.
func (c *Client) reportError(e *ClientError) {
	if cb := c.cfg.OnError; cb != nil {
		cb(e)
	}
	c.events.Emit(EventError, e)
}

// setState records a transition and notifies the state-change callback.
// After terminal teardown the only reportable state is disconnected.
// Callers must not hold c.mu.
func (c *Client) setState(next ConnectionState) {
	c.mu.Lock()
	prev := c.state
	if prev == next || (c.closed && next != StateDisconnected) {
		c.mu.Unlock()
		return
	}
	c.state = next
	cb := c.cfg.OnStateChange
	c.mu.Unlock()

	c.logger.Debug("connection state changed", "from", prev, "to", next)
	if cb != nil {
		cb(prev, next)
	}
}
