package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kicklab/kickchat/internal/model"
)

// DecodeError reports a frame that could not be turned into a typed event:
// a malformed envelope, or an inner payload that does not match the shape
// declared by its event tag.
type DecodeError struct {
	Tag string // Event tag, empty when the envelope itself was malformed
	Err error
}

func (e *DecodeError) Error() string {
	if e.Tag == "" {
		return fmt.Sprintf("decode envelope: %v", e.Err)
	}
	return fmt.Sprintf("decode %s payload: %v", e.Tag, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Envelope is the outer wire message. Data is a second, independently
// encoded JSON document; Pusher sends it as a JSON string, but some
// housekeeping frames carry a bare object.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodedEvent is the result of decoding one frame. Payload holds a pointer
// to the kind's model type for application kinds, a housekeeping payload for
// protocol kinds, or nil for kinds with no body.
type DecodedEvent struct {
	Kind    EventKind
	Tag     string // Original wire tag, kept for KindUnknown diagnostics
	Payload any
}

// ConnectionEstablished is the payload of pusher:connection_established.
type ConnectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

// PusherError is the payload of pusher:error.
type PusherError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Decode parses one raw text frame into a typed event.
//
// An unrecognized event tag is not an error: the frame decodes to
// KindUnknown with a nil payload so new server-side events never break the
// connection. A malformed envelope or a payload that does not match its
// declared tag fails with *DecodeError and no partial event is returned.
func Decode(frame []byte) (DecodedEvent, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return DecodedEvent{}, &DecodeError{Err: err}
	}
	if env.Event == "" {
		return DecodedEvent{}, &DecodeError{Err: fmt.Errorf("missing event tag")}
	}

	kind := KindForTag(env.Event)
	ev := DecodedEvent{Kind: kind, Tag: env.Event}

	if kind == KindUnknown {
		return ev, nil
	}

	inner, err := innerPayload(env.Data)
	if err != nil {
		return DecodedEvent{}, &DecodeError{Tag: env.Event, Err: err}
	}

	payload, err := decodePayload(kind, inner)
	if err != nil {
		return DecodedEvent{}, &DecodeError{Tag: env.Event, Err: err}
	}
	ev.Payload = payload
	return ev, nil
}

// innerPayload unwraps the double-encoded data field. A JSON string is
// decoded once to get the embedded document; anything else is used as-is.
func innerPayload(data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("unwrap data string: %w", err)
		}
		return []byte(s), nil
	}
	return data, nil
}

func decodePayload(kind EventKind, inner []byte) (any, error) {
	// Kinds with no payload body.
	switch kind {
	case KindPing, KindPong, KindSubscriptionSucceeded,
		KindPinnedMessageDeleted, KindPollDelete:
		return nil, nil
	}

	if len(inner) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	// A JSON null unmarshals as a no-op and would dispatch a zero-valued
	// payload; a kind that declares a body must carry one.
	if string(bytes.TrimSpace(inner)) == "null" {
		return nil, fmt.Errorf("null payload")
	}

	unmarshal := func(v any) (any, error) {
		if err := json.Unmarshal(inner, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	switch kind {
	case KindChatMessage:
		return unmarshal(&model.ChatMessage{})
	case KindSubscription:
		return unmarshal(&model.Subscription{})
	case KindGiftedSubscriptions:
		return unmarshal(&model.GiftedSubscriptions{})
	case KindStreamHost:
		return unmarshal(&model.StreamHost{})
	case KindMessageDeleted:
		return unmarshal(&model.MessageDeleted{})
	case KindUserBanned:
		return unmarshal(&model.UserBanned{})
	case KindUserUnbanned:
		return unmarshal(&model.UserUnbanned{})
	case KindPinnedMessageCreated:
		return unmarshal(&model.PinnedMessage{})
	case KindPollUpdate:
		return unmarshal(&model.PollUpdate{})
	case KindConnectionEstablished:
		return unmarshal(&ConnectionEstablished{})
	case KindPusherError:
		return unmarshal(&PusherError{})
	}

	return nil, fmt.Errorf("no decoder for kind %s", kind)
}

// SubscribeFrame builds the subscribe envelope sent immediately after the
// transport opens: {"event":"pusher:subscribe","data":{"auth":"","channel":"chatrooms.<id>.v2"}}.
func SubscribeFrame(chatroomID int64) ([]byte, error) {
	frame := struct {
		Event string `json:"event"`
		Data  struct {
			Auth    string `json:"auth"`
			Channel string `json:"channel"`
		} `json:"data"`
	}{Event: TagSubscribe}
	frame.Data.Channel = fmt.Sprintf("chatrooms.%d.v2", chatroomID)

	return json.Marshal(frame)
}

// PingFrame is the application-level liveness probe.
func PingFrame() []byte {
	return []byte(`{"event":"pusher:ping","data":"{}"}`)
}

// PongFrame answers a server-initiated ping.
func PongFrame() []byte {
	return []byte(`{"event":"pusher:pong","data":"{}"}`)
}
