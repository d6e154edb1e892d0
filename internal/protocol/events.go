package protocol

// EventKind classifies every frame the chat feed can receive.
type EventKind int

const (
	// KindUnknown covers event tags outside the table below. New server-side
	// event types decode to this kind instead of failing.
	KindUnknown EventKind = iota

	// Application kinds
	KindChatMessage
	KindSubscription
	KindGiftedSubscriptions
	KindStreamHost
	KindMessageDeleted
	KindUserBanned
	KindUserUnbanned
	KindPinnedMessageCreated
	KindPinnedMessageDeleted
	KindPollUpdate
	KindPollDelete

	// Protocol-housekeeping kinds
	KindConnectionEstablished
	KindSubscriptionSucceeded
	KindPing
	KindPong
	KindPusherError
)

// Event tags as they appear on the wire.
const (
	TagChatMessage          = `App\Events\ChatMessageEvent`
	TagSubscription         = `App\Events\SubscriptionEvent`
	TagGiftedSubscriptions  = `App\Events\GiftedSubscriptionsEvent`
	TagStreamHost           = `App\Events\StreamHostEvent`
	TagMessageDeleted       = `App\Events\MessageDeletedEvent`
	TagUserBanned           = `App\Events\UserBannedEvent`
	TagUserUnbanned         = `App\Events\UserUnbannedEvent`
	TagPinnedMessageCreated = `App\Events\PinnedMessageCreatedEvent`
	TagPinnedMessageDeleted = `App\Events\PinnedMessageDeletedEvent`
	TagPollUpdate           = `App\Events\PollUpdateEvent`
	TagPollDelete           = `App\Events\PollDeleteEvent`

	TagConnectionEstablished = "pusher:connection_established"
	TagSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	TagPing                  = "pusher:ping"
	TagPong                  = "pusher:pong"
	TagError                 = "pusher:error"

	TagSubscribe = "pusher:subscribe"
)

// tagToKind is the fixed mapping from wire tags to kinds.
var tagToKind = map[string]EventKind{
	TagChatMessage:           KindChatMessage,
	TagSubscription:          KindSubscription,
	TagGiftedSubscriptions:   KindGiftedSubscriptions,
	TagStreamHost:            KindStreamHost,
	TagMessageDeleted:        KindMessageDeleted,
	TagUserBanned:            KindUserBanned,
	TagUserUnbanned:          KindUserUnbanned,
	TagPinnedMessageCreated:  KindPinnedMessageCreated,
	TagPinnedMessageDeleted:  KindPinnedMessageDeleted,
	TagPollUpdate:            KindPollUpdate,
	TagPollDelete:            KindPollDelete,
	TagConnectionEstablished: KindConnectionEstablished,
	TagSubscriptionSucceeded: KindSubscriptionSucceeded,
	TagPing:                  KindPing,
	TagPong:                  KindPong,
	TagError:                 KindPusherError,
}

// KindForTag returns the kind mapped to a wire tag, or KindUnknown.
func KindForTag(tag string) EventKind {
	if kind, ok := tagToKind[tag]; ok {
		return kind
	}
	return KindUnknown
}

// String returns the name used on the client event surface.
func (k EventKind) String() string {
	switch k {
	case KindChatMessage:
		return "ChatMessage"
	case KindSubscription:
		return "Subscription"
	case KindGiftedSubscriptions:
		return "GiftedSubscriptions"
	case KindStreamHost:
		return "StreamHost"
	case KindMessageDeleted:
		return "MessageDeleted"
	case KindUserBanned:
		return "UserBanned"
	case KindUserUnbanned:
		return "UserUnbanned"
	case KindPinnedMessageCreated:
		return "PinnedMessageCreated"
	case KindPinnedMessageDeleted:
		return "PinnedMessageDeleted"
	case KindPollUpdate:
		return "PollUpdate"
	case KindPollDelete:
		return "PollDelete"
	case KindConnectionEstablished:
		return "ConnectionEstablished"
	case KindSubscriptionSucceeded:
		return "SubscriptionSucceeded"
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindPusherError:
		return "PusherError"
	default:
		return "Unknown"
	}
}

// IsApplication reports whether the kind is dispatched to chat subscribers,
// as opposed to protocol housekeeping handled inside the client.
func (k EventKind) IsApplication() bool {
	switch k {
	case KindChatMessage, KindSubscription, KindGiftedSubscriptions,
		KindStreamHost, KindMessageDeleted, KindUserBanned, KindUserUnbanned,
		KindPinnedMessageCreated, KindPinnedMessageDeleted,
		KindPollUpdate, KindPollDelete:
		return true
	}
	return false
}
