package kick

// Lifecycle event names on the client event surface.
const (
	// EventReady fires on successful connect with the *model.Channel
	// identity as payload.
	EventReady = "ready"

	// EventDisconnect fires when the transport closes unexpectedly.
	EventDisconnect = "disconnect"

	// EventError fires with a *ClientError payload.
	EventError = "error"
)

// Application event names, one per decoded event kind. Payloads are
// pointers to the corresponding internal/model types.
const (
	EventChatMessage          = "ChatMessage"
	EventSubscription         = "Subscription"
	EventGiftedSubscriptions  = "GiftedSubscriptions"
	EventStreamHost           = "StreamHost"
	EventMessageDeleted       = "MessageDeleted"
	EventUserBanned           = "UserBanned"
	EventUserUnbanned         = "UserUnbanned"
	EventPinnedMessageCreated = "PinnedMessageCreated"
	EventPinnedMessageDeleted = "PinnedMessageDeleted"
	EventPollUpdate           = "PollUpdate"
	EventPollDelete           = "PollDelete"
)
