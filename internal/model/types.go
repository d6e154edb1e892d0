package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Chat Types
// -----------------------------------------------------------------------------

// Badge is a chat identity badge (moderator, subscriber, og, ...).
type Badge struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Count int    `json:"count,omitempty"`
}

// Identity carries the display attributes of a message sender.
type Identity struct {
	Color  string  `json:"color"`
	Badges []Badge `json:"badges"`
}

// Sender is the author of a chat message.
type Sender struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Slug     string   `json:"slug"`
	Identity Identity `json:"identity"`
}

// ChatMessage is a single message posted to a chatroom.
type ChatMessage struct {
	ID         uuid.UUID `json:"id"`
	ChatroomID int64     `json:"chatroom_id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"` // "message" or "reply"
	CreatedAt  string    `json:"created_at"`
	Sender     Sender    `json:"sender"`
}

// PinnedMessage wraps a chat message that was pinned to the chatroom.
type PinnedMessage struct {
	Message  ChatMessage `json:"message"`
	Duration string      `json:"duration"` // seconds, string-encoded on the wire
}

// -----------------------------------------------------------------------------
// Subscription Types
// -----------------------------------------------------------------------------

// Subscription is a (re)subscription announcement.
type Subscription struct {
	ChatroomID int64  `json:"chatroom_id"`
	Username   string `json:"username"`
	Months     int    `json:"months"`
}

// GiftedSubscriptions announces subscriptions gifted to other viewers.
type GiftedSubscriptions struct {
	ChatroomID      int64    `json:"chatroom_id"`
	GiftedUsernames []string `json:"gifted_usernames"`
	GifterUsername  string   `json:"gifter_username"`
}

// StreamHost announces another channel hosting this chatroom's stream.
type StreamHost struct {
	ChatroomID      int64  `json:"chatroom_id"`
	HostUsername    string `json:"host_username"`
	NumberOfViewers int    `json:"number_viewers"`
	OptionalMessage string `json:"optional_message"`
}

// -----------------------------------------------------------------------------
// Moderation Types
// -----------------------------------------------------------------------------

// ModeratedUser identifies a user involved in a moderation action.
type ModeratedUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Slug     string `json:"slug"`
}

// DeletedMessageRef points at the message a deletion applies to.
type DeletedMessageRef struct {
	ID uuid.UUID `json:"id"`
}

// MessageDeleted announces removal of a single chat message.
type MessageDeleted struct {
	ID      uuid.UUID         `json:"id"`
	Message DeletedMessageRef `json:"message"`
}

// UserBanned announces a ban or timeout.
type UserBanned struct {
	ID        uuid.UUID     `json:"id"`
	User      ModeratedUser `json:"user"`
	BannedBy  ModeratedUser `json:"banned_by"`
	Permanent bool          `json:"permanent"`
	Duration  int           `json:"duration"` // minutes, 0 when permanent
	ExpiresAt string        `json:"expires_at"`
}

// UserUnbanned announces a ban or timeout being lifted.
type UserUnbanned struct {
	ID         uuid.UUID     `json:"id"`
	User       ModeratedUser `json:"user"`
	UnbannedBy ModeratedUser `json:"unbanned_by"`
	Permanent  bool          `json:"permanent"`
}

// -----------------------------------------------------------------------------
// Poll Types
// -----------------------------------------------------------------------------

// PollOption is a single choice within a chat poll.
type PollOption struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Votes int    `json:"votes"`
}

// Poll is the current state of a chat poll.
type Poll struct {
	Title                 string       `json:"title"`
	Options               []PollOption `json:"options"`
	Duration              int          `json:"duration"`
	Remaining             int          `json:"remaining"`
	ResultDisplayDuration int          `json:"result_display_duration"`
}

// PollUpdate carries a poll creation or vote-count change.
type PollUpdate struct {
	Poll Poll `json:"poll"`
}

// -----------------------------------------------------------------------------
// Channel Types
// -----------------------------------------------------------------------------

// Channel is the identity of a connected chatroom: the human-readable channel
// slug plus the numeric chatroom id resolved from it.
type Channel struct {
	Name       string // Channel slug (e.g., "xqc")
	ChatroomID int64  // Numeric chatroom id used in the subscribe frame
}
