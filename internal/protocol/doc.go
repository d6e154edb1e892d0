// Package protocol implements the Pusher wire protocol used by Kick chat.
//
// The protocol:
//   - Outer envelope {event, data} where data is a second JSON document
//   - Fixed table of event tags mapped to a closed EventKind set
//   - Unrecognized tags decode to KindUnknown (forward compatibility)
//   - Emote markup rewriting for plain-text consumers
package protocol
