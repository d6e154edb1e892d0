// Package kick implements the connection lifecycle manager for a chat
// client.
//
// The client:
//   - Resolves the channel name to a chatroom id and subscribes over WebSocket
//   - Decodes Pusher envelopes into typed events for registered handlers
//   - Heartbeats the connection while open
//   - Reconnects with capped exponential backoff after unexpected closes
//   - Exposes every state transition and error through callbacks and events
package kick
