// Package socket wraps a single gorilla/websocket connection behind
// channel-based frame and error delivery. Sockets are single-use; the
// connection lifecycle manager creates a fresh one per attempt.
package socket
