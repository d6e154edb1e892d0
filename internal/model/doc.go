// Package model defines the domain types shared across the client:
// chat messages, subscription and moderation announcements, polls, and
// the resolved channel identity.
package model
