// Package resolver maps channel names to numeric chatroom ids.
//
// The connection lifecycle manager depends on the Resolver interface only;
// HTTPResolver is the production implementation backed by the public
// channels REST API, with bounded retry and jittered backoff.
package resolver
