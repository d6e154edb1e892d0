// Package emitter implements the per-client event listener registry.
//
// The registry:
//   - Dispatches to handlers in registration order
//   - Supports one-shot handlers removed atomically before invocation
//   - Snapshots the handler list so dispatch tolerates mid-round removal
//   - Recovers panicking handlers without dropping later deliveries
package emitter
