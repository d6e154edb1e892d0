package emitter

import (
	"log/slog"
	"sync"
)

// Handler receives the payload of an emitted event.
type Handler func(payload any)

// Token identifies one registration for later removal. Go functions are not
// comparable, so removal is by token rather than by callback identity.
type Token uint64

// Registry is an in-memory subscription table owned by a single client
// instance. It is safe for concurrent On/Off/Emit.
type Registry struct {
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[string][]*listener
	nextToken Token
}

type listener struct {
	token Token
	fn    Handler
	once  bool
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger,
		listeners: make(map[string][]*listener),
	}
}

// On registers a persistent handler for an event. Handlers are invoked in
// registration order.
func (r *Registry) On(event string, fn Handler) Token {
	return r.add(event, fn, false)
}

// Once registers a handler that is removed before its first invocation, so
// it runs at most one time even under concurrent dispatch.
func (r *Registry) Once(event string, fn Handler) Token {
	return r.add(event, fn, true)
}

func (r *Registry) add(event string, fn Handler, once bool) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextToken++
	r.listeners[event] = append(r.listeners[event], &listener{
		token: r.nextToken,
		fn:    fn,
		once:  once,
	})
	return r.nextToken
}

// Off removes the registration identified by token. It reports whether a
// registration was found.
func (r *Registry) Off(event string, token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ls := r.listeners[event]
	for i, l := range ls {
		if l.token == token {
			r.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			if len(r.listeners[event]) == 0 {
				delete(r.listeners, event)
			}
			return true
		}
	}
	return false
}

// RemoveAll clears the named events, or every event when called with no
// arguments.
func (r *Registry) RemoveAll(events ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(events) == 0 {
		r.listeners = make(map[string][]*listener)
		return
	}
	for _, event := range events {
		delete(r.listeners, event)
	}
}

// Count returns the number of live registrations for an event.
func (r *Registry) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners[event])
}

// Emit invokes every handler registered for the event, in registration
// order, and returns how many were invoked.
//
// The handler list is snapshotted before any handler runs: a handler that
// adds or removes registrations mid-dispatch does not affect the current
// round. Once-handlers are unregistered before invocation. A panicking
// handler is recovered and logged without stopping delivery to the rest.
func (r *Registry) Emit(event string, payload any) int {
	r.mu.Lock()
	ls := r.listeners[event]
	snapshot := make([]*listener, len(ls))
	copy(snapshot, ls)

	// Drop once-listeners before any handler runs.
	kept := ls[:0]
	for _, l := range ls {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(r.listeners, event)
	} else {
		r.listeners[event] = kept
	}
	r.mu.Unlock()

	for _, l := range snapshot {
		r.invoke(event, l, payload)
	}
	return len(snapshot)
}

func (r *Registry) invoke(event string, l *listener, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked",
				"event", event,
				"panic", rec,
			)
		}
	}()
	l.fn(payload)
}
