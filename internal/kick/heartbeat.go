package kick

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeat sends an application-level liveness probe on a fixed schedule
// while the transport is open. The probe is a no-op when the transport is
// not open at send time; only the interval schedule governs pacing, a peer
// pong never resets the timer.
type heartbeat struct {
	logger *slog.Logger
	send   func() error // Probe sender; returns errNotOpen to skip silently

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

func newHeartbeat(send func() error, logger *slog.Logger) *heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &heartbeat{
		logger: logger,
		send:   send,
	}
}

// Start begins probing every interval. Idempotent: calling Start while
// already running does not create a second timer. A non-positive interval
// disables the heartbeat.
func (h *heartbeat) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}
	h.running = true
	h.stop = make(chan struct{})

	go h.loop(interval, h.stop)
}

// Stop cancels the pending timer. Safe to call when not running.
func (h *heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	h.running = false
	close(h.stop)
}

func (h *heartbeat) loop(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := h.send(); err != nil {
				h.logger.Debug("heartbeat probe skipped", "reason", err)
			}
		}
	}
}
