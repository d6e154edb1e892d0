package kick

import (
	"log/slog"
	"sync"
	"time"
)

// reconnectScheduler arms exponential-backoff timers for automatic
// reconnection attempts. Delay for attempt n (0-indexed) is
// min(base * 2^n, max). The attempt counter resets on successful open and
// the pending timer is canceled on explicit disconnect.
type reconnectScheduler struct {
	logger      *slog.Logger
	enabled     bool
	base        time.Duration
	max         time.Duration
	maxAttempts int

	mu       sync.Mutex
	attempts int
	timer    *time.Timer
	canceled bool // Sticky; set on explicit disconnect
}

func newReconnectScheduler(cfg Config, logger *slog.Logger) *reconnectScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &reconnectScheduler{
		logger:      logger,
		enabled:     cfg.AutoReconnect,
		base:        cfg.ReconnectInterval,
		max:         cfg.MaxReconnectInterval,
		maxAttempts: cfg.MaxReconnectAttempts,
	}
}

// ScheduleNext reserves the next attempt and arms its timer, reporting
// whether it was scheduled.
func (s *reconnectScheduler) ScheduleNext(onFire func()) bool {
	delay, ok := s.reserve()
	if !ok {
		return false
	}
	s.arm(delay, onFire)
	return true
}

// reserve consumes the next attempt slot and returns its backoff delay.
// Reservation is refused, with a warning, when auto-reconnect is disabled,
// the attempt cap is reached, or the client has been explicitly
// disconnected.
func (s *reconnectScheduler) reserve() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		s.logger.Warn("reconnect refused: auto-reconnect disabled")
		return 0, false
	}
	if s.canceled {
		s.logger.Warn("reconnect refused: client disconnected")
		return 0, false
	}
	if s.attempts >= s.maxAttempts {
		s.logger.Warn("reconnect refused: attempt cap reached",
			"attempts", s.attempts,
			"max", s.maxAttempts,
		)
		return 0, false
	}

	delay := s.delay(s.attempts)
	s.logger.Info("reconnect scheduled",
		"attempt", s.attempts,
		"delay", delay,
	)
	s.attempts++
	return delay, true
}

// arm starts the timer for a reserved attempt. A cancel between reserve
// and arm wins: no timer is created.
func (s *reconnectScheduler) arm(delay time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.canceled {
		return
	}
	s.timer = time.AfterFunc(delay, func() {
		// The client may have disconnected while the timer was pending.
		s.mu.Lock()
		stale := s.canceled
		s.mu.Unlock()
		if stale {
			return
		}
		onFire()
	})
}

// Reset zeroes the attempt counter; called on successful connection open.
func (s *reconnectScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = 0
}

// Cancel clears any pending timer without firing it and permanently refuses
// further scheduling; called on explicit disconnect.
func (s *reconnectScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canceled = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Attempts returns the current attempt count.
func (s *reconnectScheduler) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// delay computes the backoff for a 0-indexed attempt.
func (s *reconnectScheduler) delay(attempt int) time.Duration {
	d := s.base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= s.max {
			return s.max
		}
	}
	if d > s.max {
		return s.max
	}
	return d
}
