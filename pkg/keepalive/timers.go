package keepalive

import (
	"time"
)

// timerPhase tracks which of the mutually exclusive timer states the manager
// is in. Exactly one timer mechanism is live per phase.
type timerPhase uint8

const (
	// timerIdle means no timers are running (no tracked connections).
	timerIdle timerPhase = iota
	// timerStartup means the one-shot jitter delay is pending.
	timerStartup
	// timerTicking means the steady sweep ticker is running.
	timerTicking
)

// startTimersLocked starts the probe cycle if it is not already running.
// With a positive StartJitter the first sweep is delayed by a random amount
// in [0, StartJitter) so managers created together do not probe in lockstep.
// Callers must hold m.mu.
func (m *Manager) startTimersLocked() {
	if m.phase != timerIdle {
		return
	}

	if m.cfg.StartJitter <= 0 {
		m.startTickingLocked()
		return
	}

	delay := time.Duration(m.rng.Int63n(int64(m.cfg.StartJitter)))
	m.phase = timerStartup
	m.startupTimer = time.AfterFunc(delay, m.startupElapsed)
	m.logger.Debug("probe cycle scheduled", "delay", delay)
}

// startupElapsed transitions from the jitter delay to steady ticking. If all
// connections were removed while the delay was pending, the stop path has
// already reset the phase and this fires as a no-op.
func (m *Manager) startupElapsed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != timerStartup {
		return
	}
	m.startupTimer = nil
	if len(m.clients) == 0 {
		m.phase = timerIdle
		return
	}
	m.startTickingLocked()
}

// startTickingLocked starts the steady sweep ticker and its loop goroutine.
// Callers must hold m.mu.
func (m *Manager) startTickingLocked() {
	m.phase = timerTicking
	m.ticker = time.NewTicker(m.tick)
	m.tickStop = make(chan struct{})
	m.tickDone = make(chan struct{})
	go m.tickLoop(m.ticker, m.tickStop, m.tickDone)
	m.logger.Debug("probe cycle started", "tick", m.tick, "buckets", m.bucketCount)
}

// tickLoop runs one sweep per tick until stopped. The ticker and channels are
// passed in so a loop from a previous cycle can never act on a newer cycle's
// state.
func (m *Manager) tickLoop(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-stop:
			return
		}
	}
}

// stopTimersLocked cancels whichever timer mechanism is live and returns the
// manager to idle. Safe to call when already idle. Callers must hold m.mu.
func (m *Manager) stopTimersLocked() {
	switch m.phase {
	case timerStartup:
		m.startupTimer.Stop()
		m.startupTimer = nil
	case timerTicking:
		m.ticker.Stop()
		close(m.tickStop)
		m.ticker = nil
		m.tickStop = nil
		m.tickDone = nil
	}
	m.phase = timerIdle
}
