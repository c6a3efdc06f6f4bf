package app

import (
	"math"
	"time"

	"slidecast/internal/domain"
)

// The countdown is a single schedulable task per session. Arming replaces any
// running countdown; termination happens through exactly one of two triggers
// (deadline elapsed, all connected players answered), both funneling into
// settleLocked.

// armCountdownLocked computes the absolute deadline, clears stale answers and
// starts the periodic tick.
func (s *Session) armCountdownLocked(seconds int) {
	s.stopCountdownLocked()

	s.answers = make(map[string]domain.Answer, len(s.players))
	s.timerEnd = s.clock.Now().Add(time.Duration(seconds) * time.Second)
	s.armedLimit = seconds
	s.questionActive = true
	s.revealAnswer = false

	stop := make(chan struct{})
	s.stopTick = stop
	ticker := s.clock.NewTicker(s.opts.Tick)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				if s.tick() {
					return
				}
			}
		}
	}()

	s.log.Debug().Int("seconds", seconds).Msg("countdown armed")
}

// tick broadcasts the remaining whole seconds and settles once the deadline
// has elapsed. It reports true when the ticker goroutine should exit.
func (s *Session) tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.questionActive {
		return true
	}
	remaining := s.timerEnd.Sub(s.clock.Now())
	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 0 {
		secs = 0
	}
	s.out.Broadcast(EventTimerUpdate, TimerUpdate{Remaining: secs})

	if remaining <= 0 {
		s.settleLocked()
		return true
	}
	return false
}

// stopCountdownLocked cancels the tick goroutine. Safe to call when no
// countdown is running.
func (s *Session) stopCountdownLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}
