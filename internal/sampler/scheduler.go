package sampler

import "time"

// Scheduler gates measurement passes to a fixed cadence independent of
// the caller's frame rate.
type Scheduler struct {
	Interval time.Duration
	acc      time.Duration
}

// Tick adds dt to the accumulator and reports whether a measurement pass is
// due. When it fires the accumulator resets to zero rather than carrying
// the remainder.
func (s *Scheduler) Tick(dt time.Duration) bool {
	if dt > 0 {
		s.acc += dt
	}
	if s.acc >= s.Interval {
		s.acc = 0
		return true
	}
	return false
}

// Elapsed is the time accumulated since the last pass.
func (s *Scheduler) Elapsed() time.Duration { return s.acc }
