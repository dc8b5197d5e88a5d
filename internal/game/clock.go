package game

import "time"

// Clock is the engine's source of time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// slot is an owned, cancellable timer. Arming a slot always cancels what it
// held before, and a callback that fires after being superseded is dropped
// by comparing generations.
type slot struct {
	gen uint64
	t   Timer
}

func (s *slot) stop() {
	s.gen++
	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
}

// arm schedules fn on the engine loop after d.
func (e *Engine) arm(s *slot, d time.Duration, fn func()) {
	s.stop()
	gen := s.gen
	s.t = e.clock.AfterFunc(d, func() {
		e.post(func() {
			if s.gen != gen {
				return
			}
			s.t = nil
			fn()
		})
	})
}
