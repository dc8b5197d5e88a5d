package game

import "github.com/playperu/digitduel/internal/digitduel"

// Status snapshots the engine for the admin surface.
func (e *Engine) Status() Status {
	st := Status{
		Names:   e.registry.ListOnlineNames(),
		Waiting: make(map[digitduel.Mode][]string),
		Games:   []RoomStatus{},
	}
	st.Online = len(st.Names)
	for _, m := range e.lobby.Modes() {
		w := e.lobby.Waiting(m)
		if w == nil {
			w = []string{}
		}
		st.Waiting[m] = w
		if ms := e.modes[m]; ms.game != nil {
			st.Games = append(st.Games, ms.game.status(ms.locked))
		}
	}
	return st
}

// Reset cancels every timer and forgets all players, waiting rooms and games.
func (e *Engine) Reset() {
	e.stopTimers()
	for _, ms := range e.modes {
		ms.game = nil
	}
	e.registry.Reset()
	e.lobby.Reset()
	e.logger.Warn("engine state reset")
}

// Shutdown cancels every pending timer and waits for finished matches to be
// recorded.
func (e *Engine) Shutdown() {
	e.stopTimers()
	e.archiving.Wait()
}

func (e *Engine) stopTimers() {
	for _, ms := range e.modes {
		ms.timer.stop()
		ms.lock.stop()
		ms.locked = false
	}
}
