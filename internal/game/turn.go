package game

import (
	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/lobby"
)

// Resume moves the turn on unless an advance already happened within the
// grace window.
func (e *Engine) Resume(mode digitduel.Mode) error {
	ms, _, err := e.active(mode)
	if err != nil {
		return err
	}
	if !e.acquire(ms) {
		return ErrTurnLocked
	}
	e.advance(ms, true)
	return nil
}

// acquire takes the turn lock if it is free.
func (e *Engine) acquire(ms *modeState) bool {
	if ms.locked {
		return false
	}
	e.hold(ms)
	return true
}

// hold takes the turn lock unconditionally and schedules its release.
func (e *Engine) hold(ms *modeState) {
	ms.locked = true
	e.arm(&ms.lock, e.cfg.Grace, func() { ms.locked = false })
}

// advance passes the turn to the next player, crossing into a new round
// when a full cycle of the current order has been played. With step false
// Index already points at the next player because the holder was removed.
func (e *Engine) advance(ms *modeState, step bool) {
	g := ms.game
	g.turns++
	if g.turns >= len(g.Order) {
		if len(g.Answers) > 0 {
			e.resolve(ms)
		}
		p, err := e.problem(g.Mode)
		if err != nil {
			e.logger.Error("generating problem", "mode", g.Mode, "round", g.Round+1, "error", err)
			e.gameOver(ms, digitduel.ReasonPuzzleFailure, "")
			return
		}
		g.Round++
		g.turns = 0
		g.Problem = p
		g.Answers = nil
		g.closed = false
		e.toRoom(g.Mode, digitduel.KindNewRound, digitduel.NewRound{Round: g.Round, Problem: p})
	}
	if step {
		g.Index = (g.Index + 1) % len(g.Order)
	}
	e.beginTurn(ms)
}

func (e *Engine) beginTurn(ms *modeState) {
	g := ms.game
	g.TurnStart = e.clock.Now()
	e.toRoom(g.Mode, digitduel.KindTurnSwitch, digitduel.TurnSwitch{
		Player:    g.Current(),
		Index:     g.Index,
		Round:     g.Round,
		TurnStart: g.TurnStart,
	})
	e.toPlayer(g.Current(), g.Mode, digitduel.KindYourTurn, digitduel.YourTurn{
		Round:   g.Round,
		Seconds: seconds(ms.turn),
	})
	e.armTurn(ms)
	e.logger.Debug("turn switched", "mode", g.Mode, "round", g.Round, "turn", g.Current(), "index", g.Index)
}

// armTurn restarts the mode's turn countdown.
func (e *Engine) armTurn(ms *modeState) {
	ms.deadline = e.clock.Now().Add(ms.turn)
	e.scheduleTick(ms)
}

func (e *Engine) scheduleTick(ms *modeState) {
	remaining := ms.deadline.Sub(e.clock.Now())
	d := e.cfg.Tick
	if d <= 0 || d > remaining {
		d = remaining
	}
	e.arm(&ms.timer, d, func() { e.tick(ms) })
}

func (e *Engine) tick(ms *modeState) {
	g := ms.game
	if g == nil || g.phase != phaseActive {
		return
	}
	remaining := ms.deadline.Sub(e.clock.Now())
	if remaining <= 0 {
		e.timeout(ms)
		return
	}
	e.toRoom(g.Mode, digitduel.KindTick, digitduel.Tick{Remaining: seconds(remaining)})
	e.scheduleTick(ms)
}

// timeout passes the turn on when the holder ran out of time. A silent
// holder is logged as an incorrect answer at full latency.
func (e *Engine) timeout(ms *modeState) {
	g := ms.game
	if g == nil || g.phase != phaseActive {
		return
	}
	holder := g.Current()
	e.toRoom(g.Mode, digitduel.KindTimeout, digitduel.Timeout{Player: holder, Round: g.Round})
	e.logger.Info("turn timed out", "mode", g.Mode, "round", g.Round, "turn", holder)

	if len(g.Order) < lobby.Quorum {
		e.gameOver(ms, digitduel.ReasonNotEnoughPlayers, "")
		return
	}
	if !g.closed && !answered(g.Answers, holder) {
		e.record(ms, digitduel.NewAnswer(holder, false, ms.turn))
	}
	e.expire(ms)
}

// expire advances past a timed-out turn. While an earlier advance still
// holds the lock it retries after the grace window without recording again.
func (e *Engine) expire(ms *modeState) {
	g := ms.game
	if g == nil || g.phase != phaseActive {
		return
	}
	if !e.acquire(ms) {
		e.arm(&ms.timer, e.cfg.Grace, func() { e.expire(ms) })
		return
	}
	e.advance(ms, true)
}
