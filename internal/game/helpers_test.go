package game

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/history"
)

// manualClock fires timers only when the test advances it.
type manualClock struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	at   time.Time
	seq  int
	f    func()
	done bool
}

func (t *manualTimer) Stop() bool {
	was := !t.done
	t.done = true
	return was
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.seq++
	t := &manualTimer{at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in order.
func (c *manualClock) Advance(d time.Duration) {
	end := c.now.Add(d)
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.done || t.at.After(end) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.done = true
		c.now = next.at
		next.f()
	}
	c.now = end

	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	c.timers = live
}

type delivery struct {
	conns []string
	n     digitduel.Notification
}

// outbox records every notification.
type outbox struct {
	log []delivery
}

func (o *outbox) Notify(conns []string, n digitduel.Notification) {
	o.log = append(o.log, delivery{conns: append([]string(nil), conns...), n: n})
}

// to returns what conn received of kind, in order.
func (o *outbox) to(conn string, kind digitduel.Kind) []digitduel.Notification {
	var out []digitduel.Notification
	for _, d := range o.log {
		if d.n.Type != kind {
			continue
		}
		for _, c := range d.conns {
			if c == conn {
				out = append(out, d.n)
			}
		}
	}
	return out
}

// kinds returns the sequence of broadcast kinds, ignoring the given ones.
func (o *outbox) kinds(skip ...digitduel.Kind) []digitduel.Kind {
	var out []digitduel.Kind
next:
	for _, d := range o.log {
		for _, s := range skip {
			if d.n.Type == s {
				continue next
			}
		}
		out = append(out, d.n.Type)
	}
	return out
}

func (o *outbox) count(kind digitduel.Kind) int {
	n := 0
	for _, d := range o.log {
		if d.n.Type == kind {
			n++
		}
	}
	return n
}

func (o *outbox) last(kind digitduel.Kind) (digitduel.Notification, bool) {
	for i := len(o.log) - 1; i >= 0; i-- {
		if o.log[i].n.Type == kind {
			return o.log[i].n, true
		}
	}
	return digitduel.Notification{}, false
}

func (o *outbox) reset() { o.log = nil }

// stubOracle always hands out the same easy problem.
type stubOracle struct {
	calls int
	err   error
}

func (s *stubOracle) Disable(digitduel.Mode) []digitduel.Operator { return nil }

func (s *stubOracle) Generate(digitduel.Mode, []digitduel.Operator) (digitduel.Problem, error) {
	s.calls++
	if s.err != nil {
		return digitduel.Problem{}, s.err
	}
	return digitduel.Problem{
		Digits:    []int{1, 2, 3, 4, 5},
		Operators: []digitduel.Operator{digitduel.OpAdd, digitduel.OpSub, digitduel.OpMul, digitduel.OpDiv},
		Target:    15,
		Solution:  "1+2+3+4+5",
	}, nil
}

type matchLog struct {
	matches chan history.Match
}

func (m *matchLog) Record(_ context.Context, match history.Match) error {
	m.matches <- match
	return nil
}

type fixture struct {
	engine *Engine
	clock  *manualClock
	out    *outbox
	oracle *stubOracle
	cfg    Config
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, mutate func(*Config), opts ...Option) *fixture {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f := &fixture{clock: newManualClock(), out: &outbox{}, oracle: &stubOracle{}, cfg: cfg}
	opts = append([]Option{WithClock(f.clock), WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)
	f.engine = NewEngine(cfg, f.oracle, f.out, discardLogger(), opts...)
	return f
}

func conn(name string) string { return "conn-" + name }

func (f *fixture) handle(t *testing.T, ev digitduel.Event) {
	t.Helper()
	require.NoError(t, f.engine.Handle(ev), "event %s", ev.Type)
}

// seat announces each player and puts them in mode's waiting room.
func (f *fixture) seat(t *testing.T, mode digitduel.Mode, names ...string) {
	t.Helper()
	for _, name := range names {
		f.handle(t, digitduel.Event{Type: digitduel.EventAnnounce, ConnID: conn(name), Name: name})
		f.handle(t, digitduel.Event{Type: digitduel.EventJoinRoom, ConnID: conn(name), Name: name, Mode: mode})
	}
}

// play seats names, starts the game and runs out the countdown.
func (f *fixture) play(t *testing.T, mode digitduel.Mode, names ...string) *Room {
	t.Helper()
	f.seat(t, mode, names...)
	require.NoError(t, f.engine.Start(mode, names[0]))
	f.clock.Advance(f.cfg.Countdown)
	g := f.engine.modes[mode].game
	require.NotNil(t, g)
	require.Equal(t, phaseActive, g.phase)
	return g
}

func (f *fixture) submit(t *testing.T, mode digitduel.Mode, name string, correct bool) error {
	t.Helper()
	return f.engine.Handle(digitduel.Event{
		Type:    digitduel.EventSubmitAnswer,
		ConnID:  conn(name),
		Name:    name,
		Mode:    mode,
		Correct: correct,
	})
}
