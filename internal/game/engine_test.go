package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/history"
)

const easy = digitduel.ModeEasy

func TestAnnAndBoStartAGame(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")

	for _, name := range []string{"Ann", "Bo"} {
		got := f.out.to(conn(name), digitduel.KindCanStart)
		require.NotEmpty(t, got, name)
		assert.Equal(t, digitduel.CanStart{CanStart: true}, got[len(got)-1].Data, name)
	}

	require.NoError(t, f.engine.Start(easy, "Ann"))
	cd, ok := f.out.last(digitduel.KindCountdown)
	require.True(t, ok)
	assert.Equal(t, "Ann", cd.Data.(digitduel.Countdown).Starter)
	assert.Equal(t, 3, cd.Data.(digitduel.Countdown).Seconds)
	assert.Zero(t, f.out.count(digitduel.KindGameStart), "game-start before countdown expiry")

	f.clock.Advance(f.cfg.Countdown)

	start, ok := f.out.last(digitduel.KindGameStart)
	require.True(t, ok)
	gs := start.Data.(digitduel.GameStart)
	assert.ElementsMatch(t, []string{"Ann", "Bo"}, gs.TurnOrder)
	assert.Contains(t, []string{"Ann", "Bo"}, gs.Turn)
	assert.Equal(t, 1, gs.Round)
	assert.Equal(t, 15, gs.Problem.Target)

	other := "Bo"
	if gs.Turn == "Bo" {
		other = "Ann"
	}
	assert.Len(t, f.out.to(conn(gs.Turn), digitduel.KindYourTurn), 1)
	assert.Empty(t, f.out.to(conn(other), digitduel.KindYourTurn))
	assert.Len(t, f.out.to(conn(other), digitduel.KindGameStart), 1)
	assert.Empty(t, f.engine.lobby.Waiting(easy), "waiting room not drained")
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t, nil)

	assert.ErrorIs(t, f.engine.Start("nightmare", "Ann"), ErrUnknownMode)

	f.seat(t, easy, "Ann")
	assert.ErrorIs(t, f.engine.Start(easy, "Ann"), ErrNotEnoughPlayers)

	f.seat(t, easy, "Bo")
	require.NoError(t, f.engine.Start(easy, "Ann"))

	f.seat(t, easy, "Cy", "Di")
	assert.ErrorIs(t, f.engine.Start(easy, "Cy"), ErrGameInProgress)
	assert.Equal(t, []string{"Cy", "Di"}, f.engine.lobby.Waiting(easy))
}

func TestHostFallsBackToFirstRosterMember(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")
	require.NoError(t, f.engine.Start(easy, "Spectator"))
	assert.Equal(t, "Ann", f.engine.modes[easy].game.Host)
}

func TestTurnOrderIsAUniformPermutation(t *testing.T) {
	f := newFixture(t, nil, WithRand(rand.New(rand.NewPCG(42, 99))))
	roster := []string{"A", "B", "C"}

	counts := make(map[string]int)
	const trials = 6000
	for range trials {
		order := f.engine.turnOrder(roster)
		require.ElementsMatch(t, roster, order)
		counts[strings.Join(order, "")]++
	}

	require.Len(t, counts, 6)
	for perm, n := range counts {
		assert.InDelta(t, trials/6, n, 150, "permutation %s", perm)
	}
	assert.Equal(t, []string{"A", "B", "C"}, roster, "roster mutated")
}

func TestRoundsIncrementOnFullCycles(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "A", "B", "C")
	order := slices.Clone(g.Order)

	for turn := 1; turn <= 9; turn++ {
		require.NoError(t, f.engine.Resume(easy), "turn %d", turn)
		assert.Equal(t, 1+turn/3, g.Round, "turn %d", turn)
		assert.Less(t, g.Index, len(g.Order))
		assert.Equal(t, order[turn%3], g.Current())
		f.clock.Advance(f.cfg.Grace)
	}
	assert.Equal(t, 3, f.out.count(digitduel.KindNewRound))
	assert.Equal(t, order, g.Order, "turn order reshuffled")
}

func TestNewRoundIsBroadcastBeforeTurnSwitch(t *testing.T) {
	f := newFixture(t, nil)
	f.play(t, easy, "A", "B")

	require.NoError(t, f.engine.Resume(easy))
	f.clock.Advance(f.cfg.Grace)
	f.out.reset()

	require.NoError(t, f.engine.Resume(easy))
	kinds := f.out.kinds(digitduel.KindYourTurn, digitduel.KindTick)
	assert.Equal(t, []digitduel.Kind{digitduel.KindNewRound, digitduel.KindTurnSwitch}, kinds)
}

func TestResumeIsLockedWithinGrace(t *testing.T) {
	f := newFixture(t, nil)
	f.play(t, easy, "A", "B", "C")
	f.out.reset()

	require.NoError(t, f.engine.Resume(easy))
	assert.ErrorIs(t, f.engine.Resume(easy), ErrTurnLocked)
	assert.Equal(t, 1, f.out.count(digitduel.KindTurnSwitch))

	f.clock.Advance(f.cfg.Grace)
	require.NoError(t, f.engine.Resume(easy))
	assert.Equal(t, 2, f.out.count(digitduel.KindTurnSwitch))
}

func TestTimeoutAndResumeQueuedTogetherAdvanceOnce(t *testing.T) {
	tests := []struct {
		name         string
		resumeFirst  bool
		wantResumeOK bool
	}{
		{name: "timeout first", resumeFirst: false, wantResumeOK: false},
		{name: "resume first", resumeFirst: true, wantResumeOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			g := f.play(t, easy, "A", "B", "C")
			first := g.Current()

			// Run up to the last tick inline, then hold callbacks in a queue.
			f.clock.Advance(29 * time.Second)
			var queue []func()
			f.engine.post = func(fn func()) { queue = append(queue, fn) }
			f.clock.Advance(time.Second)
			require.Len(t, queue, 1, "timeout callback not queued")

			var resumeErr error
			resume := func() { resumeErr = f.engine.Resume(easy) }
			if tt.resumeFirst {
				queue = append([]func(){resume}, queue...)
			} else {
				queue = append(queue, resume)
			}

			f.out.reset()
			for _, fn := range queue {
				fn()
			}

			assert.Equal(t, 1, f.out.count(digitduel.KindTurnSwitch))
			assert.NotEqual(t, first, g.Current())
			assert.Equal(t, 1, g.turns)
			if tt.wantResumeOK {
				assert.NoError(t, resumeErr)
				assert.Zero(t, f.out.count(digitduel.KindTimeout), "stale timeout fired")
			} else {
				assert.ErrorIs(t, resumeErr, ErrTurnLocked)
				assert.Equal(t, 1, f.out.count(digitduel.KindTimeout))
			}
		})
	}
}

func TestTurnTimerTicksThenTimesOut(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "A", "B")
	holder := g.Current()
	f.out.reset()

	f.clock.Advance(29 * time.Second)
	assert.Equal(t, 29, f.out.count(digitduel.KindTick))
	first := f.out.to(conn(holder), digitduel.KindTick)
	assert.Equal(t, digitduel.Tick{Remaining: 29}, first[0].Data)
	assert.Zero(t, f.out.count(digitduel.KindTimeout))

	f.clock.Advance(time.Second)
	to, ok := f.out.last(digitduel.KindTimeout)
	require.True(t, ok)
	assert.Equal(t, digitduel.Timeout{Player: holder, Round: 1}, to.Data)

	ans, ok := f.out.last(digitduel.KindAnswer)
	require.True(t, ok)
	res := ans.Data.(digitduel.AnswerResult)
	assert.Equal(t, holder, res.Answer.Player)
	assert.False(t, res.Answer.Correct)
	assert.Equal(t, 30*time.Second, res.Answer.Latency)

	assert.NotEqual(t, holder, g.Current())
	assert.Equal(t, 1, f.out.count(digitduel.KindTurnSwitch))
}

func TestTimerIsReplacedOnEveryTurn(t *testing.T) {
	f := newFixture(t, nil)
	f.play(t, easy, "A", "B", "C")

	f.clock.Advance(20 * time.Second)
	require.NoError(t, f.engine.Resume(easy))
	f.out.reset()

	// The first turn's deadline passes without firing.
	f.clock.Advance(15 * time.Second)
	assert.Zero(t, f.out.count(digitduel.KindTimeout))
	f.clock.Advance(15 * time.Second)
	assert.Equal(t, 1, f.out.count(digitduel.KindTimeout))
}

func TestScoringPicksFastestCorrect(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.EnforceTurn = false })
	f.play(t, easy, "Ann", "Bo")

	f.clock.Advance(800 * time.Millisecond)
	require.NoError(t, f.submit(t, easy, "Bo", true))
	_, settled := f.out.last(digitduel.KindRoundResult)
	assert.False(t, settled, "round settled before every player answered")

	f.clock.Advance(400 * time.Millisecond)
	require.NoError(t, f.submit(t, easy, "Ann", true))

	n, ok := f.out.last(digitduel.KindRoundResult)
	require.True(t, ok)
	rr := n.Data.(digitduel.RoundResult)
	require.NotNil(t, rr.Winner)
	assert.Equal(t, "Bo", *rr.Winner)
	assert.Equal(t, map[string]int{"Ann": 0, "Bo": 1}, rr.Scores)
	assert.Len(t, rr.Answers, 2)
	assert.Equal(t, "1+2+3+4+5", rr.Solution)

	assert.ErrorIs(t, f.submit(t, easy, "Ann", true), ErrAlreadyAnswered)
}

func TestScoringWithNoCorrectAnswerAwardsNobody(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.EnforceTurn = false })
	f.play(t, easy, "Ann", "Bo")

	require.NoError(t, f.submit(t, easy, "Ann", false))
	require.NoError(t, f.submit(t, easy, "Bo", false))

	n, ok := f.out.last(digitduel.KindRoundResult)
	require.True(t, ok)
	rr := n.Data.(digitduel.RoundResult)
	assert.Nil(t, rr.Winner)
	assert.Equal(t, map[string]int{"Ann": 0, "Bo": 0}, rr.Scores)
}

func TestRotationSettlesAndAdvancesPerAnswer(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Resolution = Rotation })
	g := f.play(t, easy, "Ann", "Bo", "Cy")
	holder := g.Current()
	f.out.reset()

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.submit(t, easy, holder, true))

	kinds := f.out.kinds(digitduel.KindYourTurn, digitduel.KindTick)
	assert.Equal(t, []digitduel.Kind{digitduel.KindAnswer, digitduel.KindRoundResult, digitduel.KindTurnSwitch}, kinds)

	n, _ := f.out.last(digitduel.KindRoundResult)
	rr := n.Data.(digitduel.RoundResult)
	require.NotNil(t, rr.Winner)
	assert.Equal(t, holder, *rr.Winner)
	assert.Equal(t, 1, rr.Scores[holder])
	assert.NotEqual(t, holder, g.Current())
	assert.Empty(t, g.Answers)
}

func TestRotationTimeoutInsideGraceRecordsOnce(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Resolution = Rotation
		c.Modes[0].Turn = 2 * time.Second
	})
	f.play(t, easy, "Ann", "Bo")
	f.out.reset()

	// The resume holds the lock past the next turn's deadline.
	require.NoError(t, f.engine.Resume(easy))
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, 1, f.out.count(digitduel.KindTimeout))
	assert.Equal(t, 1, f.out.count(digitduel.KindRoundResult))
	assert.Equal(t, 1, f.out.count(digitduel.KindTurnSwitch))

	f.clock.Advance(f.cfg.Grace)
	assert.Equal(t, 1, f.out.count(digitduel.KindTimeout))
	assert.Equal(t, 1, f.out.count(digitduel.KindRoundResult))
	assert.Equal(t, 1, f.out.count(digitduel.KindAnswer))
	assert.Equal(t, 2, f.out.count(digitduel.KindTurnSwitch))
}

func TestEnforceTurnRejectsOutOfTurnAnswers(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "Ann", "Bo")
	holder := g.Current()
	other := g.Order[1]
	f.out.reset()

	err := f.submit(t, easy, other, true)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	advisory := f.out.to(conn(other), digitduel.KindNotYourTurn)
	require.Len(t, advisory, 1)
	assert.Equal(t, digitduel.NotYourTurn{Turn: holder}, advisory[0].Data)
	assert.Zero(t, f.out.count(digitduel.KindAnswer))

	require.NoError(t, f.submit(t, easy, holder, true))
	assert.Equal(t, 1, f.out.count(digitduel.KindAnswer))
	assert.ErrorIs(t, f.submit(t, easy, "Stranger", true), ErrNotPlaying)
}

func TestJudge(t *testing.T) {
	p := digitduel.Problem{
		Digits:    []int{1, 2, 3, 4, 5},
		Operators: []digitduel.Operator{digitduel.OpAdd, digitduel.OpSub, digitduel.OpMul, digitduel.OpDiv},
		Target:    15,
	}
	num := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		ev   digitduel.Event
		want bool
	}{
		{name: "expression overrides flag", ev: digitduel.Event{Expression: "5+4+3+2+1", Correct: false}, want: true},
		{name: "wrong expression overrides flag", ev: digitduel.Event{Expression: "5×4+3+2+1", Correct: true}, want: false},
		{name: "expression missing digits", ev: digitduel.Event{Expression: "5+5+5", Correct: true}, want: false},
		{name: "client result matches", ev: digitduel.Event{ClientResult: num(15)}, want: true},
		{name: "client result misses", ev: digitduel.Event{ClientResult: num(14), Correct: true}, want: false},
		{name: "flag only", ev: digitduel.Event{Correct: true}, want: true},
		{name: "nothing", ev: digitduel.Event{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, judge(p, tt.ev))
		})
	}
}

func TestDepartingHolderPassesTurnImmediately(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "A", "B", "C")
	holder := g.Current()
	next := g.Order[(g.Index+1)%len(g.Order)]
	f.out.reset()

	require.NoError(t, f.engine.Depart(holder, easy))

	assert.Equal(t, next, g.Current())
	assert.Len(t, f.out.to(conn(next), digitduel.KindYourTurn), 1)
	assert.Zero(t, f.out.count(digitduel.KindTimeout))
	assert.Less(t, g.Index, len(g.Order))
	assert.NotContains(t, g.Roster, holder)
	assert.Empty(t, f.out.to(conn(holder), digitduel.KindTurnSwitch), "departed player still receives room broadcasts")
}

func TestDepartureBeforeHolderKeepsTurn(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "A", "B", "C")
	require.NoError(t, f.engine.Resume(easy))
	holder := g.Current()
	before := g.Order[0]
	f.out.reset()

	require.NoError(t, f.engine.Depart(before, easy))
	assert.Equal(t, holder, g.Current())
	assert.Equal(t, 0, g.Index)
	assert.Zero(t, f.out.count(digitduel.KindTurnSwitch))
}

func TestDepartureShortensRoundBoundary(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "A", "B", "C", "D")

	require.NoError(t, f.engine.Resume(easy))
	f.clock.Advance(f.cfg.Grace)
	require.NoError(t, f.engine.Resume(easy))
	f.clock.Advance(f.cfg.Grace)
	require.Equal(t, 2, g.turns)

	// Dropping to three players makes the next advance close the round.
	require.NoError(t, f.engine.Depart(g.Order[0], easy))
	require.NoError(t, f.engine.Resume(easy))
	assert.Equal(t, 2, g.Round)
	assert.Equal(t, 0, g.turns)
}

func TestDepartureBelowQuorumEndsGame(t *testing.T) {
	f := newFixture(t, nil)
	f.play(t, easy, "Ann", "Bo")
	f.out.reset()

	require.NoError(t, f.engine.Depart("Ann", easy))

	over := f.out.to(conn("Bo"), digitduel.KindGameOver)
	require.Len(t, over, 1)
	data := over[0].Data.(digitduel.GameOver)
	assert.Equal(t, digitduel.ReasonNotEnoughPlayers, data.Reason)
	assert.Equal(t, map[string]int{"Bo": 0}, data.Scores)
	assert.Nil(t, f.engine.modes[easy].game)

	assert.ErrorIs(t, f.engine.Resume(easy), ErrNoGame)
	assert.ErrorIs(t, f.submit(t, easy, "Bo", true), ErrNoGame)

	// No stray timer survives the room.
	f.out.reset()
	f.clock.Advance(time.Minute)
	assert.Empty(t, f.out.log)
}

func TestDisconnectDepartsPlayer(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "Ann", "Bo", "Cy")

	f.handle(t, digitduel.Event{Type: digitduel.EventDisconnect, ConnID: conn("Bo")})
	assert.NotContains(t, g.Order, "Bo")

	online, ok := f.out.last(digitduel.KindOnlineList)
	require.True(t, ok)
	assert.Equal(t, digitduel.OnlineList{Names: []string{"Ann", "Cy"}}, online.Data)
	assert.ErrorIs(t, f.engine.Handle(digitduel.Event{Type: digitduel.EventDisconnect, ConnID: "ghost"}), ErrUnknownConnection)
}

func TestDisconnectForgetsConnection(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")
	require.Equal(t, 2, f.engine.registry.Len())

	f.handle(t, digitduel.Event{Type: digitduel.EventDisconnect, ConnID: conn("Bo")})

	_, ok := f.engine.registry.Lookup(conn("Bo"))
	assert.False(t, ok)
	assert.Equal(t, 1, f.engine.registry.Len())
	assert.ErrorIs(t, f.engine.Handle(digitduel.Event{Type: digitduel.EventDisconnect, ConnID: conn("Bo")}), ErrUnknownConnection)
}

func TestRenameReleasesAbandonedSeat(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "Ann", "Bo", "Cy")

	f.handle(t, digitduel.Event{Type: digitduel.EventAnnounce, ConnID: conn("Ann"), Name: "Annie"})
	assert.NotContains(t, g.Order, "Ann")
	assert.NotContains(t, g.Roster, "Ann")
	require.NotNil(t, f.engine.modes[easy].game)

	f.handle(t, digitduel.Event{Type: digitduel.EventDisconnect, ConnID: conn("Ann")})
	assert.ElementsMatch(t, []string{"Bo", "Cy"}, g.Order)
}

func TestRenameBelowQuorumEndsGame(t *testing.T) {
	f := newFixture(t, nil)
	f.play(t, easy, "Ann", "Bo")

	f.handle(t, digitduel.Event{Type: digitduel.EventJoinRoom, ConnID: conn("Ann"), Name: "Annie", Mode: easy})

	n, ok := f.out.last(digitduel.KindGameOver)
	require.True(t, ok)
	assert.Equal(t, digitduel.ReasonNotEnoughPlayers, n.Data.(digitduel.GameOver).Reason)
	assert.Nil(t, f.engine.modes[easy].game)

	// No ghost seat keeps timing out.
	f.out.reset()
	f.clock.Advance(10 * time.Minute)
	assert.Zero(t, f.out.count(digitduel.KindTimeout))
}

func TestRenameKeepsSeatWhileAnotherTabHoldsName(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "Ann", "Bo", "Cy")
	f.handle(t, digitduel.Event{Type: digitduel.EventAnnounce, ConnID: "tab-2", Name: "Ann"})

	f.handle(t, digitduel.Event{Type: digitduel.EventAnnounce, ConnID: conn("Ann"), Name: "Annie"})
	assert.Contains(t, g.Order, "Ann")
}

func TestJoinRefusedWhileSeatedInAnotherGame(t *testing.T) {
	f := newFixture(t, nil)
	f.play(t, easy, "Ann", "Bo")

	err := f.engine.Handle(digitduel.Event{Type: digitduel.EventJoinRoom, ConnID: conn("Ann"), Name: "Ann", Mode: digitduel.ModeHard})
	assert.ErrorIs(t, err, ErrSeatedElsewhere)
	assert.Empty(t, f.engine.lobby.Waiting(digitduel.ModeHard))

	rec, ok := f.engine.registry.Lookup(conn("Ann"))
	require.True(t, ok)
	assert.Equal(t, easy, rec.Room)

	// Ann still hears her game.
	f.out.reset()
	require.NoError(t, f.engine.Resume(easy))
	assert.Len(t, f.out.to(conn("Ann"), digitduel.KindTurnSwitch), 1)
}

func TestDisconnectOfSecondTabKeepsPlayerSeated(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "Ann", "Bo", "Cy")
	f.handle(t, digitduel.Event{Type: digitduel.EventAnnounce, ConnID: "tab-2", Name: "Bo"})

	f.handle(t, digitduel.Event{Type: digitduel.EventDisconnect, ConnID: "tab-2"})
	assert.Contains(t, g.Order, "Bo")
}

func TestLeaveRoomRemovesFromWaitingList(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")

	f.handle(t, digitduel.Event{Type: digitduel.EventLeaveRoom, ConnID: conn("Ann"), Name: "Ann"})

	assert.Equal(t, []string{"Bo"}, f.engine.lobby.Waiting(easy))
	waiting := f.out.to(conn("Bo"), digitduel.KindWaitingList)
	assert.Equal(t, digitduel.WaitingList{Names: []string{"Bo"}}, waiting[len(waiting)-1].Data)
	can := f.out.to(conn("Bo"), digitduel.KindCanStart)
	assert.Equal(t, digitduel.CanStart{CanStart: false}, can[len(can)-1].Data)
}

func TestLeaveWaiting(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")
	f.out.reset()

	leave := digitduel.Event{Type: digitduel.EventLeaveWaiting, ConnID: conn("Ann"), Name: "Ann", Mode: easy}
	f.handle(t, leave)
	assert.Equal(t, []string{"Bo"}, f.engine.lobby.Waiting(easy))
	assert.Equal(t, 1, f.out.count(digitduel.KindWaitingList))

	// Leaving again changes nothing and broadcasts nothing.
	f.out.reset()
	f.handle(t, leave)
	assert.Empty(t, f.out.log)
}

func TestJoinSwitchingModesUpdatesBothRooms(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")
	f.out.reset()

	f.handle(t, digitduel.Event{Type: digitduel.EventJoinRoom, ConnID: conn("Ann"), Name: "Ann", Mode: digitduel.ModeHard})

	assert.Equal(t, []string{"Bo"}, f.engine.lobby.Waiting(easy))
	assert.Equal(t, []string{"Ann"}, f.engine.lobby.Waiting(digitduel.ModeHard))
	got := f.out.to(conn("Bo"), digitduel.KindWaitingList)
	require.Len(t, got, 1)
	assert.Equal(t, digitduel.ModeEasy, got[0].Mode)
}

func TestMalformedInputIsDroppedSilently(t *testing.T) {
	f := newFixture(t, nil)

	events := []digitduel.Event{
		{Type: digitduel.EventAnnounce, ConnID: "c1", Name: "   "},
		{Type: digitduel.EventJoinRoom, ConnID: "c1", Name: "", Mode: easy},
		{Type: digitduel.EventJoinRoom, ConnID: "c1", Name: "Ann", Mode: ""},
		{Type: digitduel.EventRequestStart, Mode: "nightmare"},
		{Type: digitduel.EventResume, Mode: easy},
		{Type: digitduel.EventSubmitAnswer, Mode: easy, Name: "Ann"},
		{Type: "dance"},
	}
	for _, ev := range events {
		assert.Error(t, f.engine.Handle(ev), "event %+v", ev)
	}
	assert.Empty(t, f.out.log)
	assert.ErrorIs(t, f.engine.Handle(digitduel.Event{Type: "dance"}), ErrUnknownEvent)
}

func TestCanStartIsALevelSignal(t *testing.T) {
	f := newFixture(t, nil)
	f.seat(t, easy, "Ann", "Bo")
	before := f.engine.lobby.Waiting(easy)

	for range 3 {
		f.handle(t, digitduel.Event{Type: digitduel.EventJoinRoom, ConnID: conn("Bo"), Name: "Bo", Mode: easy})
	}

	assert.Equal(t, before, f.engine.lobby.Waiting(easy))
	got := f.out.to(conn("Ann"), digitduel.KindCanStart)
	assert.GreaterOrEqual(t, len(got), 4)
	for _, n := range got[1:] {
		assert.Equal(t, digitduel.CanStart{CanStart: true}, n.Data)
	}
	assert.Nil(t, f.engine.modes[easy].game)
}

func TestEndGameByHost(t *testing.T) {
	ml := &matchLog{matches: make(chan history.Match, 1)}
	f := newFixture(t, nil, WithRecorder(ml))
	g := f.play(t, easy, "Ann", "Bo")
	id := g.ID

	assert.ErrorIs(t, f.engine.End(easy, "Bo"), ErrNotHost)
	assert.NotNil(t, f.engine.modes[easy].game)

	require.NoError(t, f.engine.End(easy, "Ann"))
	n, ok := f.out.last(digitduel.KindGameOver)
	require.True(t, ok)
	over := n.Data.(digitduel.GameOver)
	assert.Equal(t, digitduel.ReasonEndedByHost, over.Reason)
	assert.Equal(t, "Ann", over.Actor)
	assert.Nil(t, f.engine.modes[easy].game)

	select {
	case m := <-ml.matches:
		assert.Equal(t, id, m.ID)
		assert.Equal(t, "easy", m.Mode)
		assert.Equal(t, "ended-by-host", m.Reason)
		assert.ElementsMatch(t, []string{"Ann", "Bo"}, m.Roster)
		assert.Equal(t, "scoring", m.Resolution)
	case <-time.After(time.Second):
		t.Fatal("match was not recorded")
	}
}

// slowLog records matches after a delay.
type slowLog struct {
	delay time.Duration
	mu    sync.Mutex
	got   []history.Match
}

func (s *slowLog) Record(_ context.Context, m history.Match) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, m)
	return nil
}

func TestShutdownWaitsForPendingRecords(t *testing.T) {
	sl := &slowLog{delay: 50 * time.Millisecond}
	f := newFixture(t, nil, WithRecorder(sl))
	g := f.play(t, easy, "Ann", "Bo")

	require.NoError(t, f.engine.End(easy, "Ann"))
	f.engine.Shutdown()

	sl.mu.Lock()
	defer sl.mu.Unlock()
	require.Len(t, sl.got, 1)
	assert.Equal(t, g.ID, sl.got[0].ID)
}

func TestPuzzleFailureEndsGame(t *testing.T) {
	f := newFixture(t, nil)
	f.oracle.err = errors.New("oracle down")
	f.seat(t, easy, "Ann", "Bo")
	require.NoError(t, f.engine.Start(easy, "Ann"))
	f.clock.Advance(f.cfg.Countdown)

	n, ok := f.out.last(digitduel.KindGameOver)
	require.True(t, ok)
	assert.Equal(t, digitduel.ReasonPuzzleFailure, n.Data.(digitduel.GameOver).Reason)
	assert.Zero(t, f.out.count(digitduel.KindGameStart))
	assert.Equal(t, problemAttempts, f.oracle.calls)
}

func TestStatusAndReset(t *testing.T) {
	f := newFixture(t, nil)
	g := f.play(t, easy, "Ann", "Bo")
	f.seat(t, digitduel.ModeHard, "Cy")

	st := f.engine.Status()
	assert.Equal(t, 3, st.Online)
	assert.Equal(t, []string{"Cy"}, st.Waiting[digitduel.ModeHard])
	assert.Empty(t, st.Waiting[easy])
	require.Len(t, st.Games, 1)
	assert.Equal(t, g.ID, st.Games[0].ID)
	assert.Equal(t, "active", st.Games[0].Phase)
	assert.Equal(t, g.Current(), st.Games[0].Turn)

	f.engine.Reset()
	st = f.engine.Status()
	assert.Zero(t, st.Online)
	assert.Empty(t, st.Games)
	assert.Empty(t, st.Waiting[digitduel.ModeHard])

	f.out.reset()
	f.clock.Advance(time.Minute)
	assert.Empty(t, f.out.log, "timers survived reset")
}
