// Package game runs waiting rooms, turn rotation, round scoring and game-over
// detection for every mode.
//
// An Engine is single-threaded: every method must be called from one
// goroutine. Timer callbacks re-enter through the post hook, which the Hub
// points at its inbox so they are serialized with client events.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/history"
	"github.com/playperu/digitduel/internal/lobby"
	"github.com/playperu/digitduel/internal/puzzle"
	"github.com/playperu/digitduel/internal/registry"
)

var (
	ErrEmptyName         = lobby.ErrEmptyName
	ErrUnknownMode       = lobby.ErrUnknownMode
	ErrUnknownEvent      = errors.New("unknown event")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNoGame            = errors.New("no active game")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrGameInProgress    = errors.New("game already in progress")
	ErrNotPlaying        = errors.New("player is not in the game")
	ErrSeatedElsewhere   = errors.New("player is seated in another game")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrAlreadyAnswered   = errors.New("already answered this round")
	ErrTurnLocked        = errors.New("turn advance locked")
	ErrNotHost           = errors.New("only the host can end the game")
	ErrPuzzleUnavailable = errors.New("no puzzle available")
)

const (
	problemAttempts = 3
	recordTimeout   = 5 * time.Second
)

// Oracle produces puzzles. *puzzle.Generator satisfies it.
type Oracle interface {
	Disable(mode digitduel.Mode) []digitduel.Operator
	Generate(mode digitduel.Mode, disabled []digitduel.Operator) (digitduel.Problem, error)
}

// Notifier delivers a notification to the given connections.
type Notifier interface {
	Notify(conns []string, n digitduel.Notification)
}

// Recorder stores finished matches.
type Recorder interface {
	Record(ctx context.Context, m history.Match) error
}

type ModeConfig struct {
	Mode digitduel.Mode
	Turn time.Duration
	// Resolution overrides Config.Resolution for this mode.
	Resolution Resolution
}

type Config struct {
	Modes      []ModeConfig
	Countdown  time.Duration
	Grace      time.Duration
	Tick       time.Duration
	Resolution Resolution
	// EnforceTurn rejects answers from anyone but the turn holder.
	EnforceTurn bool
}

// DefaultConfig is the built-in easy/hard setup.
func DefaultConfig() Config {
	return Config{
		Modes: []ModeConfig{
			{Mode: digitduel.ModeEasy, Turn: 30 * time.Second},
			{Mode: digitduel.ModeHard, Turn: 20 * time.Second},
		},
		Countdown:   3 * time.Second,
		Grace:       3 * time.Second,
		Tick:        time.Second,
		Resolution:  Scoring,
		EnforceTurn: true,
	}
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand makes turn orders reproducible.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.shuffle = r.Shuffle }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// modeState is everything owned by one mode: its game, its turn timer and
// its turn lock.
type modeState struct {
	mode       digitduel.Mode
	turn       time.Duration
	resolution Resolution

	game     *Room
	timer    slot
	deadline time.Time
	lock     slot
	locked   bool
}

type Engine struct {
	cfg      Config
	logger   *slog.Logger
	clock    Clock
	shuffle  func(n int, swap func(i, j int))
	oracle   Oracle
	notifier Notifier
	recorder Recorder
	post     func(func())

	registry *registry.Registry
	lobby    *lobby.Lobby
	modes    map[digitduel.Mode]*modeState

	// archiving tracks in-flight Recorder calls so Shutdown can drain them.
	archiving sync.WaitGroup
}

func NewEngine(cfg Config, oracle Oracle, notifier Notifier, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		clock:    realClock{},
		shuffle:  rand.Shuffle,
		oracle:   oracle,
		notifier: notifier,
		registry: registry.New(),
		modes:    make(map[digitduel.Mode]*modeState, len(cfg.Modes)),
	}
	e.post = func(fn func()) { fn() }

	names := make([]digitduel.Mode, 0, len(cfg.Modes))
	for _, mc := range cfg.Modes {
		res := mc.Resolution
		if res == nil {
			res = cfg.Resolution
		}
		if res == nil {
			res = Scoring
		}
		e.modes[mc.Mode] = &modeState{mode: mc.Mode, turn: mc.Turn, resolution: res}
		names = append(names, mc.Mode)
	}
	e.lobby = lobby.New(names...)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle applies one inbound event. A non-nil error means the event was
// dropped without changing state; it is never fatal.
func (e *Engine) Handle(ev digitduel.Event) error {
	switch ev.Type {
	case digitduel.EventAnnounce:
		return e.announce(ev)
	case digitduel.EventJoinRoom:
		return e.join(ev)
	case digitduel.EventLeaveRoom:
		return e.leaveRoom(ev)
	case digitduel.EventLeaveWaiting:
		return e.leaveWaiting(ev)
	case digitduel.EventRequestStart:
		return e.Start(ev.Mode, ev.Name)
	case digitduel.EventSubmitAnswer:
		return e.submit(ev)
	case digitduel.EventResume:
		return e.Resume(ev.Mode)
	case digitduel.EventDepartGame:
		return e.Depart(ev.Name, ev.Mode)
	case digitduel.EventEndGame:
		return e.End(ev.Mode, ev.Name)
	case digitduel.EventDisconnect:
		return e.disconnect(ev.ConnID)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
}

// Start seats the waiting players of mode and begins the pre-game countdown.
func (e *Engine) Start(mode digitduel.Mode, name string) error {
	ms, err := e.mode(mode)
	if err != nil {
		return err
	}
	if ms.game != nil {
		return ErrGameInProgress
	}
	if !e.lobby.CanStart(mode) {
		return ErrNotEnoughPlayers
	}

	roster := e.lobby.Drain(mode)
	host := strings.TrimSpace(name)
	if !slices.Contains(roster, host) {
		host = roster[0]
	}
	g := &Room{
		ID:         uuid.NewString(),
		Mode:       mode,
		Host:       host,
		Roster:     roster,
		Order:      e.turnOrder(roster),
		Round:      1,
		Scores:     make(map[string]int, len(roster)),
		StartedAt:  e.clock.Now(),
		phase:      phasePreGame,
		resolution: ms.resolution,
	}
	ms.game = g

	e.logger.Info("game starting",
		"mode", mode,
		"game", g.ID,
		"roster", roster,
		"resolution", g.resolution.Name(),
	)
	e.broadcastWaiting(mode)
	e.toRoom(mode, digitduel.KindCountdown, digitduel.Countdown{
		Roster:  slices.Clone(roster),
		Starter: host,
		Seconds: seconds(e.cfg.Countdown),
	})
	e.arm(&ms.timer, e.cfg.Countdown, func() { e.begin(ms) })
	return nil
}

func (e *Engine) turnOrder(roster []string) []string {
	order := slices.Clone(roster)
	e.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}

// begin ends the countdown: first problem, game-start, first turn.
func (e *Engine) begin(ms *modeState) {
	g := ms.game
	if g == nil || g.phase != phasePreGame {
		return
	}
	p, err := e.problem(g.Mode)
	if err != nil {
		e.logger.Error("generating first problem", "mode", g.Mode, "error", err)
		e.gameOver(ms, digitduel.ReasonPuzzleFailure, "")
		return
	}
	g.Problem = p
	g.phase = phaseActive
	g.TurnStart = e.clock.Now()

	e.toRoom(g.Mode, digitduel.KindGameStart, digitduel.GameStart{
		Problem:     p,
		Roster:      slices.Clone(g.Roster),
		Starter:     g.Host,
		TurnOrder:   slices.Clone(g.Order),
		Turn:        g.Current(),
		Round:       g.Round,
		TurnSeconds: seconds(ms.turn),
		TurnStart:   g.TurnStart,
	})
	e.toPlayer(g.Current(), g.Mode, digitduel.KindYourTurn, digitduel.YourTurn{
		Round:   g.Round,
		Seconds: seconds(ms.turn),
	})
	e.armTurn(ms)
	e.logger.Info("game started", "mode", g.Mode, "game", g.ID, "turn", g.Current())
}

func (e *Engine) submit(ev digitduel.Event) error {
	ms, g, err := e.active(ev.Mode)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(ev.Name)
	if name == "" {
		if rec, ok := e.registry.Lookup(ev.ConnID); ok {
			name = rec.Name
		}
	}
	if !g.plays(name) {
		return ErrNotPlaying
	}
	if e.cfg.EnforceTurn && name != g.Current() {
		e.reply(ev.ConnID, name, g.Mode, digitduel.KindNotYourTurn, digitduel.NotYourTurn{Turn: g.Current()})
		return ErrNotYourTurn
	}
	if g.closed || answered(g.Answers, name) {
		return ErrAlreadyAnswered
	}

	ans := digitduel.NewAnswer(name, judge(g.Problem, ev), e.clock.Now().Sub(g.TurnStart))
	e.logger.Debug("answer submitted",
		"mode", g.Mode,
		"player", name,
		"round", g.Round,
		"correct", ans.Correct,
		"latency", ans.Latency,
	)
	if e.record(ms, ans) && g.resolution.AdvanceOnSettle() {
		e.hold(ms)
		e.advance(ms, true)
	}
	return nil
}

// judge prefers recomputing the answer on the server: a full expression is
// verified against the problem, then a numeric result is compared with the
// target. The client's own verdict is the last resort.
func judge(p digitduel.Problem, ev digitduel.Event) bool {
	switch {
	case strings.TrimSpace(ev.Expression) != "":
		return puzzle.Verify(p, ev.Expression) == nil
	case ev.ClientResult != nil:
		return math.Abs(*ev.ClientResult-float64(p.Target)) < 1e-9
	default:
		return ev.Correct
	}
}

// record appends ans to the round's log and settles the round if the
// resolution strategy says so. It reports whether the round settled.
func (e *Engine) record(ms *modeState, ans digitduel.Answer) bool {
	g := ms.game
	g.Answers = append(g.Answers, ans)
	e.toRoom(g.Mode, digitduel.KindAnswer, digitduel.AnswerResult{Answer: ans, Round: g.Round})

	if !g.resolution.Settled(g.Answers, g.Order) {
		return false
	}
	e.resolve(ms)
	return true
}

// resolve awards the round to the fastest correct answer and clears the log.
func (e *Engine) resolve(ms *modeState) {
	g := ms.game
	for _, name := range g.Roster {
		if _, ok := g.Scores[name]; !ok {
			g.Scores[name] = 0
		}
	}
	winner := fastestCorrect(g.Answers)
	if winner != nil {
		g.Scores[*winner]++
	}

	e.toRoom(g.Mode, digitduel.KindRoundResult, digitduel.RoundResult{
		Round:    g.Round,
		Winner:   winner,
		Scores:   maps.Clone(g.Scores),
		Answers:  g.Answers,
		Solution: g.Problem.Solution,
	})
	e.logger.Info("round settled", "mode", g.Mode, "round", g.Round, "winner", deref(winner))

	g.Answers = nil
	g.closed = !g.resolution.AdvanceOnSettle()
}

// Depart removes name from mode's game.
func (e *Engine) Depart(name string, mode digitduel.Mode) error {
	ms, err := e.mode(mode)
	if err != nil {
		return err
	}
	if ms.game == nil {
		return ErrNoGame
	}
	name = strings.TrimSpace(name)
	if !ms.game.plays(name) {
		return ErrNotPlaying
	}
	e.depart(ms, name)
	return nil
}

func (e *Engine) depart(ms *modeState, name string) {
	g := ms.game
	held := g.phase == phaseActive && g.Current() == name
	g.remove(name)
	e.registry.ClearRoom(name)
	e.logger.Info("player departed", "mode", g.Mode, "player", name, "remaining", len(g.Order))

	if len(g.Order) < lobby.Quorum {
		e.gameOver(ms, digitduel.ReasonNotEnoughPlayers, "")
		return
	}
	if g.phase != phaseActive {
		return
	}
	if !g.closed && len(g.Answers) > 0 && g.resolution.Settled(g.Answers, g.Order) {
		e.resolve(ms)
	}
	if held {
		e.hold(ms)
		e.advance(ms, false)
	}
}

// End lets the host stop the game of mode.
func (e *Engine) End(mode digitduel.Mode, name string) error {
	ms, err := e.mode(mode)
	if err != nil {
		return err
	}
	if ms.game == nil {
		return ErrNoGame
	}
	name = strings.TrimSpace(name)
	if name != ms.game.Host {
		return ErrNotHost
	}
	e.gameOver(ms, digitduel.ReasonEndedByHost, name)
	return nil
}

func (e *Engine) gameOver(ms *modeState, reason digitduel.GameOverReason, actor string) {
	g := ms.game
	ms.timer.stop()
	ms.lock.stop()
	ms.locked = false
	ms.game = nil

	scores := g.finalScores()
	e.toRoom(g.Mode, digitduel.KindGameOver, digitduel.GameOver{
		Reason: reason,
		Actor:  actor,
		Round:  g.Round,
		Scores: scores,
	})
	e.logger.Info("game over", "mode", g.Mode, "game", g.ID, "reason", reason, "round", g.Round)
	e.archive(g, reason, actor, scores)
}

func (e *Engine) archive(g *Room, reason digitduel.GameOverReason, actor string, scores map[string]int) {
	if e.recorder == nil {
		return
	}
	m := history.Match{
		ID:         g.ID,
		Mode:       string(g.Mode),
		Roster:     slices.Clone(g.Roster),
		Scores:     scores,
		Rounds:     g.Round,
		Reason:     string(reason),
		Actor:      actor,
		Resolution: g.resolution.Name(),
		StartedAt:  g.StartedAt,
		EndedAt:    e.clock.Now(),
	}
	e.archiving.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := e.recorder.Record(ctx, m); err != nil {
			e.logger.Error("recording match", "game", m.ID, "error", err)
		}
	})
}

// problem asks the oracle for a problem, rejecting any without a positive
// integer target.
func (e *Engine) problem(mode digitduel.Mode) (digitduel.Problem, error) {
	var lastErr error
	for range problemAttempts {
		p, err := e.oracle.Generate(mode, e.oracle.Disable(mode))
		if err != nil {
			lastErr = err
			continue
		}
		if p.Target <= 0 || len(p.Digits) == 0 {
			lastErr = fmt.Errorf("invalid target %d", p.Target)
			continue
		}
		return p, nil
	}
	return digitduel.Problem{}, fmt.Errorf("%w: %w", ErrPuzzleUnavailable, lastErr)
}

func (e *Engine) mode(m digitduel.Mode) (*modeState, error) {
	ms, ok := e.modes[m]
	if !ok {
		return nil, ErrUnknownMode
	}
	return ms, nil
}

func (e *Engine) active(m digitduel.Mode) (*modeState, *Room, error) {
	ms, err := e.mode(m)
	if err != nil {
		return nil, nil, err
	}
	if ms.game == nil || ms.game.phase != phaseActive {
		return nil, nil, ErrNoGame
	}
	return ms, ms.game, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
