// Package digitduel defines the core domain types shared by the engine,
// the puzzle oracle and the transports. It has zero external dependencies.
package digitduel

import "time"

// Mode is a named difficulty tier. Waiting rooms and games are partitioned by mode.
type Mode string

const (
	ModeEasy Mode = "easy"
	ModeHard Mode = "hard"
)

// Operator is one symbol of the restricted puzzle grammar.
type Operator string

const (
	OpAdd  Operator = "+"
	OpSub  Operator = "-"
	OpMul  Operator = "×"
	OpDiv  Operator = "÷"
	OpSqrt Operator = "√"
)

// Problem is one round's puzzle: build Target from all five Digits using the
// allowed Operators. Solution is the canonical answer and is only revealed
// with the round result.
type Problem struct {
	Digits    []int      `json:"digits"`
	Operators []Operator `json:"operators"`
	Disabled  []Operator `json:"disabled"`
	Target    int        `json:"target"`
	Solution  string     `json:"-"`
}

// Answer is one entry of a round's answer log.
type Answer struct {
	Player  string        `json:"player"`
	Correct bool          `json:"correct"`
	Latency time.Duration `json:"-"`
	Seconds float64       `json:"latency"`
}

// NewAnswer fills the wire latency from d.
func NewAnswer(player string, correct bool, d time.Duration) Answer {
	return Answer{Player: player, Correct: correct, Latency: d, Seconds: d.Seconds()}
}

// GameOverReason explains why a game ended.
type GameOverReason string

const (
	ReasonNotEnoughPlayers GameOverReason = "not-enough-players"
	ReasonEndedByHost      GameOverReason = "ended-by-host"
	ReasonPuzzleFailure    GameOverReason = "puzzle-unavailable"
)
