package game

import (
	"fmt"
	"slices"

	"github.com/playperu/digitduel/internal/digitduel"
)

// Resolution decides when a round's answers are settled and whether settling
// moves the turn on by itself.
type Resolution interface {
	Name() string
	Settled(answers []digitduel.Answer, players []string) bool
	AdvanceOnSettle() bool
}

var (
	// Scoring waits until every player has answered, then awards the round.
	Scoring Resolution = scoring{}
	// Rotation settles each answer as it arrives and passes the turn on.
	Rotation Resolution = rotation{}
)

// ParseResolution maps a configuration name to a strategy.
func ParseResolution(name string) (Resolution, error) {
	switch name {
	case "", Scoring.Name():
		return Scoring, nil
	case Rotation.Name():
		return Rotation, nil
	}
	return nil, fmt.Errorf("unknown resolution %q", name)
}

type scoring struct{}

func (scoring) Name() string { return "scoring" }

func (scoring) Settled(answers []digitduel.Answer, players []string) bool {
	if len(answers) == 0 {
		return false
	}
	for _, p := range players {
		if !answered(answers, p) {
			return false
		}
	}
	return true
}

func (scoring) AdvanceOnSettle() bool { return false }

type rotation struct{}

func (rotation) Name() string { return "rotation" }

func (rotation) Settled(answers []digitduel.Answer, _ []string) bool { return len(answers) > 0 }

func (rotation) AdvanceOnSettle() bool { return true }

// fastestCorrect returns the correct answer with the lowest latency. Ties go
// to whoever was recorded first.
func fastestCorrect(answers []digitduel.Answer) *string {
	var best *digitduel.Answer
	for i := range answers {
		a := &answers[i]
		if !a.Correct {
			continue
		}
		if best == nil || a.Latency < best.Latency {
			best = a
		}
	}
	if best == nil {
		return nil
	}
	name := best.Player
	return &name
}

func answered(answers []digitduel.Answer, player string) bool {
	return slices.ContainsFunc(answers, func(a digitduel.Answer) bool { return a.Player == player })
}
