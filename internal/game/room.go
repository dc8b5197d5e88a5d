package game

import (
	"maps"
	"slices"
	"time"

	"github.com/playperu/digitduel/internal/digitduel"
)

type phase int

const (
	phasePreGame phase = iota
	phaseActive
)

func (p phase) String() string {
	if p == phaseActive {
		return "active"
	}
	return "pre-game"
}

// Room is the single active game of a mode.
type Room struct {
	ID     string
	Mode   digitduel.Mode
	Host   string
	Roster []string
	// Order is a permutation of Roster fixed at start. It only ever shrinks.
	Order []string
	Index int
	Round int

	Problem   digitduel.Problem
	Answers   []digitduel.Answer
	Scores    map[string]int
	TurnStart time.Time
	StartedAt time.Time

	phase      phase
	resolution Resolution
	// turns counts advances since the last round boundary.
	turns int
	// closed is set once a round has been awarded and no more answers count.
	closed bool
}

// Current returns the turn holder.
func (r *Room) Current() string {
	if len(r.Order) == 0 {
		return ""
	}
	return r.Order[r.Index%len(r.Order)]
}

func (r *Room) plays(name string) bool {
	return slices.Contains(r.Order, name)
}

// remove drops name from the roster and the turn order, keeping Index on the
// same holder when someone before it leaves. It returns the position name
// held in the order, or -1.
func (r *Room) remove(name string) int {
	i := slices.Index(r.Order, name)
	if i < 0 {
		return -1
	}
	r.Order = slices.Delete(r.Order, i, i+1)
	if j := slices.Index(r.Roster, name); j >= 0 {
		r.Roster = slices.Delete(r.Roster, j, j+1)
	}
	if len(r.Order) == 0 {
		r.Index = 0
		return i
	}
	if i < r.Index {
		r.Index--
	}
	r.Index %= len(r.Order)
	return i
}

// finalScores returns the score table with every remaining player present.
func (r *Room) finalScores() map[string]int {
	scores := maps.Clone(r.Scores)
	if scores == nil {
		scores = make(map[string]int)
	}
	for _, name := range r.Roster {
		if _, ok := scores[name]; !ok {
			scores[name] = 0
		}
	}
	return scores
}

// RoomStatus is the read-only view of a Room used by the admin surface.
type RoomStatus struct {
	ID         string         `json:"id"`
	Mode       digitduel.Mode `json:"mode"`
	Phase      string         `json:"phase"`
	Host       string         `json:"host"`
	Roster     []string       `json:"roster"`
	TurnOrder  []string       `json:"turnOrder"`
	Turn       string         `json:"turn"`
	Index      int            `json:"index"`
	Round      int            `json:"round"`
	Scores     map[string]int `json:"scores"`
	Answers    int            `json:"answers"`
	Resolution string         `json:"resolution"`
	Locked     bool           `json:"locked"`
	StartedAt  time.Time      `json:"startedAt"`
}

func (r *Room) status(locked bool) RoomStatus {
	return RoomStatus{
		ID:         r.ID,
		Mode:       r.Mode,
		Phase:      r.phase.String(),
		Host:       r.Host,
		Roster:     slices.Clone(r.Roster),
		TurnOrder:  slices.Clone(r.Order),
		Turn:       r.Current(),
		Index:      r.Index,
		Round:      r.Round,
		Scores:     r.finalScores(),
		Answers:    len(r.Answers),
		Resolution: r.resolution.Name(),
		Locked:     locked,
		StartedAt:  r.StartedAt,
	}
}

// Status is a snapshot of the whole engine.
type Status struct {
	Online  int                         `json:"online"`
	Names   []string                    `json:"names"`
	Waiting map[digitduel.Mode][]string `json:"waiting"`
	Games   []RoomStatus                `json:"games"`
}
