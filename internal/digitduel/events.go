package digitduel

import "time"

// EventType names an inbound client action.
type EventType string

const (
	EventAnnounce     EventType = "announce-identity"
	EventJoinRoom     EventType = "join-room"
	EventLeaveRoom    EventType = "leave-room"
	EventLeaveWaiting EventType = "leave-waiting"
	EventRequestStart EventType = "request-start"
	EventSubmitAnswer EventType = "submit-answer"
	EventResume       EventType = "request-resume"
	EventDepartGame   EventType = "depart-game"
	EventEndGame      EventType = "end-game"

	// EventDisconnect is produced by the transport, never by a client.
	EventDisconnect EventType = "disconnect"
)

// Event is an inbound action. ConnID is stamped by the transport.
type Event struct {
	Type         EventType `json:"type"`
	ConnID       string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	Mode         Mode      `json:"mode,omitempty"`
	Correct      bool      `json:"correct,omitempty"`
	ClientResult *float64  `json:"clientResult,omitempty"`
	Expression   string    `json:"expression,omitempty"`
}

// Kind names an outbound notification.
type Kind string

const (
	KindConnected   Kind = "connected"
	KindOnlineList  Kind = "online-list"
	KindWaitingList Kind = "waiting-list"
	KindCanStart    Kind = "can-start"
	KindCountdown   Kind = "pre-game-countdown"
	KindGameStart   Kind = "game-start"
	KindNewRound    Kind = "new-round"
	KindTurnSwitch  Kind = "turn-switch"
	KindYourTurn    Kind = "your-turn"
	KindNotYourTurn Kind = "not-your-turn"
	KindTick        Kind = "round-tick"
	KindTimeout     Kind = "round-timeout"
	KindAnswer      Kind = "answer-result"
	KindRoundResult Kind = "round-result"
	KindGameOver    Kind = "game-over"
)

// Notification is the envelope every outbound message travels in.
type Notification struct {
	Type Kind `json:"type"`
	Mode Mode `json:"mode,omitempty"`
	Data any  `json:"data,omitempty"`
}

type Connected struct {
	ConnectionID string `json:"connectionId"`
}

type OnlineList struct {
	Names []string `json:"names"`
}

type WaitingList struct {
	Names []string `json:"names"`
}

type CanStart struct {
	CanStart bool `json:"canStart"`
}

type Countdown struct {
	Roster  []string `json:"roster"`
	Starter string   `json:"starter"`
	Seconds int      `json:"seconds"`
}

type GameStart struct {
	Problem     Problem   `json:"problem"`
	Roster      []string  `json:"roster"`
	Starter     string    `json:"starter"`
	TurnOrder   []string  `json:"turnOrder"`
	Turn        string    `json:"turn"`
	Round       int       `json:"round"`
	TurnSeconds int       `json:"turnSeconds"`
	TurnStart   time.Time `json:"turnStart"`
}

type NewRound struct {
	Round   int     `json:"round"`
	Problem Problem `json:"problem"`
}

type TurnSwitch struct {
	Player    string    `json:"player"`
	Index     int       `json:"index"`
	Round     int       `json:"round"`
	TurnStart time.Time `json:"turnStart"`
}

type YourTurn struct {
	Round   int `json:"round"`
	Seconds int `json:"seconds"`
}

type NotYourTurn struct {
	Turn string `json:"turn"`
}

type Tick struct {
	Remaining int `json:"remaining"`
}

type Timeout struct {
	Player string `json:"player"`
	Round  int    `json:"round"`
}

type AnswerResult struct {
	Answer Answer `json:"answer"`
	Round  int    `json:"round"`
}

// RoundResult settles a round. Winner is nil when nobody answered correctly.
type RoundResult struct {
	Round    int            `json:"round"`
	Winner   *string        `json:"winner"`
	Scores   map[string]int `json:"scores"`
	Answers  []Answer       `json:"answers"`
	Solution string         `json:"solution"`
}

type GameOver struct {
	Reason GameOverReason `json:"reason"`
	Actor  string         `json:"actor,omitempty"`
	Round  int            `json:"round"`
	Scores map[string]int `json:"scores"`
}
