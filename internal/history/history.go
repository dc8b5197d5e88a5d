// Package history records finished matches in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Match is the summary of one finished game.
type Match struct {
	ID         string         `json:"id"`
	Mode       string         `json:"mode"`
	Roster     []string       `json:"roster"`
	Scores     map[string]int `json:"scores"`
	Rounds     int            `json:"rounds"`
	Reason     string         `json:"reason"`
	Actor      string         `json:"actor,omitempty"`
	Resolution string         `json:"resolution"`
	StartedAt  time.Time      `json:"startedAt"`
	EndedAt    time.Time      `json:"endedAt"`
}

// timeFormat has fixed width so stored timestamps sort lexically. It is only
// used for writing: the driver may hand stored values back as time.Time,
// which database/sql renders as RFC 3339 with trailing zeros trimmed.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultLimit caps Recent when the caller passes a non-positive limit.
const DefaultLimit = 50

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Record(ctx context.Context, m Match) error {
	roster, err := json.Marshal(m.Roster)
	if err != nil {
		return fmt.Errorf("encoding roster: %w", err)
	}
	scores, err := json.Marshal(m.Scores)
	if err != nil {
		return fmt.Errorf("encoding scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches (id, mode, roster, scores, rounds, reason, actor, resolution, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Mode, string(roster), string(scores), m.Rounds, m.Reason, m.Actor, m.Resolution,
		m.StartedAt.UTC().Format(timeFormat), m.EndedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("inserting match %s: %w", m.ID, err)
	}
	return nil
}

// Recent returns the newest matches first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, roster, scores, rounds, reason, actor, resolution, started_at, ended_at
		FROM matches
		ORDER BY ended_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var (
			m                  Match
			roster, scores     string
			startedAt, endedAt string
		)
		if err := rows.Scan(&m.ID, &m.Mode, &roster, &scores, &m.Rounds, &m.Reason, &m.Actor, &m.Resolution, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		if err := json.Unmarshal([]byte(roster), &m.Roster); err != nil {
			return nil, fmt.Errorf("decoding roster of %s: %w", m.ID, err)
		}
		if err := json.Unmarshal([]byte(scores), &m.Scores); err != nil {
			return nil, fmt.Errorf("decoding scores of %s: %w", m.ID, err)
		}
		if m.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at of %s: %w", m.ID, err)
		}
		if m.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, fmt.Errorf("parsing ended_at of %s: %w", m.ID, err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
