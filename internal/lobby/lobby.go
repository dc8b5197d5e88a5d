// Package lobby keeps the per-mode waiting rooms. Names are held in arrival
// order and appear at most once per room.
package lobby

import (
	"errors"
	"slices"
	"strings"

	"github.com/playperu/digitduel/internal/digitduel"
)

var (
	ErrEmptyName   = errors.New("name is required")
	ErrUnknownMode = errors.New("unknown mode")
)

// Quorum is the number of waiting players needed to start a game.
const Quorum = 2

// Lobby is not safe for concurrent use.
type Lobby struct {
	modes []digitduel.Mode
	rooms map[digitduel.Mode][]string
}

// New creates a lobby with one empty waiting room per mode.
func New(modes ...digitduel.Mode) *Lobby {
	l := &Lobby{
		modes: slices.Clone(modes),
		rooms: make(map[digitduel.Mode][]string, len(modes)),
	}
	for _, m := range modes {
		l.rooms[m] = nil
	}
	return l
}

// Modes returns the configured modes in declaration order.
func (l *Lobby) Modes() []digitduel.Mode {
	return slices.Clone(l.modes)
}

// Known reports whether mode has a waiting room.
func (l *Lobby) Known(mode digitduel.Mode) bool {
	_, ok := l.rooms[mode]
	return ok
}

// Join appends name to mode's waiting room, first removing it from any other
// room. It returns the other modes whose lists changed.
func (l *Lobby) Join(name string, mode digitduel.Mode) ([]digitduel.Mode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !l.Known(mode) {
		return nil, ErrUnknownMode
	}

	var left []digitduel.Mode
	for _, m := range l.modes {
		if m != mode && l.remove(name, m) {
			left = append(left, m)
		}
	}
	if !slices.Contains(l.rooms[mode], name) {
		l.rooms[mode] = append(l.rooms[mode], name)
	}
	return left, nil
}

// Leave removes name from mode's waiting room. It reports whether the name
// was present.
func (l *Lobby) Leave(name string, mode digitduel.Mode) bool {
	return l.remove(strings.TrimSpace(name), mode)
}

// RemoveEverywhere takes name out of every waiting room and returns the modes
// it was removed from.
func (l *Lobby) RemoveEverywhere(name string) []digitduel.Mode {
	var left []digitduel.Mode
	for _, m := range l.modes {
		if l.remove(name, m) {
			left = append(left, m)
		}
	}
	return left
}

// Waiting returns a snapshot of mode's waiting list.
func (l *Lobby) Waiting(mode digitduel.Mode) []string {
	return slices.Clone(l.rooms[mode])
}

// Has reports whether name is waiting in mode.
func (l *Lobby) Has(name string, mode digitduel.Mode) bool {
	return slices.Contains(l.rooms[mode], name)
}

// CanStart reports whether mode has quorum.
func (l *Lobby) CanStart(mode digitduel.Mode) bool {
	return len(l.rooms[mode]) >= Quorum
}

// Drain empties mode's waiting room and returns who was in it.
func (l *Lobby) Drain(mode digitduel.Mode) []string {
	names := l.rooms[mode]
	if l.Known(mode) {
		l.rooms[mode] = nil
	}
	return names
}

// Reset empties every waiting room.
func (l *Lobby) Reset() {
	for _, m := range l.modes {
		l.rooms[m] = nil
	}
}

func (l *Lobby) remove(name string, mode digitduel.Mode) bool {
	names := l.rooms[mode]
	i := slices.Index(names, name)
	if i < 0 {
		return false
	}
	l.rooms[mode] = slices.Delete(names, i, i+1)
	return true
}
