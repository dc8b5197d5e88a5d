// Package registry maps live connections to self-reported player names.
//
// A Registry is owned by a single goroutine (the game hub) and is not safe
// for concurrent use.
package registry

import (
	"errors"
	"slices"
	"strings"

	"github.com/playperu/digitduel/internal/digitduel"
)

var ErrEmptyName = errors.New("name is required")

// Record is one connection's identity. It lives from the connection's first
// announcement until the connection is removed.
type Record struct {
	ConnID string
	Name   string
	Room   digitduel.Mode
	Online bool

	seen uint64
}

type Registry struct {
	records map[string]*Record
	clock   uint64
}

func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// RegisterOrUpdate associates name with connID and marks it online,
// overwriting any prior record for the same connection.
func (r *Registry) RegisterOrUpdate(connID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || connID == "" {
		return ErrEmptyName
	}
	rec, ok := r.records[connID]
	if !ok {
		rec = &Record{ConnID: connID}
		r.records[connID] = rec
	}
	if rec.Name != name {
		rec.Room = ""
	}
	rec.Name = name
	rec.Online = true
	rec.seen = r.tick()
	return nil
}

// Remove forgets connID and returns its last record.
func (r *Registry) Remove(connID string) (Record, bool) {
	rec, ok := r.records[connID]
	if !ok {
		return Record{}, false
	}
	delete(r.records, connID)
	return *rec, true
}

// Len is the number of connections on record.
func (r *Registry) Len() int {
	return len(r.records)
}

// Lookup returns the record for connID.
func (r *Registry) Lookup(connID string) (Record, bool) {
	rec, ok := r.records[connID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// FindConnectionByName resolves name to the most recently active online
// connection carrying it.
func (r *Registry) FindConnectionByName(name string) (string, bool) {
	rec := r.latest(name)
	if rec == nil {
		return "", false
	}
	return rec.ConnID, true
}

// IsOnline reports whether any online connection carries name.
func (r *Registry) IsOnline(name string) bool {
	return r.latest(name) != nil
}

// SetRoom moves name's active connection into room and counts as activity.
func (r *Registry) SetRoom(name string, room digitduel.Mode) bool {
	rec := r.latest(name)
	if rec == nil {
		return false
	}
	rec.Room = room
	rec.seen = r.tick()
	return true
}

// ClearRoom takes every online connection of name out of its room.
func (r *Registry) ClearRoom(name string) {
	for _, rec := range r.records {
		if rec.Online && rec.Name == name {
			rec.Room = ""
		}
	}
}

// ListOnlineNames returns the distinct online names in registration order.
func (r *Registry) ListOnlineNames() []string {
	online := r.online()
	names := make([]string, 0, len(online))
	for _, rec := range online {
		if !slices.Contains(names, rec.Name) {
			names = append(names, rec.Name)
		}
	}
	return names
}

// OnlineConns returns every online connection id.
func (r *Registry) OnlineConns() []string {
	online := r.online()
	conns := make([]string, len(online))
	for i, rec := range online {
		conns[i] = rec.ConnID
	}
	return conns
}

// ConnsInRoom returns the online connections currently in room.
func (r *Registry) ConnsInRoom(room digitduel.Mode) []string {
	var conns []string
	for _, rec := range r.online() {
		if rec.Room == room {
			conns = append(conns, rec.ConnID)
		}
	}
	return conns
}

// Reset forgets every record.
func (r *Registry) Reset() {
	clear(r.records)
	r.clock = 0
}

func (r *Registry) latest(name string) *Record {
	var best *Record
	for _, rec := range r.records {
		if !rec.Online || rec.Name != name {
			continue
		}
		if best == nil || rec.seen > best.seen {
			best = rec
		}
	}
	return best
}

func (r *Registry) online() []*Record {
	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.Online {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b *Record) int {
		switch {
		case a.seen < b.seen:
			return -1
		case a.seen > b.seen:
			return 1
		}
		return strings.Compare(a.ConnID, b.ConnID)
	})
	return out
}

func (r *Registry) tick() uint64 {
	r.clock++
	return r.clock
}
