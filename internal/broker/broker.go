// Package broker fans notifications out to live connections.
package broker

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/playperu/digitduel/internal/digitduel"
)

// Buffer is the per-subscriber queue length.
const Buffer = 64

// Broker is an in-process pub/sub keyed by connection ID. Each connection has
// a single subscriber channel carrying JSON-encoded notifications.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]chan []byte
	logger *slog.Logger
}

func New(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]chan []byte),
		logger: logger,
	}
}

// Subscribe registers conn and returns its channel. Subscribing an existing
// conn replaces and closes the previous channel.
func (b *Broker) Subscribe(conn string) <-chan []byte {
	ch := make(chan []byte, Buffer)
	b.mu.Lock()
	if old, ok := b.subs[conn]; ok {
		close(old)
	}
	b.subs[conn] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes conn and closes its channel.
func (b *Broker) Unsubscribe(conn string) {
	b.mu.Lock()
	if ch, ok := b.subs[conn]; ok {
		close(ch)
		delete(b.subs, conn)
	}
	b.mu.Unlock()
}

// Has reports whether conn is subscribed.
func (b *Broker) Has(conn string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.subs[conn]
	return ok
}

// Notify sends n to every listed connection. Unknown connections are skipped.
func (b *Broker) Notify(conns []string, n digitduel.Notification) {
	if len(conns) == 0 {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		b.logger.Error("encoding notification", "type", n.Type, "error", err)
		return
	}
	b.Send(conns, data)
}

// Send delivers a pre-encoded message.
func (b *Broker) Send(conns []string, data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, conn := range conns {
		ch, ok := b.subs[conn]
		if !ok {
			continue
		}
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
			b.logger.Warn("dropping message for slow subscriber", "conn", conn)
		}
	}
}
