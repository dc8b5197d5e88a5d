package game

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/playperu/digitduel/internal/digitduel"
)

var ErrHubStopped = errors.New("hub stopped")

const inboxSize = 256

// Hub owns an Engine and runs every mutation on a single goroutine. Client
// events, timer callbacks and admin requests all pass through its inbox.
type Hub struct {
	engine *Engine
	logger *slog.Logger
	inbox  chan func()
	done   chan struct{}
}

func NewHub(engine *Engine, logger *slog.Logger) *Hub {
	h := &Hub{
		engine: engine,
		logger: logger,
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
	}
	engine.post = h.enqueue
	return h
}

// Run processes the inbox until ctx is cancelled, then stops every timer.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.engine.Shutdown()
			return nil
		case fn := <-h.inbox:
			h.safe(fn)
		}
	}
}

// Dispatch queues ev for the engine. Rejected events are logged, not returned.
func (h *Hub) Dispatch(ctx context.Context, ev digitduel.Event) error {
	return h.send(ctx, func() {
		if err := h.engine.Handle(ev); err != nil {
			h.logger.Debug("event ignored",
				"type", ev.Type,
				"conn", ev.ConnID,
				"mode", ev.Mode,
				"error", err,
			)
		}
	})
}

func (h *Hub) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if err := h.send(ctx, func() { reply <- h.engine.Status() }); err != nil {
		return Status{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-h.done:
		return Status{}, ErrHubStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (h *Hub) Reset(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := h.send(ctx, func() {
		h.engine.Reset()
		reply <- struct{}{}
	}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, fn func()) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.inbox <- fn:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue is the engine's post hook for timer callbacks.
func (h *Hub) enqueue(fn func()) {
	select {
	case h.inbox <- fn:
	case <-h.done:
	}
}

func (h *Hub) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("engine handler panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
