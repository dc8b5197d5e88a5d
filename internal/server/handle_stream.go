package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/game"
)

const (
	pingInterval      = 30 * time.Second
	disconnectTimeout = 5 * time.Second
)

// EventAccepted is the response to a queued stream event.
type EventAccepted struct {
	Queued bool `json:"queued"`
}

// streams is the SSE transport. Notifications flow out over
// GET /api/stream; events come back in over POST /api/stream/{conn}/events.
type streams struct {
	logger  *slog.Logger
	engine  Engine
	gateway Gateway
	limit   rate.Limit
	burst   int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newStreams(logger *slog.Logger, engine Engine, gateway Gateway, limit rate.Limit, burst int) *streams {
	return &streams{
		logger:   logger,
		engine:   engine,
		gateway:  gateway,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *streams) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id := uuid.NewString()
	hello, err := json.Marshal(digitduel.Notification{
		Type: digitduel.KindConnected,
		Data: digitduel.Connected{ConnectionID: id},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := s.gateway.Subscribe(id)
	s.mu.Lock()
	s.limiters[id] = rate.NewLimiter(s.limit, s.burst)
	s.mu.Unlock()
	defer s.close(id)

	fmt.Fprintf(w, "data: %s\n\n", hello)
	flusher.Flush()
	s.logger.Info("stream connected", "conn", id, "remote", r.RemoteAddr)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *streams) close(id string) {
	s.gateway.Unsubscribe(id)
	s.mu.Lock()
	delete(s.limiters, id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := s.engine.Dispatch(ctx, digitduel.Event{Type: digitduel.EventDisconnect, ConnID: id}); err != nil {
		s.logger.Warn("dispatching disconnect", "conn", id, "error", err)
	}
	s.logger.Info("stream disconnected", "conn", id)
}

func (s *streams) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conn")

	s.mu.Lock()
	limiter, ok := s.limiters[id]
	s.mu.Unlock()
	if !ok || !s.gateway.Has(id) {
		writeError(w, http.StatusNotFound, "unknown connection")
		return
	}
	if !limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	var ev digitduel.Event
	if err := readJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.Type == "" || ev.Type == digitduel.EventDisconnect {
		writeError(w, http.StatusBadRequest, "invalid event type")
		return
	}
	ev.ConnID = id

	if err := s.engine.Dispatch(r.Context(), ev); err != nil {
		if errors.Is(err, game.ErrHubStopped) {
			writeError(w, http.StatusServiceUnavailable, "engine stopped")
			return
		}
		s.logger.Error("dispatching event", "conn", id, "type", ev.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, EventAccepted{Queued: true})
}
