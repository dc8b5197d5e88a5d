// Package socket carries client events and engine notifications over
// WebSocket. Every socket gets its own connection ID.
package socket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/playperu/digitduel/internal/digitduel"
)

const (
	writeTimeout      = 5 * time.Second
	disconnectTimeout = 5 * time.Second
	readLimit         = 4 << 10
)

// Dispatcher accepts inbound events. *game.Hub satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev digitduel.Event) error
}

// Gateway hands out per-connection outbound queues. *broker.Broker satisfies it.
type Gateway interface {
	Subscribe(conn string) <-chan []byte
	Unsubscribe(conn string)
}

type Handler struct {
	logger  *slog.Logger
	hub     Dispatcher
	gateway Gateway
	limit   rate.Limit
	burst   int
}

// NewHandler builds the socket endpoint. limit and burst bound the inbound
// event rate of each connection.
func NewHandler(logger *slog.Logger, hub Dispatcher, gateway Gateway, limit rate.Limit, burst int) *Handler {
	return &Handler{logger: logger, hub: hub, gateway: gateway, limit: limit, burst: burst}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.serve)
	return r
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	id := uuid.NewString()
	logger := h.logger.With("conn", id)
	outbound := h.gateway.Subscribe(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer h.disconnect(logger, id)

	hello, err := json.Marshal(digitduel.Notification{
		Type: digitduel.KindConnected,
		Data: digitduel.Connected{ConnectionID: id},
	})
	if err != nil {
		logger.Error("encoding hello", "error", err)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, hello); err != nil {
		logger.Debug("websocket write failed", "error", err)
		return
	}
	logger.Info("websocket connected", "remote", r.RemoteAddr)

	go h.writeLoop(ctx, cancel, logger, conn, outbound)

	limiter := rate.NewLimiter(h.limit, h.burst)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			logger.Debug("websocket read ended", "error", err)
			return
		}
		if !limiter.Allow() {
			logger.Warn("inbound event rate limited")
			continue
		}

		var ev digitduel.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			logger.Debug("malformed event", "error", err)
			continue
		}
		if ev.Type == digitduel.EventDisconnect {
			continue
		}
		ev.ConnID = id
		if err := h.hub.Dispatch(ctx, ev); err != nil {
			logger.Warn("dispatching event", "type", ev.Type, "error", err)
			return
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, conn *websocket.Conn, outbound <-chan []byte) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-outbound:
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			wcancel()
			if err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) disconnect(logger *slog.Logger, id string) {
	h.gateway.Unsubscribe(id)

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := h.hub.Dispatch(ctx, digitduel.Event{Type: digitduel.EventDisconnect, ConnID: id}); err != nil {
		logger.Warn("dispatching disconnect", "error", err)
	}
	logger.Info("websocket disconnected")
}
