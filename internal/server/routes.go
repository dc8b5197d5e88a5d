package server

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
	"golang.org/x/time/rate"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/game"
	"github.com/playperu/digitduel/internal/handler/health"
	"github.com/playperu/digitduel/internal/handler/socket"
	"github.com/playperu/digitduel/internal/history"
)

// Engine is the serialized game engine. *game.Hub satisfies it.
type Engine interface {
	Dispatch(ctx context.Context, ev digitduel.Event) error
	Status(ctx context.Context) (game.Status, error)
	Reset(ctx context.Context) error
}

// Gateway owns the outbound queue of every connection. *broker.Broker satisfies it.
type Gateway interface {
	Subscribe(conn string) <-chan []byte
	Unsubscribe(conn string)
	Has(conn string) bool
}

// History lists finished matches. *history.Store satisfies it.
type History interface {
	Recent(ctx context.Context, limit int) ([]history.Match, error)
}

type Deps struct {
	Engine  Engine
	Gateway Gateway
	History History
	Checks  map[string]health.Checker

	// AdminPasswordHash is a bcrypt hash. Empty leaves the admin API unmounted.
	AdminPasswordHash string

	RateLimit rate.Limit
	RateBurst int
}

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("DigitDuel API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())
	r.Mount("/ws", socket.NewHandler(logger, deps.Engine, deps.Gateway, deps.RateLimit, deps.RateBurst).Routes())

	streams := newStreams(logger, deps.Engine, deps.Gateway, deps.RateLimit, deps.RateBurst)
	r.Get("/api/stream", streams.handleStream)
	r.Post("/api/stream/{conn}/events", streams.handleEvent)

	if deps.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH not set, admin API disabled")
		return
	}
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminAuthMiddleware(deps.AdminPasswordHash))
		r.Get("/status", handleAdminStatus(deps.Engine))
		r.Post("/reset", handleAdminReset(logger, deps.Engine))
		r.Get("/history", handleAdminHistory(logger, deps.History))
	})
}
