package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/digitduel/internal/digitduel"
	"github.com/playperu/digitduel/internal/game"
	"github.com/playperu/digitduel/internal/history"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthCheck is one entry of the /healthz body, keyed by check name.
type HealthCheck struct {
	Status string `json:"status" enum:"ok,error"`
}

type streamEventRequest struct {
	Conn string `path:"conn" description:"Connection ID from the stream's connected notification."`
	digitduel.Event
}

type historyRequest struct {
	Limit int `query:"limit" minimum:"1" maximum:"500" description:"Maximum matches to return, newest first."`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "DigitDuel API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Turn coordination server for the five-digit arithmetic duel.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the status of the database and the game engine loop.")
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(map[string]HealthCheck{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Game socket")
	getWS.SetDescription("Upgrades to a WebSocket. The first frame is a connected notification; " +
		"client events and engine notifications are JSON text frames.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("application/json"))
	_ = r.AddOperation(getWS)

	// GET /api/stream
	getStream, _ := r.NewOperationContext(http.MethodGet, "/api/stream")
	getStream.SetSummary("Notification stream")
	getStream.SetDescription("Server-Sent Events carrying engine notifications. The first event assigns the connection ID.")
	getStream.AddRespStructure(digitduel.Notification{}, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getStream)

	// POST /api/stream/{conn}/events
	postEvent, _ := r.NewOperationContext(http.MethodPost, "/api/stream/{conn}/events")
	postEvent.SetSummary("Send event")
	postEvent.SetDescription("Queues a client event on behalf of a stream connection.")
	postEvent.AddReqStructure(streamEventRequest{})
	postEvent.AddRespStructure(EventAccepted{}, openapi.WithHTTPStatus(http.StatusAccepted))
	postEvent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postEvent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postEvent.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusTooManyRequests))
	_ = r.AddOperation(postEvent)

	// GET /api/admin/status
	getStatus, _ := r.NewOperationContext(http.MethodGet, "/api/admin/status")
	getStatus.SetSummary("Engine status")
	getStatus.SetDescription("Online players, waiting rooms and active games. Requires HTTP Basic admin password.")
	getStatus.AddRespStructure(game.Status{}, openapi.WithHTTPStatus(http.StatusOK))
	getStatus.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getStatus)

	// POST /api/admin/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/admin/reset")
	postReset.SetSummary("Reset engine")
	postReset.SetDescription("Cancels every timer and clears players, waiting rooms and games. Requires HTTP Basic admin password.")
	postReset.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postReset)

	// GET /api/admin/history
	getHistory, _ := r.NewOperationContext(http.MethodGet, "/api/admin/history")
	getHistory.SetSummary("Match history")
	getHistory.SetDescription("Recently finished matches, newest first. Requires HTTP Basic admin password.")
	getHistory.AddReqStructure(historyRequest{})
	getHistory.AddRespStructure([]history.Match{}, openapi.WithHTTPStatus(http.StatusOK))
	getHistory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getHistory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getHistory)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
