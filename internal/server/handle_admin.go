package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playperu/digitduel/internal/history"
)

// maxHistory caps the history page size.
const maxHistory = 500

func handleAdminStatus(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := engine.Status(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "engine unavailable")
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func handleAdminReset(logger *slog.Logger, engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Reset(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "engine unavailable")
			return
		}
		logger.Warn("engine reset by admin", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleAdminHistory(logger *slog.Logger, store History) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := history.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxHistory)
		}

		matches, err := store.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("listing history", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}
