package handler

import (
	"log/slog"
	"net/http"
)

// Pinger is satisfied by *sqlite.DB.
type Pinger interface {
	Ping() error
	SchemaVersion() (uint, error)
}

// HealthHandler reports whether the database is reachable.
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

type healthResponse struct {
	Status        string `json:"status"`
	SchemaVersion uint   `json:"schemaVersion,omitempty"`
}

// HandleHealth answers GET /healthz with 200 or 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}

	version, err := h.db.SchemaVersion()
	if err != nil {
		h.logger.Warn("health check: schema version unknown", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", SchemaVersion: version})
}
