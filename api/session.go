package api

import (
	"net/http"

	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/session"
)

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	store  *session.Store
	logger log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(store *session.Store, logger log.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.history)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.clear)
}

// create mints a new session id. The session itself materializes on the
// first chat message.
func (h *SessionHandler) create(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": session.NewID(),
	})
}

// history returns a session's turns, oldest first.
func (h *SessionHandler) history(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	turns := h.store.History(id)
	if turns == nil {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}

// clear removes a session.
func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.Clear(id) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
