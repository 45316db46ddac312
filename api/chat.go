package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nexobotics/nova/internal/gemini"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/rag"
	"github.com/nexobotics/nova/internal/session"
)

// MaxMessageLength caps a single chat message.
const MaxMessageLength = 8192

// QueryService answers questions against the knowledge base.
// *rag.Pipeline satisfies it.
type QueryService interface {
	Query(ctx context.Context, question string, topK int) (rag.QueryResult, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	svc      QueryService
	sessions *session.Store
	topK     int
	logger   log.Logger
}

// NewChatHandler creates a chat handler. topK <= 0 falls back to the
// pipeline default.
func NewChatHandler(svc QueryService, sessions *session.Store, topK int, logger log.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, sessions: sessions, topK: topK, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.chat)
}

// ChatRequest is the chat request body. SessionID is optional; a missing
// one starts a new session whose id is returned in the response.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the chat response body.
type ChatResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	Sources   []Source `json:"sources,omitempty"`
}

// Source is a retrieved passage included with the answer.
type Source struct {
	Text     string  `json:"text"`
	Category string  `json:"category,omitempty"`
	Distance float64 `json:"distance"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if len(message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "message too long")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}
	h.sessions.Append(sessionID, session.RoleUser, message)

	result, err := h.svc.Query(r.Context(), message, h.topK)
	if err != nil {
		if errors.Is(err, gemini.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid_request", "message is required")
			return
		}
		h.logger.Error("chat query failed", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "internal_error", "an error occurred processing your request")
		return
	}

	h.sessions.Append(sessionID, session.RoleAssistant, result.Response)

	resp := ChatResponse{
		Response:  result.Response,
		SessionID: sessionID,
	}
	for _, p := range result.Passages {
		resp.Sources = append(resp.Sources, Source{
			Text:     p.Text,
			Category: p.Metadata["category"],
			Distance: p.Distance,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
