// ABOUTME: HTTP API handlers for conversations and SSE turn streams.
// ABOUTME: Provides /api/conversations endpoints for browser and CLI clients.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

// SendMessageRequest is the JSON request body for POST /api/conversations/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// CreateConversationResponse is the JSON response for POST /api/conversations.
type CreateConversationResponse struct {
	ID string `json:"id"`
}

// ListConversationsResponse is the JSON response for GET /api/conversations.
type ListConversationsResponse struct {
	Conversations []*store.ConversationSummary `json:"conversations"`
}

// ListNotesResponse is the JSON response for GET /api/conversations/{id}/notes.
type ListNotesResponse struct {
	Notes []*store.Note `json:"notes"`
}

// registerAPIRoutes registers the /api routes on mux.
func (g *Gateway) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/conversations", g.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations", g.handleListConversations)
	mux.HandleFunc("GET /api/conversations/{id}", g.handleGetConversation)
	mux.HandleFunc("POST /api/conversations/{id}/messages", g.handleSendMessage)
	mux.HandleFunc("POST /api/conversations/{id}/turns", g.handleResumeTurn)
	mux.HandleFunc("GET /api/conversations/{id}/usage", g.handleConversationUsage)
	mux.HandleFunc("GET /api/conversations/{id}/notes", g.handleListNotes)
}

// handleHealth reports liveness.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateConversation handles POST /api/conversations.
func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := g.CreateConversation(r.Context())
	if err != nil {
		g.logger.Error("failed to create conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusCreated, CreateConversationResponse{ID: conv.ID()})
}

// handleListConversations handles GET /api/conversations?limit=N.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	summaries, err := g.store.ListConversations(r.Context(), limit)
	if err != nil {
		g.logger.Error("failed to list conversations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if summaries == nil {
		summaries = []*store.ConversationSummary{}
	}
	g.writeJSON(w, http.StatusOK, ListConversationsResponse{Conversations: summaries})
}

// handleGetConversation handles GET /api/conversations/{id}.
func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := g.loadConversation(w, r)
	if !ok {
		return
	}
	g.writeJSON(w, http.StatusOK, conv.Record())
}

// handleConversationUsage handles GET /api/conversations/{id}/usage.
func (g *Gateway) handleConversationUsage(w http.ResponseWriter, r *http.Request) {
	conv, ok := g.loadConversation(w, r)
	if !ok {
		return
	}

	summary, err := g.store.GetConversationUsage(r.Context(), conv.ID())
	if err != nil {
		g.logger.Error("failed to load usage", "conversation_id", conv.ID(), "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, summary)
}

// handleListNotes handles GET /api/conversations/{id}/notes.
func (g *Gateway) handleListNotes(w http.ResponseWriter, r *http.Request) {
	conv, ok := g.loadConversation(w, r)
	if !ok {
		return
	}

	notes, err := g.store.ListNotes(r.Context(), conv.ID())
	if err != nil {
		g.logger.Error("failed to list notes", "conversation_id", conv.ID(), "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if notes == nil {
		notes = []*store.Note{}
	}
	g.writeJSON(w, http.StatusOK, ListNotesResponse{Notes: notes})
}

// handleSendMessage handles POST /api/conversations/{id}/messages.
// It appends the user message and streams the turn as SSE.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id := r.PathValue("id")
	release, err := g.beginTurn(r.Context(), id, &req.Content)
	if err != nil {
		g.writeTurnError(w, id, err)
		return
	}
	defer release()

	g.streamTurn(w, r, flusher, id)
}

// handleResumeTurn handles POST /api/conversations/{id}/turns.
// It runs a turn over the stored history and streams it as SSE.
func (g *Gateway) handleResumeTurn(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id := r.PathValue("id")
	release, err := g.beginTurn(r.Context(), id, nil)
	if err != nil {
		g.writeTurnError(w, id, err)
		return
	}
	defer release()

	g.streamTurn(w, r, flusher, id)
}

// streamTurn runs the coordinator with an SSE sink. Failures reach the
// client as an error frame.
func (g *Gateway) streamTurn(w http.ResponseWriter, r *http.Request, flusher http.Flusher, id string) {
	sink := newSSESink(w, flusher)
	if err := g.coordinator.Run(r.Context(), id, sink); err != nil {
		g.logger.Warn("turn failed", "conversation_id", id, "error", err)
	}
}

// loadConversation fetches the {id} conversation, writing 404 or 500 on failure.
func (g *Gateway) loadConversation(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	id := r.PathValue("id")
	conv, err := g.store.FindByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	if err != nil {
		g.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	return conv, true
}

// writeTurnError maps errors from beginTurn to HTTP statuses.
func (g *Gateway) writeTurnError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, ErrEmptyContent):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, ErrTurnInProgress):
		g.sendJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrShuttingDown):
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		g.logger.Error("failed to start turn", "conversation_id", id, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes v as a JSON response.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
