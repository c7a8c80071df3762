package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

const sseKeepaliveInterval = 30 * time.Second

type LocationHandler interface {
	Start(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Push(w http.ResponseWriter, r *http.Request)
	Improve(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)
	GetSSEToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type locationHandlerImpl struct {
	sessionService location.SessionService
	jwtService     jwt.Service
	hub            *sse.Hub
}

func NewLocationHandler(sessionService location.SessionService, jwtService jwt.Service, hub *sse.Hub) LocationHandler {
	return &locationHandlerImpl{
		sessionService: sessionService,
		jwtService:     jwtService,
		hub:            hub,
	}
}

// Start implements LocationHandler.
func (h *locationHandlerImpl) Start(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req location.StartSessionRequest
	// an empty body starts a session with the configured defaults
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		slog.Error("Failed to decode start session request", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.sessionService.Start(r.Context(), identity.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Location session started", result)
}

// Get implements LocationHandler.
func (h *locationHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.sessionService.Get)
}

// Push implements LocationHandler.
func (h *locationHandlerImpl) Push(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req location.PushFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode location fix", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := h.sessionService.Push(r.Context(), identity.UserID, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// Improve implements LocationHandler.
func (h *locationHandlerImpl) Improve(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.sessionService.Improve)
}

// Refresh implements LocationHandler.
func (h *locationHandlerImpl) Refresh(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.sessionService.Refresh)
}

// Cancel implements LocationHandler.
func (h *locationHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.sessionService.Cancel)
}

func (h *locationHandlerImpl) sessionAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error)) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := action(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetSSEToken generates a short-lived token bound to one session's event stream
func (h *locationHandlerImpl) GetSSEToken(w http.ResponseWriter, r *http.Request) {
	identity, err := jwt.IdentityFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	sessionID := chi.URLParam(r, "id")
	if _, err := h.sessionService.Get(r.Context(), identity.UserID, sessionID); err != nil {
		response.HandleError(w, err)
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(identity.UserID, sessionID)
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}

	response.Success(w, location.SSETokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

// Stream pushes session updates over Server-Sent Events until the session ends
func (h *locationHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	// Get token from query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	// Validate SSE token
	userID, err := h.jwtService.ValidateSSEToken(tokenStr, sessionID)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.sessionService.Get(r.Context(), userID, sessionID)
	if err != nil {
		http.Error(w, location.UserMessage(err), http.StatusNotFound)
		return
	}

	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(sessionID)
	defer cleanup()

	// Current state first, so a late subscriber never waits for the next fix
	if err := (sse.Event{Event: "location", Data: snapshot}).Write(w); err != nil {
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				// session closed
				_ = sse.Event{Event: "closed", Data: map[string]string{"session_id": sessionID}}.Write(w)
				flusher.Flush()
				return
			}
			if err := event.Write(w); err != nil {
				slog.Debug("SSE client went away", "session_id", sessionID, "error", err)
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			_ = sse.Event{Event: "ping", Data: map[string]int64{"timestamp": time.Now().Unix()}}.Write(w)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
