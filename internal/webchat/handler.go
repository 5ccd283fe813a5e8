// Package webchat is the HTTP and WebSocket transport for the Lumina chat.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/internal/dialog"
	"github.com/myclarix/lumina/internal/observability/metrics"
	"github.com/myclarix/lumina/internal/tenancy"
	"github.com/myclarix/lumina/pkg/logging"
)

const (
	channelWeb          = "web"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Responder runs one chat message through the booking dialog.
type Responder interface {
	HandleMessage(ctx context.Context, in dialog.Inbound) (*dialog.Result, error)
}

// Handler serves the chat endpoints.
type Handler struct {
	responder  Responder
	transcript TranscriptStore
	metrics    *metrics.MessagingMetrics
	logger     *logging.Logger
}

// NewHandler creates a chat handler. transcript and m may be nil.
func NewHandler(responder Responder, transcript TranscriptStore, m *metrics.MessagingMetrics, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		responder:  responder,
		transcript: transcript,
		metrics:    m,
		logger:     logger,
	}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	ClientID string `json:"clientId"`
	Message  string `json:"message"`
	Mode     string `json:"mode"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Reply       string                    `json:"reply"`
	ClientID    string                    `json:"clientId"`
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
}

// HistoryMessage is a transcript entry as returned by the history endpoint.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HandleMessage handles POST /api/chat. The X-Client-Id context value wins
// over the body's clientId.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	clientID := resolveClientID(r.Context(), req.ClientID)

	resp, err := h.process(r.Context(), clientID, req.Message, req.Mode, channelWeb)
	if err != nil {
		if errors.Is(err, dialog.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "clientId y message son requeridos")
			return
		}
		writeError(w, http.StatusInternalServerError, "error interno")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) process(ctx context.Context, clientID, message, mode, channel string) (*ChatResponse, error) {
	result, err := h.responder.HandleMessage(ctx, dialog.Inbound{ClientID: clientID, Message: message, Mode: mode})
	if err != nil {
		status := "error"
		if errors.Is(err, dialog.ErrInvalidInput) {
			status = "invalid"
		} else {
			h.logger.Error("webchat: message failed", "client_id", clientID, "error", err)
		}
		h.metrics.ObserveInbound(channel, status)
		return nil, err
	}
	h.metrics.ObserveInbound(channel, "ok")

	h.record(ctx, clientID, TranscriptMessage{Role: RoleUser, Body: strings.TrimSpace(message), Channel: channel})
	h.record(ctx, clientID, TranscriptMessage{Role: RoleAssistant, Body: result.Reply, Channel: channel})

	return &ChatResponse{Reply: result.Reply, ClientID: clientID, Appointment: result.Appointment}, nil
}

// record appends to the transcript; failures are logged and ignored.
func (h *Handler) record(ctx context.Context, clientID string, msg TranscriptMessage) {
	if h.transcript == nil {
		return
	}
	if err := h.transcript.Append(ctx, clientID, msg); err != nil {
		h.logger.Warn("webchat: transcript append failed", "client_id", clientID, "error", err)
	}
}

// HandleHistory handles GET /api/chat/history?clientId=&limit=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	clientID := resolveClientID(r.Context(), r.URL.Query().Get("clientId"))
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "clientId es requerido")
		return
	}

	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit inválido")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	history := []HistoryMessage{}
	if h.transcript != nil {
		msgs, err := h.transcript.List(r.Context(), clientID, limit)
		if err != nil {
			h.logger.Error("webchat: failed to load history", "client_id", clientID, "error", err)
			writeError(w, http.StatusInternalServerError, "error interno")
			return
		}
		history = toHistory(msgs)
	}

	writeJSON(w, http.StatusOK, map[string]any{"clientId": clientID, "messages": history})
}

func toHistory(msgs []TranscriptMessage) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{
			Role:      m.Role,
			Text:      m.Body,
			Channel:   m.Channel,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

func resolveClientID(ctx context.Context, fallback string) string {
	if clientID, ok := tenancy.ClientIDFromContext(ctx); ok {
		return strings.TrimSpace(clientID)
	}
	return strings.TrimSpace(fallback)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
