package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/myclarix/lumina/pkg/logging"
)

// Sender is the GA4 capability the HTTP handler needs.
type Sender interface {
	Send(ctx context.Context, clientID, name string, params map[string]any) error
}

// Handler forwards client-side events to GA4.
type Handler struct {
	sender Sender
	logger *logging.Logger
}

// NewHandler builds the metrics handler. A nil sender answers 503.
func NewHandler(sender Sender, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{sender: sender, logger: logger}
}

type trackRequest struct {
	ClientID string         `json:"clientId"`
	Event    string         `json:"event"`
	Params   map[string]any `json:"params"`
}

// TrackGA4 handles POST /api/metrics/ga4.
func (h *Handler) TrackGA4(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "GA4 no configurado",
			"details": "Faltan GA4_MEASUREMENT_ID o GA4_API_SECRET",
		})
		return
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || strings.TrimSpace(req.Event) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "clientId y event son requeridos"})
		return
	}

	if err := h.sender.Send(r.Context(), clientID, req.Event, req.Params); err != nil {
		h.logger.Warn("ga4 forward failed", "event", req.Event, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Error enviando evento a GA4"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// TestEvent handles GET /api/ga-test: it sends a fixed event so the
// property's DebugView can be checked end to end.
func (h *Handler) TestEvent(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "GA4 no configurado"})
		return
	}
	if err := h.sender.Send(r.Context(), "debug_test_client", "ga_test_event", map[string]any{"source": "manual_test"}); err != nil {
		h.logger.Warn("ga4 test event failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Error enviando evento a GA4"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":  true,
		"msg": "Evento GA4 enviado (si GA4_DEBUG=true, debería verse en DebugView)",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
