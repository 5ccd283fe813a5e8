package webchat

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/internal/dialog"
	"golang.org/x/net/websocket"
)

const channelWebSocket = "websocket"

// InboundFrame is what the widget sends over the socket.
type InboundFrame struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
	Mode string `json:"mode,omitempty"`
}

// OutboundFrame is what the server sends over the socket.
type OutboundFrame struct {
	Type        string                    `json:"type"` // "session", "history", "message", "pong", "error"
	Role        string                    `json:"role,omitempty"`
	Text        string                    `json:"text,omitempty"`
	ClientID    string                    `json:"clientId,omitempty"`
	Timestamp   string                    `json:"timestamp,omitempty"`
	Messages    []HistoryMessage          `json:"messages,omitempty"`
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
}

// HandleWebSocket handles GET /api/chat/ws?clientId=&mode=. Each inbound
// message frame is answered with one assistant message frame.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientID := resolveClientID(r.Context(), r.URL.Query().Get("clientId"))
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "clientId es requerido")
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r, clientID)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request, clientID string) {
	ctx := r.Context()
	defaultMode := r.URL.Query().Get("mode")

	_ = websocket.JSON.Send(conn, OutboundFrame{Type: "session", ClientID: clientID})

	if h.transcript != nil {
		if msgs, err := h.transcript.List(ctx, clientID, defaultHistoryLimit); err == nil && len(msgs) > 0 {
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "history", Messages: toHistory(msgs)})
		}
	}

	h.logger.Info("webchat: connection opened", "client_id", clientID)

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			h.logger.Debug("webchat: connection closed", "client_id", clientID, "error", err)
			return
		}

		if frame.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
			continue
		}
		if frame.Type != "message" || strings.TrimSpace(frame.Text) == "" {
			continue
		}

		mode := frame.Mode
		if mode == "" {
			mode = defaultMode
		}
		resp, err := h.process(ctx, clientID, frame.Text, mode, channelWebSocket)
		if err != nil {
			text := "Lo siento, ha ocurrido un problema. Inténtalo de nuevo."
			if errors.Is(err, dialog.ErrInvalidInput) {
				text = "clientId y message son requeridos"
			}
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Text: text})
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundFrame{
			Type:        "message",
			Role:        RoleAssistant,
			Text:        resp.Reply,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Appointment: resp.Appointment,
		})
	}
}
