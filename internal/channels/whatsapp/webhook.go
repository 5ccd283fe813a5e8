// Package whatsapp connects the booking dialog to the WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/myclarix/lumina/internal/dialog"
	"github.com/myclarix/lumina/internal/observability/metrics"
	"github.com/myclarix/lumina/pkg/logging"
)

const (
	channelName   = "whatsapp"
	clientPrefix  = "wa_"
	dialogMode    = "whatsapp"
	maxBodyBytes  = 1 << 20
	signatureHdr  = "X-Hub-Signature-256"
	signaturePref = "sha256="
)

// Responder runs one inbound message through the booking dialog.
type Responder interface {
	HandleMessage(ctx context.Context, in dialog.Inbound) (*dialog.Result, error)
}

// Sender delivers a reply to a WhatsApp user.
type Sender interface {
	SendText(ctx context.Context, to, body string) (*SendResponse, error)
}

// WebhookHandler serves the Meta webhook for WhatsApp.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	responder   Responder
	sender      Sender
	deduper     Deduper
	metrics     *metrics.MessagingMetrics
	logger      *logging.Logger
}

// NewWebhookHandler creates the handler. When appSecret is empty inbound
// signatures are not checked.
func NewWebhookHandler(verifyToken, appSecret string, responder Responder, sender Sender, m *metrics.MessagingMetrics, logger *logging.Logger) *WebhookHandler {
	if responder == nil || sender == nil {
		panic("whatsapp: responder and sender are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		responder:   responder,
		sender:      sender,
		metrics:     m,
		logger:      logger,
	}
}

// WithDeduper skips messages whose id was already handled. Meta redelivers
// webhooks it considers unacknowledged.
func (h *WebhookHandler) WithDeduper(d Deduper) *WebhookHandler {
	h.deduper = d
	return h
}

// HandleVerification handles the GET webhook verification challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound handles POST webhook events. Meta gets its 200 as soon as
// the payload is accepted; replies are produced afterwards.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveWebhookLatency(channelName, time.Since(start).Seconds())
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get(signatureHdr)) {
		h.metrics.ObserveInbound(channelName, "invalid_signature")
		h.logger.Warn("whatsapp: rejected webhook with bad signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.metrics.ObserveInbound(channelName, "invalid_payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	texts := ParseTextMessages(payload)
	if len(texts) == 0 {
		h.metrics.ObserveInbound(channelName, "ignored")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	for _, msg := range texts {
		h.reply(ctx, msg)
	}
}

func (h *WebhookHandler) reply(ctx context.Context, msg InboundText) {
	clientID := clientPrefix + msg.From
	if h.deduper != nil && msg.MessageID != "" {
		fresh, err := h.deduper.MarkProcessed(ctx, msg.MessageID)
		if err != nil {
			h.logger.Warn("whatsapp: dedupe check failed", "message_id", msg.MessageID, "error", err)
		} else if !fresh {
			h.metrics.ObserveInbound(channelName, "duplicate")
			return
		}
	}
	result, err := h.responder.HandleMessage(ctx, dialog.Inbound{
		ClientID: clientID,
		Message:  msg.Body,
		Mode:     dialogMode,
	})
	if err != nil {
		h.metrics.ObserveInbound(channelName, "error")
		h.logger.Error("whatsapp: dialog failed", "client_id", clientID, "message_id", msg.MessageID, "error", err)
		return
	}
	h.metrics.ObserveInbound(channelName, "processed")

	resp, err := h.sender.SendText(ctx, msg.From, result.Reply)
	switch {
	case err != nil:
		h.metrics.ObserveOutbound(channelName, "error")
		h.logger.Error("whatsapp: send failed", "client_id", clientID, "error", err)
	case resp != nil && resp.Simulated:
		h.metrics.ObserveOutbound(channelName, "simulated")
	default:
		h.metrics.ObserveOutbound(channelName, "sent")
	}
}

// ParseTextMessages extracts the text messages from a webhook payload.
// Status receipts and non-text messages are skipped.
func ParseTextMessages(payload WebhookPayload) []InboundText {
	var out []InboundText
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.From == "" || m.Text == nil || strings.TrimSpace(m.Text.Body) == "" {
					continue
				}
				in := InboundText{From: m.From, Body: m.Text.Body, MessageID: m.ID}
				if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
					in.Timestamp = time.Unix(secs, 0).UTC()
				}
				out = append(out, in)
			}
		}
	}
	return out
}

// VerifySignature verifies the X-Hub-Signature-256 header.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || !strings.HasPrefix(signature, signaturePref) {
		return false
	}
	got, err := hex.DecodeString(signature[len(signaturePref):])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
