package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/pkg/logging"
)

const defaultTopClients = 10

// AppointmentClearer removes appointments in bulk.
type AppointmentClearer interface {
	Clear(ctx context.Context, clientID string) (int64, error)
}

// AdminAppointmentsHandler serves maintenance endpoints over the
// appointments table.
type AdminAppointmentsHandler struct {
	db      *sql.DB
	clearer AppointmentClearer
	logger  *logging.Logger
	now     func() time.Time
}

// NewAdminAppointmentsHandler creates the handler. db may be nil when the
// appointments live outside Postgres; the summary then answers 503.
func NewAdminAppointmentsHandler(db *sql.DB, clearer AppointmentClearer, logger *logging.Logger) *AdminAppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAppointmentsHandler{
		db:      db,
		clearer: clearer,
		logger:  logger,
		now:     time.Now,
	}
}

// ClientCount is one row of the busiest-clients list.
type ClientCount struct {
	ClientID string `json:"clientId"`
	Total    int    `json:"total"`
}

// AppointmentsSummaryResponse is the body of GET /admin/appointments/summary.
type AppointmentsSummaryResponse struct {
	ByStatus    map[string]int `json:"byStatus"`
	Upcoming    int            `json:"upcoming"`
	TopClients  []ClientCount  `json:"topClients"`
	GeneratedAt string         `json:"generatedAt"`
}

// GetSummary returns appointment counts.
// GET /admin/appointments/summary?status=confirmed,cancelled&limit=10
func (h *AdminAppointmentsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		http.Error(w, "summary requires the postgres backend", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()

	statuses, ok := parseStatuses(r.URL.Query().Get("status"))
	if !ok {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}
	limit := defaultTopClients
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = n
	}

	now := h.now()
	resp := AppointmentsSummaryResponse{
		ByStatus:    make(map[string]int, len(statuses)),
		TopClients:  []ClientCount{},
		GeneratedAt: now.Format(time.RFC3339),
	}
	for _, s := range statuses {
		resp.ByStatus[s] = 0
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM appointments
		WHERE status = ANY($1)
		GROUP BY status
		ORDER BY status
	`, pq.Array(statuses))
	if err != nil {
		h.logger.Error("failed to count appointments by status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			h.logger.Error("failed to scan status row", "error", err)
			continue
		}
		resp.ByStatus[status] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		h.logger.Error("error iterating status rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// date_time is a wall-clock TIMESTAMP in server-local time.
	wall := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, time.UTC)
	if err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments WHERE status = 'confirmed' AND date_time >= $1
	`, wall).Scan(&resp.Upcoming); err != nil {
		h.logger.Error("failed to count upcoming appointments", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rows, err = h.db.QueryContext(ctx, `
		SELECT client_id, COUNT(*) AS total
		FROM appointments
		WHERE status = ANY($1)
		GROUP BY client_id
		ORDER BY total DESC, client_id ASC
		LIMIT $2
	`, pq.Array(statuses), limit)
	if err != nil {
		h.logger.Error("failed to query top clients", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var c ClientCount
		if err := rows.Scan(&c.ClientID, &c.Total); err != nil {
			h.logger.Error("failed to scan client row", "error", err)
			continue
		}
		resp.TopClients = append(resp.TopClients, c)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("error iterating client rows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode summary response", "error", err)
	}
}

// ClearAppointments deletes every appointment, or one client's when
// clientId is given.
// DELETE /admin/appointments?clientId=
func (h *AdminAppointmentsHandler) ClearAppointments(w http.ResponseWriter, r *http.Request) {
	if h.clearer == nil {
		http.Error(w, "not available", http.StatusServiceUnavailable)
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	deleted, err := h.clearer.Clear(r.Context(), clientID)
	if err != nil {
		h.logger.Error("failed to clear appointments", "client_id", clientID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Warn("appointments cleared", "client_id", clientID, "deleted", deleted)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"deleted": deleted, "clientId": clientID})
}

func parseStatuses(raw string) ([]string, bool) {
	if strings.TrimSpace(raw) == "" {
		return []string{
			string(appointments.StatusCancelled),
			string(appointments.StatusCompleted),
			string(appointments.StatusConfirmed),
		}, true
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		s := appointments.Status(strings.ToLower(strings.TrimSpace(part)))
		if s == "" {
			continue
		}
		if !s.Valid() {
			return nil, false
		}
		out = append(out, string(s))
	}
	return out, len(out) > 0
}
