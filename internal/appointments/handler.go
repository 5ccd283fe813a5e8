package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/myclarix/lumina/pkg/logging"
)

// StateResetter clears a client's dialog state after an appointment is
// booked outside the chat flow.
type StateResetter interface {
	Reset(ctx context.Context, clientID string) error
}

// Handler exposes CRUD endpoints for appointments.
type Handler struct {
	repo   Repository
	states StateResetter
	logger *logging.Logger
}

// NewHandler creates an appointments handler. states may be nil.
func NewHandler(repo Repository, states StateResetter, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, states: states, logger: logger}
}

// Routes mounts the handlers on a fresh router, meant for /api/appointments.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// CreateRequest is the body of POST /api/appointments. DateTime may be
// replaced by separate Date and Time fields.
type CreateRequest struct {
	ClientID string `json:"clientId"`
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Purpose  string `json:"purpose"`
}

// UpdateBody is the body of PUT/PATCH /api/appointments/{id}.
type UpdateBody struct {
	DateTime *string `json:"dateTime"`
	Purpose  *string `json:"purpose"`
	Status   *string `json:"status"`
}

var acceptedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02, 15:04",
}

// ParseDateTime reads a date-time in one of the accepted layouts. Values
// without an offset are server-local.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range acceptedLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, value); err == nil {
				return Slot(t.In(time.Local)), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return Slot(t), nil
		}
	}
	return time.Time{}, errors.New("dateTime must look like 2006-01-02T15:04")
}

func (req CreateRequest) when() (time.Time, error) {
	if strings.TrimSpace(req.DateTime) != "" {
		return ParseDateTime(req.DateTime)
	}
	if strings.TrimSpace(req.Date) == "" || strings.TrimSpace(req.Time) == "" {
		return time.Time{}, ErrMissingDateTime
	}
	return ParseDateTime(strings.TrimSpace(req.Date) + " " + strings.TrimSpace(req.Time))
}

// Create handles POST /api/appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		writeError(w, http.StatusBadRequest, ErrMissingClientID.Error())
		return
	}
	at, err := req.when()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.repo.Create(r.Context(), clientID, at, req.Purpose)
	if err != nil {
		h.writeRepoError(w, "create", err)
		return
	}

	if h.states != nil {
		if err := h.states.Reset(r.Context(), clientID); err != nil {
			h.logger.Warn("failed to reset dialog state", "client_id", clientID, "error", err)
		}
	}

	h.logger.Info("appointment created", "id", appt.ID, "client_id", clientID)
	writeJSON(w, http.StatusCreated, appt)
}

// List handles GET /api/appointments?clientId=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	list, err := h.repo.List(r.Context(), clientID)
	if err != nil {
		h.writeRepoError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/appointments/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Update handles PUT and PATCH /api/appointments/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var body UpdateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var req UpdateRequest
	if body.DateTime != nil {
		at, err := ParseDateTime(*body.DateTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.DateTime = &at
	}
	req.Purpose = body.Purpose
	if body.Status != nil {
		status := Status(strings.ToLower(strings.TrimSpace(*body.Status)))
		req.Status = &status
	}

	appt, err := h.repo.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeRepoError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Delete handles DELETE /api/appointments/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeRepoError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

func (h *Handler) writeRepoError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "ya existe una cita para ese cliente en esa fecha y hora")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "cita no encontrada")
	case errors.Is(err, ErrMissingClientID), errors.Is(err, ErrMissingDateTime), errors.Is(err, ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("appointment operation failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "error interno")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
