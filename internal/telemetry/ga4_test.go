package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path    string
	query   map[string]string
	payload ga4Payload
}

func newGA4Server(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p ga4Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		mu.Lock()
		got = append(got, capturedRequest{
			path: r.URL.Path,
			query: map[string]string{
				"measurement_id": r.URL.Query().Get("measurement_id"),
				"api_secret":     r.URL.Query().Get("api_secret"),
			},
			payload: p,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), got...)
	}
}

func TestNewGA4Client_RequiresCredentials(t *testing.T) {
	_, err := NewGA4Client(GA4Config{MeasurementID: "G-1"})
	assert.ErrorIs(t, err, ErrGA4NotConfigured)
	_, err = NewGA4Client(GA4Config{APISecret: "s"})
	assert.ErrorIs(t, err, ErrGA4NotConfigured)
}

func TestGA4Client_Send(t *testing.T) {
	srv, requests := newGA4Server(t, http.StatusNoContent)
	client, err := NewGA4Client(GA4Config{MeasurementID: "G-TEST", APISecret: "secret", Env: "test"})
	require.NoError(t, err)
	client.SetBaseURL(srv.URL + "/")

	err = client.Send(context.Background(), "mobile_client_1", "appointment confirmed", map[string]any{"commercial": true})
	require.NoError(t, err)

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, "/mp/collect", got[0].path)
	assert.Equal(t, "G-TEST", got[0].query["measurement_id"])
	assert.Equal(t, "secret", got[0].query["api_secret"])
	assert.Equal(t, GAClientID("mobile_client_1"), got[0].payload.ClientID)
	require.Len(t, got[0].payload.Events, 1)
	ev := got[0].payload.Events[0]
	assert.Equal(t, "appointment_confirmed", ev.Name)
	assert.Equal(t, true, ev.Params["commercial"])
	assert.Equal(t, "test", ev.Params["env"])
	assert.Equal(t, "lumina_server", ev.Params["source"])
	assert.EqualValues(t, 1, ev.Params["engagement_time_msec"])
	assert.NotContains(t, ev.Params, "debug_mode")
}

func TestGA4Client_DebugEndpoint(t *testing.T) {
	srv, requests := newGA4Server(t, http.StatusOK)
	client, err := NewGA4Client(GA4Config{MeasurementID: "G-TEST", APISecret: "secret", Debug: true})
	require.NoError(t, err)
	client.SetBaseURL(srv.URL)

	require.NoError(t, client.Send(context.Background(), "c", "chat_message", nil))
	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, "/debug/mp/collect", got[0].path)
	assert.EqualValues(t, 1, got[0].payload.Events[0].Params["debug_mode"])
}

func TestGA4Client_UpstreamError(t *testing.T) {
	srv, _ := newGA4Server(t, http.StatusBadRequest)
	client, err := NewGA4Client(GA4Config{MeasurementID: "G", APISecret: "s"})
	require.NoError(t, err)
	client.SetBaseURL(srv.URL)

	err = client.Send(context.Background(), "c", "x", nil)
	assert.ErrorContains(t, err, "unexpected status 400")

	err = client.Send(context.Background(), "c", "   ", nil)
	assert.Error(t, err)
}

func TestSanitizeEventName(t *testing.T) {
	assert.Equal(t, "appointment_confirmed", SanitizeEventName("appointment_confirmed"))
	assert.Equal(t, "cita_confirmada_", SanitizeEventName(" cita-confirmada! "))
	long := strings.Repeat("a", 60)
	assert.Len(t, SanitizeEventName(long), 40)
}

func TestGAClientID(t *testing.T) {
	id := GAClientID("mobile_client_1")
	assert.Equal(t, id, GAClientID("mobile_client_1"))
	assert.NotEqual(t, id, GAClientID("mobile_client_2"))
	parts := strings.Split(id, ".")
	require.Len(t, parts, 2)
	assert.NotEmpty(t, parts[0])
	assert.NotEmpty(t, parts[1])
	assert.NotContains(t, id, "mobile")
}

func TestGA4Emitter_SendsInBackground(t *testing.T) {
	srv, requests := newGA4Server(t, http.StatusNoContent)
	client, err := NewGA4Client(GA4Config{MeasurementID: "G", APISecret: "s"})
	require.NoError(t, err)
	client.SetBaseURL(srv.URL)

	emitter := NewGA4Emitter(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	emitter.Emit(ctx, Event{Name: "flow_started", ClientID: "c1", Params: map[string]any{"date_time": "2025-12-17, 19:00"}})
	cancel()
	emitter.Wait()

	got := requests()
	require.Len(t, got, 1, "a cancelled request context must not drop the event")
	assert.Equal(t, "flow_started", got[0].payload.Events[0].Name)
}

type recordingSender struct {
	clientID string
	name     string
	params   map[string]any
	err      error
}

func (s *recordingSender) Send(_ context.Context, clientID, name string, params map[string]any) error {
	s.clientID, s.name, s.params = clientID, name, params
	return s.err
}

func TestHandler_TrackGA4(t *testing.T) {
	tests := []struct {
		name   string
		sender Sender
		body   string
		want   int
	}{
		{"forwarded", &recordingSender{}, `{"clientId":"c1","event":"app_open","params":{"screen":"home"}}`, http.StatusOK},
		{"missing event", &recordingSender{}, `{"clientId":"c1"}`, http.StatusBadRequest},
		{"missing client", &recordingSender{}, `{"event":"x"}`, http.StatusBadRequest},
		{"bad json", &recordingSender{}, `{`, http.StatusBadRequest},
		{"upstream failure", &recordingSender{err: errors.New("boom")}, `{"clientId":"c1","event":"x"}`, http.StatusBadGateway},
		{"not configured", nil, `{"clientId":"c1","event":"x"}`, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.sender, nil)
			req := httptest.NewRequest(http.MethodPost, "/api/metrics/ga4", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.TrackGA4(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	sender := &recordingSender{}
	req := httptest.NewRequest(http.MethodPost, "/api/metrics/ga4", strings.NewReader(`{"clientId":" c1 ","event":"app_open","params":{"screen":"home"}}`))
	rec := httptest.NewRecorder()
	NewHandler(sender, nil).TrackGA4(rec, req)
	assert.Equal(t, "c1", sender.clientID)
	assert.Equal(t, "app_open", sender.name)
	assert.Equal(t, "home", sender.params["screen"])
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestHandler_TestEvent(t *testing.T) {
	sender := &recordingSender{}
	rec := httptest.NewRecorder()
	NewHandler(sender, nil).TestEvent(rec, httptest.NewRequest(http.MethodGet, "/api/ga-test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "debug_test_client", sender.clientID)
	assert.Equal(t, "ga_test_event", sender.name)

	rec = httptest.NewRecorder()
	NewHandler(nil, nil).TestEvent(rec, httptest.NewRequest(http.MethodGet, "/api/ga-test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMultiEmitter(t *testing.T) {
	var a, b countingEmitter
	MultiEmitter{&a, nil, &b}.Emit(context.Background(), Event{Name: "x"})
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
	NopEmitter{}.Emit(context.Background(), Event{})
	NewLogEmitter(nil).Emit(context.Background(), Event{Name: "x"})
}

type countingEmitter struct{ n int }

func (c *countingEmitter) Emit(context.Context, Event) { c.n++ }
