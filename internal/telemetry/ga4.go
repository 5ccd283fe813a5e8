package telemetry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/myclarix/lumina/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultGA4Base     = "https://www.google-analytics.com"
	defaultHTTPTimeout = 5 * time.Second
	maxEventNameLength = 40
)

// ErrGA4NotConfigured is returned when the measurement id or secret is missing.
var ErrGA4NotConfigured = errors.New("telemetry: GA4 measurement id and api secret are required")

// GA4Config configures the Measurement Protocol client.
type GA4Config struct {
	MeasurementID string
	APISecret     string
	// Debug sends to /debug/mp/collect and tags events with debug_mode.
	Debug bool
	// Env is attached to every event as the "env" param.
	Env string
}

// GA4Client posts events to the GA4 Measurement Protocol.
type GA4Client struct {
	cfg        GA4Config
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewGA4Client(cfg GA4Config) (*GA4Client, error) {
	if strings.TrimSpace(cfg.MeasurementID) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, ErrGA4NotConfigured
	}
	return &GA4Client{
		cfg:        cfg,
		baseURL:    defaultGA4Base,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		tracer:     otel.Tracer("lumina.internal.telemetry.ga4"),
	}, nil
}

// SetBaseURL overrides the collection host (useful for testing).
func (c *GA4Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

type ga4Payload struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

type ga4Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Send delivers one event. clientID is pseudonymised before leaving the process.
func (c *GA4Client) Send(ctx context.Context, clientID, name string, params map[string]any) error {
	eventName := SanitizeEventName(name)
	if eventName == "" {
		return errors.New("telemetry: event name required")
	}

	ctx, span := c.tracer.Start(ctx, "telemetry.ga4.send", trace.WithAttributes(attribute.String("ga4.event", eventName)))
	defer span.End()

	merged := map[string]any{"source": "lumina_server"}
	if c.cfg.Env != "" {
		merged["env"] = c.cfg.Env
	}
	for k, v := range params {
		merged[k] = v
	}
	if c.cfg.Debug {
		merged["debug_mode"] = 1
	}
	merged["engagement_time_msec"] = 1

	body, err := json.Marshal(ga4Payload{
		ClientID: GAClientID(clientID),
		Events:   []ga4Event{{Name: eventName, Params: merged}},
	})
	if err != nil {
		return fmt.Errorf("telemetry: marshal ga4 payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telemetry: create ga4 request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("telemetry: send ga4 event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("telemetry: ga4 unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		span.RecordError(err)
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *GA4Client) endpoint() string {
	path := "/mp/collect"
	if c.cfg.Debug {
		path = "/debug/mp/collect"
	}
	q := url.Values{}
	q.Set("measurement_id", c.cfg.MeasurementID)
	q.Set("api_secret", c.cfg.APISecret)
	return c.baseURL + path + "?" + q.Encode()
}

var invalidEventChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeEventName keeps letters, digits and underscores, capped at 40 characters.
func SanitizeEventName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > maxEventNameLength {
		name = name[:maxEventNameLength]
	}
	return invalidEventChars.ReplaceAllString(name, "_")
}

// GAClientID derives a stable "<a>.<b>" GA client id from the first 8 bytes
// of sha256(clientID).
func GAClientID(clientID string) string {
	sum := sha256.Sum256([]byte(clientID))
	a := binary.BigEndian.Uint32(sum[0:4])
	b := binary.BigEndian.Uint32(sum[4:8])
	return strconv.FormatUint(uint64(a), 10) + "." + strconv.FormatUint(uint64(b), 10)
}

// GA4Emitter forwards events to GA4 in the background.
type GA4Emitter struct {
	client  *GA4Client
	timeout time.Duration
	logger  *logging.Logger
	wg      sync.WaitGroup
}

func NewGA4Emitter(client *GA4Client, logger *logging.Logger) *GA4Emitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &GA4Emitter{client: client, timeout: defaultHTTPTimeout, logger: logger}
}

// Emit returns immediately; the send outlives the caller's request.
func (e *GA4Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil || e.client == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, e.timeout)
		defer cancel()
		if err := e.client.Send(sendCtx, ev.ClientID, ev.Name, ev.Params); err != nil {
			e.logger.Warn("ga4 event not delivered", "event", ev.Name, "error", err)
		}
	}()
}

// Wait blocks until in-flight sends finish. Used on shutdown.
func (e *GA4Emitter) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}
