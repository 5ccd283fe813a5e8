// Package telemetry forwards product analytics events, mainly to Google
// Analytics 4 via the Measurement Protocol.
package telemetry

import (
	"context"

	"github.com/myclarix/lumina/pkg/logging"
)

// Event is a named analytics event about one client.
type Event struct {
	Name     string
	ClientID string
	Params   map[string]any
}

// Emitter delivers events. Implementations must not block the caller on
// network I/O and must never fail the calling operation.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// NopEmitter discards events.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}

// MultiEmitter fans an event out to every emitter.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, ev)
		}
	}
}

// LogEmitter writes events to the structured log at debug level.
type LogEmitter struct {
	logger *logging.Logger
}

func NewLogEmitter(logger *logging.Logger) *LogEmitter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) Emit(ctx context.Context, ev Event) {
	e.logger.DebugContext(ctx, "telemetry event", "event", ev.Name, "client_id", ev.ClientID, "params", ev.Params)
}
