// Package dialog runs the appointment booking conversation: it classifies
// each message, walks the per-client state machine and books the slot.
package dialog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/myclarix/lumina/internal/appointments"
	"github.com/myclarix/lumina/internal/extract"
	"github.com/myclarix/lumina/internal/intent"
	"github.com/myclarix/lumina/internal/observability/metrics"
	"github.com/myclarix/lumina/internal/telemetry"
	"github.com/myclarix/lumina/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidInput is returned when the client id or message is blank.
var ErrInvalidInput = errors.New("dialog: clientId and message are required")

// AppointmentStore is the slice of the appointments repository the dialog needs.
type AppointmentStore interface {
	Create(ctx context.Context, clientID string, at time.Time, purpose string) (*appointments.Appointment, error)
	FindConflicting(ctx context.Context, clientID string, at time.Time) (*appointments.Appointment, error)
	List(ctx context.Context, clientID string) ([]*appointments.Appointment, error)
}

// Replier answers messages that are not part of a booking flow.
type Replier interface {
	Reply(ctx context.Context, clientID, message, mode string) (string, error)
}

// Inbound is one chat message from a client.
type Inbound struct {
	ClientID string
	Message  string
	Mode     string
}

// Result is the reply to an inbound message. Appointment is set only when
// this message booked one.
type Result struct {
	Reply       string                    `json:"reply"`
	Appointment *appointments.Appointment `json:"appointment,omitempty"`
	Step        Step                      `json:"-"`
	Intent      intent.Intent             `json:"-"`
}

// Options configures optional Engine collaborators.
type Options struct {
	Replier     Replier
	Emitter     telemetry.Emitter
	Metrics     *metrics.DialogMetrics
	Logger      *logging.Logger
	DefaultHour int
	Now         func() time.Time
}

// Engine is the booking state machine. It is safe for concurrent use;
// messages for the same client are processed one at a time.
type Engine struct {
	states    StateStore
	repo      AppointmentStore
	replier   Replier
	emitter   telemetry.Emitter
	metrics   *metrics.DialogMetrics
	logger    *logging.Logger
	extractor extract.DateTimeExtractor
	now       func() time.Time
	locks     *keyedMutex
	tracer    trace.Tracer
}

func NewEngine(states StateStore, repo AppointmentStore, opts Options) *Engine {
	if states == nil {
		panic("dialog: state store required")
	}
	if repo == nil {
		panic("dialog: appointment store required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Emitter == nil {
		opts.Emitter = telemetry.NopEmitter{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		states:    states,
		repo:      repo,
		replier:   opts.Replier,
		emitter:   opts.Emitter,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		extractor: extract.DateTimeExtractor{DefaultHour: opts.DefaultHour},
		now:       opts.Now,
		locks:     newKeyedMutex(),
		tracer:    otel.Tracer("lumina.internal.dialog"),
	}
}

// outcome is what a step handler decided. A nil next leaves the stored
// state untouched.
type outcome struct {
	reply string
	appt  *appointments.Appointment
	next  *State
}

func stay(reply string) outcome { return outcome{reply: reply} }

func moveTo(reply string, next State) outcome { return outcome{reply: reply, next: &next} }

func resetTo(reply string) outcome {
	idle := IdleState()
	return outcome{reply: reply, next: &idle}
}

// HandleMessage processes one message and returns the reply. Parse,
// conflict and storage failures become conversational replies; the only
// error is ErrInvalidInput.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (*Result, error) {
	clientID := strings.TrimSpace(in.ClientID)
	message := strings.TrimSpace(in.Message)
	if clientID == "" || message == "" {
		return nil, ErrInvalidInput
	}
	in.ClientID, in.Message = clientID, message

	ctx, span := e.tracer.Start(ctx, "dialog.handle_message")
	defer span.End()
	span.SetAttributes(attribute.String("lumina.client_id", clientID))

	unlock := e.locks.Lock(clientID)
	defer unlock()

	started := time.Now()
	state, err := e.states.Get(ctx, clientID)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("failed to load dialog state", "client_id", clientID, "error", err)
		return &Result{Reply: replyUnavailable, Step: StepIdle, Intent: intent.Other}, nil
	}

	kind := intent.Classify(message)
	now := e.now()
	span.SetAttributes(
		attribute.String("lumina.dialog_step", string(state.Step)),
		attribute.String("lumina.intent", string(kind)),
	)
	e.metrics.ObserveMessage(string(state.Step), string(kind))

	var out outcome
	switch state.Step {
	case StepIdle, "":
		out = e.onIdle(ctx, in, kind, now)
	case StepAwaitingPurpose:
		out = e.onAwaitingPurpose(ctx, in, state)
	case StepAwaitingConfirm:
		out = e.onAwaitingConfirm(ctx, in, state, kind)
	case StepAwaitingNewTime:
		out = e.onAwaitingNewTime(ctx, in, state, kind, now)
	default:
		e.logger.Warn("unknown dialog step, resetting", "client_id", clientID, "step", state.Step)
		out = resetTo(replyLostContext)
	}

	step := state.Step
	if out.next != nil {
		if err := e.commit(ctx, clientID, *out.next); err != nil {
			span.RecordError(err)
			e.logger.Error("failed to save dialog state", "client_id", clientID, "error", err)
		} else {
			step = out.next.Step
		}
	}
	if step == "" {
		step = StepIdle
	}
	e.metrics.ObserveTransition(string(state.Step), string(step))
	e.metrics.ObserveLatency(string(state.Step), time.Since(started).Seconds())

	return &Result{Reply: out.reply, Appointment: out.appt, Step: step, Intent: kind}, nil
}

func (e *Engine) commit(ctx context.Context, clientID string, next State) error {
	if next.Step == StepIdle {
		return e.states.Reset(ctx, clientID)
	}
	return e.states.Set(ctx, clientID, next)
}

func (e *Engine) onIdle(ctx context.Context, in Inbound, kind intent.Intent, now time.Time) outcome {
	switch kind {
	case intent.CreateAppointment:
		dt, ok := e.extractor.Extract(in.Message, now)
		if !ok {
			e.metrics.ObserveExtractionMiss(string(StepIdle))
			return stay(replyAskDateTime)
		}
		at := dt.Time
		e.emit(ctx, EventFlowStarted, in.ClientID, map[string]any{"date_time": extract.FormatDateTime(at)})
		if purpose, found := extract.ExtractPurpose(in.Message); found {
			return moveTo(replyDetected(at, purpose), awaiting(StepAwaitingConfirm, at, purpose))
		}
		return moveTo(replyAskPurpose(at), awaiting(StepAwaitingPurpose, at, ""))

	case intent.ListAppointments:
		return e.listUpcoming(ctx, in.ClientID, now)
	}
	return stay(e.delegate(ctx, in))
}

func (e *Engine) onAwaitingPurpose(ctx context.Context, in Inbound, state State) outcome {
	at, ok := state.pending()
	if !ok {
		e.logger.Warn("dialog state missing pending date", "client_id", in.ClientID, "step", state.Step)
		return resetTo(replyAskDateFirst)
	}
	purpose := extract.TruncatePurpose(in.Message)
	return moveTo(replyPurposeStored(at, purpose), awaiting(StepAwaitingConfirm, at, purpose))
}

func (e *Engine) onAwaitingConfirm(ctx context.Context, in Inbound, state State, kind intent.Intent) outcome {
	at, ok := state.pending()
	if !ok {
		e.logger.Warn("dialog state missing pending date", "client_id", in.ClientID, "step", state.Step)
		return resetTo(replyLostContext)
	}

	switch kind {
	case intent.ChangeDay:
		e.emit(ctx, EventFlowCancelled, in.ClientID, map[string]any{"reason": "change_day"})
		return resetTo(replyChangeDay)

	case intent.ChangeTime:
		return moveTo(replyAskNewTime(at), awaiting(StepAwaitingNewTime, at, state.PendingPurpose))

	case intent.Affirmative:
		appt, err := e.repo.Create(ctx, in.ClientID, at, state.PendingPurpose)
		switch {
		case err == nil:
			e.metrics.ObserveBooking("created")
			e.emit(ctx, EventConfirmed, in.ClientID, map[string]any{
				"appointment_id": appt.ID,
				"date_time":      extract.FormatDateTime(appt.DateTime),
				"commercial":     isCommercial(appt.Purpose),
			})
			e.logger.Info("appointment booked", "client_id", in.ClientID, "appointment_id", appt.ID)
			out := resetTo(replyConfirmed(appt))
			out.appt = appt
			return out
		case errors.Is(err, appointments.ErrConflict):
			e.metrics.ObserveBooking("conflict")
			e.emit(ctx, EventConflict, in.ClientID, map[string]any{"date_time": extract.FormatDateTime(at)})
			return moveTo(replySlotTaken(at), awaiting(StepAwaitingNewTime, at, state.PendingPurpose))
		default:
			e.metrics.ObserveBooking("error")
			e.logger.Error("failed to persist appointment", "client_id", in.ClientID, "error", err)
			return stay(replySaveFailed)
		}

	case intent.Negative:
		e.emit(ctx, EventFlowCancelled, in.ClientID, map[string]any{"reason": "declined"})
		return resetTo(replyCancelled)
	}
	return stay(replyReconfirm)
}

func (e *Engine) onAwaitingNewTime(ctx context.Context, in Inbound, state State, kind intent.Intent, now time.Time) outcome {
	at, ok := state.pending()
	if !ok {
		e.logger.Warn("dialog state missing pending date", "client_id", in.ClientID, "step", state.Step)
		return resetTo(replyLostContext)
	}

	dt, found := e.extractor.Extract(in.Message, now)
	if !found || !dt.HasTime {
		if kind == intent.Negative {
			e.emit(ctx, EventFlowCancelled, in.ClientID, map[string]any{"reason": "declined"})
			return resetTo(replyCancelled)
		}
		e.metrics.ObserveExtractionMiss(string(StepAwaitingNewTime))
		return stay(replyRepeatNewTime(at))
	}

	// Only the clock time changes; the day stays the one already agreed.
	merged := time.Date(at.Year(), at.Month(), at.Day(), dt.Time.Hour(), dt.Time.Minute(), 0, 0, at.Location())

	existing, err := e.repo.FindConflicting(ctx, in.ClientID, merged)
	if err != nil {
		e.logger.Warn("slot pre-check failed", "client_id", in.ClientID, "error", err)
	} else if existing != nil {
		return stay(replySlotTaken(merged))
	}

	e.emit(ctx, EventTimeChanged, in.ClientID, map[string]any{"date_time": extract.FormatDateTime(merged)})
	return moveTo(replyRescheduled(merged, state.PendingPurpose), awaiting(StepAwaitingConfirm, merged, state.PendingPurpose))
}

func (e *Engine) listUpcoming(ctx context.Context, clientID string, now time.Time) outcome {
	list, err := e.repo.List(ctx, clientID)
	if err != nil {
		e.logger.Error("failed to list appointments", "client_id", clientID, "error", err)
		return stay(replyUnavailable)
	}
	upcoming := make([]*appointments.Appointment, 0, len(list))
	for _, appt := range list {
		if appt.Status == appointments.StatusConfirmed && !appt.DateTime.Before(now) {
			upcoming = append(upcoming, appt)
		}
	}
	e.emit(ctx, EventListViewed, clientID, map[string]any{"count": len(upcoming)})
	return stay(replyUpcoming(upcoming))
}

func (e *Engine) delegate(ctx context.Context, in Inbound) string {
	if e.replier == nil {
		return replyAssistantDown
	}
	text, err := e.replier.Reply(ctx, in.ClientID, in.Message, in.Mode)
	if err != nil {
		e.logger.Warn("assistant reply failed", "client_id", in.ClientID, "error", err)
		return replyAssistantDown
	}
	if strings.TrimSpace(text) == "" {
		return replyAssistantDown
	}
	return text
}

func (e *Engine) emit(ctx context.Context, name, clientID string, params map[string]any) {
	e.emitter.Emit(ctx, telemetry.Event{Name: name, ClientID: clientID, Params: params})
}

// Reset clears a client's dialog state, e.g. after booking through the
// appointments API.
func (e *Engine) Reset(ctx context.Context, clientID string) error {
	unlock := e.locks.Lock(clientID)
	defer unlock()
	return e.states.Reset(ctx, clientID)
}
