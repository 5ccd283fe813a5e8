package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "lumina"

// DialogMetrics exposes counters/histograms for the chat booking flow.
type DialogMetrics struct {
	messagesTotal   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	bookingOutcomes *prometheus.CounterVec
	extractionMiss  *prometheus.CounterVec
	handleLatency   *prometheus.HistogramVec
}

func NewDialogMetrics(reg prometheus.Registerer) *DialogMetrics {
	m := &DialogMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialog",
			Name:      "messages_total",
			Help:      "Chat messages handled, by dialog step and classified intent",
		}, []string{"step", "intent"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialog",
			Name:      "transitions_total",
			Help:      "Dialog step transitions",
		}, []string{"from", "to"}),
		bookingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialog",
			Name:      "booking_outcomes_total",
			Help:      "Appointment persistence attempts by outcome",
		}, []string{"outcome"}),
		extractionMiss: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dialog",
			Name:      "extraction_misses_total",
			Help:      "Messages where the expected date or time could not be parsed",
		}, []string{"step"}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dialog",
			Name:      "handle_latency_seconds",
			Help:      "Latency of handling one chat message",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.messagesTotal, m.transitions, m.bookingOutcomes, m.extractionMiss, m.handleLatency)
	return m
}

func (m *DialogMetrics) ObserveMessage(step, intent string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(step, intent).Inc()
}

func (m *DialogMetrics) ObserveTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveBooking records a persistence outcome: created, conflict or error.
func (m *DialogMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingOutcomes.WithLabelValues(outcome).Inc()
}

func (m *DialogMetrics) ObserveExtractionMiss(step string) {
	if m == nil {
		return
	}
	m.extractionMiss.WithLabelValues(step).Inc()
}

func (m *DialogMetrics) ObserveLatency(step string, seconds float64) {
	if m == nil {
		return
	}
	m.handleLatency.WithLabelValues(step).Observe(seconds)
}

// MessagingMetrics exposes counters/histograms for messaging transports.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound messaging webhooks",
		}, []string{"channel", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound message sends",
		}, []string{"channel", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of messaging webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(channel, status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *MessagingMetrics) ObserveWebhookLatency(channel string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(channel).Observe(seconds)
}
