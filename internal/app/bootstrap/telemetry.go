package bootstrap

import (
	appconfig "github.com/myclarix/lumina/internal/config"
	"github.com/myclarix/lumina/internal/telemetry"
	"github.com/myclarix/lumina/pkg/logging"
)

// Analytics bundles the GA4 pieces shared by the dialog and the HTTP layer.
type Analytics struct {
	// Client is nil when GA4 credentials are missing.
	Client *telemetry.GA4Client
	// Emitter receives dialog milestones; never nil.
	Emitter telemetry.Emitter
	ga4     *telemetry.GA4Emitter
}

// Sender returns the client as a telemetry.Sender, nil when unconfigured.
func (a *Analytics) Sender() telemetry.Sender {
	if a == nil || a.Client == nil {
		return nil
	}
	return a.Client
}

// Wait blocks until queued GA4 sends have finished.
func (a *Analytics) Wait() {
	if a != nil && a.ga4 != nil {
		a.ga4.Wait()
	}
}

// BuildAnalytics logs every milestone and, when ANALYTICS_ENABLED and GA4
// credentials are present, forwards them to GA4 as well.
func BuildAnalytics(cfg *appconfig.Config, logger *logging.Logger) *Analytics {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Analytics{Emitter: telemetry.NewLogEmitter(logger)}
	if cfg == nil {
		return a
	}

	client, err := telemetry.NewGA4Client(telemetry.GA4Config{
		MeasurementID: cfg.GA4MeasurementID,
		APISecret:     cfg.GA4APISecret,
		Debug:         cfg.GA4Debug,
		Env:           cfg.Env,
	})
	if err != nil {
		logger.Info("GA4 disabled", "reason", err)
		return a
	}
	a.Client = client

	if cfg.AnalyticsEnabled {
		a.ga4 = telemetry.NewGA4Emitter(client, logger)
		a.Emitter = telemetry.MultiEmitter{a.Emitter, a.ga4}
		logger.Info("GA4 milestone forwarding enabled", "debug", cfg.GA4Debug)
	}
	return a
}
