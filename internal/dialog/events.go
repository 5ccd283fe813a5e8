package dialog

// Telemetry event names emitted at booking milestones.
const (
	EventFlowStarted   = "appointment_flow_started"
	EventConfirmed     = "appointment_confirmed"
	EventConflict      = "appointment_conflict"
	EventTimeChanged   = "appointment_time_changed"
	EventFlowCancelled = "appointment_flow_cancelled"
	EventListViewed    = "appointment_list_viewed"
)
