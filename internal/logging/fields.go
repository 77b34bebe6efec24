package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldMediaID is the standardized structured logging key for media task identifiers.
	FieldMediaID = "media_id"
	// FieldWorker is the standardized structured logging key for worker display names.
	FieldWorker = "worker"
	// FieldStatus is the standardized structured logging key for task statuses.
	FieldStatus = "status"
	// FieldEventType is the standardized structured logging key for machine-readable event tags.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator next steps.
	FieldErrorHint = "error_hint"
)
