package models

// AlertEvent is emitted once on the rising edge of a sustained rule breach.
// Immutable once created. The ID keeps two alerts with otherwise identical
// content distinct in the timeline.
type AlertEvent struct {
	ID           string  `json:"id"`
	Timestamp    int64   `json:"timestamp"`
	Rule         string  `json:"rule"`
	Severity     string  `json:"severity"`
	Message      string  `json:"message"`
	CurrentValue float64 `json:"current_value"`
	Threshold    float64 `json:"threshold"`
}

// SeverityWarning is the severity of the built-in CPU rule's events.
const SeverityWarning = "warning"
