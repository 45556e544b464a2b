package alerts

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

// RuleCPUHigh is the built-in threshold-duration rule identifier.
const RuleCPUHigh = "cpu_high"

// Evaluator is the stateful engine for the CPU threshold-duration rule.
// It is edge-triggered: one AlertEvent per sustained excursion above the
// threshold, never one per snapshot while the breach persists.
//
// State is (windowStart, active): idle when windowStart is zero,
// accumulating once the value first crosses the threshold, active after
// the breach has been sustained for the configured duration. Any value
// below the threshold resets to idle unconditionally.
type Evaluator struct {
	threshold       float64
	durationSeconds int64

	mu          sync.Mutex
	windowStart int64 // 0 = unset
	active      bool
}

func NewEvaluator(threshold float64, durationSeconds int64) *Evaluator {
	return &Evaluator{
		threshold:       threshold,
		durationSeconds: durationSeconds,
	}
}

// Evaluate advances the state machine with one snapshot and returns the
// AlertEvent for a rising edge, or nil. Successive evaluations are
// serialized; the lock is never held across I/O.
func (e *Evaluator) Evaluate(snapshot *models.MetricSnapshot) *models.AlertEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	value := snapshot.TotalCPUPercent

	if value < e.threshold {
		e.windowStart = 0
		e.active = false
		return nil
	}

	if e.windowStart == 0 {
		e.windowStart = snapshot.Timestamp
	}

	elapsed := snapshot.Timestamp - e.windowStart
	if elapsed < e.durationSeconds || e.active {
		return nil
	}

	e.active = true
	return &models.AlertEvent{
		ID:        uuid.NewString(),
		Timestamp: snapshot.Timestamp,
		Rule:      RuleCPUHigh,
		Severity:  models.SeverityWarning,
		Message: fmt.Sprintf("CPU usage %.1f%% has exceeded %.1f%% for %d seconds",
			value, e.threshold, elapsed),
		CurrentValue: value,
		Threshold:    e.threshold,
	}
}
