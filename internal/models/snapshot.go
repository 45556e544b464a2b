package models

import "fmt"

// MaxTopProcesses caps the per-snapshot process list. Payloads exceeding
// the cap are rejected, never truncated.
const MaxTopProcesses = 12

// ProcessMetric describes resource usage of a single process at snapshot time.
type ProcessMetric struct {
	PID         int32   `json:"pid"`
	Name        string  `json:"name"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryMB    float64 `json:"memory_mb"`
	ThreadCount int32   `json:"thread_count,omitempty"`
	IOReadMB    float64 `json:"io_read_mb,omitempty"`
	IOWriteMB   float64 `json:"io_write_mb,omitempty"`
	HandleCount int32   `json:"handle_count,omitempty"`
}

// MetricSnapshot is one system-wide sample reported by an agent.
// Timestamp (epoch seconds) is the ordering and retention key.
type MetricSnapshot struct {
	Timestamp           int64           `json:"timestamp"`
	TotalCPUPercent     float64         `json:"total_cpu_percent"`
	PerCoreCPUPercent   []float64       `json:"per_core_cpu_percent"`
	SystemMemoryTotalMB float64         `json:"system_memory_total_mb"`
	SystemMemoryUsedMB  float64         `json:"system_memory_used_mb"`
	TopProcesses        []ProcessMetric `json:"top_processes"`
}

// ValidationError reports a schema violation in an incoming payload.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the snapshot against the payload invariants. It returns
// a *ValidationError describing the first violation found, or nil.
func (s *MetricSnapshot) Validate() error {
	if s.Timestamp <= 0 {
		return &ValidationError{Field: "timestamp", Reason: "must be a positive epoch value"}
	}
	if s.TotalCPUPercent < 0 || s.TotalCPUPercent > 100 {
		return &ValidationError{Field: "total_cpu_percent", Reason: "must be within [0,100]"}
	}
	for i, core := range s.PerCoreCPUPercent {
		if core < 0 || core > 100 {
			return &ValidationError{
				Field:  fmt.Sprintf("per_core_cpu_percent[%d]", i),
				Reason: "must be within [0,100]",
			}
		}
	}
	if s.SystemMemoryTotalMB < 0 {
		return &ValidationError{Field: "system_memory_total_mb", Reason: "must be non-negative"}
	}
	if s.SystemMemoryUsedMB < 0 {
		return &ValidationError{Field: "system_memory_used_mb", Reason: "must be non-negative"}
	}
	if len(s.TopProcesses) > MaxTopProcesses {
		return &ValidationError{
			Field:  "top_processes",
			Reason: fmt.Sprintf("at most %d entries allowed, got %d", MaxTopProcesses, len(s.TopProcesses)),
		}
	}
	for i := range s.TopProcesses {
		if err := s.TopProcesses[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProcessMetric) validate(index int) error {
	field := func(name string) string {
		return fmt.Sprintf("top_processes[%d].%s", index, name)
	}
	if p.CPUPercent < 0 {
		return &ValidationError{Field: field("cpu_percent"), Reason: "must be non-negative"}
	}
	if p.MemoryMB < 0 {
		return &ValidationError{Field: field("memory_mb"), Reason: "must be non-negative"}
	}
	if p.ThreadCount < 0 {
		return &ValidationError{Field: field("thread_count"), Reason: "must be non-negative"}
	}
	if p.IOReadMB < 0 {
		return &ValidationError{Field: field("io_read_mb"), Reason: "must be non-negative"}
	}
	if p.IOWriteMB < 0 {
		return &ValidationError{Field: field("io_write_mb"), Reason: "must be non-negative"}
	}
	if p.HandleCount < 0 {
		return &ValidationError{Field: field("handle_count"), Reason: "must be non-negative"}
	}
	return nil
}
