package handlers

import (
	"context"
	"time"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

// TimelineStore is the rolling-window hot store a handler writes to and
// reads from. Implemented by *timeline.Store.
type TimelineStore interface {
	Append(ctx context.Context, serialized string, timestamp int64) error
	Recent(ctx context.Context) ([]string, error)
	Since(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Archiver is the optional durable sink. A disabled archive (nil
// *database.Archive) no-ops every call and reports "disabled".
type Archiver interface {
	Persist(ctx context.Context, snapshot *models.MetricSnapshot) error
	Sweep(ctx context.Context)
	Status(ctx context.Context) string
}

// Pinger probes hot-store reachability for health reporting.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Subscriber attaches to a live channel and delivers published messages
// in order until ctx is cancelled or the channel fails.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, fn func(message string)) error
}
