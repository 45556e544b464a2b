package timeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates the hot store could not serve the operation.
// Callers surface it for retry with backoff; it is never retried here.
var ErrUnavailable = errors.New("hot store unavailable")

// Backend is the slice of the hot-store client a timeline needs.
type Backend interface {
	TimelineAdd(ctx context.Context, key, channel, member string, score, minScore, ttlSeconds int64) error
	TimelineRange(ctx context.Context, key string, minScore int64) ([]string, error)
}

// Store is one rolling time window over a sorted timeline: serialized
// records scored by their epoch-second timestamp, pruned to a trailing
// retention duration on every write, with the whole structure expiring
// at twice the retention if writes stop.
type Store struct {
	backend   Backend
	key       string
	channel   string
	retention time.Duration

	now func() time.Time
}

func New(backend Backend, key, channel string, retentionSeconds int) *Store {
	return &Store{
		backend:   backend,
		key:       key,
		channel:   channel,
		retention: time.Duration(retentionSeconds) * time.Second,
		now:       time.Now,
	}
}

// Append writes one serialized record scored by its timestamp, prunes the
// window, refreshes the self-expiry, and publishes the record to the
// timeline's live channel.
func (s *Store) Append(ctx context.Context, serialized string, timestamp int64) error {
	minScore := s.now().Add(-s.retention).Unix()
	ttl := int64(2 * s.retention / time.Second)

	if err := s.backend.TimelineAdd(ctx, s.key, s.channel, serialized, timestamp, minScore, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Recent returns all serialized records within the store's own retention
// window, in timestamp order.
func (s *Store) Recent(ctx context.Context) ([]string, error) {
	return s.Since(ctx, s.now().Add(-s.retention))
}

// Since returns all serialized records with timestamp >= cutoff, in
// timestamp order. Used for ad-hoc lookbacks narrower than retention.
func (s *Store) Since(ctx context.Context, cutoff time.Time) ([]string, error) {
	raw, err := s.backend.TimelineRange(ctx, s.key, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return raw, nil
}
