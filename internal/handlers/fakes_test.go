package handlers

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTimeline struct {
	appended  []string
	appendErr error

	recentRes []string
	recentErr error

	sinceCutoff time.Time
}

func (f *fakeTimeline) Append(ctx context.Context, serialized string, timestamp int64) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, serialized)
	return nil
}

func (f *fakeTimeline) Recent(ctx context.Context) ([]string, error) {
	return f.recentRes, f.recentErr
}

func (f *fakeTimeline) Since(ctx context.Context, cutoff time.Time) ([]string, error) {
	f.sinceCutoff = cutoff
	return f.recentRes, f.recentErr
}

type fakeArchive struct {
	persisted  int
	persistErr error
	sweeps     int
	status     string
}

func (f *fakeArchive) Persist(ctx context.Context, snapshot *models.MetricSnapshot) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted++
	return nil
}

func (f *fakeArchive) Sweep(ctx context.Context) {
	f.sweeps++
}

func (f *fakeArchive) Status(ctx context.Context) string {
	if f.status == "" {
		return "connected"
	}
	return f.status
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) error {
	return f.err
}
