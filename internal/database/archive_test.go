package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

type fakeResult struct {
	rows int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type fakeArchiveDB struct {
	queries   []string
	execErr   error
	healthErr error
}

func (f *fakeArchiveDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.queries = append(f.queries, query)
	return fakeResult{}, nil
}

func (f *fakeArchiveDB) HealthCheck(ctx context.Context) error {
	return f.healthErr
}

func (f *fakeArchiveDB) count(fragment string) int {
	n := 0
	for _, q := range f.queries {
		if strings.Contains(q, fragment) {
			n++
		}
	}
	return n
}

func testArchive(db ArchiveDB) *Archive {
	return NewArchive(db, 14, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func archivedSnapshot() *models.MetricSnapshot {
	return &models.MetricSnapshot{
		Timestamp:           1700000000,
		TotalCPUPercent:     42.5,
		PerCoreCPUPercent:   []float64{40, 45},
		SystemMemoryTotalMB: 16384,
		SystemMemoryUsedMB:  8192,
	}
}

func TestPersistEnsuresSchemaOnce(t *testing.T) {
	db := &fakeArchiveDB{}
	a := testArchive(db)

	if err := a.Persist(context.Background(), archivedSnapshot()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := a.Persist(context.Background(), archivedSnapshot()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := db.count("CREATE TABLE"); got != 1 {
		t.Errorf("Expected schema creation exactly once, got %d", got)
	}
	if got := db.count("INSERT INTO"); got != 2 {
		t.Errorf("Expected 2 inserts, got %d", got)
	}
}

func TestPersistSurfacesWriteFailure(t *testing.T) {
	db := &fakeArchiveDB{execErr: errors.New("connection refused")}
	a := testArchive(db)

	err := a.Persist(context.Background(), archivedSnapshot())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got: %v", err)
	}
}

func TestSweepThrottledToOncePerInterval(t *testing.T) {
	db := &fakeArchiveDB{}
	a := testArchive(db)
	now := time.Unix(1700000000, 0)
	a.now = func() time.Time { return now }

	a.Sweep(context.Background())
	a.Sweep(context.Background())

	if got := db.count("DELETE FROM"); got != 1 {
		t.Fatalf("Expected exactly 1 delete for back-to-back sweeps, got %d", got)
	}

	// Once the interval has passed, the sweep runs again
	now = now.Add(61 * time.Second)
	a.Sweep(context.Background())

	if got := db.count("DELETE FROM"); got != 2 {
		t.Errorf("Expected a second delete after the interval elapsed, got %d", got)
	}
}

func TestSweepSwallowsFailure(t *testing.T) {
	db := &fakeArchiveDB{execErr: errors.New("deadlock detected")}
	a := testArchive(db)

	// Must not panic or surface anything
	a.Sweep(context.Background())
}

func TestNilArchiveIsDisabledNoOp(t *testing.T) {
	var a *Archive

	if err := a.Persist(context.Background(), archivedSnapshot()); err != nil {
		t.Errorf("Expected nil archive Persist to no-op, got: %v", err)
	}
	a.Sweep(context.Background())

	if status := a.Status(context.Background()); status != "disabled" {
		t.Errorf("Expected nil archive status disabled, got %q", status)
	}
}

func TestStatusReflectsHealthCheck(t *testing.T) {
	healthy := testArchive(&fakeArchiveDB{})
	if status := healthy.Status(context.Background()); status != "connected" {
		t.Errorf("Expected connected, got %q", status)
	}

	down := testArchive(&fakeArchiveDB{healthErr: errors.New("refused")})
	if status := down.Status(context.Background()); status != "disconnected" {
		t.Errorf("Expected disconnected, got %q", status)
	}
}
