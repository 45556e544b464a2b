package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
)

// ErrUnavailable indicates the archive could not serve a write. The hot
// path treats it as best-effort: logged, never rolled back against the
// rolling-window write that already succeeded.
var ErrUnavailable = errors.New("archive unavailable")

const archiveTable = "metrics_snapshots"

// sweepInterval throttles retention sweeps to one per wall-clock minute.
const sweepInterval = 60 * time.Second

// ArchiveDB is the slice of the database an Archive needs. *DB satisfies it.
type ArchiveDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	HealthCheck(ctx context.Context) error
}

// Archive persists snapshots to PostgreSQL with independent, age-based
// retention. A nil *Archive is the disabled collaborator: every method
// degrades to a no-op, so call sites never branch on configuration.
type Archive struct {
	db            ArchiveDB
	retentionDays int
	logger        *slog.Logger

	schemaMu    sync.Mutex
	schemaReady bool

	sweepMu   sync.Mutex
	lastSweep time.Time

	now func() time.Time
}

func NewArchive(db ArchiveDB, retentionDays int, logger *slog.Logger) *Archive {
	return &Archive{
		db:            db,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// ensureSchema creates the archive table and indexes exactly once per
// process lifetime. Create-if-absent, so concurrent processes are safe.
func (a *Archive) ensureSchema(ctx context.Context) error {
	a.schemaMu.Lock()
	defer a.schemaMu.Unlock()

	if a.schemaReady {
		return nil
	}

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				timestamp_utc TIMESTAMPTZ NOT NULL,
				epoch_seconds BIGINT NOT NULL,
				total_cpu_percent DOUBLE PRECISION NOT NULL,
				per_core_cpu_percent JSONB NOT NULL DEFAULT '[]'::jsonb,
				system_memory_total_mb DOUBLE PRECISION NOT NULL DEFAULT 0,
				system_memory_used_mb DOUBLE PRECISION NOT NULL DEFAULT 0,
				top_processes JSONB NOT NULL DEFAULT '[]'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, archiveTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_timestamp_utc ON %s (timestamp_utc DESC)`,
			archiveTable, archiveTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at DESC)`,
			archiveTable, archiveTable),
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure archive schema: %w", err)
		}
	}

	a.schemaReady = true
	return nil
}

// Persist inserts one snapshot row. Failures are surfaced as
// ErrUnavailable so the caller can log and move on; they never block or
// undo the hot-store write.
func (a *Archive) Persist(ctx context.Context, snapshot *models.MetricSnapshot) error {
	if a == nil {
		return nil
	}

	if err := a.ensureSchema(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	perCore, err := json.Marshal(snapshot.PerCoreCPUPercent)
	if err != nil {
		return fmt.Errorf("failed to encode per-core values: %w", err)
	}
	processes, err := json.Marshal(snapshot.TopProcesses)
	if err != nil {
		return fmt.Errorf("failed to encode process list: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			timestamp_utc,
			epoch_seconds,
			total_cpu_percent,
			per_core_cpu_percent,
			system_memory_total_mb,
			system_memory_used_mb,
			top_processes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, archiveTable)

	_, err = a.db.ExecContext(ctx, query,
		time.Unix(snapshot.Timestamp, 0).UTC(),
		snapshot.Timestamp,
		snapshot.TotalCPUPercent,
		perCore,
		snapshot.SystemMemoryTotalMB,
		snapshot.SystemMemoryUsedMB,
		processes,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Sweep deletes rows older than the configured day count. It runs at most
// once per sweepInterval; intermediate calls return immediately. Sweep
// failures are logged and swallowed: archival retention is best-effort
// and must never block ingestion.
func (a *Archive) Sweep(ctx context.Context) {
	if a == nil {
		return
	}

	a.sweepMu.Lock()
	if a.now().Sub(a.lastSweep) < sweepInterval {
		a.sweepMu.Unlock()
		return
	}
	a.lastSweep = a.now()
	a.sweepMu.Unlock()

	cutoff := a.now().AddDate(0, 0, -a.retentionDays)
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, archiveTable)

	result, err := a.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		a.logger.Warn("archive retention sweep failed", "error", err)
		return
	}
	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		a.logger.Info("archive retention sweep completed",
			"deleted_rows", deleted,
			"retention_days", a.retentionDays)
	}
}

// Status probes archive reachability for health reporting. It never
// returns an error; a nil receiver reports "disabled".
func (a *Archive) Status(ctx context.Context) string {
	if a == nil {
		return "disabled"
	}
	if err := a.db.HealthCheck(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
