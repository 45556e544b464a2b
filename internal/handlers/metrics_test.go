package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/alerts"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/models"
	"github.com/MrYoniSade/RealTimeSystemMetricsPlatform/internal/ratelimit"
)

type ingestFixture struct {
	metrics    *fakeTimeline
	alertStore *fakeTimeline
	archive    *fakeArchive
	router     *gin.Engine
}

func newIngestFixture(agentToken string, rateLimit int) *ingestFixture {
	f := &ingestFixture{
		metrics:    &fakeTimeline{},
		alertStore: &fakeTimeline{},
		archive:    &fakeArchive{},
	}

	h := NewMetricsHandler(
		f.metrics,
		f.alertStore,
		f.archive,
		alerts.NewEvaluator(90, 10),
		ratelimit.New(rateLimit),
		agentToken,
		testLogger(),
	)

	f.router = gin.New()
	f.router.POST("/ingest/metrics", h.IngestMetrics)
	f.router.GET("/api/metrics/recent", h.GetRecentMetrics)
	return f
}

func snapshotBody(ts int64, cpu float64) string {
	return fmt.Sprintf(`{
		"timestamp": %d,
		"total_cpu_percent": %v,
		"per_core_cpu_percent": [%v],
		"system_memory_total_mb": 16384,
		"system_memory_used_mb": 8192,
		"top_processes": [{"pid": 1, "name": "init", "cpu_percent": 0.1, "memory_mb": 4}]
	}`, ts, cpu, cpu)
}

func postSnapshot(router *gin.Engine, body, token string) *httptest.ResponseRecorder {
	return postSnapshotFrom(router, body, token, "")
}

func postSnapshotFrom(router *gin.Engine, body, token, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ingest/metrics", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(agentTokenHeader, token)
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestAcceptsValidSnapshot(t *testing.T) {
	f := newIngestFixture("", 100)

	w := postSnapshot(f.router, snapshotBody(1700000000, 42.5), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["status"] != "accepted" {
		t.Errorf("Expected status accepted, got %v", resp["status"])
	}
	if resp["timestamp"] != float64(1700000000) {
		t.Errorf("Expected accepted timestamp echoed back, got %v", resp["timestamp"])
	}

	if len(f.metrics.appended) != 1 {
		t.Fatalf("Expected 1 hot-store write, got %d", len(f.metrics.appended))
	}
	if f.archive.persisted != 1 {
		t.Errorf("Expected 1 archive persist, got %d", f.archive.persisted)
	}
	if f.archive.sweeps != 1 {
		t.Errorf("Expected 1 sweep invocation, got %d", f.archive.sweeps)
	}
}

func TestIngestRejectsMalformedJSON(t *testing.T) {
	f := newIngestFixture("", 100)

	w := postSnapshot(f.router, `{"timestamp": "not a number"`, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", w.Code)
	}
	if len(f.metrics.appended) != 0 {
		t.Error("Expected no hot-store write for malformed payload")
	}
}

func TestIngestRejectsSchemaViolations(t *testing.T) {
	oversized := make([]string, models.MaxTopProcesses+1)
	for i := range oversized {
		oversized[i] = fmt.Sprintf(`{"pid": %d, "name": "p", "cpu_percent": 1, "memory_mb": 1}`, i)
	}

	cases := []struct {
		name string
		body string
	}{
		{"cpu above 100", snapshotBody(1700000000, 101)},
		{"oversized process list", fmt.Sprintf(`{
			"timestamp": 1700000000,
			"total_cpu_percent": 10,
			"top_processes": [%s]
		}`, strings.Join(oversized, ","))},
		{"negative process memory", `{
			"timestamp": 1700000000,
			"total_cpu_percent": 10,
			"top_processes": [{"pid": 1, "name": "p", "cpu_percent": 1, "memory_mb": -1}]
		}`},
	}

	for _, tc := range cases {
		f := newIngestFixture("", 100)
		w := postSnapshot(f.router, tc.body, "")
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", tc.name, w.Code)
		}
		if len(f.metrics.appended) != 0 {
			t.Errorf("%s: expected no hot-store write", tc.name)
		}
	}
}

func TestIngestRequiresTokenWhenConfigured(t *testing.T) {
	f := newIngestFixture("secret", 100)

	if w := postSnapshot(f.router, snapshotBody(1700000000, 10), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for missing token, got %d", w.Code)
	}
	if w := postSnapshot(f.router, snapshotBody(1700000000, 10), "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for wrong token, got %d", w.Code)
	}
	if w := postSnapshot(f.router, snapshotBody(1700000000, 10), "secret"); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with correct token, got %d", w.Code)
	}
}

func TestIngestSkipsTokenCheckWhenUnconfigured(t *testing.T) {
	f := newIngestFixture("", 100)

	if w := postSnapshot(f.router, snapshotBody(1700000000, 10), ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200 without token when none configured, got %d", w.Code)
	}
}

func TestIngestEnforcesRateLimit(t *testing.T) {
	f := newIngestFixture("", 2)

	for i := 0; i < 2; i++ {
		if w := postSnapshot(f.router, snapshotBody(1700000000+int64(i), 10), ""); w.Code != http.StatusOK {
			t.Fatalf("Expected request %d to pass, got %d", i+1, w.Code)
		}
	}
	if w := postSnapshot(f.router, snapshotBody(1700000003, 10), ""); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 over the quota, got %d", w.Code)
	}
}

func TestRateLimitKeyedByConnectionNotToken(t *testing.T) {
	f := newIngestFixture("secret", 1)

	// Two agents sharing the fleet-wide token report from different
	// addresses; each has its own per-minute quota.
	if w := postSnapshotFrom(f.router, snapshotBody(1700000000, 10), "secret", "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for first agent, got %d", w.Code)
	}
	if w := postSnapshotFrom(f.router, snapshotBody(1700000001, 10), "secret", "10.0.0.2:5678"); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for second agent on its own connection, got %d", w.Code)
	}

	// The same connection going again is over its quota
	if w := postSnapshotFrom(f.router, snapshotBody(1700000002, 10), "secret", "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for the first agent's second request, got %d", w.Code)
	}
}

func TestIngestHotStoreFailureIsFatal(t *testing.T) {
	f := newIngestFixture("", 100)
	f.metrics.appendErr = errors.New("connection refused")

	w := postSnapshot(f.router, snapshotBody(1700000000, 10), "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
	if f.archive.persisted != 0 {
		t.Error("Expected no archive persist after a failed hot-store write")
	}
}

func TestIngestSurvivesArchiveFailure(t *testing.T) {
	f := newIngestFixture("", 100)
	f.archive.persistErr = errors.New("postgres down")

	w := postSnapshot(f.router, snapshotBody(1700000000, 10), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 despite archive failure, got %d", w.Code)
	}
	if len(f.metrics.appended) != 1 {
		t.Error("Expected the snapshot to land in the rolling window regardless")
	}
}

func TestIngestEmitsAlertToStore(t *testing.T) {
	f := newIngestFixture("", 100)

	// Sustained breach across three snapshots triggers once
	postSnapshot(f.router, snapshotBody(1700000000, 95), "")
	postSnapshot(f.router, snapshotBody(1700000005, 95), "")
	postSnapshot(f.router, snapshotBody(1700000011, 95), "")

	if len(f.alertStore.appended) != 1 {
		t.Fatalf("Expected exactly 1 alert in the store, got %d", len(f.alertStore.appended))
	}

	var event models.AlertEvent
	if err := json.Unmarshal([]byte(f.alertStore.appended[0]), &event); err != nil {
		t.Fatalf("Failed to parse stored alert: %v", err)
	}
	if event.Rule != alerts.RuleCPUHigh {
		t.Errorf("Expected rule %q, got %q", alerts.RuleCPUHigh, event.Rule)
	}
}

func TestIngestSurvivesAlertStoreFailure(t *testing.T) {
	f := newIngestFixture("", 100)
	f.alertStore.appendErr = errors.New("connection refused")

	postSnapshot(f.router, snapshotBody(1700000000, 95), "")
	postSnapshot(f.router, snapshotBody(1700000011, 95), "")

	w := postSnapshot(f.router, snapshotBody(1700000012, 95), "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 despite alert store failure, got %d", w.Code)
	}
}

func TestRecentMetricsSkipsMalformedRecords(t *testing.T) {
	f := newIngestFixture("", 100)
	f.metrics.recentRes = []string{
		snapshotBody(1700000000, 10),
		`{not json`,
		snapshotBody(1700000005, 20),
		`{"timestamp": 1700000010, "total_cpu_percent": 900}`, // schema-invalid
		snapshotBody(1700000015, 30),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/recent", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var snapshots []models.MetricSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snapshots); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("Expected 3 parseable snapshots, got %d", len(snapshots))
	}
}

func TestRecentMetricsStoreFailure(t *testing.T) {
	f := newIngestFixture("", 100)
	f.metrics.recentErr = errors.New("connection refused")

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/recent", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
}

func TestRecentMetricsEmptyWindowReturnsEmptyArray(t *testing.T) {
	f := newIngestFixture("", 100)

	req := httptest.NewRequest(http.MethodGet, "/api/metrics/recent", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("Expected empty JSON array, got %s", body)
	}
}
