package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/fingerprint-matcher/internal/config"
	"github.com/kozaktomas/fingerprint-matcher/internal/database"
	"github.com/kozaktomas/fingerprint-matcher/internal/database/mock"
	"github.com/kozaktomas/fingerprint-matcher/internal/fingerprint"
	"github.com/kozaktomas/fingerprint-matcher/internal/logging"
	"github.com/kozaktomas/fingerprint-matcher/internal/matcher"
	"github.com/kozaktomas/fingerprint-matcher/internal/metrics"
	"github.com/kozaktomas/fingerprint-matcher/internal/scanner"
	"github.com/kozaktomas/fingerprint-matcher/internal/web/handlers"
)

func newTestServer(t *testing.T) (*Server, *mock.MockIdentityStore) {
	t.Helper()
	store := mock.NewMockIdentityStore()
	store.AddIdentity(database.StoredIdentity{
		ID:        1,
		FullName:  "Test Person",
		BirthDate: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Template:  fingerprint.Template{1, 2, 3, 4},
	})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	build := func(capture matcher.CaptureSource) scanner.Runner {
		return matcher.New(capture, store, nil, nil, matcher.DefaultParams(),
			matcher.WithLogger(logging.Nop()), matcher.WithMetrics(m))
	}
	svc := scanner.NewService(nil, build, store, logging.Nop())

	cfg := config.Default()
	s := NewServer(cfg.Web, time.Minute, Deps{Scanner: svc, Identities: store, Gatherer: reg}, logging.Nop())
	return s, store
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/identities/count", http.StatusOK},
		{"GET", "/api/v1/identities", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/api/v1/identify", http.StatusMethodNotAllowed},
		{"GET", "/api/v1/unknown", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := serve(s, tc.method, tc.path, "")
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected status %d, got %d", tc.wantStatus, recorder.Code)
			}
		})
	}
}

func TestIdentifyEndToEnd(t *testing.T) {
	s, store := newTestServer(t)

	body := `{"template":"` + fingerprint.Template{1, 2, 3, 4}.Base64() + `"}`
	recorder := serve(s, "POST", "/api/v1/identify", body)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), `"success":true`) {
		t.Errorf("expected a successful match, got %s", recorder.Body.String())
	}
	if n := len(store.ScanLogs()); n != 1 {
		t.Errorf("expected 1 scan log, got %d", n)
	}

	metricsBody := serve(s, "GET", "/metrics", "").Body.String()
	if !strings.Contains(metricsBody, `fingerprint_identifications_total{status="matched"} 1`) {
		t.Errorf("expected identification metric, got:\n%s", metricsBody)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t)
	recorder := serve(s, "GET", "/api/v1/health", "")

	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/identify", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected localhost origin to be allowed, got %q", got)
	}
}

func TestHealthReportsFailingComponent(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg.Web, time.Minute, Deps{
		Identities: mock.NewMockIdentityStore(),
		HealthChecks: map[string]handlers.HealthCheck{
			"database": func(context.Context) error { return nil },
			"sensor":   func(context.Context) error { return errors.New("bridge unreachable") },
		},
	}, logging.Nop())

	recorder := serve(s, "GET", "/api/v1/health", "")
	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", recorder.Code)
	}
	body := recorder.Body.String()
	for _, want := range []string{`"status":"degraded"`, `"database":"ok"`, `"sensor":"error: bridge unreachable"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}
}

func TestNoMetricsWithoutGatherer(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg.Web, time.Minute, Deps{Identities: mock.NewMockIdentityStore()}, logging.Nop())
	if recorder := serve(s, "GET", "/metrics", ""); recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404 for /metrics, got %d", recorder.Code)
	}
}

func TestShutdownBeforeStart(t *testing.T) {
	s, _ := newTestServer(t)
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	s.logger = logger

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "shutting down web server") {
		t.Errorf("expected shutdown log line, got %q", buf.String())
	}
}
