package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/monstercameron/zerver-probe/internal/core"
	"github.com/monstercameron/zerver-probe/internal/history"
	"github.com/monstercameron/zerver-probe/internal/probe"
	"github.com/monstercameron/zerver-probe/internal/watch"
)

// fakeRunner satisfies ProbeRunner without touching the network. Start and
// Stop mirror the real watcher's contract of updating the watch snapshot.
type fakeRunner struct {
	mu        sync.Mutex
	st        *core.State
	cfg       probe.Config
	report    core.Report
	probeErr  error
	startErr  error
	stopErr   error
	watching  bool
	lastProbe probe.Config
}

func (f *fakeRunner) Probe(ctx context.Context, cfg probe.Config) (core.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastProbe = cfg
	return f.report, f.probeErr
}

func (f *fakeRunner) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.watching = true
	if f.st != nil {
		f.st.UpdateWatch(core.WatchSnapshot{Running: true, Target: f.cfg.Target(), Interval: time.Minute})
	}
	return nil
}

func (f *fakeRunner) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.watching = false
	if f.st != nil {
		f.st.UpdateWatch(core.WatchSnapshot{})
	}
	return nil
}

func (f *fakeRunner) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watching
}

func (f *fakeRunner) Target() string       { return f.cfg.Target() }
func (f *fakeRunner) Config() probe.Config { return f.cfg }

func (f *fakeRunner) probedWith() probe.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastProbe
}

type stubRepo struct {
	recs   []history.Record
	recErr error
	limits []int
}

func (s *stubRepo) Save(r core.Report) error { return nil }

func (s *stubRepo) Recent(limit int) ([]history.Record, error) {
	s.limits = append(s.limits, limit)
	return s.recs, s.recErr
}

func (s *stubRepo) PruneBefore(cutoff time.Time) (int64, error) { return 0, nil }

func sampleReport() core.Report {
	return core.Report{
		ID:          "report-1",
		Target:      "127.0.0.1:8080",
		Request:     []byte("GET / HTTP/1.1\r\nHost: localhost:8080\r\n\r\n"),
		Response:    []byte("HTTP/1.1 200 OK\r\n\r\nok"),
		Connected:   true,
		Sent:        true,
		PeerClosed:  true,
		Verdict:     core.VerdictSuccess,
		LatenciesMs: map[string]int64{"connect": 1, "send": 0, "receive": 2},
		StartedAt:   time.Now().Add(-time.Second),
		CompletedAt: time.Now(),
	}
}

func newTestServer(t *testing.T, runner *fakeRunner, repo history.Repository) (*Server, *core.State) {
	t.Helper()
	st := core.NewState()
	if runner == nil {
		runner = &fakeRunner{report: sampleReport()}
	}
	runner.st = st
	srv := NewServer(st, runner, repo, nil, ServerOptions{})
	return srv, st
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := doRequest(s, http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("payload %v", payload)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("content type %q", ct)
	}
}

func TestStatusReflectsState(t *testing.T) {
	s, st := newTestServer(t, nil, nil)
	if err := st.SetAgentState(core.StateStarting); err != nil {
		t.Fatal(err)
	}
	if err := st.SetAgentState(core.StateActive); err != nil {
		t.Fatal(err)
	}
	st.RecordReport(sampleReport())
	st.UpdateWatch(core.WatchSnapshot{Running: true, Target: "127.0.0.1:8080", Interval: 30 * time.Second, Persisting: true})

	rec := doRequest(s, http.MethodGet, "/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != string(core.StateActive) {
		t.Errorf("state %q", resp.State)
	}
	if resp.Runs.Total != 1 {
		t.Errorf("runs %+v", resp.Runs)
	}
	if resp.LastReport.ID != "report-1" || resp.LastReport.ResponseText != "HTTP/1.1 200 OK\r\n\r\nok" {
		t.Errorf("last report %+v", resp.LastReport)
	}
	if !resp.Watch.Running || resp.Watch.IntervalMs != 30000 {
		t.Errorf("watch %+v", resp.Watch)
	}
}

func TestProbeAppliesOverrides(t *testing.T) {
	runner := &fakeRunner{
		cfg:    probe.Config{Host: "127.0.0.1", Port: 8080, ReadTimeout: 5 * time.Second},
		report: sampleReport(),
	}
	s, _ := newTestServer(t, runner, nil)

	body := `{"host":"10.1.1.1","port":9999,"read_timeout_ms":250,"require_response":true}`
	rec := doRequest(s, http.MethodPost, "/v1/probe", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var view ReportView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != "report-1" {
		t.Errorf("view %+v", view)
	}
	got := runner.probedWith()
	if got.Host != "10.1.1.1" || got.Port != 9999 {
		t.Errorf("probed %s:%d, want the overrides", got.Host, got.Port)
	}
	if got.ReadTimeout != 250*time.Millisecond {
		t.Errorf("read timeout %v", got.ReadTimeout)
	}
	if !got.RequireResponse {
		t.Error("require_response override not applied")
	}
}

func TestProbeEmptyBodyKeepsConfig(t *testing.T) {
	runner := &fakeRunner{
		cfg:    probe.Config{Host: "192.168.0.9", Port: 8081},
		report: sampleReport(),
	}
	s, _ := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodPost, "/v1/probe", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	got := runner.probedWith()
	if got.Host != "192.168.0.9" || got.Port != 8081 {
		t.Errorf("probed %s:%d, want the configured target", got.Host, got.Port)
	}
}

func TestProbeFailureMapsTo502(t *testing.T) {
	failed := sampleReport()
	failed.Verdict = core.VerdictFailure
	runner := &fakeRunner{
		report:   failed,
		probeErr: &probe.ConnectError{Addr: "127.0.0.1:8080", Err: context.DeadlineExceeded},
	}
	s, _ := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodPost, "/v1/probe", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", rec.Code)
	}
	var apiErr APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(apiErr.Error, "probe failed") {
		t.Errorf("error %q", apiErr.Error)
	}
}

func TestProbeValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"port out of range", `{"port":70000}`},
		{"negative settle", `{"settle_ms":-1}`},
		{"negative read timeout", `{"read_timeout_ms":-5}`},
		{"unknown field", `{"bogus":true}`},
		{"malformed json", `{`},
	}
	s, _ := newTestServer(t, nil, nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(s, http.MethodPost, "/v1/probe", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400", rec.Code)
			}
		})
	}
}

func TestReportsEndpoint(t *testing.T) {
	repo := &stubRepo{recs: []history.Record{
		{ID: "r2", Target: "127.0.0.1:8080", Verdict: "success", Response: []byte("ok"), BytesReceived: 2},
		{ID: "r1", Target: "127.0.0.1:8080", Verdict: "failure", Failure: "connect refused"},
	}}
	s, _ := newTestServer(t, nil, repo)

	rec := doRequest(s, http.MethodGet, "/v1/reports?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp ReportsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || len(resp.Reports) != 2 {
		t.Fatalf("count %d / %d reports", resp.Count, len(resp.Reports))
	}
	if resp.Reports[0].ID != "r2" || resp.Reports[0].ResponseText != "ok" {
		t.Errorf("first report %+v", resp.Reports[0])
	}
	if len(repo.limits) != 1 || repo.limits[0] != 5 {
		t.Errorf("limits passed %v, want [5]", repo.limits)
	}
}

func TestReportsRejectsBadLimit(t *testing.T) {
	s, _ := newTestServer(t, nil, &stubRepo{})
	rec := doRequest(s, http.MethodGet, "/v1/reports?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestReportsWithoutRepository(t *testing.T) {
	s, _ := newTestServer(t, nil, nil)
	rec := doRequest(s, http.MethodGet, "/v1/reports", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d, want 503 when persistence is disabled", rec.Code)
	}
}

func TestStartAndStop(t *testing.T) {
	runner := &fakeRunner{report: sampleReport()}
	s, _ := newTestServer(t, runner, nil)

	rec := doRequest(s, http.MethodPost, "/v1/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start status %d: %s", rec.Code, rec.Body.String())
	}
	var resp WatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Watching || resp.Target != runner.Target() {
		t.Errorf("start response %+v", resp)
	}
	if !runner.Watching() {
		t.Error("runner not started")
	}

	rec = doRequest(s, http.MethodPost, "/v1/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Watching {
		t.Errorf("stop response %+v", resp)
	}
	if runner.Watching() {
		t.Error("runner still watching after stop")
	}
}

func TestStartConflict(t *testing.T) {
	runner := &fakeRunner{startErr: watch.ErrAlreadyWatching}
	s, _ := newTestServer(t, runner, nil)
	rec := doRequest(s, http.MethodPost, "/v1/start", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status %d, want 409", rec.Code)
	}
}

func TestStopConflict(t *testing.T) {
	runner := &fakeRunner{stopErr: watch.ErrNotWatching}
	s, _ := newTestServer(t, runner, nil)
	rec := doRequest(s, http.MethodPost, "/v1/stop", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status %d, want 409", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/healthz"},
		{http.MethodPost, "/v1/status"},
		{http.MethodGet, "/v1/probe"},
		{http.MethodPost, "/v1/reports"},
		{http.MethodGet, "/v1/start"},
		{http.MethodGet, "/v1/stop"},
	}
	s, _ := newTestServer(t, nil, &stubRepo{})
	for _, tc := range cases {
		rec := doRequest(s, tc.method, tc.path, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}
