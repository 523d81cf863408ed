package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/engine"
	"github.com/spigell/assessment-recommender/internal/output"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/rank"
)

type fakeRecommender struct {
	res   *rank.Result
	err   error
	limit int
}

func (f *fakeRecommender) Recommend(_ context.Context, _ string, limit int) (*rank.Result, error) {
	f.limit = limit
	return f.res, f.err
}

func oneResult() *rank.Result {
	res := &rank.Result{Items: []rank.Candidate{{
		Record: &catalog.Record{
			ID: "https://www.shl.com/view/python-new", Name: "Python (New)", Description: "Python test",
			Duration: 11, RemoteSupport: true, TestTypes: []string{"Knowledge & Skills"},
		},
		Score: 0.7,
	}}}
	res.Renumber()
	return res
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := New(Config{}, &fakeRecommender{}, zap.NewNop())
	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"healthy"}` {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestRecommend(t *testing.T) {
	t.Parallel()

	fake := &fakeRecommender{res: oneResult()}
	srv := New(Config{Limit: 5}, fake, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(`{"query":"python developer"}`))
	req.Header.Set(requestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", rec.Header().Get(requestIDHeader))
	}
	if fake.limit != 5 {
		t.Fatalf("expected limit 5, got %d", fake.limit)
	}

	var body recommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []output.Assessment{{
		URL: "https://www.shl.com/view/python-new", AdaptiveSupport: "No", Description: "Python test",
		Duration: 11, RemoteSupport: "Yes", TestType: []string{"Knowledge & Skills"},
	}}
	if diff := cmp.Diff(want, body.RecommendedAssessments); diff != "" {
		t.Fatalf("unexpected assessments (-want +got):\n%s", diff)
	}
}

func TestRecommendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		body   string
		fake   *fakeRecommender
		status int
		detail string
	}{
		{name: "invalid json", body: `{"query":`, fake: &fakeRecommender{}, status: http.StatusBadRequest, detail: "Invalid request body"},
		{name: "missing query", body: `{}`, fake: &fakeRecommender{}, status: http.StatusBadRequest, detail: "recommendRequest.Query is required"},
		{
			name: "empty after normalization", body: `{"query":"<p></p>"}`,
			fake: &fakeRecommender{err: query.ErrEmptyQuery}, status: http.StatusBadRequest, detail: query.ErrEmptyQuery.Error(),
		},
		{
			name: "no results", body: `{"query":"astronaut"}`,
			fake: &fakeRecommender{res: &rank.Result{}}, status: http.StatusNotFound, detail: noResults,
		},
		{
			name: "no catalog", body: `{"query":"java"}`,
			fake: &fakeRecommender{err: engine.ErrNoCatalog}, status: http.StatusServiceUnavailable, detail: engine.ErrNoCatalog.Error(),
		},
		{
			name: "engine failure", body: `{"query":"java"}`,
			fake: &fakeRecommender{err: errors.New("embedding query: boom")}, status: http.StatusInternalServerError, detail: "embedding query: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := New(Config{}, tt.fake, zap.NewNop())
			rec := do(t, srv.Handler(), http.MethodPost, "/recommend", tt.body)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if got := detail(t, rec); got != tt.detail {
				t.Fatalf("expected detail %q, got %q", tt.detail, got)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	srv := New(Config{RateLimit: 1}, &fakeRecommender{res: oneResult()}, zap.NewNop())

	if rec := do(t, srv.Handler(), http.MethodPost, "/recommend", `{"query":"java"}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec := do(t, srv.Handler(), http.MethodPost, "/recommend", `{"query":"java"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	// Health checks are not limited.
	if rec := do(t, srv.Handler(), http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	srv := New(Config{MaxBodyBytes: 16}, &fakeRecommender{res: oneResult()}, zap.NewNop())
	rec := do(t, srv.Handler(), http.MethodPost, "/recommend", `{"query":"`+strings.Repeat("java ", 20)+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := New(Config{}, &fakeRecommender{}, zap.NewNop())
	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "recommender_catalog_records") {
		t.Fatalf("expected recommender metrics in output")
	}
}

func TestRecommendWithEngine(t *testing.T) {
	t.Parallel()

	e := engine.New(engine.Config{}, nil, zap.NewNop())
	snap := catalog.NewSnapshot("", []catalog.Record{
		{ID: "a", Name: "Numerical", Description: "numerical reasoning test", TestTypes: []string{"Ability & Aptitude"}},
		{ID: "b", Name: "Coding", Description: "coding assessment for Python developers", TestTypes: []string{"Simulations"}},
	})
	if err := e.Load(context.Background(), snap); err != nil {
		t.Fatalf("load: %v", err)
	}

	srv := New(Config{}, e, zap.NewNop())
	rec := do(t, srv.Handler(), http.MethodPost, "/recommend", `{"query":"Python coding skills test"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body recommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.RecommendedAssessments) == 0 || body.RecommendedAssessments[0].URL != "b" {
		t.Fatalf("expected b first, got %+v", body.RecommendedAssessments)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	srv := New(Config{CORSOrigins: []string{"https://app.example.com"}}, &fakeRecommender{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/recommend", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}
}
