package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"promptdeck/internal/usertoken"
	"promptdeck/pkg/ai"
	"promptdeck/pkg/batchlog"
	"promptdeck/pkg/domain"
	"promptdeck/pkg/storage"
	"promptdeck/pkg/store"
	"promptdeck/services/ingest/internal/app"
)

type staticVerifier map[string]usertoken.Actor

func (v staticVerifier) VerifyActor(token string) (usertoken.Actor, error) {
	actor, ok := v[token]
	if !ok {
		return usertoken.Actor{}, errors.New("invalid token")
	}
	return actor, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

type stubObjectStore struct{}

func (stubObjectStore) Put(context.Context, string, io.Reader, int64, string, map[string]string) error {
	return nil
}

func (stubObjectStore) PublicURL(key string) string { return "https://cdn.test/" + key }

type stubGenerator struct{}

func (stubGenerator) GenerateImage(context.Context, string) (*ai.ImagePayload, error) {
	return &ai.ImagePayload{Data: []byte("img"), MimeType: "image/png"}, nil
}

type memoryBatchLog struct {
	records map[string]batchlog.BatchRecord
}

func (l *memoryBatchLog) Begin(_ context.Context, batchID, actorID string, total int) error {
	if l.records == nil {
		l.records = map[string]batchlog.BatchRecord{}
	}
	l.records[batchID] = batchlog.BatchRecord{BatchID: batchID, ActorID: actorID, Status: batchlog.StatusRunning, Total: total}
	return nil
}

func (l *memoryBatchLog) Complete(_ context.Context, batchID string, success, failed int) error {
	rec := l.records[batchID]
	rec.Status = batchlog.StatusCompleted
	rec.Success = success
	rec.Failed = failed
	l.records[batchID] = rec
	return nil
}

func (l *memoryBatchLog) Get(_ context.Context, batchID string) (batchlog.BatchRecord, bool, error) {
	rec, ok := l.records[batchID]
	return rec, ok, nil
}

type serverFixture struct {
	server *Server
	memory *store.MemoryStore
}

func newTestServer(t *testing.T, limiter RateLimiter) serverFixture {
	t.Helper()
	memory := store.NewMemoryStore()
	retry := ai.NewRetryPolicy(1, time.Millisecond)
	retry.Sleep = func(context.Context, time.Duration) error { return nil }
	appCore, err := app.New(app.Config{
		Store:       memory,
		Generator:   stubGenerator{},
		Publisher:   storage.NewPublisher(stubObjectStore{}, "test-model"),
		BatchLog:    &memoryBatchLog{},
		PacingDelay: time.Millisecond,
		RetryPolicy: retry,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	verifier := staticVerifier{
		"user-token":  {ID: "user-1", Role: domain.RoleUser},
		"other-token": {ID: "user-2", Role: domain.RoleUser},
		"admin-token": {ID: "mod-1", Role: domain.RoleAdmin},
	}
	return serverFixture{
		server: New(Config{App: appCore, Verifier: verifier, Limiter: limiter}),
		memory: memory,
	}
}

func doRequest(s *Server, method, path, token, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthRequiresNoAuth(t *testing.T) {
	fx := newTestServer(t, nil)
	rec := doRequest(fx.server, http.MethodGet, "/healthz", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEndpointsRequireBearerToken(t *testing.T) {
	fx := newTestServer(t, nil)
	for _, path := range []string{"/v1/prompts/bulk", "/v1/prompts/bulk/csv", "/v1/prompts/p1/thumbnail"} {
		if rec := doRequest(fx.server, http.MethodPost, path, "", "application/json", "{}"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: status = %d", path, rec.Code)
		}
		if rec := doRequest(fx.server, http.MethodPost, path, "bogus", "application/json", "{}"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s with bad token: status = %d", path, rec.Code)
		}
	}
}

func TestBulkSubmitJSON(t *testing.T) {
	fx := newTestServer(t, nil)
	body := `{"items":[{"title":"One","content":"c1","category":"Coding"},{"title":"Two","content":"c2","category":"coding"}]}`
	rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk", "user-token", "application/json", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var res app.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Summary != (domain.BatchSummary{Total: 2, Success: 2}) {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
	if res.BatchID == "" || len(res.Results) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if fx.memory.Len() != 2 {
		t.Fatalf("expected 2 persisted records, got %d", fx.memory.Len())
	}
}

func TestBulkSubmitRejectsBadRequests(t *testing.T) {
	fx := newTestServer(t, nil)
	if rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk", "user-token", "application/json", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: status = %d", rec.Code)
	}
	if rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk", "user-token", "application/json", `{"items":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty batch: status = %d", rec.Code)
	}
	if rec := doRequest(fx.server, http.MethodGet, "/v1/prompts/bulk", "user-token", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("wrong method: status = %d", rec.Code)
	}
}

func TestBulkSubmitCSV(t *testing.T) {
	fx := newTestServer(t, nil)
	body := strings.Join([]string{
		"title,content,category,slug,views,likes,copies,launch_chatgpt,launch_claude,launch_gemini,launch_grok,public",
		"One,do one thing,Coding,one-thing,10,2,3,1,0,2,0,true",
		"Two,do another,writing,,0,0,0,0,0,0,0,false",
	}, "\n")
	rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk/csv", "user-token", "text/csv", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var res app.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Summary.Success != 2 {
		t.Fatalf("unexpected summary: %+v", res.Summary)
	}
	first, ok, _ := fx.memory.GetPrompt(res.Results[0].PromptID)
	if !ok {
		t.Fatal("first record missing")
	}
	if first.Views != 10 || first.Copies != 3 || first.Launches.ChatGPT != 1 || first.Launches.Gemini != 2 {
		t.Fatalf("seed counters lost: %+v", first)
	}
	if first.TotalLaunch != 6 {
		t.Fatalf("totalLaunch = %d, want 6", first.TotalLaunch)
	}
	second, ok, _ := fx.memory.GetPrompt(res.Results[1].PromptID)
	if !ok {
		t.Fatal("second record missing")
	}
	if second.Public {
		t.Fatal("csv public=false should persist")
	}
}

func TestBulkSubmitCSVRejectsMissingColumns(t *testing.T) {
	fx := newTestServer(t, nil)
	body := "title,category\nOne,Coding"
	rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk/csv", "user-token", "text/csv", body)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "content") {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestRegenerateThumbnailEndpoint(t *testing.T) {
	fx := newTestServer(t, nil)
	body := `{"items":[{"title":"One","content":"c1","category":"coding"}]}`
	rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk", "user-token", "application/json", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed batch: status = %d", rec.Code)
	}
	var seeded app.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &seeded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	promptID := seeded.Results[0].PromptID

	if rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/missing/thumbnail", "user-token", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing prompt: status = %d", rec.Code)
	}
	if rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/"+promptID+"/thumbnail", "other-token", "", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign prompt: status = %d", rec.Code)
	}

	rec = doRequest(fx.server, http.MethodPost, "/v1/prompts/"+promptID+"/thumbnail", "user-token", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var regen app.RegenerateResult
	if err := json.Unmarshal(rec.Body.Bytes(), &regen); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if regen.PromptID != promptID || regen.ImageURL == "" {
		t.Fatalf("unexpected result: %+v", regen)
	}

	// Admins may regenerate prompts they do not own.
	if rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/"+promptID+"/thumbnail", "admin-token", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("admin regenerate: status = %d", rec.Code)
	}
}

func TestBatchStatusEndpoint(t *testing.T) {
	fx := newTestServer(t, nil)
	body := `{"items":[{"title":"One","content":"c1","category":"coding"}]}`
	rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk", "user-token", "application/json", body)
	var res app.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doRequest(fx.server, http.MethodGet, "/v1/batches/"+res.BatchID, "user-token", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var record batchlog.BatchRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Status != batchlog.StatusCompleted || record.Total != 1 || record.Success != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}

	if rec := doRequest(fx.server, http.MethodGet, "/v1/batches/missing", "user-token", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing batch: status = %d", rec.Code)
	}
}

func TestRateLimiterBlocksRequests(t *testing.T) {
	fx := newTestServer(t, denyLimiter{})
	rec := doRequest(fx.server, http.MethodPost, "/v1/prompts/bulk", "user-token", "application/json", "{}")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
}
