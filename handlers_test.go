package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func jsonBody(t *testing.T, v interface{}) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

// newTestHandlers builds a Handlers with no live GCP clients, enough for
// routes that fail before touching Firestore/Storage/Vision/Vertex. The
// dev bearer is set so tests can authenticate via X-User-Id.
func newTestHandlers() *Handlers {
	return &Handlers{
		Cfg: Config{
			ProjectID: "test-project",
			UploadDir: "uploads",
			DevBearer: "dev-secret",
		},
		Limiter: NewUploadLimiter(),
	}
}

func TestGetUserIDFromRequestIgnoresHeaderWithoutDevMode(t *testing.T) {
	// No dev bearer, no debug: X-User-Id alone must never authenticate.
	h := &Handlers{Cfg: Config{ProjectID: "test-project"}}

	req := httptest.NewRequest(http.MethodGet, "/reports/victim", nil)
	req.Header.Set("X-User-Id", "victim")

	uid, err := h.GetUserIDFromRequest(req.Context(), req)
	if err == nil {
		t.Fatalf("X-User-Id accepted without dev mode, uid = %q", uid)
	}
}

func TestGetUserIDFromRequestHonorsHeaderInDevMode(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/reports/alice", nil)
	req.Header.Set("X-User-Id", "alice")

	uid, err := h.GetUserIDFromRequest(req.Context(), req)
	if err != nil {
		t.Fatalf("GetUserIDFromRequest: %v", err)
	}
	if uid != "alice" {
		t.Errorf("uid = %q, want alice", uid)
	}
}

func TestIndexHandler(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.IndexHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "running" {
		t.Errorf("status field = %v, want running", body["status"])
	}
}

func TestIndexHandlerUnknownPath(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.IndexHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", rec.Code)
	}
}

func TestUploadHandlerMethodNotAllowed(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /upload status = %d, want 405", rec.Code)
	}
}

func TestUploadHandlerRequiresAuth(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated upload status = %d, want 401", rec.Code)
	}
}

func TestUploadHandlerRejectsOversizedBody(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte("x")))
	req.Header.Set("X-User-Id", "alice")
	req.ContentLength = maxUploadBytes * 2
	rec := httptest.NewRecorder()
	h.UploadHandler(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized upload status = %d, want 413", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "File size exceeds 10MB limit" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestUserReportsHandlerRequiresAuth(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/reports/alice", nil)
	rec := httptest.NewRecorder()
	h.UserReportsHandler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list status = %d, want 401", rec.Code)
	}
}

func TestUserReportsHandlerMissingUserID(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/reports/", nil)
	req.Header.Set("X-User-Id", "alice")
	rec := httptest.NewRecorder()
	h.UserReportsHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty user_id status = %d, want 400", rec.Code)
	}
}

func TestReportDetailHandlerMissingUserIDParam(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodGet, "/report/r1", nil)
	req.Header.Set("X-User-Id", "alice")
	rec := httptest.NewRecorder()
	h.ReportDetailHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id status = %d, want 400", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "user_id parameter is required" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestAccountsHandlerRejectsBadRole(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/api/accounts",
		jsonBody(t, map[string]string{"user_id": "alice", "role": "admin"}))
	rec := httptest.NewRecorder()
	h.AccountsHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad role status = %d, want 400", rec.Code)
	}
}

func TestAccountsHandlerRequiresUserID(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest(http.MethodPost, "/api/accounts",
		jsonBody(t, map[string]string{"email": "a@example.com"}))
	rec := httptest.NewRecorder()
	h.AccountsHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id status = %d, want 400", rec.Code)
	}
}
