package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestCORSAllowsConfiguredOriginOnly(t *testing.T) {
	handler := newTestAPI(t).Handler()

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res
	}

	allowed := preflight("http://localhost:5173")
	if got := allowed.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected configured origin to be allowed, got %q", got)
	}
	denied := preflight("https://evil.example")
	if got := denied.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected unknown origin to be refused, got %q", got)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		handler.ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestStaffCannotManageStaffAccounts(t *testing.T) {
	handler := newTestAPI(t).Handler()
	staff := login(t, handler, "staff", testStaffPassword)
	admin := login(t, handler, "admin", testAdminPassword)

	payload := domain.StaffCreateRequest{Username: "newhire", Password: "pass1234"}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/staff", staff, payload); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/staff", admin, payload); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for admin, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/staff", admin, payload); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d", rec.Code)
	}
}

func TestWriteServiceErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", store.Invalid("quantity must be greater than zero"), http.StatusBadRequest, "quantity must be greater than zero"},
		{"not found", fmt.Errorf("medicine: %w", store.ErrNotFound), http.StatusNotFound, "not found"},
		{"short", &store.InsufficientStockError{MedicineID: "med-1", Requested: 5, Available: 2}, http.StatusConflict, `"shortfall":3`},
		{"conflict", store.ErrConflict, http.StatusConflict, `"retryable":true`},
		{"persistence", store.Wrap("list batches", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "service temporarily unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}
	api := newTestAPI(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			api.writeServiceError(rec, tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("expected body to contain %q, got %s", tc.body, rec.Body.String())
			}
			if tc.status >= 500 && strings.Contains(rec.Body.String(), "refused") {
				t.Fatalf("5xx body leaked the cause: %s", rec.Body.String())
			}
		})
	}
}

func TestServerErrorsLogThroughInjectedLogger(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	api := New(nil, nil, zap.New(core), nil)

	rec := httptest.NewRecorder()
	api.writeServiceError(rec, store.Wrap("list batches", errors.New("dial tcp: refused")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	entries := logs.FilterMessage("request failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one logged failure, got %d", len(entries))
	}
	if entries[0].LoggerName != "http" {
		t.Fatalf("expected the http logger, got %q", entries[0].LoggerName)
	}
	if cause, _ := entries[0].ContextMap()["error"].(string); !strings.Contains(cause, "refused") {
		t.Fatalf("expected cause in log fields, got %v", entries[0].ContextMap())
	}

	api.writeServiceError(httptest.NewRecorder(), store.Invalid("bad input"))
	if logs.Len() != 1 {
		t.Fatalf("expected client errors to stay out of the error log, got %d entries", logs.Len())
	}
}

func TestParsePositiveLimitCaps(t *testing.T) {
	if got := parsePositiveLimit("9999", 50, 200); got != 200 {
		t.Fatalf("expected capped limit 200, got %d", got)
	}
	if got := parsePositiveLimit("", 50, 200); got != 50 {
		t.Fatalf("expected fallback limit 50, got %d", got)
	}
	if got := parsePositiveLimit("invalid", 50, 200); got != 50 {
		t.Fatalf("expected fallback on invalid input, got %d", got)
	}
}
