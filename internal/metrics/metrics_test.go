package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRouteAndStatus(t *testing.T) {
	handler := Middleware(func(*http.Request) string { return "/test/{id}" }, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/test/{id}", "418"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test/abc", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected status to pass through, got %d", rec.Code)
	}
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/test/{id}", "418"))
	if after != before+1 {
		t.Fatalf("expected counter to grow by one, got %v -> %v", before, after)
	}
}
