package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/halcyonlabs/idcore/internal/rate"
)

func TestWithRateLimit(t *testing.T) {
	limiter := rate.NewMemoryLimiter(2, time.Minute)
	h := WithRateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// httptest fija el mismo RemoteAddr para todos los requests.
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/sign-in/password", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/auth/sign-in/password", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, quería 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("falta Retry-After")
	}

	// Otra IP no comparte el contador.
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/sign-in/password", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("IP independiente: status = %d", rr.Code)
	}
}
