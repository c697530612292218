package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testCfg() SecConfig {
	return SecConfig{
		BackendKeys: KeySet([]string{"backend-key"}),
		AdminKeys:   KeySet([]string{"admin-key"}),
		RPS:         100,
		Burst:       100,
	}
}

func do(t *testing.T, srv *httptest.Server, method, path, key string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, srv.URL+path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	resp.Body.Close()
	return resp
}

func TestMiddlewareRequiresKey(t *testing.T) {
	srv := httptest.NewServer(Middleware(testCfg())(okHandler()))
	defer srv.Close()

	if resp := do(t, srv, http.MethodGet, "/v1/stats", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: expected 401, got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/v1/stats", "wrong"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key: expected 401, got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/v1/stats", "backend-key"); resp.StatusCode != http.StatusOK {
		t.Fatalf("backend key: expected 200, got %d", resp.StatusCode)
	}
}

func TestMiddlewareHealthBypass(t *testing.T) {
	srv := httptest.NewServer(Middleware(testCfg())(okHandler()))
	defer srv.Close()

	if resp := do(t, srv, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/metrics", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
}

func TestMiddlewareAdminScope(t *testing.T) {
	srv := httptest.NewServer(Middleware(testCfg())(okHandler()))
	defer srv.Close()

	if resp := do(t, srv, http.MethodPost, "/v1/admin/reindex", "backend-key"); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("backend on admin route: expected 403, got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/v1/admin/reindex", "admin-key"); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin on admin route: expected 200, got %d", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodGet, "/v1/stats", "admin-key"); resp.StatusCode != http.StatusOK {
		t.Fatalf("admin on backend route: expected 200, got %d", resp.StatusCode)
	}
}

func TestMiddlewareBearerToken(t *testing.T) {
	srv := httptest.NewServer(Middleware(testCfg())(okHandler()))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer backend-key")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("bearer request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer auth: expected 200, got %d", resp.StatusCode)
	}
}

func TestMiddlewareRateLimit(t *testing.T) {
	cfg := testCfg()
	cfg.RPS = 1
	cfg.Burst = 2
	srv := httptest.NewServer(Middleware(cfg)(okHandler()))
	defer srv.Close()

	limited := false
	for i := 0; i < 5; i++ {
		resp := do(t, srv, http.MethodGet, "/v1/stats", "backend-key")
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("burst of requests was never rate limited")
	}
}
