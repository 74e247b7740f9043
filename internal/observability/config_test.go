package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func TestMountRespectsToggle(t *testing.T) {
	router := mux.NewRouter()
	if Mount(router, Config{}) {
		t.Fatalf("expected nothing mounted when disabled")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", resp.Code)
	}

	router = mux.NewRouter()
	if !Mount(router, Config{EnablePprofTrace: true}) {
		t.Fatalf("expected endpoints mounted when enabled")
	}
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected the pprof index, got %d", resp.Code)
	}
}
