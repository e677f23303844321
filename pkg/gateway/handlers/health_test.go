package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evermem/linekeeper/pkg/gateway/config"
	"github.com/evermem/linekeeper/pkg/gateway/lifecycle"
)

func readyTestConfig() config.Config {
	return config.Config{
		AuthMode:          config.AuthModeDisabled,
		StoreDriver:       config.StoreMemory,
		MaxCallDuration:   5 * time.Minute,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Second,
		HandlerTimeout:    time.Second,
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Body.String() != "ok\n" {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestReadyHandler_OK(t *testing.T) {
	h := ReadyHandler{Config: readyTestConfig(), Lifecycle: &lifecycle.Lifecycle{}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK       bool     `json:"ok"`
		AuthMode string   `json:"auth_mode"`
		Store    string   `json:"store"`
		Issues   []string `json:"issues"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.AuthMode != "disabled" || resp.Store != "memory" {
		t.Fatalf("resp=%+v", resp)
	}
	if len(resp.Issues) != 0 {
		t.Fatalf("issues=%v", resp.Issues)
	}
}

func TestReadyHandler_RequiredAuthWithoutKeys(t *testing.T) {
	cfg := readyTestConfig()
	cfg.AuthMode = config.AuthModeRequired
	h := ReadyHandler{Config: cfg, Lifecycle: &lifecycle.Lifecycle{}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestReadyHandler_SQLiteWithoutDSN(t *testing.T) {
	cfg := readyTestConfig()
	cfg.StoreDriver = config.StoreSQLite
	h := ReadyHandler{Config: cfg, Lifecycle: &lifecycle.Lifecycle{}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp struct {
		Issues []string `json:"issues"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Issues) != 1 {
		t.Fatalf("issues=%v", resp.Issues)
	}
}

func TestReadyHandler_Draining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	h := ReadyHandler{Config: readyTestConfig(), Lifecycle: lc}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp struct {
		OK       bool `json:"ok"`
		Draining bool `json:"draining"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.OK || !resp.Draining {
		t.Fatalf("resp=%+v", resp)
	}
}
