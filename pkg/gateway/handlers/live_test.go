package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evermem/linekeeper/pkg/core/call"
	"github.com/evermem/linekeeper/pkg/gateway/config"
	"github.com/evermem/linekeeper/pkg/gateway/lifecycle"
)

func liveTestConfig() config.Config {
	return config.Config{
		AuthMode:                config.AuthModeDisabled,
		APIKeys:                 map[string]struct{}{},
		LiveMaxJSONMessageBytes: 64 * 1024,
		LiveHandshakeTimeout:    2 * time.Second,
		LiveWSWriteTimeout:      2 * time.Second,
		MaxCallDuration:         5 * time.Minute,
	}
}

func newLiveTestServer(t *testing.T, cfg config.Config, mutate func(*call.Deps)) *httptest.Server {
	t.Helper()
	h := LiveHandler{
		Config:    cfg,
		Handler:   testCallHandler(t, mutate),
		Lifecycle: &lifecycle.Lifecycle{},
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func mustDialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func mustWriteJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func mustReadJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func baseHello() map[string]any {
	return map[string]any{
		"type":             "hello",
		"protocol_version": "1",
		"caller_id":        "mom",
		"caller_name":      "Mom",
		"platform":         "whatsapp",
	}
}

func TestLiveHandler_CallToCompletion(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	conn := mustDialWS(t, srv)

	mustWriteJSON(t, conn, baseHello())

	ack := mustReadJSON(t, conn)
	if ack["type"] != "hello_ack" {
		t.Fatalf("type=%v", ack["type"])
	}
	sessionID, _ := ack["session_id"].(string)
	if !strings.HasPrefix(sessionID, "call_") {
		t.Fatalf("session_id=%q", sessionID)
	}
	limits, _ := ack["limits"].(map[string]any)
	if limits == nil || limits["max_call_duration_ms"] != float64(5*time.Minute/time.Millisecond) {
		t.Fatalf("limits=%v", limits)
	}

	// Greeting comes first, before any caller utterance.
	greeting := mustReadJSON(t, conn)
	if greeting["type"] != "reply" {
		t.Fatalf("type=%v", greeting["type"])
	}

	mustWriteJSON(t, conn, map[string]any{"type": "utterance", "text": "hi, is everything ok?", "confidence": 0.9})
	reply := mustReadJSON(t, conn)
	if reply["type"] != "reply" {
		t.Fatalf("type=%v", reply["type"])
	}
	if reply["text"] == "" {
		t.Fatal("empty reply")
	}

	mustWriteJSON(t, conn, map[string]any{"type": "utterance", "text": "ok, goodbye", "confidence": 0.9})
	if msg := mustReadJSON(t, conn); msg["type"] != "reply" {
		t.Fatalf("type=%v", msg["type"])
	}
	ending := mustReadJSON(t, conn)
	if ending["type"] != "reply" {
		t.Fatalf("type=%v", ending["type"])
	}

	ended := mustReadJSON(t, conn)
	if ended["type"] != "ended" {
		t.Fatalf("type=%v", ended["type"])
	}
	if ended["session_id"] != sessionID {
		t.Fatalf("session_id=%v", ended["session_id"])
	}
	if ended["status"] != "ended" || ended["outcome"] != "completed" {
		t.Fatalf("status=%v outcome=%v", ended["status"], ended["outcome"])
	}
	if ended["entries"] != float64(4) {
		t.Fatalf("entries=%v", ended["entries"])
	}
	if ended["summary"] == "" {
		t.Fatal("missing summary")
	}
}

func TestLiveHandler_HangupEndsAsHungUp(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	conn := mustDialWS(t, srv)

	mustWriteJSON(t, conn, baseHello())
	if msg := mustReadJSON(t, conn); msg["type"] != "hello_ack" {
		t.Fatalf("type=%v", msg["type"])
	}
	if msg := mustReadJSON(t, conn); msg["type"] != "reply" {
		t.Fatalf("type=%v", msg["type"])
	}

	mustWriteJSON(t, conn, map[string]any{"type": "hangup"})

	// Ending message, then the final ended frame.
	if msg := mustReadJSON(t, conn); msg["type"] != "reply" {
		t.Fatalf("type=%v", msg["type"])
	}
	ended := mustReadJSON(t, conn)
	if ended["type"] != "ended" {
		t.Fatalf("type=%v", ended["type"])
	}
	if ended["outcome"] != "hung_up" {
		t.Fatalf("outcome=%v", ended["outcome"])
	}
}

func TestLiveHandler_InvalidHello(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	conn := mustDialWS(t, srv)

	hello := baseHello()
	delete(hello, "caller_id")
	mustWriteJSON(t, conn, hello)

	msg := mustReadJSON(t, conn)
	if msg["type"] != "error" || msg["code"] != "bad_request" {
		t.Fatalf("msg=%v", msg)
	}
	if msg["close"] != true {
		t.Fatalf("close=%v", msg["close"])
	}
}

func TestLiveHandler_UnsupportedVersion(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	conn := mustDialWS(t, srv)

	hello := baseHello()
	hello["protocol_version"] = "2"
	mustWriteJSON(t, conn, hello)

	msg := mustReadJSON(t, conn)
	if msg["type"] != "error" || msg["code"] != "bad_request" {
		t.Fatalf("msg=%v", msg)
	}
}

func TestLiveHandler_UnsupportedPlatform(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	conn := mustDialWS(t, srv)

	hello := baseHello()
	hello["platform"] = "carrier-pigeon"
	mustWriteJSON(t, conn, hello)

	msg := mustReadJSON(t, conn)
	if msg["type"] != "error" || msg["code"] != "bad_request" {
		t.Fatalf("msg=%v", msg)
	}
}

func TestLiveHandler_RequiredAuthRejectsBadKey(t *testing.T) {
	cfg := liveTestConfig()
	cfg.AuthMode = config.AuthModeRequired
	cfg.APIKeys = map[string]struct{}{"gw-key-1": {}}
	srv := newLiveTestServer(t, cfg, nil)
	conn := mustDialWS(t, srv)

	hello := baseHello()
	hello["auth"] = map[string]any{"gateway_api_key": "wrong"}
	mustWriteJSON(t, conn, hello)

	msg := mustReadJSON(t, conn)
	if msg["type"] != "error" || msg["code"] != "unauthorized" {
		t.Fatalf("msg=%v", msg)
	}
}

func TestLiveHandler_RequiredAuthAcceptsHelloKey(t *testing.T) {
	cfg := liveTestConfig()
	cfg.AuthMode = config.AuthModeRequired
	cfg.APIKeys = map[string]struct{}{"gw-key-1": {}}
	srv := newLiveTestServer(t, cfg, nil)
	conn := mustDialWS(t, srv)

	hello := baseHello()
	hello["auth"] = map[string]any{"gateway_api_key": "gw-key-1"}
	mustWriteJSON(t, conn, hello)

	if msg := mustReadJSON(t, conn); msg["type"] != "hello_ack" {
		t.Fatalf("msg=%v", msg)
	}
}

func TestLiveHandler_RequiredAuthMissingKey(t *testing.T) {
	cfg := liveTestConfig()
	cfg.AuthMode = config.AuthModeRequired
	cfg.APIKeys = map[string]struct{}{"gw-key-1": {}}
	srv := newLiveTestServer(t, cfg, nil)
	conn := mustDialWS(t, srv)

	mustWriteJSON(t, conn, baseHello())

	msg := mustReadJSON(t, conn)
	if msg["type"] != "error" || msg["code"] != "unauthorized" {
		t.Fatalf("msg=%v", msg)
	}
}

func TestLiveHandler_RejectedCallerGetsEndedFrame(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	conn := mustDialWS(t, srv)

	hello := baseHello()
	hello["caller_id"] = "stranger"
	mustWriteJSON(t, conn, hello)

	if msg := mustReadJSON(t, conn); msg["type"] != "hello_ack" {
		t.Fatalf("msg=%v", msg)
	}
	ended := mustReadJSON(t, conn)
	if ended["type"] != "ended" {
		t.Fatalf("type=%v", ended["type"])
	}
	if ended["status"] != "failed" || ended["outcome"] != "error" {
		t.Fatalf("status=%v outcome=%v", ended["status"], ended["outcome"])
	}
}

func TestLiveHandler_DisabledHandlerSendsError(t *testing.T) {
	h := testCallHandler(t, nil)
	h.SetEnabled(false)
	srv := httptest.NewServer(LiveHandler{Config: liveTestConfig(), Handler: h, Lifecycle: &lifecycle.Lifecycle{}})
	defer srv.Close()

	conn := mustDialWS(t, srv)
	mustWriteJSON(t, conn, baseHello())
	if msg := mustReadJSON(t, conn); msg["type"] != "hello_ack" {
		t.Fatalf("msg=%v", msg)
	}
	msg := mustReadJSON(t, conn)
	if msg["type"] != "error" || msg["code"] != "forbidden" {
		t.Fatalf("msg=%v", msg)
	}
}

func TestLiveHandler_DrainingRefusesUpgrade(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	srv := httptest.NewServer(LiveHandler{Config: liveTestConfig(), Handler: testCallHandler(t, nil), Lifecycle: lc})
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestLiveHandler_PostRejected(t *testing.T) {
	srv := newLiveTestServer(t, liveTestConfig(), nil)
	resp, err := http.Post(srv.URL, "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestLiveHandler_DisallowedOrigin(t *testing.T) {
	cfg := liveTestConfig()
	cfg.CORSAllowedOrigins = map[string]struct{}{"https://bridge.example.com": {}}
	srv := newLiveTestServer(t, cfg, nil)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}
