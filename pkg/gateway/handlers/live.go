package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evermem/linekeeper/pkg/core"
	"github.com/evermem/linekeeper/pkg/core/call"
	"github.com/evermem/linekeeper/pkg/core/voice"
	"github.com/evermem/linekeeper/pkg/gateway/config"
	"github.com/evermem/linekeeper/pkg/gateway/lifecycle"
	"github.com/evermem/linekeeper/pkg/gateway/live/protocol"
	"github.com/evermem/linekeeper/pkg/gateway/mw"
)

// LiveHandler handles /v1/live websocket call sessions. The client is the
// platform bridge: it proxies one phone call, streaming finalized caller
// utterances in and assistant replies out.
type LiveHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Handler   *call.Handler
	Lifecycle *lifecycle.Lifecycle
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		reqID, _ := mw.RequestIDFrom(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed", RequestID: reqID}, http.StatusMethodNotAllowed)
		return
	}
	if h.Lifecycle.IsDraining() {
		reqID, _ := mw.RequestIDFrom(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrAPI, Message: "gateway is draining", Code: "draining", RequestID: reqID}, http.StatusServiceUnavailable)
		return
	}
	if !h.originAllowed(r) {
		reqID, _ := mw.RequestIDFrom(r.Context())
		writeCoreErrorJSON(w, reqID, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin", RequestID: reqID}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.LiveMaxJSONMessageBytes > 0 {
		conn.SetReadLimit(h.Config.LiveMaxJSONMessageBytes)
	}

	handshakeTimeout := h.Config.LiveHandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 5 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	messageType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		h.writeWSError(conn, nil, "bad_request", "failed to read hello", true)
		return
	}
	if messageType != websocket.TextMessage {
		h.writeWSError(conn, nil, "bad_request", "first frame must be hello", true)
		return
	}

	decoded, err := protocol.DecodeClientMessage(firstFrame)
	if err != nil {
		h.writeWSError(conn, nil, "bad_request", err.Error(), true)
		return
	}
	hello, ok := decoded.(protocol.ClientHello)
	if !ok {
		h.writeWSError(conn, nil, "bad_request", "first frame must be hello", true)
		return
	}

	platform := call.Platform(strings.ToLower(strings.TrimSpace(hello.Platform)))
	if !call.ValidPlatform(platform) {
		h.writeWSError(conn, nil, "bad_request", "unsupported platform", true)
		return
	}

	if err := h.authorize(r, hello); err != nil {
		h.writeWSError(conn, nil, "unauthorized", err.Error(), true)
		return
	}

	sessionID := "call_" + randHex(8)
	ack := protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Limits: protocol.HelloAckLimits{
			MaxCallDurationMS: h.Config.MaxCallDuration.Milliseconds(),
		},
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if h.Logger != nil {
		reqID, _ := mw.RequestIDFrom(r.Context())
		h.Logger.Info("live call accepted", "session_id", sessionID, "request_id", reqID, "hello", hello.RedactedForLog())
	}

	cc := &wsCallConn{
		conn:         conn,
		writeTimeout: h.Config.LiveWSWriteTimeout,
		readTimeout:  h.Config.LiveWSReadTimeout,
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	if h.Config.LiveWSPingInterval > 0 {
		go cc.pingLoop(h.Config.LiveWSPingInterval, pingDone)
	}

	session, err := h.Handler.HandleIncomingCall(r.Context(), call.CallInfo{
		SessionID:  sessionID,
		CallerID:   strings.TrimSpace(hello.CallerID),
		CallerName: strings.TrimSpace(hello.CallerName),
		Platform:   platform,
	}, cc, cc)
	if err != nil {
		h.writeWSError(conn, cc, "forbidden", err.Error(), true)
		return
	}

	ended := protocol.ServerEnded{
		Type:       "ended",
		SessionID:  session.ID,
		Status:     string(session.Status),
		Outcome:    string(session.Outcome),
		Summary:    session.Summary,
		DurationMS: session.Duration().Milliseconds(),
		Entries:    len(session.Transcript),
	}
	_ = cc.writeJSON(ended)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended"),
		time.Now().Add(2*time.Second))
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

// authorize validates the gateway key carried in the hello (or as a query
// parameter, for bridges that cannot set message fields before connecting).
func (h LiveHandler) authorize(r *http.Request, hello protocol.ClientHello) error {
	apiKey := ""
	if hello.Auth != nil {
		apiKey = strings.TrimSpace(hello.Auth.GatewayAPIKey)
	}
	if apiKey == "" {
		apiKey = strings.TrimSpace(r.URL.Query().Get("gateway_api_key"))
	}

	switch h.Config.AuthMode {
	case config.AuthModeDisabled:
		return nil
	case config.AuthModeOptional:
		if apiKey == "" {
			return nil
		}
	case config.AuthModeRequired:
		if apiKey == "" {
			return fmt.Errorf("missing gateway api key")
		}
	default:
		return fmt.Errorf("invalid auth mode")
	}
	if _, ok := h.Config.APIKeys[apiKey]; !ok {
		return fmt.Errorf("invalid gateway api key")
	}
	return nil
}

func (h LiveHandler) writeWSError(conn *websocket.Conn, cc *wsCallConn, code, message string, close bool) {
	msg := protocol.ServerError{Type: "error", Code: code, Message: message, Close: close}
	if cc != nil {
		_ = cc.writeJSON(msg)
	} else {
		_ = conn.WriteJSON(msg)
	}
	if close {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(2*time.Second))
	}
}

// wsCallConn adapts one websocket connection to the listener and speaker
// contracts the call orchestrator consumes. A read failure or an explicit
// hangup frame surfaces as an empty utterance: the orchestrator treats both
// as the caller leaving.
type wsCallConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration

	writeMu sync.Mutex
}

func (c *wsCallConn) Listen(ctx context.Context) (voice.Utterance, error) {
	// Poke the read deadline when ctx ends so the blocking read returns.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()

	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		} else if ctx.Err() == nil {
			_ = c.conn.SetReadDeadline(time.Time{})
		}

		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return voice.Utterance{}, ctx.Err()
			}
			// Closed or timed-out connection: the caller is gone.
			return voice.Utterance{}, nil
		}

		decoded, err := protocol.DecodeClientMessage(frame)
		if err != nil {
			_ = c.writeJSON(protocol.ServerError{Type: "error", Code: "bad_request", Message: err.Error()})
			continue
		}
		switch msg := decoded.(type) {
		case protocol.ClientUtterance:
			return voice.Utterance{Text: msg.Text, Confidence: msg.Confidence, AudioRef: msg.AudioRef}, nil
		case protocol.ClientHangup:
			return voice.Utterance{}, nil
		default:
			_ = c.writeJSON(protocol.ServerError{Type: "error", Code: "bad_request", Message: "unexpected message type"})
		}
	}
}

func (c *wsCallConn) Speak(ctx context.Context, text string, settings voice.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.writeJSON(protocol.ServerReply{Type: "reply", Text: text})
}

func (c *wsCallConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *wsCallConn) pingLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(2*time.Second))
			c.writeMu.Unlock()
		}
	}
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
