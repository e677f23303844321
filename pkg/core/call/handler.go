package call

import (
	"context"
	"sync/atomic"

	"github.com/evermem/linekeeper/pkg/core"
	"github.com/evermem/linekeeper/pkg/core/voice"
)

// Handler is the entry point transports talk to. It layers a runtime on/off
// switch over the Manager so call handling can be paused without restarting
// the process.
type Handler struct {
	mgr     *Manager
	enabled atomic.Bool
}

// NewHandler wraps a Manager. Handling starts enabled.
func NewHandler(mgr *Manager) *Handler {
	h := &Handler{mgr: mgr}
	h.enabled.Store(true)
	return h
}

// HandleIncomingCall runs one call to completion and returns the terminal
// session. It returns an error only when handling is switched off or
// auto-answer is disabled; every in-call failure is reported through the
// session itself.
func (h *Handler) HandleIncomingCall(ctx context.Context, info CallInfo, listener voice.Listener, speaker voice.Speaker) (Session, error) {
	if !h.enabled.Load() {
		return Session{}, core.NewPermissionError("call handling is disabled")
	}
	if !h.mgr.Config().AutoAnswer {
		return Session{}, core.NewPermissionError("auto-answer is disabled")
	}
	return h.mgr.HandleCall(ctx, info, listener, speaker), nil
}

// CallSession returns a snapshot of an active session by id.
func (h *Handler) CallSession(sessionID string) (Session, bool) {
	return h.mgr.SessionSnapshot(sessionID)
}

// SetEnabled switches call handling on or off. In-flight calls are not
// interrupted.
func (h *Handler) SetEnabled(enabled bool) {
	h.enabled.Store(enabled)
}

// Enabled reports whether new calls are being accepted.
func (h *Handler) Enabled() bool {
	return h.enabled.Load()
}

// StatusInfo describes the handler for status endpoints.
type StatusInfo struct {
	Enabled     bool   `json:"enabled"`
	ActiveCalls int    `json:"active_calls"`
	Config      Config `json:"config"`
}

// Status reports the current handler state.
func (h *Handler) Status() StatusInfo {
	return StatusInfo{
		Enabled:     h.enabled.Load(),
		ActiveCalls: h.mgr.ActiveCalls(),
		Config:      h.mgr.Config(),
	}
}
