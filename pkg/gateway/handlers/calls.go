package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/evermem/linekeeper/pkg/core"
	"github.com/evermem/linekeeper/pkg/core/call"
	"github.com/evermem/linekeeper/pkg/gateway/mw"
)

// CallsHandler serves GET /v1/calls/{id}: a snapshot of an active call
// session. Finished calls live in the conversation store, not here.
type CallsHandler struct {
	Handler *call.Handler
}

func (h CallsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed",
		}, http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeCoreErrorJSON(w, reqID, core.NewInvalidRequestErrorWithParam("call id is required", "id"), http.StatusBadRequest)
		return
	}

	s, ok := h.Handler.CallSession(id)
	if !ok {
		writeCoreErrorJSON(w, reqID, core.NewNotFoundError("no active call with that id"), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// StatusHandler serves /v1/status: GET reports the call handler state, POST
// toggles call handling at runtime.
type StatusHandler struct {
	Handler *call.Handler
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.Handler.Status())
	case http.MethodPost:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeCoreErrorJSON(w, reqID, core.NewInvalidRequestError("invalid json body"), http.StatusBadRequest)
			return
		}
		if req.Enabled == nil {
			writeCoreErrorJSON(w, reqID, core.NewInvalidRequestErrorWithParam("enabled is required", "enabled"), http.StatusBadRequest)
			return
		}
		h.Handler.SetEnabled(*req.Enabled)
		writeJSON(w, http.StatusOK, h.Handler.Status())
	default:
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed",
		}, http.StatusMethodNotAllowed)
	}
}
