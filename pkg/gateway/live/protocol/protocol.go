// Package protocol defines the JSON message set for the live call
// WebSocket. The client speaks on behalf of a caller: one hello, then
// finalized utterances until either side ends the call.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

type HelloAuth struct {
	Mode          string `json:"mode,omitempty"`
	GatewayAPIKey string `json:"gateway_api_key,omitempty"`
}

// ClientHello opens the call. The transport identifies the caller; the
// session does not trust any later re-identification.
type ClientHello struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	CallerID        string     `json:"caller_id"`
	CallerName      string     `json:"caller_name,omitempty"`
	Platform        string     `json:"platform"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

func (h ClientHello) RedactedForLog() map[string]any {
	return map[string]any{
		"type":             h.Type,
		"protocol_version": h.ProtocolVersion,
		"caller_id":        h.CallerID,
		"platform":         h.Platform,
		"has_gateway_key":  h.Auth != nil && strings.TrimSpace(h.Auth.GatewayAPIKey) != "",
	}
}

// ClientUtterance is one finalized caller utterance. Empty text is legal and
// means the caller went silent.
type ClientUtterance struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	AudioRef   string  `json:"audio_ref,omitempty"`
}

// ClientHangup signals the caller dropped the call.
type ClientHangup struct {
	Type string `json:"type"`
}

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "utterance":
		var msg ClientUtterance
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid utterance frame", "")
		}
		if msg.Confidence < 0 || msg.Confidence > 1 {
			return nil, badRequest("utterance.confidence must be within [0, 1]", "confidence")
		}
		return msg, nil
	case "hangup":
		var msg ClientHangup
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hangup frame", "")
		}
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func ValidateHello(msg ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if msg.ProtocolVersion != ProtocolVersion1 {
		return badRequest("unsupported protocol version", "protocol_version")
	}
	if strings.TrimSpace(msg.CallerID) == "" {
		return badRequest("hello.caller_id is required", "caller_id")
	}
	if strings.TrimSpace(msg.Platform) == "" {
		return badRequest("hello.platform is required", "platform")
	}
	return nil
}

type HelloAckLimits struct {
	MaxCallDurationMS int64 `json:"max_call_duration_ms"`
}

type ServerHelloAck struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Limits          HelloAckLimits `json:"limits"`
}

// ServerReply is one assistant utterance, sent before the next caller turn.
type ServerReply struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServerEnded is the final frame of a call: the terminal session record.
type ServerEnded struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	Status     string `json:"status"`
	Outcome    string `json:"outcome"`
	Summary    string `json:"summary,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Entries    int    `json:"entries"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}
