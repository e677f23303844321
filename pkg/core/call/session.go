// Package call implements the AI call session orchestrator: the
// authorization gate, the session lifecycle state machine, the per-turn
// conversation loop, and the façade the transport layer talks to.
package call

import (
	"fmt"
	"time"
)

// Platform identifies the messaging transport a call originated from.
type Platform string

const (
	PlatformWhatsApp Platform = "whatsapp"
	PlatformTelegram Platform = "telegram"
)

// ValidPlatform reports whether p is a known transport.
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformWhatsApp, PlatformTelegram:
		return true
	default:
		return false
	}
}

// Status is the session lifecycle state.
type Status string

const (
	StatusRinging Status = "ringing"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
	StatusFailed  Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// CanTransition reports whether the lifecycle allows moving from s to next.
// The machine is ringing → active → {ended, failed}, with ringing → failed
// for calls that could not be answered. Terminal states have no exits.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusRinging:
		return next == StatusActive || next == StatusFailed
	case StatusActive:
		return next == StatusEnded || next == StatusFailed
	default:
		return false
	}
}

// Outcome classifies how a call ended. It is distinct from the disclosure
// policy outcome.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeHungUp    Outcome = "hung_up"
	OutcomeError     Outcome = "error"
)

// Role identifies who produced a transcript entry.
type Role string

const (
	RoleCaller Role = "caller"
	RoleAI     Role = "ai"
)

// TranscriptEntry is an immutable record of one utterance.
type TranscriptEntry struct {
	Speaker    Role      `json:"speaker"`
	Timestamp  time.Time `json:"timestamp"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	AudioRef   string    `json:"audio_ref,omitempty"`
}

// Session is one handled call from answer to terminal close.
type Session struct {
	ID           string            `json:"id"`
	CallerID     string            `json:"caller_id"`
	CallerName   string            `json:"caller_name,omitempty"`
	Platform     Platform          `json:"platform"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time,omitzero"`
	Status       Status            `json:"status"`
	Transcript   []TranscriptEntry `json:"transcript"`
	Summary      string            `json:"summary,omitempty"`
	Outcome      Outcome           `json:"outcome"`
	AIControlled bool              `json:"ai_controlled"`
}

// transition moves the session to next, enforcing the lifecycle machine.
func (s *Session) transition(next Status) error {
	if !s.Status.CanTransition(next) {
		return fmt.Errorf("illegal session transition %s -> %s", s.Status, next)
	}
	s.Status = next
	return nil
}

// append adds one transcript entry. The transcript is append-only; entries
// are never reordered or mutated afterwards.
func (s *Session) append(e TranscriptEntry) {
	s.Transcript = append(s.Transcript, e)
}

// Duration is the total call time, defined only once the session is
// terminal.
func (s *Session) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
