// Package memory holds the contracts the call orchestrator consumes from the
// persistent memory service: relationship profiles, semantic search, and
// durable conversation storage.
package memory

import (
	"context"
	"time"
)

// TrustLevel is the disclosure trust ranking assigned to a contact.
type TrustLevel string

const (
	TrustGreen  TrustLevel = "green"
	TrustYellow TrustLevel = "yellow"
	TrustRed    TrustLevel = "red"
)

// RelationshipType classifies how a contact relates to the user.
type RelationshipType string

const (
	RelationFamily    RelationshipType = "family"
	RelationFriend    RelationshipType = "friend"
	RelationColleague RelationshipType = "colleague"
	RelationUnknown   RelationshipType = "unknown"
)

// Preferences are the per-contact switches the user controls.
type Preferences struct {
	AllowCallHandling bool `json:"allow_call_handling"`
}

// RelationshipProfile describes one known contact.
type RelationshipProfile struct {
	Name       string           `json:"name"`
	Type       RelationshipType `json:"relationship_type"`
	TrustLevel TrustLevel       `json:"trust_level"`
	Prefs      Preferences      `json:"preferences"`
}

// ProfileDirectory looks up relationship profiles by caller identity.
// A nil profile with a nil error means the caller is unknown.
type ProfileDirectory interface {
	Profile(ctx context.Context, callerID string) (*RelationshipProfile, error)
}

// SearchType selects the retrieval strategy.
type SearchType string

const (
	SearchSemantic SearchType = "semantic"
	SearchKeyword  SearchType = "keyword"
)

// Query is one memory search request.
type Query struct {
	Text          string     `json:"text"`
	Type          SearchType `json:"search_type"`
	ContactFilter string     `json:"contact_filter,omitempty"`
}

// SearchEntry is one retrieved memory.
type SearchEntry struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Results is a scored result set plus a prose summary suitable for speech.
type Results struct {
	Entries []SearchEntry `json:"entries"`
	Summary string        `json:"summary"`
}

// Searcher runs semantic memory searches scoped to a caller.
type Searcher interface {
	Search(ctx context.Context, q Query, callerID string) (Results, error)
}

// Conversation message types.
const (
	MessageTypeCallTranscript = "call_transcript"
)

// Privacy levels for stored conversations.
const (
	PrivacyPrivate = "private"
)

// Tags applied to AI-handled call transcripts.
const (
	TagCallTranscript  = "call_transcript"
	TagAIHandled       = "ai_handled"
	TagPendingApproval = "pending_approval"
)

// Metadata carries call-level facts alongside a stored conversation.
type Metadata struct {
	DurationSeconds int `json:"duration_seconds"`
}

// Entry is one durable conversation record.
type Entry struct {
	ID           string    `json:"id,omitempty"`
	Transcript   string    `json:"transcript"`
	Summary      string    `json:"summary"`
	Participants []string  `json:"participants"`
	Platform     string    `json:"platform"`
	MessageType  string    `json:"message_type"`
	Metadata     Metadata  `json:"metadata"`
	PrivacyLevel string    `json:"privacy_level"`
	Approved     bool      `json:"approved"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// ConversationStore persists finished conversations.
type ConversationStore interface {
	StoreConversation(ctx context.Context, e Entry) (string, error)
}
