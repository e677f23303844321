package call

import (
	"github.com/evermem/linekeeper/pkg/memory"
)

// ShouldHandle is the authorization gate: it decides whether the assistant
// answers a call before any session resources are committed. Rules are
// evaluated in order, first match wins:
//
//  1. Emergency contacts are always answered.
//  2. A non-empty allow-list denies everyone not on it.
//  3. Known contacts who permit call handling are answered when their trust
//     level is green or the relationship is family or friend.
//  4. Everyone else is denied.
//
// Pure decision over the supplied inputs; no side effects.
func ShouldHandle(cfg Config, callerID string, profile *memory.RelationshipProfile) bool {
	if _, ok := cfg.EmergencyContacts[callerID]; ok {
		return true
	}
	if len(cfg.AllowedCallers) > 0 {
		if _, ok := cfg.AllowedCallers[callerID]; !ok {
			return false
		}
	}
	if profile != nil && profile.Prefs.AllowCallHandling {
		if profile.TrustLevel == memory.TrustGreen ||
			profile.Type == memory.RelationFamily ||
			profile.Type == memory.RelationFriend {
			return true
		}
	}
	return false
}
