package call

import "strings"

// endingPhrases is the fixed phrase set that signals the caller wants to end
// the call. Matching is case-insensitive substring containment only; no
// stemming or fuzzy matching. The exact behavior is an observable contract.
var endingPhrases = []string{
	"goodbye",
	"bye",
	"gotta go",
	"hang up",
	"end call",
	"that's all",
	"thanks bye",
	"talk later",
	"have to run",
}

// IsEndingRequest reports whether the utterance signals the caller wants to
// end the call.
func IsEndingRequest(utterance string) bool {
	lower := strings.ToLower(utterance)
	for _, phrase := range endingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
