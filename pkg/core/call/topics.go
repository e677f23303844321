package call

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var nonWord = regexp.MustCompile(`\W+`)

// TopThemes extracts the highest-frequency tokens from text. Tokens are
// lowercased, split on non-word runs, and tokens of length four or less are
// dropped. Ties keep first-seen order. This is a frequency heuristic, not
// NLP; summaries built from it are persisted and shown to users, so the
// behavior must stay exactly reproducible.
func TopThemes(text string, limit int) []string {
	tokens := nonWord.Split(strings.ToLower(text), -1)

	counts := make(map[string]int)
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) <= 4 {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

// callerText concatenates all caller-spoken transcript entries.
func callerText(transcript []TranscriptEntry) string {
	parts := make([]string, 0, len(transcript))
	for _, e := range transcript {
		if e.Speaker == RoleCaller {
			parts = append(parts, e.Content)
		}
	}
	return strings.Join(parts, " ")
}

// SummarizeCall builds the persisted call summary: duration in seconds, up
// to three themes from caller speech, and the transcript entry count.
func SummarizeCall(duration time.Duration, transcript []TranscriptEntry) string {
	themes := TopThemes(callerText(transcript), 5)
	if len(themes) > 3 {
		themes = themes[:3]
	}

	secs := int(duration.Seconds())
	if len(themes) == 0 {
		return fmt.Sprintf("Call lasted %d seconds with %d transcript entries.", secs, len(transcript))
	}
	return fmt.Sprintf("Call lasted %d seconds. Topics discussed: %s. %d transcript entries.",
		secs, strings.Join(themes, ", "), len(transcript))
}

// FormatTranscript renders the transcript as speaker-labeled, newline-joined
// text for durable storage.
func FormatTranscript(transcript []TranscriptEntry) string {
	lines := make([]string, 0, len(transcript))
	for _, e := range transcript {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Speaker, e.Content))
	}
	return strings.Join(lines, "\n")
}
