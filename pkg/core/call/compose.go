package call

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evermem/linekeeper/pkg/memory"
	"github.com/evermem/linekeeper/pkg/policy"
)

const (
	fallbackReply     = "I'm listening, please continue."
	probeReply        = "Could you tell me a little more about what you need?"
	neutralReply      = "I hear you. I'll pass that along."
	familyReassurance = " I'll make sure to let them know you called."
)

// Composer turns a caller utterance into the assistant's reply. It consults
// the relationship profile, runs a caller-scoped memory search, asks the
// disclosure engine for a decision, and shapes the reply accordingly. A
// failure in any collaborator never breaks the call: the composer falls back
// to a generic reply instead.
type Composer struct {
	Profiles memory.ProfileDirectory
	Search   memory.Searcher
	Policy   policy.Engine
	Logger   *slog.Logger
}

// Compose returns the reply to speak for the given caller utterance.
func (c *Composer) Compose(ctx context.Context, callerID, utterance string) string {
	reply, err := c.compose(ctx, callerID, utterance)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("response composition failed, using fallback",
				"caller_id", callerID, "error", err)
		}
		return fallbackReply
	}
	return reply
}

func (c *Composer) compose(ctx context.Context, callerID, utterance string) (string, error) {
	var profile *memory.RelationshipProfile
	if c.Profiles != nil {
		p, err := c.Profiles.Profile(ctx, callerID)
		if err != nil {
			return "", fmt.Errorf("profile lookup: %w", err)
		}
		profile = p
	}

	domain := policy.DomainGeneral
	family := false
	if profile != nil && profile.Type == memory.RelationFamily {
		domain = policy.DomainFamily
		family = true
	}

	var results memory.Results
	if c.Search != nil {
		r, err := c.Search.Search(ctx, memory.Query{
			Text:          utterance,
			Type:          memory.SearchSemantic,
			ContactFilter: callerID,
		}, callerID)
		if err != nil {
			return "", fmt.Errorf("memory search: %w", err)
		}
		results = r
	}

	decision := policy.Decision{Outcome: policy.OutcomeVerify}
	if c.Policy != nil {
		d, err := c.Policy.Evaluate(ctx, policy.Request{
			CallerID:  callerID,
			Utterance: utterance,
			Domain:    domain,
		})
		if err != nil {
			return "", fmt.Errorf("disclosure decision: %w", err)
		}
		decision = d
	}

	var reply string
	switch {
	case decision.Outcome == policy.OutcomeDisclose && len(results.Entries) > 0:
		shared := results.Summary
		if shared == "" {
			shared = results.Entries[0].Content
		}
		reply = fmt.Sprintf("Here's what I can share: %s", shared)
	case decision.Outcome == policy.OutcomeProbe:
		reply = probeReply
	default:
		// partial, verify, decline, and anything a future engine invents
		// all get the non-committal acknowledgement.
		reply = neutralReply
	}

	if family {
		reply += familyReassurance
	}
	return reply, nil
}
